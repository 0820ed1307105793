package order_test

import (
	"testing"

	"github.com/henzerboss/evsi-store/internal/order"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"PENDING", "PAID_WAITING_MODERATION", "PUBLISHED", "REJECTED_REFUNDED", "REFUNDED"}
	for _, s := range valid {
		got, err := order.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"UNKNOWN", "", "pending", " PENDING"} {
		if _, err := order.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

// ── IsTransitionAllowed — valid forward transitions ───────────────────────

func TestIsTransitionAllowed_ValidForward(t *testing.T) {
	cases := []struct {
		from order.Status
		to   order.Status
	}{
		{order.StatusPending, order.StatusWaitingModeration},
		{order.StatusWaitingModeration, order.StatusPublished},
		{order.StatusWaitingModeration, order.StatusRejectedRefunded},
		{order.StatusWaitingModeration, order.StatusRefunded},
	}
	for _, c := range cases {
		if !order.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

// ── IsTransitionAllowed — terminal states have no outgoing transitions ─────

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	terminals := []order.Status{order.StatusPublished, order.StatusRejectedRefunded, order.StatusRefunded}
	targets := []order.Status{
		order.StatusPending,
		order.StatusWaitingModeration,
		order.StatusPublished,
		order.StatusRejectedRefunded,
		order.StatusRefunded,
	}
	for _, from := range terminals {
		for _, to := range targets {
			if order.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

// ── IsTransitionAllowed — payment is the only way out of PENDING ──────────

func TestIsTransitionAllowed_PendingOnlyToPaid(t *testing.T) {
	for _, to := range []order.Status{order.StatusPublished, order.StatusRejectedRefunded, order.StatusRefunded} {
		if order.IsTransitionAllowed(order.StatusPending, to) {
			t.Errorf("IsTransitionAllowed(PENDING → %s) should be false: only a verified payment advances PENDING", to)
		}
	}
}

// ── IsTransitionAllowed — backwards and self movements are forbidden ──────

func TestIsTransitionAllowed_BackwardsAndSelf(t *testing.T) {
	all := []order.Status{
		order.StatusPending,
		order.StatusWaitingModeration,
		order.StatusPublished,
		order.StatusRejectedRefunded,
		order.StatusRefunded,
	}
	for _, s := range all {
		if order.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (self)", s, s)
		}
		if order.IsTransitionAllowed(s, order.StatusPending) {
			t.Errorf("IsTransitionAllowed(%s → PENDING) should be false: PENDING is only an initial state", s)
		}
	}
	if order.IsTransitionAllowed(order.StatusPublished, order.StatusWaitingModeration) {
		t.Error("IsTransitionAllowed(PUBLISHED → PAID_WAITING_MODERATION) should be false (backwards)")
	}
}

// ── IsTerminal ─────────────────────────────────────────────────────────────

func TestIsTerminal(t *testing.T) {
	terminal := map[order.Status]bool{
		order.StatusPending:           false,
		order.StatusWaitingModeration: false,
		order.StatusPublished:         true,
		order.StatusRejectedRefunded:  true,
		order.StatusRefunded:          true,
	}
	for s, want := range terminal {
		if got := order.IsTerminal(s); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, got, want)
		}
	}
}

// ── ParseKind / IsChannelPriced ────────────────────────────────────────────

func TestParseKind(t *testing.T) {
	for _, s := range []string{"VACANCY", "RESUME", "RESUME_AI", "RANDOM_COFFEE"} {
		k, err := order.ParseKind(s)
		if err != nil {
			t.Errorf("ParseKind(%q) unexpected error: %v", s, err)
		}
		if string(k) != s {
			t.Errorf("ParseKind(%q) = %q", s, k)
		}
	}
	if _, err := order.ParseKind("COFFEE"); err == nil {
		t.Error("ParseKind(\"COFFEE\") expected error, got nil")
	}
}

func TestIsChannelPriced(t *testing.T) {
	cases := map[order.Kind]bool{
		order.KindVacancy:      true,
		order.KindResume:       true,
		order.KindResumeAI:     false,
		order.KindRandomCoffee: false,
	}
	for k, want := range cases {
		if got := order.IsChannelPriced(k); got != want {
			t.Errorf("IsChannelPriced(%s) = %v, want %v", k, got, want)
		}
	}
}
