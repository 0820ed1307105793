// Package order implements the paid-order lifecycle: pricing, invoicing,
// payment confirmation and moderation.
//
// Valid status graph:
//
//	PENDING ──► PAID_WAITING_MODERATION ──► PUBLISHED
//	                      │
//	                      ├──► REJECTED_REFUNDED   (moderator reject + refund)
//	                      └──► REFUNDED            (AI generation failure refund)
//
// PUBLISHED, REJECTED_REFUNDED and REFUNDED are terminal. The graph is
// forward-only: no status is ever re-entered once left. Re-delivery of the
// same payment webhook is absorbed as a no-op, not a transition.
package order

import "fmt"

// Status values mirror the status column of tg_orders.
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusWaitingModeration Status = "PAID_WAITING_MODERATION"
	StatusPublished         Status = "PUBLISHED"
	StatusRejectedRefunded  Status = "REJECTED_REFUNDED"
	StatusRefunded          Status = "REFUNDED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusPending:           {StatusWaitingModeration},
	StatusWaitingModeration: {StatusPublished, StatusRejectedRefunded, StatusRefunded},
	// PUBLISHED, REJECTED_REFUNDED and REFUNDED are terminal
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusWaitingModeration, StatusPublished,
		StatusRejectedRefunded, StatusRefunded:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true once money and content are settled for good.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

// Kind values mirror the kind column of tg_orders.
type Kind string

const (
	KindVacancy      Kind = "VACANCY"
	KindResume       Kind = "RESUME"
	KindResumeAI     Kind = "RESUME_AI"
	KindRandomCoffee Kind = "RANDOM_COFFEE"
)

// ParseKind converts a raw string to a Kind, returning an error for unknown
// values.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindVacancy, KindResume, KindResumeAI, KindRandomCoffee:
		return k, nil
	}
	return "", fmt.Errorf("unknown order kind %q", s)
}

// IsChannelPriced returns true for kinds whose price is the base price plus
// the selected channels; such orders must select at least one channel.
func IsChannelPriced(k Kind) bool {
	return k == KindVacancy || k == KindResume
}
