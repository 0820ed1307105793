package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/henzerboss/evsi-store/internal/coffee"
	"github.com/henzerboss/evsi-store/internal/model"
	"github.com/henzerboss/evsi-store/internal/order"
	"github.com/henzerboss/evsi-store/internal/telegram"
)

// testHandler builds a Handler with a frozen clock. Paths exercised here
// never reach the services, so nil services are fine.
func testHandler(now time.Time) *Handler {
	h := NewHandler(nil, nil, Options{
		CronSecret: "s3cret",
		Timezone:   time.UTC,
	})
	h.now = func() time.Time { return now }
	return h
}

func doCron(h *Handler, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/cron/random-coffee?"+query, nil)
	rec := httptest.NewRecorder()
	h.handleCron(rec, req)
	return rec
}

func TestCron_RejectsBadSecret(t *testing.T) {
	h := testHandler(time.Now())

	for _, query := range []string{"", "secret=wrong", "secret="} {
		rec := doCron(h, query)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("query %q: status = %d, want 401", query, rec.Code)
		}
	}
}

func TestCron_RejectsNonGet(t *testing.T) {
	h := testHandler(time.Now())
	req := httptest.NewRequest(http.MethodPost, "/api/cron/random-coffee?secret=s3cret", nil)
	rec := httptest.NewRecorder()
	h.handleCron(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestCron_WeekdayFallbackNoOp(t *testing.T) {
	// 2025-06-09 is a Monday: no implicit action.
	h := testHandler(time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC))

	rec := doCron(h, "secret=s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "no action for today" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestCron_RejectsMalformedDate(t *testing.T) {
	h := testHandler(time.Now())

	rec := doCron(h, "secret=s3cret&action=resend_links&date=06/13/2025")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCron_RejectsUnknownAction(t *testing.T) {
	h := testHandler(time.Now())

	rec := doCron(h, "secret=s3cret&action=explode")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "explode") {
		t.Errorf("body %q should name the action", rec.Body.String())
	}
}

func TestWebhook_RejectsBadJSON(t *testing.T) {
	h := testHandler(time.Now())
	req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.handleWebhook(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhook_AcksUnknownUpdate(t *testing.T) {
	h := testHandler(time.Now())
	req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook",
		strings.NewReader(`{"update_id":1,"message":{"chat":{"id":42}}}`))
	rec := httptest.NewRecorder()
	h.handleWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (provider must not retry)", rec.Code)
	}
}

func TestModeration_RejectsInvalidPath(t *testing.T) {
	h := testHandler(time.Now())

	for _, path := range []string{
		"/api/admin/orders/",
		"/api/admin/orders/abc",
		"/api/admin/orders/abc/approve/extra",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		h.handleOrderModeration(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
		}
	}
}

func TestParticipationAdmin_RejectsUnknownAction(t *testing.T) {
	h := testHandler(time.Now())
	req := httptest.NewRequest(http.MethodPost, "/api/admin/participations/abc/promote", nil)
	rec := httptest.NewRecorder()
	h.handleParticipationAdmin(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	h := testHandler(time.Now())

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &order.ValidationError{Msg: "no channels"}, http.StatusBadRequest},
		{"order not found", order.ErrNotFound, http.StatusNotFound},
		{"participation not found", coffee.ErrNotFound, http.StatusNotFound},
		{"invalid state", order.ErrInvalidState, http.StatusConflict},
		{"run in progress", coffee.ErrRunInProgress, http.StatusConflict},
		{"refund unavailable", order.ErrRefundUnavailable, http.StatusUnprocessableEntity},
		{"upstream", &telegram.UpstreamError{Method: "refundStarPayment", Description: "CHARGE_NOT_FOUND"}, http.StatusBadGateway},
		{"wrapped upstream", fmt.Errorf("moderate: %w", &telegram.UpstreamError{Method: "sendMessage"}), http.StatusBadGateway},
		{"unknown", fmt.Errorf("pool exhausted"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.serviceError(rec, tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestServiceError_UpstreamKeepsDescription(t *testing.T) {
	h := testHandler(time.Now())
	rec := httptest.NewRecorder()
	h.serviceError(rec, &telegram.UpstreamError{Method: "refundStarPayment", Description: "CHARGE_NOT_FOUND"})
	if !strings.Contains(rec.Body.String(), "CHARGE_NOT_FOUND") {
		t.Errorf("body %q should carry the provider description", rec.Body.String())
	}
}

// coffeeStub serves the profile lookup paths; everything else is unreachable
// from the routes under test.
type coffeeStub struct {
	CoffeeAPI
	profile       *model.Profile
	participating bool
}

func (c *coffeeStub) GetProfile(ctx context.Context, telegramUserID string) (*model.Profile, error) {
	if c.profile == nil {
		return nil, coffee.ErrNotFound
	}
	return c.profile, nil
}

func (c *coffeeStub) IsParticipating(ctx context.Context, telegramUserID string) (bool, error) {
	return c.participating, nil
}

func doGetProfile(t *testing.T, stub *coffeeStub) map[string]json.RawMessage {
	t.Helper()
	h := NewHandler(nil, stub, Options{Timezone: time.UTC})
	req := httptest.NewRequest(http.MethodGet, "/api/jobs?action=get_profile&userId=77", nil)
	rec := httptest.NewRecorder()
	h.handleJobs(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return body
}

func TestGetProfile_CarriesParticipationFlag(t *testing.T) {
	body := doGetProfile(t, &coffeeStub{
		profile:       &model.Profile{ID: "p1", TelegramUserID: "77", Name: "Dana"},
		participating: true,
	})

	var profile model.Profile
	if err := json.Unmarshal(body["profile"], &profile); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.ID != "p1" {
		t.Errorf("profile.ID = %q, want p1", profile.ID)
	}
	if string(body["isParticipating"]) != "true" {
		t.Errorf("isParticipating = %s, want true", body["isParticipating"])
	}
}

func TestGetProfile_UnknownUserGetsEmptyState(t *testing.T) {
	body := doGetProfile(t, &coffeeStub{})

	if string(body["profile"]) != "null" {
		t.Errorf("profile = %s, want null", body["profile"])
	}
	if string(body["isParticipating"]) != "false" {
		t.Errorf("isParticipating = %s, want false", body["isParticipating"])
	}
}

func TestGetProfile_RequiresUserID(t *testing.T) {
	h := testHandler(time.Now())
	req := httptest.NewRequest(http.MethodGet, "/api/jobs?action=get_profile", nil)
	rec := httptest.NewRecorder()
	h.handleJobs(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestJobs_RejectsUnknownAction(t *testing.T) {
	h := testHandler(time.Now())
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"action":"teleport"}`))
	rec := httptest.NewRecorder()
	h.handleJobs(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
