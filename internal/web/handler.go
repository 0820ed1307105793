// Package web implements the HTTP surface: the Telegram webhook, the Mini
// App JSON API, the secret-gated cron trigger and the moderation endpoints.
//
// Routes:
//
//	POST /api/telegram/webhook                     → payment provider events
//	GET  /api/jobs                                 → catalog / profile lookup
//	POST /api/jobs                                 → Mini App actions
//	GET  /api/cron/random-coffee                   → scheduler trigger (secret-gated)
//	POST /api/admin/orders/{id}/approve|reject     → moderation decisions
//	POST /api/admin/participations/{id}/cancel     → admin participation cancel
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/henzerboss/evsi-store/internal/ai"
	"github.com/henzerboss/evsi-store/internal/coffee"
	"github.com/henzerboss/evsi-store/internal/logger"
	"github.com/henzerboss/evsi-store/internal/model"
	"github.com/henzerboss/evsi-store/internal/order"
	"github.com/henzerboss/evsi-store/internal/telegram"
)

// Options carries the handler configuration.
type Options struct {
	CronSecret             string
	Timezone               *time.Location
	RandomCoffeePriceStars int
	ResumeAIPriceStars     int
}

// OrderAPI is the slice of the order service the handler consumes.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*model.Order, error)
	RequestInvoice(ctx context.Context, orderID string) (string, error)
	OnPreCheckout(ctx context.Context, q *telegram.PreCheckoutQuery) error
	OnPaymentConfirmed(ctx context.Context, orderID, chargeID string) (*model.Order, error)
	Moderate(ctx context.Context, orderID, decision string) (*model.Order, error)
	GenerateResume(ctx context.Context, orderID string) (*ai.Result, error)
	ListChannels(ctx context.Context) ([]model.Channel, error)
	GetSettings(ctx context.Context) (*model.Settings, error)
}

// CoffeeAPI is the slice of the coffee service the handler consumes.
type CoffeeAPI interface {
	RunMatching(ctx context.Context, date time.Time) (*coffee.RunSummary, error)
	RunReminders(ctx context.Context) (*coffee.ReminderSummary, error)
	ResendContacts(ctx context.Context, date time.Time) (*coffee.ResendSummary, error)
	CancelByUser(ctx context.Context, telegramUserID string) error
	CancelByAdmin(ctx context.Context, participationID string) error
	GetProfile(ctx context.Context, telegramUserID string) (*model.Profile, error)
	IsParticipating(ctx context.Context, telegramUserID string) (bool, error)
}

// Handler holds shared dependencies.
type Handler struct {
	orders OrderAPI
	coffee CoffeeAPI
	opts   Options
	now    func() time.Time
}

// NewHandler returns a configured Handler.
func NewHandler(orders OrderAPI, coffeeSvc CoffeeAPI, opts Options) *Handler {
	return &Handler{
		orders: orders,
		coffee: coffeeSvc,
		opts:   opts,
		now:    time.Now,
	}
}

// RegisterRoutes mounts all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/telegram/webhook", h.handleWebhook)
	mux.HandleFunc("/api/jobs", h.handleJobs)
	mux.HandleFunc("/api/cron/random-coffee", h.handleCron)
	mux.HandleFunc("/api/admin/orders/", h.handleOrderModeration)
	mux.HandleFunc("/api/admin/participations/", h.handleParticipationAdmin)
}

// ─── Telegram webhook ────────────────────────────────────────────────────────

// handleWebhook consumes provider events. Telegram retries any non-200
// response, so processing errors are logged and acknowledged anyway —
// OnPaymentConfirmed is idempotent under re-delivery.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	switch {
	case update.PreCheckoutQuery != nil:
		if err := h.orders.OnPreCheckout(r.Context(), update.PreCheckoutQuery); err != nil {
			logger.Log.Error("pre-checkout answer failed",
				zap.String("queryId", update.PreCheckoutQuery.ID), zap.Error(err))
		}
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		pay := update.Message.SuccessfulPayment
		if _, err := h.orders.OnPaymentConfirmed(r.Context(), pay.InvoicePayload, pay.TelegramPaymentChargeID); err != nil {
			logger.Log.Error("payment confirmation failed",
				zap.String("orderId", pay.InvoicePayload), zap.Error(err))
		}
	}

	jsonOK(w, map[string]bool{"ok": true})
}

// ─── Mini App API ────────────────────────────────────────────────────────────

func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getJobs(w, r)
	case http.MethodPost:
		h.postJobs(w, r)
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// getJobs serves the catalog, or a Random Coffee profile lookup when
// action=get_profile. The lookup always answers 200: a missing profile
// comes back as {"profile": null, "isParticipating": false} so the Mini
// App can render the sign-up form without special-casing a 404.
func (h *Handler) getJobs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") == "get_profile" {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			jsonError(w, "userId is required", http.StatusBadRequest)
			return
		}
		profile, err := h.coffee.GetProfile(r.Context(), userID)
		if err != nil && !errors.Is(err, coffee.ErrNotFound) {
			h.serviceError(w, err)
			return
		}
		participating := false
		if profile != nil {
			participating, err = h.coffee.IsParticipating(r.Context(), userID)
			if err != nil {
				h.serviceError(w, err)
				return
			}
		}
		jsonOK(w, map[string]any{
			"profile":         profile,
			"isParticipating": participating,
		})
		return
	}

	channels, err := h.orders.ListChannels(r.Context())
	if err != nil {
		h.serviceError(w, err)
		return
	}
	settings, err := h.orders.GetSettings(r.Context())
	if err != nil {
		h.serviceError(w, err)
		return
	}
	jsonOK(w, map[string]any{
		"channels": channels,
		"settings": settings,
		"prices": map[string]int{
			"randomCoffee": h.opts.RandomCoffeePriceStars,
			"resumeAi":     h.opts.ResumeAIPriceStars,
		},
	})
}

type jobsRequest struct {
	Action      string          `json:"action"`
	BuyerID     string          `json:"buyerId"`
	BuyerHandle *string         `json:"buyerHandle,omitempty"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	ChannelIDs  []string        `json:"channelIds"`
	OrderID     string          `json:"orderId"`
	UserID      string          `json:"userId"`
}

func (h *Handler) postJobs(w http.ResponseWriter, r *http.Request) {
	var req jobsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "create_invoice":
		h.createInvoice(w, r, req, req.Kind)
	case "create_ai_invoice":
		h.createInvoice(w, r, req, string(order.KindResumeAI))
	case "generate_ai_resume":
		result, err := h.orders.GenerateResume(r.Context(), req.OrderID)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		jsonOK(w, result)
	case "cancel_random_coffee":
		if err := h.coffee.CancelByUser(r.Context(), req.UserID); err != nil {
			h.serviceError(w, err)
			return
		}
		jsonOK(w, map[string]string{"status": "cancelled"})
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
	}
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request, req jobsRequest, kind string) {
	ord, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		BuyerID:     req.BuyerID,
		BuyerHandle: req.BuyerHandle,
		Kind:        kind,
		Payload:     req.Payload,
		ChannelIDs:  req.ChannelIDs,
	})
	if err != nil {
		h.serviceError(w, err)
		return
	}

	link, err := h.orders.RequestInvoice(r.Context(), ord.ID)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	jsonOK(w, map[string]any{
		"orderId":     ord.ID,
		"totalAmount": ord.TotalAmount,
		"invoiceLink": link,
	})
}

// ─── Cron trigger ────────────────────────────────────────────────────────────

// handleCron is the secret-gated scheduler entry point. An explicit action
// wins; with none, the weekday decides: Thursday reminds, Friday matches.
func (h *Handler) handleCron(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Query().Get("secret") != h.opts.CronSecret {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	now := h.now().In(h.opts.Timezone)
	action := r.URL.Query().Get("action")
	if action == "" {
		switch now.Weekday() {
		case time.Thursday:
			action = "remind"
		case time.Friday:
			action = "match"
		default:
			jsonOK(w, map[string]string{"status": "no action for today"})
			return
		}
	}

	date := coffee.Today(now)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.opts.Timezone)
		if err != nil {
			jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	switch action {
	case "remind":
		summary, err := h.coffee.RunReminders(r.Context())
		if err != nil {
			h.serviceError(w, err)
			return
		}
		jsonOK(w, summary)
	case "match":
		summary, err := h.coffee.RunMatching(r.Context(), date)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		jsonOK(w, summary)
	case "resend_links":
		summary, err := h.coffee.ResendContacts(r.Context(), date)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		jsonOK(w, summary)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusBadRequest)
	}
}

// ─── Moderation ──────────────────────────────────────────────────────────────

// handleOrderModeration handles POST /api/admin/orders/{id}/approve|reject
func (h *Handler) handleOrderModeration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse /api/admin/orders/{id}/{decision}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 5 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}
	orderID, decision := parts[3], parts[4]

	ord, err := h.orders.Moderate(r.Context(), orderID, decision)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	jsonOK(w, ord)
}

// handleParticipationAdmin handles POST /api/admin/participations/{id}/cancel
func (h *Handler) handleParticipationAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 5 || parts[4] != "cancel" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	if err := h.coffee.CancelByAdmin(r.Context(), parts[3]); err != nil {
		h.serviceError(w, err)
		return
	}
	jsonOK(w, map[string]string{"status": "cancelled"})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// serviceError maps the service error taxonomy onto HTTP statuses. Upstream
// provider failures keep their description so the moderation UI can show
// the raw reason.
func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	var vErr *order.ValidationError
	var uErr *telegram.UpstreamError

	switch {
	case errors.As(err, &vErr):
		jsonError(w, vErr.Msg, http.StatusBadRequest)
	case errors.Is(err, order.ErrNotFound), errors.Is(err, coffee.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, order.ErrInvalidState), errors.Is(err, coffee.ErrInvalidState),
		errors.Is(err, coffee.ErrRunInProgress):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, order.ErrRefundUnavailable):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &uErr):
		jsonError(w, uErr.Error(), http.StatusBadGateway)
	default:
		logger.Log.Error("request failed", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
