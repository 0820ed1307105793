package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/henzerboss/evsi-store/internal/ai"
	"github.com/henzerboss/evsi-store/internal/coffee"
	"github.com/henzerboss/evsi-store/internal/logger"
	"github.com/henzerboss/evsi-store/internal/model"
	"github.com/henzerboss/evsi-store/internal/telegram"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = fmt.Errorf("order not found")

// ErrInvalidState is returned when an operation is not legal from the
// order's current status. Nothing is mutated.
var ErrInvalidState = fmt.Errorf("operation not allowed in current order state")

// ErrRefundUnavailable is returned when a refund is requested but the order
// carries no provider charge id to refund against.
var ErrRefundUnavailable = fmt.Errorf("no provider charge id to refund")

// ─── Service ─────────────────────────────────────────────────────────────────

// Gateway is the slice of the payments API the order flow needs.
type Gateway interface {
	CreateInvoiceLink(ctx context.Context, inv telegram.Invoice) (string, error)
	AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool) error
	RefundStarPayment(ctx context.Context, userID int64, chargeID string) error
	SendMessage(ctx context.Context, msg telegram.Message) error
}

// DB is the slice of *pgxpool.Pool the order flow uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Options carries the pricing and notification knobs from config.
type Options struct {
	RandomCoffeePriceStars int
	ResumeAIPriceStars     int
	AdminChatID            string // empty disables admin notifications
}

// Service encapsulates the order lifecycle: creation, invoicing, payment
// confirmation, moderation and the AI resume branch. It is
// transport-agnostic and holds its dependencies explicitly.
type Service struct {
	db       DB
	rdb      *redis.Client
	tg       Gateway
	rewriter ai.Rewriter
	opts     Options
	now      func() time.Time
}

// NewService returns a configured Service. In production db is a
// *pgxpool.Pool.
func NewService(db DB, rdb *redis.Client, tg Gateway, rewriter ai.Rewriter, opts Options) *Service {
	return &Service{
		db:       db,
		rdb:      rdb,
		tg:       tg,
		rewriter: rewriter,
		opts:     opts,
		now:      time.Now,
	}
}

// ─── Creation & invoicing ────────────────────────────────────────────────────

// CreateOrderRequest is the client-side purchase intent.
type CreateOrderRequest struct {
	BuyerID     string
	BuyerHandle *string
	Kind        string
	Payload     json.RawMessage
	ChannelIDs  []string
}

// CreateOrder computes the total from current settings and channel prices,
// and persists a PENDING order. The total is fixed here and never
// recomputed afterwards.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if req.BuyerID == "" {
		return nil, &ValidationError{Msg: "buyer id is required"}
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage(`{}`)
	}

	var settings model.Settings
	err = s.db.QueryRow(ctx,
		`SELECT vacancy_base_price_stars, resume_base_price_stars, channel_discount_percent
		 FROM tg_settings WHERE id = 1`,
	).Scan(&settings.VacancyBasePriceStars, &settings.ResumeBasePriceStars, &settings.ChannelDiscountPercent)
	if err != nil {
		return nil, fmt.Errorf("createOrder settings: %w", err)
	}

	var channels []model.Channel
	if IsChannelPriced(kind) {
		channels, err = s.channelsByID(ctx, req.ChannelIDs)
		if err != nil {
			return nil, err
		}
	}

	total, err := ComputeTotal(kind, settings, channels, s.opts.RandomCoffeePriceStars, s.opts.ResumeAIPriceStars)
	if err != nil {
		return nil, err
	}

	order := model.Order{
		ID:          uuid.NewString(),
		BuyerID:     req.BuyerID,
		BuyerHandle: req.BuyerHandle,
		Kind:        string(kind),
		Payload:     req.Payload,
		TotalAmount: total,
		Status:      string(StatusPending),
		CreatedAt:   s.now(),
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("createOrder begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO tg_orders (id, buyer_id, buyer_handle, kind, payload, total_amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.ID, order.BuyerID, order.BuyerHandle, order.Kind, order.Payload,
		order.TotalAmount, order.Status, order.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("createOrder insert: %w", err)
	}
	for _, ch := range channels {
		if _, err := tx.Exec(ctx,
			`INSERT INTO tg_order_channels (order_id, channel_id) VALUES ($1, $2)`,
			order.ID, ch.ID,
		); err != nil {
			return nil, fmt.Errorf("createOrder channel link: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("createOrder commit: %w", err)
	}

	return &order, nil
}

// RequestInvoice asks the gateway for a payment link. The order status is
// not touched; the invoice payload carries the order id so the webhook can
// find its way back.
func (s *Service) RequestInvoice(ctx context.Context, orderID string) (string, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.Status != string(StatusPending) {
		return "", ErrInvalidState
	}

	title, description := invoiceText(Kind(order.Kind))
	link, err := s.tg.CreateInvoiceLink(ctx, telegram.Invoice{
		Title:       title,
		Description: description,
		Payload:     order.ID,
		Currency:    "XTR",
		Prices:      []telegram.LabeledPrice{{Label: title, Amount: order.TotalAmount}},
	})
	if err != nil {
		return "", err
	}
	return link, nil
}

func invoiceText(kind Kind) (title, description string) {
	switch kind {
	case KindVacancy:
		return "Vacancy posting", "Publication of your vacancy in the selected channels"
	case KindResume:
		return "Resume posting", "Publication of your resume in the selected channels"
	case KindResumeAI:
		return "AI resume polish", "Professional rewrite of your resume before publication"
	case KindRandomCoffee:
		return "Random Coffee", "Participation in this week's Random Coffee draw"
	}
	return "Order", "evsi.store order"
}

// OnPreCheckout approves every pending checkout; acceptance is delegated
// entirely to successful payment.
func (s *Service) OnPreCheckout(ctx context.Context, q *telegram.PreCheckoutQuery) error {
	return s.tg.AnswerPreCheckoutQuery(ctx, q.ID, true)
}

// ─── Payment confirmation ────────────────────────────────────────────────────

// coffeeSignup is the Random Coffee slice of the order payload, interpreted
// only at payment time to build the profile.
type coffeeSignup struct {
	Name      string  `json:"name"`
	Specialty string  `json:"specialty"`
	Interests string  `json:"interests"`
	LinkedIn  *string `json:"linkedin,omitempty"`
}

// OnPaymentConfirmed is the single mutating entry point from the payment
// provider, safe under at-least-once webhook delivery. The transition out
// of PENDING is a compare-and-swap on status: re-delivery finds no PENDING
// row to update and returns the existing record unchanged.
func (s *Service) OnPaymentConfirmed(ctx context.Context, orderID, chargeID string) (*model.Order, error) {
	var order model.Order
	err := s.db.QueryRow(ctx,
		`UPDATE tg_orders
		 SET status = $2, provider_charge_id = $3
		 WHERE id = $1 AND status = $4
		 RETURNING id, buyer_id, buyer_handle, kind, payload, total_amount, status, provider_charge_id, created_at`,
		orderID, string(StatusWaitingModeration), chargeID, string(StatusPending),
	).Scan(
		&order.ID, &order.BuyerID, &order.BuyerHandle, &order.Kind, &order.Payload,
		&order.TotalAmount, &order.Status, &order.ProviderChargeID, &order.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already past PENDING (duplicate webhook) or unknown id.
		return s.GetOrder(ctx, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("onPaymentConfirmed update: %w", err)
	}

	if order.Kind == string(KindRandomCoffee) {
		if err := s.registerCoffeeSignup(ctx, &order, chargeID); err != nil {
			// The payment is already recorded; the sign-up error is surfaced
			// but must not undo the status transition.
			logger.Log.Error("random coffee sign-up failed",
				zap.String("orderId", order.ID), zap.Error(err))
		}
	}

	s.notifyPaymentReceived(ctx, &order)
	s.publishEvent(ctx, "EVENT_ORDER_PAID", map[string]string{
		"type":    "EVENT_ORDER_PAID",
		"orderId": order.ID,
		"kind":    order.Kind,
	})

	return &order, nil
}

// registerCoffeeSignup upserts the long-lived profile and inserts the
// participation row for the next match Friday. The partial unique index on
// (profile_id, match_date) WHERE status='PAID' plus ON CONFLICT DO NOTHING
// makes a duplicate sign-up a no-op.
func (s *Service) registerCoffeeSignup(ctx context.Context, order *model.Order, chargeID string) error {
	var form coffeeSignup
	if err := json.Unmarshal(order.Payload, &form); err != nil {
		return fmt.Errorf("coffee payload: %w", err)
	}

	var profileID string
	err := s.db.QueryRow(ctx,
		`INSERT INTO rc_profiles (id, telegram_user_id, name, specialty, interests, linkedin)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (telegram_user_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     specialty = EXCLUDED.specialty,
		     interests = EXCLUDED.interests,
		     linkedin = EXCLUDED.linkedin
		 RETURNING id`,
		uuid.NewString(), order.BuyerID, form.Name, form.Specialty, form.Interests, form.LinkedIn,
	).Scan(&profileID)
	if err != nil {
		return fmt.Errorf("profile upsert: %w", err)
	}

	matchDate := coffee.NextFriday(s.now())
	_, err = s.db.Exec(ctx,
		`INSERT INTO rc_participations (id, profile_id, match_date, status, provider_charge_id)
		 VALUES ($1, $2, $3, 'PAID', $4)
		 ON CONFLICT (profile_id, match_date) WHERE status = 'PAID' DO NOTHING`,
		uuid.NewString(), profileID, matchDate, chargeID,
	)
	if err != nil {
		return fmt.Errorf("participation insert: %w", err)
	}
	return nil
}

func (s *Service) notifyPaymentReceived(ctx context.Context, order *model.Order) {
	var text string
	switch Kind(order.Kind) {
	case KindRandomCoffee:
		text = "☕️ Payment received! You are in this week's Random Coffee draw. " +
			"We will introduce you to your match on Friday."
	case KindResumeAI:
		text = "✨ Payment received! Your resume is being polished — the result arrives here shortly."
	default:
		text = "✅ Payment received! Your post is in the moderation queue and will be published after review."
	}
	if err := s.tg.SendMessage(ctx, telegram.Message{ChatID: order.BuyerID, Text: text}); err != nil {
		logger.Log.Warn("buyer payment notification failed",
			zap.String("orderId", order.ID), zap.Error(err))
	}

	if s.opts.AdminChatID == "" {
		return
	}
	admin := fmt.Sprintf("💰 New paid order\nKind: %s\nAmount: %d ⭐\nOrder: %s",
		order.Kind, order.TotalAmount, order.ID)
	if err := s.tg.SendMessage(ctx, telegram.Message{ChatID: s.opts.AdminChatID, Text: admin}); err != nil {
		logger.Log.Warn("admin payment notification failed",
			zap.String("orderId", order.ID), zap.Error(err))
	}
}

// ─── Moderation ──────────────────────────────────────────────────────────────

// Moderate applies a moderator decision to a paid order. Approve publishes
// the post to every selected channel and moves the order to PUBLISHED.
// Reject refunds first and only then records REJECTED_REFUNDED; if the
// refund call fails, nothing is mutated and the provider error is returned
// so the moderator can retry.
func (s *Service) Moderate(ctx context.Context, orderID, decision string) (*model.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != string(StatusWaitingModeration) {
		return nil, ErrInvalidState
	}

	switch decision {
	case "approve":
		return s.approve(ctx, order)
	case "reject":
		return s.reject(ctx, order)
	}
	return nil, &ValidationError{Msg: fmt.Sprintf("unknown decision %q", decision)}
}

func (s *Service) approve(ctx context.Context, order *model.Order) (*model.Order, error) {
	text, err := telegram.FormatJobPost(order.Kind, order.Payload)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	channels, err := s.orderChannels(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	posted := 0
	for _, ch := range channels {
		msg := telegram.Message{ChatID: ch.Username, Text: text, ParseMode: "HTML"}
		if err := s.tg.SendMessage(ctx, msg); err != nil {
			logger.Log.Warn("channel post failed",
				zap.String("orderId", order.ID), zap.String("channel", ch.Username), zap.Error(err))
			continue
		}
		posted++
		time.Sleep(telegram.SendDelay)
	}

	updated, err := s.transition(ctx, order.ID, StatusWaitingModeration, StatusPublished)
	if err != nil {
		return nil, err
	}

	notice := fmt.Sprintf("🎉 Your post has been approved and published to %d channel(s).", posted)
	if err := s.tg.SendMessage(ctx, telegram.Message{ChatID: order.BuyerID, Text: notice}); err != nil {
		logger.Log.Warn("publish notification failed", zap.String("orderId", order.ID), zap.Error(err))
	}
	return updated, nil
}

func (s *Service) reject(ctx context.Context, order *model.Order) (*model.Order, error) {
	if order.ProviderChargeID == nil || *order.ProviderChargeID == "" {
		return nil, ErrRefundUnavailable
	}
	buyerID, err := strconv.ParseInt(order.BuyerID, 10, 64)
	if err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("buyer id %q is not refundable", order.BuyerID)}
	}

	// Money first: the local state only records a refund the provider confirmed.
	if err := s.tg.RefundStarPayment(ctx, buyerID, *order.ProviderChargeID); err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, order.ID, StatusWaitingModeration, StatusRejectedRefunded)
	if err != nil {
		return nil, err
	}

	notice := "❌ Your post did not pass moderation. The payment has been refunded in full."
	if err := s.tg.SendMessage(ctx, telegram.Message{ChatID: order.BuyerID, Text: notice}); err != nil {
		logger.Log.Warn("reject notification failed", zap.String("orderId", order.ID), zap.Error(err))
	}
	return updated, nil
}

// ─── AI resume branch ────────────────────────────────────────────────────────

// GenerateResume runs the paid RESUME_AI order through the rewriter. On
// success the result is delivered to the buyer and the order becomes
// PUBLISHED. On rewrite failure the payment is refunded (when a charge id
// exists) and the order becomes REFUNDED.
func (s *Service) GenerateResume(ctx context.Context, orderID string) (*ai.Result, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Kind != string(KindResumeAI) {
		return nil, &ValidationError{Msg: "order is not an AI resume order"}
	}
	if order.Status != string(StatusWaitingModeration) {
		return nil, ErrInvalidState
	}

	var data ai.ResumeData
	if err := json.Unmarshal(order.Payload, &data); err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("resume payload: %s", err)}
	}

	result, err := s.rewriter.Rewrite(ctx, data)
	if err != nil {
		logger.Log.Error("resume rewrite failed", zap.String("orderId", order.ID), zap.Error(err))
		s.refundFailedGeneration(ctx, order)
		return nil, fmt.Errorf("resume generation: %w", err)
	}

	if _, err := s.transition(ctx, order.ID, StatusWaitingModeration, StatusPublished); err != nil {
		return nil, err
	}
	s.deliverResume(ctx, order, result)
	return result, nil
}

func (s *Service) refundFailedGeneration(ctx context.Context, order *model.Order) {
	if order.ProviderChargeID == nil || *order.ProviderChargeID == "" {
		return
	}
	buyerID, err := strconv.ParseInt(order.BuyerID, 10, 64)
	if err != nil {
		logger.Log.Error("generation refund skipped: bad buyer id",
			zap.String("orderId", order.ID), zap.String("buyerId", order.BuyerID))
		return
	}
	if err := s.tg.RefundStarPayment(ctx, buyerID, *order.ProviderChargeID); err != nil {
		logger.Log.Error("generation refund failed",
			zap.String("orderId", order.ID), zap.Error(err))
		return
	}
	if _, err := s.transition(ctx, order.ID, StatusWaitingModeration, StatusRefunded); err != nil {
		logger.Log.Error("generation refund status update failed",
			zap.String("orderId", order.ID), zap.Error(err))
		return
	}
	apology := "😔 We could not process your resume this time. The payment has been refunded in full — please try again later."
	if err := s.tg.SendMessage(ctx, telegram.Message{ChatID: order.BuyerID, Text: apology}); err != nil {
		logger.Log.Warn("generation refund notification failed",
			zap.String("orderId", order.ID), zap.Error(err))
	}
}

func (s *Service) deliverResume(ctx context.Context, order *model.Order, result *ai.Result) {
	r := result.Resume
	resume := fmt.Sprintf(
		"<b>✨ Your polished resume</b>\n\n"+
			"<b>%s</b>\n"+
			"<b>Salary:</b> %s\n\n"+
			"<b>Experience:</b>\n%s\n\n"+
			"<b>Skills:</b>\n%s\n\n"+
			"%s\n\n"+
			"<b>Contacts:</b> %s",
		telegram.SanitizeHTML(r.Title),
		telegram.SanitizeHTML(r.Salary),
		telegram.SanitizeHTML(r.Experience),
		telegram.SanitizeHTML(r.Skills),
		telegram.SanitizeHTML(r.Description),
		telegram.SanitizeHTML(r.Contacts),
	)

	changes := "<b>🛠 What was improved</b>\n"
	if len(result.Changes) == 0 {
		changes += "\nYour resume was already in great shape — only minor touch-ups were applied."
	}
	for _, c := range result.Changes {
		changes += fmt.Sprintf("\n• <b>%s</b>: %s (%s)",
			telegram.SanitizeHTML(c.Field),
			telegram.SanitizeHTML(c.WhatFixed),
			telegram.SanitizeHTML(c.Why),
		)
	}

	for _, text := range []string{resume, changes} {
		msg := telegram.Message{ChatID: order.BuyerID, Text: text, ParseMode: "HTML"}
		if err := s.tg.SendMessage(ctx, msg); err != nil {
			logger.Log.Warn("resume delivery failed", zap.String("orderId", order.ID), zap.Error(err))
		}
		time.Sleep(telegram.SendDelay)
	}

	if s.opts.AdminChatID != "" {
		notice := fmt.Sprintf("✨ AI resume delivered\nOrder: %s", order.ID)
		if err := s.tg.SendMessage(ctx, telegram.Message{ChatID: s.opts.AdminChatID, Text: notice}); err != nil {
			logger.Log.Warn("admin resume notification failed", zap.String("orderId", order.ID), zap.Error(err))
		}
	}
}

// ─── Queries & helpers ───────────────────────────────────────────────────────

// GetOrder loads one order by id.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := s.db.QueryRow(ctx,
		`SELECT id, buyer_id, buyer_handle, kind, payload, total_amount, status, provider_charge_id, created_at
		 FROM tg_orders WHERE id = $1`,
		orderID,
	).Scan(
		&order.ID, &order.BuyerID, &order.BuyerHandle, &order.Kind, &order.Payload,
		&order.TotalAmount, &order.Status, &order.ProviderChargeID, &order.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getOrder: %w", err)
	}
	return &order, nil
}

// ListChannels returns the active channel catalog for the Mini App.
func (s *Service) ListChannels(ctx context.Context) ([]model.Channel, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, username, category, price_stars, is_active
		 FROM tg_channels WHERE is_active ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("listChannels query: %w", err)
	}
	defer rows.Close()

	channels := make([]model.Channel, 0)
	for rows.Next() {
		var ch model.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Username, &ch.Category, &ch.PriceStars, &ch.IsActive); err != nil {
			return nil, fmt.Errorf("listChannels scan: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// GetSettings returns the singleton pricing configuration.
func (s *Service) GetSettings(ctx context.Context) (*model.Settings, error) {
	var settings model.Settings
	err := s.db.QueryRow(ctx,
		`SELECT vacancy_base_price_stars, resume_base_price_stars, channel_discount_percent
		 FROM tg_settings WHERE id = 1`,
	).Scan(&settings.VacancyBasePriceStars, &settings.ResumeBasePriceStars, &settings.ChannelDiscountPercent)
	if err != nil {
		return nil, fmt.Errorf("getSettings: %w", err)
	}
	return &settings, nil
}

func (s *Service) channelsByID(ctx context.Context, ids []string) ([]model.Channel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, name, username, category, price_stars, is_active
		 FROM tg_channels WHERE id = ANY($1) AND is_active`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("channelsByID query: %w", err)
	}
	defer rows.Close()

	channels := make([]model.Channel, 0, len(ids))
	for rows.Next() {
		var ch model.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Username, &ch.Category, &ch.PriceStars, &ch.IsActive); err != nil {
			return nil, fmt.Errorf("channelsByID scan: %w", err)
		}
		channels = append(channels, ch)
	}
	if len(channels) != len(ids) {
		return nil, &ValidationError{Msg: "one or more selected channels are unknown or inactive"}
	}
	return channels, nil
}

func (s *Service) orderChannels(ctx context.Context, orderID string) ([]model.Channel, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.name, c.username, c.category, c.price_stars, c.is_active
		 FROM tg_order_channels oc
		 JOIN tg_channels c ON c.id = oc.channel_id
		 WHERE oc.order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("orderChannels query: %w", err)
	}
	defer rows.Close()

	channels := make([]model.Channel, 0)
	for rows.Next() {
		var ch model.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Username, &ch.Category, &ch.PriceStars, &ch.IsActive); err != nil {
			return nil, fmt.Errorf("orderChannels scan: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// transition is the compare-and-swap behind every status change: the update
// only lands when the row is still in the expected source status.
func (s *Service) transition(ctx context.Context, orderID string, from, to Status) (*model.Order, error) {
	if !IsTransitionAllowed(from, to) {
		return nil, ErrInvalidState
	}
	var order model.Order
	err := s.db.QueryRow(ctx,
		`UPDATE tg_orders SET status = $2
		 WHERE id = $1 AND status = $3
		 RETURNING id, buyer_id, buyer_handle, kind, payload, total_amount, status, provider_charge_id, created_at`,
		orderID, string(to), string(from),
	).Scan(
		&order.ID, &order.BuyerID, &order.BuyerHandle, &order.Kind, &order.Payload,
		&order.TotalAmount, &order.Status, &order.ProviderChargeID, &order.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("transition %s → %s: %w", from, to, err)
	}
	return &order, nil
}

func (s *Service) publishEvent(ctx context.Context, channel string, payload map[string]string) {
	event, _ := json.Marshal(payload)
	if err := s.rdb.Publish(ctx, channel, event).Err(); err != nil {
		logger.Log.Warn("publish "+channel+" failed", zap.Error(err))
	}
}
