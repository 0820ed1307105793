package coffee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/henzerboss/evsi-store/internal/logger"
	"github.com/henzerboss/evsi-store/internal/model"
	"github.com/henzerboss/evsi-store/internal/telegram"
)

// Participation statuses. PAID is the only non-terminal one.
const (
	StatusPaid            = "PAID"
	StatusMatched         = "MATCHED"
	StatusRefunded        = "REFUNDED"
	StatusRefundedByAdmin = "REFUNDED_BY_ADMIN"
	StatusRefundedByUser  = "REFUNDED_BY_USER"
	StatusNoCharge        = "CANCELLED_NO_CHARGE"
)

// ErrRunInProgress is returned when a matching run is triggered while
// another run for the same date holds the lock.
var ErrRunInProgress = fmt.Errorf("matching run already in progress")

// ErrNotFound is returned when a participation is missing.
var ErrNotFound = fmt.Errorf("participation not found")

// ErrInvalidState is returned when a cancel targets a participation that is
// no longer PAID. Nothing is mutated.
var ErrInvalidState = fmt.Errorf("participation is not cancellable in current state")

const (
	lockTTL = 10 * time.Minute
)

// Gateway is the slice of the payments API the coffee flows need.
type Gateway interface {
	RefundStarPayment(ctx context.Context, userID int64, chargeID string) error
	SendMessage(ctx context.Context, msg telegram.Message) error
}

// Options carries notification knobs from config.
type Options struct {
	MiniAppURL  string
	AdminChatID string // empty disables admin notifications
}

// Service runs the weekly Random Coffee lifecycle: reminders the day
// before, the matching pass on match day, refunds for anyone left over, and
// the manual cancel/resend operations.
type Service struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	tg   Gateway
	opts Options

	now    func() time.Time
	newRng func() *rand.Rand
}

// NewService returns a configured Service seeding its shuffles from the
// wall clock.
func NewService(pool *pgxpool.Pool, rdb *redis.Client, tg Gateway, opts Options) *Service {
	return &Service{
		pool: pool,
		rdb:  rdb,
		tg:   tg,
		opts: opts,
		now:  time.Now,
		newRng: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// RunSummary is the outcome of one matching run.
type RunSummary struct {
	Status       string `json:"status"`
	Participants int    `json:"participants"`
	Pairs        int    `json:"pairs"`
	Refunds      int    `json:"refunds"`
}

// RunMatching executes one matching pass for the given match date. The pass
// is strictly sequential and guarded by a Redis lock so overlapping
// triggers cannot double-match a profile.
func (s *Service) RunMatching(ctx context.Context, date time.Time) (*RunSummary, error) {
	day := date.Format("2006-01-02")
	lockKey := "rc:match:lock:" + day

	acquired, err := s.rdb.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("matching lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := s.rdb.Del(context.WithoutCancel(ctx), lockKey).Err(); err != nil {
			logger.Log.Warn("matching lock release failed", zap.String("date", day), zap.Error(err))
		}
	}()

	participants, err := s.loadParticipants(ctx, date)
	if err != nil {
		return nil, err
	}
	summary := &RunSummary{Participants: len(participants)}

	if len(participants) < 2 {
		// Not enough people is a terminal outcome for the run, not an error.
		for _, p := range participants {
			if s.refundParticipant(ctx, p, StatusRefunded) {
				summary.Refunds++
				s.notify(ctx, p.TelegramUserID,
					"😔 Not enough participants signed up this week, so the draw was cancelled. "+
						"Your payment has been refunded — see you next Friday!")
			}
		}
		summary.Status = "not_enough_participants"
		return summary, nil
	}

	history, err := s.loadHistory(ctx, participants)
	if err != nil {
		return nil, err
	}
	handles, err := s.loadHandles(ctx)
	if err != nil {
		return nil, err
	}

	result := Match(participants, history, s.newRng())

	for _, pair := range result.Pairs {
		if err := s.confirmPair(ctx, date, pair); err != nil {
			logger.Log.Error("pair confirmation failed",
				zap.String("a", pair.A.ProfileID), zap.String("b", pair.B.ProfileID), zap.Error(err))
			continue
		}
		summary.Pairs++
		s.sendIntroductions(ctx, pair, handles)
	}

	for _, p := range result.Leftovers {
		if s.refundParticipant(ctx, p, StatusRefunded) {
			summary.Refunds++
			s.notify(ctx, p.TelegramUserID,
				"😔 We could not find you a match this week. Your payment has been refunded — "+
					"sign up again next week, the odds only get better!")
		}
	}

	s.publishEvent(ctx, "EVENT_COFFEE_MATCHED", map[string]string{
		"type":  "EVENT_COFFEE_MATCHED",
		"date":  day,
		"pairs": strconv.Itoa(summary.Pairs),
	})

	summary.Status = "ok"
	return summary, nil
}

// confirmPair persists one selected match: the append-only history row plus
// both participations flipped to MATCHED, atomically.
func (s *Service) confirmPair(ctx context.Context, date time.Time, pair Pair) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("confirmPair begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO rc_history (id, met_on, profile_a, profile_b) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), date, pair.A.ProfileID, pair.B.ProfileID,
	)
	if err != nil {
		return fmt.Errorf("confirmPair history: %w", err)
	}

	for _, side := range []struct{ own, partner Participant }{
		{pair.A, pair.B},
		{pair.B, pair.A},
	} {
		_, err = tx.Exec(ctx,
			`UPDATE rc_participations SET status = $2, matched_with = $3
			 WHERE id = $1 AND status = $4`,
			side.own.ParticipationID, StatusMatched, side.partner.ProfileID, StatusPaid,
		)
		if err != nil {
			return fmt.Errorf("confirmPair update: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Service) sendIntroductions(ctx context.Context, pair Pair, handles map[string]string) {
	for _, side := range []struct{ own, partner Participant }{
		{pair.A, pair.B},
		{pair.B, pair.A},
	} {
		text := introText(side.partner, handles[side.partner.TelegramUserID])
		msg := telegram.Message{
			ChatID:                side.own.TelegramUserID,
			Text:                  text,
			ParseMode:             "HTML",
			DisableWebPagePreview: true,
		}
		if err := s.tg.SendMessage(ctx, msg); err != nil {
			logger.Log.Warn("introduction message failed",
				zap.String("to", side.own.TelegramUserID), zap.Error(err))
		}
		time.Sleep(telegram.SendDelay)
	}
}

// introText renders the partner's profile card. The contact line prefers a
// t.me link when a username is known and falls back to the raw Telegram id.
func introText(partner Participant, handle string) string {
	contact := fmt.Sprintf("Telegram ID: <code>%s</code>", telegram.SanitizeHTML(partner.TelegramUserID))
	if handle != "" {
		contact = fmt.Sprintf(`<a href="https://t.me/%s">@%s</a>`,
			telegram.SanitizeHTML(handle), telegram.SanitizeHTML(handle))
	}

	text := fmt.Sprintf(
		"☕️ <b>Your Random Coffee match is here!</b>\n\n"+
			"<b>%s</b>\n"+
			"<b>Specialty:</b> %s\n"+
			"<b>Interests:</b> %s\n",
		telegram.SanitizeHTML(partner.Name),
		telegram.SanitizeHTML(partner.Specialty),
		telegram.SanitizeHTML(partner.Interests),
	)
	if partner.LinkedIn != nil && *partner.LinkedIn != "" {
		text += fmt.Sprintf("<b>LinkedIn:</b> %s\n", telegram.SanitizeHTML(*partner.LinkedIn))
	}
	text += fmt.Sprintf("\n<b>Contact:</b> %s\n\nWrite first — don't be shy!", contact)
	return text
}

// refundParticipant applies the shared refund sub-flow: refund first, state
// second. A participant with no charge id collected no money, so the
// terminal status is recorded directly. Failures are logged and isolated —
// one failed refund never blocks the others. Returns whether the terminal
// status was persisted.
func (s *Service) refundParticipant(ctx context.Context, p Participant, status string) bool {
	if p.ProviderChargeID != nil && *p.ProviderChargeID != "" {
		userID, err := strconv.ParseInt(p.TelegramUserID, 10, 64)
		if err != nil {
			logger.Log.Error("refund skipped: bad telegram id",
				zap.String("participationId", p.ParticipationID), zap.String("telegramId", p.TelegramUserID))
			return false
		}
		if err := s.tg.RefundStarPayment(ctx, userID, *p.ProviderChargeID); err != nil {
			logger.Log.Error("participant refund failed",
				zap.String("participationId", p.ParticipationID), zap.Error(err))
			return false
		}
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE rc_participations SET status = $2 WHERE id = $1 AND status = $3`,
		p.ParticipationID, status, StatusPaid,
	)
	if err != nil {
		logger.Log.Error("participant refund status update failed",
			zap.String("participationId", p.ParticipationID), zap.Error(err))
		return false
	}
	return true
}

// ─── Reminders ───────────────────────────────────────────────────────────────

// ReminderSummary counts one reminder pass.
type ReminderSummary struct {
	Status    string `json:"status"`
	Sent      int    `json:"sent"`
	Confirmed int    `json:"confirmed"`
}

// RunReminders messages every known profile the day before match day: those
// already signed up get a confirmation, everyone else an invitation with
// the Mini App button. Read-only; a failed send never blocks the rest.
func (s *Service) RunReminders(ctx context.Context) (*ReminderSummary, error) {
	matchDate := NextFriday(s.now())

	confirmed := map[string]struct{}{}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT profile_id FROM rc_participations
		 WHERE match_date = $1 AND status IN ($2, $3)`,
		matchDate, StatusPaid, StatusMatched,
	)
	if err != nil {
		return nil, fmt.Errorf("reminders confirmed query: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("reminders confirmed scan: %w", err)
		}
		confirmed[id] = struct{}{}
	}
	rows.Close()

	rows, err = s.pool.Query(ctx, `SELECT id, telegram_user_id FROM rc_profiles`)
	if err != nil {
		return nil, fmt.Errorf("reminders profiles query: %w", err)
	}
	defer rows.Close()

	type profileRow struct {
		profileID string
		userID    string
	}
	var profiles []profileRow
	for rows.Next() {
		var t profileRow
		if err := rows.Scan(&t.profileID, &t.userID); err != nil {
			return nil, fmt.Errorf("reminders profiles scan: %w", err)
		}
		profiles = append(profiles, t)
	}

	keyboard := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "☕️ Join Random Coffee", WebApp: &telegram.WebAppInfo{URL: s.opts.MiniAppURL}},
		}},
	}

	summary := &ReminderSummary{Status: "ok"}
	for _, p := range profiles {
		var msg telegram.Message
		if _, ok := confirmed[p.profileID]; ok {
			summary.Confirmed++
			msg = telegram.Message{
				ChatID: p.userID,
				Text: "✅ You are all set for tomorrow's Random Coffee! " +
					"We will introduce you to your match in the morning.",
			}
		} else {
			msg = telegram.Message{
				ChatID: p.userID,
				Text: "☕️ Random Coffee is tomorrow! Want to meet someone new this week? " +
					"Confirm your participation before the draw.",
				ReplyMarkup: keyboard,
			}
		}
		if err := s.tg.SendMessage(ctx, msg); err != nil {
			logger.Log.Warn("reminder send failed", zap.String("to", p.userID), zap.Error(err))
		} else {
			summary.Sent++
		}
		time.Sleep(telegram.SendDelay)
	}

	return summary, nil
}

// ─── Manual operations ───────────────────────────────────────────────────────

// ResendSummary counts one contact re-send pass.
type ResendSummary struct {
	Status  string `json:"status"`
	Matched int    `json:"matched"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
}

// ResendContacts re-delivers the introduction message for every MATCHED
// participation of the given date. Meant for recovering from a botched
// notification pass; no state is mutated.
func (s *Service) ResendContacts(ctx context.Context, date time.Time) (*ResendSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, pr.telegram_user_id,
		        partner.name, partner.specialty, partner.interests, partner.linkedin, partner.telegram_user_id
		 FROM rc_participations p
		 JOIN rc_profiles pr ON pr.id = p.profile_id
		 LEFT JOIN rc_profiles partner ON partner.id = p.matched_with
		 WHERE p.match_date = $1 AND p.status = $2`,
		date, StatusMatched,
	)
	if err != nil {
		return nil, fmt.Errorf("resendContacts query: %w", err)
	}
	defer rows.Close()

	type row struct {
		ownUserID string
		partner   *Participant
	}
	var entries []row
	for rows.Next() {
		var (
			partID    string
			ownUserID string
			name      *string
			specialty *string
			interests *string
			linkedin  *string
			userID    *string
		)
		if err := rows.Scan(&partID, &ownUserID, &name, &specialty, &interests, &linkedin, &userID); err != nil {
			return nil, fmt.Errorf("resendContacts scan: %w", err)
		}
		e := row{ownUserID: ownUserID}
		if name != nil && userID != nil {
			e.partner = &Participant{
				Name:           *name,
				Specialty:      *specialty,
				Interests:      *interests,
				LinkedIn:       linkedin,
				TelegramUserID: *userID,
			}
		}
		entries = append(entries, e)
	}

	handles, err := s.loadHandles(ctx)
	if err != nil {
		return nil, err
	}

	summary := &ResendSummary{Status: "ok", Matched: len(entries)}
	for _, e := range entries {
		if e.partner == nil {
			summary.Skipped++
			continue
		}
		msg := telegram.Message{
			ChatID:                e.ownUserID,
			Text:                  introText(*e.partner, handles[e.partner.TelegramUserID]),
			ParseMode:             "HTML",
			DisableWebPagePreview: true,
		}
		if err := s.tg.SendMessage(ctx, msg); err != nil {
			logger.Log.Warn("contact re-send failed", zap.String("to", e.ownUserID), zap.Error(err))
			summary.Skipped++
		} else {
			summary.Sent++
		}
		time.Sleep(telegram.SendDelay)
	}

	return summary, nil
}

// CancelByUser withdraws the caller's own PAID sign-up for the upcoming
// match Friday: refund first, then REFUNDED_BY_USER.
func (s *Service) CancelByUser(ctx context.Context, telegramUserID string) error {
	target := NextFriday(s.now())

	var p Participant
	err := s.pool.QueryRow(ctx,
		`SELECT p.id, p.profile_id, pr.telegram_user_id, p.provider_charge_id
		 FROM rc_participations p
		 JOIN rc_profiles pr ON pr.id = p.profile_id
		 WHERE pr.telegram_user_id = $1 AND p.match_date = $2 AND p.status = $3`,
		telegramUserID, target, StatusPaid,
	).Scan(&p.ParticipationID, &p.ProfileID, &p.TelegramUserID, &p.ProviderChargeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("cancelByUser lookup: %w", err)
	}

	if p.ProviderChargeID != nil && *p.ProviderChargeID != "" {
		userID, err := strconv.ParseInt(p.TelegramUserID, 10, 64)
		if err != nil {
			return fmt.Errorf("cancelByUser: telegram id %q is not refundable", p.TelegramUserID)
		}
		if err := s.tg.RefundStarPayment(ctx, userID, *p.ProviderChargeID); err != nil {
			return err
		}
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE rc_participations SET status = $2 WHERE id = $1 AND status = $3`,
		p.ParticipationID, StatusRefundedByUser, StatusPaid,
	)
	if err != nil {
		return fmt.Errorf("cancelByUser update: %w", err)
	}

	s.notify(ctx, p.TelegramUserID,
		"👌 Your Random Coffee participation has been cancelled and the payment refunded. "+
			"Hope to see you another week!")
	return nil
}

// CancelByAdmin removes one participation by id. With no charge id nothing
// was collected and the row is closed as CANCELLED_NO_CHARGE; otherwise the
// refund goes out first and the row becomes REFUNDED_BY_ADMIN.
func (s *Service) CancelByAdmin(ctx context.Context, participationID string) error {
	var p Participant
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT p.id, p.profile_id, pr.telegram_user_id, p.provider_charge_id, p.status
		 FROM rc_participations p
		 JOIN rc_profiles pr ON pr.id = p.profile_id
		 WHERE p.id = $1`,
		participationID,
	).Scan(&p.ParticipationID, &p.ProfileID, &p.TelegramUserID, &p.ProviderChargeID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("cancelByAdmin lookup: %w", err)
	}
	if status != StatusPaid {
		return ErrInvalidState
	}

	if p.ProviderChargeID == nil || *p.ProviderChargeID == "" {
		_, err = s.pool.Exec(ctx,
			`UPDATE rc_participations SET status = $2 WHERE id = $1 AND status = $3`,
			p.ParticipationID, StatusNoCharge, StatusPaid,
		)
		if err != nil {
			return fmt.Errorf("cancelByAdmin update: %w", err)
		}
		return nil
	}

	userID, err := strconv.ParseInt(p.TelegramUserID, 10, 64)
	if err != nil {
		return fmt.Errorf("cancelByAdmin: telegram id %q is not refundable", p.TelegramUserID)
	}
	if err := s.tg.RefundStarPayment(ctx, userID, *p.ProviderChargeID); err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE rc_participations SET status = $2 WHERE id = $1 AND status = $3`,
		p.ParticipationID, StatusRefundedByAdmin, StatusPaid,
	)
	if err != nil {
		return fmt.Errorf("cancelByAdmin update: %w", err)
	}

	s.notify(ctx, p.TelegramUserID,
		"ℹ️ Your Random Coffee participation was cancelled by the organizers and the payment refunded.")
	return nil
}

// IsParticipating reports whether the user holds a PAID or MATCHED
// participation for the upcoming match Friday.
func (s *Service) IsParticipating(ctx context.Context, telegramUserID string) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM rc_participations p
		   JOIN rc_profiles pr ON pr.id = p.profile_id
		   WHERE pr.telegram_user_id = $1 AND p.match_date = $2 AND p.status IN ($3, $4)
		 )`,
		telegramUserID, NextFriday(s.now()), StatusPaid, StatusMatched,
	).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("isParticipating: %w", err)
	}
	return active, nil
}

// GetProfile returns the long-lived profile for a Telegram user, or
// ErrNotFound when none exists yet.
func (s *Service) GetProfile(ctx context.Context, telegramUserID string) (*model.Profile, error) {
	var p model.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id, telegram_user_id, name, specialty, interests, linkedin, created_at
		 FROM rc_profiles WHERE telegram_user_id = $1`,
		telegramUserID,
	).Scan(&p.ID, &p.TelegramUserID, &p.Name, &p.Specialty, &p.Interests, &p.LinkedIn, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getProfile: %w", err)
	}
	return &p, nil
}

// ─── Loaders ─────────────────────────────────────────────────────────────────

func (s *Service) loadParticipants(ctx context.Context, date time.Time) ([]Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.profile_id, pr.telegram_user_id, pr.name, pr.specialty, pr.interests,
		        pr.linkedin, p.provider_charge_id
		 FROM rc_participations p
		 JOIN rc_profiles pr ON pr.id = p.profile_id
		 WHERE p.match_date = $1 AND p.status = $2
		 ORDER BY p.created_at`,
		date, StatusPaid,
	)
	if err != nil {
		return nil, fmt.Errorf("loadParticipants query: %w", err)
	}
	defer rows.Close()

	participants := make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err := rows.Scan(
			&p.ParticipationID, &p.ProfileID, &p.TelegramUserID, &p.Name,
			&p.Specialty, &p.Interests, &p.LinkedIn, &p.ProviderChargeID,
		); err != nil {
			return nil, fmt.Errorf("loadParticipants scan: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, nil
}

func (s *Service) loadHistory(ctx context.Context, participants []Participant) ([]model.HistoryPair, error) {
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.ProfileID
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, met_on, profile_a, profile_b FROM rc_history
		 WHERE profile_a = ANY($1) OR profile_b = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("loadHistory query: %w", err)
	}
	defer rows.Close()

	history := make([]model.HistoryPair, 0)
	for rows.Next() {
		var h model.HistoryPair
		if err := rows.Scan(&h.ID, &h.MetOn, &h.ProfileA, &h.ProfileB); err != nil {
			return nil, fmt.Errorf("loadHistory scan: %w", err)
		}
		history = append(history, h)
	}
	return history, nil
}

// loadHandles maps Telegram user ids to their latest known username, taken
// from past Random Coffee orders. Usernames change, so the newest order wins.
func (s *Service) loadHandles(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (buyer_id) buyer_id, buyer_handle
		 FROM tg_orders
		 WHERE kind = 'RANDOM_COFFEE' AND buyer_handle IS NOT NULL
		 ORDER BY buyer_id, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("loadHandles query: %w", err)
	}
	defer rows.Close()

	handles := make(map[string]string)
	for rows.Next() {
		var userID, handle string
		if err := rows.Scan(&userID, &handle); err != nil {
			return nil, fmt.Errorf("loadHandles scan: %w", err)
		}
		handles[userID] = handle
	}
	return handles, nil
}

func (s *Service) notify(ctx context.Context, chatID, text string) {
	if err := s.tg.SendMessage(ctx, telegram.Message{ChatID: chatID, Text: text}); err != nil {
		logger.Log.Warn("notification failed", zap.String("to", chatID), zap.Error(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, channel string, payload map[string]string) {
	event, _ := json.Marshal(payload)
	if err := s.rdb.Publish(ctx, channel, event).Err(); err != nil {
		logger.Log.Warn("publish "+channel+" failed", zap.Error(err))
	}
}
