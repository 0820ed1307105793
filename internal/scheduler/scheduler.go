// Package scheduler wires up the cron jobs that drive the weekly Random
// Coffee cycle: reminders on Thursday, the matching run on Friday.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/henzerboss/evsi-store/internal/coffee"
	"github.com/henzerboss/evsi-store/internal/logger"
)

const (
	reminderSpec = "0 10 * * THU"
	matchingSpec = "0 10 * * FRI"
)

// Scheduler wraps robfig/cron and manages the weekly jobs.
type Scheduler struct {
	cron   *cron.Cron
	coffee *coffee.Service
	loc    *time.Location
}

// New creates a Scheduler firing in the given timezone.
func New(coffeeSvc *coffee.Service, loc *time.Location) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		coffee: coffeeSvc,
		loc:    loc,
	}
}

// Start registers both jobs and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(reminderSpec, func() { s.runReminders(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc reminders: %w", err)
	}
	if _, err := s.cron.AddFunc(matchingSpec, func() { s.runMatching(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc matching: %w", err)
	}

	s.cron.Start()
	logger.Log.Info("cron started",
		zap.String("reminders", reminderSpec),
		zap.String("matching", matchingSpec),
		zap.String("tz", s.loc.String()))
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running job.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Log.Info("cron stopped")
}

func (s *Scheduler) runReminders(ctx context.Context) {
	summary, err := s.coffee.RunReminders(ctx)
	if err != nil {
		logger.Log.Error("reminder run failed", zap.Error(err))
		return
	}
	logger.Log.Info("reminder run complete",
		zap.Int("sent", summary.Sent), zap.Int("confirmed", summary.Confirmed))
}

func (s *Scheduler) runMatching(ctx context.Context) {
	date := coffee.Today(time.Now().In(s.loc))
	summary, err := s.coffee.RunMatching(ctx, date)
	if err != nil {
		logger.Log.Error("matching run failed", zap.Error(err))
		return
	}
	logger.Log.Info("matching run complete",
		zap.String("status", summary.Status),
		zap.Int("participants", summary.Participants),
		zap.Int("pairs", summary.Pairs),
		zap.Int("refunds", summary.Refunds))
}
