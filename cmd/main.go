// evsi-store backend — Telegram Stars payments for ad placements and the
// weekly Random Coffee draw.
//
// One binary serving:
//   - the Telegram webhook (pre-checkout + successful-payment events)
//   - the Mini App JSON API (catalog, invoices, AI resume, coffee profile)
//   - the secret-gated cron trigger and the moderation endpoints
//   - an in-process cron scheduler (Thursday reminders, Friday matching)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/henzerboss/evsi-store/internal/ai"
	"github.com/henzerboss/evsi-store/internal/coffee"
	"github.com/henzerboss/evsi-store/internal/config"
	"github.com/henzerboss/evsi-store/internal/db"
	"github.com/henzerboss/evsi-store/internal/logger"
	"github.com/henzerboss/evsi-store/internal/order"
	"github.com/henzerboss/evsi-store/internal/scheduler"
	"github.com/henzerboss/evsi-store/internal/telegram"
	"github.com/henzerboss/evsi-store/internal/web"
)

const version = "1.0.0"

func main() {
	seed := flag.Bool("seed", false, "upsert the channel catalog on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("postgres connect failed", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Log.Fatal("migration failed", zap.Error(err))
	}
	if *seed {
		if err := db.SeedChannels(ctx, pool); err != nil {
			logger.Log.Fatal("channel seed failed", zap.Error(err))
		}
		logger.Log.Info("channel catalog seeded")
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal("redis connect failed", zap.Error(err))
	}
	defer rdb.Close()

	// ── Services ─────────────────────────────────────────────────────────────
	tg := telegram.New(cfg.BotToken)
	rewriter := ai.NewGeminiRewriter(cfg.GeminiAPIKey)

	orderSvc := order.NewService(pool, rdb, tg, rewriter, order.Options{
		RandomCoffeePriceStars: cfg.RandomCoffeePriceStars,
		ResumeAIPriceStars:     cfg.ResumeAIPriceStars,
		AdminChatID:            cfg.AdminChatID,
	})
	coffeeSvc := coffee.NewService(pool, rdb, tg, coffee.Options{
		MiniAppURL:  cfg.MiniAppURL,
		AdminChatID: cfg.AdminChatID,
	})

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	h := web.NewHandler(orderSvc, coffeeSvc, web.Options{
		CronSecret:             cfg.CronSecret,
		Timezone:               cfg.Timezone,
		RandomCoffeePriceStars: cfg.RandomCoffeePriceStars,
		ResumeAIPriceStars:     cfg.ResumeAIPriceStars,
	})
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Log.Info("listening", zap.String("port", cfg.Port), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("http server error", zap.Error(err))
		}
	}()

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(coffeeSvc, cfg.Timezone)
	if err := sched.Start(ctx); err != nil {
		logger.Log.Fatal("scheduler start failed", zap.Error(err))
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("shutdown error", zap.Error(err))
	}
	logger.Log.Info("stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "evsi-store",
		"version": version,
	})
}
