package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wolfman30/apptreply/internal/app/bootstrap"
	"github.com/wolfman30/apptreply/internal/appointments"
	appconfig "github.com/wolfman30/apptreply/internal/config"
	"github.com/wolfman30/apptreply/internal/dialogue"
	"github.com/wolfman30/apptreply/internal/observability/metrics"
	"github.com/wolfman30/apptreply/internal/reminders"
	"github.com/wolfman30/apptreply/internal/transcript"
	"github.com/wolfman30/apptreply/internal/waitlist"
	"github.com/wolfman30/apptreply/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).With("component", "reminder-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for the conversation log", "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer redisClient.Close()

	store := appointments.NewStore(pool)
	turns := transcript.NewLog(redisClient, transcript.WithTTL(cfg.TurnTTL), transcript.WithMaxLen(cfg.TurnLogMax))
	locale := dialogue.ParseLocale(cfg.DefaultLocale)
	dialogueMetrics := metrics.NewDialogueMetrics(nil)

	reminderWorker := reminders.NewWorker(
		store,
		turns,
		dialogue.SystemClock{},
		reminders.Config{
			LeadDays: cfg.ReminderLeadDays,
			Locale:   locale,
			Location: cfg.Location(),
		},
		dialogueMetrics,
		logger,
	)
	inviteWorker := waitlist.NewWorker(
		store,
		turns,
		dialogue.SystemClock{},
		waitlist.Config{InviteTTL: cfg.WaitlistInviteTTL, Locale: locale},
		dialogueMetrics,
		logger.With("worker", "waitlist"),
	)

	logger.Info("reminder worker started",
		"interval", cfg.ReminderInterval.String(),
		"lead_days", cfg.ReminderLeadDays,
		"waitlist_interval", cfg.WaitlistInterval.String(),
		"invite_ttl", cfg.WaitlistInviteTTL.String(),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reminderWorker.Run(ctx, cfg.ReminderInterval)
	}()
	go func() {
		defer wg.Done()
		inviteWorker.Run(ctx, cfg.WaitlistInterval)
	}()
	wg.Wait()
	logger.Info("reminder worker stopped")
}
