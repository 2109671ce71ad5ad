package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/wolfman30/apptreply/internal/dialogue"
	"github.com/wolfman30/apptreply/internal/observability/metrics"
	"github.com/wolfman30/apptreply/pkg/logging"
)

const (
	defaultLeadDays = 3
	maxMessageRunes = 800
)

// Store is the slice of the appointment store the dispatcher needs.
type Store interface {
	ListDueReminders(ctx context.Context, from, to dialogue.Date) ([]dialogue.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) (bool, error)
}

// Config tunes the worker. Zero values take defaults.
type Config struct {
	LeadDays int
	Locale   dialogue.Locale
	Location *time.Location
}

// Worker writes reminder messages into the conversation log of upcoming appointments
// and opens their dialogue so the client can answer.
type Worker struct {
	store   Store
	turns   dialogue.TurnLog
	clock   dialogue.Clock
	cfg     Config
	metrics *metrics.DialogueMetrics
	logger  *logging.Logger
}

func NewWorker(store Store, turns dialogue.TurnLog, clock dialogue.Clock, cfg Config, m *metrics.DialogueMetrics, logger *logging.Logger) *Worker {
	if store == nil {
		panic("reminders: store cannot be nil")
	}
	if turns == nil {
		panic("reminders: turn log cannot be nil")
	}
	if clock == nil {
		clock = dialogue.SystemClock{}
	}
	if cfg.LeadDays <= 0 {
		cfg.LeadDays = defaultLeadDays
	}
	if cfg.Locale == "" {
		cfg.Locale = dialogue.LocalePT
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{store: store, turns: turns, clock: clock, cfg: cfg, metrics: m, logger: logger}
}

// ProcessDue dispatches every due reminder and returns how many were sent.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	now := w.clock.Now().In(w.cfg.Location)
	today := dialogue.DateOf(now)
	due, err := w.store.ListDueReminders(ctx, today, today.AddDays(w.cfg.LeadDays))
	if err != nil {
		return 0, fmt.Errorf("reminders: list due: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	w.logger.Info("reminders: processing due appointments", "count", len(due))

	sent := 0
	for _, appt := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		err := w.processOne(ctx, appt, now)
		switch {
		case errors.Is(err, errAlreadyHandled):
			w.metrics.ObserveReminder("skipped")
			w.logger.Info("reminders: appointment already handled", "appointment_id", appt.ID)
		case err != nil:
			w.metrics.ObserveReminder("error")
			w.logger.Error("reminders: failed to dispatch", "appointment_id", appt.ID, "error", err)
		default:
			w.metrics.ObserveReminder("sent")
			sent++
		}
	}
	return sent, nil
}

var errAlreadyHandled = errors.New("reminders: already handled")

// processOne claims the reminder before writing it so two workers never send the
// same one. A reminder whose turn append fails after the claim is not retried.
func (w *Worker) processOne(ctx context.Context, appt dialogue.Appointment, now time.Time) error {
	ok, err := w.store.MarkReminderSent(ctx, appt.ID)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if !ok {
		return errAlreadyHandled
	}
	msg := truncate(dialogue.ReminderMessage(w.cfg.Locale, appt.ScheduledDate, appt.ScheduledTime), maxMessageRunes)
	turn := dialogue.Turn{AppointmentID: appt.ID, Sender: dialogue.SenderSystem, Text: msg, Timestamp: now}
	if err := w.turns.Append(ctx, turn); err != nil {
		return fmt.Errorf("append turn after claim: %w", err)
	}
	w.logger.Info("reminders: dialogue unlocked",
		"appointment_id", appt.ID,
		"date", appt.ScheduledDate.String(),
		"time", appt.ScheduledTime.String(),
	)
	return nil
}

// Run calls ProcessDue immediately and then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := w.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("reminders: batch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
