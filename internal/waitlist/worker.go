// Package waitlist rotates invites to move an appointment up when an earlier
// opening appears. An invite that goes unanswered for the invite TTL expires and
// the next waitlisted client of the same company is invited.
package waitlist

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
	defaultInviteTTL = 2 * time.Hour
	maxMessageRunes  = 800
	// claimAttempts bounds how many queue heads one expiry tries when other
	// workers keep winning the claim.
	claimAttempts = 3
)

// Store is the slice of the appointment store the invite rotation needs.
type Store interface {
	ListExpiredInvites(ctx context.Context, cutoff time.Time) ([]dialogue.Appointment, error)
	ExpireInvite(ctx context.Context, id string, cutoff time.Time) (bool, error)
	NextWaitlisted(ctx context.Context, companyID string) (dialogue.Appointment, bool, error)
	ActivateInvite(ctx context.Context, id string, at time.Time) (bool, error)
}

// Config tunes the worker. Zero values take defaults.
type Config struct {
	InviteTTL time.Duration
	Locale    dialogue.Locale
}

// Worker expires stale invites and invites the next client in each company's queue.
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
		panic("waitlist: store cannot be nil")
	}
	if turns == nil {
		panic("waitlist: turn log cannot be nil")
	}
	if clock == nil {
		clock = dialogue.SystemClock{}
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = defaultInviteTTL
	}
	if cfg.Locale == "" {
		cfg.Locale = dialogue.LocalePT
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{store: store, turns: turns, clock: clock, cfg: cfg, metrics: m, logger: logger}
}

var (
	errAlreadyExpired = errors.New("waitlist: invite already expired")
	errQueueEmpty     = errors.New("waitlist: queue empty")
)

// ProcessExpired expires every invite older than the TTL and returns how many
// replacement invites were sent.
func (w *Worker) ProcessExpired(ctx context.Context) (int, error) {
	now := w.clock.Now().UTC()
	cutoff := now.Add(-w.cfg.InviteTTL)
	expired, err := w.store.ListExpiredInvites(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("waitlist: list expired: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	w.logger.Info("waitlist: processing expired invites", "count", len(expired))

	sent := 0
	for _, appt := range expired {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		next, err := w.rotate(ctx, appt, cutoff, now)
		switch {
		case errors.Is(err, errAlreadyExpired):
			w.metrics.ObserveInvite("skipped")
		case errors.Is(err, errQueueEmpty):
			w.metrics.ObserveInvite("empty")
			w.logger.Info("waitlist: no client waiting", "company_id", appt.CompanyID, "expired_id", appt.ID)
		case err != nil:
			w.metrics.ObserveInvite("error")
			w.logger.Error("waitlist: rotation failed", "company_id", appt.CompanyID, "expired_id", appt.ID, "error", err)
		default:
			w.metrics.ObserveInvite("sent")
			w.logger.Info("waitlist: invite sent", "company_id", appt.CompanyID, "expired_id", appt.ID, "appointment_id", next)
			sent++
		}
	}
	return sent, nil
}

// rotate expires one invite and hands the opening to the next client in line. It
// returns the id of the newly invited appointment.
func (w *Worker) rotate(ctx context.Context, expired dialogue.Appointment, cutoff, now time.Time) (string, error) {
	ok, err := w.store.ExpireInvite(ctx, expired.ID, cutoff)
	if err != nil {
		return "", fmt.Errorf("expire: %w", err)
	}
	if !ok {
		return "", errAlreadyExpired
	}
	w.metrics.ObserveInvite("expired")

	for attempt := 0; attempt < claimAttempts; attempt++ {
		next, found, err := w.store.NextWaitlisted(ctx, expired.CompanyID)
		if err != nil {
			return "", fmt.Errorf("next in queue: %w", err)
		}
		if !found {
			return "", errQueueEmpty
		}
		claimed, err := w.store.ActivateInvite(ctx, next.ID, now)
		if err != nil {
			return "", fmt.Errorf("activate %s: %w", next.ID, err)
		}
		if !claimed {
			continue
		}
		msg := truncate(dialogue.WaitlistInviteMessage(w.cfg.Locale, next.ScheduledDate, next.ScheduledTime), maxMessageRunes)
		turn := dialogue.Turn{AppointmentID: next.ID, Sender: dialogue.SenderSystem, Text: msg, Timestamp: now}
		if err := w.turns.Append(ctx, turn); err != nil {
			return "", fmt.Errorf("append invite for %s after claim: %w", next.ID, err)
		}
		return next.ID, nil
	}
	return "", fmt.Errorf("queue head for %s kept moving after %d attempts", expired.CompanyID, claimAttempts)
}

// Run calls ProcessExpired immediately and then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := w.ProcessExpired(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("waitlist: batch failed", "error", err)
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
	return string([]rune(s)[:max])
}
