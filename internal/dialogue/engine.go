package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/apptreply/internal/observability/metrics"
	"github.com/wolfman30/apptreply/pkg/logging"
)

const (
	defaultStoreTimeout     = 3 * time.Second
	defaultResponderTimeout = 8 * time.Second
)

// Deps are the engine's collaborators. Store, Slots and Turns are required.
type Deps struct {
	Store     AppointmentStore
	Slots     SlotSource
	Turns     TurnLog
	Responder Responder
	Clock     Clock
	Location  *time.Location
	Metrics   *metrics.DialogueMetrics
	Logger    *logging.Logger
	Tracer    trace.Tracer
}

type settings struct {
	storeTimeout     time.Duration
	responderTimeout time.Duration
	historyWindow    int
	maxReplyRunes    int
	defaultLocale    Locale
}

// Option tunes the engine.
type Option func(*settings)

// WithStoreTimeout bounds every appointment, slot and turn-log call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithResponderTimeout bounds the fallback responder call.
func WithResponderTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.responderTimeout = d
		}
	}
}

// WithHistoryWindow sets how many recent turns the responder sees.
func WithHistoryWindow(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

// WithMaxReplyRunes caps the length of responder replies.
func WithMaxReplyRunes(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxReplyRunes = n
		}
	}
}

// WithDefaultLocale sets the reply language used when a message gives no hint.
func WithDefaultLocale(l Locale) Option {
	return func(s *settings) {
		if l != "" {
			s.defaultLocale = l
		}
	}
}

// Result is what one handled message produced.
type Result struct {
	Reply   string  `json:"reply"`
	Outcome Outcome `json:"outcome"`
	State   State   `json:"state"`
}

// Engine handles inbound client messages for appointments. It holds no per-session
// state; each call reads the appointment, decides and writes back with a
// compare-and-set.
type Engine struct {
	store     AppointmentStore
	turns     TurnLog
	clock     Clock
	location  *time.Location
	extractor *Extractor
	machine   *Machine
	settings  settings
	metrics   *metrics.DialogueMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

func NewEngine(deps Deps, opts ...Option) *Engine {
	if deps.Store == nil {
		panic("dialogue: appointment store cannot be nil")
	}
	if deps.Slots == nil {
		panic("dialogue: slot source cannot be nil")
	}
	if deps.Turns == nil {
		panic("dialogue: turn log cannot be nil")
	}
	s := settings{
		storeTimeout:     defaultStoreTimeout,
		responderTimeout: defaultResponderTimeout,
		historyWindow:    defaultHistoryWindow,
		maxReplyRunes:    defaultMaxReplyRunes,
		defaultLocale:    LocalePT,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("apptreply.internal.dialogue")
	}

	resolver := NewResolver(deps.Slots, s.storeTimeout, deps.Metrics, deps.Logger)
	gate := NewGate(deps.Responder, deps.Turns, GateConfig{
		HistoryWindow: s.historyWindow,
		Timeout:       s.responderTimeout,
		MaxReplyRunes: s.maxReplyRunes,
	}, deps.Metrics, deps.Logger)

	return &Engine{
		store:     deps.Store,
		turns:     deps.Turns,
		clock:     deps.Clock,
		location:  deps.Location,
		extractor: NewExtractor(),
		machine:   NewMachine(resolver, gate),
		settings:  s,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		tracer:    deps.Tracer,
	}
}

// HandleMessage runs one client message through classification, extraction,
// availability and the state machine, persists the resulting mutation and logs both
// turns. Only ErrAppointmentNotFound is returned as an error; every other failure
// becomes a state-preserving reply.
func (e *Engine) HandleMessage(ctx context.Context, appointmentID, text string) (Result, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "dialogue.handle_message",
		trace.WithAttributes(attribute.String("appointment.id", appointmentID)))
	defer span.End()

	now := e.clock.Now().In(e.location)

	appt, err := e.load(ctx, appointmentID)
	if errors.Is(err, ErrAppointmentNotFound) {
		span.RecordError(err)
		return Result{}, err
	}
	if err != nil {
		span.RecordError(err)
		e.logger.Error("appointment load failed", "appointment_id", appointmentID, "error", err)
		res := Result{
			Reply:   render(e.settings.defaultLocale, replyStoreUnavailable),
			Outcome: OutcomeStoreUnavailable,
		}
		e.appendTurn(ctx, appointmentID, SenderClient, text, now)
		e.appendTurn(ctx, appointmentID, SenderSystem, res.Reply, now)
		e.metrics.ObserveMessage("unknown", string(res.Outcome))
		return res, nil
	}

	e.appendTurn(ctx, appointmentID, SenderClient, text, now)

	cls, locale, decision := e.decide(ctx, appt, text, now)
	if decision.Update != nil {
		committed, err := e.commit(ctx, appt, decision)
		if errors.Is(err, ErrVersionConflict) {
			// Someone else wrote first: decide again from what they wrote.
			e.logger.Info("version conflict; re-deciding", "appointment_id", appointmentID, "version", appt.Version)
			var fresh Appointment
			fresh, err = e.load(ctx, appointmentID)
			if err == nil {
				appt = fresh
				cls, locale, decision = e.decide(ctx, fresh, text, now)
				committed = fresh
				if decision.Update != nil {
					committed, err = e.commit(ctx, fresh, decision)
				}
			}
		}
		if err != nil {
			span.RecordError(err)
			e.logger.Error("appointment update failed", "appointment_id", appointmentID, "outcome", decision.Outcome, "error", err)
			decision = Decision{Outcome: OutcomeStoreUnavailable, Reply: render(locale, replyStoreUnavailable)}
		} else {
			appt = committed
		}
	}

	e.appendTurn(ctx, appointmentID, SenderSystem, decision.Reply, now)

	span.SetAttributes(
		attribute.String("dialogue.intent", string(cls.Intent)),
		attribute.String("dialogue.outcome", string(decision.Outcome)),
	)
	if oerr := decision.Outcome.Err(); oerr != nil {
		span.RecordError(oerr)
	}
	e.metrics.ObserveMessage(string(cls.Intent), string(decision.Outcome))
	e.metrics.ObserveHandleLatency(time.Since(start).Seconds())
	e.logger.Info("message handled",
		"appointment_id", appointmentID,
		"intent", cls.Intent,
		"outcome", decision.Outcome,
		"locale", locale,
	)

	return Result{Reply: decision.Reply, Outcome: decision.Outcome, State: StateOf(appt)}, nil
}

// Unlock opens the dialogue of an appointment so the client can answer. Cancelled
// appointments stay closed.
func (e *Engine) Unlock(ctx context.Context, appointmentID string) error {
	ctx, span := e.tracer.Start(ctx, "dialogue.unlock",
		trace.WithAttributes(attribute.String("appointment.id", appointmentID)))
	defer span.End()

	for attempt := 0; attempt < 2; attempt++ {
		appt, err := e.load(ctx, appointmentID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if appt.Status == StatusCancelled {
			return fmt.Errorf("%w: appointment %s is cancelled", ErrInvalidTransition, appointmentID)
		}
		if appt.DialogueOpen {
			return nil
		}
		next := appt
		next.DialogueOpen = true
		_, err = e.commit(ctx, appt, Decision{Outcome: OutcomeUnlocked, Update: &next})
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return err
		}
		e.logger.Info("dialogue unlocked", "appointment_id", appointmentID)
		return nil
	}
	return fmt.Errorf("dialogue: unlock %s: %w", appointmentID, ErrVersionConflict)
}

func (e *Engine) decide(ctx context.Context, appt Appointment, text string, now time.Time) (Classification, Locale, Decision) {
	cls := Classify(text, appt.Rescheduling && appt.ProposedDate != nil)

	var x Extraction
	if cls.Intent == IntentFreeText && appt.DialogueOpen {
		x = e.extractor.Extract(text, now)
		e.metrics.ObserveExtraction(x.Strategy)
	}

	locale := e.settings.defaultLocale
	switch {
	case cls.Locale != "":
		locale = cls.Locale
	case x.Locale != "":
		locale = x.Locale
	}

	d := e.machine.Decide(ctx, Input{
		Appointment:    appt,
		Classification: cls,
		Extraction:     x,
		Locale:         locale,
		Today:          DateOf(now),
	})
	return cls, locale, d
}

// commit writes decision.Update guarded by prev's version and returns the
// snapshot as stored.
func (e *Engine) commit(ctx context.Context, prev Appointment, decision Decision) (Appointment, error) {
	next := *decision.Update
	next.ID = prev.ID
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	if err := e.store.UpdateIfVersion(ctx, next, prev.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return Appointment{}, err
		}
		return Appointment{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	next.Version = prev.Version + 1
	return next, nil
}

func (e *Engine) load(ctx context.Context, appointmentID string) (Appointment, error) {
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	appt, err := e.store.Get(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return Appointment{}, err
		}
		return Appointment{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return appt, nil
}

// appendTurn logs a turn; a failing log never blocks the reply.
func (e *Engine) appendTurn(ctx context.Context, appointmentID string, sender Sender, text string, at time.Time) {
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	turn := Turn{AppointmentID: appointmentID, Sender: sender, Text: text, Timestamp: at}
	if err := e.turns.Append(ctx, turn); err != nil {
		e.logger.Warn("conversation turn not recorded",
			"appointment_id", appointmentID,
			"sender", sender,
			"error", err,
		)
	}
}

func (e *Engine) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.settings.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.settings.storeTimeout)
}
