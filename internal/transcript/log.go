package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/apptreply/internal/dialogue"
)

const (
	defaultTTL    = 30 * 24 * time.Hour
	defaultMaxLen = 200
)

// Log is the append-only conversation log of an appointment, kept as a capped Redis
// list that expires after a period of silence.
type Log struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
	maxLen int64
}

// Option configures a Log.
type Option func(*Log)

// WithTTL sets how long a conversation survives without new turns.
func WithTTL(ttl time.Duration) Option {
	return func(l *Log) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithMaxLen caps how many turns are kept per appointment.
func WithMaxLen(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxLen = int64(n)
		}
	}
}

// WithTracer overrides the tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Log) {
		if tracer != nil {
			l.tracer = tracer
		}
	}
}

func NewLog(client *redis.Client, opts ...Option) *Log {
	if client == nil {
		panic("transcript: redis client cannot be nil")
	}
	l := &Log{
		redis:  client,
		tracer: otel.Tracer("apptreply.internal.transcript"),
		ttl:    defaultTTL,
		maxLen: defaultMaxLen,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append adds a turn to the end of the appointment's log.
func (l *Log) Append(ctx context.Context, turn dialogue.Turn) error {
	ctx, span := l.tracer.Start(ctx, "transcript.append")
	defer span.End()

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(turn)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: failed to marshal turn: %w", err)
	}

	key := turnsKey(turn.AppointmentID)
	_, err = l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -l.maxLen, -1)
		pipe.Expire(ctx, key, l.ttl)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: failed to append turn: %w", err)
	}
	return nil
}

// Last returns up to n most recent turns, oldest first.
func (l *Log) Last(ctx context.Context, appointmentID string, n int) ([]dialogue.Turn, error) {
	ctx, span := l.tracer.Start(ctx, "transcript.last")
	defer span.End()

	if n <= 0 {
		return nil, nil
	}
	raw, err := l.redis.LRange(ctx, turnsKey(appointmentID), int64(-n), -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: failed to load turns: %w", err)
	}

	turns := make([]dialogue.Turn, 0, len(raw))
	for _, item := range raw {
		var turn dialogue.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("transcript: failed to decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func turnsKey(appointmentID string) string {
	return fmt.Sprintf("apptreply:turns:%s", appointmentID)
}
