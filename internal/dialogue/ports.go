package dialogue

import (
	"context"
	"time"
)

// AppointmentStore is the persisted view of appointments.
type AppointmentStore interface {
	Get(ctx context.Context, id string) (Appointment, error)
	// UpdateIfVersion writes the mutable fields of next only when the stored version
	// still equals expectedVersion. It returns ErrVersionConflict otherwise.
	UpdateIfVersion(ctx context.Context, next Appointment, expectedVersion int64) error
}

// SlotSource lists the bookable slots ("HH:MM" or "HH:MM:SS") of one attendant on one date.
type SlotSource interface {
	SlotsFor(ctx context.Context, companyID, attendantID string, date Date) ([]string, error)
}

// TurnLog is the append-only conversation log.
type TurnLog interface {
	Append(ctx context.Context, turn Turn) error
	Last(ctx context.Context, appointmentID string, n int) ([]Turn, error)
}

// Responder produces advisory free text for messages nothing structured matched.
type Responder interface {
	Respond(ctx context.Context, system string, history []ChatMessage) (string, error)
}

// Clock supplies "now".
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
