package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/apptreply/internal/dialogue"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes appointments and their bookable slots in Postgres.
type Store struct {
	db     DB
	tracer trace.Tracer
}

// NewStore creates a Postgres-backed appointment store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("appointments: db cannot be nil")
	}
	return &Store{db: db, tracer: otel.Tracer("apptreply.internal.appointments")}
}

const selectAppointment = `
	SELECT id, company_id, attendant_id, scheduled_date::text, scheduled_time, status,
	       rescheduling, COALESCE(proposed_date::text, ''), COALESCE(proposed_time, ''),
	       dialogue_open, reminder_sent, version
	FROM appointments`

// Get loads one appointment. Unknown ids return dialogue.ErrAppointmentNotFound.
func (s *Store) Get(ctx context.Context, id string) (dialogue.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.get", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	appt, err := scanAppointment(s.db.QueryRow(ctx, selectAppointment+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dialogue.Appointment{}, fmt.Errorf("appointments: get %s: %w", id, dialogue.ErrAppointmentNotFound)
		}
		span.RecordError(err)
		return dialogue.Appointment{}, fmt.Errorf("appointments: get %s: %w", id, err)
	}
	return appt, nil
}

// UpdateIfVersion writes the mutable fields of next when the row still carries
// expectedVersion, bumping the version.
func (s *Store) UpdateIfVersion(ctx context.Context, next dialogue.Appointment, expectedVersion int64) error {
	ctx, span := s.tracer.Start(ctx, "appointments.update", trace.WithAttributes(
		attribute.String("appointment.id", next.ID),
		attribute.Int64("appointment.version", expectedVersion),
	))
	defer span.End()

	var proposedDate, proposedTime any
	if next.ProposedDate != nil {
		proposedDate = next.ProposedDate.String()
	}
	if next.ProposedTime != nil {
		proposedTime = next.ProposedTime.String()
	}

	ct, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET scheduled_date = $3::date,
		    scheduled_time = $4,
		    status = $5,
		    rescheduling = $6,
		    proposed_date = $7::date,
		    proposed_time = $8,
		    dialogue_open = $9,
		    reminder_sent = $10,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND version = $2`,
		next.ID, expectedVersion,
		next.ScheduledDate.String(), next.ScheduledTime.String(), string(next.Status),
		next.Rescheduling, proposedDate, proposedTime,
		next.DialogueOpen, next.ReminderSent,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("appointments: update %s: %w", next.ID, err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var exists int
	if err := s.db.QueryRow(ctx, `SELECT 1 FROM appointments WHERE id = $1`, next.ID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("appointments: update %s: %w", next.ID, dialogue.ErrAppointmentNotFound)
		}
		span.RecordError(err)
		return fmt.Errorf("appointments: update %s: %w", next.ID, err)
	}
	return fmt.Errorf("appointments: update %s at version %d: %w", next.ID, expectedVersion, dialogue.ErrVersionConflict)
}

// SlotsFor lists the attendant's free slots on date: configured slots minus those
// taken by any appointment that is not cancelled.
func (s *Store) SlotsFor(ctx context.Context, companyID, attendantID string, date dialogue.Date) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.slots_for", trace.WithAttributes(
		attribute.String("company.id", companyID),
		attribute.String("attendant.id", attendantID),
		attribute.String("slot.date", date.String()),
	))
	defer span.End()

	rows, err := s.db.Query(ctx, `
		SELECT s.slot_time
		FROM available_slots s
		WHERE s.company_id = $1 AND s.attendant_id = $2 AND s.slot_date = $3::date
		  AND NOT EXISTS (
		      SELECT 1 FROM appointments a
		      WHERE a.company_id = s.company_id
		        AND a.attendant_id = s.attendant_id
		        AND a.scheduled_date = s.slot_date
		        AND left(a.scheduled_time, 5) = left(s.slot_time, 5)
		        AND a.status <> $4)
		ORDER BY s.slot_time`,
		companyID, attendantID, date.String(), string(dialogue.StatusCancelled),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: slots for %s/%s on %s: %w", companyID, attendantID, date, err)
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("appointments: scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: iterate slots: %w", err)
	}
	return slots, nil
}

// ListDueReminders returns scheduled appointments in [from, to] whose reminder has
// not been sent yet.
func (s *Store) ListDueReminders(ctx context.Context, from, to dialogue.Date) ([]dialogue.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.list_due_reminders")
	defer span.End()

	rows, err := s.db.Query(ctx, selectAppointment+`
		WHERE status = $1 AND reminder_sent = FALSE
		  AND scheduled_date BETWEEN $2::date AND $3::date
		ORDER BY scheduled_date, scheduled_time`,
		string(dialogue.StatusScheduled), from.String(), to.String(),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: list due reminders: %w", err)
	}
	defer rows.Close()

	var out []dialogue.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("appointments: scan due reminder: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: iterate due reminders: %w", err)
	}
	return out, nil
}

// MarkReminderSent flags the reminder as sent and opens the dialogue. It reports
// false when another dispatcher got there first or the appointment moved on.
func (s *Store) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.mark_reminder_sent", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	ct, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = TRUE, dialogue_open = TRUE, version = version + 1, updated_at = now()
		WHERE id = $1 AND reminder_sent = FALSE AND status = $2`,
		id, string(dialogue.StatusScheduled),
	)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("appointments: mark reminder sent %s: %w", id, err)
	}
	return ct.RowsAffected() > 0, nil
}

func scanAppointment(row pgx.Row) (dialogue.Appointment, error) {
	var (
		a                                    dialogue.Appointment
		scheduledDate, scheduledTime, status string
		proposedDate, proposedTime           string
	)
	if err := row.Scan(
		&a.ID, &a.CompanyID, &a.AttendantID, &scheduledDate, &scheduledTime, &status,
		&a.Rescheduling, &proposedDate, &proposedTime,
		&a.DialogueOpen, &a.ReminderSent, &a.Version,
	); err != nil {
		return dialogue.Appointment{}, err
	}

	var err error
	if a.ScheduledDate, err = dialogue.ParseDate(scheduledDate); err != nil {
		return dialogue.Appointment{}, err
	}
	if a.ScheduledTime, err = dialogue.ParseTimeOfDay(scheduledTime); err != nil {
		return dialogue.Appointment{}, err
	}
	a.Status = dialogue.Status(status)
	if proposedDate != "" {
		d, err := dialogue.ParseDate(proposedDate)
		if err != nil {
			return dialogue.Appointment{}, err
		}
		a.ProposedDate = &d
	}
	if proposedTime != "" {
		t, err := dialogue.ParseTimeOfDay(proposedTime)
		if err != nil {
			return dialogue.Appointment{}, err
		}
		a.ProposedTime = &t
	}
	return a, nil
}
