package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/apptreply/internal/dialogue"
)

// ListExpiredInvites returns appointments whose waitlist invite is still active
// but was sent before cutoff.
func (s *Store) ListExpiredInvites(ctx context.Context, cutoff time.Time) ([]dialogue.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.list_expired_invites")
	defer span.End()

	rows, err := s.db.Query(ctx, selectAppointment+`
		WHERE invite_active = TRUE AND invite_attempted_at < $1
		ORDER BY invite_attempted_at`,
		cutoff,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: list expired invites: %w", err)
	}
	defer rows.Close()

	var out []dialogue.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("appointments: scan expired invite: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: iterate expired invites: %w", err)
	}
	return out, nil
}

// ExpireInvite deactivates an invite sent before cutoff. It reports false when the
// invite was already expired or answered.
func (s *Store) ExpireInvite(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.expire_invite", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	ct, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET invite_active = FALSE, updated_at = now()
		WHERE id = $1 AND invite_active = TRUE AND invite_attempted_at < $2`,
		id, cutoff,
	)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("appointments: expire invite %s: %w", id, err)
	}
	return ct.RowsAffected() > 0, nil
}

// NextWaitlisted returns the company's earliest scheduled waitlisted appointment
// that has never been invited. The bool is false when the queue is empty.
func (s *Store) NextWaitlisted(ctx context.Context, companyID string) (dialogue.Appointment, bool, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.next_waitlisted", trace.WithAttributes(attribute.String("company.id", companyID)))
	defer span.End()

	appt, err := scanAppointment(s.db.QueryRow(ctx, selectAppointment+`
		WHERE company_id = $1 AND waitlisted = TRUE AND status = $2
		  AND invite_active = FALSE AND invite_attempted_at IS NULL
		ORDER BY scheduled_date, scheduled_time
		LIMIT 1`,
		companyID, string(dialogue.StatusScheduled),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dialogue.Appointment{}, false, nil
		}
		span.RecordError(err)
		return dialogue.Appointment{}, false, fmt.Errorf("appointments: next waitlisted for %s: %w", companyID, err)
	}
	return appt, true, nil
}

// ActivateInvite marks the appointment as invited at the given time. It reports
// false when another worker invited it first or it left the waitlist.
func (s *Store) ActivateInvite(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.activate_invite", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	ct, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET invite_active = TRUE, invite_attempted_at = $2, updated_at = now()
		WHERE id = $1 AND waitlisted = TRUE AND status = $3
		  AND invite_active = FALSE AND invite_attempted_at IS NULL`,
		id, at, string(dialogue.StatusScheduled),
	)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("appointments: activate invite %s: %w", id, err)
	}
	return ct.RowsAffected() > 0, nil
}
