package dialogue

import "context"

// Input is everything the state machine needs to decide one message.
type Input struct {
	Appointment    Appointment
	Classification Classification
	Extraction     Extraction
	Locale         Locale
	// Today is the business-local date; proposals before it are refused.
	Today Date
}

// Decision is the machine's verdict. Update is the complete next snapshot of the
// appointment, or nil when nothing must be written.
type Decision struct {
	Outcome Outcome
	Update  *Appointment
	Reply   string
}

// Machine applies the confirm/deny/reschedule protocol. It reads availability
// through the resolver and consults the gate for unstructured messages, but never
// writes; the engine persists Decision.Update.
type Machine struct {
	resolver *Resolver
	gate     *Gate
}

func NewMachine(resolver *Resolver, gate *Gate) *Machine {
	if resolver == nil {
		panic("dialogue: resolver cannot be nil")
	}
	if gate == nil {
		panic("dialogue: gate cannot be nil")
	}
	return &Machine{resolver: resolver, gate: gate}
}

// Decide computes the next state and reply for one message.
func (m *Machine) Decide(ctx context.Context, in Input) Decision {
	a := in.Appointment
	loc := in.Locale

	// Closed dialogues answer with a fixed message whatever was sent.
	if !a.DialogueOpen {
		return reply(OutcomeDialogueClosed, render(loc, replyDialogueClosed))
	}

	switch in.Classification.Intent {
	case IntentConfirm:
		return m.confirm(ctx, a, loc)
	case IntentDeny:
		return deny(a, loc)
	case IntentRescheduleStart:
		next := a.clearProposal()
		next.Rescheduling = true
		next.DialogueOpen = true
		return Decision{Outcome: OutcomeRescheduleStarted, Update: changed(a, next), Reply: render(loc, replyRescheduleStarted)}
	case IntentTimeOnly:
		if a.ProposedDate != nil && in.Classification.Time != nil {
			return m.propose(ctx, a, *a.ProposedDate, in.Classification.Time, loc, in.Today)
		}
	}
	return m.freeText(ctx, a, in)
}

func (m *Machine) confirm(ctx context.Context, a Appointment, loc Locale) Decision {
	if !a.Rescheduling {
		next := a.clearProposal()
		next.Status = StatusConfirmed
		next.DialogueOpen = false
		return Decision{
			Outcome: OutcomeConfirmed,
			Update:  &next,
			Reply:   render(loc, replyConfirmed, a.ScheduledDate.Display(), a.ScheduledTime.String()),
		}
	}

	p := a.Proposal()
	if p == nil {
		return reply(OutcomeInvalidTransition, render(loc, replyNeedDateAndTime))
	}
	if !m.resolver.Verify(ctx, a.CompanyID, a.AttendantID, p.Date, p.Time) {
		next := a.clearProposal()
		return Decision{
			Outcome: OutcomeSlotRaceLost,
			Update:  &next,
			Reply:   render(loc, replySlotRaceLost, p.Date.Display(), p.Time.String()),
		}
	}

	next := a.clearProposal()
	next.ScheduledDate = p.Date
	next.ScheduledTime = p.Time
	next.Status = StatusRescheduled
	next.Rescheduling = false
	next.DialogueOpen = false
	return Decision{
		Outcome: OutcomeRescheduled,
		Update:  &next,
		Reply:   render(loc, replyRescheduled, p.Date.Display(), p.Time.String()),
	}
}

func deny(a Appointment, loc Locale) Decision {
	if !a.Rescheduling {
		next := a.clearProposal()
		next.Status = StatusCancelled
		next.DialogueOpen = false
		return Decision{Outcome: OutcomeCancelled, Update: &next, Reply: render(loc, replyCancelled)}
	}
	// A "no" during a reschedule only drops the pending proposal.
	next := a.clearProposal()
	return Decision{Outcome: OutcomeProposalCleared, Update: changed(a, next), Reply: render(loc, replyProposalCleared)}
}

func (m *Machine) freeText(ctx context.Context, a Appointment, in Input) Decision {
	x := in.Extraction
	loc := in.Locale
	switch {
	case x.Date != nil:
		return m.propose(ctx, a, *x.Date, x.Time, loc, in.Today)
	case x.Time != nil && a.Rescheduling && a.ProposedDate != nil:
		return m.propose(ctx, a, *a.ProposedDate, x.Time, loc, in.Today)
	case x.Time != nil:
		return reply(OutcomeExtractionAmbiguous, render(loc, replyWhichDay, x.Time.String()))
	}

	if !m.gate.Allow(a) {
		return reply(OutcomeDialogueClosed, render(loc, replyDialogueClosed))
	}
	text, outcome := m.gate.Reply(ctx, a, in.Classification.Text, loc)
	return reply(outcome, text)
}

// propose checks availability for date (and at, when given). A matched time becomes
// the pending proposal; a date alone becomes the proposed date and its slots are
// listed. Misses persist nothing.
func (m *Machine) propose(ctx context.Context, a Appointment, date Date, at *TimeOfDay, loc Locale, today Date) Decision {
	if date.Before(today) {
		return reply(OutcomeNoAvailability, render(loc, replyNoAvailability, date.Display()))
	}

	av := m.resolver.Resolve(ctx, a.CompanyID, a.AttendantID, date, at)

	if at != nil {
		if av.Matched() {
			d, t := date, *at
			next := a
			next.Rescheduling = true
			next.ProposedDate = &d
			next.ProposedTime = &t
			return Decision{
				Outcome: OutcomeSlotProposed,
				Update:  changed(a, next),
				Reply:   render(loc, replySlotProposed, date.Display(), at.String()),
			}
		}
		if av.NoAvailability() {
			return reply(OutcomeNoAvailability, render(loc, replySlotUnavailableNone, date.Display(), at.String()))
		}
		return reply(OutcomeSlotUnavailable, render(loc, replySlotUnavailable,
			date.Display(), at.String(), av.Date.Display(), formatSlots(av.Suggestions)))
	}

	if av.NoAvailability() {
		return reply(OutcomeNoAvailability, render(loc, replyNoAvailability, date.Display()))
	}
	d := av.Date
	next := a
	next.Rescheduling = true
	next.ProposedDate = &d
	next.ProposedTime = nil
	text := render(loc, replyDateProposed, d.Display(), formatSlots(av.Suggestions))
	if d != date {
		text = render(loc, replyDateAlternatives, date.Display(), d.Display(), formatSlots(av.Suggestions))
	}
	return Decision{Outcome: OutcomeDateProposed, Update: changed(a, next), Reply: text}
}

func reply(outcome Outcome, text string) Decision {
	return Decision{Outcome: outcome, Reply: text}
}

// changed returns &next when it differs from prev in any persisted field, else nil.
func changed(prev, next Appointment) *Appointment {
	if sameState(prev, next) {
		return nil
	}
	return &next
}

func sameState(a, b Appointment) bool {
	return a.ScheduledDate == b.ScheduledDate &&
		a.ScheduledTime == b.ScheduledTime &&
		a.Status == b.Status &&
		a.Rescheduling == b.Rescheduling &&
		a.DialogueOpen == b.DialogueOpen &&
		a.ReminderSent == b.ReminderSent &&
		equalPtr(a.ProposedDate, b.ProposedDate) &&
		equalPtr(a.ProposedTime, b.ProposedTime)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
