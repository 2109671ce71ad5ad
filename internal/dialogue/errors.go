package dialogue

import "errors"

var (
	// ErrAppointmentNotFound is the only error HandleMessage returns to callers.
	ErrAppointmentNotFound = errors.New("dialogue: appointment not found")
	// ErrVersionConflict means another request updated the appointment first.
	ErrVersionConflict = errors.New("dialogue: appointment changed concurrently")

	ErrExtractionAmbiguous  = errors.New("dialogue: no date or time found")
	ErrStoreUnavailable     = errors.New("dialogue: store unavailable")
	ErrResponderUnavailable = errors.New("dialogue: responder unavailable")
	ErrInvalidTransition    = errors.New("dialogue: invalid transition")
	ErrSlotRaceLost         = errors.New("dialogue: slot no longer available")
)

// Outcome names what a handled message did. It is returned to callers and used as a
// metrics label.
type Outcome string

const (
	OutcomeConfirmed            Outcome = "confirmed"
	OutcomeCancelled            Outcome = "cancelled"
	OutcomeRescheduled          Outcome = "rescheduled"
	OutcomeRescheduleStarted    Outcome = "reschedule_started"
	OutcomeProposalCleared      Outcome = "proposal_cleared"
	OutcomeSlotProposed         Outcome = "slot_proposed"
	OutcomeSlotUnavailable      Outcome = "slot_unavailable"
	OutcomeDateProposed         Outcome = "date_proposed"
	OutcomeNoAvailability       Outcome = "no_availability"
	OutcomeFallback             Outcome = "fallback"
	OutcomeDialogueClosed       Outcome = "dialogue_closed"
	OutcomeExtractionAmbiguous  Outcome = "extraction_ambiguous"
	OutcomeInvalidTransition    Outcome = "invalid_transition"
	OutcomeSlotRaceLost         Outcome = "slot_race_lost"
	OutcomeStoreUnavailable     Outcome = "store_unavailable"
	OutcomeResponderUnavailable Outcome = "responder_unavailable"
	OutcomeUnlocked             Outcome = "unlocked"
)

// Err maps failure outcomes to their sentinel error; successful outcomes map to nil.
func (o Outcome) Err() error {
	switch o {
	case OutcomeExtractionAmbiguous:
		return ErrExtractionAmbiguous
	case OutcomeStoreUnavailable:
		return ErrStoreUnavailable
	case OutcomeResponderUnavailable:
		return ErrResponderUnavailable
	case OutcomeInvalidTransition:
		return ErrInvalidTransition
	case OutcomeSlotRaceLost:
		return ErrSlotRaceLost
	default:
		return nil
	}
}
