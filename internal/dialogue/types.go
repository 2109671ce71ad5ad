package dialogue

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a civil calendar date with no time zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate validates y/m/d against the calendar. Day 31 of a 30-day month is rejected
// rather than normalized into the following month.
func NewDate(year int, month time.Month, day int) (Date, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return Date{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, false
	}
	return Date{Year: year, Month: month, Day: day}, true
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO "2006-01-02" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("dialogue: parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.midnight().AddDate(0, 0, n))
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.midnight().Before(o.midnight())
}

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool {
	return o.Before(d)
}

func (d Date) Weekday() time.Weekday {
	return d.midnight().Weekday()
}

// String renders the ISO form used for persistence.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Display renders dd/mm/yyyy, the form clients see in replies.
func (d Date) Display() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

// TimeOfDay is a wall-clock time with minute precision. "HH:MM" is its canonical
// form everywhere a time is compared or persisted.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// NewTimeOfDay validates hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, bool) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: hour, Minute: minute}, true
}

// ParseTimeOfDay accepts "H:MM", "HH:MM" and "HH:MM:SS"; seconds are dropped.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("dialogue: parse time %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) > 2 {
		return TimeOfDay{}, fmt.Errorf("dialogue: parse time %q: bad hour", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return TimeOfDay{}, fmt.Errorf("dialogue: parse time %q: bad minute", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return TimeOfDay{}, fmt.Errorf("dialogue: parse time %q: bad seconds", s)
		}
	}
	t, ok := NewTimeOfDay(hour, minute)
	if !ok {
		return TimeOfDay{}, fmt.Errorf("dialogue: parse time %q: out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// Status is the persisted appointment status. Values match the rows written by the
// booking flow.
type Status string

const (
	StatusScheduled   Status = "Agendado"
	StatusConfirmed   Status = "Confirmado"
	StatusCancelled   Status = "Cancelado"
	StatusRescheduled Status = "Reagendado"
)

// Terminal reports whether the status ends a dialogue episode.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusRescheduled
}

// Appointment is the persisted booking as seen by the dialogue engine.
type Appointment struct {
	ID            string
	CompanyID     string
	AttendantID   string
	ScheduledDate Date
	ScheduledTime TimeOfDay
	Status        Status
	Rescheduling  bool
	ProposedDate  *Date
	ProposedTime  *TimeOfDay
	DialogueOpen  bool
	ReminderSent  bool
	// Version is the compare-and-set token; every successful update bumps it.
	Version int64
}

// Proposal is a complete candidate slot awaiting the client's explicit confirmation.
type Proposal struct {
	Date Date
	Time TimeOfDay
}

// Proposal returns the pending proposal, or nil unless both halves are set while
// rescheduling.
func (a Appointment) Proposal() *Proposal {
	if !a.Rescheduling || a.ProposedDate == nil || a.ProposedTime == nil {
		return nil
	}
	return &Proposal{Date: *a.ProposedDate, Time: *a.ProposedTime}
}

func (a Appointment) clearProposal() Appointment {
	a.ProposedDate = nil
	a.ProposedTime = nil
	return a
}

// State is the dialogue state derived from the persisted flags.
type State string

const (
	StateScheduled     State = "scheduled"
	StateOpen          State = "open"
	StateProposingSlot State = "proposing_slot"
	StateConfirmed     State = "confirmed"
	StateCancelled     State = "cancelled"
	StateRescheduled   State = "rescheduled"
)

// StateOf derives the dialogue state of an appointment.
func StateOf(a Appointment) State {
	if a.Status == StatusCancelled {
		return StateCancelled
	}
	if !a.DialogueOpen {
		switch a.Status {
		case StatusConfirmed:
			return StateConfirmed
		case StatusRescheduled:
			return StateRescheduled
		default:
			return StateScheduled
		}
	}
	if a.Proposal() != nil {
		return StateProposingSlot
	}
	return StateOpen
}

// Sender identifies who wrote a conversation turn.
type Sender string

const (
	SenderClient Sender = "client"
	SenderSystem Sender = "system"
)

// Turn is one append-only entry of the conversation log.
type Turn struct {
	ID            string    `json:"id,omitempty"`
	AppointmentID string    `json:"appointment_id"`
	Sender        Sender    `json:"sender"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChatMessage is the role/content pair handed to the fallback responder.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)
