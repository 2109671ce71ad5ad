package dialogue

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/apptreply/internal/observability/metrics"
	"github.com/wolfman30/apptreply/pkg/logging"
)

const (
	defaultLookaheadDays  = 3
	defaultMaxSuggestions = 3
)

// Availability is the resolver's answer for one request.
type Availability struct {
	// Requested is the date the client asked for.
	Requested Date
	// Date is the date Slot or Suggestions refer to. It differs from Requested when
	// the requested day had no slots and a later day did.
	Date Date
	// Slot is the stored slot string that matched the requested time.
	Slot string
	// Suggestions are stored slot strings offered instead.
	Suggestions []string
	// SourceErrors counts slot queries that failed and were treated as empty.
	SourceErrors int
}

// Matched reports whether the requested time was found.
func (a Availability) Matched() bool {
	return a.Slot != ""
}

// NoAvailability reports whether neither a match nor any suggestion was found.
func (a Availability) NoAvailability() bool {
	return a.Slot == "" && len(a.Suggestions) == 0
}

// Resolver answers slot questions against a SlotSource. It never writes.
type Resolver struct {
	slots          SlotSource
	timeout        time.Duration
	lookaheadDays  int
	maxSuggestions int
	metrics        *metrics.DialogueMetrics
	logger         *logging.Logger
}

// NewResolver wraps a slot source. timeout bounds each slot query; zero disables it.
func NewResolver(slots SlotSource, timeout time.Duration, m *metrics.DialogueMetrics, logger *logging.Logger) *Resolver {
	if slots == nil {
		panic("dialogue: slot source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		slots:          slots,
		timeout:        timeout,
		lookaheadDays:  defaultLookaheadDays,
		maxSuggestions: defaultMaxSuggestions,
		metrics:        m,
		logger:         logger,
	}
}

// Resolve looks up date and, when at is set, the slot at that time. On a miss it
// offers up to three slots nearest the requested time, from the requested date
// when it has any, else from the first of the next three days that does.
func (r *Resolver) Resolve(ctx context.Context, companyID, attendantID string, date Date, at *TimeOfDay) Availability {
	out := Availability{Requested: date, Date: date}

	slots, failed := r.fetch(ctx, companyID, attendantID, date)
	if failed {
		out.SourceErrors++
	}

	if at != nil {
		if slot, ok := MatchSlot(slots, *at); ok {
			r.metrics.ObserveSlotLookup("hit")
			out.Slot = slot
			return out
		}
		r.metrics.ObserveSlotLookup("miss")
		if len(slots) > 0 {
			out.Suggestions = nearestSlots(slots, *at, r.maxSuggestions)
			return out
		}
	} else if len(slots) > 0 {
		out.Suggestions = slots
		return out
	}

	for i := 1; i <= r.lookaheadDays; i++ {
		day := date.AddDays(i)
		slots, failed := r.fetch(ctx, companyID, attendantID, day)
		if failed {
			out.SourceErrors++
		}
		if len(slots) == 0 {
			continue
		}
		out.Date = day
		if at != nil {
			out.Suggestions = nearestSlots(slots, *at, r.maxSuggestions)
		} else {
			out.Suggestions = firstSlots(slots, r.maxSuggestions)
		}
		return out
	}
	return out
}

// Verify re-checks one exact slot right before a commit. A failed query counts as
// unavailable.
func (r *Resolver) Verify(ctx context.Context, companyID, attendantID string, date Date, at TimeOfDay) bool {
	slots, _ := r.fetch(ctx, companyID, attendantID, date)
	_, ok := MatchSlot(slots, at)
	return ok
}

// fetch returns the day's slots in chronological order. Errors and empty days both
// come back as no slots; the distinction only reaches metrics and logs.
func (r *Resolver) fetch(ctx context.Context, companyID, attendantID string, date Date) ([]string, bool) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	slots, err := r.slots.SlotsFor(ctx, companyID, attendantID, date)
	if err != nil {
		r.metrics.ObserveSlotLookup("error")
		r.logger.Warn("slot lookup failed; treating as no slots",
			"company_id", companyID,
			"attendant_id", attendantID,
			"date", date.String(),
			"error", err,
		)
		return nil, true
	}
	if len(slots) == 0 {
		r.metrics.ObserveSlotLookup("empty")
		return nil, false
	}
	return sortSlots(slots), false
}

// MatchSlot finds the stored slot equal to at in canonical "HH:MM" form. Stored
// values may carry seconds ("14:00:00") or an unpadded hour ("9:30").
func MatchSlot(slots []string, at TimeOfDay) (string, bool) {
	want := at.String()
	for _, s := range slots {
		if t, err := ParseTimeOfDay(s); err == nil {
			if t == at {
				return s, true
			}
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(s), want) {
			return s, true
		}
	}
	return "", false
}

func sortSlots(slots []string) []string {
	out := append([]string(nil), slots...)
	sort.SliceStable(out, func(i, j int) bool {
		return slotMinutes(out[i]) < slotMinutes(out[j])
	})
	return out
}

// nearestSlots picks up to n slots closest to at (earlier wins a tie) and returns
// them chronologically.
func nearestSlots(slots []string, at TimeOfDay, n int) []string {
	ranked := append([]string(nil), slots...)
	sort.SliceStable(ranked, func(i, j int) bool {
		di, dj := distance(ranked[i], at), distance(ranked[j], at)
		if di != dj {
			return di < dj
		}
		return slotMinutes(ranked[i]) < slotMinutes(ranked[j])
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return sortSlots(ranked)
}

func firstSlots(slots []string, n int) []string {
	if len(slots) > n {
		return append([]string(nil), slots[:n]...)
	}
	return slots
}

func distance(slot string, at TimeOfDay) int {
	d := slotMinutes(slot) - at.minutes()
	if d < 0 {
		return -d
	}
	return d
}

// slotMinutes orders unparseable slot strings last.
func slotMinutes(slot string) int {
	t, err := ParseTimeOfDay(slot)
	if err != nil {
		return 24 * 60
	}
	return t.minutes()
}
