package dialogue

import (
	"strings"
	"time"
)

// Extraction is the best-effort (date, time) pair found in free text.
type Extraction struct {
	Date     *Date
	Time     *TimeOfDay
	Strategy string
	Locale   Locale
}

// Empty reports whether neither a date nor a time was found.
func (x Extraction) Empty() bool {
	return x.Date == nil && x.Time == nil
}

// match is what a single strategy found.
type match struct {
	date   *Date
	time   *TimeOfDay
	locale Locale
}

// strategy is a pure parsing step: text and "now" in business-local time in, match out.
type strategy struct {
	name string
	find func(text string, now time.Time) match
}

const (
	StrategyRelative    = "relative"
	StrategyClock       = "clock"
	StrategyNextWeekday = "next_weekday"
	StrategyNatural     = "natural"
	StrategyDayOfMonth  = "day_of_month"
	StrategyNumeric     = "numeric"
)

// Extractor runs the date strategies in their fixed order and stops at the first one
// that yields a date. The time token is captured on its own and kept whichever date
// strategy wins.
type Extractor struct {
	strategies []strategy
}

// NewExtractor builds the default chain.
func NewExtractor() *Extractor {
	natural := newNaturalSearch()
	return &Extractor{strategies: []strategy{
		{name: StrategyRelative, find: findRelative},
		{name: StrategyClock, find: findClock},
		{name: StrategyNextWeekday, find: findNextWeekday},
		{name: StrategyNatural, find: natural.find},
		{name: StrategyDayOfMonth, find: findDayOfMonth},
		{name: StrategyNumeric, find: findNumeric},
	}}
}

// Strategies lists the chain order.
func (e *Extractor) Strategies() []string {
	names := make([]string, 0, len(e.strategies))
	for _, s := range e.strategies {
		names = append(names, s.name)
	}
	return names
}

// Extract returns the (date, time) found in text. now must already be in the
// business time zone; identical (text, now) always produce the same result.
func (e *Extractor) Extract(text string, now time.Time) Extraction {
	norm := normalizeForSearch(text)
	var out Extraction
	if norm == "" {
		return out
	}

	// The clock token is independent of which date strategy wins.
	if m := findClock(norm, now); m.time != nil {
		out.Time = m.time
	}

	for _, s := range e.strategies {
		m := s.find(norm, now)
		if out.Time == nil && m.time != nil {
			out.Time = m.time
		}
		if out.Locale == "" && m.locale != "" {
			out.Locale = m.locale
		}
		if m.date != nil {
			out.Date = m.date
			out.Strategy = s.name
			return out
		}
	}
	if out.Time != nil {
		out.Strategy = StrategyClock
	}
	return out
}

// normalizeForSearch lowercases, unifies apostrophes and collapses whitespace.
func normalizeForSearch(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.NewReplacer("\u2019", "'", "`", "'", "\u00a0", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
