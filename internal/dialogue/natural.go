package dialogue

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/br"
	"github.com/olebedev/when/rules/en"
)

// naturalSearch wraps the multilingual "when" parser. Only the English and
// Portuguese rule sets are loaded: the common numeric rules normalize impossible
// dates such as 31/02 into the next month, which the numeric strategy must reject.
type naturalSearch struct {
	parser *when.Parser
}

func newNaturalSearch() *naturalSearch {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(br.All...)
	return &naturalSearch{parser: w}
}

var (
	explicitYearRE = regexp.MustCompile(`\b\d{4}\b`)
	anyDigitRE     = regexp.MustCompile(`\d`)
	timeTokenRE    = regexp.MustCompile(`(1[0-2]|0?[1-9])(:[0-5]\d)?\s?(am\b|pm\b|a\.m\.|p\.m\.)|([01]?\d|2[0-3])\s?[:h]\s?[0-5]\d|([01]?\d|2[0-3])\s?h(oras?|rs?)?\b|\b\d{1,2}\b`)
)

// connectors may surround a clock token without making it a date.
var connectors = map[string]bool{
	"at": true, "by": true, "around": true, "about": true, "o'clock": true, "on": true,
	"às": true, "as": true, "à": true, "a": true, "pelas": true, "por": true, "volta": true,
	"das": true, "em": true, "le": true, "vers": true, "hour": true, "hours": true,
	"hora": true, "horas": true,
}

func (n *naturalSearch) find(text string, now time.Time) match {
	// A day written next to a month name belongs to the day-of-month strategy,
	// which keeps an explicit year; the rule sets drop it.
	if dayMonthRE.MatchString(text) || monthDayRE.MatchString(text) {
		return match{}
	}
	r, err := n.parser.Parse(maskBareMonths(text), now)
	if err != nil || r == nil {
		return match{}
	}
	span := strings.TrimSpace(strings.ToLower(r.Text))
	if span == "" || timeOnlySpan(span) {
		return match{}
	}
	// Numeric spans belong to the numeric strategy, which reads them day-first.
	if numericRE.MatchString(span) || dottedDateRE.MatchString(span) || isoDateRE.MatchString(span) {
		return match{}
	}

	today := DateOf(now)
	d := DateOf(r.Time.In(now.Location()))
	if d.Before(today) {
		// Only a day-and-month span without a year can be moved forward meaningfully.
		if explicitYearRE.MatchString(span) || !anyDigitRE.MatchString(span) {
			return match{}
		}
		next, ok := NewDate(d.Year+1, d.Month, d.Day)
		if !ok {
			return match{}
		}
		d = next
	}
	return match{date: &d}
}

var (
	dayNumberRE   = regexp.MustCompile(`^\d{1,2}(st|nd|rd|th|º|°)?$`)
	ordinalWordRE = regexp.MustCompile(`^(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|eleventh|twelfth|\p{L}+teenth|twentieth|thirtieth|(twenty|thirty)-\p{L}+|primeiro)$`)
)

// maskBareMonths drops month names that carry no day. "may i come on friday"
// would otherwise resolve to today's day of May.
func maskBareMonths(text string) string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for i, w := range words {
		if _, ok := monthByName[strings.Trim(w, ".,;:!?")]; ok && !nextToDay(words, i) {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func nextToDay(words []string, i int) bool {
	prev := i - 1
	if prev >= 0 && (words[prev] == "of" || words[prev] == "de") {
		prev--
	}
	return (prev >= 0 && dayWord(words[prev])) || (i+1 < len(words) && dayWord(words[i+1]))
}

func dayWord(w string) bool {
	w = strings.Trim(w, ".,;:!?")
	return dayNumberRE.MatchString(w) || ordinalWordRE.MatchString(w)
}

// timeOnlySpan reports whether span holds nothing but a clock token and connector
// words ("at 5pm", "às 15h").
func timeOnlySpan(span string) bool {
	rest := timeTokenRE.ReplaceAllString(span, " ")
	for _, w := range strings.Fields(rest) {
		w = strings.Trim(w, ",.-")
		if w != "" && !connectors[w] {
			return false
		}
	}
	return true
}
