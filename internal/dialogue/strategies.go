package dialogue

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Relative day keywords, longest phrases first so "depois de amanhã" is never read
// as "amanhã".
var relativePhrases = []struct {
	phrase string
	offset int
	locale Locale
}{
	{"depois de amanhã", 2, LocalePT},
	{"depois de amanha", 2, LocalePT},
	{"day after tomorrow", 2, LocaleEN},
	{"après-demain", 2, LocaleFR},
	{"apres-demain", 2, LocaleFR},
	{"après demain", 2, LocaleFR},
	{"apres demain", 2, LocaleFR},
	{"pasado mañana", 2, LocaleES},
	{"pasado manana", 2, LocaleES},
	{"amanhã", 1, LocalePT},
	{"amanha", 1, LocalePT},
	{"tomorrow", 1, LocaleEN},
	{"demain", 1, LocaleFR},
	{"mañana", 1, LocaleES},
	{"manana", 1, LocaleES},
	{"hoje", 0, LocalePT},
	{"today", 0, LocaleEN},
	{"aujourd'hui", 0, LocaleFR},
	{"aujourdhui", 0, LocaleFR},
	{"hoy", 0, LocaleES},
}

func findRelative(text string, now time.Time) match {
	today := DateOf(now)
	for _, p := range relativePhrases {
		if containsPhrase(text, p.phrase) {
			d := today.AddDays(p.offset)
			return match{date: &d, locale: p.locale}
		}
	}
	return match{}
}

// containsPhrase reports whether phrase occurs in text delimited by non-letters.
func containsPhrase(text, phrase string) bool {
	for from := 0; from <= len(text); {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(phrase)
		if !letterBefore(text, start) && !letterAfter(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func letterBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	r := []rune(text[:i])
	last := r[len(r)-1]
	return unicode.IsLetter(last) || unicode.IsDigit(last)
}

func letterAfter(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	for _, r := range text[i:] {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}
	return false
}

var (
	meridiemRE = regexp.MustCompile(`(?:^|[^0-9:/])(1[0-2]|0?[1-9])(?::([0-5]\d))?\s?(am|pm|a\.m\.|p\.m\.)(?:[^\p{L}]|$)`)
	hourMinRE  = regexp.MustCompile(`(?:^|[^0-9:/])([01]?\d|2[0-3])\s?[:h]\s?([0-5]\d)(?:[^0-9]|$)`)
	hourOnlyRE = regexp.MustCompile(`(?:^|[^0-9:/])([01]?\d|2[0-3])\s?h(?:oras?|rs?)?(?:[^\p{L}0-9]|$)`)
)

// findClock captures an explicit time: "14:00", "14h30", "15h", "3pm", "3:30 p.m.".
func findClock(text string, _ time.Time) match {
	if m := meridiemRE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		pm := strings.HasPrefix(m[3], "p")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
		if t, ok := NewTimeOfDay(hour, minute); ok {
			return match{time: &t}
		}
	}
	if m := hourMinRE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if t, ok := NewTimeOfDay(hour, minute); ok {
			return match{time: &t}
		}
	}
	if m := hourOnlyRE.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if t, ok := NewTimeOfDay(hour, 0); ok {
			return match{time: &t}
		}
	}
	return match{}
}

type namedWeekday struct {
	name    string
	weekday time.Weekday
	locale  Locale
}

var weekdayNames = []namedWeekday{
	{"sunday", time.Sunday, LocaleEN},
	{"monday", time.Monday, LocaleEN},
	{"tuesday", time.Tuesday, LocaleEN},
	{"wednesday", time.Wednesday, LocaleEN},
	{"thursday", time.Thursday, LocaleEN},
	{"friday", time.Friday, LocaleEN},
	{"saturday", time.Saturday, LocaleEN},
	{"domingo", time.Sunday, ""},
	{"segunda", time.Monday, LocalePT},
	{"terça", time.Tuesday, LocalePT},
	{"terca", time.Tuesday, LocalePT},
	{"quarta", time.Wednesday, LocalePT},
	{"quinta", time.Thursday, LocalePT},
	{"sexta", time.Friday, LocalePT},
	{"sábado", time.Saturday, ""},
	{"sabado", time.Saturday, ""},
	{"dimanche", time.Sunday, LocaleFR},
	{"lundi", time.Monday, LocaleFR},
	{"mardi", time.Tuesday, LocaleFR},
	{"mercredi", time.Wednesday, LocaleFR},
	{"jeudi", time.Thursday, LocaleFR},
	{"vendredi", time.Friday, LocaleFR},
	{"samedi", time.Saturday, LocaleFR},
	{"lunes", time.Monday, LocaleES},
	{"martes", time.Tuesday, LocaleES},
	{"miércoles", time.Wednesday, LocaleES},
	{"miercoles", time.Wednesday, LocaleES},
	{"jueves", time.Thursday, LocaleES},
	{"viernes", time.Friday, LocaleES},
}

var (
	weekdayByName   = indexWeekdays(weekdayNames)
	nextBeforeDayRE = regexp.MustCompile(`(?:next|pr[oó]xim[oa]|prochaine?)\s+(` + alternation(weekdayKeys()) + `)(?:[^\p{L}]|$)`)
	nextAfterDayRE  = regexp.MustCompile(`(?:^|[^\p{L}])(` + alternation(weekdayKeys()) + `)(?:[- ]feira)?\s+(?:prochaine?|pr[oó]xim[oa]|que vem)(?:[^\p{L}]|$)`)
)

func indexWeekdays(names []namedWeekday) map[string]namedWeekday {
	idx := make(map[string]namedWeekday, len(names))
	for _, n := range names {
		idx[n.name] = n
	}
	return idx
}

func weekdayKeys() []string {
	keys := make([]string, 0, len(weekdayNames))
	for _, n := range weekdayNames {
		keys = append(keys, n.name)
	}
	return keys
}

// findNextWeekday resolves "next <weekday>" to its next strictly-future occurrence,
// a full week ahead when today is that weekday.
func findNextWeekday(text string, now time.Time) match {
	var name string
	if m := nextBeforeDayRE.FindStringSubmatch(text); m != nil {
		name = m[1]
	} else if m := nextAfterDayRE.FindStringSubmatch(text); m != nil {
		name = m[1]
	} else {
		return match{}
	}
	wd, ok := weekdayByName[name]
	if !ok {
		return match{}
	}
	d := NextWeekday(DateOf(now), wd.weekday)
	return match{date: &d, locale: wd.locale}
}

// NextWeekday returns the first date strictly after today falling on wd.
func NextWeekday(today Date, wd time.Weekday) Date {
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDays(delta)
}

type namedMonth struct {
	name   string
	month  time.Month
	locale Locale
}

var monthNames = []namedMonth{
	{"janeiro", time.January, LocalePT}, {"fevereiro", time.February, LocalePT},
	{"março", time.March, LocalePT}, {"marco", time.March, LocalePT},
	{"abril", time.April, ""}, {"maio", time.May, LocalePT}, {"junho", time.June, LocalePT},
	{"julho", time.July, LocalePT}, {"agosto", time.August, ""}, {"setembro", time.September, LocalePT},
	{"outubro", time.October, LocalePT}, {"novembro", time.November, LocalePT}, {"dezembro", time.December, LocalePT},

	{"january", time.January, LocaleEN}, {"february", time.February, LocaleEN}, {"march", time.March, LocaleEN},
	{"april", time.April, LocaleEN}, {"may", time.May, LocaleEN}, {"june", time.June, LocaleEN},
	{"july", time.July, LocaleEN}, {"august", time.August, LocaleEN}, {"september", time.September, LocaleEN},
	{"october", time.October, LocaleEN}, {"november", time.November, LocaleEN}, {"december", time.December, LocaleEN},
	{"jan", time.January, LocaleEN}, {"feb", time.February, LocaleEN}, {"mar", time.March, LocaleEN},
	{"apr", time.April, LocaleEN}, {"jun", time.June, LocaleEN}, {"jul", time.July, LocaleEN},
	{"aug", time.August, LocaleEN}, {"sep", time.September, LocaleEN}, {"sept", time.September, LocaleEN},
	{"oct", time.October, LocaleEN}, {"nov", time.November, LocaleEN}, {"dec", time.December, LocaleEN},

	{"janvier", time.January, LocaleFR}, {"février", time.February, LocaleFR}, {"fevrier", time.February, LocaleFR},
	{"mars", time.March, LocaleFR}, {"avril", time.April, LocaleFR}, {"mai", time.May, LocaleFR},
	{"juin", time.June, LocaleFR}, {"juillet", time.July, LocaleFR}, {"août", time.August, LocaleFR},
	{"aout", time.August, LocaleFR}, {"septembre", time.September, LocaleFR}, {"octobre", time.October, LocaleFR},
	{"novembre", time.November, LocaleFR}, {"décembre", time.December, LocaleFR}, {"decembre", time.December, LocaleFR},

	{"enero", time.January, LocaleES}, {"febrero", time.February, LocaleES}, {"marzo", time.March, LocaleES},
	{"mayo", time.May, LocaleES}, {"junio", time.June, LocaleES}, {"julio", time.July, LocaleES},
	{"septiembre", time.September, LocaleES}, {"setiembre", time.September, LocaleES},
	{"octubre", time.October, LocaleES}, {"noviembre", time.November, LocaleES}, {"diciembre", time.December, LocaleES},
}

var (
	monthByName = indexMonths(monthNames)
	dayMonthRE  = regexp.MustCompile(`(?:^|[^0-9])(\d{1,2})(?:st|nd|rd|th|er|º|°)?\s+(?:de\s+|of\s+)?(` + alternation(monthKeys()) + `)(?:[^\p{L}]|$)(?:\s*(?:de\s+)?(\d{4}))?`)
	monthDayRE  = regexp.MustCompile(`(?:^|[^\p{L}])(` + alternation(monthKeys()) + `)\s+(\d{1,2})(?:st|nd|rd|th)?(?:[^0-9\p{L}]|$)(?:\s*(\d{4}))?`)
)

func indexMonths(names []namedMonth) map[string]namedMonth {
	idx := make(map[string]namedMonth, len(names))
	for _, n := range names {
		idx[n.name] = n
	}
	return idx
}

func monthKeys() []string {
	keys := make([]string, 0, len(monthNames))
	for _, n := range monthNames {
		keys = append(keys, n.name)
	}
	return keys
}

// findDayOfMonth reads "<day> de <mês> [de <ano>]", "<day> <month>" and "<month> <day>".
func findDayOfMonth(text string, now time.Time) match {
	var dayStr, monthStr, yearStr string
	if m := dayMonthRE.FindStringSubmatch(text); m != nil {
		dayStr, monthStr, yearStr = m[1], m[2], m[3]
	} else if m := monthDayRE.FindStringSubmatch(text); m != nil {
		monthStr, dayStr, yearStr = m[1], m[2], m[3]
	} else {
		return match{}
	}
	month, ok := monthByName[monthStr]
	if !ok {
		return match{}
	}
	day, _ := strconv.Atoi(dayStr)
	d, ok := resolveYear(day, month.month, yearStr, DateOf(now))
	if !ok {
		return match{locale: month.locale}
	}
	return match{date: &d, locale: month.locale}
}

var (
	isoDateRE = regexp.MustCompile(`(?:^|[^0-9])(\d{4})-(\d{1,2})-(\d{1,2})(?:[^0-9]|$)`)
	numericRE = regexp.MustCompile(`(?:^|[^0-9/.\-:])(\d{1,2})[/\-](\d{1,2})(?:[/\-](\d{4}|\d{2}))?(?:[^0-9/\-]|\.?$|\.\D)`)
	// A dotted pair without a year reads as a decimal ("10.05").
	dottedDateRE = regexp.MustCompile(`(?:^|[^0-9/.\-:])(\d{1,2})\.(\d{1,2})\.(\d{4}|\d{2})(?:[^0-9.]|\.?$|\.\D)`)
)

// findNumeric reads "dd/mm[/yyyy]" with "/" or "-" separators, "dd.mm.yyyy", and ISO dates.
// Calendar-invalid combinations yield no date.
func findNumeric(text string, now time.Time) match {
	if m := isoDateRE.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if d, ok := NewDate(year, time.Month(month), day); ok {
			return match{date: &d}
		}
		return match{}
	}
	m := numericRE.FindStringSubmatch(text)
	if m == nil {
		m = dottedDateRE.FindStringSubmatch(text)
	}
	if m == nil {
		return match{}
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return match{}
	}
	d, ok := resolveYear(day, time.Month(month), m[3], DateOf(now))
	if !ok {
		return match{}
	}
	return match{date: &d}
}

// resolveYear builds the date for day/month. Without an explicit year it uses the
// current year, rolled forward a year when that date has already passed.
func resolveYear(day int, month time.Month, yearStr string, today Date) (Date, bool) {
	if yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			return Date{}, false
		}
		if len(yearStr) == 2 {
			year += 2000
		}
		return NewDate(year, month, day)
	}
	d, ok := NewDate(today.Year, month, day)
	if !ok {
		return Date{}, false
	}
	if d.Before(today) {
		return NewDate(today.Year+1, month, day)
	}
	return d, true
}

// alternation builds a regexp alternation with longer words first so prefixes
// ("mar") never shadow full names ("março").
func alternation(words []string) string {
	sorted := append([]string(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, len(sorted))
	for i, w := range sorted {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}
