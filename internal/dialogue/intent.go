package dialogue

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the control meaning of an inbound message.
type Intent string

const (
	IntentConfirm         Intent = "confirm"
	IntentDeny            Intent = "deny"
	IntentRescheduleStart Intent = "reschedule_start"
	IntentTimeOnly        Intent = "time_only"
	IntentFreeText        Intent = "free_text"
)

// Classification is the classifier's verdict on one message.
type Classification struct {
	Intent     Intent
	Text       string
	Normalized string
	// Time is set for IntentTimeOnly.
	Time *TimeOfDay
	// Locale is set when a locale-specific keyword matched.
	Locale Locale
}

type keyword struct {
	intent Intent
	locale Locale
}

// keywords is the exact-match synonym table. Words shared by several languages
// carry no locale.
var keywords = map[string]keyword{
	"y":   {IntentConfirm, LocaleEN},
	"yes": {IntentConfirm, LocaleEN},
	"sim": {IntentConfirm, LocalePT},
	"oui": {IntentConfirm, LocaleFR},
	"si":  {IntentConfirm, LocaleES},
	"sí":  {IntentConfirm, LocaleES},
	"ok":  {IntentConfirm, ""},

	"n":   {IntentDeny, ""},
	"não": {IntentDeny, LocalePT},
	"nao": {IntentDeny, LocalePT},
	"no":  {IntentDeny, ""},
	"non": {IntentDeny, LocaleFR},

	"r": {IntentRescheduleStart, ""},
}

var bareTimeRE = regexp.MustCompile(`^([01]?\d|2[0-3])(?:[:h]([0-5]\d)|h)$`)

// Normalize trims, lowercases and drops trailing punctuation.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(s, ".!?, ")
}

// Classify maps a message to an intent. hasProposedDate enables TIME_ONLY for a bare
// "HH:MM", "HHhMM" or "HHh" reply. It is pure: the same input always yields the same classification.
func Classify(text string, hasProposedDate bool) Classification {
	norm := Normalize(text)
	c := Classification{Intent: IntentFreeText, Text: text, Normalized: norm}

	if kw, ok := keywords[norm]; ok {
		c.Intent = kw.intent
		c.Locale = kw.locale
		return c
	}

	if hasProposedDate {
		if m := bareTimeRE.FindStringSubmatch(norm); m != nil {
			hour, _ := strconv.Atoi(m[1])
			minute, _ := strconv.Atoi(m[2])
			if t, ok := NewTimeOfDay(hour, minute); ok {
				c.Intent = IntentTimeOnly
				c.Time = &t
			}
		}
	}
	return c
}
