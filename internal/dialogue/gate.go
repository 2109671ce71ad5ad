package dialogue

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/apptreply/internal/observability/metrics"
	"github.com/wolfman30/apptreply/pkg/logging"
)

const (
	defaultHistoryWindow = 10
	defaultMaxReplyRunes = 500
)

// Gate decides when the generative responder may speak and bounds what it says.
type Gate struct {
	responder Responder
	turns     TurnLog
	window    int
	timeout   time.Duration
	maxRunes  int
	metrics   *metrics.DialogueMetrics
	logger    *logging.Logger
}

// GateConfig tunes the gate; zero values take the defaults.
type GateConfig struct {
	HistoryWindow int
	Timeout       time.Duration
	MaxReplyRunes int
}

// NewGate wraps responder. A nil responder makes every allowed call answer with the
// fixed apology.
func NewGate(responder Responder, turns TurnLog, cfg GateConfig, m *metrics.DialogueMetrics, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}
	if cfg.MaxReplyRunes <= 0 {
		cfg.MaxReplyRunes = defaultMaxReplyRunes
	}
	return &Gate{
		responder: responder,
		turns:     turns,
		window:    cfg.HistoryWindow,
		timeout:   cfg.Timeout,
		maxRunes:  cfg.MaxReplyRunes,
		metrics:   m,
		logger:    logger,
	}
}

// Allow reports whether the responder may be consulted for appt.
func (g *Gate) Allow(appt Appointment) bool {
	return appt.DialogueOpen
}

// Reply asks the responder about text using the recent conversation. The answer
// is advisory: it is length-bounded, guarded against claims of a booking change,
// and replaced by a fixed apology on error or timeout.
func (g *Gate) Reply(ctx context.Context, appt Appointment, text string, locale Locale) (string, Outcome) {
	if g.responder == nil {
		g.metrics.ObserveResponder("disabled")
		return render(locale, replyResponderUnavailable), OutcomeResponderUnavailable
	}

	// One deadline covers the history read and the responder call.
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	history := g.history(callCtx, appt.ID, text)

	reply, err := g.responder.Respond(callCtx, fallbackInstruction, history)
	if err != nil {
		result := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			result = "timeout"
		}
		g.metrics.ObserveResponder(result)
		g.logger.Warn("fallback responder failed", "appointment_id", appt.ID, "result", result, "error", err)
		return render(locale, replyResponderUnavailable), OutcomeResponderUnavailable
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		g.metrics.ObserveResponder("empty")
		return render(locale, replyResponderUnavailable), OutcomeResponderUnavailable
	}
	if reasons := ScanReplyForCommitClaims(reply); len(reasons) > 0 {
		g.metrics.ObserveResponder("guarded")
		g.logger.Warn("fallback reply claimed a booking change; replaced",
			"appointment_id", appt.ID,
			"reasons", reasons,
		)
		return render(locale, replyNeedExplicitAnswer), OutcomeFallback
	}
	g.metrics.ObserveResponder("ok")
	return truncateRunes(reply, g.maxRunes), OutcomeFallback
}

// history loads the last turns. The current message is already logged by the
// engine; it is appended here only when the log could not be read.
func (g *Gate) history(ctx context.Context, appointmentID, text string) []ChatMessage {
	var turns []Turn
	if g.turns != nil {
		loaded, err := g.turns.Last(ctx, appointmentID, g.window)
		if err != nil {
			g.logger.Warn("conversation history unavailable", "appointment_id", appointmentID, "error", err)
		} else {
			turns = loaded
		}
	}
	history := BuildHistory(turns)
	if n := len(history); n == 0 || history[n-1].Role != ChatRoleUser || history[n-1].Content != text {
		history = append(history, ChatMessage{Role: ChatRoleUser, Content: text})
	}
	return history
}

// BuildHistory maps turns to chat roles. Leading assistant turns are dropped and
// consecutive turns from the same side are merged, so the list starts with the
// user and alternates.
func BuildHistory(turns []Turn) []ChatMessage {
	var out []ChatMessage
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		role := ChatRoleUser
		if t.Sender == SenderSystem {
			role = ChatRoleAssistant
		}
		if len(out) == 0 && role == ChatRoleAssistant {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n" + text
			continue
		}
		out = append(out, ChatMessage{Role: role, Content: text})
	}
	return out
}

type commitClaimPattern struct {
	re     *regexp.Regexp
	reason string
}

var commitClaimPatterns = []commitClaimPattern{
	{regexp.MustCompile(`(?i)\b(is|has been|have been|was|are)\s+(now\s+)?(all\s+)?(confirmed|cancell?ed|rescheduled|booked|moved)\b`), "claim:en"},
	{regexp.MustCompile(`(?i)\b(i|we)('ve| have)?\s+(confirmed|cancell?ed|rescheduled|booked|moved)\b`), "claim:en_actor"},
	{regexp.MustCompile(`(?i)(foi|está|esta|ficou|fica)\s+(confirmad|cancelad|reagendad|remarcad|agendad)`), "claim:pt"},
	{regexp.MustCompile(`(?i)(est|a été|sont)\s+(bien\s+)?(confirmé|annulé|reprogrammé|déplacé|reporté)`), "claim:fr"},
	{regexp.MustCompile(`(?i)(está|fue|ha sido|queda)\s+(confirmad|cancelad|reprogramad|reagendad)`), "claim:es"},
}

// ScanReplyForCommitClaims lists the signals showing a generated reply claims a
// booking was confirmed, cancelled or moved.
func ScanReplyForCommitClaims(reply string) []string {
	var reasons []string
	for _, p := range commitClaimPatterns {
		if p.re.MatchString(reply) {
			reasons = append(reasons, p.reason)
		}
	}
	return reasons
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
