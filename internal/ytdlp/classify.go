package ytdlp

import (
	"errors"
	"strings"

	"yt-resolver/internal/model"
)

// Rule maps a lower-case stderr substring to an outcome and reason.
type Rule struct {
	Pattern string
	Outcome model.Outcome
	Reason  string
}

// Verdict is the classified result of one invocation.
type Verdict struct {
	Outcome model.Outcome
	Reason  string
}

var defaultFatalRules = []Rule{
	{Pattern: "no space left on device", Reason: "disk_full"},
	{Pattern: "disk quota exceeded", Reason: "disk_full"},
	{Pattern: "ffmpeg could not be found", Reason: "missing_dependency"},
	{Pattern: "ffprobe could not be found", Reason: "missing_dependency"},
	{Pattern: "ffmpeg not found", Reason: "missing_dependency"},
	{Pattern: "yt-dlp: error:", Reason: "invalid_configuration"},
	{Pattern: "no such option", Reason: "invalid_configuration"},
	{Pattern: "invalid cookies", Reason: "invalid_configuration"},
	{Pattern: "permission denied", Reason: "invalid_configuration"},
}

var defaultFormatRules = []Rule{
	{Pattern: "requested format is not available", Reason: "format_unavailable"},
	{Pattern: "format is not available", Reason: "format_unavailable"},
}

var defaultAuthRules = []Rule{
	{Pattern: "sign in to confirm", Reason: "auth_required"},
	{Pattern: "please log in", Reason: "auth_required"},
	{Pattern: "login required", Reason: "auth_required"},
	{Pattern: "video is private", Reason: "auth_required"},
	{Pattern: "video is unavailable", Reason: "auth_required"},
	{Pattern: "age restricted", Reason: "auth_required"},
	{Pattern: "age-restricted", Reason: "auth_required"},
	{Pattern: "requires authentication", Reason: "auth_required"},
	{Pattern: "authentication required", Reason: "auth_required"},
	{Pattern: "403", Reason: "auth_rejected"},
	{Pattern: "forbidden", Reason: "auth_rejected"},
}

var defaultTransientRules = []Rule{
	{Pattern: "429", Reason: "rate_limited"},
	{Pattern: "too many requests", Reason: "rate_limited"},
	{Pattern: "rate limit", Reason: "rate_limited"},
	{Pattern: "timed out", Reason: "transient_network"},
	{Pattern: "timeout", Reason: "transient_network"},
	{Pattern: "temporarily unavailable", Reason: "transient_network"},
	{Pattern: "connection reset", Reason: "transient_network"},
	{Pattern: "service unavailable", Reason: "transient_network"},
	{Pattern: "network is unreachable", Reason: "transient_network"},
	{Pattern: "http error 5", Reason: "transient_network"},
}

// authNoise lines mention auth-like words but only report SABR streaming
// quirks; they never decide the outcome on their own.
var authNoise = []string{
	"sabr streaming",
	"sabr-only",
	"server-side ad placement",
}

type Classifier struct {
	fatal       []Rule
	recoverable []Rule
}

// NewClassifier extends the built-in mapping. Extra fatal patterns are
// checked before everything else.
func NewClassifier(extraFatal, extraRecoverable []string) Classifier {
	c := Classifier{}
	for _, p := range extraFatal {
		if p = normalizePattern(p); p != "" {
			c.fatal = append(c.fatal, Rule{Pattern: p, Outcome: model.OutcomeFatal, Reason: "configured_fatal"})
		}
	}
	for _, r := range defaultFatalRules {
		r.Outcome = model.OutcomeFatal
		c.fatal = append(c.fatal, r)
	}
	for _, p := range extraRecoverable {
		if p = normalizePattern(p); p != "" {
			c.recoverable = append(c.recoverable, Rule{Pattern: p, Outcome: model.OutcomeRecoverable, Reason: "configured_recoverable"})
		}
	}
	for _, group := range [][]Rule{defaultFormatRules, defaultAuthRules, defaultTransientRules} {
		for _, r := range group {
			r.Outcome = model.OutcomeRecoverable
			c.recoverable = append(c.recoverable, r)
		}
	}
	return c
}

func (c Classifier) Classify(res Result) Verdict {
	switch {
	case res.Canceled:
		return Verdict{Outcome: model.OutcomeRecoverable, Reason: "canceled"}
	case res.TimedOut:
		return Verdict{Outcome: model.OutcomeRecoverable, Reason: "timeout"}
	case errors.Is(res.Err, ErrStart):
		return Verdict{Outcome: model.OutcomeFatal, Reason: "tool_unavailable"}
	case res.Succeeded():
		return Verdict{Outcome: model.OutcomeSuccess}
	}

	lines := significantLines(res.Stderr)
	for _, r := range c.fatal {
		if containsAny(lines, r.Pattern) {
			return Verdict{Outcome: r.Outcome, Reason: r.Reason}
		}
	}
	for _, r := range c.recoverable {
		if containsAny(lines, r.Pattern) {
			return Verdict{Outcome: r.Outcome, Reason: r.Reason}
		}
	}
	return Verdict{Outcome: model.OutcomeRecoverable, Reason: "download_error"}
}

func significantLines(stderr string) []string {
	raw := strings.Split(strings.ToLower(stderr), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" || isAuthNoise(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func isAuthNoise(line string) bool {
	for _, n := range authNoise {
		if strings.Contains(line, n) {
			return true
		}
	}
	return false
}

func containsAny(lines []string, pattern string) bool {
	for _, line := range lines {
		if strings.Contains(line, pattern) {
			return true
		}
	}
	return false
}

func normalizePattern(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// Truncate shortens s to max bytes.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// Tail returns the last max bytes of s.
func Tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
