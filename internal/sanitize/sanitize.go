// Package sanitize scrubs review documents before they leave the engine:
// PII, credentials, tool-invocation syntax, user-identifying paths, and
// injected instructions. Sanitization is idempotent; re-sanitizing an
// already-clean review performs no further replacements.
package sanitize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Iron-Ham/gavel/internal/logging"
	"github.com/Iron-Ham/gavel/internal/review"
)

// cloneReview deep-copies a review so the walk never mutates slices the
// caller still holds.
func cloneReview(r review.StructuredReview) review.StructuredReview {
	data, err := json.Marshal(r)
	if err != nil {
		return r
	}
	var out review.StructuredReview
	if err := json.Unmarshal(data, &out); err != nil {
		return r
	}
	return out
}

// DefaultMaxPathDepth is how many trailing path segments survive
// anonymization.
const DefaultMaxPathDepth = 5

// Level selects how aggressively the sanitizer scrubs.
type Level string

const (
	// LevelMinimal runs only the PII and secret passes.
	LevelMinimal Level = "minimal"
	// LevelStandard runs all five passes.
	LevelStandard Level = "standard"
	// LevelStrict runs all five passes and flags any replacement below
	// the strict confidence floor.
	LevelStrict Level = "strict"
)

// Replacement tokens. Each redaction category has its own token so a
// reader can tell what kind of content was removed.
const (
	TokenEmail         = "[email]"
	TokenPhone         = "[phone_number]"
	TokenSSN           = "[ssn]"
	TokenCreditCard    = "[credit_card]"
	TokenAPIKey        = "[API_KEY]"
	TokenPassword      = "[PASSWORD]"
	TokenToken         = "[TOKEN]"
	TokenToolExecution = "[TOOL EXECUTION]"
	TokenToolCall      = "[TOOL CALL]"
	TokenFiltered      = "[filtered]"
)

// lowConfidenceFloor marks replacements the sanitizer is not sure about.
const lowConfidenceFloor = 70

// strictConfidenceFloor is the warning cutoff under LevelStrict.
const strictConfidenceFloor = 85

// maxRounds bounds the fixed-point iteration. Two rounds suffice for the
// built-in passes; the bound guards against a pathological pattern pair.
const maxRounds = 4

// pass is one scrubbing stage applied to every string field. apply
// returns the rewritten text plus the replacement token emitted for each
// redaction it performed.
type pass struct {
	kind       string
	confidence int
	apply      func(s *Sanitizer, text string) (string, []string)
}

// Sanitizer runs the scrubbing passes over a review document.
type Sanitizer struct {
	maxPathDepth    int
	confidenceFloor int
	logger          *logging.Logger
	passes          []pass
}

// New creates a Sanitizer at the standard level. A non-positive
// maxPathDepth uses the default.
func New(maxPathDepth int, logger *logging.Logger) *Sanitizer {
	return NewWithLevel(LevelStandard, maxPathDepth, logger)
}

// NewWithLevel creates a Sanitizer at the given scrubbing level. An
// unknown level is treated as standard.
func NewWithLevel(level Level, maxPathDepth int, logger *logging.Logger) *Sanitizer {
	if maxPathDepth <= 0 {
		maxPathDepth = DefaultMaxPathDepth
	}
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Sanitizer{
		maxPathDepth:    maxPathDepth,
		confidenceFloor: lowConfidenceFloor,
		logger:          logger.WithComponent("sanitizer"),
	}
	s.passes = []pass{
		{kind: "pii", confidence: 95, apply: (*Sanitizer).scrubPII},
		{kind: "secret", confidence: 90, apply: (*Sanitizer).scrubSecrets},
		{kind: "tool_syntax", confidence: 85, apply: (*Sanitizer).scrubToolSyntax},
		{kind: "path", confidence: 80, apply: (*Sanitizer).scrubPaths},
		{kind: "content", confidence: 60, apply: (*Sanitizer).scrubContent},
	}
	switch level {
	case LevelMinimal:
		s.passes = s.passes[:2]
	case LevelStrict:
		s.confidenceFloor = strictConfidenceFloor
	}
	return s
}

// Sanitize returns a scrubbed copy of the review with its Sanitization
// summary populated. The input is not modified.
func (s *Sanitizer) Sanitize(r review.StructuredReview) review.StructuredReview {
	var summary review.SanitizationSummary

	clean := cloneReview(r)
	walkStrings(&clean, func(location string, text string) string {
		out, actions := s.sanitizeText(location, text)
		summary.Actions = append(summary.Actions, actions...)
		return out
	})

	for _, action := range summary.Actions {
		if action.Confidence < s.confidenceFloor {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("low-confidence %s replacement at %s", action.Kind, action.Location))
		}
	}
	if len(summary.Warnings) > 0 {
		clean.AddWarning("SanitizationLowConfidence",
			fmt.Sprintf("%d replacement(s) below confidence threshold", len(summary.Warnings)))
	}

	clean.Sanitization = summary
	if n := len(summary.Actions); n > 0 {
		s.logger.Debug("review sanitized", "replacements", n)
	}
	return clean
}

// sanitizeText runs all passes to a fixed point on one string field.
func (s *Sanitizer) sanitizeText(location, text string) (string, []review.SanitizationAction) {
	var actions []review.SanitizationAction
	current := text
	for round := 0; round < maxRounds; round++ {
		changed := false
		for _, p := range s.passes {
			next, tokens := p.apply(s, current)
			for _, token := range tokens {
				actions = append(actions, review.SanitizationAction{
					Kind:        p.kind,
					Location:    location,
					Replacement: token,
					Confidence:  p.confidence,
				})
			}
			if len(tokens) > 0 {
				current = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return current, actions
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	// cardPattern runs before phonePattern so a spaced card number is not
	// half-eaten as a phone number.
	cardPattern  = regexp.MustCompile(`\b(?:\d{4}[ \-]){3}\d{4}\b|\b\d{15,16}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

func (s *Sanitizer) scrubPII(text string) (string, []string) {
	var tokens []string
	for _, p := range []struct {
		re    *regexp.Regexp
		token string
	}{
		{emailPattern, TokenEmail},
		{cardPattern, TokenCreditCard},
		{ssnPattern, TokenSSN},
		{phonePattern, TokenPhone},
	} {
		text = p.re.ReplaceAllStringFunc(text, func(string) string {
			tokens = append(tokens, p.token)
			return p.token
		})
	}
	return text, tokens
}

var (
	// keyValueSecretPattern keeps the key name so the finding stays
	// readable while the value disappears.
	keyValueSecretPattern = regexp.MustCompile(`(?i)\b(api[_\-]?key|secret|token|password|passwd|auth|credential|bearer)(["']?\s*[:=]\s*["']?)([^\s"',;}\]]+)`)
	awsKeyPattern         = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)
	githubTokenPattern    = regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`)
	privateKeyPattern     = regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`)
)

// secretTag maps a matched key name to its category token.
func secretTag(key string) string {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "key"):
		return TokenAPIKey
	case strings.Contains(k, "pass"):
		return TokenPassword
	default:
		return TokenToken
	}
}

func (s *Sanitizer) scrubSecrets(text string) (string, []string) {
	var tokens []string
	text = keyValueSecretPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := keyValueSecretPattern.FindStringSubmatch(match)
		if strings.HasPrefix(groups[3], "[") {
			return match
		}
		tag := secretTag(groups[1])
		tokens = append(tokens, tag)
		return groups[1] + groups[2] + tag
	})
	for _, p := range []struct {
		re    *regexp.Regexp
		token string
	}{
		{awsKeyPattern, TokenAPIKey},
		{githubTokenPattern, TokenToken},
		{privateKeyPattern, TokenToken},
	} {
		text = p.re.ReplaceAllStringFunc(text, func(string) string {
			tokens = append(tokens, p.token)
			return p.token
		})
	}
	return text, tokens
}

var (
	// toolResultPattern removes whole result/execution blocks, markup and
	// payload together.
	toolResultPattern = regexp.MustCompile(`(?s)<tool_result\b[^>]*>.*?</tool_result>|<function_results\b[^>]*>.*?</function_results>`)
	// toolCallPattern strips the invocation markup, leaving the inner
	// content readable.
	toolCallPattern = regexp.MustCompile(`(?s)<(/?)(tool_call|tool_use|function_call|function_calls|invoke|parameter)\b[^>]*>`)
)

func (s *Sanitizer) scrubToolSyntax(text string) (string, []string) {
	var tokens []string
	text = toolResultPattern.ReplaceAllStringFunc(text, func(string) string {
		tokens = append(tokens, TokenToolExecution)
		return TokenToolExecution
	})
	text = toolCallPattern.ReplaceAllStringFunc(text, func(string) string {
		tokens = append(tokens, TokenToolCall)
		return TokenToolCall
	})
	return text, tokens
}

var (
	homePathPattern = regexp.MustCompile(`(/home/[^/\s]+|/Users/[^/\s]+)`)
	absPathPattern  = regexp.MustCompile(`(?:~?/[\w.\-]+){2,}`)
)

// scrubPaths replaces home directories with "~" and truncates paths
// deeper than maxPathDepth to their trailing segments.
func (s *Sanitizer) scrubPaths(text string) (string, []string) {
	var tokens []string
	text = homePathPattern.ReplaceAllStringFunc(text, func(string) string {
		tokens = append(tokens, "~")
		return "~"
	})
	text = absPathPattern.ReplaceAllStringFunc(text, func(match string) string {
		trimmed := strings.TrimPrefix(match, "~")
		segments := strings.Split(strings.TrimPrefix(trimmed, "/"), "/")
		if len(segments) <= s.maxPathDepth {
			return match
		}
		tokens = append(tokens, ".../")
		kept := segments[len(segments)-s.maxPathDepth:]
		return ".../" + strings.Join(kept, "/")
	})
	return text, tokens
}

// injectionPatterns are instruction-injection phrasings that must not
// survive into caller-visible output.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore (?:all )?(?:previous|prior|above) instructions`),
	regexp.MustCompile(`(?i)disregard (?:the )?(?:system|previous) prompt`),
	regexp.MustCompile(`(?i)you are now (?:a|an) [^.\n]{1,60}`),
}

func (s *Sanitizer) scrubContent(text string) (string, []string) {
	var tokens []string
	for _, pattern := range injectionPatterns {
		text = pattern.ReplaceAllStringFunc(text, func(string) string {
			tokens = append(tokens, TokenFiltered)
			return TokenFiltered
		})
	}
	return text, tokens
}
