package judge

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Iron-Ham/gavel/internal/review"
)

// StaticJudge is the built-in deterministic judge. It scores artifacts
// with lexical heuristics only, so identical input always produces an
// identical review. It exists for offline runs and as the last fallback
// when every configured backend fails.
type StaticJudge struct{}

// NewStaticJudge returns the built-in judge.
func NewStaticJudge() *StaticJudge { return &StaticJudge{} }

// Name identifies the judge in judge cards.
func (j *StaticJudge) Name() string { return "static" }

var (
	todoPattern       = regexp.MustCompile(`(?i)\b(TODO|FIXME|XXX|HACK)\b`)
	debugPrintPattern = regexp.MustCompile(`\b(fmt\.Println|console\.log|print\(|System\.out\.println)\b`)
	swallowedErr      = regexp.MustCompile(`(?m)^\s*_\s*=\s*\w+|catch\s*\([^)]*\)\s*\{\s*\}`)
	credentialHint    = regexp.MustCompile(`(?i)\b(password|api[_\-]?key|secret|token)\s*[:=]\s*["'][^"']+["']`)
	panicPattern      = regexp.MustCompile(`\bpanic\(`)
	testHint          = regexp.MustCompile(`(?i)\b(func Test|def test_|it\(|describe\(|#\[test\]|assert)`)
)

// Review scans the artifact and produces dimension scores with concrete
// findings. Context cancellation is checked once up front; the scan
// itself is fast and non-blocking.
func (j *StaticJudge) Review(ctx context.Context, req Request) (*review.RawReview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	artifact := req.Artifact
	var raw review.RawReview

	correctness := review.RawDimension{ID: "correctness", Name: "Correctness & Completeness", Score: 85}
	for _, loc := range findAll(todoPattern, artifact) {
		correctness.Score -= 5
		correctness.Issues = append(correctness.Issues, review.RawIssue{
			Description: "unfinished work marker left in the artifact",
			Severity:    review.SeverityMinor,
			Category:    "completeness",
			Location:    loc,
		})
	}
	for _, loc := range findAll(swallowedErr, artifact) {
		correctness.Score -= 10
		correctness.Issues = append(correctness.Issues, review.RawIssue{
			Description: "error value discarded without handling",
			Severity:    review.SeverityMajor,
			Category:    "error-handling",
			Location:    loc,
		})
	}

	security := review.RawDimension{ID: "security", Name: "Security", Score: 90}
	for _, loc := range findAll(credentialHint, artifact) {
		security.Score -= 30
		security.Issues = append(security.Issues, review.RawIssue{
			Description: "hardcoded credential in source",
			Severity:    review.SeverityCritical,
			Category:    "security",
			Location:    loc,
			FixSummary:  "move the value to configuration or a secret store",
		})
	}

	tests := review.RawDimension{ID: "tests", Name: "Testing", Score: 40}
	if testHint.MatchString(artifact) {
		tests.Score = 75
	} else {
		tests.Issues = append(tests.Issues, review.RawIssue{
			Description: "no tests accompany the change",
			Severity:    review.SeverityMajor,
			Category:    "tests",
		})
	}

	maintainability := review.RawDimension{ID: "maintainability", Name: "Code Quality & Maintainability", Score: 80}
	for _, loc := range findAll(debugPrintPattern, artifact) {
		maintainability.Score -= 5
		maintainability.Issues = append(maintainability.Issues, review.RawIssue{
			Description: "debug print left in the artifact",
			Severity:    review.SeverityMinor,
			Category:    "hygiene",
			Location:    loc,
		})
	}
	for _, loc := range findAll(panicPattern, artifact) {
		maintainability.Score -= 10
		maintainability.Issues = append(maintainability.Issues, review.RawIssue{
			Description: "panic used where an error return is expected",
			Severity:    review.SeverityMajor,
			Category:    "error-handling",
			Location:    loc,
		})
	}

	performance := review.RawDimension{ID: "performance", Name: "Performance", Score: 75}
	docs := review.RawDimension{ID: "docs", Name: "Documentation", Score: 60}
	if strings.Contains(artifact, "/*") || strings.Contains(artifact, "// ") {
		docs.Score = 80
	}

	for _, d := range []*review.RawDimension{&correctness, &security, &tests, &maintainability, &performance, &docs} {
		if d.Score < 0 {
			d.Score = 0
		}
		raw.Dimensions = append(raw.Dimensions, *d)
	}

	raw.Summary = summarize(raw.Dimensions)
	raw.JudgeCards = []review.JudgeCard{{Model: j.Name()}}
	return &raw, nil
}

// findAll returns "line:N" locations for every match of the pattern.
func findAll(pattern *regexp.Regexp, artifact string) []string {
	var locations []string
	for i, line := range strings.Split(artifact, "\n") {
		if pattern.MatchString(line) {
			locations = append(locations, fmt.Sprintf("line:%d", i+1))
		}
	}
	return locations
}

func summarize(dims []review.RawDimension) string {
	issues := 0
	for _, d := range dims {
		issues += len(d.Issues)
	}
	if issues == 0 {
		return "Static scan found no notable issues."
	}
	return fmt.Sprintf("Static scan reported %d issue(s) across %d dimension(s).", issues, len(dims))
}
