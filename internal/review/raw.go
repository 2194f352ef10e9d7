package review

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Iron-Ham/gavel/internal/errors"
)

// RawIssue is one finding reported by the judge within a dimension.
type RawIssue struct {
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Category    string   `json:"category,omitempty"`
	Location    string   `json:"location,omitempty"`
	Proof       string   `json:"proof,omitempty"`
	FixSummary  string   `json:"fix_summary,omitempty"`
}

// RawDimension is the judge's evaluation of one quality dimension.
type RawDimension struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Score  float64    `json:"score"` // 0..100; out-of-range values are clamped downstream
	Issues []RawIssue `json:"issues,omitempty"`
}

// InlineComment is a judge remark anchored to a file location.
type InlineComment struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Comment  string   `json:"comment"`
	Severity Severity `json:"severity,omitempty"`
}

// Citation is a judge-provided pointer into the audited artifact.
type Citation struct {
	Location string `json:"location"`
	Excerpt  string `json:"excerpt,omitempty"`
}

// RawReview is the judge's unprocessed output for one audit. The score
// assembler and output builder turn it into a StructuredReview.
type RawReview struct {
	Dimensions   []RawDimension  `json:"dimensions"`
	Summary      string          `json:"summary"`
	Inline       []InlineComment `json:"inline,omitempty"`
	Citations    []Citation      `json:"citations,omitempty"`
	ProposedDiff string          `json:"proposed_diff,omitempty"`
	JudgeCards   []JudgeCard     `json:"judge_cards,omitempty"`
}

// CriticalIssues returns the descriptions of all critical-severity issues
// across dimensions, in dimension order.
func (r *RawReview) CriticalIssues() []string {
	var out []string
	for _, d := range r.Dimensions {
		for _, issue := range d.Issues {
			if issue.Severity == SeverityCritical {
				out = append(out, issue.Description)
			}
		}
	}
	return out
}

// smartQuoteReplacements maps common LLM-emitted Unicode quote characters
// to their ASCII equivalents before JSON parsing.
var smartQuoteReplacements = map[string]string{
	"“": `"`, "”": `"`, "„": `"`, "‟": `"`,
	"‘": `'`, "’": `'`, "‚": `'`, "‛": `'`,
	"«": `"`, "»": `"`, "‹": `'`, "›": `'`,
	"＂": `"`,
}

var codeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")

// SanitizeJSONContent cleans up common LLM quirks in JSON output: smart
// quotes, markdown code fences, and stray text around the outermost
// object. Judge adapters call this before unmarshaling.
func SanitizeJSONContent(data []byte) []byte {
	content := string(data)

	for old, replacement := range smartQuoteReplacements {
		content = strings.ReplaceAll(content, old, replacement)
	}

	if matches := codeBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		content = matches[1]
	}

	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "{") {
		if startIdx := strings.Index(content, "{"); startIdx != -1 {
			content = content[startIdx:]
		}
	}
	if !strings.HasSuffix(content, "}") {
		if endIdx := strings.LastIndex(content, "}"); endIdx != -1 {
			content = content[:endIdx+1]
		}
	}

	return []byte(strings.TrimSpace(content))
}

// ParseRawReview sanitizes and parses judge output. A judge returning
// non-JSON or a review with no dimensions yields a JudgeError.
func ParseRawReview(data []byte) (*RawReview, error) {
	sanitized := SanitizeJSONContent(data)

	var raw RawReview
	if err := json.Unmarshal(sanitized, &raw); err != nil {
		preview := string(sanitized)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, errors.NewAuditError(errors.CodeJudgeError,
			fmt.Sprintf("judge output is not valid JSON (content preview: %q)", preview), err)
	}

	if len(raw.Dimensions) == 0 {
		return nil, errors.NewAuditError(errors.CodeJudgeError,
			"judge output contains no dimension evaluations", errors.ErrJudgeFailed)
	}

	for i := range raw.Dimensions {
		raw.Dimensions[i].normalizeSeverities()
	}
	return &raw, nil
}

// normalizeSeverities rewrites issue severities in place: anything
// unrecognized is treated as Minor so malformed judge output never
// inflates criticality.
func (d *RawDimension) normalizeSeverities() {
	for i, issue := range d.Issues {
		switch issue.Severity {
		case SeverityCritical, SeverityMajor, SeverityMinor:
		default:
			d.Issues[i].Severity = SeverityMinor
		}
	}
}
