package output

import (
	"context"
	"fmt"
	"sort"

	"github.com/Iron-Ham/gavel/internal/review"
)

// generateVerdict builds the executive ship/no-ship section.
func generateVerdict(ctx context.Context, in Inputs, out *review.StructuredReview) {
	score := in.Assembled.OverallScore
	verdict := in.Assembled.Verdict

	ev := review.ExecutiveVerdict{
		Decision:   "no-ship",
		Risk:       riskLevel(in),
		Confidence: confidence(in),
	}
	if verdict == review.VerdictPass {
		ev.Decision = "ship"
	}

	ev.Summary = append(ev.Summary,
		fmt.Sprintf("Overall score %d/100 with verdict %q.", score, verdict))
	if criticals := criticalDescriptions(in); len(criticals) > 0 {
		ev.Summary = append(ev.Summary,
			fmt.Sprintf("%d critical issue(s) block shipping.", len(criticals)))
		for _, c := range limit(criticals, 2) {
			ev.Summary = append(ev.Summary, "Critical: "+c)
		}
	}
	for _, d := range weakestDimensions(in, 2) {
		ev.Summary = append(ev.Summary,
			fmt.Sprintf("Weakest dimension: %s at %.0f.", d.Name, d.Score))
	}
	ev.Summary = padSummary(ev.Summary, in)
	ev.Summary = limit(ev.Summary, 6)

	switch verdict {
	case review.VerdictPass:
		ev.Justification = append(ev.Justification,
			"Score clears the ship threshold with no critical findings and all required dimensions satisfied.")
		ev.NextSteps = append(ev.NextSteps, "Merge and monitor; address follow-up tasks opportunistically.")
	case review.VerdictReject:
		ev.Justification = append(ev.Justification,
			"Score falls below the reject floor; the approach needs rework, not iteration.")
		ev.NextSteps = append(ev.NextSteps, "Revisit the design before resubmitting.")
	default:
		ev.Justification = append(ev.Justification,
			"Findings are addressable within the current approach.")
		for i, c := range limit(criticalDescriptions(in), 3) {
			ev.NextSteps = append(ev.NextSteps, fmt.Sprintf("%d. Fix: %s", i+1, c))
		}
		if len(ev.NextSteps) == 0 {
			ev.NextSteps = append(ev.NextSteps, "Address the highest-severity evidence entries and resubmit.")
		}
	}

	out.ExecutiveVerdict = ev
}

func fallbackVerdict(in Inputs, out *review.StructuredReview) {
	decision := "no-ship"
	if in.Assembled.Verdict == review.VerdictPass {
		decision = "ship"
	}
	out.ExecutiveVerdict = review.ExecutiveVerdict{
		Decision:   decision,
		Summary:    []string{fmt.Sprintf("Overall score %d/100.", in.Assembled.OverallScore)},
		NextSteps:  []string{"Review the evidence table for details."},
		Risk:       "unknown",
		Confidence: 30,
	}
}

// padSummary tops the bullet list up to three entries so even a quiet
// review reads as a complete executive summary.
func padSummary(summary []string, in Inputs) []string {
	candidates := []string{
		fmt.Sprintf("Risk assessed as %s with %d%% confidence.", riskLevel(in), confidence(in)),
		fmt.Sprintf("Findings span %d scored dimension(s).", len(in.Assembled.Dimensions)),
		"See the evidence table and follow-up tasks for detail.",
	}
	for _, c := range candidates {
		if len(summary) >= 3 {
			break
		}
		summary = append(summary, c)
	}
	return summary
}

func riskLevel(in Inputs) string {
	criticals, majors := 0, 0
	if in.Raw != nil {
		for _, d := range in.Raw.Dimensions {
			for _, issue := range d.Issues {
				switch issue.Severity {
				case review.SeverityCritical:
					criticals++
				case review.SeverityMajor:
					majors++
				}
			}
		}
	}
	switch {
	case criticals > 0:
		return "high"
	case majors > 1:
		return "medium"
	default:
		return "low"
	}
}

// confidence reflects how much signal backs the verdict: multiple judges
// agreeing raises it, a thin review lowers it.
func confidence(in Inputs) int {
	c := 70
	if in.Raw == nil {
		return 30
	}
	if len(in.Raw.JudgeCards) > 1 {
		c += 10
	}
	if len(in.Raw.Citations) > 0 {
		c += 10
	}
	issues := 0
	for _, d := range in.Raw.Dimensions {
		issues += len(d.Issues)
	}
	if issues == 0 && in.Assembled.OverallScore < 80 {
		// A low score with no concrete findings is weak evidence.
		c -= 20
	}
	if c > 100 {
		c = 100
	}
	return c
}

func criticalDescriptions(in Inputs) []string {
	if in.Raw == nil {
		return nil
	}
	return in.Raw.CriticalIssues()
}

func weakestDimensions(in Inputs, n int) []review.DimensionScore {
	dims := append([]review.DimensionScore(nil), in.Assembled.Dimensions...)
	sort.Slice(dims, func(i, j int) bool { return dims[i].Score < dims[j].Score })
	if len(dims) > n {
		dims = dims[:n]
	}
	return dims
}

func limit(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
