package output

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/gavel/internal/review"
)

// generateRepro builds the reproduction guide from critical and major
// findings: one reproduction step per finding, plus verification steps
// tied to their fixes.
func generateRepro(ctx context.Context, in Inputs, out *review.StructuredReview) {
	guide := review.ReproductionGuide{
		TestCommands:       []string{"run the project's full test suite"},
		ValidationCommands: []string{"run the project's linter and build"},
	}

	if in.Raw != nil {
		n := 0
		for _, dim := range in.Raw.Dimensions {
			for _, issue := range dim.Issues {
				if issue.Severity == review.SeverityMinor {
					continue
				}
				n++
				step := review.ReproStep{
					Number:      n,
					Description: fmt.Sprintf("Observe: %s", issue.Description),
				}
				if issue.Location != "" {
					step.Description += fmt.Sprintf(" (%s)", issue.Location)
				}
				if issue.Proof != "" {
					step.ExpectedOutput = issue.Proof
				}
				guide.ReproductionSteps = append(guide.ReproductionSteps, step)

				verification := review.VerificationStep{
					Number:          n,
					Description:     fmt.Sprintf("Verify the fix for: %s", issue.Description),
					SuccessCriteria: "the observation above no longer reproduces",
				}
				if issue.FixSummary != "" {
					verification.Description += fmt.Sprintf(" (%s)", issue.FixSummary)
				}
				guide.VerificationSteps = append(guide.VerificationSteps, verification)
			}
		}
	}

	out.ReproductionGuide = guide
}

func fallbackRepro(in Inputs, out *review.StructuredReview) {
	out.ReproductionGuide = review.ReproductionGuide{
		TestCommands: []string{"run the project's full test suite"},
	}
}
