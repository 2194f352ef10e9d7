package output

import (
	"context"

	"github.com/Iron-Ham/gavel/internal/review"
)

// generateMetrics grades the review material itself: how complete,
// concrete, and actionable the judge's output is. These scores describe
// the review, not the artifact.
func generateMetrics(ctx context.Context, in Inputs, out *review.StructuredReview) {
	metrics := review.QualityMetrics{
		Completeness:    40,
		Accuracy:        50,
		Actionability:   40,
		EvidenceQuality: 40,
	}

	if in.Raw != nil {
		if len(in.Raw.Dimensions) >= 4 {
			metrics.Completeness += 30
		}
		if in.Raw.Summary != "" {
			metrics.Completeness += 15
		}
		if in.Raw.ProposedDiff != "" {
			metrics.Completeness += 15
		}

		total, located, proven, fixable := 0, 0, 0, 0
		for _, dim := range in.Raw.Dimensions {
			for _, issue := range dim.Issues {
				total++
				if issue.Location != "" {
					located++
				}
				if issue.Proof != "" {
					proven++
				}
				if issue.FixSummary != "" {
					fixable++
				}
			}
		}
		if total > 0 {
			metrics.EvidenceQuality = 30 + (40*located+30*proven)/total
			metrics.Actionability = 40 + (60*fixable)/total
			metrics.Accuracy = 50 + (30*located)/total
		} else {
			// No findings at all: accurate only if the score agrees.
			if in.Assembled.OverallScore >= 85 {
				metrics.Accuracy = 80
				metrics.EvidenceQuality = 60
				metrics.Actionability = 60
			}
		}
		if len(in.Raw.Citations) > 0 {
			metrics.Accuracy += 10
		}
	}

	metrics.Completeness = clamp100(metrics.Completeness)
	metrics.Accuracy = clamp100(metrics.Accuracy)
	metrics.Actionability = clamp100(metrics.Actionability)
	metrics.EvidenceQuality = clamp100(metrics.EvidenceQuality)
	out.QualityMetrics = metrics
}

func fallbackMetrics(in Inputs, out *review.StructuredReview) {
	out.QualityMetrics = review.QualityMetrics{
		Completeness:    30,
		Accuracy:        30,
		Actionability:   30,
		EvidenceQuality: 30,
	}
}

func clamp100(n int) int {
	if n > 100 {
		return 100
	}
	if n < 0 {
		return 0
	}
	return n
}
