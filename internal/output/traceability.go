package output

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/gavel/internal/review"
)

// generateTraceability derives acceptance criteria from the session task
// description and maps them against the judge's citations and findings.
// Without a task there is nothing to trace.
func generateTraceability(ctx context.Context, in Inputs, out *review.StructuredReview) {
	out.TraceabilityMatrix = buildTraceability(in)
}

// buildTraceability is the matrix construction shared by the
// traceability and follow-up-task generators. Confidence is a weighted
// composite: a direct reference to the criterion (by AC id or verbatim
// text) contributes DirectRefWeight, keyword overlap contributes up to
// KeywordWeight. A mapping counts as covered at ConfidenceThreshold.
func buildTraceability(in Inputs) review.TraceabilityMatrix {
	opts := in.Opts.withDefaults()
	criteria := extractCriteria(in.Config.Task)
	if len(criteria) == 0 {
		return review.TraceabilityMatrix{
			CoverageSummary: "No acceptance criteria stated; nothing to trace.",
		}
	}

	matrix := review.TraceabilityMatrix{}
	covered := 0
	for i, criterion := range criteria {
		acID := fmt.Sprintf("AC%d", i+1)
		mapping := review.ACMapping{
			ACID:        acID,
			Description: criterion,
			Status:      review.CoverageNone,
		}

		direct := false
		bestOverlap := 0.0
		if in.Raw != nil {
			for _, citation := range in.Raw.Citations {
				text := citation.Excerpt + " " + citation.Location
				d := directlyReferences(text, acID, criterion)
				overlap := keywordOverlap(text, criterion)
				if !d && overlap == 0 {
					continue
				}
				if d {
					direct = true
				}
				if overlap > bestOverlap {
					bestOverlap = overlap
				}
				if isTestLocation(citation.Location) {
					mapping.TestFiles = append(mapping.TestFiles, citation.Location)
				} else {
					mapping.ImplementationFiles = append(mapping.ImplementationFiles, citation.Location)
				}
			}
		}

		mapping.Confidence = int(bestOverlap*float64(opts.KeywordWeight) + 0.5)
		if direct {
			mapping.Confidence += opts.DirectRefWeight
		}
		if mapping.Confidence > 100 {
			mapping.Confidence = 100
		}

		switch {
		case direct && len(mapping.TestFiles) > 0:
			mapping.Status = review.CoverageFull
		case mapping.Confidence >= opts.ConfidenceThreshold:
			mapping.Status = review.CoveragePartial
		}

		// A criterion the judge raised issues against is at best partial.
		if hasIssueMentioning(in, criterion) && mapping.Status == review.CoverageFull {
			mapping.Status = review.CoveragePartial
		}

		if mapping.Status != review.CoverageNone {
			covered++
		}

		matrix.ACMappings = append(matrix.ACMappings, mapping)
		if mapping.Status == review.CoverageNone {
			matrix.UnmetACs = append(matrix.UnmetACs, review.UnmetAC{
				ACID:        acID,
				Description: criterion,
				Priority:    "high",
			})
		}
		if len(mapping.TestFiles) == 0 {
			matrix.MissingTests = append(matrix.MissingTests, review.MissingTest{
				ACID:          acID,
				Description:   "no test evidence for: " + criterion,
				SuggestedName: suggestTestName(criterion),
				Priority:      missingTestPriority(mapping.Status),
			})
		}
	}

	matrix.CoverageSummary = fmt.Sprintf("%d of %d acceptance criteria show coverage evidence.",
		covered, len(criteria))
	return matrix
}

func fallbackTraceability(in Inputs, out *review.StructuredReview) {
	out.TraceabilityMatrix = review.TraceabilityMatrix{
		CoverageSummary: "Traceability analysis was unavailable for this iteration.",
	}
}

func missingTestPriority(status review.CoverageStatus) string {
	if status == review.CoverageNone {
		return "high"
	}
	return "normal"
}

// extractCriteria pulls bullet or numbered lines out of a task
// description; a short single-line task is itself one criterion.
func extractCriteria(task string) []string {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil
	}

	var criteria []string
	for _, line := range strings.Split(task, "\n") {
		line = strings.TrimSpace(line)
		trimmed := strings.TrimLeft(line, "-*0123456789.) ")
		if trimmed != line && trimmed != "" {
			criteria = append(criteria, trimmed)
		}
	}
	if len(criteria) == 0 {
		criteria = []string{task}
	}
	return criteria
}

// directlyReferences reports whether the text names the criterion
// outright, by AC id or by quoting it verbatim.
func directlyReferences(text, acID, criterion string) bool {
	text = strings.ToLower(text)
	return strings.Contains(text, strings.ToLower(acID)) ||
		strings.Contains(text, strings.ToLower(strings.TrimSpace(criterion)))
}

// keywordOverlap is the fraction of the criterion's significant words
// (length >= 5) appearing in the text.
func keywordOverlap(text, criterion string) float64 {
	text = strings.ToLower(text)
	significant, matched := 0, 0
	for _, word := range strings.Fields(strings.ToLower(criterion)) {
		if len(word) < 5 {
			continue
		}
		significant++
		if strings.Contains(text, word) {
			matched++
		}
	}
	if significant == 0 {
		return 0
	}
	return float64(matched) / float64(significant)
}

func isTestLocation(location string) bool {
	return strings.Contains(location, "_test.")
}

func mentions(text, criterion string) bool {
	if text == "" {
		return false
	}
	return keywordOverlap(text, criterion) > 0
}

func hasIssueMentioning(in Inputs, criterion string) bool {
	if in.Raw == nil {
		return false
	}
	for _, dim := range in.Raw.Dimensions {
		for _, issue := range dim.Issues {
			if mentions(issue.Description, criterion) {
				return true
			}
		}
	}
	return false
}

func suggestTestName(criterion string) string {
	words := strings.Fields(criterion)
	if len(words) > 5 {
		words = words[:5]
	}
	var b strings.Builder
	b.WriteString("Test")
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, w)
		if w == "" {
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]) + strings.ToLower(w[1:]))
	}
	return b.String()
}
