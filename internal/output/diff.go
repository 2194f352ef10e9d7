package output

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/gavel/internal/review"
)

// Proposed-diff size limits. Oversized suggestions are reported but
// marked invalid rather than dropped.
const (
	maxDiffTotalLines = 500
	maxDiffFiles      = 10
	maxHunkLines      = 120
)

// generateDiffs parses the judge's unified-diff suggestion, if any, into
// a validated ProposedDiff.
func generateDiffs(ctx context.Context, in Inputs, out *review.StructuredReview) {
	if in.Raw == nil || strings.TrimSpace(in.Raw.ProposedDiff) == "" {
		out.ProposedDiffs = nil
		return
	}

	diff := parseUnifiedDiff(in.Raw.ProposedDiff)
	diff.VerificationCommands = []string{
		"apply the diff to a clean checkout",
		"run the project's build and full test suite",
	}
	out.ProposedDiffs = []review.ProposedDiff{diff}
}

func fallbackDiffs(in Inputs, out *review.StructuredReview) {
	out.ProposedDiffs = nil
}

// parseUnifiedDiff extracts per-file change counts and validates size
// limits. It tolerates malformed diffs: whatever parses is reported.
func parseUnifiedDiff(text string) review.ProposedDiff {
	diff := review.ProposedDiff{UnifiedDiff: text}

	var current *review.FileChange
	totalLines := 0
	hunkLines, maxHunk := 0, 0

	flushHunk := func() {
		if hunkLines > maxHunk {
			maxHunk = hunkLines
		}
		hunkLines = 0
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ "):
			flushHunk()
			path := strings.TrimPrefix(line, "+++ ")
			path = strings.TrimPrefix(path, "b/")
			if path != "/dev/null" {
				diff.FileChanges = append(diff.FileChanges, review.FileChange{
					Path:   path,
					IsTest: looksLikeTestFile(path),
				})
				current = &diff.FileChanges[len(diff.FileChanges)-1]
			}
		case strings.HasPrefix(line, "@@"):
			flushHunk()
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			totalLines++
			hunkLines++
			if current != nil {
				current.LinesAdded++
			}
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			totalLines++
			hunkLines++
			if current != nil {
				current.LinesRemoved++
			}
		}
	}
	flushHunk()

	diff.Validation = review.DiffValidation{
		Valid:       true,
		TotalLines:  totalLines,
		FileCount:   len(diff.FileChanges),
		MaxHunkSize: maxHunk,
	}
	if totalLines > maxDiffTotalLines {
		diff.Validation.Valid = false
		diff.Validation.Problems = append(diff.Validation.Problems,
			fmt.Sprintf("diff touches %d lines, limit %d", totalLines, maxDiffTotalLines))
	}
	if len(diff.FileChanges) > maxDiffFiles {
		diff.Validation.Valid = false
		diff.Validation.Problems = append(diff.Validation.Problems,
			fmt.Sprintf("diff touches %d files, limit %d", len(diff.FileChanges), maxDiffFiles))
	}
	if maxHunk > maxHunkLines {
		diff.Validation.Valid = false
		diff.Validation.Problems = append(diff.Validation.Problems,
			fmt.Sprintf("largest hunk is %d lines, limit %d", maxHunk, maxHunkLines))
	}
	return diff
}

func looksLikeTestFile(path string) bool {
	base := strings.ToLower(path)
	return strings.Contains(base, "_test.") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, "/test/") ||
		strings.HasPrefix(base, "test_") ||
		strings.Contains(base, "/test_")
}
