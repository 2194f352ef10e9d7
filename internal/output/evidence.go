package output

import (
	"context"
	"fmt"
	"sort"

	"github.com/Iron-Ham/gavel/internal/review"
)

// generateEvidence builds the deduplicated, severity-sorted evidence
// table from the raw judge findings. The same description at the same
// location is still distinct evidence when its type differs. The table
// is capped after sorting so the highest-severity entries survive.
func generateEvidence(ctx context.Context, in Inputs, out *review.StructuredReview) {
	if in.Raw == nil {
		fallbackEvidence(in, out)
		return
	}
	opts := in.Opts.withDefaults()

	type key struct{ typ, location, issue string }
	seen := make(map[key]bool)
	var entries []review.EvidenceEntry

	for _, dim := range in.Raw.Dimensions {
		for _, issue := range dim.Issues {
			category := issue.Category
			if category == "" {
				category = dim.ID
			}
			k := key{category, issue.Location, issue.Description}
			if seen[k] {
				continue
			}
			seen[k] = true
			entries = append(entries, review.EvidenceEntry{
				Issue:      issue.Description,
				Type:       category,
				Severity:   issue.Severity,
				Location:   issue.Location,
				Proof:      issue.Proof,
				FixSummary: issue.FixSummary,
			})
		}
	}

	if opts.GroupEvidenceByFile {
		// Location first keeps each file's findings together, worst first.
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Location != entries[j].Location {
				return entries[i].Location < entries[j].Location
			}
			return review.SeverityRank(entries[i].Severity) < review.SeverityRank(entries[j].Severity)
		})
	} else {
		// Severity first, then type, for a stable reading order.
		sort.SliceStable(entries, func(i, j int) bool {
			ri, rj := review.SeverityRank(entries[i].Severity), review.SeverityRank(entries[j].Severity)
			if ri != rj {
				return ri < rj
			}
			if entries[i].Type != entries[j].Type {
				return entries[i].Type < entries[j].Type
			}
			return entries[i].Location < entries[j].Location
		})
	}
	if len(entries) > opts.MaxEvidenceEntries {
		entries = entries[:opts.MaxEvidenceEntries]
	}
	for i := range entries {
		entries[i].ID = fmt.Sprintf("E%d", i+1)
	}

	out.EvidenceTable = review.EvidenceTable{
		Entries: entries,
		Summary: evidenceSummary(entries),
	}
}

func fallbackEvidence(in Inputs, out *review.StructuredReview) {
	out.EvidenceTable = review.EvidenceTable{
		Summary: "Evidence collection was unavailable for this iteration.",
	}
}

func evidenceSummary(entries []review.EvidenceEntry) string {
	if len(entries) == 0 {
		return "No findings."
	}
	counts := map[review.Severity]int{}
	for _, e := range entries {
		counts[e.Severity]++
	}
	return fmt.Sprintf("%d finding(s): %d critical, %d major, %d minor.",
		len(entries),
		counts[review.SeverityCritical],
		counts[review.SeverityMajor],
		counts[review.SeverityMinor])
}
