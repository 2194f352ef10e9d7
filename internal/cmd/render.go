package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/gavel/internal/review"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)

	shipStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("42")).
			Padding(0, 1)
	noShipStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("160"))
	majorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	minorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// renderWidth is the rule width for section separators, clamped to the
// terminal when one is attached.
func renderWidth() int {
	width := 72
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < width {
		width = w
	}
	return width
}

// renderReview formats a review document for a human reader.
func renderReview(doc *review.StructuredReview) string {
	var b strings.Builder
	rule := dimStyle.Render(strings.Repeat("─", renderWidth()))

	badge := noShipStyle.Render("NO-SHIP")
	if doc.ExecutiveVerdict.Decision == "ship" {
		badge = shipStyle.Render("SHIP")
	}
	b.WriteString(fmt.Sprintf("\n%s  %s\n",
		badge, headerStyle.Render(fmt.Sprintf("score %d/100 · verdict %s · iteration %d",
			doc.OverallScore, doc.Verdict, doc.Iterations))))
	b.WriteString(rule + "\n")

	for _, line := range doc.ExecutiveVerdict.Summary {
		b.WriteString("  " + line + "\n")
	}

	if len(doc.Dimensions) > 0 {
		b.WriteString("\n" + headerStyle.Render("DIMENSIONS") + "\n" + rule + "\n")
		for _, d := range doc.Dimensions {
			b.WriteString(fmt.Sprintf("  %-36s %5.0f\n", d.Name, d.Score))
		}
	}

	if len(doc.EvidenceTable.Entries) > 0 {
		b.WriteString("\n" + headerStyle.Render("EVIDENCE") + "\n" + rule + "\n")
		for _, e := range doc.EvidenceTable.Entries {
			b.WriteString(fmt.Sprintf("  %s %s %s",
				dimStyle.Render(e.ID), severityBadge(e.Severity), e.Issue))
			if e.Location != "" {
				b.WriteString(dimStyle.Render("  (" + e.Location + ")"))
			}
			b.WriteString("\n")
		}
		b.WriteString(dimStyle.Render("  "+doc.EvidenceTable.Summary) + "\n")
	}

	if len(doc.ExecutiveVerdict.NextSteps) > 0 {
		b.WriteString("\n" + headerStyle.Render("NEXT STEPS") + "\n" + rule + "\n")
		for _, step := range doc.ExecutiveVerdict.NextSteps {
			b.WriteString("  " + step + "\n")
		}
	}

	if doc.ProgressAnalysis != nil && len(doc.ProgressAnalysis.Suggestions) > 0 {
		b.WriteString("\n" + headerStyle.Render("PROGRESS") + "\n" + rule + "\n")
		for _, s := range doc.ProgressAnalysis.Suggestions {
			b.WriteString("  " + s + "\n")
		}
	}

	if doc.Completion.Message != "" {
		b.WriteString("\n" + doc.Completion.Message + "\n")
	}
	for _, w := range doc.Metadata.Warnings {
		b.WriteString(dimStyle.Render(fmt.Sprintf("warning [%s] %s", w.Code, w.Message)) + "\n")
	}

	return b.String()
}

func severityBadge(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return criticalStyle.Render("CRIT ")
	case review.SeverityMajor:
		return majorStyle.Render("MAJOR")
	default:
		return minorStyle.Render("minor")
	}
}
