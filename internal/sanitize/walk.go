package sanitize

import (
	"fmt"

	"github.com/Iron-Ham/gavel/internal/review"
)

// walkStrings visits every caller-visible string field of the review and
// replaces it with the visitor's return value. The walk is explicit
// rather than reflective so a new output field is a conscious decision
// about whether it needs scrubbing.
func walkStrings(r *review.StructuredReview, visit func(location, text string) string) {
	r.Summary = visit("summary", r.Summary)

	visitSlice := func(location string, items []string) {
		for i := range items {
			items[i] = visit(fmt.Sprintf("%s[%d]", location, i), items[i])
		}
	}

	ev := &r.ExecutiveVerdict
	visitSlice("executiveVerdict.summary", ev.Summary)
	visitSlice("executiveVerdict.nextSteps", ev.NextSteps)
	visitSlice("executiveVerdict.justification", ev.Justification)

	r.EvidenceTable.Summary = visit("evidenceTable.summary", r.EvidenceTable.Summary)
	for i := range r.EvidenceTable.Entries {
		e := &r.EvidenceTable.Entries[i]
		loc := fmt.Sprintf("evidenceTable.entries[%d]", i)
		e.Issue = visit(loc+".issue", e.Issue)
		e.Location = visit(loc+".location", e.Location)
		e.Proof = visit(loc+".proof", e.Proof)
		e.FixSummary = visit(loc+".fixSummary", e.FixSummary)
	}

	for i := range r.ProposedDiffs {
		d := &r.ProposedDiffs[i]
		loc := fmt.Sprintf("proposedDiffs[%d]", i)
		d.UnifiedDiff = visit(loc+".unifiedDiff", d.UnifiedDiff)
		for j := range d.FileChanges {
			d.FileChanges[j].Path = visit(fmt.Sprintf("%s.fileChanges[%d].path", loc, j), d.FileChanges[j].Path)
		}
		visitSlice(loc+".verificationCommands", d.VerificationCommands)
	}

	guide := &r.ReproductionGuide
	for i := range guide.ReproductionSteps {
		step := &guide.ReproductionSteps[i]
		loc := fmt.Sprintf("reproductionGuide.reproductionSteps[%d]", i)
		step.Description = visit(loc+".description", step.Description)
		step.Command = visit(loc+".command", step.Command)
		step.ExpectedOutput = visit(loc+".expectedOutput", step.ExpectedOutput)
	}
	for i := range guide.VerificationSteps {
		step := &guide.VerificationSteps[i]
		loc := fmt.Sprintf("reproductionGuide.verificationSteps[%d]", i)
		step.Description = visit(loc+".description", step.Description)
		step.Command = visit(loc+".command", step.Command)
		step.SuccessCriteria = visit(loc+".successCriteria", step.SuccessCriteria)
		visitSlice(loc+".failureIndicators", step.FailureIndicators)
	}
	visitSlice("reproductionGuide.testCommands", guide.TestCommands)
	visitSlice("reproductionGuide.validationCommands", guide.ValidationCommands)

	matrix := &r.TraceabilityMatrix
	matrix.CoverageSummary = visit("traceabilityMatrix.coverageSummary", matrix.CoverageSummary)
	for i := range matrix.ACMappings {
		m := &matrix.ACMappings[i]
		loc := fmt.Sprintf("traceabilityMatrix.acMappings[%d]", i)
		m.Description = visit(loc+".description", m.Description)
		visitSlice(loc+".implementationFiles", m.ImplementationFiles)
		visitSlice(loc+".testFiles", m.TestFiles)
	}
	for i := range matrix.UnmetACs {
		matrix.UnmetACs[i].Description = visit(
			fmt.Sprintf("traceabilityMatrix.unmetACs[%d].description", i), matrix.UnmetACs[i].Description)
	}
	for i := range matrix.MissingTests {
		mt := &matrix.MissingTests[i]
		loc := fmt.Sprintf("traceabilityMatrix.missingTests[%d]", i)
		mt.Description = visit(loc+".description", mt.Description)
		mt.SuggestedName = visit(loc+".suggestedName", mt.SuggestedName)
	}

	r.FollowUpTasks.Summary = visit("followUpTasks.summary", r.FollowUpTasks.Summary)
	for i := range r.FollowUpTasks.Tasks {
		task := &r.FollowUpTasks.Tasks[i]
		task.Title = visit(fmt.Sprintf("followUpTasks.tasks[%d].title", i), task.Title)
	}

	r.Completion.Message = visit("completion.message", r.Completion.Message)

	for i := range r.JudgeCards {
		r.JudgeCards[i].Notes = visit(fmt.Sprintf("judgeCards[%d].notes", i), r.JudgeCards[i].Notes)
	}

	if r.ProgressAnalysis != nil {
		visitSlice("progressAnalysis.suggestions", r.ProgressAnalysis.Suggestions)
	}
	if r.Termination != nil {
		visitSlice("terminationResult.criticalIssues", r.Termination.CriticalIssues)
	}
}
