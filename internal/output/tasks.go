package output

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Iron-Ham/gavel/internal/review"
)

// generateTasks turns the audit's findings into a prioritized follow-up
// task list: one task per reported issue, plus tasks for unmet
// acceptance criteria and missing tests from the traceability analysis.
// The configured strategy orders the list; severity_first is the
// default.
func generateTasks(ctx context.Context, in Inputs, out *review.StructuredReview) {
	opts := in.Opts.withDefaults()
	var tasks []review.FollowUpTask

	if in.Raw != nil {
		for _, dim := range in.Raw.Dimensions {
			for _, issue := range dim.Issues {
				category := issue.Category
				if category == "" {
					category = dim.ID
				}
				title := issue.Description
				if issue.FixSummary != "" {
					title = fmt.Sprintf("%s — %s", issue.Description, issue.FixSummary)
				}
				task := review.FollowUpTask{
					Title:          title,
					Category:       category,
					Priority:       taskPriority(issue.Severity),
					EstimatedHours: estimateEffort(category, issue.Severity),
				}
				if issue.Location != "" {
					task.RelatedEvidence = append(task.RelatedEvidence, issue.Location)
				}
				tasks = append(tasks, task)
			}
		}
	}

	// Unmet criteria and missing tests come out of the same traceability
	// analysis the matrix section runs; sections write disjoint fields, so
	// this generator recomputes it rather than reading a sibling section.
	matrix := buildTraceability(in)
	var acTitles, testTitles []string
	for _, unmet := range matrix.UnmetACs {
		title := "Implement unmet acceptance criterion: " + unmet.Description
		acTitles = append(acTitles, title)
		tasks = append(tasks, review.FollowUpTask{
			Title:          title,
			Category:       "correctness",
			Priority:       unmet.Priority,
			EstimatedHours: estimateEffort("correctness", review.SeverityMajor),
		})
	}
	for _, missing := range matrix.MissingTests {
		title := fmt.Sprintf("Add %s covering: %s", missing.SuggestedName, missing.Description)
		testTitles = append(testTitles, title)
		tasks = append(tasks, review.FollowUpTask{
			Title:          title,
			Category:       "tests",
			Priority:       missing.Priority,
			EstimatedHours: estimateEffort("tests", review.SeverityMinor),
		})
	}

	orderTasks(tasks, opts.TaskStrategy)
	for i := range tasks {
		tasks[i].ID = fmt.Sprintf("T%d", i+1)
	}
	if opts.TaskStrategy == StrategyDependencyAware {
		linkTestDependencies(tasks, acTitles, testTitles)
	}

	summary := "No follow-up work identified."
	if len(tasks) > 0 {
		summary = fmt.Sprintf("%d follow-up task(s), ordered by %s.", len(tasks), opts.TaskStrategy)
	}
	out.FollowUpTasks = review.FollowUpTaskList{Tasks: tasks, Summary: summary}
}

func fallbackTasks(in Inputs, out *review.StructuredReview) {
	out.FollowUpTasks = review.FollowUpTaskList{
		Summary: "Follow-up task generation was unavailable for this iteration.",
	}
}

func taskPriority(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return "critical"
	case review.SeverityMajor:
		return "high"
	default:
		return "normal"
	}
}

// categoryBaseHours is the per-category effort base; the severity
// multiplier scales it.
var categoryBaseHours = map[string]float64{
	"security":        4,
	"correctness":     3,
	"performance":     3,
	"tests":           2,
	"maintainability": 2,
	"docs":            1,
}

func estimateEffort(category string, s review.Severity) float64 {
	base, ok := categoryBaseHours[strings.ToLower(category)]
	if !ok {
		base = 2
	}
	switch s {
	case review.SeverityCritical:
		return base * 2.0
	case review.SeverityMajor:
		return base * 1.5
	default:
		return base
	}
}

// priorityRank orders critical > high > normal.
func priorityRank(priority string) int {
	switch priority {
	case "critical":
		return 0
	case "high":
		return 1
	default:
		return 2
	}
}

// categoryImpact ranks categories by blast radius for the impact_based
// strategy.
var categoryImpact = map[string]int{
	"security":        0,
	"correctness":     1,
	"performance":     2,
	"tests":           3,
	"maintainability": 4,
	"docs":            5,
}

func orderTasks(tasks []review.FollowUpTask, strategy string) {
	switch strategy {
	case StrategyImpactBased:
		sort.SliceStable(tasks, func(i, j int) bool {
			ii, ok := categoryImpact[strings.ToLower(tasks[i].Category)]
			if !ok {
				ii = len(categoryImpact)
			}
			ij, ok := categoryImpact[strings.ToLower(tasks[j].Category)]
			if !ok {
				ij = len(categoryImpact)
			}
			if ii != ij {
				return ii < ij
			}
			return priorityRank(tasks[i].Priority) < priorityRank(tasks[j].Priority)
		})
	case StrategyEffortWeighted:
		// Quick wins first.
		sort.SliceStable(tasks, func(i, j int) bool {
			if tasks[i].EstimatedHours != tasks[j].EstimatedHours {
				return tasks[i].EstimatedHours < tasks[j].EstimatedHours
			}
			return priorityRank(tasks[i].Priority) < priorityRank(tasks[j].Priority)
		})
	case StrategyDependencyAware:
		// Dependency-free implementation work precedes the tests that
		// depend on it; severity breaks ties.
		sort.SliceStable(tasks, func(i, j int) bool {
			ti, tj := tasks[i].Category == "tests", tasks[j].Category == "tests"
			if ti != tj {
				return !ti
			}
			return priorityRank(tasks[i].Priority) < priorityRank(tasks[j].Priority)
		})
	default: // StrategySeverityFirst
		sort.SliceStable(tasks, func(i, j int) bool {
			return priorityRank(tasks[i].Priority) < priorityRank(tasks[j].Priority)
		})
	}
}

// linkTestDependencies marks missing-test tasks as depending on the
// unmet-criterion tasks, which must land first.
func linkTestDependencies(tasks []review.FollowUpTask, acTitles, testTitles []string) {
	acIDs := make([]string, 0, len(acTitles))
	acSet := make(map[string]bool, len(acTitles))
	for _, t := range acTitles {
		acSet[t] = true
	}
	for _, task := range tasks {
		if acSet[task.Title] {
			acIDs = append(acIDs, task.ID)
		}
	}
	if len(acIDs) == 0 {
		return
	}
	testSet := make(map[string]bool, len(testTitles))
	for _, t := range testTitles {
		testSet[t] = true
	}
	for i := range tasks {
		if testSet[tasks[i].Title] {
			tasks[i].DependsOn = append([]string(nil), acIDs...)
		}
	}
}
