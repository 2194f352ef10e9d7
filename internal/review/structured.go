package review

import "time"

// SchemaVersion is written into every review's metadata block.
const SchemaVersion = "1.0.0"

// DimensionScore is one weighted quality dimension's evaluated score.
type DimensionScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ExecutiveVerdict is the ship/no-ship decision with supporting summary.
type ExecutiveVerdict struct {
	Decision      string   `json:"decision"` // "ship" or "no-ship"
	Summary       []string `json:"summary"`  // 3..6 bullets
	NextSteps     []string `json:"nextSteps"`
	Justification []string `json:"justification"`
	EvidenceRefs  []string `json:"evidenceRefs,omitempty"`
	Risk          string   `json:"risk"`
	Confidence    int      `json:"confidence"` // 0..100
}

// EvidenceEntry is a concrete finding with severity, location, and proof.
type EvidenceEntry struct {
	ID         string   `json:"id"`
	Issue      string   `json:"issue"`
	Type       string   `json:"type"` // category: security, bug, tests, style, ...
	Severity   Severity `json:"severity"`
	Location   string   `json:"location"`
	Proof      string   `json:"proof,omitempty"`
	FixSummary string   `json:"fixSummary,omitempty"`
}

// EvidenceTable collects deduplicated, severity-sorted evidence.
type EvidenceTable struct {
	Entries []EvidenceEntry `json:"entries"`
	Summary string          `json:"summary"`
}

// FileChange describes one file touched by a proposed diff.
type FileChange struct {
	Path         string `json:"path"`
	LinesAdded   int    `json:"linesAdded"`
	LinesRemoved int    `json:"linesRemoved"`
	IsTest       bool   `json:"isTest"`
}

// DiffValidation records whether a proposed diff respects the size limits.
type DiffValidation struct {
	Valid       bool     `json:"valid"`
	TotalLines  int      `json:"totalLines"`
	FileCount   int      `json:"fileCount"`
	MaxHunkSize int      `json:"maxHunkSize"`
	Problems    []string `json:"problems,omitempty"`
}

// ProposedDiff is a unified-diff suggestion for a specific fix.
type ProposedDiff struct {
	UnifiedDiff          string         `json:"unifiedDiff"`
	FileChanges          []FileChange   `json:"fileChanges"`
	Validation           DiffValidation `json:"validation"`
	VerificationCommands []string       `json:"verificationCommands"`
}

// ReproStep is one ordered step in the reproduction guide.
type ReproStep struct {
	Number         int    `json:"number"`
	Description    string `json:"description"`
	Command        string `json:"command,omitempty"`
	ExpectedOutput string `json:"expectedOutput,omitempty"`
}

// VerificationStep is a reproduction-guide check with success criteria.
type VerificationStep struct {
	Number            int      `json:"number"`
	Description       string   `json:"description"`
	Command           string   `json:"command,omitempty"`
	SuccessCriteria   string   `json:"successCriteria"`
	FailureIndicators []string `json:"failureIndicators,omitempty"`
}

// ReproductionGuide tells a reader how to reproduce and verify the findings.
type ReproductionGuide struct {
	ReproductionSteps  []ReproStep        `json:"reproductionSteps"`
	VerificationSteps  []VerificationStep `json:"verificationSteps"`
	TestCommands       []string           `json:"testCommands"`
	ValidationCommands []string           `json:"validationCommands"`
}

// CoverageStatus classifies how well an acceptance criterion is covered.
type CoverageStatus string

const (
	CoverageFull    CoverageStatus = "fully_covered"
	CoveragePartial CoverageStatus = "partially_covered"
	CoverageNone    CoverageStatus = "not_covered"
	CoverageOver    CoverageStatus = "over_covered"
)

// ACMapping links one acceptance criterion to implementation and tests.
type ACMapping struct {
	ACID                string         `json:"acId"`
	Description         string         `json:"description"`
	ImplementationFiles []string       `json:"implementationFiles"`
	TestFiles           []string       `json:"testFiles"`
	Status              CoverageStatus `json:"status"`
	Confidence          int            `json:"confidence"` // 0..100
}

// UnmetAC is an acceptance criterion without satisfactory coverage.
type UnmetAC struct {
	ACID        string `json:"acId"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// MissingTest is a test the traceability analysis expected but did not find.
type MissingTest struct {
	ACID          string `json:"acId"`
	Description   string `json:"description"`
	SuggestedName string `json:"suggestedName"`
	Priority      string `json:"priority"`
}

// TraceabilityMatrix maps acceptance criteria to code and tests.
type TraceabilityMatrix struct {
	ACMappings      []ACMapping   `json:"acMappings"`
	CoverageSummary string        `json:"coverageSummary"`
	UnmetACs        []UnmetAC     `json:"unmetACs"`
	MissingTests    []MissingTest `json:"missingTests"`
}

// FollowUpTask is one actionable item derived from the audit.
type FollowUpTask struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Priority        string   `json:"priority"`
	RelatedEvidence []string `json:"relatedEvidence,omitempty"`
	EstimatedHours  float64  `json:"estimatedHours,omitempty"`
	DependsOn       []string `json:"dependsOn,omitempty"`
}

// FollowUpTaskList is the prioritized task list with a summary line.
type FollowUpTaskList struct {
	Tasks   []FollowUpTask `json:"tasks"`
	Summary string         `json:"summary"`
}

// CompletionStatus tells the caller whether the iterative loop should end.
type CompletionStatus struct {
	IsComplete        bool   `json:"isComplete"`
	Reason            string `json:"reason,omitempty"` // "score", "maxLoops", "stagnation"
	NextThoughtNeeded bool   `json:"nextThoughtNeeded"`
	Message           string `json:"message,omitempty"`
}

// QualityMetrics grades the assembled output itself, 0..100 each.
type QualityMetrics struct {
	Completeness    int `json:"completeness"`
	Accuracy        int `json:"accuracy"`
	Actionability   int `json:"actionability"`
	EvidenceQuality int `json:"evidenceQuality"`
}

// SanitizationAction records one redaction performed on the output.
type SanitizationAction struct {
	Kind        string `json:"kind"` // "pii", "secret", "tool_syntax", "path", "content"
	Location    string `json:"location"`
	Replacement string `json:"replacement"`
	Confidence  int    `json:"confidence"` // 0..100
}

// SanitizationSummary reports all redactions and sanitizer warnings.
type SanitizationSummary struct {
	Actions  []SanitizationAction `json:"actions"`
	Warnings []string             `json:"warnings,omitempty"`
}

// JudgeCard identifies one judge's contribution to the review.
type JudgeCard struct {
	Model string `json:"model"`
	Score int    `json:"score,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// Warning is a non-fatal degradation attached to review metadata.
// Code is one of the stable codes from the errors package.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReviewMetadata carries versioning, timing, and accumulated warnings.
type ReviewMetadata struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

// ProgressAnalysis surfaces the stagnation analyzer's diagnostics on the
// review when the session is past the stagnation start loop.
type ProgressAnalysis struct {
	AvgSimilarity       float64  `json:"avgSimilarity"`
	StuckOnSameIssues   bool     `json:"stuckOnSameIssues"`
	CosmeticChangesOnly bool     `json:"cosmeticChangesOnly"`
	RevertingChanges    bool     `json:"revertingChanges"`
	ShowsConfusion      bool     `json:"showsConfusion"`
	Suggestions         []string `json:"suggestions,omitempty"`
}

// TerminationResult is the completion evaluator's decision for one loop,
// with aggregate quality signals for the terminating caller.
type TerminationResult struct {
	ShouldContinue bool     `json:"shouldContinue"`
	Reason         string   `json:"reason,omitempty"`
	FinalScore     int      `json:"finalScore"`
	TotalLoops     int      `json:"totalLoops"`
	FailureRate    float64  `json:"failureRate"` // fraction of iterations whose score decreased
	CriticalIssues []string `json:"criticalIssues,omitempty"`
}

// StructuredReview is the complete review document returned to the caller.
type StructuredReview struct {
	OverallScore       int                `json:"overallScore"`
	Verdict            Verdict            `json:"verdict"`
	Dimensions         []DimensionScore   `json:"dimensions"`
	ExecutiveVerdict   ExecutiveVerdict   `json:"executiveVerdict"`
	EvidenceTable      EvidenceTable      `json:"evidenceTable"`
	ProposedDiffs      []ProposedDiff     `json:"proposedDiffs"`
	ReproductionGuide  ReproductionGuide  `json:"reproductionGuide"`
	TraceabilityMatrix TraceabilityMatrix `json:"traceabilityMatrix"`
	FollowUpTasks      FollowUpTaskList   `json:"followUpTasks"`
	Iterations         int                `json:"iterations"`
	JudgeCards         []JudgeCard        `json:"judgeCards"`
	Completion         CompletionStatus   `json:"completion"`
	ProgressAnalysis   *ProgressAnalysis  `json:"progressAnalysis,omitempty"`
	Termination        *TerminationResult `json:"terminationResult,omitempty"`
	QualityMetrics     QualityMetrics     `json:"qualityMetrics"`
	Sanitization       SanitizationSummary `json:"sanitization"`
	Summary            string             `json:"summary,omitempty"`
	Metadata           ReviewMetadata     `json:"metadata"`
}

// AddWarning appends a coded warning to the review metadata.
func (r *StructuredReview) AddWarning(code, message string) {
	r.Metadata.Warnings = append(r.Metadata.Warnings, Warning{Code: code, Message: message})
}

// HasWarning reports whether a warning with the given code is present.
func (r *StructuredReview) HasWarning(code string) bool {
	for _, w := range r.Metadata.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
