package similarity

import (
	"github.com/Iron-Ham/gavel/internal/review"
)

// Analyzer defaults.
const (
	// DefaultMinIterations is the number of recorded iterations required
	// before stagnation can be declared.
	DefaultMinIterations = 3
	// DefaultStartLoop is the loop count before which stagnation is never
	// declared, however similar the revisions.
	DefaultStartLoop = 10
	// DefaultStagnationThreshold is the pairwise similarity above which
	// two revisions count as the same in substance.
	DefaultStagnationThreshold = 0.95
	// DefaultWindow bounds how many recent iterations the analyzer keeps.
	DefaultWindow = 5
)

// revertThreshold is how similar the newest artifact must be to an
// earlier one to count as a reverted change.
const revertThreshold = 0.9

// scorePlateauDelta is the largest score improvement still considered
// non-improving.
const scorePlateauDelta = 0.01

// Snapshot is one iteration's inputs to the analyzer: the artifact text
// and the issues the judge reported against it.
type Snapshot struct {
	Artifact string
	Score    int
	Issues   []string
}

// Analysis is the analyzer's verdict for the current loop.
type Analysis struct {
	Stagnant bool
	review.ProgressAnalysis
}

// Analyzer detects sessions that keep iterating without changing the
// artifact in substance. It is pure: identical snapshot windows always
// produce identical analyses.
type Analyzer struct {
	minIterations int
	startLoop     int
	threshold     float64
	window        int
}

// NewAnalyzer creates an Analyzer; non-positive arguments use defaults.
func NewAnalyzer(minIterations, startLoop int, threshold float64, window int) *Analyzer {
	if minIterations <= 0 {
		minIterations = DefaultMinIterations
	}
	if startLoop <= 0 {
		startLoop = DefaultStartLoop
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultStagnationThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Analyzer{minIterations: minIterations, startLoop: startLoop, threshold: threshold, window: window}
}

// Window returns the analyzer's snapshot window size; callers retain only
// this many recent snapshots per session.
func (a *Analyzer) Window() int { return a.window }

// Analyze inspects the most recent snapshots (oldest first) at the given
// loop count. Stagnation requires enough history, a loop count at or past
// the start loop, an average pairwise similarity above the threshold, and
// either a majority of pairs above the threshold or a score plateau. The
// diagnostic flags are computed whenever there is enough history, even
// before the start loop.
func (a *Analyzer) Analyze(snapshots []Snapshot, loop int) Analysis {
	if len(snapshots) > a.window {
		snapshots = snapshots[len(snapshots)-a.window:]
	}

	var analysis Analysis
	if len(snapshots) < 2 {
		return analysis
	}

	// All pairwise similarities over the window, not just consecutive
	// ones: a window that oscillates between two variants is still
	// stagnant.
	var sims []float64
	for i := 0; i < len(snapshots); i++ {
		for j := i + 1; j < len(snapshots); j++ {
			sims = append(sims, Composite(snapshots[i].Artifact, snapshots[j].Artifact))
		}
	}
	var simSum float64
	above := 0
	for _, sim := range sims {
		simSum += sim
		if sim > a.threshold {
			above++
		}
	}
	analysis.AvgSimilarity = simSum / float64(len(sims))

	cosmeticOnly := true
	for i := 1; i < len(snapshots); i++ {
		if !Cosmetic(snapshots[i-1].Artifact, snapshots[i].Artifact) {
			cosmeticOnly = false
			break
		}
	}

	analysis.CosmeticChangesOnly = cosmeticOnly
	analysis.StuckOnSameIssues = stuckOnSameIssues(snapshots)
	analysis.RevertingChanges = revertingChanges(snapshots)
	analysis.ShowsConfusion = showsConfusion(snapshots)

	if len(snapshots) >= a.minIterations && loop >= a.startLoop && analysis.AvgSimilarity > a.threshold {
		majority := above*2 > len(sims)
		if majority || scorePlateau(snapshots) {
			analysis.Stagnant = true
		}
	}

	analysis.Suggestions = suggestions(analysis)
	return analysis
}

// scorePlateau reports whether no transition in the window improved the
// score by more than the plateau delta.
func scorePlateau(snapshots []Snapshot) bool {
	for i := 1; i < len(snapshots); i++ {
		if float64(snapshots[i].Score-snapshots[i-1].Score) > scorePlateauDelta {
			return false
		}
	}
	return true
}

// stuckOnSameIssues reports whether at least one issue recurs in every
// snapshot of the window.
func stuckOnSameIssues(snapshots []Snapshot) bool {
	if len(snapshots) < 3 {
		return false
	}
	recurring := make(map[string]int)
	for _, snap := range snapshots {
		seen := make(map[string]bool)
		for _, issue := range snap.Issues {
			if !seen[issue] {
				seen[issue] = true
				recurring[issue]++
			}
		}
	}
	for _, count := range recurring {
		if count == len(snapshots) {
			return true
		}
	}
	return false
}

// revertingChanges detects A-B-A flapping: the newest artifact is at
// least revertThreshold similar to the one two iterations back while
// differing from its immediate predecessor.
func revertingChanges(snapshots []Snapshot) bool {
	if len(snapshots) < 3 {
		return false
	}
	latest := snapshots[len(snapshots)-1].Artifact
	previous := snapshots[len(snapshots)-2].Artifact
	if Composite(latest, previous) >= revertThreshold {
		return false
	}
	return Composite(latest, snapshots[len(snapshots)-3].Artifact) >= revertThreshold
}

// showsConfusion reports whether scores regress in at least half of the
// window's transitions.
func showsConfusion(snapshots []Snapshot) bool {
	if len(snapshots) < 3 {
		return false
	}
	regressions := 0
	for i := 1; i < len(snapshots); i++ {
		if snapshots[i].Score < snapshots[i-1].Score {
			regressions++
		}
	}
	return regressions*2 >= len(snapshots)-1
}

// suggestions turns the diagnostic flags into actionable guidance.
func suggestions(a Analysis) []string {
	var out []string
	if a.StuckOnSameIssues {
		out = append(out, "The same issues recur across revisions; address the highest-severity finding directly instead of adjusting surrounding code.")
	}
	if a.CosmeticChangesOnly {
		out = append(out, "Recent revisions are cosmetic (formatting, comments, renames); the findings require behavioral changes.")
	}
	if a.RevertingChanges {
		out = append(out, "Recent revisions undo earlier ones; pick one approach and carry it through before the next submission.")
	}
	if a.ShowsConfusion {
		out = append(out, "Scores are regressing between revisions; re-read the evidence table and fix one finding at a time.")
	}
	if a.Stagnant && len(out) == 0 {
		out = append(out, "Revisions are no longer changing the artifact in substance; consider a different approach to the remaining findings.")
	}
	return out
}
