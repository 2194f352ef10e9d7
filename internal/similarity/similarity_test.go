package similarity

import (
	"strings"
	"testing"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompositeBounds(t *testing.T) {
	if got := Composite("func main() {}", "func main() {}"); got != 1 {
		t.Errorf("identical artifacts: similarity = %v, want 1", got)
	}

	a := "func add(a, b int) int { return a + b }"
	b := "SELECT * FROM users WHERE deleted_at IS NULL;"
	got := Composite(a, b)
	if got < 0 || got > 0.5 {
		t.Errorf("unrelated artifacts: similarity = %v, want low", got)
	}
}

func TestCompositeSamplesLongArtifacts(t *testing.T) {
	long := strings.Repeat("func handler(w http.ResponseWriter, r *http.Request) { return }\n", 200)
	// A change buried outside the sampled windows should still score high;
	// the point is that the call completes quickly on large inputs.
	other := long[:2000] + "func handler(w http.ResponseWriter, r *http.Request) { return }\n" + long[2000:]
	if got := Composite(long, other); got < 0.9 {
		t.Errorf("similarity = %v, want near-identical for a tiny interior change", got)
	}
}

func TestCosmeticDetector(t *testing.T) {
	base := "func add(a, b int) int {\n\treturn a + b\n}"

	reformatted := "func add(a, b int) int {\n    return a + b\n}"
	if !Cosmetic(base, reformatted) {
		t.Error("whitespace-only change should be cosmetic")
	}

	commented := "func add(a, b int) int {\n\t// sum the operands\n\treturn a + b\n}"
	if !Cosmetic(base, commented) {
		t.Error("comment-only change should be cosmetic")
	}

	behavioral := "func add(a, b int) int {\n\treturn a - b\n}"
	if Cosmetic(base, behavioral) {
		t.Error("operator change is not cosmetic")
	}
}

func TestStructuralJaccardIgnoresIdentifiers(t *testing.T) {
	a := "if x > 0 { return x } else { return 0 }"
	b := "if count > 0 { return count } else { return 0 }"
	if got := structuralJaccard(a, b); got != 1 {
		t.Errorf("identical structure with renamed identifiers: %v, want 1", got)
	}

	c := "for i := 0; i < n; i++ { total += i }"
	if got := structuralJaccard(a, c); got == 1 {
		t.Error("different control flow should not be structurally identical")
	}
}

func TestAnalyzeStagnation(t *testing.T) {
	analyzer := NewAnalyzer(0, 0, 0, 0)
	artifact := "func process(items []string) error {\n\tfor _, item := range items {\n\t\tif item == \"\" {\n\t\t\treturn errInvalid\n\t\t}\n\t}\n\treturn nil\n}"

	same := []Snapshot{
		{Artifact: artifact, Score: 60},
		{Artifact: artifact, Score: 61},
		{Artifact: artifact, Score: 60},
	}

	if analyzer.Analyze(same, 8).Stagnant {
		t.Error("stagnation must not trigger before the start loop")
	}

	analysis := analyzer.Analyze(same, 11)
	if !analysis.Stagnant {
		t.Errorf("identical revisions past loop 10 should stagnate (avgSim=%v)", analysis.AvgSimilarity)
	}
	if len(analysis.Suggestions) == 0 {
		t.Error("stagnant analysis should carry suggestions")
	}

	if analyzer.Analyze(same[:2], 11).Stagnant {
		t.Error("two snapshots are below the minimum iteration count")
	}
}

func TestAnalyzeStagnationAtStartLoop(t *testing.T) {
	analyzer := NewAnalyzer(0, 0, 0, 0)
	artifact := "func sum(xs []int) int {\n\ttotal := 0\n\tfor _, x := range xs {\n\t\ttotal += x\n\t}\n\treturn total\n}"
	same := []Snapshot{
		{Artifact: artifact, Score: 70},
		{Artifact: artifact, Score: 70},
		{Artifact: artifact, Score: 70},
	}

	if analyzer.Analyze(same, 9).Stagnant {
		t.Error("loop 9 is before the start loop")
	}
	if !analyzer.Analyze(same, 10).Stagnant {
		t.Error("stagnation applies from the start loop itself")
	}
}

func TestScorePlateau(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   bool
	}{
		{"flat", []int{60, 60, 60}, true},
		{"declining", []int{70, 70, 69}, true},
		{"improving", []int{60, 60, 61}, false},
		{"recovering", []int{60, 59, 60}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps := make([]Snapshot, len(tt.scores))
			for i, s := range tt.scores {
				snaps[i] = Snapshot{Score: s}
			}
			if got := scorePlateau(snaps); got != tt.want {
				t.Errorf("scorePlateau(%v) = %v, want %v", tt.scores, got, tt.want)
			}
		})
	}
}

func TestAnalyzeStuckOnSameIssues(t *testing.T) {
	analyzer := NewAnalyzer(0, 0, 0, 0)
	snaps := []Snapshot{
		{Artifact: "rev one", Score: 50, Issues: []string{"nil deref in parser", "missing tests"}},
		{Artifact: "rev two with changes", Score: 55, Issues: []string{"nil deref in parser"}},
		{Artifact: "rev three more changes", Score: 58, Issues: []string{"nil deref in parser", "naming"}},
	}
	analysis := analyzer.Analyze(snaps, 4)
	if !analysis.StuckOnSameIssues {
		t.Error("an issue present in every snapshot should flag stuckOnSameIssues")
	}

	snaps[1].Issues = []string{"different issue"}
	if analyzer.Analyze(snaps, 4).StuckOnSameIssues {
		t.Error("no recurring issue should not flag")
	}
}

func TestAnalyzeRevertingChanges(t *testing.T) {
	analyzer := NewAnalyzer(0, 0, 0, 0)
	original := "func f() int { return computeTotal(items, taxRate) }"
	variant := "func f() int {\n\ttotal := 0\n\tfor _, it := range items {\n\t\ttotal += it.Price\n\t}\n\treturn total\n}"

	aba := []Snapshot{
		{Artifact: original, Score: 50},
		{Artifact: variant, Score: 48},
		{Artifact: original, Score: 50},
	}
	if !analyzer.Analyze(aba, 5).RevertingChanges {
		t.Error("A-B-A history should flag revertingChanges")
	}

	forward := []Snapshot{
		{Artifact: original, Score: 50},
		{Artifact: variant, Score: 55},
		{Artifact: variant + "\n// v3", Score: 60},
	}
	if analyzer.Analyze(forward, 5).RevertingChanges {
		t.Error("monotonic history should not flag revertingChanges")
	}
}

func TestAnalyzeShowsConfusion(t *testing.T) {
	analyzer := NewAnalyzer(0, 0, 0, 0)
	snaps := []Snapshot{
		{Artifact: "a b c", Score: 70},
		{Artifact: "d e f", Score: 55},
		{Artifact: "g h i", Score: 40},
	}
	if !analyzer.Analyze(snaps, 5).ShowsConfusion {
		t.Error("consistent score regression should flag showsConfusion")
	}
}
