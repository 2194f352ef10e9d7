package scoring

import (
	"reflect"
	"testing"

	"github.com/Iron-Ham/gavel/internal/review"
)

func newAssembler(t *testing.T) *Assembler {
	t.Helper()
	a, err := New(review.DefaultDimensions(), 85)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

func evals(scores map[string]float64) []review.RawDimension {
	// Deterministic order to keep results comparable across calls.
	order := []string{"correctness", "tests", "security", "maintainability", "performance", "docs"}
	var out []review.RawDimension
	for _, id := range order {
		if s, ok := scores[id]; ok {
			out = append(out, review.RawDimension{ID: id, Score: s})
		}
	}
	return out
}

func allDims(score float64) []review.RawDimension {
	return evals(map[string]float64{
		"correctness": score, "tests": score, "security": score,
		"maintainability": score, "performance": score, "docs": score,
	})
}

func TestAssembleWeightedRollUp(t *testing.T) {
	a := newAssembler(t)

	// Uniform scores roll up to that score regardless of weights.
	res := a.Assemble(allDims(70), false)
	if res.OverallScore != 70 {
		t.Errorf("overall = %d, want 70", res.OverallScore)
	}

	// Weighted mix: 0.35*100 + 0.20*50 + 0.15*100 + 0.15*50 + 0.10*50 + 0.05*50
	// = 35 + 10 + 15 + 7.5 + 5 + 2.5 = 75
	res = a.Assemble(evals(map[string]float64{
		"correctness": 100, "tests": 50, "security": 100,
		"maintainability": 50, "performance": 50, "docs": 50,
	}), false)
	if res.OverallScore != 75 {
		t.Errorf("overall = %d, want 75", res.OverallScore)
	}
}

func TestVerdictRules(t *testing.T) {
	a := newAssembler(t)

	tests := []struct {
		name     string
		score    float64
		critical bool
		want     review.Verdict
	}{
		{"high score passes", 90, false, review.VerdictPass},
		{"at threshold passes", 85, false, review.VerdictPass},
		{"critical blocks pass", 90, true, review.VerdictRevise},
		{"mid score revises", 70, false, review.VerdictRevise},
		{"just under reject floor", 59, false, review.VerdictReject},
		{"at reject floor revises", 60, false, review.VerdictRevise},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.Assemble(allDims(tt.score), tt.critical)
			if res.Verdict != tt.want {
				t.Errorf("verdict = %q, want %q (overall %d)", res.Verdict, tt.want, res.OverallScore)
			}
		})
	}
}

func TestRequiredDimensionBelowMinBlocksPass(t *testing.T) {
	a := newAssembler(t)

	// Security is required with minThreshold 70. Everything else is high
	// enough that the overall clears the ship threshold.
	res := a.Assemble(evals(map[string]float64{
		"correctness": 95, "tests": 95, "security": 65,
		"maintainability": 95, "performance": 95, "docs": 95,
	}), false)
	if res.OverallScore < a.ShipThreshold() {
		t.Fatalf("test setup: overall %d should clear threshold", res.OverallScore)
	}
	if res.Verdict != review.VerdictRevise {
		t.Errorf("verdict = %q, want revise when a required dimension misses its minimum", res.Verdict)
	}
}

func TestOutOfRangeScoresClampWithWarning(t *testing.T) {
	a := newAssembler(t)

	res := a.Assemble(evals(map[string]float64{
		"correctness": 130, "tests": -5, "security": 80,
		"maintainability": 80, "performance": 80, "docs": 80,
	}), false)

	if len(res.Warnings) != 2 {
		t.Fatalf("warnings = %d, want 2: %v", len(res.Warnings), res.Warnings)
	}
	for _, d := range res.Dimensions {
		if d.Score < 0 || d.Score > 100 {
			t.Errorf("dimension %q score %v not clamped", d.Name, d.Score)
		}
	}
}

func TestUnknownDimensionContributesNothing(t *testing.T) {
	a := newAssembler(t)

	withUnknown := append(allDims(80), review.RawDimension{ID: "vibes", Score: 0})
	res := a.Assemble(withUnknown, false)
	if res.OverallScore != 80 {
		t.Errorf("overall = %d, want 80 (unknown dimension must not weigh in)", res.OverallScore)
	}
	if len(res.Dimensions) != 7 {
		t.Errorf("dimensions = %d, want all 7 echoed back", len(res.Dimensions))
	}
}

func TestAssembleIsPure(t *testing.T) {
	a := newAssembler(t)
	input := allDims(72)

	first := a.Assemble(input, true)
	second := a.Assemble(input, true)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different results:\n%+v\n%+v", first, second)
	}
}

func TestNewRejectsInvalidRubric(t *testing.T) {
	if _, err := New(nil, 85); err == nil {
		t.Error("empty rubric should fail")
	}
	if _, err := New(review.DefaultDimensions(), 101); err == nil {
		t.Error("threshold over 100 should fail")
	}
}
