// Package scoring rolls judge dimension evaluations up into an overall
// score and verdict. The assembler is a pure function over its inputs:
// identical evaluations always produce identical results.
package scoring

import (
	"fmt"
	"math"

	"github.com/Iron-Ham/gavel/internal/review"
)

// DefaultShipThreshold is the overall score required for a pass verdict.
const DefaultShipThreshold = 85

// rejectFloor is the overall score below which the verdict is reject.
const rejectFloor = 60

// Result is the assembled score, verdict, and any clamp warnings.
type Result struct {
	OverallScore int
	Verdict      review.Verdict
	Dimensions   []review.DimensionScore
	Warnings     []review.Warning
}

// Assembler computes weighted overall scores and verdicts from dimension
// evaluations against a validated rubric.
type Assembler struct {
	dimensions    []review.QualityDimension
	shipThreshold int
	byID          map[string]review.QualityDimension
}

// New creates an Assembler. The dimension set is validated at
// construction; an invalid rubric is a programming error surfaced here
// rather than at evaluation time.
func New(dimensions []review.QualityDimension, shipThreshold int) (*Assembler, error) {
	if err := review.ValidateDimensions(dimensions); err != nil {
		return nil, fmt.Errorf("invalid quality dimensions: %w", err)
	}
	if shipThreshold < 0 || shipThreshold > 100 {
		return nil, fmt.Errorf("ship threshold %d out of range 0..100", shipThreshold)
	}
	if shipThreshold == 0 {
		shipThreshold = DefaultShipThreshold
	}
	byID := make(map[string]review.QualityDimension, len(dimensions))
	for _, d := range dimensions {
		byID[d.ID] = d
	}
	return &Assembler{dimensions: dimensions, shipThreshold: shipThreshold, byID: byID}, nil
}

// ShipThreshold returns the configured pass threshold.
func (a *Assembler) ShipThreshold() int { return a.shipThreshold }

// Dimensions returns the rubric the assembler was constructed with.
func (a *Assembler) Dimensions() []review.QualityDimension { return a.dimensions }

// Assemble computes the weighted overall score and verdict for the given
// raw dimension evaluations. Scores outside [0,100] are clamped with a
// warning. Dimensions the judge did not evaluate contribute nothing to
// the roll-up (their weight is excluded from the denominator).
//
// Verdict rule:
//   - pass  iff overall >= shipThreshold AND hasCritical is false AND
//     every required dimension meets its minimum threshold
//   - reject iff overall < 60
//   - revise otherwise
func (a *Assembler) Assemble(evaluated []review.RawDimension, hasCritical bool) Result {
	var res Result

	var weightedSum, weightSum float64
	requiredBelowMin := false

	for _, ev := range evaluated {
		score := ev.Score
		if score < 0 || score > 100 {
			clamped := math.Min(100, math.Max(0, score))
			res.Warnings = append(res.Warnings, review.Warning{
				Code:    "ConfigWarning",
				Message: fmt.Sprintf("dimension %q score %v out of range 0..100; clamped to %v", ev.ID, score, clamped),
			})
			score = clamped
		}

		name := ev.Name
		weight := 0.0
		if dim, ok := a.byID[ev.ID]; ok {
			weight = dim.Weight
			if name == "" {
				name = dim.Name
			}
			if dim.Required && score < dim.MinThreshold {
				requiredBelowMin = true
			}
		}
		if weight > 0 {
			weightedSum += weight * score
			weightSum += weight
		}

		res.Dimensions = append(res.Dimensions, review.DimensionScore{Name: name, Score: score})
	}

	if weightSum > 0 {
		res.OverallScore = int(math.Round(weightedSum / weightSum))
	}

	switch {
	case res.OverallScore >= a.shipThreshold && !hasCritical && !requiredBelowMin:
		res.Verdict = review.VerdictPass
	case res.OverallScore < rejectFloor:
		res.Verdict = review.VerdictReject
	default:
		res.Verdict = review.VerdictRevise
	}

	return res
}
