package review

import (
	"fmt"
	"math"
)

// weightTolerance is the allowed deviation when validating that dimension
// and criterion weights sum to 1.0.
const weightTolerance = 0.01

// Criterion is one weighted check within a quality dimension.
type Criterion struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// QualityDimension is a config-time weighted quality axis. Required
// dimensions must individually meet MinThreshold for a pass verdict.
type QualityDimension struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Weight       float64     `json:"weight"` // 0..1
	MinThreshold float64     `json:"minThreshold"`
	Required     bool        `json:"required"`
	Criteria     []Criterion `json:"criteria,omitempty"`
}

// ValidateDimensions checks the construction invariants: unique IDs,
// weights in range, dimension weights summing to 1.0 ± 0.01, and each
// dimension's criterion weights summing to 1.0 ± 0.01.
func ValidateDimensions(dims []QualityDimension) error {
	if len(dims) == 0 {
		return fmt.Errorf("at least one quality dimension is required")
	}

	seen := make(map[string]bool, len(dims))
	var sum float64
	for _, d := range dims {
		if d.ID == "" {
			return fmt.Errorf("dimension %q has an empty id", d.Name)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate dimension id %q", d.ID)
		}
		seen[d.ID] = true

		if d.Weight < 0 || d.Weight > 1 {
			return fmt.Errorf("dimension %q weight %v out of range 0..1", d.ID, d.Weight)
		}
		if d.MinThreshold < 0 || d.MinThreshold > 100 {
			return fmt.Errorf("dimension %q minThreshold %v out of range 0..100", d.ID, d.MinThreshold)
		}
		sum += d.Weight

		if len(d.Criteria) > 0 {
			critSeen := make(map[string]bool, len(d.Criteria))
			var critSum float64
			for _, c := range d.Criteria {
				if c.ID == "" {
					return fmt.Errorf("dimension %q has a criterion with an empty id", d.ID)
				}
				if critSeen[c.ID] {
					return fmt.Errorf("dimension %q has duplicate criterion id %q", d.ID, c.ID)
				}
				critSeen[c.ID] = true
				critSum += c.Weight
			}
			if math.Abs(critSum-1.0) > weightTolerance {
				return fmt.Errorf("dimension %q criterion weights sum to %v, want 1.0 ± %v", d.ID, critSum, weightTolerance)
			}
		}
	}

	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("dimension weights sum to %v, want 1.0 ± %v", sum, weightTolerance)
	}
	return nil
}

// DefaultDimensions returns the engine's built-in audit rubric. Weights
// sum to 1.0; correctness and security are required dimensions.
func DefaultDimensions() []QualityDimension {
	return []QualityDimension{
		{
			ID:           "correctness",
			Name:         "Correctness & Completeness",
			Weight:       0.35,
			MinThreshold: 60,
			Required:     true,
			Criteria: []Criterion{
				{ID: "ac-fulfilled", Description: "All stated acceptance criteria are met", Weight: 0.5},
				{ID: "edge-cases", Description: "Edge cases are handled", Weight: 0.3},
				{ID: "error-paths", Description: "Error paths behave sensibly", Weight: 0.2},
			},
		},
		{
			ID:           "tests",
			Name:         "Testing",
			Weight:       0.20,
			MinThreshold: 50,
			Required:     false,
			Criteria: []Criterion{
				{ID: "coverage", Description: "Changed behavior is covered by tests", Weight: 0.6},
				{ID: "quality", Description: "Tests assert behavior, not implementation", Weight: 0.4},
			},
		},
		{
			ID:           "security",
			Name:         "Security",
			Weight:       0.15,
			MinThreshold: 70,
			Required:     true,
			Criteria: []Criterion{
				{ID: "input-validation", Description: "Inputs are validated", Weight: 0.5},
				{ID: "secrets", Description: "No credentials or secrets in code", Weight: 0.5},
			},
		},
		{
			ID:           "maintainability",
			Name:         "Code Quality & Maintainability",
			Weight:       0.15,
			MinThreshold: 40,
			Required:     false,
		},
		{
			ID:           "performance",
			Name:         "Performance",
			Weight:       0.10,
			MinThreshold: 40,
			Required:     false,
		},
		{
			ID:           "docs",
			Name:         "Documentation",
			Weight:       0.05,
			MinThreshold: 0,
			Required:     false,
		},
	}
}
