// Package scoring computes the per-row overall score from a weight
// vector under one of a closed set of equation types.
package scoring

import "fmt"

// ScoreColumn is the dataset column the engine writes.
const ScoreColumn = "overall_score"

// EquationType is the closed set of weight-to-score mappings.
type EquationType int

const (
	// Power scores rows as the product of features raised to weights.
	Power EquationType = iota
	// Linear scores rows as the weighted sum of features.
	Linear
	// FreeStyle evaluates a user-supplied expression over the weight
	// vector and the selected columns.
	FreeStyle
	// StagedFormula evaluates named sub-expressions in declaration
	// order; the last stage is the score.
	StagedFormula
	// DelegatedPCA forwards the weight vector to an external scorer.
	DelegatedPCA
)

// ParseEquationType maps config names (the original's vocabulary) to
// equation types.
func ParseEquationType(name string) (EquationType, error) {
	switch name {
	case "product":
		return Power, nil
	case "sum":
		return Linear, nil
	case "free_style":
		return FreeStyle, nil
	case "json":
		return StagedFormula, nil
	case "log_pca":
		return DelegatedPCA, nil
	default:
		return 0, fmt.Errorf("scoring: unknown equation type %q", name)
	}
}

// String returns the config name of the equation type.
func (t EquationType) String() string {
	switch t {
	case Power:
		return "product"
	case Linear:
		return "sum"
	case FreeStyle:
		return "free_style"
	case StagedFormula:
		return "json"
	case DelegatedPCA:
		return "log_pca"
	default:
		return fmt.Sprintf("EquationType(%d)", int(t))
	}
}

// DelegatedScorer computes scores outside the engine for the
// DelegatedPCA equation type. The engine forwards the weight vector and
// stores the returned column.
type DelegatedScorer interface {
	// Score returns one value per dataset row for the given weights.
	Score(weights []float64) ([]float64, error)
}
