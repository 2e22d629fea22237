package search

import (
	"fmt"

	"github.com/ranktune/ranktune/internal/scoring"
	"github.com/ranktune/ranktune/pkg/config"
	"github.com/ranktune/ranktune/pkg/dataset"
)

// NewObjectiveFactory wires a config and a loaded dataset into an
// objective factory. Every call clones the dataset: the engine writes
// the score column in place, so workers cannot share one.
func NewObjectiveFactory(cfg *config.Config, ds *dataset.Dataset) ObjectiveFactory {
	return func() (*Objective, error) {
		engine, err := BuildEngine(cfg, ds.Clone())
		if err != nil {
			return nil, err
		}
		space, err := NewSpace(engine, cfg.Objective)
		if err != nil {
			return nil, err
		}
		obj, err := NewObjective(engine, space, cfg.Objective.Formula)
		if err != nil {
			return nil, err
		}
		for _, spec := range cfg.Evaluators {
			if err := obj.AddEvaluator(spec); err != nil {
				return nil, err
			}
		}
		return obj, nil
	}
}

// BuildEngine constructs the scoring engine for a dataset: equation
// setup, group weights derived from the configured column, and one
// frequency sampler per woauc evaluator.
func BuildEngine(cfg *config.Config, ds *dataset.Dataset) (*scoring.Engine, error) {
	equation, err := scoring.ParseEquationType(cfg.Calculator.EquationType)
	if err != nil {
		return nil, err
	}

	var groupWeights map[string]float64
	if gw := cfg.Calculator.GroupWeights; gw != nil {
		groupWeights, err = GroupWeightsFromColumn(ds, gw.GroupBy, gw.Column)
		if err != nil {
			return nil, err
		}
	}

	engine, err := scoring.NewEngine(ds, cfg.Calculator.SelectedColumns, equation, scoring.Options{
		Equation:     cfg.Calculator.Equation,
		Formulas:     cfg.Calculator.Formulas,
		FormulaOrder: cfg.Calculator.FormulaOrder,
		Delimiter:    cfg.Calculator.Delimiter,
		GroupWeights: groupWeights,
	})
	if err != nil {
		return nil, err
	}

	for _, spec := range cfg.Evaluators {
		if spec.Kind != "woauc" {
			continue
		}
		err := engine.InitFrequencySampler(spec.TargetColumn, spec.SampleSize,
			spec.SliceFrom, spec.SliceTo, spec.LogScale, spec.LaplaceSmoothing)
		if err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// GroupWeightsFromColumn derives per-group averaging weights: a group's
// weight is the sum of the column's values within it. A column of all
// ones gives plain group-size weighting.
func GroupWeightsFromColumn(ds *dataset.Dataset, groupBy, column string) (map[string]float64, error) {
	keys, err := ds.GroupKeys(groupBy)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	values, err := ds.Column(column)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	weights := make(map[string]float64)
	for i, key := range keys {
		weights[key] += values[i]
	}
	return weights, nil
}
