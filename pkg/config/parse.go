package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseConfigYAML parses a Config from YAML bytes and validates it.
// Validation is eager: any structural misconfiguration is fatal here,
// before a single trial runs.
func ParseConfigYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ParseConfigYAMLString parses a Config from a YAML string and validates it.
func ParseConfigYAMLString(yamlText string) (*Config, error) {
	return ParseConfigYAML([]byte(yamlText))
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Calculator.EquationType == "" {
		cfg.Calculator.EquationType = "product"
	}
	if cfg.Calculator.Delimiter == "" {
		cfg.Calculator.Delimiter = "#"
	}
	if cfg.Objective.Direction == "" {
		cfg.Objective.Direction = "maximize"
	}
	if len(cfg.Objective.Bounds.PowerLower) == 0 {
		cfg.Objective.Bounds.PowerLower = []float64{-1}
	}
	if len(cfg.Objective.Bounds.PowerUpper) == 0 {
		cfg.Objective.Bounds.PowerUpper = []float64{1}
	}
	if cfg.Objective.Bounds.FirstOrderLower == 0 && cfg.Objective.Bounds.FirstOrderUpper == 0 {
		cfg.Objective.Bounds.FirstOrderLower = 1e-3
		cfg.Objective.Bounds.FirstOrderUpper = 1e6
	}
	if cfg.Objective.Bounds.FirstOrderWithScales {
		if cfg.Objective.Bounds.ScaleLowerSpan == 0 {
			cfg.Objective.Bounds.ScaleLowerSpan = 2
		}
		if cfg.Objective.Bounds.ScaleUpperSpan == 0 {
			cfg.Objective.Bounds.ScaleUpperSpan = 2
		}
	}
	for i := range cfg.Evaluators {
		if cfg.Evaluators[i].Kind == "woauc" && cfg.Evaluators[i].SampleSize == 0 {
			cfg.Evaluators[i].SampleSize = 10
		}
	}
	if cfg.Search.NTrials == 0 {
		cfg.Search.NTrials = 200
	}
	if cfg.Search.Workers == 0 {
		cfg.Search.Workers = 1
	}
}

var validEquationTypes = map[string]bool{
	"product":    true,
	"sum":        true,
	"free_style": true,
	"json":       true,
	"log_pca":    true,
}

var validEvaluatorKinds = map[string]bool{
	"auc":                      true,
	"wuauc":                    true,
	"woauc":                    true,
	"group_topk":               true,
	"portfolio":                true,
	"distinct_count_portfolio": true,
	"top_coverage":             true,
	"distinct_top_coverage":    true,
	"tau":                      true,
	"inverse_pairs":            true,
	"logmse":                   true,
	"neg_rank_ratio":           true,
	"cumulative_deviation":     true,
	"corrcoef":                 true,
}

// validateConfig performs validation on the configuration.
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if !validEquationTypes[cfg.Calculator.EquationType] {
		return fmt.Errorf("invalid equation_type: %s", cfg.Calculator.EquationType)
	}
	if len(cfg.Calculator.SelectedColumns) == 0 && cfg.Objective.WeightsNum == 0 {
		return fmt.Errorf("calculator.selected_columns must not be empty when objective.weights_num is unset")
	}
	if cfg.Calculator.EquationType == "free_style" && cfg.Calculator.Equation == "" {
		return fmt.Errorf("equation_type free_style requires calculator.equation")
	}
	if cfg.Calculator.EquationType == "json" {
		if len(cfg.Calculator.Formulas) == 0 {
			return fmt.Errorf("equation_type json requires non-empty calculator.formulas")
		}
		for _, name := range cfg.Calculator.FormulaOrder {
			if _, ok := cfg.Calculator.Formulas[name]; !ok {
				return fmt.Errorf("formula_order references unknown stage %q", name)
			}
		}
		if len(cfg.Calculator.Formulas) > 1 && len(cfg.Calculator.FormulaOrder) != len(cfg.Calculator.Formulas) {
			return fmt.Errorf("formula_order must list every stage exactly once when more than one stage is defined")
		}
	}
	if cfg.Calculator.GroupWeights != nil {
		if cfg.Calculator.GroupWeights.GroupBy == "" || cfg.Calculator.GroupWeights.Column == "" {
			return fmt.Errorf("calculator.group_weights requires both groupby and column")
		}
	}

	if cfg.Objective.Direction != "minimize" && cfg.Objective.Direction != "maximize" {
		return fmt.Errorf("invalid objective.direction: %s (must be minimize or maximize)", cfg.Objective.Direction)
	}
	if cfg.Objective.Formula == "" {
		return fmt.Errorf("objective.formula is required")
	}
	if cfg.Calculator.EquationType == "product" && !cfg.Objective.PowerEnabled() && !cfg.Objective.FirstOrder {
		return fmt.Errorf("equation_type product with power disabled requires objective.first_order")
	}
	if err := validateBounds(&cfg.Objective.Bounds); err != nil {
		return fmt.Errorf("invalid objective.bounds: %w", err)
	}

	if len(cfg.Evaluators) == 0 {
		return fmt.Errorf("at least one evaluator must be defined")
	}
	for i, ev := range cfg.Evaluators {
		if !validEvaluatorKinds[ev.Kind] {
			return fmt.Errorf("evaluator %d: unknown kind %q", i, ev.Kind)
		}
		switch ev.Kind {
		case "woauc":
			if ev.TargetColumn == "" {
				return fmt.Errorf("evaluator %d (woauc): target_column is required", i)
			}
			if ev.SampleSize < 1 {
				return fmt.Errorf("evaluator %d (woauc): sample_size must be at least 1", i)
			}
			if ev.SliceFrom != nil && ev.SliceTo != nil && *ev.SliceFrom > *ev.SliceTo {
				return fmt.Errorf("evaluator %d (woauc): slice_from (%v) exceeds slice_to (%v)", i, *ev.SliceFrom, *ev.SliceTo)
			}
		case "inverse_pairs":
			if ev.Property != "" && ev.Property != "count" && ev.Property != "linear" && ev.Property != "exponential" {
				return fmt.Errorf("evaluator %d: unknown inverse_pairs property %q", i, ev.Property)
			}
		case "auc", "wuauc", "group_topk", "portfolio", "distinct_count_portfolio",
			"top_coverage", "distinct_top_coverage", "tau", "logmse", "neg_rank_ratio",
			"cumulative_deviation", "corrcoef":
			if ev.TargetColumn == "" {
				return fmt.Errorf("evaluator %d (%s): target_column is required", i, ev.Kind)
			}
		}
	}

	if cfg.Search.NTrials < 1 {
		return fmt.Errorf("search.n_trials must be at least 1")
	}
	if cfg.Search.Workers < 1 {
		return fmt.Errorf("search.workers must be at least 1")
	}
	if cfg.Search.Workers > cfg.Search.NTrials {
		return fmt.Errorf("search.workers (%d) must not exceed search.n_trials (%d)", cfg.Search.Workers, cfg.Search.NTrials)
	}

	return nil
}

func validateBounds(b *Bounds) error {
	if err := validateBoundPair("power", b.PowerLower, b.PowerUpper); err != nil {
		return err
	}
	if err := validateBoundPair("free_style", b.FreeStyleLower, b.FreeStyleUpper); err != nil {
		return err
	}
	if b.FirstOrderLower > b.FirstOrderUpper {
		return fmt.Errorf("first_order_lower (%v) exceeds first_order_upper (%v)", b.FirstOrderLower, b.FirstOrderUpper)
	}
	if b.PCALower > b.PCAUpper {
		return fmt.Errorf("pca_lower (%v) exceeds pca_upper (%v)", b.PCALower, b.PCAUpper)
	}
	if b.MaxMinScaleRatio < 0 {
		return fmt.Errorf("max_min_scale_ratio must not be negative")
	}
	if b.BaseWeightsOffsetRatio < 0 || b.BaseWeightsOffsetRatio > 1 {
		return fmt.Errorf("base_weights_offset_ratio must be in [0, 1]")
	}
	return nil
}

func validateBoundPair(name string, lower, upper []float64) error {
	if len(lower) > 1 && len(upper) > 1 && len(lower) != len(upper) {
		return fmt.Errorf("%s bounds have mismatched lengths %d and %d", name, len(lower), len(upper))
	}
	n := len(lower)
	if len(upper) > n {
		n = len(upper)
	}
	for i := 0; i < n; i++ {
		lo := boundAt(lower, i)
		hi := boundAt(upper, i)
		if lo > hi {
			return fmt.Errorf("%s bound %d: lower (%v) exceeds upper (%v)", name, i, lo, hi)
		}
	}
	return nil
}

func boundAt(bounds []float64, i int) float64 {
	if len(bounds) == 0 {
		return 0
	}
	if len(bounds) == 1 {
		return bounds[0]
	}
	if i < len(bounds) {
		return bounds[i]
	}
	return bounds[len(bounds)-1]
}

// BoundAt resolves a scalar-or-per-dimension bound list at index i, with
// single-element lists broadcast.
func BoundAt(bounds []float64, i int) float64 {
	return boundAt(bounds, i)
}
