package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr/vm"

	"github.com/ranktune/ranktune/internal/metrics"
	"github.com/ranktune/ranktune/internal/optimizer"
	"github.com/ranktune/ranktune/internal/scoring"
	"github.com/ranktune/ranktune/pkg/config"
	"github.com/ranktune/ranktune/pkg/logger"
)

// Objective combines the weight space, the scoring engine and the
// registered evaluators into the per-trial function the optimizer
// calls. It has two states: building, while evaluators are registered,
// and sealed, from the first evaluation on. Structural changes after
// sealing are rejected.
type Objective struct {
	engine  *scoring.Engine
	space   *Space
	formula string
	program *vm.Program
	specs   []config.EvaluatorSpec
	sealed  bool
}

// NewObjective compiles the combining formula eagerly so a bad formula
// fails before any trial runs.
func NewObjective(e *scoring.Engine, space *Space, formula string) (*Objective, error) {
	if formula == "" {
		return nil, fmt.Errorf("search: combining formula is required")
	}
	program, err := scoring.CompileFormula(formula)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return &Objective{engine: e, space: space, formula: formula, program: program}, nil
}

// AddEvaluator registers one evaluator. Registration order is the
// order values appear in the targets list.
func (o *Objective) AddEvaluator(spec config.EvaluatorSpec) error {
	if o.sealed {
		return fmt.Errorf("search: objective is sealed, cannot add evaluator %q", spec.Kind)
	}
	o.specs = append(o.specs, spec)
	return nil
}

// Space returns the objective's weight space.
func (o *Objective) Space() *Space { return o.space }

// Evaluate runs one trial: construct weights, compute the score column,
// evaluate every registered evaluator in order, combine the targets via
// the formula, and log the result/targets/weights group. The three log
// lines are written in that fixed order; the recovery parser depends on
// it.
func (o *Objective) Evaluate(t *optimizer.Trial, trialLog *logger.TrialLog) (float64, error) {
	o.sealed = true

	weights := o.space.Construct(t)
	if err := o.engine.ComputeScore(weights); err != nil {
		return 0, err
	}

	targets := make([]float64, 0, len(o.specs))
	for i, spec := range o.specs {
		v, err := o.evaluateSpec(spec, weights)
		if err != nil {
			return 0, fmt.Errorf("search: evaluator %d (%s): %w", i, spec.Kind, err)
		}
		targets = append(targets, v)
	}

	value, err := o.combine(targets)
	if err != nil {
		return 0, err
	}

	trialLog.Printf("Trial %d finished with result: %v", t.ID, value)
	trialLog.Printf("targets: %s", formatFloats(targets))
	trialLog.Printf("weights: %s", formatFloats(weights))
	return value, nil
}

// evaluateSpec dispatches one evaluator. Vector-valued evaluators
// (woauc) flatten into a single term by summation.
func (o *Objective) evaluateSpec(spec config.EvaluatorSpec, weights []float64) (float64, error) {
	e := o.engine
	switch spec.Kind {
	case "auc":
		return metrics.AUC(e, spec.TargetColumn)
	case "wuauc":
		return metrics.WUAUC(e, spec.TargetColumn, spec.GroupBy)
	case "woauc":
		values, err := metrics.WOAUC(e, spec.TargetColumn)
		if err != nil {
			return 0, err
		}
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum, nil
	case "group_topk":
		k := 1
		if spec.Hyperparameter != nil {
			k = int(*spec.Hyperparameter)
		}
		return metrics.GroupTopK(e, spec.TargetColumn, spec.GroupBy, k)
	case "portfolio":
		_, concentration, err := metrics.PortfolioConcentration(e, spec.TargetColumn, spec.MaskColumn, spec.Hyperparameter)
		return concentration, err
	case "distinct_count_portfolio":
		_, concentration, err := metrics.DistinctPortfolioConcentration(e, spec.TargetColumn, spec.Hyperparameter)
		return concentration, err
	case "top_coverage":
		return metrics.TopCoverage(e, spec.TargetColumn, spec.MaskColumn, spec.Hyperparameter)
	case "distinct_top_coverage":
		return metrics.DistinctTopCoverage(e, spec.TargetColumn, spec.MaskColumn, spec.Hyperparameter)
	case "tau":
		bins := 0
		if spec.Hyperparameter != nil {
			bins = int(*spec.Hyperparameter)
		}
		return metrics.Tau(e, spec.TargetColumn, spec.GroupBy, bins)
	case "inverse_pairs":
		weighting, err := metrics.ParseInversionWeighting(spec.Property)
		if err != nil {
			return 0, err
		}
		return metrics.InversionScore(e, weights, weighting)
	case "logmse":
		return metrics.LogMSE(e, spec.TargetColumn)
	case "neg_rank_ratio":
		return metrics.NegRankRatio(e, spec.TargetColumn)
	case "cumulative_deviation":
		quantiles := 0
		if spec.Hyperparameter != nil {
			quantiles = int(*spec.Hyperparameter)
		}
		return metrics.CumulativeDeviation(e, spec.TargetColumn, spec.MaskColumn, quantiles)
	case "corrcoef":
		return metrics.Corrcoef(e, spec.TargetColumn, spec.MaskColumn)
	default:
		return 0, fmt.Errorf("unknown evaluator kind %q", spec.Kind)
	}
}

// combine evaluates the combining formula over {targets, sum, max, min}.
func (o *Objective) combine(targets []float64) (float64, error) {
	env := map[string]any{"targets": targets}
	for name, fn := range scoring.EnvFuncs() {
		env[name] = fn
	}
	value, err := scoring.RunFormula(o.program, env)
	if err != nil {
		return 0, fmt.Errorf("search: combining formula failed: %w", err)
	}
	return value, nil
}

// Info renders a human-readable description of the objective for the
// objective_info.txt artifact.
func (o *Objective) Info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "formula: %s\n", o.formula)
	fmt.Fprintf(&b, "equation_type: %s\n", o.engine.EquationType())
	fmt.Fprintf(&b, "selected_columns: %s\n", strings.Join(o.engine.Selected(), ", "))
	for i, spec := range o.specs {
		fmt.Fprintf(&b, "evaluator %d: kind=%s", i, spec.Kind)
		if spec.TargetColumn != "" {
			fmt.Fprintf(&b, " target=%s", spec.TargetColumn)
		}
		if spec.GroupBy != "" {
			fmt.Fprintf(&b, " groupby=%s", spec.GroupBy)
		}
		if spec.MaskColumn != "" {
			fmt.Fprintf(&b, " mask=%s", spec.MaskColumn)
		}
		if spec.Hyperparameter != nil {
			fmt.Fprintf(&b, " hyperparameter=%g", *spec.Hyperparameter)
		}
		if spec.Property != "" {
			fmt.Fprintf(&b, " property=%s", spec.Property)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// formatFloats renders a float list as "[a, b, c]", the list form the
// recovery parser reads back.
func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
