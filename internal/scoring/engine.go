package scoring

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr/vm"

	"github.com/ranktune/ranktune/internal/sampling"
	"github.com/ranktune/ranktune/pkg/dataset"
)

// Engine holds the dataset and the selected feature columns and
// computes the overall_score column from a weight vector. It also owns
// the per-run caches metric evaluators share: frequency samplers, slice
// row sets and bin mappings.
type Engine struct {
	ds       *dataset.Dataset
	selected []string
	values   [][]float64 // column-major feature view
	equation EquationType

	freeStyle *vm.Program
	staged    *stagedFormula
	delegate  DelegatedScorer
	funcs     map[string]any

	groupWeights map[string]float64

	valueScales []float64

	samplers  map[string]*sampling.FrequencySampler
	sliceRows map[string][]int
	binCache  map[string][]float64
}

// Options carries the equation-type specific configuration.
type Options struct {
	// Equation is the free-style expression (FreeStyle only).
	Equation string
	// Formulas and FormulaOrder define the stages (StagedFormula only).
	Formulas     map[string]string
	FormulaOrder []string
	// Delimiter qualifies stage names; text before the first delimiter
	// is the name stages are referenced by. Defaults to "#".
	Delimiter string
	// Delegate computes scores for DelegatedPCA.
	Delegate DelegatedScorer
	// GroupWeights are per-group averaging weights for grouped metrics.
	GroupWeights map[string]float64
}

// NewEngine builds an engine over the dataset. Structural problems
// (missing columns, uncompilable formulas, missing delegate) are fatal
// here, before any trial runs.
func NewEngine(ds *dataset.Dataset, selected []string, equation EquationType, opts Options) (*Engine, error) {
	values, err := ds.Matrix(selected)
	if err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}

	e := &Engine{
		ds:           ds,
		selected:     selected,
		values:       values,
		equation:     equation,
		delegate:     opts.Delegate,
		funcs:        whitelistFuncs(),
		groupWeights: opts.GroupWeights,
		samplers:     make(map[string]*sampling.FrequencySampler),
		sliceRows:    make(map[string][]int),
		binCache:     make(map[string][]float64),
	}

	switch equation {
	case FreeStyle:
		if opts.Equation == "" {
			return nil, fmt.Errorf("scoring: free_style equation is not defined")
		}
		program, err := compileFormula(opts.Equation)
		if err != nil {
			return nil, err
		}
		e.freeStyle = program
	case StagedFormula:
		staged, err := newStagedFormula(opts.Formulas, opts.FormulaOrder, opts.Delimiter)
		if err != nil {
			return nil, err
		}
		e.staged = staged
	case DelegatedPCA:
		if opts.Delegate == nil {
			return nil, fmt.Errorf("scoring: log_pca requires a delegated scorer")
		}
	}

	return e, nil
}

// Dataset returns the underlying dataset.
func (e *Engine) Dataset() *dataset.Dataset {
	return e.ds
}

// Rows returns the dataset's row count.
func (e *Engine) Rows() int {
	return e.ds.Len()
}

// Selected returns the selected feature column names.
func (e *Engine) Selected() []string {
	return e.selected
}

// SelectedValues returns the column-major feature view.
func (e *Engine) SelectedValues() [][]float64 {
	return e.values
}

// EquationType returns the configured equation type.
func (e *Engine) EquationType() EquationType {
	return e.equation
}

// GroupWeights returns the per-group averaging weights, which may be nil.
func (e *Engine) GroupWeights() map[string]float64 {
	return e.groupWeights
}

// Score returns the current overall_score column. ComputeScore must
// have run at least once.
func (e *Engine) Score() ([]float64, error) {
	return e.ds.Column(ScoreColumn)
}

// ComputeScore evaluates the scoring equation under the given weights
// and writes the overall_score column in place. Per-row evaluation
// failures in formula modes produce NaN for that row only.
func (e *Engine) ComputeScore(weights []float64) error {
	n := e.ds.Len()
	k := len(e.selected)
	scores := make([]float64, n)

	switch {
	case e.equation == Power && len(weights) == 2*k:
		// Split layout: k power exponents then k first-order offsets.
		powers, offsets := weights[:k], weights[k:]
		for row := 0; row < n; row++ {
			score := 1.0
			for i := 0; i < k; i++ {
				score *= math.Pow(1+offsets[i]*e.values[i][row], powers[i])
			}
			scores[row] = score
		}

	case e.equation == Power:
		if len(weights) != k {
			return fmt.Errorf("scoring: got %d weights for %d features", len(weights), k)
		}
		for row := 0; row < n; row++ {
			score := 1.0
			for i := 0; i < k; i++ {
				score *= math.Pow(e.values[i][row], weights[i])
			}
			scores[row] = score
		}

	case e.equation == Linear:
		if len(weights) != k {
			return fmt.Errorf("scoring: got %d weights for %d features", len(weights), k)
		}
		for row := 0; row < n; row++ {
			score := 0.0
			for i := 0; i < k; i++ {
				score += weights[i] * e.values[i][row]
			}
			scores[row] = score
		}

	case e.equation == FreeStyle:
		e.computeFreeStyle(weights, scores)

	case e.equation == StagedFormula:
		e.computeStaged(weights, scores)

	case e.equation == DelegatedPCA:
		delegated, err := e.delegate.Score(weights)
		if err != nil {
			return fmt.Errorf("scoring: delegated scorer failed: %w", err)
		}
		if len(delegated) != n {
			return fmt.Errorf("scoring: delegated scorer returned %d values, want %d", len(delegated), n)
		}
		copy(scores, delegated)

	default:
		return fmt.Errorf("scoring: unhandled equation type %s", e.equation)
	}

	return e.ds.SetColumn(ScoreColumn, scores)
}

// computeFreeStyle evaluates the free-style expression row by row. The
// env exposes only the weight vector, the row's selected values and the
// whitelisted functions.
func (e *Engine) computeFreeStyle(weights, scores []float64) {
	k := len(e.selected)
	for row := range scores {
		columns := make([]float64, k)
		for i := 0; i < k; i++ {
			columns[i] = e.values[i][row]
		}
		env := map[string]any{
			"weights": weights,
			"columns": columns,
		}
		for name, fn := range e.funcs {
			env[name] = fn
		}
		v, err := runFormula(e.freeStyle, env)
		if err != nil {
			scores[row] = math.NaN()
			continue
		}
		scores[row] = v
	}
}

// ValueScales returns, per selected feature, the negative mean base-10
// logarithm of magnitude. The weight-space builder uses it to put
// first-order weights on a comparable numeric scale regardless of each
// feature's raw magnitude. Cached after the first call.
func (e *Engine) ValueScales() []float64 {
	if e.valueScales != nil {
		return e.valueScales
	}
	n := e.ds.Len()
	scales := make([]float64, len(e.selected))
	for i, col := range e.values {
		sum := 0.0
		for row := 0; row < n; row++ {
			mag := math.Abs(col[row])
			if mag < 1e-12 {
				mag = 1e-12
			}
			sum += math.Log10(mag)
		}
		if n > 0 {
			scales[i] = -sum / float64(n)
		}
	}
	e.valueScales = scales
	return scales
}

// InitFrequencySampler samples bucket boundaries over a score column
// and materializes one binary indicator column per boundary
// ("<col>_ge_<bound>" holds 1 where the column value reaches the
// boundary). It also records which rows fall inside the configured
// slice; partial-AUC evaluation is restricted to them.
func (e *Engine) InitFrequencySampler(column string, sampleSize int, sliceFrom, sliceTo *float64, logScale, laplaceSmoothing bool) error {
	data, err := e.ds.Column(column)
	if err != nil {
		return fmt.Errorf("scoring: %w", err)
	}

	sampler := sampling.NewFrequencySampler(data, sampleSize, sliceFrom, sliceTo, logScale, laplaceSmoothing)
	for _, bound := range sampler.Boundaries() {
		indicator := make([]float64, len(data))
		for row, v := range data {
			if v >= bound {
				indicator[row] = 1
			}
		}
		if err := e.ds.SetColumn(BoundaryColumn(column, bound), indicator); err != nil {
			return err
		}
	}

	rows := make([]int, 0, len(data))
	for row, v := range data {
		if sliceFrom != nil && v < *sliceFrom {
			continue
		}
		if sliceTo != nil && v > *sliceTo {
			continue
		}
		rows = append(rows, row)
	}

	e.samplers[column] = sampler
	e.sliceRows[column] = rows
	return nil
}

// BoundaryColumn names the indicator column for a sampled boundary.
func BoundaryColumn(column string, bound float64) string {
	return fmt.Sprintf("%s_ge_%g", column, bound)
}

// Sampler returns the frequency sampler registered for a column.
func (e *Engine) Sampler(column string) (*sampling.FrequencySampler, bool) {
	s, ok := e.samplers[column]
	return s, ok
}

// SliceRows returns the row indices inside the sampler slice for a column.
func (e *Engine) SliceRows(column string) ([]int, bool) {
	rows, ok := e.sliceRows[column]
	return rows, ok
}

// CachedBins returns the memoized bin mapping for a target column.
func (e *Engine) CachedBins(column string) ([]float64, bool) {
	bins, ok := e.binCache[column]
	return bins, ok
}

// CacheBins memoizes a bin mapping for a target column. Target bins are
// stable across trials; score bins are not and must not be cached.
func (e *Engine) CacheBins(column string, bins []float64) {
	e.binCache[column] = bins
}
