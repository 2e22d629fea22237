package search

import (
	"fmt"
	"math"

	"github.com/ranktune/ranktune/internal/optimizer"
	"github.com/ranktune/ranktune/internal/scoring"
	"github.com/ranktune/ranktune/pkg/config"
)

// Space turns one trial's suggestions into a concrete weight vector.
// The construction path is fixed at build time by the equation type
// crossed with the power/first-order flags; exactly one path runs per
// trial and the emitted layout is what the scoring engine splits.
type Space struct {
	engine  *scoring.Engine
	obj     config.Objective
	dims    int
	simplex bool
}

// NewSpace validates the objective's weight-space configuration against
// the engine. Simplex (Dirichlet-style) power weights are forced off
// when any configured power lower bound is negative: negative weights
// cannot lie on a [0,1] simplex.
func NewSpace(e *scoring.Engine, obj config.Objective) (*Space, error) {
	dims := obj.WeightsNum
	if dims == 0 {
		dims = len(e.Selected())
	}
	if dims == 0 {
		return nil, fmt.Errorf("search: weight space has no dimensions")
	}

	simplex := obj.Dirichlet
	if simplex {
		for i := 0; i < dims; i++ {
			if config.BoundAt(obj.Bounds.PowerLower, i) < 0 {
				simplex = false
				break
			}
		}
	}

	return &Space{engine: e, obj: obj, dims: dims, simplex: simplex}, nil
}

// Dims returns the number of base dimensions (feature weights, before
// any first-order extension).
func (s *Space) Dims() int { return s.dims }

// Simplex reports whether power weights are drawn on the simplex.
func (s *Space) Simplex() bool { return s.simplex }

func paramName(i int) string { return fmt.Sprintf("w%d", i) }

// Construct draws the trial's weight vector.
func (s *Space) Construct(t *optimizer.Trial) []float64 {
	switch s.engine.EquationType() {
	case scoring.Linear:
		return s.firstOrderWeights(t, 0)
	case scoring.FreeStyle, scoring.StagedFormula:
		return s.freeStyleWeights(t)
	case scoring.DelegatedPCA:
		return s.pcaWeights(t)
	default:
		weights := make([]float64, 0, 2*s.dims)
		suggested := 0
		if s.obj.PowerEnabled() {
			if s.simplex {
				// The derived last weight consumes no suggestion, so
				// parameter names stay contiguous across the sections.
				weights = append(weights, s.simplexWeights(t)...)
				suggested = s.dims - 1
			} else {
				weights = append(weights, s.freePowerWeights(t)...)
				suggested = s.dims
			}
		}
		if s.obj.FirstOrder {
			weights = append(weights, s.firstOrderWeights(t, suggested)...)
		}
		return weights
	}
}

// FromParams rebuilds the weight vector from a study params map, using
// the same derivations Construct applies (the simplex's last weight is
// derived, never suggested, so it is absent from the params).
func (s *Space) FromParams(params map[string]float64) []float64 {
	suggested := make([]float64, 0, len(params))
	for i := 0; ; i++ {
		v, ok := params[paramName(i)]
		if !ok {
			break
		}
		suggested = append(suggested, v)
	}

	if !s.simplex || s.engine.EquationType() != scoring.Power || !s.obj.PowerEnabled() {
		return suggested
	}

	head := s.dims - 1
	if head > len(suggested) {
		head = len(suggested)
	}
	weights := make([]float64, 0, len(suggested)+1)
	sum := 0.0
	for _, v := range suggested[:head] {
		if v > 1-sum {
			v = 1 - sum
		}
		weights = append(weights, v)
		sum += v
	}
	weights = append(weights, 1-sum)
	return append(weights, suggested[head:]...)
}

// simplexWeights draws k-1 weights with an upper bound shrinking to
// keep the partial sum at most 1, and derives the last as the
// remainder, so the vector always sums to 1 with every component in
// [0,1]. The 0.1 floor keeps late dimensions from collapsing to a
// point once the budget is nearly spent.
func (s *Space) simplexWeights(t *optimizer.Trial) []float64 {
	weights := make([]float64, 0, s.dims)
	sum := 0.0
	for i := 0; i < s.dims-1; i++ {
		hi := math.Max(1-sum, 0.1)
		w := t.SuggestFloat(paramName(i), 0, hi, false)
		if w > 1-sum {
			w = 1 - sum
		}
		weights = append(weights, w)
		sum += w
	}
	return append(weights, 1-sum)
}

func (s *Space) freePowerWeights(t *optimizer.Trial) []float64 {
	weights := make([]float64, s.dims)
	for i := range weights {
		lo := config.BoundAt(s.obj.Bounds.PowerLower, i)
		hi := config.BoundAt(s.obj.Bounds.PowerUpper, i)
		weights[i] = t.SuggestFloat(paramName(i), lo, hi, false)
	}
	return weights
}

// firstOrderWeights draws the multiplicative-offset weights. Scale-aware
// mode centers each weight's log-range on the feature's value scale so
// every feature starts numerically comparable; scale-agnostic mode uses
// the fixed global bounds, log-uniform unless the lower bound is
// negative. offset shifts the parameter names past any power weights
// already drawn.
func (s *Space) firstOrderWeights(t *optimizer.Trial, offset int) []float64 {
	b := s.obj.Bounds
	weights := make([]float64, s.dims)

	if b.FirstOrderWithScales {
		scales := s.cappedScales()
		for i := range weights {
			lo := math.Pow(10, scales[i]-b.ScaleLowerSpan)
			hi := math.Pow(10, scales[i]+b.ScaleUpperSpan)
			weights[i] = t.SuggestFloat(paramName(offset+i), lo, hi, true)
		}
		return weights
	}

	logUniform := b.FirstOrderLower >= 0
	for i := range weights {
		weights[i] = t.SuggestFloat(paramName(offset+i), b.FirstOrderLower, b.FirstOrderUpper, logUniform)
	}
	return weights
}

// cappedScales returns the engine's value scales, compressed toward
// their mean when the implied max/min magnitude ratio exceeds the
// configured cap. Compliant scale vectors pass through untouched.
func (s *Space) cappedScales() []float64 {
	scales := s.engine.ValueScales()
	if s.obj.Bounds.MaxMinScaleRatio <= 1 || len(scales) < 2 {
		return scales
	}

	minS, maxS := scales[0], scales[0]
	var mean float64
	for _, v := range scales {
		minS = math.Min(minS, v)
		maxS = math.Max(maxS, v)
		mean += v
	}
	mean /= float64(len(scales))

	span := maxS - minS
	allowed := math.Log10(s.obj.Bounds.MaxMinScaleRatio)
	if span <= allowed {
		return scales
	}

	factor := allowed / span
	capped := make([]float64, len(scales))
	for i, v := range scales {
		capped[i] = mean + (v-mean)*factor
	}
	return capped
}

// freeStyleWeights draws per-dimension bounded weights, optionally
// centered on a base vector with a relative offset ratio.
func (s *Space) freeStyleWeights(t *optimizer.Trial) []float64 {
	b := s.obj.Bounds
	weights := make([]float64, s.dims)
	for i := range weights {
		var lo, hi float64
		if len(b.BaseWeights) > 0 {
			base := config.BoundAt(b.BaseWeights, i)
			lo = base * (1 - b.BaseWeightsOffsetRatio)
			hi = base * (1 + b.BaseWeightsOffsetRatio)
			if lo > hi {
				lo, hi = hi, lo
			}
		} else {
			lo = config.BoundAt(b.FreeStyleLower, i)
			hi = config.BoundAt(b.FreeStyleUpper, i)
		}
		weights[i] = t.SuggestFloat(paramName(i), lo, hi, false)
	}
	return weights
}

func (s *Space) pcaWeights(t *optimizer.Trial) []float64 {
	weights := make([]float64, s.dims)
	for i := range weights {
		weights[i] = t.SuggestFloat(paramName(i), s.obj.Bounds.PCALower, s.obj.Bounds.PCAUpper, false)
	}
	return weights
}
