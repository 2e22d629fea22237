package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/ranktune/ranktune/pkg/logger"
	"github.com/ranktune/ranktune/pkg/utils"
)

// Trial collects the parameters suggested for one objective
// evaluation. Parameter values come from the optimizer's sampler.
type Trial struct {
	ID     int
	rng    *utils.RandSource
	base   map[string]float64
	sigma  float64
	params map[string]float64
}

// SuggestFloat draws a value for the named parameter in [low, high].
// During warm-up (no incumbent) the draw is uniform, log-uniform when
// logScale is set. Once an incumbent exists, the draw perturbs the
// incumbent's value with Gaussian noise scaled to the range, which
// keeps later trials near the best region while the shrinking sigma
// narrows the search.
func (t *Trial) SuggestFloat(name string, low, high float64, logScale bool) float64 {
	v := t.sample(name, low, high, logScale)
	v = utils.ClampFloat64(v, low, high)
	t.params[name] = v
	return v
}

func (t *Trial) sample(name string, low, high float64, logScale bool) float64 {
	center, hasBase := 0.0, false
	if t.base != nil {
		center, hasBase = t.base[name]
	}

	if logScale && low > 0 {
		lo, hi := math.Log(low), math.Log(high)
		if !hasBase || center <= 0 {
			return math.Exp(t.rng.UniformFloat64(lo, hi))
		}
		return math.Exp(t.rng.NormFloat64(math.Log(center), t.sigma*(hi-lo)))
	}

	if !hasBase {
		return t.rng.UniformFloat64(low, high)
	}
	return t.rng.NormFloat64(center, t.sigma*(high-low))
}

// Params returns the suggested parameters keyed by name.
func (t *Trial) Params() map[string]float64 { return t.params }

// Objective evaluates one trial and returns its value.
type Objective func(t *Trial) (float64, error)

// Optimizer runs trials against a shared study. The sampling strategy
// is uniform random warm-up followed by Gaussian perturbation of the
// study's incumbent best, with an exploration fraction that keeps
// drawing uniformly so the search cannot lock onto a local optimum
// too early.
type Optimizer struct {
	study       *Study
	rng         *utils.RandSource
	warmupFrac  float64
	exploreFrac float64
	log         *slog.Logger
}

// New creates an optimizer over the study, seeded for reproducible
// sampling within one worker.
func New(study *Study, seed int64) *Optimizer {
	return &Optimizer{
		study:       study,
		rng:         utils.NewRandSource(seed),
		warmupFrac:  0.2,
		exploreFrac: 0.25,
		log:         logger.Default,
	}
}

// Run executes nTrials trials sequentially, persisting each result in
// the study. A trial that displaces the study best appends a best
// marker to trialLog; these lines are the recovery markers that let a
// later run reconstruct the best trials from logs alone. A failing
// objective, or a non-finite objective value, marks its trial failed
// and the run continues. Cancellation is checked between trials, never
// mid-trial.
func (o *Optimizer) Run(ctx context.Context, fn Objective, nTrials int, trialLog *logger.TrialLog) error {
	if fn == nil {
		return fmt.Errorf("optimizer: objective function is required")
	}
	for i := 0; i < nTrials; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := o.study.NextTrialID()
		if err != nil {
			return err
		}

		trial := &Trial{
			ID:     id,
			rng:    o.rng,
			sigma:  o.sigma(i, nTrials),
			params: make(map[string]float64),
		}
		if o.pastWarmup(i, nTrials) && o.rng.Float64() >= o.exploreFrac {
			if best, ok, err := o.study.BestTrial(); err == nil && ok {
				trial.base = best.Params
			}
		}

		value, err := fn(trial)
		if err == nil && (math.IsNaN(value) || math.IsInf(value, 0)) {
			// The combining formula is unconstrained, so a degenerate
			// trial can produce NaN or Inf. Neither is orderable nor
			// JSON-encodable, so the trial fails instead of the run.
			err = fmt.Errorf("non-finite objective value %v", value)
		}
		if err != nil {
			o.log.Warn("trial failed", "trial", id, "error", err)
			if recErr := o.study.RecordTrial(TrialRecord{ID: id, State: StateFailed, Params: trial.params}); recErr != nil {
				return recErr
			}
			continue
		}

		if err := o.study.RecordTrial(TrialRecord{ID: id, State: StateComplete, Value: value, Params: trial.params}); err != nil {
			return err
		}
		best, ok, err := o.study.BestTrial()
		if err != nil {
			return err
		}
		// Promotion is strict, so the best id matches this trial exactly
		// when it displaced the incumbent.
		if ok && best.ID == id {
			trialLog.Printf("Best is trial %d with value: %v", best.ID, best.Value)
		}
	}
	return nil
}

func (o *Optimizer) pastWarmup(i, nTrials int) bool {
	return float64(i) >= o.warmupFrac*float64(nTrials)
}

// sigma shrinks the perturbation width from 0.25 of the range down to
// 0.05 as the run progresses.
func (o *Optimizer) sigma(i, nTrials int) float64 {
	if nTrials <= 1 {
		return 0.25
	}
	progress := float64(i) / float64(nTrials-1)
	return 0.25 - 0.2*progress
}
