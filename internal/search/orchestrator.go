package search

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ranktune/ranktune/internal/optimizer"
	"github.com/ranktune/ranktune/pkg/logger"
)

// ObjectiveFactory builds one worker's objective. Each worker gets its
// own engine and dataset view; the score column is per-worker state, so
// objectives must never be shared across workers.
type ObjectiveFactory func() (*Objective, error)

// Orchestrator splits a trial budget across parallel workers sharing
// one study. Workers append to private log files; the study is the
// authoritative record of which weights won, while the logs feed the
// human-readable best-trial history.
type Orchestrator struct {
	study   *optimizer.Study
	factory ObjectiveFactory
	outDir  string
	log     *slog.Logger
}

// RunResult is what a finished search run reports.
type RunResult struct {
	Best        optimizer.TrialRecord
	BestWeights []float64
	History     []BestTrial
	LogPaths    []string
}

// NewOrchestrator creates an orchestrator writing worker logs and
// artifacts under outDir.
func NewOrchestrator(study *optimizer.Study, factory ObjectiveFactory, outDir string) *Orchestrator {
	return &Orchestrator{study: study, factory: factory, outDir: outDir, log: logger.Default}
}

// Run executes totalTrials split evenly across workers, the remainder
// going to the first worker. Worker failures cancel the remaining
// workers between trials; trials already persisted stay in the study.
// After the join the best params are read back from the study and the
// best-trial history is re-derived from the worker logs.
func (o *Orchestrator) Run(ctx context.Context, totalTrials, workers int) (*RunResult, error) {
	if totalTrials < 1 {
		return nil, fmt.Errorf("search: total trials must be at least 1")
	}
	if workers < 1 {
		workers = 1
	}
	if workers > totalTrials {
		workers = totalTrials
	}

	// Build every objective up front so a structural failure aborts
	// before any worker starts.
	objectives := make([]*Objective, workers)
	for w := range objectives {
		obj, err := o.factory()
		if err != nil {
			return nil, err
		}
		objectives[w] = obj
	}

	per := totalTrials / workers
	rem := totalTrials % workers
	seed := time.Now().UnixNano()
	logPaths := make([]string, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		n := per
		if w == 0 {
			n += rem
		}
		path := filepath.Join(o.outDir, fmt.Sprintf("worker_%d.log", w))
		logPaths[w] = path

		worker, trials, obj := w, n, objectives[w]
		g.Go(func() error {
			trialLog, err := logger.OpenTrialLog(path)
			if err != nil {
				return fmt.Errorf("search: worker %d: %w", worker, err)
			}
			defer trialLog.Close()

			o.log.Info("worker started", "worker", worker, "trials", trials)
			opt := optimizer.New(o.study, seed+int64(worker))
			return opt.Run(gctx, func(t *optimizer.Trial) (float64, error) {
				return obj.Evaluate(t, trialLog)
			}, trials, trialLog)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best, ok, err := o.study.BestTrial()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("search: no trial completed")
	}

	history := RecoverBestTrials(logPaths)
	result := &RunResult{
		Best:        best,
		BestWeights: objectives[0].Space().FromParams(best.Params),
		History:     history,
		LogPaths:    logPaths,
	}
	if err := WriteArtifacts(o.outDir, o.study, history, objectives[0].Info()); err != nil {
		return nil, err
	}
	o.log.Info("search finished", "best_trial", best.ID, "best_value", best.Value)
	return result, nil
}
