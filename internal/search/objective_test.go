package search

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ranktune/ranktune/internal/optimizer"
	"github.com/ranktune/ranktune/internal/scoring"
	"github.com/ranktune/ranktune/pkg/config"
	"github.com/ranktune/ranktune/pkg/dataset"
	"github.com/ranktune/ranktune/pkg/logger"
)

func newLabeledObjective(t *testing.T, formula string, specs ...config.EvaluatorSpec) *Objective {
	t.Helper()
	ds := dataset.New(4)
	if err := ds.SetColumn("s", []float64{4, 3, 2, 1}); err != nil {
		t.Fatalf("SetColumn failed: %v", err)
	}
	if err := ds.SetColumn("label", []float64{1, 1, 0, 0}); err != nil {
		t.Fatalf("SetColumn failed: %v", err)
	}
	e, err := scoring.NewEngine(ds, []string{"s"}, scoring.Linear, scoring.Options{})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	space, err := NewSpace(e, config.Objective{
		Bounds: config.Bounds{FirstOrderLower: 0.5, FirstOrderUpper: 2},
	})
	if err != nil {
		t.Fatalf("NewSpace failed: %v", err)
	}
	obj, err := NewObjective(e, space, formula)
	if err != nil {
		t.Fatalf("NewObjective failed: %v", err)
	}
	for _, spec := range specs {
		if err := obj.AddEvaluator(spec); err != nil {
			t.Fatalf("AddEvaluator failed: %v", err)
		}
	}
	return obj
}

// evaluateOnce drives the objective through a single real trial.
func evaluateOnce(t *testing.T, obj *Objective, trialLog *logger.TrialLog) float64 {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.db")
	study, err := optimizer.OpenStudy(path, "objective-test", optimizer.Maximize)
	if err != nil {
		t.Fatalf("OpenStudy failed: %v", err)
	}
	defer study.Close()

	var value float64
	opt := optimizer.New(study, 5)
	err = opt.Run(context.Background(), func(tr *optimizer.Trial) (float64, error) {
		value, err = obj.Evaluate(tr, trialLog)
		return value, err
	}, 1, trialLog)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return value
}

func TestObjectiveRequiresFormula(t *testing.T) {
	if _, err := NewObjective(nil, nil, ""); err == nil {
		t.Fatalf("empty formula must be rejected")
	}
}

func TestObjectiveRejectsBadFormula(t *testing.T) {
	ds := dataset.New(1)
	if err := ds.SetColumn("s", []float64{1}); err != nil {
		t.Fatalf("SetColumn failed: %v", err)
	}
	e, err := scoring.NewEngine(ds, []string{"s"}, scoring.Linear, scoring.Options{})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if _, err := NewObjective(e, nil, "targets[0] +"); err == nil {
		t.Fatalf("unparsable formula must fail at construction")
	}
}

func TestObjectiveEvaluateWritesWireLines(t *testing.T) {
	obj := newLabeledObjective(t, "targets[0]",
		config.EvaluatorSpec{Kind: "auc", TargetColumn: "label"})

	var buf bytes.Buffer
	value := evaluateOnce(t, obj, logger.NewTrialLog(&buf))

	// Positives carry the top scores regardless of the drawn weight, so
	// the AUC target is exactly 1.
	if value != 1 {
		t.Fatalf("expected AUC 1, got %v", value)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) < 4 {
		t.Fatalf("expected result/targets/weights/best lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "Trial ") || !strings.Contains(lines[0], "finished with result: 1") {
		t.Fatalf("unexpected result line: %q", lines[0])
	}
	if lines[1] != "targets: [1]" {
		t.Fatalf("unexpected targets line: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "weights: [") {
		t.Fatalf("unexpected weights line: %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "Best is trial ") {
		t.Fatalf("unexpected best marker: %q", lines[3])
	}
}

func TestObjectiveLogRoundTripsThroughRecovery(t *testing.T) {
	obj := newLabeledObjective(t, "targets[0]",
		config.EvaluatorSpec{Kind: "auc", TargetColumn: "label"})

	path := filepath.Join(t.TempDir(), "worker_0.log")
	trialLog, err := logger.OpenTrialLog(path)
	if err != nil {
		t.Fatalf("OpenTrialLog failed: %v", err)
	}
	evaluateOnce(t, obj, trialLog)
	if err := trialLog.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	best := RecoverBestTrials([]string{path})
	if len(best) != 1 {
		t.Fatalf("expected 1 recovered event, got %+v", best)
	}
	if best[0].Result != 1 || len(best[0].Targets) != 1 || best[0].Targets[0] != 1 {
		t.Fatalf("recovered event does not match the logged trial: %+v", best[0])
	}
	if len(best[0].Weights) != 1 {
		t.Fatalf("expected a single weight, got %+v", best[0].Weights)
	}
}

func TestObjectiveTargetsFollowRegistrationOrder(t *testing.T) {
	obj := newLabeledObjective(t, "targets[0] - targets[1]",
		config.EvaluatorSpec{Kind: "auc", TargetColumn: "label"},
		config.EvaluatorSpec{Kind: "corrcoef", TargetColumn: "s"})

	var buf bytes.Buffer
	value := evaluateOnce(t, obj, logger.NewTrialLog(&buf))

	// AUC is 1 and the score correlates perfectly with its own input,
	// so the combination is 1 - 1 = 0.
	if value != 0 {
		t.Fatalf("expected combined value 0, got %v", value)
	}
	if !strings.Contains(buf.String(), "targets: [1, 1]") {
		t.Fatalf("targets must follow registration order: %q", buf.String())
	}
}

func TestObjectiveSealedAfterEvaluate(t *testing.T) {
	obj := newLabeledObjective(t, "targets[0]",
		config.EvaluatorSpec{Kind: "auc", TargetColumn: "label"})

	var buf bytes.Buffer
	evaluateOnce(t, obj, logger.NewTrialLog(&buf))

	err := obj.AddEvaluator(config.EvaluatorSpec{Kind: "corrcoef", TargetColumn: "s"})
	if err == nil {
		t.Fatalf("sealed objective must reject new evaluators")
	}
}

func TestObjectiveUnknownEvaluatorKind(t *testing.T) {
	obj := newLabeledObjective(t, "targets[0]",
		config.EvaluatorSpec{Kind: "mystery", TargetColumn: "label"})

	path := filepath.Join(t.TempDir(), "study.db")
	study, err := optimizer.OpenStudy(path, "objective-test", optimizer.Maximize)
	if err != nil {
		t.Fatalf("OpenStudy failed: %v", err)
	}
	defer study.Close()

	var evalErr error
	opt := optimizer.New(study, 5)
	if err := opt.Run(context.Background(), func(tr *optimizer.Trial) (float64, error) {
		var v float64
		v, evalErr = obj.Evaluate(tr, nil)
		return v, evalErr
	}, 1, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if evalErr == nil || !strings.Contains(evalErr.Error(), "mystery") {
		t.Fatalf("expected unknown-kind error, got %v", evalErr)
	}
}

func TestObjectiveInfoListsEvaluators(t *testing.T) {
	k := 3.0
	obj := newLabeledObjective(t, "sum(targets)",
		config.EvaluatorSpec{Kind: "auc", TargetColumn: "label"},
		config.EvaluatorSpec{Kind: "group_topk", TargetColumn: "label", GroupBy: "uid", Hyperparameter: &k})

	info := obj.Info()
	for _, want := range []string{
		"formula: sum(targets)",
		"evaluator 0: kind=auc target=label",
		"evaluator 1: kind=group_topk target=label groupby=uid hyperparameter=3",
	} {
		if !strings.Contains(info, want) {
			t.Fatalf("info missing %q:\n%s", want, info)
		}
	}
}

func TestFormatFloats(t *testing.T) {
	if got := formatFloats([]float64{0.25, -1, 3}); got != "[0.25, -1, 3]" {
		t.Fatalf("unexpected format: %q", got)
	}
	if got := formatFloats(nil); got != "[]" {
		t.Fatalf("unexpected empty format: %q", got)
	}
}
