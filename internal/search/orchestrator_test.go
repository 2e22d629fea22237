package search

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ranktune/ranktune/internal/optimizer"
	"github.com/ranktune/ranktune/pkg/config"
	"github.com/ranktune/ranktune/pkg/dataset"
)

func newRunConfig() *config.Config {
	return &config.Config{
		Calculator: config.Calculator{
			SelectedColumns: []string{"ctr", "cvr"},
			EquationType:    "product",
		},
		Objective: config.Objective{
			Formula: "targets[0]",
			Bounds:  config.Bounds{PowerLower: []float64{0}, PowerUpper: []float64{1}},
		},
		Evaluators: []config.EvaluatorSpec{
			{Kind: "auc", TargetColumn: "label"},
		},
	}
}

func newRunDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New(6)
	for name, values := range map[string][]float64{
		"ctr":   {0.9, 0.8, 0.7, 0.3, 0.2, 0.1},
		"cvr":   {0.8, 0.9, 0.6, 0.2, 0.3, 0.1},
		"label": {1, 1, 1, 0, 0, 0},
	} {
		if err := ds.SetColumn(name, values); err != nil {
			t.Fatalf("SetColumn failed: %v", err)
		}
	}
	return ds
}

func TestOrchestratorRun(t *testing.T) {
	dir := t.TempDir()
	study, err := optimizer.OpenStudy(filepath.Join(dir, "run.db"), "run", optimizer.Maximize)
	if err != nil {
		t.Fatalf("OpenStudy failed: %v", err)
	}
	defer study.Close()

	factory := NewObjectiveFactory(newRunConfig(), newRunDataset(t))
	orch := NewOrchestrator(study, factory, dir)

	result, err := orch.Run(context.Background(), 8, 2)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Positive rows dominate both features, so every weight draw ranks
	// them on top and the AUC objective is exactly 1.
	if result.Best.Value != 1 {
		t.Fatalf("expected best value 1, got %v", result.Best.Value)
	}
	if len(result.BestWeights) != 2 {
		t.Fatalf("expected 2 best weights, got %v", result.BestWeights)
	}
	if len(result.History) == 0 {
		t.Fatalf("expected a recovered best-trial history")
	}
	if len(result.LogPaths) != 2 {
		t.Fatalf("expected 2 worker logs, got %v", result.LogPaths)
	}
	for _, path := range result.LogPaths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("worker log missing: %v", err)
		}
	}

	n, err := study.Len()
	if err != nil || n != 8 {
		t.Fatalf("expected 8 persisted trials, got %d (%v)", n, err)
	}
}

func TestOrchestratorValidatesBudget(t *testing.T) {
	dir := t.TempDir()
	study, err := optimizer.OpenStudy(filepath.Join(dir, "run.db"), "run", optimizer.Maximize)
	if err != nil {
		t.Fatalf("OpenStudy failed: %v", err)
	}
	defer study.Close()

	orch := NewOrchestrator(study, NewObjectiveFactory(newRunConfig(), newRunDataset(t)), dir)
	if _, err := orch.Run(context.Background(), 0, 2); err == nil {
		t.Fatalf("zero trials must be rejected")
	}
}

func TestOrchestratorClampsWorkersToTrials(t *testing.T) {
	dir := t.TempDir()
	study, err := optimizer.OpenStudy(filepath.Join(dir, "run.db"), "run", optimizer.Maximize)
	if err != nil {
		t.Fatalf("OpenStudy failed: %v", err)
	}
	defer study.Close()

	orch := NewOrchestrator(study, NewObjectiveFactory(newRunConfig(), newRunDataset(t)), dir)
	result, err := orch.Run(context.Background(), 2, 8)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.LogPaths) != 2 {
		t.Fatalf("workers must clamp to the trial budget, got %d logs", len(result.LogPaths))
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	study, err := optimizer.OpenStudy(filepath.Join(dir, "run.db"), "artifacts", optimizer.Maximize)
	if err != nil {
		t.Fatalf("OpenStudy failed: %v", err)
	}
	defer study.Close()

	for _, rec := range []optimizer.TrialRecord{
		{ID: 1, State: optimizer.StateComplete, Value: 0.4, Params: map[string]float64{"w0": 0.1}},
		{ID: 2, State: optimizer.StateComplete, Value: 0.7, Params: map[string]float64{"w0": 0.6}},
	} {
		if err := study.RecordTrial(rec); err != nil {
			t.Fatalf("RecordTrial failed: %v", err)
		}
	}
	history := []BestTrial{
		{Trial: 1, Result: 0.4, Targets: []float64{0.4}, Weights: []float64{0.1}},
		{Trial: 2, Result: 0.7, Targets: []float64{0.7}, Weights: []float64{0.6}},
	}

	out := filepath.Join(dir, "artifacts")
	if err := WriteArtifacts(out, study, history, "formula: targets[0]\n"); err != nil {
		t.Fatalf("WriteArtifacts failed: %v", err)
	}

	f, err := os.Open(filepath.Join(out, "full_trials.csv"))
	if err != nil {
		t.Fatalf("full_trials.csv missing: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading full_trials.csv failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 trials, got %d rows", len(rows))
	}
	if rows[0][0] != "Trial" || rows[0][3] != "Params" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[2][0] != "2" || rows[2][2] != "0.7" {
		t.Fatalf("unexpected trial row: %v", rows[2])
	}

	b, err := os.Open(filepath.Join(out, "best_trials.csv"))
	if err != nil {
		t.Fatalf("best_trials.csv missing: %v", err)
	}
	defer b.Close()
	bestRows, err := csv.NewReader(b).ReadAll()
	if err != nil {
		t.Fatalf("reading best_trials.csv failed: %v", err)
	}
	if len(bestRows) != 3 || bestRows[1][1] != "1" || bestRows[2][3] != "[0.6]" {
		t.Fatalf("unexpected best-trial rows: %v", bestRows)
	}

	data, err := os.ReadFile(filepath.Join(out, "study.json"))
	if err != nil {
		t.Fatalf("study.json missing: %v", err)
	}
	var snapshot struct {
		Name   string                  `json:"name"`
		Best   *optimizer.TrialRecord  `json:"best"`
		Trials []optimizer.TrialRecord `json:"trials"`
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("decoding study.json failed: %v", err)
	}
	if snapshot.Name != "artifacts" || snapshot.Best == nil || snapshot.Best.ID != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if len(snapshot.Trials) != 2 {
		t.Fatalf("expected 2 trials in snapshot, got %d", len(snapshot.Trials))
	}

	if _, err := os.Stat(filepath.Join(out, "objective_info.txt")); err != nil {
		t.Fatalf("objective_info.txt missing: %v", err)
	}
}

func TestGroupWeightsFromColumn(t *testing.T) {
	ds := dataset.New(4)
	if err := ds.SetStringColumn("uid", []string{"a", "a", "b", "b"}); err != nil {
		t.Fatalf("SetStringColumn failed: %v", err)
	}
	if err := ds.SetColumn("views", []float64{10, 20, 5, 5}); err != nil {
		t.Fatalf("SetColumn failed: %v", err)
	}

	weights, err := GroupWeightsFromColumn(ds, "uid", "views")
	if err != nil {
		t.Fatalf("GroupWeightsFromColumn failed: %v", err)
	}
	if weights["a"] != 30 || weights["b"] != 10 {
		t.Fatalf("unexpected group weights: %v", weights)
	}
	if _, err := GroupWeightsFromColumn(ds, "missing", "views"); err == nil {
		t.Fatalf("missing group column must fail")
	}
}
