package search

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ranktune/ranktune/internal/optimizer"
)

// WriteArtifacts persists the run's outputs under dir, once, at the end
// of a run: every trial, the recovered best-trial history, a study
// snapshot, and the objective description.
func WriteArtifacts(dir string, study *optimizer.Study, history []BestTrial, objectiveInfo string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("search: create artifact dir: %w", err)
	}

	trials, err := study.Trials()
	if err != nil {
		return err
	}
	if err := writeFullTrials(filepath.Join(dir, "full_trials.csv"), trials); err != nil {
		return err
	}
	if err := writeBestTrials(filepath.Join(dir, "best_trials.csv"), history); err != nil {
		return err
	}
	if err := writeStudySnapshot(filepath.Join(dir, "study.json"), study, trials); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "objective_info.txt"), []byte(objectiveInfo), 0o644); err != nil {
		return fmt.Errorf("search: write objective info: %w", err)
	}
	return nil
}

func writeFullTrials(path string, trials []optimizer.TrialRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("search: write %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Trial", "State", "Value", "Params"}); err != nil {
		return fmt.Errorf("search: write %s: %w", path, err)
	}
	for _, rec := range trials {
		params, err := json.Marshal(rec.Params)
		if err != nil {
			return fmt.Errorf("search: encode trial %d params: %w", rec.ID, err)
		}
		row := []string{
			strconv.Itoa(rec.ID),
			rec.State,
			strconv.FormatFloat(rec.Value, 'g', -1, 64),
			string(params),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("search: write %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeBestTrials(path string, history []BestTrial) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("search: write %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Result", "Trial", "Targets", "Weights"}); err != nil {
		return fmt.Errorf("search: write %s: %w", path, err)
	}
	for _, event := range history {
		row := []string{
			strconv.FormatFloat(event.Result, 'g', -1, 64),
			strconv.Itoa(event.Trial),
			formatFloats(event.Targets),
			formatFloats(event.Weights),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("search: write %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeStudySnapshot(path string, study *optimizer.Study, trials []optimizer.TrialRecord) error {
	best, hasBest, err := study.BestTrial()
	if err != nil {
		return err
	}
	snapshot := struct {
		Name      string                  `json:"name"`
		Direction optimizer.Direction     `json:"direction"`
		Best      *optimizer.TrialRecord  `json:"best,omitempty"`
		Trials    []optimizer.TrialRecord `json:"trials"`
	}{
		Name:      study.Name(),
		Direction: study.Direction(),
		Trials:    trials,
	}
	if hasBest {
		snapshot.Best = &best
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("search: encode study snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("search: write %s: %w", path, err)
	}
	return nil
}
