package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ranktune/ranktune/internal/optimizer"
	"github.com/ranktune/ranktune/internal/search"
	"github.com/ranktune/ranktune/pkg/config"
	"github.com/ranktune/ranktune/pkg/dataset"
	"github.com/ranktune/ranktune/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ranktune",
		Short: "Tune ranking-score formula weights over tabular data",
		Long: "ranktune searches for the weight vector of a parametric row-wise " +
			"ranking score formula that maximizes (or minimizes) a combination of " +
			"ranking metrics over a dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newOptimizeCmd())
	return root
}

func newOptimizeCmd() *cobra.Command {
	var (
		configPath string
		trials     int
		workers    int
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run a weight search with the given config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if trials > 0 {
				cfg.Search.NTrials = trials
			}
			if workers > 0 {
				cfg.Search.Workers = workers
			}
			logger.SetDefault(logger.NewText(cfg.LogLevel, os.Stderr))
			return runOptimize(cmd.Context(), cfg, outDir)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (required)")
	cmd.MarkFlagRequired("config")
	cmd.Flags().IntVar(&trials, "trials", 0, "override search.n_trials")
	cmd.Flags().IntVar(&workers, "workers", 0, "override search.workers")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "artifact directory (defaults to the study name)")
	return cmd
}

func runOptimize(ctx context.Context, cfg *config.Config, outDir string) error {
	ds, err := loadDataset(cfg.Data)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", "path", cfg.Data.Path, "rows", ds.Len(), "columns", len(ds.Columns()))

	direction, err := optimizer.ParseDirection(cfg.Objective.Direction)
	if err != nil {
		return err
	}

	studyName := cfg.Objective.StudyName
	if studyName == "" {
		studyName = "ranktune"
	}
	if outDir == "" {
		outDir = studyName
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", outDir, err)
	}

	studyPath := cfg.Objective.StudyPath
	if studyPath == "" {
		studyPath = filepath.Join(outDir, studyName+".db")
	}
	study, err := optimizer.OpenStudy(studyPath, studyName, direction)
	if err != nil {
		return err
	}
	defer study.Close()

	orch := search.NewOrchestrator(study, search.NewObjectiveFactory(cfg, ds), outDir)
	result, err := orch.Run(ctx, cfg.Search.NTrials, cfg.Search.Workers)
	if err != nil {
		return err
	}

	fmt.Printf("Best is trial %d with value: %v\n", result.Best.ID, result.Best.Value)
	fmt.Printf("weights: %v\n", result.BestWeights)
	fmt.Printf("artifacts: %s\n", outDir)

	if !cfg.Objective.SaveStudyEnabled() {
		if err := study.Close(); err != nil {
			return err
		}
		if err := os.Remove(studyPath); err != nil {
			return fmt.Errorf("remove study file %s: %w", studyPath, err)
		}
	}
	return nil
}

// loadDataset picks the loader from the configured format, falling back
// to the file extension.
func loadDataset(data config.Data) (*dataset.Dataset, error) {
	format := strings.ToLower(data.Format)
	if format == "" {
		switch strings.ToLower(filepath.Ext(data.Path)) {
		case ".xlsx", ".xlsm", ".xls":
			format = "excel"
		default:
			format = "csv"
		}
	}
	switch format {
	case "csv":
		return dataset.LoadCSV(data.Path)
	case "excel":
		return dataset.LoadExcel(data.Path, data.Sheet)
	default:
		return nil, fmt.Errorf("unknown data format %q", format)
	}
}
