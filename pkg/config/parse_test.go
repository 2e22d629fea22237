package config

import (
	"strings"
	"testing"
)

const validYAML = `
data:
  path: data.csv
calculator:
  selected_columns: [ctr, watch_time]
  equation_type: product
objective:
  formula: targets[0] + targets[1]
evaluators:
  - kind: auc
    target_column: label
  - kind: portfolio
    target_column: revenue
    hyperparameter: 0.9
search:
  n_trials: 50
  workers: 2
`

func TestParseConfigValid(t *testing.T) {
	cfg, err := ParseConfigYAMLString(validYAML)
	if err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
	if cfg.Calculator.EquationType != "product" {
		t.Fatalf("unexpected equation type: %s", cfg.Calculator.EquationType)
	}
	if len(cfg.Evaluators) != 2 {
		t.Fatalf("expected 2 evaluators, got %d", len(cfg.Evaluators))
	}
	if cfg.Evaluators[1].Hyperparameter == nil || *cfg.Evaluators[1].Hyperparameter != 0.9 {
		t.Fatalf("hyperparameter not parsed")
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfigYAMLString(`
data:
  path: data.csv
calculator:
  selected_columns: [ctr]
objective:
  formula: targets[0]
evaluators:
  - kind: auc
    target_column: label
`)
	if err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.Objective.Direction != "maximize" {
		t.Fatalf("expected default direction maximize, got %s", cfg.Objective.Direction)
	}
	if cfg.Search.NTrials != 200 || cfg.Search.Workers != 1 {
		t.Fatalf("unexpected search defaults: %+v", cfg.Search)
	}
	if !cfg.Objective.PowerEnabled() {
		t.Fatalf("power should default to enabled")
	}
	if !cfg.Objective.SaveStudyEnabled() {
		t.Fatalf("save_study should default to enabled")
	}
	lo := BoundAt(cfg.Objective.Bounds.PowerLower, 3)
	hi := BoundAt(cfg.Objective.Bounds.PowerUpper, 3)
	if lo != -1 || hi != 1 {
		t.Fatalf("unexpected default power bounds: [%v, %v]", lo, hi)
	}
}

func TestParseConfigWoaucDefaults(t *testing.T) {
	cfg, err := ParseConfigYAMLString(`
data:
  path: data.csv
calculator:
  selected_columns: [ctr]
objective:
  formula: targets[0]
evaluators:
  - kind: woauc
    target_column: watch_time
`)
	if err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
	if cfg.Evaluators[0].SampleSize != 10 {
		t.Fatalf("expected default sample_size 10, got %d", cfg.Evaluators[0].SampleSize)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown equation type",
			yaml: strings.Replace(validYAML, "equation_type: product", "equation_type: cubic", 1),
			want: "equation_type",
		},
		{
			name: "unknown evaluator kind",
			yaml: strings.Replace(validYAML, "kind: auc", "kind: magic", 1),
			want: "unknown kind",
		},
		{
			name: "missing formula",
			yaml: strings.Replace(validYAML, "formula: targets[0] + targets[1]", "", 1),
			want: "formula",
		},
		{
			name: "missing target column",
			yaml: strings.Replace(validYAML, "target_column: label", "", 1),
			want: "target_column",
		},
		{
			name: "workers exceed trials",
			yaml: strings.Replace(validYAML, "workers: 2", "workers: 100", 1),
			want: "workers",
		},
		{
			name: "product with no weight sections",
			yaml: strings.Replace(validYAML, "objective:\n  formula: targets[0] + targets[1]",
				"objective:\n  formula: targets[0]\n  power: false", 1),
			want: "first_order",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfigYAMLString(tc.yaml)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestParseConfigBadBounds(t *testing.T) {
	yaml := strings.Replace(validYAML, "objective:\n  formula: targets[0] + targets[1]",
		"objective:\n  formula: targets[0]\n  bounds:\n    power_lower: [2]\n    power_upper: [1]", 1)
	if _, err := ParseConfigYAMLString(yaml); err == nil {
		t.Fatalf("expected error for inverted power bounds")
	}
}

func TestParseConfigJSONRequiresOrder(t *testing.T) {
	_, err := ParseConfigYAMLString(`
data:
  path: data.csv
calculator:
  selected_columns: [x]
  equation_type: json
  formulas:
    a: "x + 1"
    b: "a * 2"
objective:
  formula: targets[0]
evaluators:
  - kind: auc
    target_column: label
`)
	if err == nil {
		t.Fatalf("expected error when formula_order is missing for multi-stage formulas")
	}
}

func TestBoundAtBroadcast(t *testing.T) {
	if v := BoundAt([]float64{0.5}, 7); v != 0.5 {
		t.Fatalf("scalar bound should broadcast, got %v", v)
	}
	if v := BoundAt([]float64{1, 2, 3}, 1); v != 2 {
		t.Fatalf("expected per-dimension bound 2, got %v", v)
	}
	if v := BoundAt(nil, 0); v != 0 {
		t.Fatalf("empty bounds should read as 0, got %v", v)
	}
}
