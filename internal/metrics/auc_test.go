package metrics

import (
	"math"
	"testing"
)

func TestAUCPerfectSeparation(t *testing.T) {
	e := newScoredEngine(t, []float64{1, 2, 3, 4},
		map[string][]float64{"label": {0, 0, 1, 1}}, nil)

	auc, err := AUC(e, "label")
	if err != nil {
		t.Fatalf("AUC failed: %v", err)
	}
	if auc != 1.0 {
		t.Fatalf("expected AUC 1.0 for perfect separation, got %v", auc)
	}
}

func TestAUCReversedSeparation(t *testing.T) {
	e := newScoredEngine(t, []float64{4, 3, 2, 1},
		map[string][]float64{"label": {0, 0, 1, 1}}, nil)

	auc, err := AUC(e, "label")
	if err != nil {
		t.Fatalf("AUC failed: %v", err)
	}
	if auc != 0.0 {
		t.Fatalf("expected AUC 0.0 for reversed separation, got %v", auc)
	}
}

func TestAUCSingleClassIsNeutral(t *testing.T) {
	e := newScoredEngine(t, []float64{1, 2, 3},
		map[string][]float64{"label": {1, 1, 1}}, nil)

	auc, err := AUC(e, "label")
	if err != nil {
		t.Fatalf("AUC failed: %v", err)
	}
	if auc != 0.5 {
		t.Fatalf("expected neutral 0.5 for single-class labels, got %v", auc)
	}
}

func TestAUCTiedScores(t *testing.T) {
	e := newScoredEngine(t, []float64{1, 1, 1, 1},
		map[string][]float64{"label": {0, 1, 0, 1}}, nil)

	auc, err := AUC(e, "label")
	if err != nil {
		t.Fatalf("AUC failed: %v", err)
	}
	if math.Abs(auc-0.5) > 1e-12 {
		t.Fatalf("expected 0.5 for all-tied scores, got %v", auc)
	}
}

func TestAUCMissingColumn(t *testing.T) {
	e := newScoredEngine(t, []float64{1, 2}, nil, nil)
	if _, err := AUC(e, "absent"); err == nil {
		t.Fatalf("expected error for missing label column")
	}
}

func TestWUAUCPerGroup(t *testing.T) {
	// Group g1 is perfectly separated, g2 perfectly reversed; the
	// unweighted mean is 0.5.
	e := newScoredEngine(t,
		[]float64{1, 2, 2, 1},
		map[string][]float64{"label": {0, 1, 0, 1}},
		map[string][]string{"uid": {"g1", "g1", "g2", "g2"}})

	v, err := WUAUC(e, "label", "uid")
	if err != nil {
		t.Fatalf("WUAUC failed: %v", err)
	}
	if math.Abs(v-0.5) > 1e-12 {
		t.Fatalf("expected 0.5, got %v", v)
	}
}

func TestWUAUCDegenerateGroupIsNeutral(t *testing.T) {
	e := newScoredEngine(t,
		[]float64{1, 2, 3, 4},
		map[string][]float64{"label": {0, 1, 1, 1}},
		map[string][]string{"uid": {"g1", "g1", "g2", "g2"}})

	v, err := WUAUC(e, "label", "uid")
	if err != nil {
		t.Fatalf("WUAUC failed: %v", err)
	}
	// g1 separates perfectly (1.0); g2 is single-class (0.5).
	if math.Abs(v-0.75) > 1e-12 {
		t.Fatalf("expected 0.75, got %v", v)
	}
}

func TestWUAUCEmptyGroupByFallsBack(t *testing.T) {
	e := newScoredEngine(t, []float64{1, 2, 3, 4},
		map[string][]float64{"label": {0, 0, 1, 1}}, nil)

	v, err := WUAUC(e, "label", "")
	if err != nil {
		t.Fatalf("WUAUC failed: %v", err)
	}
	if v != 1.0 {
		t.Fatalf("expected plain AUC 1.0, got %v", v)
	}
}

func TestWOAUC(t *testing.T) {
	score := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	wt := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	e := newScoredEngine(t, score, map[string][]float64{"wt": wt}, nil)
	if err := e.InitFrequencySampler("wt", 3, nil, nil, false, false); err != nil {
		t.Fatalf("InitFrequencySampler failed: %v", err)
	}

	values, err := WOAUC(e, "wt")
	if err != nil {
		t.Fatalf("WOAUC failed: %v", err)
	}
	if len(values) == 0 {
		t.Fatalf("expected one partial AUC per boundary")
	}
	// wt rises with score, so every boundary indicator is perfectly
	// separated by the score.
	for i, v := range values {
		if v != 1.0 {
			t.Fatalf("boundary %d: expected partial AUC 1.0, got %v", i, v)
		}
	}
}

func TestWOAUCWithoutSampler(t *testing.T) {
	e := newScoredEngine(t, []float64{1, 2}, map[string][]float64{"wt": {1, 2}}, nil)
	if _, err := WOAUC(e, "wt"); err == nil {
		t.Fatalf("expected error when no sampler was initialized")
	}
}

func TestGroupTopK(t *testing.T) {
	e := newScoredEngine(t,
		[]float64{5, 1, 9, 2},
		map[string][]float64{"gift": {10, 1, 7, 3}},
		map[string][]string{"uid": {"g1", "g1", "g2", "g2"}})

	// Top-1 per group: g1 row 0 (gift 10), g2 row 2 (gift 7); mean 8.5.
	v, err := GroupTopK(e, "gift", "uid", 1)
	if err != nil {
		t.Fatalf("GroupTopK failed: %v", err)
	}
	if math.Abs(v-8.5) > 1e-12 {
		t.Fatalf("expected 8.5, got %v", v)
	}
}

func TestGroupTopKWeighted(t *testing.T) {
	// Group weights g1=3, g2=1: (10*3 + 4*1) / 4 = 8.5.
	e := newWeightedEngine(t,
		[]float64{5, 1},
		map[string][]float64{"gift": {10, 4}},
		map[string][]string{"uid": {"g1", "g2"}},
		map[string]float64{"g1": 3, "g2": 1})

	v, err := GroupTopK(e, "gift", "uid", 1)
	if err != nil {
		t.Fatalf("GroupTopK failed: %v", err)
	}
	if math.Abs(v-8.5) > 1e-12 {
		t.Fatalf("expected 8.5, got %v", v)
	}
}
