package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/ranktune/ranktune/internal/scoring"
)

// rocAUC computes the ranking AUC of scores against a binary label via
// average ranks. Rows with NaN scores are ignored. A single-class (or
// empty) input returns the neutral 0.5.
func rocAUC(labels, scores []float64) float64 {
	idx := make([]int, 0, len(scores))
	for i, s := range scores {
		if !math.IsNaN(s) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return 0.5
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] < scores[idx[b]]
	})

	// Average ranks over tie runs, 1-based.
	ranks := make([]float64, len(scores))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && scores[idx[j]] == scores[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var posRankSum float64
	var npos, nneg int
	for _, i := range idx {
		if labels[i] > 0 {
			posRankSum += ranks[i]
			npos++
		} else {
			nneg++
		}
	}
	if npos == 0 || nneg == 0 {
		return 0.5
	}
	return (posRankSum - float64(npos)*float64(npos+1)/2) / (float64(npos) * float64(nneg))
}

// AUC computes the overall ranking AUC of overall_score against a
// binary label column.
func AUC(e *scoring.Engine, labelColumn string) (float64, error) {
	labels, err := e.Dataset().Column(labelColumn)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	return rocAUC(labels, score), nil
}

// WUAUC computes the weighted user-level AUC: a per-group ranking AUC
// averaged across groups with the engine's group weights. Groups with a
// degenerate single-class label contribute the neutral 0.5 rather than
// failing the trial. An empty groupBy degrades to the plain AUC.
func WUAUC(e *scoring.Engine, labelColumn, groupBy string) (float64, error) {
	if groupBy == "" {
		return AUC(e, labelColumn)
	}
	labels, err := e.Dataset().Column(labelColumn)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	order, byKey, err := groupRows(e, groupBy)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}

	perGroup := make(map[string]float64, len(byKey))
	for key, rows := range byKey {
		groupLabels := make([]float64, len(rows))
		groupScores := make([]float64, len(rows))
		for i, row := range rows {
			groupLabels[i] = labels[row]
			groupScores[i] = score[row]
		}
		perGroup[key] = rocAUC(groupLabels, groupScores)
	}
	return groupMean(e, order, perGroup), nil
}

// WOAUC computes one partial AUC per sampled boundary of scoreColumn,
// restricted to the rows inside the sampler's slice. The boundaries
// must have been precomputed via Engine.InitFrequencySampler.
func WOAUC(e *scoring.Engine, scoreColumn string) ([]float64, error) {
	sampler, ok := e.Sampler(scoreColumn)
	if !ok {
		return nil, fmt.Errorf("metrics: no frequency sampler initialized for column %q", scoreColumn)
	}
	rows, _ := e.SliceRows(scoreColumn)
	score, err := e.Score()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	boundaries := sampler.Boundaries()
	out := make([]float64, 0, len(boundaries))
	for _, bound := range boundaries {
		indicator, err := e.Dataset().Column(scoring.BoundaryColumn(scoreColumn, bound))
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		labels := make([]float64, len(rows))
		scores := make([]float64, len(rows))
		for i, row := range rows {
			labels[i] = indicator[row]
			scores[i] = score[row]
		}
		out = append(out, rocAUC(labels, scores))
	}
	return out, nil
}

// GroupTopK averages, across groups, the sum of label values among each
// group's top-k rows by score. Weighted by the engine's group weights.
func GroupTopK(e *scoring.Engine, labelColumn, groupBy string, k int) (float64, error) {
	if groupBy == "" {
		return 0, nil
	}
	if k < 1 {
		k = 1
	}
	labels, err := e.Dataset().Column(labelColumn)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	order, byKey, err := groupRows(e, groupBy)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}

	perGroup := make(map[string]float64, len(byKey))
	for key, rows := range byKey {
		sorted := sortRowsByScoreDesc(rows, score)
		top := k
		if top > len(sorted) {
			top = len(sorted)
		}
		sum := 0.0
		for _, row := range sorted[:top] {
			sum += labels[row]
		}
		perGroup[key] = sum
	}
	return groupMean(e, order, perGroup), nil
}
