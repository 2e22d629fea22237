// Package metrics provides the statistical evaluators that turn a
// scored dataset into scalar quality signals. Every evaluator is a free
// function over an explicit *scoring.Engine; all of them assume the
// overall_score column was just recomputed for the current weight
// vector. Degenerate inputs yield neutral values rather than errors so
// a single bad group never aborts a long parallel search.
package metrics

import (
	"math"
	"sort"

	"github.com/ranktune/ranktune/internal/scoring"
)

// maskedRows returns the row indices an evaluator operates on: all rows
// when no mask column is configured, otherwise the rows where the mask
// column is non-zero.
func maskedRows(e *scoring.Engine, maskColumn string) []int {
	n := e.Rows()
	if maskColumn == "" {
		return allRows(n)
	}
	mask, err := e.Dataset().Column(maskColumn)
	if err != nil {
		return allRows(n)
	}
	rows := make([]int, 0, n)
	for i, v := range mask {
		if v != 0 {
			rows = append(rows, i)
		}
	}
	return rows
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// sortRowsByScoreDesc orders row indices by descending score, stably.
// NaN sentinel scores sink to the end.
func sortRowsByScoreDesc(rows []int, score []float64) []int {
	sorted := make([]int, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(a, b int) bool {
		sa, sb := score[sorted[a]], score[sorted[b]]
		if math.IsNaN(sb) {
			return !math.IsNaN(sa)
		}
		if math.IsNaN(sa) {
			return false
		}
		return sa > sb
	})
	return sorted
}

// groupRows partitions row indices by the group key column. Keys are
// returned sorted for deterministic iteration.
func groupRows(e *scoring.Engine, groupBy string) ([]string, map[string][]int, error) {
	keys, err := e.Dataset().GroupKeys(groupBy)
	if err != nil {
		return nil, nil, err
	}
	byKey := make(map[string][]int)
	for row, key := range keys {
		byKey[key] = append(byKey[key], row)
	}
	order := make([]string, 0, len(byKey))
	for key := range byKey {
		order = append(order, key)
	}
	sort.Strings(order)
	return order, byKey, nil
}

// groupMean averages per-group values, weighted by the engine's group
// weights when configured (groups without a weight count as 1).
func groupMean(e *scoring.Engine, order []string, values map[string]float64) float64 {
	if len(values) == 0 {
		return 0.5
	}
	weights := e.GroupWeights()
	var total, weightSum float64
	for _, key := range order {
		v, ok := values[key]
		if !ok {
			continue
		}
		w := 1.0
		if weights != nil {
			if gw, ok := weights[key]; ok {
				w = gw
			}
		}
		total += v * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0.5
	}
	return total / weightSum
}
