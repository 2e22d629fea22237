package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/ranktune/ranktune/internal/scoring"
)

// InversionWeighting selects how each inverted pair contributes to the
// weighted inversion count.
type InversionWeighting string

const (
	// WeightCount counts every inverted pair as 1.
	WeightCount InversionWeighting = "count"
	// WeightLinear counts every inverted pair as 0.5.
	WeightLinear InversionWeighting = "linear"
	// WeightExponential decays a pair's contribution by 0.8^d, where d
	// is how far into the merged right run the displaced element sits.
	WeightExponential InversionWeighting = "exponential"
)

// ParseInversionWeighting maps a config property string to a weighting
// scheme; empty defaults to count.
func ParseInversionWeighting(property string) (InversionWeighting, error) {
	switch property {
	case "", "count":
		return WeightCount, nil
	case "linear":
		return WeightLinear, nil
	case "exponential":
		return WeightExponential, nil
	default:
		return "", fmt.Errorf("metrics: unknown inversion weighting %q", property)
	}
}

// InversionCount treats truth as the ground-truth ordering and counts,
// with the selected weighting, the pairs judged out of order once rows
// are arranged by descending proposed score. The count runs in a single
// bottom-up merge-sort pass, O(n log n); a sorted-descending truth
// sequence yields 0 and a fully reversed one yields n*(n-1)/2 under the
// count scheme.
func InversionCount(truth, proposed []float64, weighting InversionWeighting) float64 {
	n := len(truth)
	if n < 2 {
		return 0
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return proposed[order[a]] > proposed[order[b]]
	})

	queue := make([]float64, n)
	for i, row := range order {
		queue[i] = truth[row]
	}

	tmp := make([]float64, n)
	var result float64
	for step := 1; step < n; step *= 2 {
		for left := 0; left < n; left += 2 * step {
			mid := left + step
			if mid > n {
				mid = n
			}
			end := mid + step
			if end > n {
				end = n
			}
			result += mergeAndCount(queue, tmp, left, mid, end, weighting)
			copy(queue[left:end], tmp[left:end])
		}
	}
	return result
}

// mergeAndCount merges queue[left:mid] and queue[mid:end] into tmp in
// descending order and accumulates the weighted inversions produced by
// right-run elements overtaking left-run ones.
func mergeAndCount(queue, tmp []float64, left, mid, end int, weighting InversionWeighting) float64 {
	var result float64
	i, j, k := left, mid, left
	for i < mid && j < end {
		if queue[i] >= queue[j] {
			tmp[k] = queue[i]
			i++
		} else {
			tmp[k] = queue[j]
			remaining := float64(mid - i)
			switch weighting {
			case WeightLinear:
				result += remaining * 0.5
			case WeightExponential:
				result += remaining * math.Pow(0.8, float64(j-mid))
			default:
				result += remaining
			}
			j++
		}
		k++
	}
	copy(tmp[k:k+(mid-i)], queue[i:mid])
	copy(tmp[k+(mid-i):end], queue[j:end])
	return result
}

// InversionScore sums, across the selected feature columns, the
// weight-scaled inversion count of each column against the current
// overall score ordering.
func InversionScore(e *scoring.Engine, weights []float64, weighting InversionWeighting) (float64, error) {
	score, err := e.Score()
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	values := e.SelectedValues()

	limit := len(values)
	if len(weights) < limit {
		limit = len(weights)
	}

	var result float64
	for i := 0; i < limit; i++ {
		result += InversionCount(values[i], score, weighting) * weights[i]
	}
	return result, nil
}
