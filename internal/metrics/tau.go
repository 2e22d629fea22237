package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/ranktune/ranktune/internal/scoring"
)

// MapToBins maps data into equal-frequency bins. Zero-valued entries
// stay pinned in bin 0 and are excluded from the quantile computation
// so a zero-heavy column cannot distort the bin edges.
func MapToBins(data []float64, numBins int) []float64 {
	if len(data) == 0 {
		return nil
	}

	nonZero := make([]float64, 0, len(data))
	for _, v := range data {
		if v != 0 {
			nonZero = append(nonZero, v)
		}
	}
	bins := make([]float64, len(data))
	if len(nonZero) == 0 {
		return bins
	}
	if numBins > len(nonZero) {
		numBins = len(nonZero)
	}

	sorted := make([]float64, len(nonZero))
	copy(sorted, nonZero)
	sort.Float64s(sorted)

	// Interior quantile edges of an equally spaced grid.
	edges := make([]float64, 0, numBins-1)
	for i := 1; i < numBins; i++ {
		q := float64(i) / float64(numBins)
		edges = append(edges, quantile(sorted, q))
	}

	for i, v := range data {
		if v == 0 {
			continue
		}
		// Index of the first edge strictly greater than v, plus the
		// offset that keeps bin 0 reserved for zeros.
		idx := sort.Search(len(edges), func(j int) bool { return edges[j] > v })
		bins[i] = float64(idx + 1)
	}
	return bins
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Tau bins both the target column and the overall score into
// equal-frequency bins and computes Kendall's tau-b between the binned
// sequences, normalized into [0,1]. With a group column, the normalized
// tau is averaged across groups using the engine's group weights;
// degenerate groups (all ties) contribute the neutral 0.5. The target's
// bin mapping is cached on the engine since it is stable across trials.
func Tau(e *scoring.Engine, targetColumn, groupBy string, numBins int) (float64, error) {
	if numBins <= 0 {
		numBins = 100
	}
	target, err := e.Dataset().Column(targetColumn)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}

	labelBins, ok := e.CachedBins(targetColumn)
	if !ok {
		labelBins = MapToBins(target, numBins)
		e.CacheBins(targetColumn, labelBins)
	}

	if groupBy == "" {
		scoreBins := MapToBins(score, numBins)
		tau := kendallTauB(labelBins, scoreBins)
		if math.IsNaN(tau) {
			return 0.5, nil
		}
		return tau*0.5 + 0.5, nil
	}

	order, byKey, err := groupRows(e, groupBy)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	perGroup := make(map[string]float64, len(byKey))
	for key, rows := range byKey {
		x := make([]float64, len(rows))
		y := make([]float64, len(rows))
		for i, row := range rows {
			x[i] = labelBins[row]
			y[i] = score[row]
		}
		tau := kendallTauB(x, y)
		if math.IsNaN(tau) {
			perGroup[key] = 0.5
		} else {
			perGroup[key] = tau*0.5 + 0.5
		}
	}
	return groupMean(e, order, perGroup), nil
}

// kendallTauB computes Kendall's tau-b with tie corrections using
// Knight's O(n log n) algorithm: sort by x (ties broken by y), then
// count discordant exchanges with a merge sort over y. Returns NaN when
// either sequence is constant.
func kendallTauB(x, y []float64) float64 {
	n := len(x)
	if n < 2 || len(y) != n {
		return math.NaN()
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if x[ia] != x[ib] {
			return x[ia] < x[ib]
		}
		return y[ia] < y[ib]
	})

	n0 := float64(n) * float64(n-1) / 2

	// Tie corrections: n1 over x runs, n3 over joint (x, y) runs.
	var n1, n3 float64
	for i := 0; i < n; {
		j := i
		for j < n && x[order[j]] == x[order[i]] {
			j++
		}
		run := float64(j - i)
		n1 += run * (run - 1) / 2
		for a := i; a < j; {
			b := a
			for b < j && y[order[b]] == y[order[a]] {
				b++
			}
			joint := float64(b - a)
			n3 += joint * (joint - 1) / 2
			a = b
		}
		i = j
	}

	var n2 float64
	ySorted := make([]float64, n)
	for i, idx := range order {
		ySorted[i] = y[idx]
	}
	counts := make(map[float64]float64, n)
	for _, v := range ySorted {
		counts[v]++
	}
	for _, c := range counts {
		n2 += c * (c - 1) / 2
	}

	swaps := countExchanges(ySorted)

	denom := math.Sqrt((n0 - n1) * (n0 - n2))
	if denom == 0 {
		return math.NaN()
	}
	return (n0 - n1 - n2 + n3 - 2*swaps) / denom
}

// countExchanges counts strict inversions in y via merge sort. Equal
// elements never count.
func countExchanges(y []float64) float64 {
	n := len(y)
	queue := make([]float64, n)
	copy(queue, y)
	tmp := make([]float64, n)

	var swaps float64
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
			i, j, k := left, mid, left
			for i < mid && j < end {
				if queue[i] <= queue[j] {
					tmp[k] = queue[i]
					i++
				} else {
					tmp[k] = queue[j]
					swaps += float64(mid - i)
					j++
				}
				k++
			}
			copy(tmp[k:k+(mid-i)], queue[i:mid])
			copy(tmp[k+(mid-i):end], queue[j:end])
			copy(queue[left:end], tmp[left:end])
		}
	}
	return swaps
}
