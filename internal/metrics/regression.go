package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/ranktune/ranktune/internal/scoring"
)

// LogMSE computes the mean squared error between log1p of the target
// and log1p of the overall score. Rows whose terms are not finite (NaN
// sentinel scores, negative values under the log) are skipped.
func LogMSE(e *scoring.Engine, targetColumn string) (float64, error) {
	target, err := e.Dataset().Column(targetColumn)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}

	var sum float64
	count := 0
	for i := range target {
		diff := math.Log1p(target[i]) - math.Log1p(score[i])
		if math.IsNaN(diff) || math.IsInf(diff, 0) {
			continue
		}
		sum += diff * diff
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

// NegRankRatio computes the normalized rank position of positive labels
// in the descending score order (ordinal ranks, ties broken by row
// order). 0 means all positives rank first; values near 1 mean they
// sink to the bottom. A label column without positives returns the
// neutral 0.5.
func NegRankRatio(e *scoring.Engine, labelColumn string) (float64, error) {
	labels, err := e.Dataset().Column(labelColumn)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}

	n := e.Rows()
	sorted := sortRowsByScoreDesc(allRows(n), score)

	var rankSum, npos float64
	for pos, row := range sorted {
		if labels[row] > 0 {
			rankSum += float64(pos + 1)
			npos++
		}
	}
	if npos == 0 {
		return 0.5, nil
	}
	return rankSum * 2 / ((float64(2*n) - npos + 1) * npos), nil
}

// CumulativeDeviation sorts the target column and the overall score
// independently in descending order, then sums the relative deviation
// between the two top-quantile running means.
func CumulativeDeviation(e *scoring.Engine, targetColumn, maskColumn string, nQuantiles int) (float64, error) {
	if nQuantiles <= 1 {
		nQuantiles = 10
	}
	target, err := e.Dataset().Column(targetColumn)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}

	rows := maskedRows(e, maskColumn)
	n := len(rows)
	if n == 0 {
		return 0, nil
	}

	sortedTarget := make([]float64, 0, n)
	sortedScore := make([]float64, 0, n)
	for _, row := range rows {
		sortedTarget = append(sortedTarget, target[row])
		if !math.IsNaN(score[row]) {
			sortedScore = append(sortedScore, score[row])
		}
	}
	sortDesc(sortedTarget)
	sortDesc(sortedScore)

	var total float64
	for i := 1; i < nQuantiles; i++ {
		q := float64(i+1) / float64(nQuantiles)
		count := int(math.Floor(q * float64(n)))
		if count < 1 {
			continue
		}
		avgTarget := prefixMean(sortedTarget, count)
		avgScore := prefixMean(sortedScore, count)
		denom := math.Max(avgTarget, avgScore)
		if denom == 0 {
			continue
		}
		total += math.Abs(avgTarget-avgScore) / denom
	}
	return total, nil
}

func sortDesc(values []float64) {
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
}

// Corrcoef computes the Pearson correlation between the overall score
// and the target column over the masked rows. Zero variance on either
// side returns the neutral 0.
func Corrcoef(e *scoring.Engine, targetColumn, maskColumn string) (float64, error) {
	target, err := e.Dataset().Column(targetColumn)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}

	rows := maskedRows(e, maskColumn)
	var sx, sy float64
	count := 0
	for _, row := range rows {
		if math.IsNaN(score[row]) {
			continue
		}
		sx += score[row]
		sy += target[row]
		count++
	}
	if count < 2 {
		return 0, nil
	}
	mx, my := sx/float64(count), sy/float64(count)

	var cov, vx, vy float64
	for _, row := range rows {
		if math.IsNaN(score[row]) {
			continue
		}
		dx, dy := score[row]-mx, target[row]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, nil
	}
	return cov / math.Sqrt(vx*vy), nil
}

func prefixMean(sorted []float64, count int) float64 {
	if count > len(sorted) {
		count = len(sorted)
	}
	if count == 0 {
		return 0
	}
	var sum float64
	for _, v := range sorted[:count] {
		sum += v
	}
	return sum / float64(count)
}
