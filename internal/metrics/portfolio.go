package metrics

import (
	"fmt"

	"github.com/ranktune/ranktune/internal/scoring"
)

// PortfolioConcentration sorts rows by descending score and finds the
// score threshold at which the cumulative share of targetColumn first
// exceeds expectedReturn. It returns that threshold and the fraction of
// rows strictly above it. A degenerate threshold at the maximum score
// (zero rows above) clamps the concentration to 1, never 0, so the
// optimizer cannot be rewarded for collapsing the score distribution.
func PortfolioConcentration(e *scoring.Engine, targetColumn, maskColumn string, expectedReturn *float64) (float64, float64, error) {
	er := 0.95
	if expectedReturn != nil {
		er = *expectedReturn
	}
	target, err := e.Dataset().Column(targetColumn)
	if err != nil {
		return 0, 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, 0, fmt.Errorf("metrics: %w", err)
	}

	rows := maskedRows(e, maskColumn)
	if len(rows) == 0 {
		return 0, 1, nil
	}
	sorted := sortRowsByScoreDesc(rows, score)

	var total float64
	for _, row := range sorted {
		total += target[row]
	}
	if total == 0 {
		return 0, 1, nil
	}

	threshold := score[sorted[len(sorted)-1]]
	var cum float64
	for _, row := range sorted {
		cum += target[row]
		if cum/total > er {
			threshold = score[row]
			break
		}
	}

	above := 0
	for _, row := range sorted {
		if score[row] > threshold {
			above++
		}
	}
	concentration := float64(above) / float64(len(sorted))
	if concentration == 0 {
		concentration = 1
	}
	return threshold, concentration, nil
}

// DistinctPortfolioConcentration is the distinct-id variant: the
// threshold is the score at which the cumulative coverage of distinct
// idColumn values first exceeds expectedCoverage. When coverage never
// crosses, both threshold and concentration degenerate to 1.
func DistinctPortfolioConcentration(e *scoring.Engine, idColumn string, expectedCoverage *float64) (float64, float64, error) {
	ec := 0.95
	if expectedCoverage != nil {
		ec = *expectedCoverage
	}
	ids, err := e.Dataset().GroupKeys(idColumn)
	if err != nil {
		return 0, 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, 0, fmt.Errorf("metrics: %w", err)
	}

	n := e.Rows()
	if n == 0 {
		return 1, 1, nil
	}

	distinct := make(map[string]struct{}, n)
	for _, id := range ids {
		distinct[id] = struct{}{}
	}
	totalIDs := len(distinct)

	sorted := sortRowsByScoreDesc(allRows(n), score)
	seen := make(map[string]struct{}, totalIDs)
	threshold, crossed := 1.0, false
	for _, row := range sorted {
		seen[ids[row]] = struct{}{}
		if float64(len(seen))/float64(totalIDs) > ec {
			threshold = score[row]
			crossed = true
			break
		}
	}
	if !crossed {
		return 1, 1, nil
	}

	above := 0
	for _, row := range sorted {
		if score[row] > threshold {
			above++
		}
	}
	concentration := float64(above) / float64(n)
	if concentration == 0 {
		concentration = 1
	}
	return threshold, concentration, nil
}
