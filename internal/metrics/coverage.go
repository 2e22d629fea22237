package metrics

import (
	"fmt"

	"github.com/ranktune/ranktune/internal/scoring"
)

// TopCoverage returns the share of targetColumn's total mass captured
// by the top headPercentage of score-sorted rows (default 5%).
func TopCoverage(e *scoring.Engine, targetColumn, maskColumn string, headPercentage *float64) (float64, error) {
	head := 0.05
	if headPercentage != nil {
		head = *headPercentage
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
	if len(rows) == 0 {
		return 0, nil
	}
	sorted := sortRowsByScoreDesc(rows, score)

	var total float64
	for _, row := range sorted {
		total += target[row]
	}
	if total == 0 {
		return 0, nil
	}

	topCount := int(float64(len(sorted)) * head)
	var topSum float64
	for _, row := range sorted[:topCount] {
		topSum += target[row]
	}
	return topSum / total, nil
}

// DistinctTopCoverage returns the share of distinct idColumn values
// reached within the top headPercentage of score-sorted rows.
func DistinctTopCoverage(e *scoring.Engine, idColumn, maskColumn string, headPercentage *float64) (float64, error) {
	head := 0.05
	if headPercentage != nil {
		head = *headPercentage
	}
	ids, err := e.Dataset().GroupKeys(idColumn)
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}
	score, err := e.Score()
	if err != nil {
		return 0, fmt.Errorf("metrics: %w", err)
	}

	rows := maskedRows(e, maskColumn)
	if len(rows) == 0 {
		return 0, nil
	}
	sorted := sortRowsByScoreDesc(rows, score)

	distinct := make(map[string]struct{}, len(sorted))
	for _, row := range sorted {
		distinct[ids[row]] = struct{}{}
	}
	if len(distinct) == 0 {
		return 0, nil
	}

	topCount := int(float64(len(sorted)) * head)
	seen := make(map[string]struct{}, topCount)
	for _, row := range sorted[:topCount] {
		seen[ids[row]] = struct{}{}
	}
	return float64(len(seen)) / float64(len(distinct)), nil
}
