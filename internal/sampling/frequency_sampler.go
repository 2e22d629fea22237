// Package sampling provides boundary samplers used to bucket a score
// column before partial-AUC evaluation.
package sampling

import (
	"math"
	"sort"
)

// FrequencySampler draws equal-frequency boundaries from a score
// column. The data may first be restricted to a (from, to] slice; when
// the column holds log-space values the boundaries are exponentiated
// back, and Laplace smoothing shifts them by -1.
type FrequencySampler struct {
	SampleSize       int
	SliceFrom        *float64
	SliceTo          *float64
	LogScale         bool
	LaplaceSmoothing bool

	boundaries []float64
}

// NewFrequencySampler builds a sampler over the given data and computes
// its boundaries immediately.
func NewFrequencySampler(data []float64, sampleSize int, sliceFrom, sliceTo *float64, logScale, laplaceSmoothing bool) *FrequencySampler {
	s := &FrequencySampler{
		SampleSize:       sampleSize,
		SliceFrom:        sliceFrom,
		SliceTo:          sliceTo,
		LogScale:         logScale,
		LaplaceSmoothing: laplaceSmoothing,
	}
	s.boundaries = s.sample(data)
	return s
}

// Boundaries returns the sampled bucket boundaries, ascending and
// deduplicated.
func (s *FrequencySampler) Boundaries() []float64 {
	out := make([]float64, len(s.boundaries))
	copy(out, s.boundaries)
	return out
}

func (s *FrequencySampler) sample(data []float64) []float64 {
	filtered := make([]float64, 0, len(data))
	for _, v := range data {
		if s.SliceFrom != nil && v <= *s.SliceFrom {
			continue
		}
		if s.SliceTo != nil && v > *s.SliceTo {
			continue
		}
		filtered = append(filtered, v)
	}
	if len(filtered) == 0 {
		return nil
	}
	sort.Float64s(filtered)

	// Interior percentiles of an equally spaced grid with sampleSize+2
	// points: the outer two are the data extremes and are discarded.
	boundaries := make([]float64, 0, s.SampleSize)
	for i := 1; i <= s.SampleSize; i++ {
		p := float64(i) / float64(s.SampleSize+1) * 100
		boundaries = append(boundaries, percentile(filtered, p))
	}

	for i, b := range boundaries {
		if s.LogScale {
			b = math.Exp(b)
		}
		if s.LaplaceSmoothing {
			b = b - 1
		}
		boundaries[i] = b
	}

	return dedupSorted(boundaries)
}

// percentile computes the linearly interpolated percentile of sorted data.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func dedupSorted(values []float64) []float64 {
	sort.Float64s(values)
	out := values[:0]
	for i, v := range values {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
