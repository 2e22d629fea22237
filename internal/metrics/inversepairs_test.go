package metrics

import (
	"math"
	"testing"
)

func TestInversionCountSortedIsZero(t *testing.T) {
	truth := []float64{5, 4, 3, 2, 1}
	proposed := []float64{50, 40, 30, 20, 10}
	for _, w := range []InversionWeighting{WeightCount, WeightLinear, WeightExponential} {
		if got := InversionCount(truth, proposed, w); got != 0 {
			t.Fatalf("weighting %s: expected 0 on agreeing orders, got %v", w, got)
		}
	}
}

func TestInversionCountReversedIsMax(t *testing.T) {
	truth := []float64{1, 2, 3, 4, 5}
	proposed := []float64{50, 40, 30, 20, 10}
	n := len(truth)
	want := float64(n * (n - 1) / 2)
	if got := InversionCount(truth, proposed, WeightCount); got != want {
		t.Fatalf("expected max count %v on reversed order, got %v", want, got)
	}
}

func TestInversionCountLinearHalves(t *testing.T) {
	truth := []float64{1, 2, 3, 4}
	proposed := []float64{40, 30, 20, 10}
	count := InversionCount(truth, proposed, WeightCount)
	linear := InversionCount(truth, proposed, WeightLinear)
	if math.Abs(linear-count*0.5) > 1e-12 {
		t.Fatalf("linear weighting should halve the count: count=%v linear=%v", count, linear)
	}
}

func TestInversionCountExponentialDecays(t *testing.T) {
	truth := []float64{1, 2, 3, 4, 5, 6}
	proposed := []float64{60, 50, 40, 30, 20, 10}
	count := InversionCount(truth, proposed, WeightCount)
	exp := InversionCount(truth, proposed, WeightExponential)
	if exp <= 0 || exp >= count {
		t.Fatalf("exponential weighting should lie strictly between 0 and the raw count: count=%v exp=%v", count, exp)
	}
}

func TestInversionCountSinglePair(t *testing.T) {
	// One adjacent swap: exactly one inverted pair.
	truth := []float64{2, 3, 1}
	proposed := []float64{30, 20, 10}
	if got := InversionCount(truth, proposed, WeightCount); got != 1 {
		t.Fatalf("expected exactly 1 inversion, got %v", got)
	}
}

func TestInversionCountShortInput(t *testing.T) {
	if got := InversionCount([]float64{1}, []float64{1}, WeightCount); got != 0 {
		t.Fatalf("expected 0 for single element, got %v", got)
	}
}

func TestParseInversionWeighting(t *testing.T) {
	cases := map[string]InversionWeighting{
		"":            WeightCount,
		"count":       WeightCount,
		"linear":      WeightLinear,
		"exponential": WeightExponential,
	}
	for in, want := range cases {
		got, err := ParseInversionWeighting(in)
		if err != nil {
			t.Fatalf("ParseInversionWeighting(%q) failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseInversionWeighting(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseInversionWeighting("quadratic"); err == nil {
		t.Fatalf("expected error for unknown weighting")
	}
}

func TestInversionScoreWeightsColumns(t *testing.T) {
	// The selected column and the score share one ordering, so the
	// inversion count is zero regardless of the weight.
	e := newScoredEngine(t, []float64{3, 2, 1}, nil, nil)

	v, err := InversionScore(e, []float64{2}, WeightCount)
	if err != nil {
		t.Fatalf("InversionScore failed: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected 0 for agreeing orders, got %v", v)
	}
}
