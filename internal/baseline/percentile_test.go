package baseline

import "testing"

func TestPercentile_Empty(t *testing.T) {
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil, 50) = %v, want 0", got)
	}
}

func TestPercentile_Single(t *testing.T) {
	if got := percentile([]float64{42}, 90); got != 42 {
		t.Errorf("percentile([42], 90) = %v, want 42", got)
	}
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	sorted := []float64{100, 105, 110, 115, 120, 125, 130, 135, 140, 145,
		150, 155, 160, 165, 170, 175, 180, 185, 190, 195}

	p25 := percentile(sorted, 25)
	p50 := percentile(sorted, 50)
	p75 := percentile(sorted, 75)

	if p25 <= 0 || p50 <= p25 || p75 <= p50 {
		t.Fatalf("expected p25 < p50 < p75, got %v %v %v", p25, p50, p75)
	}
	// 20 points: p25 sits at index 4.75, p50 at 9.5, p75 at 14.25.
	if p25 != 123.75 || p50 != 147.5 || p75 != 171.25 {
		t.Errorf("percentiles = %v %v %v, want 123.75 147.5 171.25", p25, p50, p75)
	}
}

func TestPercentile_Monotone(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	var prev float64 = -1
	for _, p := range []float64{0, 10, 25, 50, 75, 90, 100} {
		v := percentile(sorted, p)
		if v < prev {
			t.Fatalf("percentile not monotone at p=%v: %v < %v", p, v, prev)
		}
		prev = v
	}
}
