package calibration

import (
	"math"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBandPercent(t *testing.T) {
	cases := []struct {
		name        string
		plusPercent float64
		nominal     float64
		wantLower   float64
		wantUpper   float64
	}{
		{name: "five percent of ten", plusPercent: 5, nominal: 10, wantLower: 9.5, wantUpper: 10.5},
		{name: "one percent of hundred", plusPercent: 1, nominal: 100, wantLower: 99, wantUpper: 101},
		{name: "zero percent", plusPercent: 0, nominal: 25, wantLower: 25, wantUpper: 25},
		{name: "negative nominal", plusPercent: 10, nominal: -50, wantLower: -45, wantUpper: -55},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lower, upper := PercentTolerance(tc.plusPercent).Band(tc.nominal)
			if !almostEqual(lower, tc.wantLower) || !almostEqual(upper, tc.wantUpper) {
				t.Fatalf("band = [%v, %v], want [%v, %v]", lower, upper, tc.wantLower, tc.wantUpper)
			}
		})
	}
}

func TestBandPercentSymmetry(t *testing.T) {
	spec := PercentTolerance(5)
	for _, nominal := range []float64{0.5, 1, 10, 250, 10000} {
		lower, upper := spec.Band(nominal)
		width := upper - lower
		want := 2 * nominal * 5 / 100
		if !almostEqual(width, want) {
			t.Fatalf("nominal %v: width = %v, want %v", nominal, width, want)
		}
	}
}

func TestBandPlusMinus(t *testing.T) {
	lower, upper := PlusMinusTolerance(0.5, 0.2).Band(10)
	if !almostEqual(upper-10, 0.5) {
		t.Fatalf("upper offset = %v, want 0.5", upper-10)
	}
	if !almostEqual(10-lower, 0.2) {
		t.Fatalf("lower offset = %v, want 0.2", 10-lower)
	}
}

func TestBandLimits(t *testing.T) {
	cases := []struct {
		name      string
		min, max  *float64
		nominal   float64
		wantLower float64
		wantUpper float64
	}{
		{name: "both bounds set", min: floatPtr(9), max: floatPtr(12), nominal: 10, wantLower: 9, wantUpper: 12},
		{name: "bounds ignore nominal", min: floatPtr(0), max: floatPtr(1), nominal: 500, wantLower: 0, wantUpper: 1},
		{name: "missing max collapses to nominal", min: floatPtr(9), max: nil, nominal: 10, wantLower: 9, wantUpper: 10},
		{name: "missing min collapses to nominal", min: nil, max: floatPtr(12), nominal: 10, wantLower: 10, wantUpper: 12},
		{name: "no bounds collapses fully", min: nil, max: nil, nominal: 10, wantLower: 10, wantUpper: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lower, upper := LimitTolerance(tc.min, tc.max).Band(tc.nominal)
			if !almostEqual(lower, tc.wantLower) || !almostEqual(upper, tc.wantUpper) {
				t.Fatalf("band = [%v, %v], want [%v, %v]", lower, upper, tc.wantLower, tc.wantUpper)
			}
		})
	}
}

func TestBandUnknownTypeCollapses(t *testing.T) {
	lower, upper := (ToleranceSpec{}).Band(42)
	if lower != 42 || upper != 42 {
		t.Fatalf("band = [%v, %v], want zero-width at nominal", lower, upper)
	}
}

func TestValidToleranceType(t *testing.T) {
	for _, valid := range []string{"tolerance_percent", "tolerance_plus_minus", "limits"} {
		if !ValidToleranceType(valid) {
			t.Fatalf("expected %q to be valid", valid)
		}
	}
	if ValidToleranceType("percent") || ValidToleranceType("") {
		t.Fatal("expected unknown types to be invalid")
	}
}
