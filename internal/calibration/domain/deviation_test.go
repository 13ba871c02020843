package calibration

import "testing"

func TestShouldTrigger(t *testing.T) {
	policy := DefaultDeviationPolicy()

	cases := []struct {
		name       string
		measured   float64
		calibrated float64
		want       bool
	}{
		{name: "small value above absolute threshold", measured: 0.5, calibrated: 0.52, want: true},
		{name: "small value within absolute threshold", measured: 0.5, calibrated: 0.505, want: false},
		// 0.01 - 0 is exactly the threshold bit-for-bit; pairs like
		// (0.5, 0.51) are not, their float64 difference lands above it.
		{name: "small value exactly at absolute threshold", measured: 0, calibrated: 0.01, want: false},
		{name: "large value within percent threshold", measured: 100, calibrated: 100.5, want: false},
		{name: "large value exactly at percent threshold", measured: 100, calibrated: 101, want: false},
		{name: "large value above percent threshold", measured: 100, calibrated: 101.5, want: true},
		{name: "negative measured uses magnitude", measured: -100, calibrated: -102, want: true},
		{name: "zero measured small regime", measured: 0, calibrated: 0.02, want: true},
		{name: "no deviation", measured: 50, calibrated: 50, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.ShouldTrigger(tc.measured, tc.calibrated); got != tc.want {
				t.Fatalf("ShouldTrigger(%v, %v) = %v, want %v", tc.measured, tc.calibrated, got, tc.want)
			}
		})
	}
}

func TestShouldTriggerCustomThresholds(t *testing.T) {
	policy := DeviationPolicy{
		AbsoluteThreshold: 0.1,
		PercentThreshold:  5,
		SmallValueCutoff:  10,
	}
	if policy.ShouldTrigger(0.5, 0.55) {
		t.Fatal("0.05 deviation must not trigger with 0.1 absolute threshold")
	}
	if !policy.ShouldTrigger(5, 5.2) {
		t.Fatal("cutoff of 10 keeps |measured|=5 in the absolute regime")
	}
	if policy.ShouldTrigger(100, 104) {
		t.Fatal("4% must not trigger with 5% threshold")
	}
}

func TestDetailedDeviation(t *testing.T) {
	clean := []MeasurementGroup{
		{Measurements: []Measurement{measured(VerdictPass, VerdictPass)}},
		{Measurements: []Measurement{measured(VerdictPass, VerdictUnmeasured)}},
	}
	if DetailedDeviation(clean) {
		t.Fatal("no failing measurement, must not trigger")
	}

	failing := append(clean, MeasurementGroup{
		Measurements: []Measurement{measured(VerdictPass, VerdictFail)},
	})
	if !DetailedDeviation(failing) {
		t.Fatal("failing as-left side in any group must trigger")
	}
}
