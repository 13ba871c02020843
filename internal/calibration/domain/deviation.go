package calibration

import "math"

// DeviationPolicy decides when a calibration deviation is significant
// enough to require a documented risk analysis. Thresholds are tunable per
// deployment and per gage; the zero value is not usable, start from
// DefaultDeviationPolicy.
type DeviationPolicy struct {
	// AbsoluteThreshold applies below SmallValueCutoff, where a percentage
	// comparison would blow up near zero.
	AbsoluteThreshold float64 `yaml:"absolute_threshold"`
	// PercentThreshold applies at or above SmallValueCutoff.
	PercentThreshold float64 `yaml:"percent_threshold"`
	// SmallValueCutoff is the |measured| magnitude at which the policy
	// switches from the absolute to the percentage regime.
	SmallValueCutoff float64 `yaml:"small_value_cutoff"`
}

// DefaultDeviationPolicy mirrors the historical defaults: 0.01 units
// absolute, 1% relative, crossing over at |measured| = 1.0.
func DefaultDeviationPolicy() DeviationPolicy {
	return DeviationPolicy{
		AbsoluteThreshold: 0.01,
		PercentThreshold:  1.0,
		SmallValueCutoff:  1.0,
	}
}

// ShouldTrigger evaluates a simple-workflow pair.
func (p DeviationPolicy) ShouldTrigger(measuredValue, calibratedValue float64) bool {
	difference := math.Abs(calibratedValue - measuredValue)

	if math.Abs(measuredValue) < p.SmallValueCutoff {
		return difference > p.AbsoluteThreshold
	}

	percentageDifference := 0.0
	if measuredValue != 0 {
		percentageDifference = difference / math.Abs(measuredValue) * 100
	}
	return percentageDifference > p.PercentThreshold
}

// DetailedDeviation reports whether any measurement in any of the record's
// groups failed on either side. This is the detailed-workflow trigger.
func DetailedDeviation(groups []MeasurementGroup) bool {
	for _, group := range groups {
		for _, m := range group.Measurements {
			if m.Failed() {
				return true
			}
		}
	}
	return false
}
