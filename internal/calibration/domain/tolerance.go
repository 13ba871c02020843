package calibration

// ToleranceType identifies how a measurement group's band is derived.
type ToleranceType string

const (
	TolerancePercent   ToleranceType = "tolerance_percent"
	TolerancePlusMinus ToleranceType = "tolerance_plus_minus"
	ToleranceLimits    ToleranceType = "limits"
)

// ToleranceSpec is a closed union over the three band types. Exactly one
// variant is active; parameters of the other variants are ignored.
type ToleranceSpec struct {
	Type ToleranceType `json:"type"`

	// TolerancePercent: a single symmetric percentage of the nominal.
	PlusPercent float64 `json:"plus_percent,omitempty"`

	// TolerancePlusMinus: independent absolute offsets.
	Plus  float64 `json:"plus,omitempty"`
	Minus float64 `json:"minus,omitempty"`

	// ToleranceLimits: explicit absolute bounds. A nil bound collapses to
	// the nominal, yielding zero tolerance on that side.
	MaskMin *float64 `json:"mask_min,omitempty"`
	MaskMax *float64 `json:"mask_max,omitempty"`
}

// PercentTolerance builds a symmetric percentage spec.
func PercentTolerance(plusPercent float64) ToleranceSpec {
	return ToleranceSpec{Type: TolerancePercent, PlusPercent: plusPercent}
}

// PlusMinusTolerance builds an asymmetric absolute spec.
func PlusMinusTolerance(plus, minus float64) ToleranceSpec {
	return ToleranceSpec{Type: TolerancePlusMinus, Plus: plus, Minus: minus}
}

// LimitTolerance builds an explicit-bounds spec. Either bound may be nil.
func LimitTolerance(maskMin, maskMax *float64) ToleranceSpec {
	return ToleranceSpec{Type: ToleranceLimits, MaskMin: maskMin, MaskMax: maskMax}
}

// Band computes the inclusive [lower, upper] acceptance band for a nominal.
// It is a pure function: nonsensical parameters are not rejected here, and an
// unknown or zero-valued spec collapses to a zero-width band at the nominal.
func (s ToleranceSpec) Band(nominal float64) (lower, upper float64) {
	switch s.Type {
	case TolerancePercent:
		tolerance := nominal * (s.PlusPercent / 100)
		return nominal - tolerance, nominal + tolerance
	case TolerancePlusMinus:
		return nominal - s.Minus, nominal + s.Plus
	case ToleranceLimits:
		lower, upper = nominal, nominal
		if s.MaskMin != nil {
			lower = *s.MaskMin
		}
		if s.MaskMax != nil {
			upper = *s.MaskMax
		}
		return lower, upper
	default:
		return nominal, nominal
	}
}

// ValidToleranceType reports whether value names a known band type.
func ValidToleranceType(value string) bool {
	switch ToleranceType(value) {
	case TolerancePercent, TolerancePlusMinus, ToleranceLimits:
		return true
	default:
		return false
	}
}
