package calibration

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Verdict is the tri-state outcome of evaluating one side of a measurement.
// A side that has no recorded value yet is Unmeasured, not failed. Unmeasured
// is the zero value, so a Reading that was never evaluated cannot masquerade
// as a pass; on the wire and in the database it reads "unmeasured".
type Verdict string

const (
	VerdictUnmeasured Verdict = ""
	VerdictPass       Verdict = "pass"
	VerdictFail       Verdict = "fail"
)

const verdictUnmeasuredWire = "unmeasured"

// MarshalJSON renders the unmeasured zero value as "unmeasured".
func (v Verdict) MarshalJSON() ([]byte, error) {
	if v == VerdictUnmeasured {
		return json.Marshal(verdictUnmeasuredWire)
	}
	return json.Marshal(string(v))
}

// UnmarshalJSON accepts the wire forms "unmeasured", "pass" and "fail".
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := parseVerdict(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Value stores the unmeasured zero value as "unmeasured".
func (v Verdict) Value() (driver.Value, error) {
	if v == VerdictUnmeasured {
		return verdictUnmeasuredWire, nil
	}
	return string(v), nil
}

// Scan reads a verdict from its stored form.
func (v *Verdict) Scan(src any) error {
	var s string
	switch raw := src.(type) {
	case string:
		s = raw
	case []byte:
		s = string(raw)
	case nil:
		*v = VerdictUnmeasured
		return nil
	default:
		return fmt.Errorf("calibration: cannot scan %T into Verdict", src)
	}
	parsed, err := parseVerdict(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func parseVerdict(s string) (Verdict, error) {
	switch s {
	case verdictUnmeasuredWire, "":
		return VerdictUnmeasured, nil
	case string(VerdictPass):
		return VerdictPass, nil
	case string(VerdictFail):
		return VerdictFail, nil
	default:
		return VerdictUnmeasured, fmt.Errorf("calibration: unknown verdict %q", s)
	}
}

// Reading holds one side (as-found or as-left) of a measurement point.
type Reading struct {
	Value   *float64 `json:"value"`
	Error   *float64 `json:"error"`
	Verdict Verdict  `json:"verdict"`
}

// Measurement is one tolerance-checked point within a measurement group.
// Limits are fixed at creation time from the group's tolerance spec.
type Measurement struct {
	ID            string    `json:"id"`
	GroupID       string    `json:"group_id"`
	Sequence      int       `json:"sequence"`
	Nominal       float64   `json:"nominal"`
	LowerLimit    float64   `json:"lower_limit"`
	UpperLimit    float64   `json:"upper_limit"`
	AsFound       Reading   `json:"as_found"`
	AsLeft        Reading   `json:"as_left"`
	Description   string    `json:"description,omitempty"`
	Uncertainty   *float64  `json:"uncertainty,omitempty"`
	StandardsUsed string    `json:"standards_used,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Evaluate computes the signed error and verdict for a recorded value
// against an inclusive band.
func Evaluate(value, nominal, lower, upper float64) (errorValue float64, verdict Verdict) {
	errorValue = value - nominal
	if value >= lower && value <= upper {
		return errorValue, VerdictPass
	}
	return errorValue, VerdictFail
}

// RecordAsFound records the as-found value and evaluates that side.
// A nil value leaves the side unmeasured. The as-left side is untouched.
func (m *Measurement) RecordAsFound(value *float64) {
	m.AsFound = evaluateSide(value, m.Nominal, m.LowerLimit, m.UpperLimit)
}

// RecordAsLeft records the as-left value and evaluates that side.
// A nil value leaves the side unmeasured. The as-found side is untouched.
func (m *Measurement) RecordAsLeft(value *float64) {
	m.AsLeft = evaluateSide(value, m.Nominal, m.LowerLimit, m.UpperLimit)
}

// InTolerance reports whether both sides were recorded and both passed.
func (m Measurement) InTolerance() bool {
	return m.AsFound.Verdict == VerdictPass && m.AsLeft.Verdict == VerdictPass
}

// Failed reports whether either side was recorded out of tolerance.
func (m Measurement) Failed() bool {
	return m.AsFound.Verdict == VerdictFail || m.AsLeft.Verdict == VerdictFail
}

func evaluateSide(value *float64, nominal, lower, upper float64) Reading {
	if value == nil {
		return Reading{Verdict: VerdictUnmeasured}
	}
	errorValue, verdict := Evaluate(*value, nominal, lower, upper)
	return Reading{Value: value, Error: &errorValue, Verdict: verdict}
}
