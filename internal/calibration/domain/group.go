package calibration

import "time"

// GroupStatus is the rolled-up state of a measurement group.
type GroupStatus string

const (
	GroupStatusNoData     GroupStatus = "no_data"
	GroupStatusFail       GroupStatus = "fail"
	GroupStatusIncomplete GroupStatus = "incomplete"
	GroupStatusPass       GroupStatus = "pass"
)

// DisplayFlags control how a group renders on certificates and reports.
// They carry no evaluation semantics.
type DisplayFlags struct {
	ShowSequence    bool `json:"show_sequence"`
	ShowDescription bool `json:"show_description"`
	AutoFillAfter   bool `json:"auto_fill_after"`
	ShowUncertainty bool `json:"show_uncertainty"`
	ShowStandards   bool `json:"show_standards"`
}

// MeasurementGroup is a named set of measurement points sharing one
// tolerance spec within a detailed calibration record.
type MeasurementGroup struct {
	ID                  string        `json:"id"`
	CalibrationRecordID string        `json:"calibration_record_id"`
	GroupNumber         string        `json:"group_number"`
	GroupName           string        `json:"group_name"`
	Tolerance           ToleranceSpec `json:"tolerance"`
	Units               string        `json:"units,omitempty"`
	Notes               string        `json:"notes,omitempty"`
	Display             DisplayFlags  `json:"display"`
	Measurements        []Measurement `json:"measurements,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// AggregateStatus rolls measurement verdicts up into one group status.
// Failure beats incomplete: a group with one failing point and one
// not-yet-measured point is fail.
func AggregateStatus(measurements []Measurement) GroupStatus {
	if len(measurements) == 0 {
		return GroupStatusNoData
	}
	hasIncomplete := false
	for _, m := range measurements {
		if m.AsFound.Verdict == VerdictFail || m.AsLeft.Verdict == VerdictFail {
			return GroupStatusFail
		}
		if m.AsFound.Verdict != VerdictPass || m.AsLeft.Verdict != VerdictPass {
			hasIncomplete = true
		}
	}
	if hasIncomplete {
		return GroupStatusIncomplete
	}
	return GroupStatusPass
}

// Status returns the group's rolled-up status.
func (g MeasurementGroup) Status() GroupStatus {
	return AggregateStatus(g.Measurements)
}
