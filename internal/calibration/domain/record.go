package calibration

import "time"

// WorkflowMode distinguishes the two shapes a calibration record can take.
type WorkflowMode string

const (
	// WorkflowSimple records a legacy measured/calibrated value pair.
	WorkflowSimple WorkflowMode = "simple"
	// WorkflowDetailed carries measurement groups; the legacy pair holds
	// zero placeholders.
	WorkflowDetailed WorkflowMode = "detailed"
)

// Record is one calibration event for a gage.
type Record struct {
	ID              string       `json:"id"`
	GageID          string       `json:"gage_id"`
	Mode            WorkflowMode `json:"mode"`
	MeasuredValue   float64      `json:"measured_value"`
	CalibratedValue float64      `json:"calibrated_value"`
	CalibratedAt    time.Time    `json:"calibrated_at"`
	CertFile        string       `json:"cert_file,omitempty"`
	PerformedBy     string       `json:"performed_by"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// ValidWorkflowMode reports whether value names a known workflow mode.
func ValidWorkflowMode(value string) bool {
	switch WorkflowMode(value) {
	case WorkflowSimple, WorkflowDetailed:
		return true
	default:
		return false
	}
}
