package deviation

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a tolerance record.
type Status string

const (
	StatusOutOfTolerance Status = "out_of_tolerance"
	StatusUnderReview    Status = "under_review"
	StatusResolved       Status = "resolved"
)

var (
	// ErrNotFound indicates a tolerance record does not exist.
	ErrNotFound = errors.New("deviation: not found")
	// ErrAlreadyResolved indicates a state change on a resolved record.
	ErrAlreadyResolved = errors.New("deviation: already resolved")
)

// ToleranceRecord documents the risk analysis opened when a calibration
// deviation was judged significant. At most one non-resolved record exists
// per calibration record, enforced by the persistence layer.
type ToleranceRecord struct {
	ID                  string     `json:"id"`
	GageID              string     `json:"gage_id"`
	CalibrationRecordID string     `json:"calibration_record_id"`
	OpenedBy            string     `json:"opened_by"`
	Status              Status     `json:"status"`
	RiskAssessment      string     `json:"risk_assessment"`
	CorrectiveActions   string     `json:"corrective_actions"`
	IdentifiedAt        time.Time  `json:"identified_at"`
	ResolvedAt          *time.Time `json:"resolved_at"`
	ResolutionNotes     string     `json:"resolution_notes,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// ValidStatus reports whether value names a known lifecycle state.
func ValidStatus(value string) bool {
	switch Status(value) {
	case StatusOutOfTolerance, StatusUnderReview, StatusResolved:
		return true
	default:
		return false
	}
}

// Resolve transitions the record to resolved, stamping the resolution
// timestamp and notes. Resolving twice is rejected.
func (r *ToleranceRecord) Resolve(at time.Time, notes string) error {
	if r.Status == StatusResolved {
		return ErrAlreadyResolved
	}
	at = at.UTC()
	r.Status = StatusResolved
	r.ResolvedAt = &at
	r.ResolutionNotes = notes
	r.UpdatedAt = at
	return nil
}
