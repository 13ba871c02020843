package gages

import (
	"errors"
	"time"
)

// Department groups gages within a company and owns the reminder contact.
type Department struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Name         string    `json:"name"`
	ManagerEmail string    `json:"manager_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks department invariants.
func (d Department) Validate() error {
	if d.ID == "" {
		return errors.New("department: empty id")
	}
	if d.CompanyID == "" {
		return errors.New("department: empty company id")
	}
	if d.Name == "" {
		return errors.New("department: empty name")
	}
	return nil
}

// Gage is a physical measuring instrument tracked for periodic calibration.
// NextDueDate is derived state: most recent calibration plus FrequencyDays,
// or "now" if never calibrated. It is recomputed after every mutation of the
// gage's calibration history.
type Gage struct {
	ID            string     `json:"id"`
	DepartmentID  string     `json:"department_id"`
	CompanyID     string     `json:"company_id"`
	Name          string     `json:"name"`
	SerialNumber  string     `json:"serial_number"`
	FrequencyDays int        `json:"frequency_days"`
	NextDueDate   *time.Time `json:"next_due_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Validate checks gage invariants.
func (g Gage) Validate() error {
	if g.ID == "" {
		return errors.New("gage: empty id")
	}
	if g.DepartmentID == "" {
		return errors.New("gage: empty department id")
	}
	if g.Name == "" {
		return errors.New("gage: empty name")
	}
	if g.SerialNumber == "" {
		return errors.New("gage: empty serial number")
	}
	if g.FrequencyDays <= 0 {
		return errors.New("gage: frequency days must be positive")
	}
	return nil
}
