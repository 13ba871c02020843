package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	calibration "gagetrack/internal/calibration/domain"
	gages "gagetrack/internal/gages/domain"
	"gagetrack/internal/observability/metrics"
)

// RecordStore persists calibration records.
type RecordStore interface {
	Get(ctx context.Context, id string) (*calibration.Record, error)
	ListByGage(ctx context.Context, gageID string) ([]calibration.Record, error)
	Save(ctx context.Context, rec *calibration.Record) error
	Delete(ctx context.Context, id string) error
	RecomputeGageDueDate(ctx context.Context, gageID string, now time.Time) error
}

// GroupStore persists measurement groups.
type GroupStore interface {
	GetGroup(ctx context.Context, id string) (*calibration.MeasurementGroup, error)
	ListGroupsByRecord(ctx context.Context, recordID string) ([]calibration.MeasurementGroup, error)
	SaveGroup(ctx context.Context, group *calibration.MeasurementGroup) error
	DeleteGroup(ctx context.Context, id string) error
}

// GageStore resolves gages for ownership checks.
type GageStore interface {
	Get(ctx context.Context, id string) (*gages.Gage, error)
}

// DeviationOpener opens (or finds the open) tolerance record for a
// calibration record.
type DeviationOpener interface {
	OpenOrGet(ctx context.Context, gageID, recordID string) (toleranceRecordID string, existing bool, err error)
}

// PolicyProvider resolves the deviation policy that applies to a gage.
type PolicyProvider interface {
	PolicyFor(gageID string) calibration.DeviationPolicy
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// DeviationInfo reports the trigger outcome of a calibration mutation.
type DeviationInfo struct {
	Triggered         bool   `json:"triggered"`
	ToleranceRecordID string `json:"tolerance_record_id,omitempty"`
	Existing          bool   `json:"existing"`
}

// RecordView is a record enriched with its measurement groups.
type RecordView struct {
	calibration.Record
	Groups []calibration.MeasurementGroup `json:"groups,omitempty"`
}

// Service handles calibration records, measurement groups and the deviation
// trigger policy.
type Service struct {
	records  RecordStore
	groups   GroupStore
	gageRepo GageStore
	opener   DeviationOpener
	policies PolicyProvider
	clock    Clock
}

// ServiceOption customizes the calibration service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a calibration service.
func NewService(records RecordStore, groups GroupStore, gageRepo GageStore, opener DeviationOpener, policies PolicyProvider, opts ...ServiceOption) (*Service, error) {
	if records == nil || groups == nil {
		return nil, errors.New("calibration service: nil repository")
	}
	if gageRepo == nil {
		return nil, errors.New("calibration service: nil gage store")
	}
	if opener == nil {
		return nil, errors.New("calibration service: nil deviation opener")
	}
	if policies == nil {
		return nil, errors.New("calibration service: nil policy provider")
	}
	service := &Service{
		records:  records,
		groups:   groups,
		gageRepo: gageRepo,
		opener:   opener,
		policies: policies,
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateRecordInput carries calibration record creation fields.
type CreateRecordInput struct {
	GageID          string     `json:"gage_id"`
	Mode            string     `json:"mode"`
	MeasuredValue   float64    `json:"measured_value"`
	CalibratedValue float64    `json:"calibrated_value"`
	CalibratedAt    *time.Time `json:"calibrated_at"`
	CertFile        string     `json:"cert_file"`
	PerformedBy     string     `json:"performed_by"`
}

// CreateRecord stores a calibration event, recomputes the gage due date and,
// in simple mode, runs the deviation trigger policy.
func (s *Service) CreateRecord(ctx context.Context, companyID string, input CreateRecordInput) (*calibration.Record, *DeviationInfo, error) {
	if s == nil {
		return nil, nil, errors.New("calibration service: nil service")
	}
	if input.Mode == "" {
		input.Mode = string(calibration.WorkflowSimple)
	}
	if !calibration.ValidWorkflowMode(input.Mode) {
		return nil, nil, calibration.ErrInvalidMode
	}
	if _, err := s.ownedGage(ctx, companyID, input.GageID); err != nil {
		return nil, nil, err
	}

	started := s.clock.Now()
	calibratedAt := started.UTC()
	if input.CalibratedAt != nil {
		calibratedAt = input.CalibratedAt.UTC()
	}

	rec := &calibration.Record{
		ID:           uuid.NewString(),
		GageID:       input.GageID,
		Mode:         calibration.WorkflowMode(input.Mode),
		CalibratedAt: calibratedAt,
		CertFile:     input.CertFile,
		PerformedBy:  input.PerformedBy,
	}
	if rec.Mode == calibration.WorkflowSimple {
		rec.MeasuredValue = input.MeasuredValue
		rec.CalibratedValue = input.CalibratedValue
	}

	if err := s.records.Save(ctx, rec); err != nil {
		metrics.ObserveCalibration("create", metrics.ResultError, s.clock.Now().Sub(started))
		return nil, nil, err
	}
	if err := s.records.RecomputeGageDueDate(ctx, rec.GageID, s.clock.Now()); err != nil {
		return nil, nil, err
	}

	deviation := &DeviationInfo{}
	if rec.Mode == calibration.WorkflowSimple {
		info, err := s.runSimpleTrigger(ctx, rec)
		if err != nil {
			return nil, nil, err
		}
		deviation = info
	}
	metrics.ObserveCalibration("create", metrics.ResultSuccess, s.clock.Now().Sub(started))
	return rec, deviation, nil
}

// UpdateRecordInput carries mutable record fields.
type UpdateRecordInput struct {
	MeasuredValue   *float64   `json:"measured_value"`
	CalibratedValue *float64   `json:"calibrated_value"`
	CalibratedAt    *time.Time `json:"calibrated_at"`
	CertFile        *string    `json:"cert_file"`
	PerformedBy     *string    `json:"performed_by"`
}

// UpdateRecord mutates a calibration record, recomputes the gage due date
// and, in simple mode, re-runs the deviation trigger policy.
func (s *Service) UpdateRecord(ctx context.Context, companyID, recordID string, input UpdateRecordInput) (*calibration.Record, *DeviationInfo, error) {
	rec, err := s.ownedRecord(ctx, companyID, recordID)
	if err != nil {
		return nil, nil, err
	}

	started := s.clock.Now()
	if rec.Mode == calibration.WorkflowSimple {
		if input.MeasuredValue != nil {
			rec.MeasuredValue = *input.MeasuredValue
		}
		if input.CalibratedValue != nil {
			rec.CalibratedValue = *input.CalibratedValue
		}
	}
	if input.CalibratedAt != nil {
		rec.CalibratedAt = input.CalibratedAt.UTC()
	}
	if input.CertFile != nil {
		rec.CertFile = *input.CertFile
	}
	if input.PerformedBy != nil {
		rec.PerformedBy = *input.PerformedBy
	}

	if err := s.records.Save(ctx, rec); err != nil {
		metrics.ObserveCalibration("update", metrics.ResultError, s.clock.Now().Sub(started))
		return nil, nil, err
	}
	if err := s.records.RecomputeGageDueDate(ctx, rec.GageID, s.clock.Now()); err != nil {
		return nil, nil, err
	}

	deviation := &DeviationInfo{}
	if rec.Mode == calibration.WorkflowSimple {
		info, err := s.runSimpleTrigger(ctx, rec)
		if err != nil {
			return nil, nil, err
		}
		deviation = info
	}
	metrics.ObserveCalibration("update", metrics.ResultSuccess, s.clock.Now().Sub(started))
	return rec, deviation, nil
}

// DeleteRecord removes a calibration record and recomputes the gage due
// date from the remaining history.
func (s *Service) DeleteRecord(ctx context.Context, companyID, recordID string) error {
	rec, err := s.ownedRecord(ctx, companyID, recordID)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, rec.ID); err != nil {
		return err
	}
	metrics.ObserveCalibration("delete", metrics.ResultSuccess, 0)
	return s.records.RecomputeGageDueDate(ctx, rec.GageID, s.clock.Now())
}

// GetRecord loads a record; detailed records include their groups.
func (s *Service) GetRecord(ctx context.Context, companyID, recordID string) (*RecordView, error) {
	rec, err := s.ownedRecord(ctx, companyID, recordID)
	if err != nil {
		return nil, err
	}
	view := &RecordView{Record: *rec}
	if rec.Mode == calibration.WorkflowDetailed {
		groups, err := s.groups.ListGroupsByRecord(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		view.Groups = groups
	}
	return view, nil
}

// ListRecords loads a gage's calibration history.
func (s *Service) ListRecords(ctx context.Context, companyID, gageID string) ([]calibration.Record, error) {
	if _, err := s.ownedGage(ctx, companyID, gageID); err != nil {
		return nil, err
	}
	return s.records.ListByGage(ctx, gageID)
}

// CreateGroupInput carries measurement group creation fields. Nominals fix
// the group's measurement points; their acceptance limits are derived once,
// here, and never re-derived.
type CreateGroupInput struct {
	CalibrationRecordID string                    `json:"calibration_record_id"`
	GroupNumber         string                    `json:"group_number"`
	GroupName           string                    `json:"group_name"`
	Tolerance           calibration.ToleranceSpec `json:"tolerance"`
	Units               string                    `json:"units"`
	Notes               string                    `json:"notes"`
	Display             calibration.DisplayFlags  `json:"display"`
	Nominals            []float64                 `json:"nominals"`
}

// CreateGroup adds a measurement group to a detailed record.
func (s *Service) CreateGroup(ctx context.Context, companyID string, input CreateGroupInput) (*calibration.MeasurementGroup, error) {
	rec, err := s.ownedRecord(ctx, companyID, input.CalibrationRecordID)
	if err != nil {
		return nil, err
	}
	if rec.Mode != calibration.WorkflowDetailed {
		return nil, errors.New("calibration service: groups require a detailed record")
	}
	if !calibration.ValidToleranceType(string(input.Tolerance.Type)) {
		return nil, calibration.ErrInvalidToleranceType
	}
	if len(input.Nominals) == 0 {
		return nil, errors.New("calibration service: group needs at least one nominal")
	}

	group := &calibration.MeasurementGroup{
		ID:                  uuid.NewString(),
		CalibrationRecordID: rec.ID,
		GroupNumber:         input.GroupNumber,
		GroupName:           input.GroupName,
		Tolerance:           input.Tolerance,
		Units:               input.Units,
		Notes:               input.Notes,
		Display:             input.Display,
	}
	for i, nominal := range input.Nominals {
		lower, upper := input.Tolerance.Band(nominal)
		group.Measurements = append(group.Measurements, calibration.Measurement{
			ID:         uuid.NewString(),
			GroupID:    group.ID,
			Sequence:   i + 1,
			Nominal:    nominal,
			LowerLimit: lower,
			UpperLimit: upper,
			AsFound:    calibration.Reading{Verdict: calibration.VerdictUnmeasured},
			AsLeft:     calibration.Reading{Verdict: calibration.VerdictUnmeasured},
		})
	}

	if err := s.groups.SaveGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// UpdateGroupInput carries mutable group metadata. Tolerance and nominals
// are fixed at creation.
type UpdateGroupInput struct {
	GroupNumber *string                   `json:"group_number"`
	GroupName   *string                   `json:"group_name"`
	Units       *string                   `json:"units"`
	Notes       *string                   `json:"notes"`
	Display     *calibration.DisplayFlags `json:"display"`
}

// UpdateGroup mutates group metadata.
func (s *Service) UpdateGroup(ctx context.Context, companyID, groupID string, input UpdateGroupInput) (*calibration.MeasurementGroup, error) {
	group, err := s.ownedGroup(ctx, companyID, groupID)
	if err != nil {
		return nil, err
	}

	if input.GroupNumber != nil {
		group.GroupNumber = *input.GroupNumber
	}
	if input.GroupName != nil {
		group.GroupName = *input.GroupName
	}
	if input.Units != nil {
		group.Units = *input.Units
	}
	if input.Notes != nil {
		group.Notes = *input.Notes
	}
	if input.Display != nil {
		group.Display = *input.Display
	}

	if err := s.groups.SaveGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteGroup removes a measurement group.
func (s *Service) DeleteGroup(ctx context.Context, companyID, groupID string) error {
	group, err := s.ownedGroup(ctx, companyID, groupID)
	if err != nil {
		return err
	}
	return s.groups.DeleteGroup(ctx, group.ID)
}

// GetGroup loads a measurement group with its points and rolled-up status.
func (s *Service) GetGroup(ctx context.Context, companyID, groupID string) (*calibration.MeasurementGroup, error) {
	return s.ownedGroup(ctx, companyID, groupID)
}

// MeasurementValue carries recorded readings for one measurement point.
// A nil side leaves that side untouched as unmeasured.
type MeasurementValue struct {
	MeasurementID string   `json:"measurement_id"`
	AsFound       *float64 `json:"as_found"`
	AsLeft        *float64 `json:"as_left"`
}

// GroupResult reports a group's state after recording measurements.
type GroupResult struct {
	Group     *calibration.MeasurementGroup `json:"group"`
	Status    calibration.GroupStatus       `json:"status"`
	Deviation DeviationInfo                 `json:"deviation"`
}

// RecordMeasurements stores readings for a group's points, re-evaluates each
// recorded side against its fixed limits, and runs the detailed trigger
// policy over all groups of the parent record.
func (s *Service) RecordMeasurements(ctx context.Context, companyID, groupID string, values []MeasurementValue) (*GroupResult, error) {
	group, err := s.ownedGroup(ctx, companyID, groupID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*calibration.Measurement, len(group.Measurements))
	for i := range group.Measurements {
		byID[group.Measurements[i].ID] = &group.Measurements[i]
	}
	for _, value := range values {
		m, ok := byID[value.MeasurementID]
		if !ok {
			return nil, errors.New("calibration service: unknown measurement id")
		}
		if value.AsFound != nil {
			m.RecordAsFound(value.AsFound)
		}
		if value.AsLeft != nil {
			m.RecordAsLeft(value.AsLeft)
		}
	}

	if err := s.groups.SaveGroup(ctx, group); err != nil {
		return nil, err
	}

	result := &GroupResult{Group: group, Status: group.Status()}

	rec, err := s.records.Get(ctx, group.CalibrationRecordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, calibration.ErrNotFound
	}
	allGroups, err := s.groups.ListGroupsByRecord(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if calibration.DetailedDeviation(allGroups) {
		id, existing, err := s.opener.OpenOrGet(ctx, rec.GageID, rec.ID)
		if err != nil {
			return nil, err
		}
		result.Deviation = DeviationInfo{Triggered: true, ToleranceRecordID: id, Existing: existing}
		if !existing {
			metrics.IncDeviationTrigger(string(calibration.WorkflowDetailed))
		}
	}
	return result, nil
}

func (s *Service) runSimpleTrigger(ctx context.Context, rec *calibration.Record) (*DeviationInfo, error) {
	policy := s.policies.PolicyFor(rec.GageID)
	if !policy.ShouldTrigger(rec.MeasuredValue, rec.CalibratedValue) {
		return &DeviationInfo{}, nil
	}
	id, existing, err := s.opener.OpenOrGet(ctx, rec.GageID, rec.ID)
	if err != nil {
		return nil, err
	}
	if !existing {
		metrics.IncDeviationTrigger(string(calibration.WorkflowSimple))
	}
	return &DeviationInfo{Triggered: true, ToleranceRecordID: id, Existing: existing}, nil
}

func (s *Service) ownedGage(ctx context.Context, companyID, gageID string) (*gages.Gage, error) {
	if companyID == "" || gageID == "" {
		return nil, errors.New("calibration service: missing ids")
	}
	gage, err := s.gageRepo.Get(ctx, gageID)
	if err != nil {
		return nil, err
	}
	if gage == nil || gage.CompanyID != companyID {
		return nil, calibration.ErrNotFound
	}
	return gage, nil
}

func (s *Service) ownedRecord(ctx context.Context, companyID, recordID string) (*calibration.Record, error) {
	if s == nil {
		return nil, errors.New("calibration service: nil service")
	}
	if companyID == "" || recordID == "" {
		return nil, errors.New("calibration service: missing ids")
	}
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, calibration.ErrNotFound
	}
	if _, err := s.ownedGage(ctx, companyID, rec.GageID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) ownedGroup(ctx context.Context, companyID, groupID string) (*calibration.MeasurementGroup, error) {
	if s == nil {
		return nil, errors.New("calibration service: nil service")
	}
	if companyID == "" || groupID == "" {
		return nil, errors.New("calibration service: missing ids")
	}
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, calibration.ErrNotFound
	}
	if _, err := s.ownedRecord(ctx, companyID, group.CalibrationRecordID); err != nil {
		return nil, err
	}
	return group, nil
}
