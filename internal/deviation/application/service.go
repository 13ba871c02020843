package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	deviation "gagetrack/internal/deviation/domain"
	gages "gagetrack/internal/gages/domain"
	"gagetrack/internal/observability/metrics"
)

// ToleranceStore persists tolerance records.
type ToleranceStore interface {
	Get(ctx context.Context, id string) (*deviation.ToleranceRecord, error)
	ListByCompany(ctx context.Context, companyID, status string) ([]deviation.ToleranceRecord, error)
	OpenOrGet(ctx context.Context, rec *deviation.ToleranceRecord) (*deviation.ToleranceRecord, bool, error)
	Save(ctx context.Context, rec *deviation.ToleranceRecord) error
	Delete(ctx context.Context, id string) error
}

// GageStore resolves gages for ownership checks.
type GageStore interface {
	Get(ctx context.Context, id string) (*gages.Gage, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service handles the tolerance record lifecycle.
type Service struct {
	records  ToleranceStore
	gageRepo GageStore
	clock    Clock
}

// ServiceOption customizes the deviation service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a deviation service.
func NewService(records ToleranceStore, gageRepo GageStore, opts ...ServiceOption) (*Service, error) {
	if records == nil {
		return nil, errors.New("deviation service: nil repository")
	}
	if gageRepo == nil {
		return nil, errors.New("deviation service: nil gage store")
	}
	service := &Service{records: records, gageRepo: gageRepo, clock: systemClock{}}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// OpenOrGet opens a tolerance record for a calibration record, or returns
// the already-open one. At most one non-resolved record per calibration
// record exists.
func (s *Service) OpenOrGet(ctx context.Context, gageID, recordID string) (string, bool, error) {
	if s == nil {
		return "", false, errors.New("deviation service: nil service")
	}
	if gageID == "" || recordID == "" {
		return "", false, errors.New("deviation service: missing ids")
	}

	rec := &deviation.ToleranceRecord{
		ID:                  uuid.NewString(),
		GageID:              gageID,
		CalibrationRecordID: recordID,
		Status:              deviation.StatusOutOfTolerance,
		IdentifiedAt:        s.clock.Now().UTC(),
	}
	stored, existing, err := s.records.OpenOrGet(ctx, rec)
	if err != nil {
		return "", false, err
	}
	return stored.ID, existing, nil
}

// Get loads a tolerance record scoped to a company.
func (s *Service) Get(ctx context.Context, companyID, id string) (*deviation.ToleranceRecord, error) {
	return s.owned(ctx, companyID, id)
}

// List loads a company's tolerance records, optionally filtered by status.
func (s *Service) List(ctx context.Context, companyID, status string) ([]deviation.ToleranceRecord, error) {
	if s == nil {
		return nil, errors.New("deviation service: nil service")
	}
	if status != "" && !deviation.ValidStatus(status) {
		return nil, errors.New("deviation service: unknown status")
	}
	return s.records.ListByCompany(ctx, companyID, status)
}

// UpdateInput carries mutable tolerance record fields.
type UpdateInput struct {
	Status            *string `json:"status"`
	RiskAssessment    *string `json:"risk_assessment"`
	CorrectiveActions *string `json:"corrective_actions"`
}

// Update mutates a tolerance record. Transitioning to resolved goes through
// Resolve so the resolution stamp is never skipped.
func (s *Service) Update(ctx context.Context, companyID, id string, input UpdateInput) (*deviation.ToleranceRecord, error) {
	rec, err := s.owned(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == deviation.StatusResolved {
		return nil, deviation.ErrAlreadyResolved
	}

	if input.Status != nil {
		if !deviation.ValidStatus(*input.Status) {
			return nil, errors.New("deviation service: unknown status")
		}
		if deviation.Status(*input.Status) == deviation.StatusResolved {
			return nil, errors.New("deviation service: use resolve to close a record")
		}
		rec.Status = deviation.Status(*input.Status)
	}
	if input.RiskAssessment != nil {
		rec.RiskAssessment = *input.RiskAssessment
	}
	if input.CorrectiveActions != nil {
		rec.CorrectiveActions = *input.CorrectiveActions
	}

	if err := s.records.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Resolve closes a tolerance record with resolution notes.
func (s *Service) Resolve(ctx context.Context, companyID, id, notes string) (*deviation.ToleranceRecord, error) {
	rec, err := s.owned(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := rec.Resolve(s.clock.Now(), notes); err != nil {
		return nil, err
	}
	if err := s.records.Save(ctx, rec); err != nil {
		return nil, err
	}
	metrics.IncDeviationResolved()
	return rec, nil
}

// Delete removes a tolerance record.
func (s *Service) Delete(ctx context.Context, companyID, id string) error {
	rec, err := s.owned(ctx, companyID, id)
	if err != nil {
		return err
	}
	return s.records.Delete(ctx, rec.ID)
}

func (s *Service) owned(ctx context.Context, companyID, id string) (*deviation.ToleranceRecord, error) {
	if s == nil {
		return nil, errors.New("deviation service: nil service")
	}
	if companyID == "" || id == "" {
		return nil, errors.New("deviation service: missing ids")
	}
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, deviation.ErrNotFound
	}
	gage, err := s.gageRepo.Get(ctx, rec.GageID)
	if err != nil {
		return nil, err
	}
	if gage == nil || gage.CompanyID != companyID {
		return nil, deviation.ErrNotFound
	}
	return rec, nil
}
