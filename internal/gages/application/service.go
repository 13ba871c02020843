package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gagetrack/internal/billing"
	calibration "gagetrack/internal/calibration/domain"
	gages "gagetrack/internal/gages/domain"
	"gagetrack/internal/observability/metrics"
)

// GageStore persists gages.
type GageStore interface {
	Get(ctx context.Context, id string) (*gages.Gage, error)
	ListByCompany(ctx context.Context, companyID string) ([]gages.Gage, error)
	Save(ctx context.Context, gage *gages.Gage) error
	Delete(ctx context.Context, id string) error
}

// DepartmentStore persists departments.
type DepartmentStore interface {
	Get(ctx context.Context, id string) (*gages.Department, error)
	ListByCompany(ctx context.Context, companyID string) ([]gages.Department, error)
	Save(ctx context.Context, dept *gages.Department) error
}

// CheckoutStore persists checkouts.
type CheckoutStore interface {
	GetActive(ctx context.Context, gageID string) (*gages.Checkout, error)
	ListByGage(ctx context.Context, gageID string) ([]gages.Checkout, error)
	Save(ctx context.Context, co *gages.Checkout) error
}

// CalibrationLookup resolves a gage's most recent calibration timestamp.
type CalibrationLookup interface {
	LastCalibratedAt(ctx context.Context, gageID string) (*time.Time, error)
}

// EntitlementGate limits gage creation by subscription state.
type EntitlementGate interface {
	CanCreateGage(ctx context.Context, companyID string) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// GageView is a gage enriched with derived schedule state.
type GageView struct {
	gages.Gage
	DueStatus    calibration.DueStatus `json:"due_status"`
	DaysUntilDue *int                  `json:"days_until_due"`
}

// Service handles gage, department and checkout commands.
type Service struct {
	gageRepo     GageStore
	deptRepo     DepartmentStore
	checkoutRepo CheckoutStore
	calLookup    CalibrationLookup
	entitlements EntitlementGate
	clock        Clock
	dueSoonDays  int
}

// ServiceOption customizes the gage service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDueSoonWindow overrides the due-soon window in days.
func WithDueSoonWindow(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.dueSoonDays = days
		}
	}
}

// NewService constructs a gage service.
func NewService(gageRepo GageStore, deptRepo DepartmentStore, checkoutRepo CheckoutStore, calLookup CalibrationLookup, entitlements EntitlementGate, opts ...ServiceOption) (*Service, error) {
	if gageRepo == nil || deptRepo == nil || checkoutRepo == nil {
		return nil, errors.New("gage service: nil repository")
	}
	if calLookup == nil {
		return nil, errors.New("gage service: nil calibration lookup")
	}
	if entitlements == nil {
		return nil, errors.New("gage service: nil entitlements")
	}
	service := &Service{
		gageRepo:     gageRepo,
		deptRepo:     deptRepo,
		checkoutRepo: checkoutRepo,
		calLookup:    calLookup,
		entitlements: entitlements,
		clock:        systemClock{},
		dueSoonDays:  calibration.DefaultDueSoonWindowDays,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateGageInput carries gage creation fields.
type CreateGageInput struct {
	DepartmentID  string `json:"department_id"`
	Name          string `json:"name"`
	SerialNumber  string `json:"serial_number"`
	FrequencyDays int    `json:"frequency_days"`
}

// CreateGage registers a gage after the billing gate passes. A gage with no
// calibration history is due immediately.
func (s *Service) CreateGage(ctx context.Context, companyID string, input CreateGageInput) (*gages.Gage, error) {
	if s == nil {
		return nil, errors.New("gage service: nil service")
	}
	if companyID == "" {
		return nil, errors.New("gage service: empty company id")
	}
	if err := s.entitlements.CanCreateGage(ctx, companyID); err != nil {
		return nil, err
	}

	dept, err := s.deptRepo.Get(ctx, input.DepartmentID)
	if err != nil {
		return nil, err
	}
	if dept == nil || dept.CompanyID != companyID {
		return nil, errors.New("gage service: unknown department")
	}

	now := s.clock.Now().UTC()
	due := calibration.NextDueDate(nil, input.FrequencyDays, now)
	gage := &gages.Gage{
		ID:            uuid.NewString(),
		DepartmentID:  input.DepartmentID,
		CompanyID:     companyID,
		Name:          input.Name,
		SerialNumber:  input.SerialNumber,
		FrequencyDays: input.FrequencyDays,
		NextDueDate:   &due,
	}
	if err := gage.Validate(); err != nil {
		return nil, err
	}
	if err := s.gageRepo.Save(ctx, gage); err != nil {
		return nil, err
	}
	return gage, nil
}

// UpdateGageInput carries mutable gage fields.
type UpdateGageInput struct {
	DepartmentID  string `json:"department_id"`
	Name          string `json:"name"`
	SerialNumber  string `json:"serial_number"`
	FrequencyDays int    `json:"frequency_days"`
}

// UpdateGage mutates a gage and recomputes its due date from the frequency.
func (s *Service) UpdateGage(ctx context.Context, companyID, gageID string, input UpdateGageInput) (*gages.Gage, error) {
	gage, err := s.ownedGage(ctx, companyID, gageID)
	if err != nil {
		return nil, err
	}

	if input.DepartmentID != "" && input.DepartmentID != gage.DepartmentID {
		dept, err := s.deptRepo.Get(ctx, input.DepartmentID)
		if err != nil {
			return nil, err
		}
		if dept == nil || dept.CompanyID != companyID {
			return nil, errors.New("gage service: unknown department")
		}
		gage.DepartmentID = input.DepartmentID
	}
	if input.Name != "" {
		gage.Name = input.Name
	}
	if input.SerialNumber != "" {
		gage.SerialNumber = input.SerialNumber
	}
	if input.FrequencyDays > 0 && input.FrequencyDays != gage.FrequencyDays {
		gage.FrequencyDays = input.FrequencyDays
		last, err := s.calLookup.LastCalibratedAt(ctx, gage.ID)
		if err != nil {
			return nil, err
		}
		due := calibration.NextDueDate(last, gage.FrequencyDays, s.clock.Now().UTC())
		gage.NextDueDate = &due
	}

	if err := gage.Validate(); err != nil {
		return nil, err
	}
	if err := s.gageRepo.Save(ctx, gage); err != nil {
		return nil, err
	}
	return gage, nil
}

// DeleteGage removes a gage.
func (s *Service) DeleteGage(ctx context.Context, companyID, gageID string) error {
	gage, err := s.ownedGage(ctx, companyID, gageID)
	if err != nil {
		return err
	}
	return s.gageRepo.Delete(ctx, gage.ID)
}

// GetGage loads a gage with derived schedule state.
func (s *Service) GetGage(ctx context.Context, companyID, gageID string) (*GageView, error) {
	gage, err := s.ownedGage(ctx, companyID, gageID)
	if err != nil {
		return nil, err
	}
	view := s.view(*gage)
	return &view, nil
}

// ListGages loads a company's gages with derived schedule state.
func (s *Service) ListGages(ctx context.Context, companyID string) ([]GageView, error) {
	if s == nil {
		return nil, errors.New("gage service: nil service")
	}
	list, err := s.gageRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	views := make([]GageView, 0, len(list))
	for _, gage := range list {
		views = append(views, s.view(gage))
	}
	return views, nil
}

func (s *Service) view(gage gages.Gage) GageView {
	now := s.clock.Now().UTC()
	view := GageView{
		Gage:      gage,
		DueStatus: calibration.ClassifyStatus(gage.NextDueDate, now, s.dueSoonDays),
	}
	if gage.NextDueDate != nil {
		days := calibration.DaysUntilDue(*gage.NextDueDate, now)
		view.DaysUntilDue = &days
	}
	return view
}

// CreateDepartment registers a department.
func (s *Service) CreateDepartment(ctx context.Context, companyID, name, managerEmail string) (*gages.Department, error) {
	if s == nil {
		return nil, errors.New("gage service: nil service")
	}
	dept := &gages.Department{
		ID:           uuid.NewString(),
		CompanyID:    companyID,
		Name:         name,
		ManagerEmail: managerEmail,
	}
	if err := dept.Validate(); err != nil {
		return nil, err
	}
	if err := s.deptRepo.Save(ctx, dept); err != nil {
		return nil, err
	}
	return dept, nil
}

// ListDepartments loads a company's departments.
func (s *Service) ListDepartments(ctx context.Context, companyID string) ([]gages.Department, error) {
	if s == nil {
		return nil, errors.New("gage service: nil service")
	}
	return s.deptRepo.ListByCompany(ctx, companyID)
}

// Checkout marks a gage as taken by a user.
func (s *Service) Checkout(ctx context.Context, companyID, gageID, userID, notes string) (*gages.Checkout, error) {
	gage, err := s.ownedGage(ctx, companyID, gageID)
	if err != nil {
		return nil, err
	}
	active, err := s.checkoutRepo.GetActive(ctx, gage.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, gages.ErrAlreadyCheckedOut
	}

	co := &gages.Checkout{
		ID:           uuid.NewString(),
		GageID:       gage.ID,
		UserID:       userID,
		CheckedOutAt: s.clock.Now().UTC(),
		Notes:        notes,
	}
	if err := s.checkoutRepo.Save(ctx, co); err != nil {
		return nil, err
	}
	metrics.IncCheckoutEvent("checkout")
	return co, nil
}

// CheckIn returns a checked-out gage.
func (s *Service) CheckIn(ctx context.Context, companyID, gageID, notes string) (*gages.Checkout, error) {
	gage, err := s.ownedGage(ctx, companyID, gageID)
	if err != nil {
		return nil, err
	}
	active, err := s.checkoutRepo.GetActive(ctx, gage.ID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, gages.ErrNotCheckedOut
	}

	active.CheckIn(s.clock.Now(), notes)
	if err := s.checkoutRepo.Save(ctx, active); err != nil {
		return nil, err
	}
	metrics.IncCheckoutEvent("checkin")
	return active, nil
}

// ListCheckouts loads a gage's checkout history.
func (s *Service) ListCheckouts(ctx context.Context, companyID, gageID string) ([]gages.Checkout, error) {
	gage, err := s.ownedGage(ctx, companyID, gageID)
	if err != nil {
		return nil, err
	}
	return s.checkoutRepo.ListByGage(ctx, gage.ID)
}

// RecomputeDueDate refreshes a gage's due date from calibration history.
func (s *Service) RecomputeDueDate(ctx context.Context, gageID string) error {
	if s == nil {
		return errors.New("gage service: nil service")
	}
	gage, err := s.gageRepo.Get(ctx, gageID)
	if err != nil {
		return err
	}
	if gage == nil {
		return gages.ErrNotFound
	}
	last, err := s.calLookup.LastCalibratedAt(ctx, gageID)
	if err != nil {
		return err
	}
	due := calibration.NextDueDate(last, gage.FrequencyDays, s.clock.Now().UTC())
	gage.NextDueDate = &due
	return s.gageRepo.Save(ctx, gage)
}

func (s *Service) ownedGage(ctx context.Context, companyID, gageID string) (*gages.Gage, error) {
	if s == nil {
		return nil, errors.New("gage service: nil service")
	}
	if companyID == "" || gageID == "" {
		return nil, errors.New("gage service: missing ids")
	}
	gage, err := s.gageRepo.Get(ctx, gageID)
	if err != nil {
		return nil, err
	}
	if gage == nil || gage.CompanyID != companyID {
		return nil, gages.ErrNotFound
	}
	return gage, nil
}

// Subscription gate errors surfaced by CreateGage.
var (
	ErrSubscriptionInactive = billing.ErrSubscriptionInactive
	ErrGageQuotaExceeded    = billing.ErrGageQuotaExceeded
)
