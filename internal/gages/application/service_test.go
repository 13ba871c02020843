package application

import (
	"context"
	"errors"
	"testing"
	"time"

	gages "gagetrack/internal/gages/domain"
)

type stubGageStore struct {
	byID    map[string]*gages.Gage
	saved   []*gages.Gage
	deleted []string
}

func newStubGageStore(list ...*gages.Gage) *stubGageStore {
	s := &stubGageStore{byID: map[string]*gages.Gage{}}
	for _, g := range list {
		s.byID[g.ID] = g
	}
	return s
}

func (s *stubGageStore) Get(ctx context.Context, id string) (*gages.Gage, error) {
	return s.byID[id], nil
}

func (s *stubGageStore) ListByCompany(ctx context.Context, companyID string) ([]gages.Gage, error) {
	var out []gages.Gage
	for _, g := range s.byID {
		if g.CompanyID == companyID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *stubGageStore) Save(ctx context.Context, gage *gages.Gage) error {
	s.byID[gage.ID] = gage
	s.saved = append(s.saved, gage)
	return nil
}

func (s *stubGageStore) Delete(ctx context.Context, id string) error {
	delete(s.byID, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubDeptStore struct {
	byID map[string]*gages.Department
}

func (s *stubDeptStore) Get(ctx context.Context, id string) (*gages.Department, error) {
	return s.byID[id], nil
}

func (s *stubDeptStore) ListByCompany(ctx context.Context, companyID string) ([]gages.Department, error) {
	var out []gages.Department
	for _, d := range s.byID {
		if d.CompanyID == companyID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *stubDeptStore) Save(ctx context.Context, dept *gages.Department) error {
	s.byID[dept.ID] = dept
	return nil
}

type stubCheckoutStore struct {
	active map[string]*gages.Checkout
	saved  []*gages.Checkout
}

func (s *stubCheckoutStore) GetActive(ctx context.Context, gageID string) (*gages.Checkout, error) {
	return s.active[gageID], nil
}

func (s *stubCheckoutStore) ListByGage(ctx context.Context, gageID string) ([]gages.Checkout, error) {
	if co := s.active[gageID]; co != nil {
		return []gages.Checkout{*co}, nil
	}
	return nil, nil
}

func (s *stubCheckoutStore) Save(ctx context.Context, co *gages.Checkout) error {
	if s.active == nil {
		s.active = map[string]*gages.Checkout{}
	}
	if co.CheckedInAt == nil {
		s.active[co.GageID] = co
	} else {
		delete(s.active, co.GageID)
	}
	s.saved = append(s.saved, co)
	return nil
}

type stubCalLookup struct {
	last *time.Time
}

func (s *stubCalLookup) LastCalibratedAt(ctx context.Context, gageID string) (*time.Time, error) {
	return s.last, nil
}

type stubGate struct {
	err error
}

func (s *stubGate) CanCreateGage(ctx context.Context, companyID string) error { return s.err }

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, gageStore *stubGageStore, gateErr error, last *time.Time, now time.Time) *Service {
	t.Helper()
	depts := &stubDeptStore{byID: map[string]*gages.Department{
		"dept-1": {ID: "dept-1", CompanyID: "company-a", Name: "QA Lab"},
	}}
	svc, err := NewService(
		gageStore,
		depts,
		&stubCheckoutStore{},
		&stubCalLookup{last: last},
		&stubGate{err: gateErr},
		WithClock(fixedClock{now: now}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateGage_NeverCalibratedDueNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newStubGageStore()
	svc := newTestService(t, store, nil, nil, now)

	gage, err := svc.CreateGage(context.Background(), "company-a", CreateGageInput{
		DepartmentID:  "dept-1",
		Name:          "Caliper 6in",
		SerialNumber:  "SN-100",
		FrequencyDays: 90,
	})
	if err != nil {
		t.Fatalf("CreateGage: %v", err)
	}
	if gage.NextDueDate == nil || !gage.NextDueDate.Equal(now) {
		t.Fatalf("expected due date %v, got %v", now, gage.NextDueDate)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected gage saved once, got %d", len(store.saved))
	}
}

func TestCreateGage_BillingGateBlocks(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newStubGageStore()
	svc := newTestService(t, store, ErrGageQuotaExceeded, nil, now)

	_, err := svc.CreateGage(context.Background(), "company-a", CreateGageInput{
		DepartmentID:  "dept-1",
		Name:          "Caliper 6in",
		SerialNumber:  "SN-100",
		FrequencyDays: 90,
	})
	if !errors.Is(err, ErrGageQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatal("gage must not be saved when gate fails")
	}
}

func TestUpdateGage_FrequencyChangeRecomputesDueDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	last := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store := newStubGageStore(&gages.Gage{
		ID: "gage-1", DepartmentID: "dept-1", CompanyID: "company-a",
		Name: "Caliper", SerialNumber: "SN-1", FrequencyDays: 90,
	})
	svc := newTestService(t, store, nil, &last, now)

	gage, err := svc.UpdateGage(context.Background(), "company-a", "gage-1", UpdateGageInput{FrequencyDays: 30})
	if err != nil {
		t.Fatalf("UpdateGage: %v", err)
	}
	want := last.AddDate(0, 0, 30)
	if gage.NextDueDate == nil || !gage.NextDueDate.Equal(want) {
		t.Fatalf("expected due %v, got %v", want, gage.NextDueDate)
	}
}

func TestUpdateGage_WrongCompanyNotFound(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newStubGageStore(&gages.Gage{
		ID: "gage-1", DepartmentID: "dept-1", CompanyID: "company-b",
		Name: "Caliper", SerialNumber: "SN-1", FrequencyDays: 90,
	})
	svc := newTestService(t, store, nil, nil, now)

	_, err := svc.UpdateGage(context.Background(), "company-a", "gage-1", UpdateGageInput{Name: "Renamed"})
	if !errors.Is(err, gages.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckout_DoubleCheckoutConflicts(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newStubGageStore(&gages.Gage{
		ID: "gage-1", DepartmentID: "dept-1", CompanyID: "company-a",
		Name: "Caliper", SerialNumber: "SN-1", FrequencyDays: 90,
	})
	svc := newTestService(t, store, nil, nil, now)

	if _, err := svc.Checkout(context.Background(), "company-a", "gage-1", "user-1", "taking to line 3"); err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	_, err := svc.Checkout(context.Background(), "company-a", "gage-1", "user-2", "")
	if !errors.Is(err, gages.ErrAlreadyCheckedOut) {
		t.Fatalf("expected ErrAlreadyCheckedOut, got %v", err)
	}
}

func TestCheckIn_WithoutCheckoutConflicts(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newStubGageStore(&gages.Gage{
		ID: "gage-1", DepartmentID: "dept-1", CompanyID: "company-a",
		Name: "Caliper", SerialNumber: "SN-1", FrequencyDays: 90,
	})
	svc := newTestService(t, store, nil, nil, now)

	_, err := svc.CheckIn(context.Background(), "company-a", "gage-1", "")
	if !errors.Is(err, gages.ErrNotCheckedOut) {
		t.Fatalf("expected ErrNotCheckedOut, got %v", err)
	}
}

func TestCheckIn_AppendsNotes(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newStubGageStore(&gages.Gage{
		ID: "gage-1", DepartmentID: "dept-1", CompanyID: "company-a",
		Name: "Caliper", SerialNumber: "SN-1", FrequencyDays: 90,
	})
	svc := newTestService(t, store, nil, nil, now)

	if _, err := svc.Checkout(context.Background(), "company-a", "gage-1", "user-1", "taking to line 3"); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	co, err := svc.CheckIn(context.Background(), "company-a", "gage-1", "returned clean")
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	want := "taking to line 3\n\nCheck-in notes: returned clean"
	if co.Notes != want {
		t.Fatalf("notes = %q, want %q", co.Notes, want)
	}
	if co.CheckedInAt == nil {
		t.Fatal("expected checked-in timestamp")
	}
}
