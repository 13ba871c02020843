package application

import (
	"context"
	"errors"
	"testing"
	"time"

	deviation "gagetrack/internal/deviation/domain"
	gages "gagetrack/internal/gages/domain"
)

type stubToleranceStore struct {
	records map[string]*deviation.ToleranceRecord
	open    map[string]*deviation.ToleranceRecord
	saved   int
	deleted []string
}

func newStubToleranceStore() *stubToleranceStore {
	return &stubToleranceStore{
		records: make(map[string]*deviation.ToleranceRecord),
		open:    make(map[string]*deviation.ToleranceRecord),
	}
}

func (s *stubToleranceStore) Get(_ context.Context, id string) (*deviation.ToleranceRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (s *stubToleranceStore) ListByCompany(_ context.Context, _, status string) ([]deviation.ToleranceRecord, error) {
	var out []deviation.ToleranceRecord
	for _, rec := range s.records {
		if status == "" || string(rec.Status) == status {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *stubToleranceStore) OpenOrGet(_ context.Context, rec *deviation.ToleranceRecord) (*deviation.ToleranceRecord, bool, error) {
	if existing, ok := s.open[rec.CalibrationRecordID]; ok {
		return existing, true, nil
	}
	stored := *rec
	s.records[rec.ID] = &stored
	s.open[rec.CalibrationRecordID] = &stored
	return &stored, false, nil
}

func (s *stubToleranceStore) Save(_ context.Context, rec *deviation.ToleranceRecord) error {
	if _, ok := s.records[rec.ID]; !ok {
		return deviation.ErrNotFound
	}
	clone := *rec
	s.records[rec.ID] = &clone
	s.saved++
	return nil
}

func (s *stubToleranceStore) Delete(_ context.Context, id string) error {
	if _, ok := s.records[id]; !ok {
		return deviation.ErrNotFound
	}
	delete(s.records, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubGageStore struct{}

func (stubGageStore) Get(_ context.Context, id string) (*gages.Gage, error) {
	switch id {
	case "gage-1":
		return &gages.Gage{ID: "gage-1", CompanyID: "company-a"}, nil
	case "gage-2":
		return &gages.Gage{ID: "gage-2", CompanyID: "company-b"}, nil
	default:
		return nil, nil
	}
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, store *stubToleranceStore) *Service {
	t.Helper()
	clock := fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	service, err := NewService(store, stubGageStore{}, WithClock(clock))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func strPtr(v string) *string { return &v }

func TestOpenOrGetReusesOpenRecord(t *testing.T) {
	store := newStubToleranceStore()
	service := newTestService(t, store)

	firstID, existing, err := service.OpenOrGet(context.Background(), "gage-1", "rec-1")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if existing {
		t.Fatal("first open reported existing")
	}
	rec, _ := store.Get(context.Background(), firstID)
	if rec.Status != deviation.StatusOutOfTolerance {
		t.Fatalf("status = %s, want out_of_tolerance", rec.Status)
	}

	secondID, existing, err := service.OpenOrGet(context.Background(), "gage-1", "rec-1")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if !existing {
		t.Fatal("second open did not report existing")
	}
	if secondID != firstID {
		t.Fatalf("second open returned %s, want %s", secondID, firstID)
	}
}

func TestUpdateRejectsDirectResolve(t *testing.T) {
	store := newStubToleranceStore()
	service := newTestService(t, store)
	id, _, err := service.OpenOrGet(context.Background(), "gage-1", "rec-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := service.Update(context.Background(), "company-a", id, UpdateInput{Status: strPtr("resolved")}); err == nil {
		t.Fatal("direct status=resolved was accepted")
	}

	updated, err := service.Update(context.Background(), "company-a", id, UpdateInput{
		Status:         strPtr("under_review"),
		RiskAssessment: strPtr("parts from last batch re-inspected"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != deviation.StatusUnderReview {
		t.Fatalf("status = %s, want under_review", updated.Status)
	}
	if updated.RiskAssessment != "parts from last batch re-inspected" {
		t.Fatalf("risk assessment = %q", updated.RiskAssessment)
	}
}

func TestResolveStampsAndFreezes(t *testing.T) {
	store := newStubToleranceStore()
	service := newTestService(t, store)
	id, _, err := service.OpenOrGet(context.Background(), "gage-1", "rec-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	resolved, err := service.Resolve(context.Background(), "company-a", id, "gage adjusted and re-verified")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != deviation.StatusResolved {
		t.Fatalf("status = %s, want resolved", resolved.Status)
	}
	if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("resolved_at = %v", resolved.ResolvedAt)
	}
	if resolved.ResolutionNotes != "gage adjusted and re-verified" {
		t.Fatalf("notes = %q", resolved.ResolutionNotes)
	}

	if _, err := service.Resolve(context.Background(), "company-a", id, "again"); !errors.Is(err, deviation.ErrAlreadyResolved) {
		t.Fatalf("second resolve error = %v, want ErrAlreadyResolved", err)
	}
	if _, err := service.Update(context.Background(), "company-a", id, UpdateInput{RiskAssessment: strPtr("late edit")}); !errors.Is(err, deviation.ErrAlreadyResolved) {
		t.Fatalf("update after resolve error = %v, want ErrAlreadyResolved", err)
	}
}

func TestOwnershipScopesCompany(t *testing.T) {
	store := newStubToleranceStore()
	service := newTestService(t, store)
	id, _, err := service.OpenOrGet(context.Background(), "gage-2", "rec-9")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := service.Get(context.Background(), "company-a", id); !errors.Is(err, deviation.ErrNotFound) {
		t.Fatalf("foreign get error = %v, want ErrNotFound", err)
	}
	if err := service.Delete(context.Background(), "company-a", id); !errors.Is(err, deviation.ErrNotFound) {
		t.Fatalf("foreign delete error = %v, want ErrNotFound", err)
	}
	if _, err := service.Get(context.Background(), "company-b", id); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}

func TestListValidatesStatus(t *testing.T) {
	store := newStubToleranceStore()
	service := newTestService(t, store)
	if _, err := service.List(context.Background(), "company-a", "bogus"); err == nil {
		t.Fatal("unknown status filter was accepted")
	}
	if _, err := service.List(context.Background(), "company-a", "under_review"); err != nil {
		t.Fatalf("valid status filter: %v", err)
	}
}
