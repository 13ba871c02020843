package application

import (
	"context"
	"errors"
	"testing"
	"time"

	calibration "gagetrack/internal/calibration/domain"
	gages "gagetrack/internal/gages/domain"
)

type stubRecordStore struct {
	byID       map[string]*calibration.Record
	recomputed []string
}

func newStubRecordStore(list ...*calibration.Record) *stubRecordStore {
	s := &stubRecordStore{byID: map[string]*calibration.Record{}}
	for _, rec := range list {
		s.byID[rec.ID] = rec
	}
	return s
}

func (s *stubRecordStore) Get(ctx context.Context, id string) (*calibration.Record, error) {
	return s.byID[id], nil
}

func (s *stubRecordStore) ListByGage(ctx context.Context, gageID string) ([]calibration.Record, error) {
	var out []calibration.Record
	for _, rec := range s.byID {
		if rec.GageID == gageID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *stubRecordStore) Save(ctx context.Context, rec *calibration.Record) error {
	s.byID[rec.ID] = rec
	return nil
}

func (s *stubRecordStore) Delete(ctx context.Context, id string) error {
	if s.byID[id] == nil {
		return calibration.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *stubRecordStore) RecomputeGageDueDate(ctx context.Context, gageID string, now time.Time) error {
	s.recomputed = append(s.recomputed, gageID)
	return nil
}

type stubGroupStore struct {
	byID map[string]*calibration.MeasurementGroup
}

func newStubGroupStore(list ...*calibration.MeasurementGroup) *stubGroupStore {
	s := &stubGroupStore{byID: map[string]*calibration.MeasurementGroup{}}
	for _, g := range list {
		s.byID[g.ID] = g
	}
	return s
}

func (s *stubGroupStore) GetGroup(ctx context.Context, id string) (*calibration.MeasurementGroup, error) {
	return s.byID[id], nil
}

func (s *stubGroupStore) ListGroupsByRecord(ctx context.Context, recordID string) ([]calibration.MeasurementGroup, error) {
	var out []calibration.MeasurementGroup
	for _, g := range s.byID {
		if g.CalibrationRecordID == recordID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *stubGroupStore) SaveGroup(ctx context.Context, group *calibration.MeasurementGroup) error {
	s.byID[group.ID] = group
	return nil
}

func (s *stubGroupStore) DeleteGroup(ctx context.Context, id string) error {
	if s.byID[id] == nil {
		return calibration.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

type stubCalGageStore struct {
	byID map[string]*gages.Gage
}

func (s *stubCalGageStore) Get(ctx context.Context, id string) (*gages.Gage, error) {
	return s.byID[id], nil
}

type stubOpener struct {
	open  map[string]string
	calls int
}

func (s *stubOpener) OpenOrGet(ctx context.Context, gageID, recordID string) (string, bool, error) {
	s.calls++
	if s.open == nil {
		s.open = map[string]string{}
	}
	if id, ok := s.open[recordID]; ok {
		return id, true, nil
	}
	id := "tol-" + recordID
	s.open[recordID] = id
	return id, false, nil
}

type defaultPolicies struct{}

func (defaultPolicies) PolicyFor(gageID string) calibration.DeviationPolicy {
	return calibration.DefaultDeviationPolicy()
}

type calFixedClock struct {
	now time.Time
}

func (c calFixedClock) Now() time.Time { return c.now }

func newCalService(t *testing.T, records *stubRecordStore, groups *stubGroupStore, opener *stubOpener) *Service {
	t.Helper()
	gageStore := &stubCalGageStore{byID: map[string]*gages.Gage{
		"gage-1": {ID: "gage-1", CompanyID: "company-a", DepartmentID: "dept-1", Name: "Caliper", SerialNumber: "SN-1", FrequencyDays: 90},
		"gage-2": {ID: "gage-2", CompanyID: "company-b", DepartmentID: "dept-2", Name: "Gauge", SerialNumber: "SN-2", FrequencyDays: 30},
	}}
	svc, err := NewService(
		records,
		groups,
		gageStore,
		opener,
		defaultPolicies{},
		WithClock(calFixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateRecord_SimpleTriggersDeviation(t *testing.T) {
	records := newStubRecordStore()
	opener := &stubOpener{}
	svc := newCalService(t, records, newStubGroupStore(), opener)

	// 0.5 -> 0.52 is a 0.02 shift in the small-value regime (> 0.01).
	rec, info, err := svc.CreateRecord(context.Background(), "company-a", CreateRecordInput{
		GageID:          "gage-1",
		Mode:            "simple",
		MeasuredValue:   0.5,
		CalibratedValue: 0.52,
		PerformedBy:     "user-1",
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if !info.Triggered || info.Existing {
		t.Fatalf("expected fresh trigger, got %+v", info)
	}
	if info.ToleranceRecordID == "" {
		t.Fatal("expected tolerance record id")
	}
	if len(records.recomputed) != 1 || records.recomputed[0] != rec.GageID {
		t.Fatalf("expected one due-date recompute for %s, got %v", rec.GageID, records.recomputed)
	}
}

func TestCreateRecord_SimpleBelowThreshold(t *testing.T) {
	records := newStubRecordStore()
	opener := &stubOpener{}
	svc := newCalService(t, records, newStubGroupStore(), opener)

	// 100 -> 100.5 is 0.5% (< 1%) in the percentage regime.
	_, info, err := svc.CreateRecord(context.Background(), "company-a", CreateRecordInput{
		GageID:          "gage-1",
		Mode:            "simple",
		MeasuredValue:   100,
		CalibratedValue: 100.5,
		PerformedBy:     "user-1",
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if info.Triggered {
		t.Fatalf("expected no trigger, got %+v", info)
	}
	if opener.calls != 0 {
		t.Fatalf("opener must not be called, got %d calls", opener.calls)
	}
}

func TestCreateRecord_InvalidMode(t *testing.T) {
	svc := newCalService(t, newStubRecordStore(), newStubGroupStore(), &stubOpener{})

	_, _, err := svc.CreateRecord(context.Background(), "company-a", CreateRecordInput{
		GageID: "gage-1",
		Mode:   "wizard",
	})
	if !errors.Is(err, calibration.ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}

func TestCreateRecord_ForeignGageNotFound(t *testing.T) {
	svc := newCalService(t, newStubRecordStore(), newStubGroupStore(), &stubOpener{})

	_, _, err := svc.CreateRecord(context.Background(), "company-a", CreateRecordInput{
		GageID: "gage-2",
		Mode:   "simple",
	})
	if !errors.Is(err, calibration.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign gage, got %v", err)
	}
}

func TestCreateGroup_DerivesFixedLimits(t *testing.T) {
	records := newStubRecordStore(&calibration.Record{
		ID: "rec-1", GageID: "gage-1", Mode: calibration.WorkflowDetailed,
	})
	svc := newCalService(t, records, newStubGroupStore(), &stubOpener{})

	group, err := svc.CreateGroup(context.Background(), "company-a", CreateGroupInput{
		CalibrationRecordID: "rec-1",
		GroupNumber:         "1",
		GroupName:           "Length",
		Tolerance:           calibration.PercentTolerance(10),
		Nominals:            []float64{10, 20},
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if len(group.Measurements) != 2 {
		t.Fatalf("expected 2 measurements, got %d", len(group.Measurements))
	}
	first := group.Measurements[0]
	if first.Sequence != 1 || first.LowerLimit != 9 || first.UpperLimit != 11 {
		t.Fatalf("unexpected first point: %+v", first)
	}
	if first.AsFound.Verdict != calibration.VerdictUnmeasured {
		t.Fatalf("new point must be unmeasured, got %s", first.AsFound.Verdict)
	}
}

func TestCreateGroup_SimpleRecordRejected(t *testing.T) {
	records := newStubRecordStore(&calibration.Record{
		ID: "rec-1", GageID: "gage-1", Mode: calibration.WorkflowSimple,
	})
	svc := newCalService(t, records, newStubGroupStore(), &stubOpener{})

	_, err := svc.CreateGroup(context.Background(), "company-a", CreateGroupInput{
		CalibrationRecordID: "rec-1",
		Tolerance:           calibration.PercentTolerance(10),
		Nominals:            []float64{10},
	})
	if err == nil {
		t.Fatal("expected error for simple record")
	}
}

func TestRecordMeasurements_FailureOpensToleranceRecord(t *testing.T) {
	records := newStubRecordStore(&calibration.Record{
		ID: "rec-1", GageID: "gage-1", Mode: calibration.WorkflowDetailed,
	})
	groups := newStubGroupStore(&calibration.MeasurementGroup{
		ID:                  "grp-1",
		CalibrationRecordID: "rec-1",
		Tolerance:           calibration.PercentTolerance(5),
		Measurements: []calibration.Measurement{
			{ID: "m-1", GroupID: "grp-1", Sequence: 1, Nominal: 10, LowerLimit: 9.5, UpperLimit: 10.5,
				AsFound: calibration.Reading{Verdict: calibration.VerdictUnmeasured},
				AsLeft:  calibration.Reading{Verdict: calibration.VerdictUnmeasured}},
		},
	})
	opener := &stubOpener{}
	svc := newCalService(t, records, groups, opener)

	value := 10.6
	result, err := svc.RecordMeasurements(context.Background(), "company-a", "grp-1", []MeasurementValue{
		{MeasurementID: "m-1", AsFound: &value},
	})
	if err != nil {
		t.Fatalf("RecordMeasurements: %v", err)
	}
	if result.Status != calibration.GroupStatusFail {
		t.Fatalf("expected fail status, got %s", result.Status)
	}
	if !result.Deviation.Triggered || result.Deviation.Existing {
		t.Fatalf("expected fresh trigger, got %+v", result.Deviation)
	}

	// Recording again reuses the open record instead of opening a second one.
	result, err = svc.RecordMeasurements(context.Background(), "company-a", "grp-1", []MeasurementValue{
		{MeasurementID: "m-1", AsFound: &value},
	})
	if err != nil {
		t.Fatalf("RecordMeasurements again: %v", err)
	}
	if !result.Deviation.Triggered || !result.Deviation.Existing {
		t.Fatalf("expected existing trigger, got %+v", result.Deviation)
	}
}

func TestRecordMeasurements_PassingGroupNoTrigger(t *testing.T) {
	records := newStubRecordStore(&calibration.Record{
		ID: "rec-1", GageID: "gage-1", Mode: calibration.WorkflowDetailed,
	})
	groups := newStubGroupStore(&calibration.MeasurementGroup{
		ID:                  "grp-1",
		CalibrationRecordID: "rec-1",
		Tolerance:           calibration.PercentTolerance(5),
		Measurements: []calibration.Measurement{
			{ID: "m-1", GroupID: "grp-1", Sequence: 1, Nominal: 10, LowerLimit: 9.5, UpperLimit: 10.5,
				AsFound: calibration.Reading{Verdict: calibration.VerdictUnmeasured},
				AsLeft:  calibration.Reading{Verdict: calibration.VerdictUnmeasured}},
		},
	})
	opener := &stubOpener{}
	svc := newCalService(t, records, groups, opener)

	found, left := 10.2, 10.0
	result, err := svc.RecordMeasurements(context.Background(), "company-a", "grp-1", []MeasurementValue{
		{MeasurementID: "m-1", AsFound: &found, AsLeft: &left},
	})
	if err != nil {
		t.Fatalf("RecordMeasurements: %v", err)
	}
	if result.Status != calibration.GroupStatusPass {
		t.Fatalf("expected pass status, got %s", result.Status)
	}
	if result.Deviation.Triggered {
		t.Fatalf("expected no trigger, got %+v", result.Deviation)
	}
	if opener.calls != 0 {
		t.Fatalf("opener must not be called, got %d calls", opener.calls)
	}
}

func TestDeleteRecord_RecomputesDueDate(t *testing.T) {
	records := newStubRecordStore(&calibration.Record{
		ID: "rec-1", GageID: "gage-1", Mode: calibration.WorkflowSimple,
	})
	svc := newCalService(t, records, newStubGroupStore(), &stubOpener{})

	if err := svc.DeleteRecord(context.Background(), "company-a", "rec-1"); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if len(records.recomputed) != 1 || records.recomputed[0] != "gage-1" {
		t.Fatalf("expected due-date recompute, got %v", records.recomputed)
	}
}
