package deviation

import (
	"errors"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	record := ToleranceRecord{ID: "otr-1", Status: StatusUnderReview}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := record.Resolve(at, "gage recalibrated, affected parts re-inspected"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if record.Status != StatusResolved {
		t.Fatalf("status = %s, want resolved", record.Status)
	}
	if record.ResolvedAt == nil || !record.ResolvedAt.Equal(at) {
		t.Fatalf("resolved at = %v, want %s", record.ResolvedAt, at)
	}
	if record.ResolutionNotes == "" {
		t.Fatal("resolution notes not stored")
	}

	if err := record.Resolve(at.Add(time.Hour), "again"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second resolve: %v, want ErrAlreadyResolved", err)
	}
}

func TestValidStatus(t *testing.T) {
	for _, valid := range []string{"out_of_tolerance", "under_review", "resolved"} {
		if !ValidStatus(valid) {
			t.Fatalf("expected %q to be valid", valid)
		}
	}
	if ValidStatus("open") || ValidStatus("") {
		t.Fatal("expected unknown statuses to be invalid")
	}
}
