package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gagetrack/internal/billing"
	calapp "gagetrack/internal/calibration/application"
	calrepo "gagetrack/internal/calibration/infrastructure/postgres"
	devapp "gagetrack/internal/deviation/application"
	deviation "gagetrack/internal/deviation/domain"
	devrepo "gagetrack/internal/deviation/infrastructure/postgres"
	gagesapp "gagetrack/internal/gages/application"
	gagesrepo "gagetrack/internal/gages/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestCalibration_ClosedLoopTriggerDedupAndResolve(t *testing.T) {
	dsn := os.Getenv("GAGETRACK_TEST_DSN")
	if dsn == "" {
		t.Skip("GAGETRACK_TEST_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	ctx := context.Background()
	companyID := "it-company"

	_, _ = db.ExecContext(ctx, "DELETE FROM audit_logs WHERE company_id = $1", companyID)
	_, _ = db.ExecContext(ctx, "DELETE FROM gage_tolerance_records WHERE gage_id IN (SELECT id FROM gages WHERE company_id = $1)", companyID)
	_, _ = db.ExecContext(ctx, "DELETE FROM calibration_records WHERE gage_id IN (SELECT id FROM gages WHERE company_id = $1)", companyID)
	_, _ = db.ExecContext(ctx, "DELETE FROM gages WHERE company_id = $1", companyID)
	_, _ = db.ExecContext(ctx, "DELETE FROM subscriptions WHERE company_id = $1", companyID)
	_, _ = db.ExecContext(ctx, "DELETE FROM departments WHERE company_id = $1", companyID)
	_, _ = db.ExecContext(ctx, "DELETE FROM companies WHERE id = $1", companyID)

	if _, err := db.ExecContext(ctx, "INSERT INTO companies (id, name) VALUES ($1, $2)", companyID, "Integration Co"); err != nil {
		t.Fatalf("seed company: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO subscriptions (id, company_id, status, gage_limit) VALUES ($1, $2, 'active', 0)",
		"it-sub", companyID); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	gageRepo := gagesrepo.NewGageRepository(db)
	deptRepo := gagesrepo.NewDepartmentRepository(db)
	checkoutRepo := gagesrepo.NewCheckoutRepository(db)
	recordRepo := calrepo.NewRecordRepository(db)
	measurementRepo := calrepo.NewMeasurementRepository(db)
	toleranceRepo := devrepo.NewRepository(db)

	entitlements, err := billing.NewEntitlements(billing.NewRepository(db), gageRepo)
	if err != nil {
		t.Fatalf("entitlements: %v", err)
	}
	gageService, err := gagesapp.NewService(gageRepo, deptRepo, checkoutRepo, recordRepo, entitlements)
	if err != nil {
		t.Fatalf("gage service: %v", err)
	}
	policies, err := devapp.LoadConfig()
	if err != nil {
		t.Fatalf("deviation config: %v", err)
	}
	deviationService, err := devapp.NewService(toleranceRepo, gageRepo)
	if err != nil {
		t.Fatalf("deviation service: %v", err)
	}
	calService, err := calapp.NewService(recordRepo, measurementRepo, gageRepo, deviationService, policies)
	if err != nil {
		t.Fatalf("calibration service: %v", err)
	}

	dept, err := gageService.CreateDepartment(ctx, companyID, "Quality Lab", "qa-manager@example.com")
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	gage, err := gageService.CreateGage(ctx, companyID, gagesapp.CreateGageInput{
		DepartmentID:  dept.ID,
		Name:          "Digital Caliper",
		SerialNumber:  "IT-CAL-001",
		FrequencyDays: 90,
	})
	if err != nil {
		t.Fatalf("create gage: %v", err)
	}
	if gage.NextDueDate == nil {
		t.Fatal("new gage has no due date; expected due immediately")
	}

	calibratedAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rec, info, err := calService.CreateRecord(ctx, companyID, calapp.CreateRecordInput{
		GageID:          gage.ID,
		Mode:            "simple",
		MeasuredValue:   10.0,
		CalibratedValue: 10.5,
		CalibratedAt:    &calibratedAt,
		PerformedBy:     "tech-it",
	})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if info == nil || !info.Triggered {
		t.Fatalf("5%% deviation did not trigger: %+v", info)
	}
	if info.Existing {
		t.Fatal("first trigger reported an existing tolerance record")
	}

	reloaded, err := gageRepo.Get(ctx, gage.ID)
	if err != nil {
		t.Fatalf("reload gage: %v", err)
	}
	wantDue := calibratedAt.AddDate(0, 0, 90)
	if reloaded.NextDueDate == nil || !reloaded.NextDueDate.Equal(wantDue) {
		t.Fatalf("next due date = %v, want %v", reloaded.NextDueDate, wantDue)
	}

	// Re-running the trigger for the same record must reuse the open record.
	_, info2, err := calService.UpdateRecord(ctx, companyID, rec.ID, calapp.UpdateRecordInput{})
	if err != nil {
		t.Fatalf("update record: %v", err)
	}
	if info2 == nil || !info2.Existing {
		t.Fatalf("re-trigger did not dedupe: %+v", info2)
	}
	if info2.ToleranceRecordID != info.ToleranceRecordID {
		t.Fatalf("dedupe returned %s, want %s", info2.ToleranceRecordID, info.ToleranceRecordID)
	}

	resolved, err := deviationService.Resolve(ctx, companyID, info.ToleranceRecordID, "gage sent out for adjustment")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != deviation.StatusResolved || resolved.ResolvedAt == nil {
		t.Fatalf("resolve did not stamp: %+v", resolved)
	}
	if _, err := deviationService.Resolve(ctx, companyID, info.ToleranceRecordID, "again"); !errors.Is(err, deviation.ErrAlreadyResolved) {
		t.Fatalf("second resolve error = %v, want ErrAlreadyResolved", err)
	}

	// With the record resolved, a fresh trigger may open a new one.
	_, info3, err := calService.UpdateRecord(ctx, companyID, rec.ID, calapp.UpdateRecordInput{})
	if err != nil {
		t.Fatalf("re-trigger after resolve: %v", err)
	}
	if info3 == nil || !info3.Triggered || info3.Existing {
		t.Fatalf("post-resolve trigger = %+v, want fresh record", info3)
	}
	if info3.ToleranceRecordID == info.ToleranceRecordID {
		t.Fatal("post-resolve trigger reused the resolved record")
	}
}

func applySchema(db *sql.DB) error {
	content, err := os.ReadFile(filepath.Join(projectRoot(), "schema.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(content))
	return err
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}
