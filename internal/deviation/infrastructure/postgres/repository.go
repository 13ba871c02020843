package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	deviation "gagetrack/internal/deviation/domain"
)

const (
	defaultToleranceTable = "gage_tolerance_records"
	defaultGagesTable     = "gages"
)

// Repository is a Postgres implementation for tolerance records. Dedup of
// open records relies on a partial unique index:
//
//	CREATE UNIQUE INDEX ... ON gage_tolerance_records (calibration_record_id)
//	WHERE status <> 'resolved'
type Repository struct {
	db         *sql.DB
	table      string
	gagesTable string
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, table: defaultToleranceTable, gagesTable: defaultGagesTable}
}

const toleranceColumns = `id, gage_id, calibration_record_id, opened_by, status,
	risk_assessment, corrective_actions, identified_at, resolved_at, resolution_notes,
	created_at, updated_at`

func scanTolerance(row interface{ Scan(...any) error }) (*deviation.ToleranceRecord, error) {
	var rec deviation.ToleranceRecord
	var resolvedAt sql.NullTime
	var openedBy, risk, actions, notes sql.NullString
	if err := row.Scan(
		&rec.ID,
		&rec.GageID,
		&rec.CalibrationRecordID,
		&openedBy,
		&rec.Status,
		&risk,
		&actions,
		&rec.IdentifiedAt,
		&resolvedAt,
		&notes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.OpenedBy = openedBy.String
	rec.RiskAssessment = risk.String
	rec.CorrectiveActions = actions.String
	rec.ResolutionNotes = notes.String
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		rec.ResolvedAt = &t
	}
	rec.IdentifiedAt = rec.IdentifiedAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// Get loads a tolerance record by id.
func (r *Repository) Get(ctx context.Context, id string) (*deviation.ToleranceRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tolerance repo: nil db")
	}
	if id == "" {
		return nil, errors.New("tolerance repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, toleranceColumns, r.table)

	rec, err := scanTolerance(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByCompany loads a company's tolerance records newest first, optionally
// filtered by status.
func (r *Repository) ListByCompany(ctx context.Context, companyID, status string) ([]deviation.ToleranceRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tolerance repo: nil db")
	}
	if companyID == "" {
		return nil, errors.New("tolerance repo: empty company id")
	}

	query := fmt.Sprintf(`
SELECT t.id, t.gage_id, t.calibration_record_id, t.opened_by, t.status,
	t.risk_assessment, t.corrective_actions, t.identified_at, t.resolved_at, t.resolution_notes,
	t.created_at, t.updated_at
FROM %s t
JOIN %s g ON g.id = t.gage_id
WHERE g.company_id = $1 AND ($2 = '' OR t.status = $2)
ORDER BY t.identified_at DESC, t.id ASC`, r.table, r.gagesTable)

	rows, err := r.db.QueryContext(ctx, query, companyID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []deviation.ToleranceRecord
	for rows.Next() {
		rec, err := scanTolerance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// OpenOrGet inserts an open tolerance record for a calibration record, or
// returns the already-open one. The partial unique index makes the insert
// race-safe: concurrent openers collapse onto a single row.
func (r *Repository) OpenOrGet(ctx context.Context, rec *deviation.ToleranceRecord) (*deviation.ToleranceRecord, bool, error) {
	if r == nil || r.db == nil {
		return nil, false, errors.New("tolerance repo: nil db")
	}
	if rec == nil || rec.ID == "" || rec.GageID == "" || rec.CalibrationRecordID == "" {
		return nil, false, errors.New("tolerance repo: missing ids")
	}

	insertQuery := fmt.Sprintf(`
INSERT INTO %s (
	id, gage_id, calibration_record_id, opened_by, status,
	risk_assessment, corrective_actions, identified_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (calibration_record_id) WHERE status <> 'resolved'
DO NOTHING`, r.table)

	res, err := r.db.ExecContext(
		ctx,
		insertQuery,
		rec.ID,
		rec.GageID,
		rec.CalibrationRecordID,
		rec.OpenedBy,
		rec.Status,
		rec.RiskAssessment,
		rec.CorrectiveActions,
		rec.IdentifiedAt.UTC(),
	)
	if err != nil {
		return nil, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if affected > 0 {
		now := time.Now().UTC()
		rec.CreatedAt = now
		rec.UpdatedAt = now
		return rec, false, nil
	}

	existingQuery := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE calibration_record_id = $1 AND status <> 'resolved'
LIMIT 1`, toleranceColumns, r.table)

	existing, err := scanTolerance(r.db.QueryRowContext(ctx, existingQuery, rec.CalibrationRecordID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, deviation.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

// Save updates a tolerance record's mutable fields.
func (r *Repository) Save(ctx context.Context, rec *deviation.ToleranceRecord) error {
	if r == nil || r.db == nil {
		return errors.New("tolerance repo: nil db")
	}
	if rec == nil || rec.ID == "" {
		return errors.New("tolerance repo: missing id")
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	status = $2,
	risk_assessment = $3,
	corrective_actions = $4,
	resolved_at = $5,
	resolution_notes = $6,
	updated_at = NOW()
WHERE id = $1`, r.table)

	var resolvedAt any
	if rec.ResolvedAt != nil {
		resolvedAt = rec.ResolvedAt.UTC()
	}
	res, err := r.db.ExecContext(ctx, query, rec.ID, rec.Status, rec.RiskAssessment, rec.CorrectiveActions, resolvedAt, rec.ResolutionNotes)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return deviation.ErrNotFound
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a tolerance record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("tolerance repo: nil db")
	}
	if id == "" {
		return errors.New("tolerance repo: empty id")
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return deviation.ErrNotFound
	}
	return nil
}
