package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	calibration "gagetrack/internal/calibration/domain"
)

const (
	defaultRecordsTable = "calibration_records"
	defaultGagesTable   = "gages"
)

// RecordRepository is a Postgres implementation for calibration records.
type RecordRepository struct {
	db         *sql.DB
	table      string
	gagesTable string
}

// NewRecordRepository constructs a repository.
func NewRecordRepository(db *sql.DB, opts ...RecordOption) *RecordRepository {
	repo := &RecordRepository{db: db, table: defaultRecordsTable, gagesTable: defaultGagesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RecordOption configures the repository.
type RecordOption func(*RecordRepository)

// WithRecordsTable overrides the default records table name.
func WithRecordsTable(table string) RecordOption {
	return func(repo *RecordRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const recordColumns = "id, gage_id, mode, measured_value, calibrated_value, calibrated_at, cert_file, performed_by, created_at, updated_at"

func scanRecord(row interface{ Scan(...any) error }) (*calibration.Record, error) {
	var rec calibration.Record
	var certFile sql.NullString
	if err := row.Scan(
		&rec.ID,
		&rec.GageID,
		&rec.Mode,
		&rec.MeasuredValue,
		&rec.CalibratedValue,
		&rec.CalibratedAt,
		&certFile,
		&rec.PerformedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.CertFile = certFile.String
	rec.CalibratedAt = rec.CalibratedAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// Get loads a record by id.
func (r *RecordRepository) Get(ctx context.Context, id string) (*calibration.Record, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	if id == "" {
		return nil, errors.New("record repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, recordColumns, r.table)

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByGage loads a gage's calibration history newest first.
func (r *RecordRepository) ListByGage(ctx context.Context, gageID string) ([]calibration.Record, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	if gageID == "" {
		return nil, errors.New("record repo: empty gage id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE gage_id = $1
ORDER BY calibrated_at DESC, id ASC`, recordColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, gageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calibration.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListByCompany loads calibration records across a company's gages,
// newest first.
func (r *RecordRepository) ListByCompany(ctx context.Context, companyID string) ([]calibration.Record, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	if companyID == "" {
		return nil, errors.New("record repo: empty company id")
	}

	query := fmt.Sprintf(`
SELECT r.id, r.gage_id, r.mode, r.measured_value, r.calibrated_value, r.calibrated_at, r.cert_file, r.performed_by, r.created_at, r.updated_at
FROM %s r
JOIN %s g ON g.id = r.gage_id
WHERE g.company_id = $1
ORDER BY r.calibrated_at DESC, r.id ASC`, r.table, r.gagesTable)

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calibration.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// LastCalibratedAt resolves a gage's most recent calibration timestamp,
// nil when the gage has no history.
func (r *RecordRepository) LastCalibratedAt(ctx context.Context, gageID string) (*time.Time, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("record repo: nil db")
	}
	if gageID == "" {
		return nil, errors.New("record repo: empty gage id")
	}

	query := fmt.Sprintf("SELECT MAX(calibrated_at) FROM %s WHERE gage_id = $1", r.table)
	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, gageID).Scan(&last); err != nil {
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time.UTC()
	return &t, nil
}

// Save upserts a record.
func (r *RecordRepository) Save(ctx context.Context, rec *calibration.Record) error {
	if r == nil || r.db == nil {
		return errors.New("record repo: nil db")
	}
	if rec == nil {
		return errors.New("record repo: nil record")
	}
	if rec.ID == "" || rec.GageID == "" {
		return errors.New("record repo: missing ids")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	gage_id,
	mode,
	measured_value,
	calibrated_value,
	calibrated_at,
	cert_file,
	performed_by
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (id)
DO UPDATE SET
	measured_value = EXCLUDED.measured_value,
	calibrated_value = EXCLUDED.calibrated_value,
	calibrated_at = EXCLUDED.calibrated_at,
	cert_file = EXCLUDED.cert_file,
	performed_by = EXCLUDED.performed_by,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.GageID,
		rec.Mode,
		rec.MeasuredValue,
		rec.CalibratedValue,
		rec.CalibratedAt.UTC(),
		rec.CertFile,
		rec.PerformedBy,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return nil
}

// Delete removes a record.
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("record repo: nil db")
	}
	if id == "" {
		return errors.New("record repo: empty id")
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
		return calibration.ErrNotFound
	}
	return nil
}

// RecomputeGageDueDate refreshes a gage's next due date from its calibration
// history inside one transaction. The gage row is locked so concurrent
// calibration mutations serialize their recomputes.
func (r *RecordRepository) RecomputeGageDueDate(ctx context.Context, gageID string, now time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("record repo: nil db")
	}
	if gageID == "" {
		return errors.New("record repo: empty gage id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	lockQuery := fmt.Sprintf("SELECT frequency_days FROM %s WHERE id = $1 FOR UPDATE", r.gagesTable)
	var frequencyDays int
	if err := tx.QueryRowContext(ctx, lockQuery, gageID).Scan(&frequencyDays); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calibration.ErrNotFound
		}
		return err
	}

	lastQuery := fmt.Sprintf("SELECT MAX(calibrated_at) FROM %s WHERE gage_id = $1", r.table)
	var lastValue sql.NullTime
	if err := tx.QueryRowContext(ctx, lastQuery, gageID).Scan(&lastValue); err != nil {
		return err
	}
	var last *time.Time
	if lastValue.Valid {
		t := lastValue.Time.UTC()
		last = &t
	}

	due := calibration.NextDueDate(last, frequencyDays, now.UTC())
	updateQuery := fmt.Sprintf("UPDATE %s SET next_due_date = $2, updated_at = NOW() WHERE id = $1", r.gagesTable)
	if _, err := tx.ExecContext(ctx, updateQuery, gageID, due); err != nil {
		return err
	}
	return tx.Commit()
}
