package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gages "gagetrack/internal/gages/domain"
)

const defaultGagesTable = "gages"

// GageRepository is a Postgres implementation for gages.
type GageRepository struct {
	db    *sql.DB
	table string
}

// NewGageRepository constructs a repository.
func NewGageRepository(db *sql.DB, opts ...GageOption) *GageRepository {
	repo := &GageRepository{db: db, table: defaultGagesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// GageOption configures the repository.
type GageOption func(*GageRepository)

// WithGagesTable overrides the default table name.
func WithGagesTable(table string) GageOption {
	return func(repo *GageRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const gageColumns = "id, department_id, company_id, name, serial_number, frequency_days, next_due_date, created_at, updated_at"

func scanGage(row interface{ Scan(...any) error }) (*gages.Gage, error) {
	var gage gages.Gage
	var nextDue sql.NullTime
	if err := row.Scan(
		&gage.ID,
		&gage.DepartmentID,
		&gage.CompanyID,
		&gage.Name,
		&gage.SerialNumber,
		&gage.FrequencyDays,
		&nextDue,
		&gage.CreatedAt,
		&gage.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if nextDue.Valid {
		t := nextDue.Time.UTC()
		gage.NextDueDate = &t
	}
	gage.CreatedAt = gage.CreatedAt.UTC()
	gage.UpdatedAt = gage.UpdatedAt.UTC()
	return &gage, nil
}

// Get loads a gage by id.
func (r *GageRepository) Get(ctx context.Context, id string) (*gages.Gage, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("gage repo: nil db")
	}
	if id == "" {
		return nil, errors.New("gage repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, gageColumns, r.table)

	gage, err := scanGage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return gage, nil
}

// ListByCompany loads all gages for a company ordered by name.
func (r *GageRepository) ListByCompany(ctx context.Context, companyID string) ([]gages.Gage, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("gage repo: nil db")
	}
	if companyID == "" {
		return nil, errors.New("gage repo: empty company id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE company_id = $1
ORDER BY name ASC, id ASC`, gageColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gages.Gage
	for rows.Next() {
		gage, err := scanGage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *gage)
	}
	return out, rows.Err()
}

// ListDueBy loads gages across companies due on or before the cutoff,
// overdue included. Gages never calibrated (NULL due date) count as due.
func (r *GageRepository) ListDueBy(ctx context.Context, cutoff time.Time) ([]gages.Gage, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("gage repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE next_due_date IS NULL OR next_due_date <= $1
ORDER BY next_due_date ASC NULLS FIRST, id ASC`, gageColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gages.Gage
	for rows.Next() {
		gage, err := scanGage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *gage)
	}
	return out, rows.Err()
}

// CountByCompany counts a company's gages.
func (r *GageRepository) CountByCompany(ctx context.Context, companyID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("gage repo: nil db")
	}
	if companyID == "" {
		return 0, errors.New("gage repo: empty company id")
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE company_id = $1", r.table)
	var count int
	if err := r.db.QueryRowContext(ctx, query, companyID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Save upserts a gage.
func (r *GageRepository) Save(ctx context.Context, gage *gages.Gage) error {
	if r == nil || r.db == nil {
		return errors.New("gage repo: nil db")
	}
	if gage == nil {
		return errors.New("gage repo: nil gage")
	}
	if err := gage.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	department_id,
	company_id,
	name,
	serial_number,
	frequency_days,
	next_due_date
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (id)
DO UPDATE SET
	department_id = EXCLUDED.department_id,
	name = EXCLUDED.name,
	serial_number = EXCLUDED.serial_number,
	frequency_days = EXCLUDED.frequency_days,
	next_due_date = EXCLUDED.next_due_date,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		gage.ID,
		gage.DepartmentID,
		gage.CompanyID,
		gage.Name,
		gage.SerialNumber,
		gage.FrequencyDays,
		nullableTime(gage.NextDueDate),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return gages.ErrDuplicateSerial
		}
		return err
	}
	now := time.Now().UTC()
	if gage.CreatedAt.IsZero() {
		gage.CreatedAt = now
	}
	gage.UpdatedAt = now
	return nil
}

// Delete removes a gage.
func (r *GageRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("gage repo: nil db")
	}
	if id == "" {
		return errors.New("gage repo: empty id")
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
		return gages.ErrNotFound
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// isUniqueViolation matches the Postgres unique_violation SQLSTATE without
// depending on driver error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key")
}
