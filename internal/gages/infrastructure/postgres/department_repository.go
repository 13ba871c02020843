package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gages "gagetrack/internal/gages/domain"
)

const defaultDepartmentsTable = "departments"

// DepartmentRepository is a Postgres implementation for departments.
type DepartmentRepository struct {
	db    *sql.DB
	table string
}

// NewDepartmentRepository constructs a repository.
func NewDepartmentRepository(db *sql.DB, opts ...DepartmentOption) *DepartmentRepository {
	repo := &DepartmentRepository{db: db, table: defaultDepartmentsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// DepartmentOption configures the repository.
type DepartmentOption func(*DepartmentRepository)

// WithDepartmentsTable overrides the default table name.
func WithDepartmentsTable(table string) DepartmentOption {
	return func(repo *DepartmentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a department by id.
func (r *DepartmentRepository) Get(ctx context.Context, id string) (*gages.Department, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("department repo: nil db")
	}
	if id == "" {
		return nil, errors.New("department repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, company_id, name, manager_email, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var dept gages.Department
	var managerEmail sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&dept.ID,
		&dept.CompanyID,
		&dept.Name,
		&managerEmail,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dept.ManagerEmail = managerEmail.String
	dept.CreatedAt = dept.CreatedAt.UTC()
	dept.UpdatedAt = dept.UpdatedAt.UTC()
	return &dept, nil
}

// ListByCompany loads all departments for a company ordered by name.
func (r *DepartmentRepository) ListByCompany(ctx context.Context, companyID string) ([]gages.Department, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("department repo: nil db")
	}
	if companyID == "" {
		return nil, errors.New("department repo: empty company id")
	}

	query := fmt.Sprintf(`
SELECT id, company_id, name, manager_email, created_at, updated_at
FROM %s
WHERE company_id = $1
ORDER BY name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gages.Department
	for rows.Next() {
		var dept gages.Department
		var managerEmail sql.NullString
		if err := rows.Scan(&dept.ID, &dept.CompanyID, &dept.Name, &managerEmail, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return nil, err
		}
		dept.ManagerEmail = managerEmail.String
		dept.CreatedAt = dept.CreatedAt.UTC()
		dept.UpdatedAt = dept.UpdatedAt.UTC()
		out = append(out, dept)
	}
	return out, rows.Err()
}

// Save upserts a department.
func (r *DepartmentRepository) Save(ctx context.Context, dept *gages.Department) error {
	if r == nil || r.db == nil {
		return errors.New("department repo: nil db")
	}
	if dept == nil {
		return errors.New("department repo: nil department")
	}
	if err := dept.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	company_id,
	name,
	manager_email
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	manager_email = EXCLUDED.manager_email,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query, dept.ID, dept.CompanyID, dept.Name, dept.ManagerEmail)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if dept.CreatedAt.IsZero() {
		dept.CreatedAt = now
	}
	dept.UpdatedAt = now
	return nil
}
