package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gages "gagetrack/internal/gages/domain"
)

const defaultCheckoutsTable = "gage_checkouts"

// CheckoutRepository is a Postgres implementation for gage checkouts.
type CheckoutRepository struct {
	db    *sql.DB
	table string
}

// NewCheckoutRepository constructs a repository.
func NewCheckoutRepository(db *sql.DB, opts ...CheckoutOption) *CheckoutRepository {
	repo := &CheckoutRepository{db: db, table: defaultCheckoutsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// CheckoutOption configures the repository.
type CheckoutOption func(*CheckoutRepository)

// WithCheckoutsTable overrides the default table name.
func WithCheckoutsTable(table string) CheckoutOption {
	return func(repo *CheckoutRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const checkoutColumns = "id, gage_id, user_id, checked_out_at, checked_in_at, notes, created_at, updated_at"

func scanCheckout(row interface{ Scan(...any) error }) (*gages.Checkout, error) {
	var co gages.Checkout
	var checkedIn sql.NullTime
	var notes sql.NullString
	if err := row.Scan(
		&co.ID,
		&co.GageID,
		&co.UserID,
		&co.CheckedOutAt,
		&checkedIn,
		&notes,
		&co.CreatedAt,
		&co.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if checkedIn.Valid {
		t := checkedIn.Time.UTC()
		co.CheckedInAt = &t
	}
	co.Notes = notes.String
	co.CheckedOutAt = co.CheckedOutAt.UTC()
	co.CreatedAt = co.CreatedAt.UTC()
	co.UpdatedAt = co.UpdatedAt.UTC()
	return &co, nil
}

// GetActive loads the active checkout for a gage, nil when checked in.
func (r *CheckoutRepository) GetActive(ctx context.Context, gageID string) (*gages.Checkout, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("checkout repo: nil db")
	}
	if gageID == "" {
		return nil, errors.New("checkout repo: empty gage id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE gage_id = $1 AND checked_in_at IS NULL
ORDER BY checked_out_at DESC
LIMIT 1`, checkoutColumns, r.table)

	co, err := scanCheckout(r.db.QueryRowContext(ctx, query, gageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return co, nil
}

// ListByGage loads checkout history newest first.
func (r *CheckoutRepository) ListByGage(ctx context.Context, gageID string) ([]gages.Checkout, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("checkout repo: nil db")
	}
	if gageID == "" {
		return nil, errors.New("checkout repo: empty gage id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE gage_id = $1
ORDER BY checked_out_at DESC, id ASC`, checkoutColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, gageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gages.Checkout
	for rows.Next() {
		co, err := scanCheckout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *co)
	}
	return out, rows.Err()
}

// Save upserts a checkout.
func (r *CheckoutRepository) Save(ctx context.Context, co *gages.Checkout) error {
	if r == nil || r.db == nil {
		return errors.New("checkout repo: nil db")
	}
	if co == nil {
		return errors.New("checkout repo: nil checkout")
	}
	if co.ID == "" || co.GageID == "" {
		return errors.New("checkout repo: missing ids")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	gage_id,
	user_id,
	checked_out_at,
	checked_in_at,
	notes
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (id)
DO UPDATE SET
	checked_in_at = EXCLUDED.checked_in_at,
	notes = EXCLUDED.notes,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		co.ID,
		co.GageID,
		co.UserID,
		co.CheckedOutAt.UTC(),
		nullableTime(co.CheckedInAt),
		co.Notes,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if co.CreatedAt.IsZero() {
		co.CreatedAt = now
	}
	co.UpdatedAt = now
	return nil
}
