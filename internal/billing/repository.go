package billing

import (
	"context"
	"database/sql"
	"errors"
)

// Repository reads subscriptions from postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a billing repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// GetByCompany returns the subscription for a company, nil when absent.
func (r *Repository) GetByCompany(ctx context.Context, companyID string) (*Subscription, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("billing repo: nil db")
	}
	if companyID == "" {
		return nil, errors.New("billing repo: empty company id")
	}

	row := r.db.QueryRowContext(ctx, `
SELECT id, company_id, status, gage_limit, period_end, created_at, updated_at
FROM subscriptions
WHERE company_id = $1`, companyID)

	var sub Subscription
	var periodEnd sql.NullTime
	err := row.Scan(&sub.ID, &sub.CompanyID, &sub.Status, &sub.GageLimit, &periodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if periodEnd.Valid {
		t := periodEnd.Time.UTC()
		sub.PeriodEnd = &t
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}
