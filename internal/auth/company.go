package auth

import (
	"context"
	"database/sql"
	"errors"

	gagesrepo "gagetrack/internal/gages/infrastructure/postgres"
)

var (
	// ErrCompanyMismatch indicates resource belongs to a different company.
	ErrCompanyMismatch = errors.New("company mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// GageCompanyChecker validates gage company ownership.
type GageCompanyChecker interface {
	EnsureGageCompany(ctx context.Context, companyID, gageID string) error
}

// GageChecker checks gage ownership through its department's company.
type GageChecker struct {
	repo *gagesrepo.GageRepository
}

// NewGageChecker constructs a GageChecker.
func NewGageChecker(db *sql.DB) *GageChecker {
	if db == nil {
		return nil
	}
	return &GageChecker{repo: gagesrepo.NewGageRepository(db)}
}

// EnsureGageCompany verifies the gage belongs to the company.
func (c *GageChecker) EnsureGageCompany(ctx context.Context, companyID, gageID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if companyID == "" || gageID == "" {
		return nil
	}
	gage, err := c.repo.Get(ctx, gageID)
	if err != nil {
		return err
	}
	if gage == nil {
		return ErrNotFound
	}
	if gage.CompanyID != companyID {
		return ErrCompanyMismatch
	}
	return nil
}
