package billing

import (
	"context"
	"errors"
)

// SubscriptionStore loads subscription state per company.
type SubscriptionStore interface {
	GetByCompany(ctx context.Context, companyID string) (*Subscription, error)
}

// GageCounter counts a company's gages.
type GageCounter interface {
	CountByCompany(ctx context.Context, companyID string) (int, error)
}

// Entitlements gates operations on subscription state.
type Entitlements struct {
	subs  SubscriptionStore
	gages GageCounter
}

// NewEntitlements constructs the entitlement gate.
func NewEntitlements(subs SubscriptionStore, gages GageCounter) (*Entitlements, error) {
	if subs == nil {
		return nil, errors.New("billing: nil subscription store")
	}
	if gages == nil {
		return nil, errors.New("billing: nil gage counter")
	}
	return &Entitlements{subs: subs, gages: gages}, nil
}

// CanCreateGage returns nil when the company may register another gage.
// A company with no subscription row is treated as inactive.
func (e *Entitlements) CanCreateGage(ctx context.Context, companyID string) error {
	if e == nil {
		return errors.New("billing: nil entitlements")
	}
	sub, err := e.subs.GetByCompany(ctx, companyID)
	if err != nil {
		return err
	}
	if !sub.Usable() {
		return ErrSubscriptionInactive
	}
	count, err := e.gages.CountByCompany(ctx, companyID)
	if err != nil {
		return err
	}
	if !sub.AllowsGageCount(count) {
		return ErrGageQuotaExceeded
	}
	return nil
}
