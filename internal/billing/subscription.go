package billing

import (
	"errors"
	"time"
)

// Subscription status values.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

var (
	// ErrSubscriptionInactive indicates the company subscription cannot be used.
	ErrSubscriptionInactive = errors.New("billing: subscription inactive")
	// ErrGageQuotaExceeded indicates the company is at its gage limit.
	ErrGageQuotaExceeded = errors.New("billing: gage quota exceeded")
)

// Subscription is the billing state for a company. Rows are written by an
// external billing processor; this service only reads them.
type Subscription struct {
	ID        string
	CompanyID string
	Status    string
	GageLimit int
	PeriodEnd *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usable reports whether the subscription permits normal use.
func (s *Subscription) Usable() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// AllowsGageCount reports whether count gages fit the limit. Zero means
// unlimited.
func (s *Subscription) AllowsGageCount(count int) bool {
	if s == nil {
		return false
	}
	if s.GageLimit <= 0 {
		return true
	}
	return count < s.GageLimit
}
