package gages

import "time"

// Checkout records a physical gage leaving and returning to its home
// location. A checkout with no checked-in timestamp is active; a gage has
// at most one active checkout.
type Checkout struct {
	ID           string     `json:"id"`
	GageID       string     `json:"gage_id"`
	UserID       string     `json:"user_id"`
	CheckedOutAt time.Time  `json:"checked_out_at"`
	CheckedInAt  *time.Time `json:"checked_in_at"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Active reports whether the gage is still out under this checkout.
func (c Checkout) Active() bool {
	return c.CheckedInAt == nil
}

// CheckIn stamps the return and appends optional check-in notes below the
// checkout notes.
func (c *Checkout) CheckIn(at time.Time, notes string) {
	at = at.UTC()
	c.CheckedInAt = &at
	if notes == "" {
		return
	}
	if c.Notes != "" {
		c.Notes = c.Notes + "\n\nCheck-in notes: " + notes
		return
	}
	c.Notes = "Check-in notes: " + notes
}
