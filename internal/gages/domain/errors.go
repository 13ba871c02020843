package gages

import "errors"

var (
	// ErrNotFound indicates a gage or department does not exist.
	ErrNotFound = errors.New("gages: not found")
	// ErrAlreadyCheckedOut indicates a checkout was attempted while the
	// gage is already out.
	ErrAlreadyCheckedOut = errors.New("gages: already checked out")
	// ErrNotCheckedOut indicates a check-in was attempted with no active
	// checkout.
	ErrNotCheckedOut = errors.New("gages: not checked out")
	// ErrDuplicateSerial indicates the serial number is already in use
	// within the company.
	ErrDuplicateSerial = errors.New("gages: duplicate serial number")
)
