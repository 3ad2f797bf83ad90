package domain

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid input")

	// ErrUnsupported is returned by a geolocation provider that cannot locate this caller.
	ErrUnsupported = errors.New("geolocation unsupported")

	// ErrExhausted means every search tier failed, including the default city.
	ErrExhausted = errors.New("all search tiers failed")
)
