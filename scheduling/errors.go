// ABOUTME: Error values returned by the scheduling rules
// ABOUTME: Callers match them with errors.Is to build validation outcomes
package scheduling

import "errors"

var (
	// ErrInvalidRange is returned for an empty, inverted, or oversized search range.
	ErrInvalidRange = errors.New("invalid time range")
	// ErrInvalidDuration is returned for a duration outside the bookable tiers.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrUnknownTier is returned when no frequency tier covers a duration.
	ErrUnknownTier = errors.New("no frequency tier for duration")
)
