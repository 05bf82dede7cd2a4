package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Error taxonomy shared by all qualification components. Callers match with
// errors.Is; wrapped context is added with eris.
var (
	// ErrInvalidInput marks a malformed or out-of-range value.
	ErrInvalidInput = eris.New("invalid input")
	// ErrOutOfServiceArea marks a ZIP code absent from the market reference.
	ErrOutOfServiceArea = eris.New("out of service area")
	// ErrIncompleteProfile marks an operation requested before its fields were collected.
	ErrIncompleteProfile = eris.New("incomplete profile")
	// ErrNonViableRecommendation is reported with a recommendation whose savings are zero.
	ErrNonViableRecommendation = eris.New("non-viable recommendation")
	// ErrCapacityExhausted marks a lost capacity reservation.
	ErrCapacityExhausted = eris.New("capacity exhausted")
	// ErrNoEligiblePlatform marks a lead no platform can take.
	ErrNoEligiblePlatform = eris.New("no eligible platform")
	// ErrUnknownPlatform marks an inventory operation on an unregistered platform.
	ErrUnknownPlatform = eris.New("unknown platform")
)

// IncompleteProfileError lists the profile keys an operation still needs.
type IncompleteProfileError struct {
	Operation string
	Missing   []string
}

func (e *IncompleteProfileError) Error() string {
	return e.Operation + ": incomplete profile: missing " + strings.Join(e.Missing, ", ")
}

// Is lets errors.Is(err, ErrIncompleteProfile) match.
func (e *IncompleteProfileError) Is(target error) bool {
	return target == ErrIncompleteProfile
}

// RequireFields returns an *IncompleteProfileError when any of fields is unset.
func RequireFields(op string, p CustomerProfile, fields ...string) error {
	if missing := p.Missing(fields...); len(missing) > 0 {
		return &IncompleteProfileError{Operation: op, Missing: missing}
	}
	return nil
}
