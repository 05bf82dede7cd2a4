package model

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestSentinels_MatchThroughWraps(t *testing.T) {
	sentinels := []error{
		ErrInvalidInput,
		ErrOutOfServiceArea,
		ErrIncompleteProfile,
		ErrNonViableRecommendation,
		ErrCapacityExhausted,
		ErrNoEligiblePlatform,
		ErrUnknownPlatform,
	}

	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			err := eris.Wrap(eris.Wrapf(sentinel, "inner %d", 1), "outer")
			assert.ErrorIs(t, err, sentinel)
			for _, other := range sentinels {
				if other != sentinel {
					assert.False(t, errors.Is(err, other), "matched %v", other)
				}
			}
		})
	}
}

func TestIncompleteProfileError(t *testing.T) {
	err := &IncompleteProfileError{Operation: "compute_score", Missing: []string{"zip_code", "roof_type"}}

	assert.Equal(t, "compute_score: incomplete profile: missing zip_code, roof_type", err.Error())
	assert.ErrorIs(t, eris.Wrap(err, "session"), ErrIncompleteProfile)
	assert.NotErrorIs(t, err, ErrInvalidInput)
}
