package qualify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/solar-router/internal/model"
)

// Session accumulates one lead's profile across conversation turns. Queries
// run against a snapshot of the profile, so they never observe a half-applied
// update.
type Session struct {
	id     string
	engine *Engine

	mu      sync.RWMutex
	profile model.CustomerProfile
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Profile returns the current profile.
func (s *Session) Profile() model.CustomerProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// UpdateProfile merges u into the profile. Fields absent from u keep their
// values. If the merged profile is invalid the update is rejected with
// model.ErrInvalidInput and the profile is left unchanged.
func (s *Session) UpdateProfile(u model.ProfileUpdate) (model.CustomerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.profile.Merge(u)
	if err := s.engine.Validate(merged); err != nil {
		zap.L().Debug("qualify: profile update rejected", zap.String("session", s.id), zap.Error(err))
		return s.profile, err
	}
	s.profile = merged
	return merged, nil
}

// ComputeRecommendation sizes and prices a system for the current profile.
func (s *Session) ComputeRecommendation(ctx context.Context) (*model.SystemRecommendation, error) {
	return s.engine.Recommend(ctx, s.Profile())
}

// ComputeScore scores the current profile.
func (s *Session) ComputeScore() (model.LeadScore, error) {
	return s.engine.Score(s.Profile())
}

// RouteLead scores the current profile and routes it.
func (s *Session) RouteLead(ctx context.Context) (model.LeadScore, *model.RoutingDecision, error) {
	return s.engine.Route(ctx, s.Profile())
}
