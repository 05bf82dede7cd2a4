package qualify

import (
	"context"
	"errors"

	"github.com/sells-group/solar-router/internal/model"
	"github.com/sells-group/solar-router/internal/resilience"
)

// Error codes reported by ErrorCode.
const (
	CodeInvalidInput       = "invalid_input"
	CodeOutOfServiceArea   = "out_of_service_area"
	CodeIncompleteProfile  = "incomplete_profile"
	CodeNonViable          = "non_viable_recommendation"
	CodeCapacityExhausted  = "capacity_exhausted"
	CodeNoEligiblePlatform = "no_eligible_platform"
	CodeUnknownPlatform    = "unknown_platform"
)

// ErrorCode maps err onto the qualification error taxonomy. Errors outside
// it are classified as "transient" or "permanent" backend failures.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, model.ErrOutOfServiceArea):
		return CodeOutOfServiceArea
	case errors.Is(err, model.ErrIncompleteProfile):
		return CodeIncompleteProfile
	case errors.Is(err, model.ErrNonViableRecommendation):
		return CodeNonViable
	case errors.Is(err, model.ErrCapacityExhausted):
		return CodeCapacityExhausted
	case errors.Is(err, model.ErrNoEligiblePlatform):
		return CodeNoEligiblePlatform
	case errors.Is(err, model.ErrUnknownPlatform):
		return CodeUnknownPlatform
	default:
		return resilience.ClassifyError(err)
	}
}

// Outcome is the full qualification of one lead.
type Outcome struct {
	LeadID         string                      `json:"lead_id"`
	Recommendation *model.SystemRecommendation `json:"recommendation,omitempty"`
	Score          *model.LeadScore            `json:"score,omitempty"`
	Decision       *model.RoutingDecision      `json:"routing,omitempty"`
	// Warnings hold reportable conditions that did not stop qualification.
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
	Code     string   `json:"error_code,omitempty"`

	Err error `json:"-"`
}

// Qualify recommends, scores and routes p in one pass. A recommendation that
// is incomplete, non-viable or rejected by sizing is recorded as a warning,
// as is a lead with no eligible or available platform. Any other error stops the pass and is
// recorded in Err.
func (e *Engine) Qualify(ctx context.Context, leadID string, p model.CustomerProfile) *Outcome {
	out := &Outcome{LeadID: leadID}

	rec, err := e.Recommend(ctx, p)
	out.Recommendation = rec
	switch {
	case err == nil:
	case errors.Is(err, model.ErrNonViableRecommendation), errors.Is(err, model.ErrIncompleteProfile):
		out.Warnings = append(out.Warnings, err.Error())
	case errors.Is(err, model.ErrInvalidInput):
		// Sizing rejects some inputs the scorer accepts, such as full shade.
		// Scoring and routing still decide the lead.
		out.Warnings = append(out.Warnings, err.Error())
	default:
		return out.fail(err)
	}

	score, dec, err := e.Route(ctx, p)
	if score.QualityTier != "" {
		out.Score = &score
	}
	out.Decision = dec
	switch {
	case err == nil:
	case errors.Is(err, model.ErrNoEligiblePlatform), errors.Is(err, model.ErrCapacityExhausted):
		out.Warnings = append(out.Warnings, err.Error())
		out.Code = ErrorCode(err)
	default:
		return out.fail(err)
	}
	return out
}

func (o *Outcome) fail(err error) *Outcome {
	o.Err = err
	o.Error = err.Error()
	o.Code = ErrorCode(err)
	return o
}
