package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Tier is the discrete lead quality bucket used to price a lead.
type Tier string

const (
	TierPremium     Tier = "premium"
	TierStandard    Tier = "standard"
	TierBasic       Tier = "basic"
	TierUnqualified Tier = "unqualified"
)

// tierAliases maps the temperature vocabulary onto the canonical tiers.
var tierAliases = map[string]Tier{
	"premium":      TierPremium,
	"hot":          TierPremium,
	"standard":     TierStandard,
	"warm":         TierStandard,
	"basic":        TierBasic,
	"cold":         TierBasic,
	"unqualified":  TierUnqualified,
	"disqualified": TierUnqualified,
}

// ParseTier parses a canonical tier name or one of its aliases
// (hot, warm, cold, disqualified).
func ParseTier(s string) (Tier, error) {
	t, ok := tierAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", eris.Wrapf(ErrInvalidInput, "unknown tier %q", s)
	}
	return t, nil
}

// Qualified reports whether leads of this tier may be sold.
func (t Tier) Qualified() bool {
	return t == TierPremium || t == TierStandard || t == TierBasic
}

// LeadScore is the qualification result for a profile.
type LeadScore struct {
	NumericScore    int                `json:"numeric_score"`
	QualityTier     Tier               `json:"quality_tier"`
	FactorBreakdown map[string]float64 `json:"factor_breakdown"`
}
