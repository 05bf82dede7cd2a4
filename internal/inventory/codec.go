package inventory

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-router/internal/model"
)

// Prices and eligibility are stored as JSON text by every persistent backend.

func encodePrices(p map[model.Tier]float64) (string, error) {
	if p == nil {
		p = map[model.Tier]float64{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", eris.Wrap(err, "inventory: encode price_by_tier")
	}
	return string(b), nil
}

func decodePrices(s string) (map[model.Tier]float64, error) {
	p := map[model.Tier]float64{}
	if s == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, eris.Wrap(err, "inventory: decode price_by_tier")
	}
	return p, nil
}

func encodeTiers(t []model.Tier) (string, error) {
	if t == nil {
		t = []model.Tier{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", eris.Wrap(err, "inventory: encode tier_eligibility")
	}
	return string(b), nil
}

func decodeTiers(s string) ([]model.Tier, error) {
	var t []model.Tier
	if s == "" {
		return t, nil
	}
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, eris.Wrap(err, "inventory: decode tier_eligibility")
	}
	return t, nil
}
