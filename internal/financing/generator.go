// Package financing amortizes a system's net cost into loan offers.
package financing

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/model"
)

// Generator produces one offer per configured loan term.
type Generator struct {
	terms []config.LoanTerm
}

// NewGenerator creates a Generator. Terms are offered in the given order.
func NewGenerator(terms []config.LoanTerm) *Generator {
	cp := make([]config.LoanTerm, len(terms))
	copy(cp, terms)
	return &Generator{terms: cp}
}

// Generate returns a fixed-rate amortized offer for each loan term.
func (g *Generator) Generate(netCost float64) ([]model.FinancingOffer, error) {
	if netCost < 0 || math.IsNaN(netCost) || math.IsInf(netCost, 0) {
		return nil, eris.Wrapf(model.ErrInvalidInput, "financing: net_cost must be >= 0 (got %.2f)", netCost)
	}

	offers := make([]model.FinancingOffer, 0, len(g.terms))
	for i, t := range g.terms {
		if t.Years <= 0 {
			return nil, eris.Wrapf(model.ErrInvalidInput, "financing: loan_terms[%d]: years must be > 0", i)
		}
		if t.APR < 0 {
			return nil, eris.Wrapf(model.ErrInvalidInput, "financing: loan_terms[%d]: apr must be >= 0", i)
		}

		payment := MonthlyPayment(netCost, t.APR, t.Years)
		n := float64(t.Years * 12)
		offers = append(offers, model.FinancingOffer{
			TermYears:      t.Years,
			APR:            t.APR,
			MonthlyPayment: cents(payment),
			TotalInterest:  cents(math.Max(0, payment*n-netCost)),
		})
	}
	return offers, nil
}

// MonthlyPayment is the unrounded level payment for principal over years at apr.
func MonthlyPayment(principal, apr float64, years int) float64 {
	n := float64(years * 12)
	if apr == 0 {
		return principal / n
	}
	r := apr / 12
	growth := math.Pow(1+r, n)
	return principal * r * growth / (growth - 1)
}

func cents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
