package model

// IncentiveType classifies how an incentive reaches the customer.
type IncentiveType string

const (
	IncentiveTaxCredit     IncentiveType = "tax_credit"
	IncentiveRebate        IncentiveType = "rebate"
	IncentiveOngoingCredit IncentiveType = "ongoing_credit"
)

// Incentive is one line item applied to a recommendation.
type Incentive struct {
	Name   string        `json:"name"`
	Amount float64       `json:"amount"`
	Type   IncentiveType `json:"type"`
	// Years is set for ongoing credits paid out over several years.
	Years int `json:"years,omitempty"`
	// ReducesNetCost reports whether Amount was subtracted from net_cost.
	ReducesNetCost bool `json:"reduces_net_cost"`
}

// FinancingOffer is an amortized loan for the net system cost.
type FinancingOffer struct {
	TermYears      int     `json:"term_years"`
	APR            float64 `json:"apr"`
	MonthlyPayment float64 `json:"monthly_payment"`
	TotalInterest  float64 `json:"total_interest"`
}

// SystemRecommendation is the technical and financial proposal for a
// customer. PaybackYears is nil when the system produces no savings.
type SystemRecommendation struct {
	ZipCode             string           `json:"zip_code"`
	SystemSizeKW        float64          `json:"system_size_kw"`
	PanelCount          int              `json:"panel_count"`
	AnnualProductionKWh float64          `json:"annual_production_kwh"`
	AnnualUsageKWh      float64          `json:"annual_usage_kwh"`
	GrossCost           float64          `json:"gross_cost"`
	IncentivesApplied   []Incentive      `json:"incentives_applied"`
	NetCost             float64          `json:"net_cost"`
	MonthlySavings      float64          `json:"monthly_savings"`
	PaybackYears        *float64         `json:"payback_years"`
	LifetimeSavings25yr float64          `json:"lifetime_savings_25yr"`
	ConfidenceScore     float64          `json:"confidence_score"`
	SizeCapped          bool             `json:"size_capped"`
	Viable              bool             `json:"viable"`
	Financing           []FinancingOffer `json:"financing,omitempty"`
}
