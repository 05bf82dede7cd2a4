package model

// Homeownership is the customer's relationship to the property.
type Homeownership string

const (
	HomeownershipOwn     Homeownership = "own"
	HomeownershipRent    Homeownership = "rent"
	HomeownershipUnknown Homeownership = "unknown"
)

// Timeline is how soon the customer intends to install.
type Timeline string

const (
	TimelineImmediately Timeline = "immediately"
	Timeline3Months     Timeline = "3_months"
	Timeline6Months     Timeline = "6_months"
	TimelineResearching Timeline = "researching"
)

// Profile field keys, as reported in IncompleteProfileError.
const (
	FieldZipCode       = "zip_code"
	FieldMonthlyBill   = "monthly_bill"
	FieldHomeownership = "homeownership_status"
	FieldRoofType      = "roof_type"
	FieldRoofAge       = "roof_age"
	FieldRoofSize      = "roof_size_sqft"
	FieldShading       = "shading_factor"
	FieldOrientation   = "orientation"
	FieldTimeline      = "timeline_urgency"
	FieldHomeType      = "home_type"
)

// CustomerProfile accumulates what is known about a prospect. Empty strings
// and nil pointers mean the value has not been collected yet.
type CustomerProfile struct {
	ZipCode       string        `json:"zip_code,omitempty" validate:"omitempty,len=5,numeric"`
	MonthlyBill   float64       `json:"monthly_bill,omitempty" validate:"gte=0,lte=100000"`
	Homeownership Homeownership `json:"homeownership_status,omitempty" validate:"omitempty,oneof=own rent unknown"`
	RoofType      string        `json:"roof_type,omitempty" validate:"omitempty,max=64"`
	RoofAge       *int          `json:"roof_age,omitempty" validate:"omitempty,gte=0,lte=200"`
	RoofSizeSqft  *float64      `json:"roof_size_sqft,omitempty" validate:"omitempty,gt=0"`
	ShadingFactor *float64      `json:"shading_factor,omitempty" validate:"omitempty,gte=0,lte=1"`
	Orientation   string        `json:"orientation,omitempty" validate:"omitempty,max=32"`
	Timeline      Timeline      `json:"timeline_urgency,omitempty" validate:"omitempty,oneof=immediately 3_months 6_months researching"`
	HomeType      string        `json:"home_type,omitempty" validate:"omitempty,max=64"`
}

// ProfileUpdate is a partial profile collected in one conversation turn.
// Only non-nil fields are applied.
type ProfileUpdate struct {
	ZipCode       *string        `json:"zip_code,omitempty"`
	MonthlyBill   *float64       `json:"monthly_bill,omitempty"`
	Homeownership *Homeownership `json:"homeownership_status,omitempty"`
	RoofType      *string        `json:"roof_type,omitempty"`
	RoofAge       *int           `json:"roof_age,omitempty"`
	RoofSizeSqft  *float64       `json:"roof_size_sqft,omitempty"`
	ShadingFactor *float64       `json:"shading_factor,omitempty"`
	Orientation   *string        `json:"orientation,omitempty"`
	Timeline      *Timeline      `json:"timeline_urgency,omitempty"`
	HomeType      *string        `json:"home_type,omitempty"`
}

// Merge returns a copy of p with every field present in u applied.
func (p CustomerProfile) Merge(u ProfileUpdate) CustomerProfile {
	out := p
	if u.ZipCode != nil {
		out.ZipCode = *u.ZipCode
	}
	if u.MonthlyBill != nil {
		out.MonthlyBill = *u.MonthlyBill
	}
	if u.Homeownership != nil {
		out.Homeownership = *u.Homeownership
	}
	if u.RoofType != nil {
		out.RoofType = *u.RoofType
	}
	if u.RoofAge != nil {
		v := *u.RoofAge
		out.RoofAge = &v
	}
	if u.RoofSizeSqft != nil {
		v := *u.RoofSizeSqft
		out.RoofSizeSqft = &v
	}
	if u.ShadingFactor != nil {
		v := *u.ShadingFactor
		out.ShadingFactor = &v
	}
	if u.Orientation != nil {
		out.Orientation = *u.Orientation
	}
	if u.Timeline != nil {
		out.Timeline = *u.Timeline
	}
	if u.HomeType != nil {
		out.HomeType = *u.HomeType
	}
	return out
}

// Missing returns the subset of the given field keys that are not yet set,
// in the order requested.
func (p CustomerProfile) Missing(fields ...string) []string {
	var missing []string
	for _, f := range fields {
		if !p.has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func (p CustomerProfile) has(field string) bool {
	switch field {
	case FieldZipCode:
		return p.ZipCode != ""
	case FieldMonthlyBill:
		return p.MonthlyBill != 0
	case FieldHomeownership:
		return p.Homeownership != ""
	case FieldRoofType:
		return p.RoofType != ""
	case FieldRoofAge:
		return p.RoofAge != nil
	case FieldRoofSize:
		return p.RoofSizeSqft != nil
	case FieldShading:
		return p.ShadingFactor != nil
	case FieldOrientation:
		return p.Orientation != ""
	case FieldTimeline:
		return p.Timeline != ""
	case FieldHomeType:
		return p.HomeType != ""
	default:
		return false
	}
}

// Shading returns the shading factor, or 0 when it has not been collected.
func (p CustomerProfile) Shading() float64 {
	if p.ShadingFactor == nil {
		return 0
	}
	return *p.ShadingFactor
}
