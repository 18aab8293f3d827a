package domain

import (
	"github.com/cvd-risk-mcp-server/pkg/units"
)

// Transport request models. Pointer fields distinguish an absent value from zero so
// that a missing required field is rejected instead of read as 0.

// MeasurementInput is a unit-tagged value as received from a client.
type MeasurementInput struct {
	Value *float64 `json:"value" binding:"required"`
	Unit  string   `json:"unit,omitempty"`
}

// ProfileRequest is the patient profile accepted by the HTTP and MCP surfaces.
type ProfileRequest struct {
	Age              *int              `json:"age" binding:"required"`
	Sex              string            `json:"sex" binding:"required"`
	SystolicBP       *float64          `json:"systolic_bp" binding:"required"`
	SystolicReadings []float64         `json:"systolic_readings,omitempty"`
	SBPVariability   *float64          `json:"sbp_variability,omitempty"`
	BPTreatment      bool              `json:"bp_treatment"`
	TotalCholesterol *MeasurementInput `json:"total_cholesterol" binding:"required"`
	HDLCholesterol   *MeasurementInput `json:"hdl_cholesterol" binding:"required"`
	LDLCholesterol   *MeasurementInput `json:"ldl_cholesterol,omitempty"`
	Smoking          *int              `json:"smoking,omitempty"` // QRISK3 category 0-4
	Smoker           *bool             `json:"smoker,omitempty"`  // Framingham yes/no, used when smoking is absent
	Diabetes         string            `json:"diabetes,omitempty"`
	Diabetic         *bool             `json:"diabetic,omitempty"` // used when diabetes is absent
	FamilyHistory    bool              `json:"family_history"`
	Lpa              *MeasurementInput `json:"lpa,omitempty"`
	Comorbidities    Comorbidities     `json:"comorbidities"`
	Ethnicity        int               `json:"ethnicity,omitempty"`
	BMI              *float64          `json:"bmi,omitempty"`
	Height           *MeasurementInput `json:"height,omitempty"`
	Weight           *MeasurementInput `json:"weight,omitempty"`
	Townsend         float64           `json:"townsend"`
}

// ToProfile maps the request onto a PatientProfile. A yes/no smoker maps to the
// light-smoker category and a yes/no diabetic to type 2.
func (r *ProfileRequest) ToProfile() *PatientProfile {
	p := &PatientProfile{
		Sex:              Sex(r.Sex),
		SystolicReadings: r.SystolicReadings,
		SBPVariability:   r.SBPVariability,
		BPTreatment:      r.BPTreatment,
		TotalCholesterol: r.TotalCholesterol.measurement(),
		HDLCholesterol:   r.HDLCholesterol.measurement(),
		LDLCholesterol:   r.LDLCholesterol.optional(),
		Diabetes:         DiabetesStatus(r.Diabetes),
		FamilyHistory:    r.FamilyHistory,
		Lpa:              r.Lpa.optional(),
		Comorbidities:    r.Comorbidities,
		Ethnicity:        Ethnicity(r.Ethnicity),
		BMI:              r.BMI,
		Height:           r.Height.optional(),
		Weight:           r.Weight.optional(),
		Townsend:         r.Townsend,
	}
	if r.Age != nil {
		p.Age = *r.Age
	}
	if r.SystolicBP != nil {
		p.SystolicBP = *r.SystolicBP
	}

	switch {
	case r.Smoking != nil:
		p.Smoking = SmokingStatus(*r.Smoking)
	case r.Smoker != nil && *r.Smoker:
		p.Smoking = LIGHT_SMOKER
	}
	if r.Diabetes == "" && r.Diabetic != nil && *r.Diabetic {
		p.Diabetes = DIABETES_TYPE2
	}
	return p
}

func (m *MeasurementInput) measurement() Measurement {
	if m == nil || m.Value == nil {
		return Measurement{}
	}
	return Measurement{Value: *m.Value, Unit: units.Unit(m.Unit)}
}

func (m *MeasurementInput) optional() *Measurement {
	if m == nil || m.Value == nil {
		return nil
	}
	out := m.measurement()
	return &out
}

// RecommendationInput is the recommendation request accepted by the transports.
// Lp(a) may be given as a measurement or as a precomputed flag.
type RecommendationInput struct {
	RiskPercent *float64          `json:"risk_percent" binding:"required"`
	LDL         *MeasurementInput `json:"ldl,omitempty"`
	Diabetes    bool              `json:"diabetes"`
	Age         *int              `json:"age,omitempty"`
	Lpa         *MeasurementInput `json:"lpa,omitempty"`
	LpaElevated bool              `json:"lpa_elevated"`
}

// CompareInput carries the two results to reconcile, in either order.
type CompareInput struct {
	First  *RiskResult `json:"first" binding:"required"`
	Second *RiskResult `json:"second" binding:"required"`
}

// ConversionInput asks for a single unit conversion.
type ConversionInput struct {
	Quantity string   `json:"quantity" binding:"required"` // cholesterol, lpa, height, weight
	Value    *float64 `json:"value" binding:"required"`
	From     string   `json:"from" binding:"required"`
	To       string   `json:"to" binding:"required"`
}

// ConversionResult is the converted value.
type ConversionResult struct {
	Quantity string  `json:"quantity"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
}
