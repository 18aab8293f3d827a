package domain

import (
	"time"

	"github.com/cvd-risk-mcp-server/pkg/units"
)

// Request Models

// Measurement is a unit-tagged clinical quantity.
type Measurement struct {
	Value float64    `json:"value"`
	Unit  units.Unit `json:"unit"`
}

// Amount returns the value, or nil for an absent measurement.
func (m *Measurement) Amount() *float64 {
	if m == nil {
		return nil
	}
	return &m.Value
}

// UnitOr returns the unit, or fallback when the measurement or its unit is absent.
func (m *Measurement) UnitOr(fallback units.Unit) units.Unit {
	if m == nil || m.Unit == "" {
		return fallback
	}
	return m.Unit
}

// Comorbidities holds the optional QRISK3 condition and medication flags.
type Comorbidities struct {
	AtrialFibrillation     bool `json:"atrial_fibrillation"`
	RheumatoidArthritis    bool `json:"rheumatoid_arthritis"`
	ChronicKidneyDisease   bool `json:"chronic_kidney_disease"` // stage 3, 4 or 5
	Migraine               bool `json:"migraine"`
	SLE                    bool `json:"sle"`
	SevereMentalIllness    bool `json:"severe_mental_illness"`
	ErectileDysfunction    bool `json:"erectile_dysfunction"` // male model only
	Corticosteroids        bool `json:"corticosteroids"`
	AtypicalAntipsychotics bool `json:"atypical_antipsychotics"`
}

// PatientProfile is the pre-validated clinical input for one calculation.
// Optional quantities are nil when absent.
type PatientProfile struct {
	Age              int             `json:"age"`
	Sex              Sex             `json:"sex"`
	SystolicBP       float64         `json:"systolic_bp"`
	SystolicReadings []float64       `json:"systolic_readings,omitempty"`
	SBPVariability   *float64        `json:"sbp_variability,omitempty"`
	BPTreatment      bool            `json:"bp_treatment"`
	TotalCholesterol Measurement     `json:"total_cholesterol"`
	HDLCholesterol   Measurement     `json:"hdl_cholesterol"`
	LDLCholesterol   *Measurement    `json:"ldl_cholesterol,omitempty"`
	Smoking          SmokingStatus   `json:"smoking"`
	Diabetes         DiabetesStatus  `json:"diabetes"`
	FamilyHistory    bool            `json:"family_history"`
	Lpa              *Measurement    `json:"lpa,omitempty"`
	Comorbidities    Comorbidities   `json:"comorbidities"`
	Ethnicity        Ethnicity       `json:"ethnicity,omitempty"`
	BMI              *float64        `json:"bmi,omitempty"`
	Height           *Measurement    `json:"height,omitempty"`
	Weight           *Measurement    `json:"weight,omitempty"`
	Townsend         float64         `json:"townsend"`
}

// FraminghamInput is the normalized input of the Framingham model.
// Lipids are in mmol/L, Lp(a) in mg/dL.
type FraminghamInput struct {
	Age              int      `json:"age"`
	Sex              Sex      `json:"sex"`
	TotalCholesterol float64  `json:"total_cholesterol"`
	HDLCholesterol   float64  `json:"hdl_cholesterol"`
	SystolicBP       float64  `json:"systolic_bp"`
	BPTreatment      bool     `json:"bp_treatment"`
	Smoker           bool     `json:"smoker"`
	Diabetes         bool     `json:"diabetes"`
	FamilyHistory    bool     `json:"family_history"`
	LpaMgdl          *float64 `json:"lpa_mgdl,omitempty"`
}

// QRISK3Input is the normalized input of the QRISK3 model.
type QRISK3Input struct {
	Age              int            `json:"age"`
	Sex              Sex            `json:"sex"`
	Ethnicity        Ethnicity      `json:"ethnicity"`
	Smoking          SmokingStatus  `json:"smoking"`
	Diabetes         DiabetesStatus `json:"diabetes"`
	BMI              float64        `json:"bmi"`
	CholesterolRatio float64        `json:"cholesterol_ratio"`
	SystolicBP       float64        `json:"systolic_bp"`
	SBPVariability   float64        `json:"sbp_variability"`
	Townsend         float64        `json:"townsend"`
	FamilyHistory    bool           `json:"family_history"`
	BPTreatment      bool           `json:"bp_treatment"`
	Comorbidities    Comorbidities  `json:"comorbidities"`
	LpaMgdl          *float64       `json:"lpa_mgdl,omitempty"`
}

// RecommendationRequest carries the context the recommendation engine decides on.
// LDL is in mmol/L.
type RecommendationRequest struct {
	RiskPercent float64  `json:"risk_percent"`
	LDL         *float64 `json:"ldl,omitempty"`
	Diabetes    bool     `json:"diabetes"`
	Age         *int     `json:"age,omitempty"`
	LpaElevated bool     `json:"lpa_elevated"`
}

// Result Models

// ContributingFactor explains one input's influence on an estimate.
type ContributingFactor struct {
	Name        string `json:"name"`
	Impact      Impact `json:"impact"`
	Description string `json:"description"`
}

// RiskResult is the immutable output of one risk algorithm.
type RiskResult struct {
	Algorithm           Algorithm            `json:"algorithm"`
	BaseRisk            float64              `json:"base_risk"`
	LpaModifier         float64              `json:"lpa_modifier"`
	ModifiedRisk        float64              `json:"modified_risk"`
	RiskCategory        RiskCategory         `json:"risk_category"`
	ContributingFactors []ContributingFactor `json:"contributing_factors"`
	LpaMgdl             *float64             `json:"lpa_mgdl,omitempty"`
}

// Recommendation is one populated recommendation slot.
type Recommendation struct {
	Text            string               `json:"text"`
	Reason          RecommendationReason `json:"reason"`
	Rationale       string               `json:"rationale"`
	EvidenceQuality EvidenceQuality      `json:"evidence_quality"`
}

// RecommendationSet is the structured treatment advice for one risk estimate.
type RecommendationSet struct {
	RiskCategory       RiskCategory     `json:"risk_category"`
	Statin             *Recommendation  `json:"statin,omitempty"`
	Ezetimibe          *Recommendation  `json:"ezetimibe,omitempty"`
	PCSK9              *Recommendation  `json:"pcsk9,omitempty"`
	OtherChanges       []Recommendation `json:"other_changes"`
	NonPharmacological []Recommendation `json:"non_pharmacological"`
}

// HasOther reports whether otherChanges carries a recommendation with the given reason.
func (r *RecommendationSet) HasOther(reason RecommendationReason) bool {
	for _, rec := range r.OtherChanges {
		if rec.Reason == reason {
			return true
		}
	}
	return false
}

// ComparisonResult reconciles a Framingham and a QRISK3 estimate for the same patient.
type ComparisonResult struct {
	FRSResult            *RiskResult  `json:"frs_result"`
	QRISKResult          *RiskResult  `json:"qrisk_result"`
	AbsoluteDifference   float64      `json:"absolute_difference"`
	PercentDifference    float64      `json:"percent_difference"`
	QualitativeAgreement Agreement    `json:"qualitative_agreement"`
	GoverningRisk        float64      `json:"governing_risk"`
	GoverningAlgorithm   Algorithm    `json:"governing_algorithm"`
	GoverningCategory    RiskCategory `json:"governing_category"`
	InterpretationText   string       `json:"interpretation_text"`
}

// Assessment is the calculator's envelope around one or two risk results.
type Assessment struct {
	ID                string             `json:"id"`
	Fingerprint       string             `json:"fingerprint"`
	Framingham        *RiskResult        `json:"framingham,omitempty"`
	QRISK3            *RiskResult        `json:"qrisk3,omitempty"`
	Comparison        *ComparisonResult  `json:"comparison,omitempty"`
	GoverningRisk     float64            `json:"governing_risk"`
	GoverningCategory RiskCategory       `json:"governing_category"`
	Recommendations   *RecommendationSet `json:"recommendations"`
	Warnings          []string           `json:"warnings,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Algorithms returns the algorithms that contributed to the assessment.
func (a *Assessment) Algorithms() []Algorithm {
	var out []Algorithm
	if a.Framingham != nil {
		out = append(out, FRAMINGHAM)
	}
	if a.QRISK3 != nil {
		out = append(out, QRISK3)
	}
	return out
}

// Governing returns the risk result recommendations were derived from.
func (a *Assessment) Governing() *RiskResult {
	switch {
	case a.Comparison != nil && a.Comparison.GoverningAlgorithm == QRISK3:
		return a.QRISK3
	case a.Comparison != nil:
		return a.Comparison.FRSResult
	case a.Framingham != nil:
		return a.Framingham
	default:
		return a.QRISK3
	}
}
