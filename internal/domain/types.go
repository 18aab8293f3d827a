// Package domain contains the core entities and enumerations for 10-year cardiovascular
// disease (CVD) risk estimation and lipid-lowering treatment recommendation.
//
// References:
// D'Agostino RB et al. (2008) General cardiovascular risk profile for use in primary care.
// Circulation 117(6):743-53. doi: 10.1161/CIRCULATIONAHA.107.699579
// Hippisley-Cox J et al. (2017) Development and validation of QRISK3 risk prediction algorithms.
// BMJ 357:j2099. doi: 10.1136/bmj.j2099
package domain

import (
	"errors"
)

// Algorithm identifies the risk model that produced a result.
type Algorithm string

const (
	FRAMINGHAM Algorithm = "Framingham"
	QRISK3     Algorithm = "QRISK3"
)

// IsValid reports whether the algorithm is a supported risk model.
func (a Algorithm) IsValid() bool {
	switch a {
	case FRAMINGHAM, QRISK3:
		return true
	default:
		return false
	}
}

// String returns the string representation of the algorithm.
func (a Algorithm) String() string {
	return string(a)
}

// Sex is the biological sex used to select sex-specific coefficient tables.
type Sex string

const (
	MALE   Sex = "male"
	FEMALE Sex = "female"
)

// IsValid reports whether the sex has a coefficient table.
func (s Sex) IsValid() bool {
	return s == MALE || s == FEMALE
}

// RiskCategory is the ordinal band of a 10-year risk percentage.
type RiskCategory string

const (
	LOW_RISK      RiskCategory = "low"
	MODERATE_RISK RiskCategory = "moderate"
	HIGH_RISK     RiskCategory = "high"
)

// Category thresholds in percent. Lower bounds are inclusive.
const (
	ModerateRiskThreshold = 10.0
	HighRiskThreshold     = 20.0
)

// CategorizeRisk maps a percentage to its category. 10.0 is moderate and 20.0 is high.
func CategorizeRisk(riskPercent float64) RiskCategory {
	switch {
	case riskPercent >= HighRiskThreshold:
		return HIGH_RISK
	case riskPercent >= ModerateRiskThreshold:
		return MODERATE_RISK
	default:
		return LOW_RISK
	}
}

// IsValid reports whether the category is one of the three bands.
func (c RiskCategory) IsValid() bool {
	switch c {
	case LOW_RISK, MODERATE_RISK, HIGH_RISK:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (c RiskCategory) String() string {
	return string(c)
}

// Label returns the human-readable label used in interpretation text.
func (c RiskCategory) Label() string {
	switch c {
	case LOW_RISK:
		return "low risk (<10%)"
	case MODERATE_RISK:
		return "moderate risk (10-19.9%)"
	case HIGH_RISK:
		return "high risk (≥20%)"
	default:
		return "unknown risk"
	}
}

// LogFields returns structured logging fields for audit trails.
func (c RiskCategory) LogFields() map[string]any {
	return map[string]any{
		"risk_category":   string(c),
		"is_valid":        c.IsValid(),
		"requires_action": c == HIGH_RISK,
	}
}

// Impact grades how much a contributing factor drives the estimate.
type Impact string

const (
	IMPACT_LOW      Impact = "low"
	IMPACT_MODERATE Impact = "moderate"
	IMPACT_HIGH     Impact = "high"
)

// EvidenceQuality grades the guideline evidence behind a recommendation.
type EvidenceQuality string

const (
	EVIDENCE_HIGH     EvidenceQuality = "high"
	EVIDENCE_MODERATE EvidenceQuality = "moderate"
)

// Agreement is the qualitative agreement between two risk estimates.
type Agreement string

const (
	AGREEMENT_SIMILAR     Agreement = "similar"
	AGREEMENT_MODERATE    Agreement = "moderate difference"
	AGREEMENT_SUBSTANTIAL Agreement = "substantial difference"
)

// SmokingStatus is the QRISK3 smoking category (0-4).
type SmokingStatus int

const (
	NON_SMOKER SmokingStatus = iota
	EX_SMOKER
	LIGHT_SMOKER    // fewer than 10 per day
	MODERATE_SMOKER // 10 to 19 per day
	HEAVY_SMOKER    // 20 or more per day
)

// IsValid reports whether the status is within the QRISK3 table.
func (s SmokingStatus) IsValid() bool {
	return s >= NON_SMOKER && s <= HEAVY_SMOKER
}

// IsCurrent reports whether the status denotes a current smoker.
func (s SmokingStatus) IsCurrent() bool {
	return s >= LIGHT_SMOKER
}

// DiabetesStatus is the QRISK3 diabetes category.
type DiabetesStatus string

const (
	DIABETES_NONE  DiabetesStatus = "none"
	DIABETES_TYPE1 DiabetesStatus = "type1"
	DIABETES_TYPE2 DiabetesStatus = "type2"
)

// IsValid reports whether the status is a known category. Empty is treated as none.
func (d DiabetesStatus) IsValid() bool {
	switch d {
	case "", DIABETES_NONE, DIABETES_TYPE1, DIABETES_TYPE2:
		return true
	default:
		return false
	}
}

// Present reports whether any form of diabetes is recorded.
func (d DiabetesStatus) Present() bool {
	return d == DIABETES_TYPE1 || d == DIABETES_TYPE2
}

// Ethnicity is the QRISK3 ethnicity code (1-9).
type Ethnicity int

const (
	ETHNICITY_WHITE Ethnicity = iota + 1 // white or not stated
	ETHNICITY_INDIAN
	ETHNICITY_PAKISTANI
	ETHNICITY_BANGLADESHI
	ETHNICITY_OTHER_ASIAN
	ETHNICITY_BLACK_CARIBBEAN
	ETHNICITY_BLACK_AFRICAN
	ETHNICITY_CHINESE
	ETHNICITY_OTHER
)

// IsValid reports whether the code is within the QRISK3 table.
func (e Ethnicity) IsValid() bool {
	return e >= ETHNICITY_WHITE && e <= ETHNICITY_OTHER
}

// RecommendationReason tags why a recommendation was emitted. Rationale text and
// evidence quality are keyed off this tag.
type RecommendationReason string

const (
	REASON_HIGH_INTENSITY_INDICATED    RecommendationReason = "HighIntensityIndicated"
	REASON_EZETIMIBE_ADD_ON_HIGH       RecommendationReason = "EzetimibeAddOnHigh"
	REASON_PCSK9_CONSIDERATION         RecommendationReason = "PCSK9Consideration"
	REASON_LPA_AGGRESSIVENESS          RecommendationReason = "LpaAggressiveness"
	REASON_LDL_THRESHOLD_MODERATE      RecommendationReason = "LDLThresholdModerate"
	REASON_DIABETES_AGE_THRESHOLD      RecommendationReason = "DiabetesAgeThreshold"
	REASON_MODERATE_RISK_GENERAL       RecommendationReason = "ModerateRiskGeneral"
	REASON_EZETIMIBE_MODERATE          RecommendationReason = "EzetimibeModerate"
	REASON_SEVERE_HYPERCHOLESTEROLEMIA RecommendationReason = "SevereHypercholesterolemia"
	REASON_FH_GENETIC_TESTING          RecommendationReason = "FHGeneticTesting"
	REASON_NOT_RECOMMENDED_LOW         RecommendationReason = "NotRecommendedLow"
	REASON_LIFESTYLE_DIET              RecommendationReason = "LifestyleDiet"
	REASON_LIFESTYLE_ACTIVITY          RecommendationReason = "LifestyleActivity"
	REASON_LIFESTYLE_SMOKING           RecommendationReason = "LifestyleSmokingCessation"
)

// Validation errors for clinical data integrity
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidSex       = errors.New("invalid sex")
	ErrInvalidAlgorithm = errors.New("invalid risk algorithm")
	ErrInvalidSmoking   = errors.New("invalid smoking status")
	ErrInvalidDiabetes  = errors.New("invalid diabetes status")
	ErrInvalidEthnicity = errors.New("invalid ethnicity code")
	ErrMissingBodySize  = errors.New("BMI or height and weight required")
	ErrMissingResult    = errors.New("risk result required")
	ErrSameAlgorithm    = errors.New("comparison requires one Framingham and one QRISK3 result")
	ErrUnsupportedUnit  = errors.New("unsupported unit conversion")
)
