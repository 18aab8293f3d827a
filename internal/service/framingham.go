package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/pkg/units"
)

// framinghamCoefficients is one sex-specific row of the general CVD model.
// Lipid coefficients apply to ln(mg/dL).
type framinghamCoefficients struct {
	lnAge          float64
	lnTotalChol    float64
	lnHDL          float64
	lnSBPUntreated float64
	lnSBPTreated   float64
	smoker         float64
	diabetes       float64
	meanPredictor  float64
	baseSurvival   float64
}

// Framingham general cardiovascular risk profile (D'Agostino 2008), 10-year horizon.
var (
	framinghamMale = framinghamCoefficients{
		lnAge:          3.06117,
		lnTotalChol:    1.12370,
		lnHDL:          -0.93263,
		lnSBPUntreated: 1.93303,
		lnSBPTreated:   1.99881,
		smoker:         0.65451,
		diabetes:       0.57367,
		meanPredictor:  23.9802,
		baseSurvival:   0.88431,
	}
	framinghamFemale = framinghamCoefficients{
		lnAge:          2.32888,
		lnTotalChol:    1.20904,
		lnHDL:          -0.70833,
		lnSBPUntreated: 2.76157,
		lnSBPTreated:   2.82263,
		smoker:         0.52873,
		diabetes:       0.69154,
		meanPredictor:  26.1931,
		baseSurvival:   0.94833,
	}
)

// Published validation range for the Framingham general CVD model.
const (
	FraminghamMinAge = 30
	FraminghamMaxAge = 74
)

// FraminghamEngine computes the Framingham 10-year general CVD risk.
type FraminghamEngine struct {
	logger *logrus.Logger
}

// NewFraminghamEngine creates a new Framingham engine
func NewFraminghamEngine(logger *logrus.Logger) *FraminghamEngine {
	return &FraminghamEngine{logger: logger}
}

// Algorithm returns the model identifier.
func (e *FraminghamEngine) Algorithm() domain.Algorithm {
	return domain.FRAMINGHAM
}

// Calculate returns the full risk result: base risk, Lp(a) modifier, category and
// contributing factors. Log-domain inputs are trusted; non-positive values yield NaN.
func (e *FraminghamEngine) Calculate(in domain.FraminghamInput) (*domain.RiskResult, error) {
	if !in.Sex.IsValid() {
		return nil, domain.WrapValidationError("sex", in.Sex, domain.ErrInvalidSex)
	}

	base := e.BaseRisk(in)

	smoking := domain.NON_SMOKER
	if in.Smoker {
		smoking = domain.LIGHT_SMOKER
	}
	diabetes := domain.DIABETES_NONE
	if in.Diabetes {
		diabetes = domain.DIABETES_TYPE2
	}
	factors := commonFactors(factorInputs{
		age:           in.Age,
		smoking:       smoking,
		diabetes:      diabetes,
		systolicBP:    in.SystolicBP,
		bpTreatment:   in.BPTreatment,
		ratio:         in.TotalCholesterol / in.HDLCholesterol,
		hdlMmol:       in.HDLCholesterol,
		familyHistory: in.FamilyHistory,
		lpaMgdl:       in.LpaMgdl,
	})
	result := buildResult(domain.FRAMINGHAM, base, in.LpaMgdl, factors)

	e.logger.WithFields(logrus.Fields{
		"algorithm":     result.Algorithm,
		"base_risk":     result.BaseRisk,
		"lpa_modifier":  result.LpaModifier,
		"modified_risk": result.ModifiedRisk,
		"risk_category": result.RiskCategory,
	}).Debug("Framingham risk calculated")

	return result, nil
}

// BaseRisk returns the unmodified 10-year risk percentage.
func (e *FraminghamEngine) BaseRisk(in domain.FraminghamInput) float64 {
	c := framinghamMale
	if in.Sex == domain.FEMALE {
		c = framinghamFemale
	}

	sbpCoef := c.lnSBPUntreated
	if in.BPTreatment {
		sbpCoef = c.lnSBPTreated
	}

	totalMgdl := units.ConvertCholesterol(in.TotalCholesterol, units.MmolPerL, units.MgPerDL)
	hdlMgdl := units.ConvertCholesterol(in.HDLCholesterol, units.MmolPerL, units.MgPerDL)

	l := c.lnAge*math.Log(float64(in.Age)) +
		c.lnTotalChol*math.Log(totalMgdl) +
		c.lnHDL*math.Log(hdlMgdl) +
		sbpCoef*math.Log(in.SystolicBP)
	if in.Smoker {
		l += c.smoker
	}
	if in.Diabetes {
		l += c.diabetes
	}

	risk := 1 - math.Pow(c.baseSurvival, math.Exp(l-c.meanPredictor))
	return risk * 100
}

// FraminghamInRange reports whether the age is inside the validated range.
func FraminghamInRange(age int) bool {
	return age >= FraminghamMinAge && age <= FraminghamMaxAge
}
