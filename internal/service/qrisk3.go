package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// Validated age range of QRISK3. Outside it the model still computes.
const (
	QRISK3MinAge = 25
	QRISK3MaxAge = 84
)

// minReadingsForVariability is the number of repeated SBP readings needed to derive
// SBP variability.
const minReadingsForVariability = 3

// QRISK3Engine computes the QRISK3 10-year CVD risk.
type QRISK3Engine struct {
	logger *logrus.Logger
}

// NewQRISK3Engine creates a new QRISK3 engine
func NewQRISK3Engine(logger *logrus.Logger) *QRISK3Engine {
	return &QRISK3Engine{logger: logger}
}

// Algorithm returns the model identifier.
func (e *QRISK3Engine) Algorithm() domain.Algorithm {
	return domain.QRISK3
}

// Calculate returns the full risk result. Ethnicity 0 is read as code 1 (white or not stated).
func (e *QRISK3Engine) Calculate(in domain.QRISK3Input) (*domain.RiskResult, error) {
	if !in.Sex.IsValid() {
		return nil, domain.WrapValidationError("sex", in.Sex, domain.ErrInvalidSex)
	}
	if !in.Smoking.IsValid() {
		return nil, domain.WrapValidationError("smoking", in.Smoking, domain.ErrInvalidSmoking)
	}
	if !in.Diabetes.IsValid() {
		return nil, domain.WrapValidationError("diabetes", in.Diabetes, domain.ErrInvalidDiabetes)
	}
	if in.Ethnicity != 0 && !in.Ethnicity.IsValid() {
		return nil, domain.WrapValidationError("ethnicity", in.Ethnicity, domain.ErrInvalidEthnicity)
	}

	base := e.BaseRisk(in)

	factors := commonFactors(factorInputs{
		age:           in.Age,
		smoking:       in.Smoking,
		diabetes:      in.Diabetes,
		systolicBP:    in.SystolicBP,
		bpTreatment:   in.BPTreatment,
		ratio:         in.CholesterolRatio,
		familyHistory: in.FamilyHistory,
		lpaMgdl:       in.LpaMgdl,
	})
	factors = qriskFactors(factors, in)
	result := buildResult(domain.QRISK3, base, in.LpaMgdl, factors)

	e.logger.WithFields(logrus.Fields{
		"algorithm":     result.Algorithm,
		"sex":           in.Sex,
		"base_risk":     result.BaseRisk,
		"lpa_modifier":  result.LpaModifier,
		"modified_risk": result.ModifiedRisk,
		"risk_category": result.RiskCategory,
	}).Debug("QRISK3 risk calculated")

	return result, nil
}

// BaseRisk returns the unmodified 10-year risk percentage.
func (e *QRISK3Engine) BaseRisk(in domain.QRISK3Input) float64 {
	m := &qriskMale
	impotence := in.Comorbidities.ErectileDysfunction
	if in.Sex == domain.FEMALE {
		m = &qriskFemale
		impotence = false
	}
	return m.risk(float64(in.Age)/10, impotence, in)
}

// risk evaluates the model at age/10 = dage. Ages off the integer grid are only
// needed to reach the centring point.
func (m *qriskModel) risk(dage float64, impotence bool, in domain.QRISK3Input) float64 {
	ethnicity := in.Ethnicity
	if ethnicity == 0 {
		ethnicity = domain.ETHNICITY_WHITE
	}
	smoke := int(in.Smoking)

	// Fractional polynomial transforms, scaled by 1/10, then centred.
	age1 := math.Pow(dage, m.ageExp1) - m.centre.age1
	age2 := math.Pow(dage, m.ageExp2) - m.centre.age2

	dbmi := in.BMI / 10
	bmi1 := math.Pow(dbmi, -2) - m.centre.bmi1
	bmi2 := math.Pow(dbmi, -2)*math.Log(dbmi) - m.centre.bmi2

	ratio := in.CholesterolRatio - m.centre.ratio
	sbp := in.SystolicBP - m.centre.sbp
	sbps5 := in.SBPVariability - m.centre.sbps5
	town := in.Townsend - m.centre.town

	c := in.Comorbidities
	af := b2f(c.AtrialFibrillation)
	atypical := b2f(c.AtypicalAntipsychotics)
	cortico := b2f(c.Corticosteroids)
	impot := b2f(impotence)
	migraine := b2f(c.Migraine)
	ra := b2f(c.RheumatoidArthritis)
	renal := b2f(c.ChronicKidneyDisease)
	semi := b2f(c.SevereMentalIllness)
	sle := b2f(c.SLE)
	treatedHyp := b2f(in.BPTreatment)
	type1 := b2f(in.Diabetes == domain.DIABETES_TYPE1)
	type2 := b2f(in.Diabetes == domain.DIABETES_TYPE2)
	fh := b2f(in.FamilyHistory)

	a := 0.0

	a += m.ethnicity[ethnicity]
	a += m.smoking[smoke]

	a += age1 * m.continuous.age1
	a += age2 * m.continuous.age2
	a += bmi1 * m.continuous.bmi1
	a += bmi2 * m.continuous.bmi2
	a += ratio * m.continuous.ratio
	a += sbp * m.continuous.sbp
	a += sbps5 * m.continuous.sbps5
	a += town * m.continuous.town

	a += af * m.flags.af
	a += atypical * m.flags.atypicalAntipsychotics
	a += cortico * m.flags.corticosteroids
	a += impot * m.flags.impotence
	a += migraine * m.flags.migraine
	a += ra * m.flags.ra
	a += renal * m.flags.renal
	a += semi * m.flags.semi
	a += sle * m.flags.sle
	a += treatedHyp * m.flags.treatedHyp
	a += type1 * m.flags.type1
	a += type2 * m.flags.type2
	a += fh * m.flags.fhCVD

	for _, x := range [...]struct {
		age   float64
		coefs *qriskInteractions
	}{
		{age1, &m.age1x},
		{age2, &m.age2x},
	} {
		k := x.coefs
		a += x.age * k.smoking[smoke]
		a += x.age * af * k.af
		a += x.age * cortico * k.corticosteroids
		a += x.age * impot * k.impotence
		a += x.age * migraine * k.migraine
		a += x.age * renal * k.renal
		a += x.age * sle * k.sle
		a += x.age * treatedHyp * k.treatedHyp
		a += x.age * type1 * k.type1
		a += x.age * type2 * k.type2
		a += x.age * bmi1 * k.bmi1
		a += x.age * bmi2 * k.bmi2
		a += x.age * fh * k.fhCVD
		a += x.age * sbp * k.sbp
		a += x.age * town * k.town
	}

	return 100 * (1 - math.Pow(m.survivor, math.Exp(a)))
}

// QRISK3InRange reports whether the age is inside the validated range.
func QRISK3InRange(age int) bool {
	return age >= QRISK3MinAge && age <= QRISK3MaxAge
}

// SBPVariability returns the explicit variability when given, otherwise the sample
// standard deviation (n-1) of at least three readings, otherwise 0.
func SBPVariability(explicit *float64, readings []float64) float64 {
	if explicit != nil {
		return *explicit
	}
	n := len(readings)
	if n < minReadingsForVariability {
		return 0
	}
	mean := 0.0
	for _, r := range readings {
		mean += r
	}
	mean /= float64(n)
	ss := 0.0
	for _, r := range readings {
		d := r - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
