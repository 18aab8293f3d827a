package service

import (
	"fmt"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// factorInputs is the subset of a profile both algorithms explain themselves with.
type factorInputs struct {
	age           int
	smoking       domain.SmokingStatus
	diabetes      domain.DiabetesStatus
	systolicBP    float64
	bpTreatment   bool
	ratio         float64 // total/HDL cholesterol
	hdlMmol       float64
	familyHistory bool
	lpaMgdl       *float64
}

// commonFactors lists the contributing factors shared by both algorithms, in display order.
func commonFactors(in factorInputs) []domain.ContributingFactor {
	factors := make([]domain.ContributingFactor, 0, 8)

	switch {
	case in.age >= 65:
		factors = append(factors, factor("Age", domain.IMPACT_HIGH,
			fmt.Sprintf("Age %d is a major non-modifiable risk factor", in.age)))
	case in.age >= 50:
		factors = append(factors, factor("Age", domain.IMPACT_MODERATE,
			fmt.Sprintf("Age %d contributes moderately to baseline risk", in.age)))
	default:
		factors = append(factors, factor("Age", domain.IMPACT_LOW,
			fmt.Sprintf("Age %d contributes little to baseline risk", in.age)))
	}

	switch {
	case in.smoking.IsCurrent():
		factors = append(factors, factor("Smoking", domain.IMPACT_HIGH,
			"Current smoking roughly doubles cardiovascular risk"))
	case in.smoking == domain.EX_SMOKER:
		factors = append(factors, factor("Smoking", domain.IMPACT_MODERATE,
			"Former smoking carries residual risk"))
	}

	switch in.diabetes {
	case domain.DIABETES_TYPE1:
		factors = append(factors, factor("Diabetes", domain.IMPACT_HIGH, "Type 1 diabetes substantially increases risk"))
	case domain.DIABETES_TYPE2:
		factors = append(factors, factor("Diabetes", domain.IMPACT_HIGH, "Type 2 diabetes substantially increases risk"))
	}

	treated := ""
	if in.bpTreatment {
		treated = " on antihypertensive treatment"
	}
	switch {
	case in.systolicBP >= 160:
		factors = append(factors, factor("Blood pressure", domain.IMPACT_HIGH,
			fmt.Sprintf("Systolic BP %.0f mmHg%s is markedly elevated", in.systolicBP, treated)))
	case in.systolicBP >= 140:
		factors = append(factors, factor("Blood pressure", domain.IMPACT_MODERATE,
			fmt.Sprintf("Systolic BP %.0f mmHg%s is elevated", in.systolicBP, treated)))
	case in.systolicBP >= 130 || in.bpTreatment:
		factors = append(factors, factor("Blood pressure", domain.IMPACT_LOW,
			fmt.Sprintf("Systolic BP %.0f mmHg%s", in.systolicBP, treated)))
	}

	switch {
	case in.ratio >= 6:
		factors = append(factors, factor("Cholesterol ratio", domain.IMPACT_HIGH,
			fmt.Sprintf("Total/HDL cholesterol ratio %.1f is high", in.ratio)))
	case in.ratio >= 5:
		factors = append(factors, factor("Cholesterol ratio", domain.IMPACT_MODERATE,
			fmt.Sprintf("Total/HDL cholesterol ratio %.1f is above target", in.ratio)))
	}

	if in.hdlMmol > 0 && in.hdlMmol < 1.0 {
		factors = append(factors, factor("HDL cholesterol", domain.IMPACT_MODERATE,
			fmt.Sprintf("HDL %.2f mmol/L is low", in.hdlMmol)))
	}

	if in.familyHistory {
		factors = append(factors, factor("Family history", domain.IMPACT_MODERATE,
			"Premature CVD in a first-degree relative"))
	}

	if in.lpaMgdl != nil {
		lpa := *in.lpaMgdl
		switch {
		case lpa >= 180:
			factors = append(factors, factor("Lipoprotein(a)", domain.IMPACT_HIGH,
				fmt.Sprintf("Lp(a) %.0f mg/dL is very high", lpa)))
		case lpa >= LpaElevatedThreshold:
			factors = append(factors, factor("Lipoprotein(a)", domain.IMPACT_MODERATE,
				fmt.Sprintf("Lp(a) %.0f mg/dL is elevated", lpa)))
		case lpa >= 30:
			factors = append(factors, factor("Lipoprotein(a)", domain.IMPACT_LOW,
				fmt.Sprintf("Lp(a) %.0f mg/dL is borderline", lpa)))
		}
	}

	return factors
}

// qriskFactors appends the QRISK3-only covariates.
func qriskFactors(factors []domain.ContributingFactor, in domain.QRISK3Input) []domain.ContributingFactor {
	switch {
	case in.BMI >= 35:
		factors = append(factors, factor("BMI", domain.IMPACT_HIGH, fmt.Sprintf("BMI %.1f indicates severe obesity", in.BMI)))
	case in.BMI >= 30:
		factors = append(factors, factor("BMI", domain.IMPACT_MODERATE, fmt.Sprintf("BMI %.1f indicates obesity", in.BMI)))
	case in.BMI >= 25:
		factors = append(factors, factor("BMI", domain.IMPACT_LOW, fmt.Sprintf("BMI %.1f indicates overweight", in.BMI)))
	}

	c := in.Comorbidities
	flags := []struct {
		present bool
		name    string
		impact  domain.Impact
		desc    string
	}{
		{c.AtrialFibrillation, "Atrial fibrillation", domain.IMPACT_HIGH, "Atrial fibrillation strongly increases risk"},
		{c.ChronicKidneyDisease, "Chronic kidney disease", domain.IMPACT_HIGH, "CKD stage 3-5 strongly increases risk"},
		{c.SLE, "Systemic lupus erythematosus", domain.IMPACT_MODERATE, "SLE increases vascular inflammation"},
		{c.RheumatoidArthritis, "Rheumatoid arthritis", domain.IMPACT_MODERATE, "Rheumatoid arthritis increases risk"},
		{c.Corticosteroids, "Corticosteroids", domain.IMPACT_MODERATE, "Regular oral corticosteroid use"},
		{c.Migraine, "Migraine", domain.IMPACT_LOW, "History of migraine"},
		{c.SevereMentalIllness, "Severe mental illness", domain.IMPACT_LOW, "Severe mental illness"},
		{c.AtypicalAntipsychotics, "Atypical antipsychotics", domain.IMPACT_LOW, "Atypical antipsychotic medication"},
		{c.ErectileDysfunction && in.Sex == domain.MALE, "Erectile dysfunction", domain.IMPACT_LOW, "Erectile dysfunction diagnosis or treatment"},
	}
	for _, f := range flags {
		if f.present {
			factors = append(factors, factor(f.name, f.impact, f.desc))
		}
	}

	if in.Townsend > 2 {
		factors = append(factors, factor("Deprivation", domain.IMPACT_LOW,
			fmt.Sprintf("Townsend deprivation score %.1f", in.Townsend)))
	}

	return factors
}

func factor(name string, impact domain.Impact, description string) domain.ContributingFactor {
	return domain.ContributingFactor{Name: name, Impact: impact, Description: description}
}
