package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// scenarioMale60 is a 60 year old untreated male non-smoker without diabetes.
func scenarioMale60() domain.FraminghamInput {
	return domain.FraminghamInput{
		Age:              60,
		Sex:              domain.MALE,
		TotalCholesterol: 6.0,
		HDLCholesterol:   1.0,
		SystolicBP:       150,
	}
}

func TestFraminghamEngine_ReferenceValues(t *testing.T) {
	engine := NewFraminghamEngine(newTestLogger())

	tests := []struct {
		name  string
		input domain.FraminghamInput
		want  float64
	}{
		{"male 60 untreated", scenarioMale60(), 27.25067075540799},
		{"male 60 smoker", func() domain.FraminghamInput {
			in := scenarioMale60()
			in.Smoker = true
			return in
		}(), 45.78350620551308},
		{"male 60 treated", func() domain.FraminghamInput {
			in := scenarioMale60()
			in.BPTreatment = true
			return in
		}(), 35.74817413762026},
		{"female 55", domain.FraminghamInput{
			Age: 55, Sex: domain.FEMALE, TotalCholesterol: 5.5, HDLCholesterol: 1.4, SystolicBP: 130,
		}, 6.486945795220511},
		{"male 45", domain.FraminghamInput{
			Age: 45, Sex: domain.MALE, TotalCholesterol: 5.0, HDLCholesterol: 1.3, SystolicBP: 125,
		}, 5.742390400844711},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, engine.BaseRisk(tt.input), 0.01)
		})
	}
}

func TestFraminghamEngine_ScenarioWithoutLpa(t *testing.T) {
	engine := NewFraminghamEngine(newTestLogger())

	result, err := engine.Calculate(scenarioMale60())
	require.NoError(t, err)

	assert.Equal(t, domain.FRAMINGHAM, result.Algorithm)
	assert.InDelta(t, 27.2507, result.BaseRisk, 0.01)
	assert.Equal(t, 1.0, result.LpaModifier)
	assert.Equal(t, result.BaseRisk, result.ModifiedRisk)
	assert.Equal(t, domain.HIGH_RISK, result.RiskCategory)
	assert.Nil(t, result.LpaMgdl)
}

func TestFraminghamEngine_ScenarioWithLpa(t *testing.T) {
	engine := NewFraminghamEngine(newTestLogger())
	in := scenarioMale60()
	in.LpaMgdl = f64(120)

	result, err := engine.Calculate(in)
	require.NoError(t, err)

	assert.InDelta(t, 1.68, result.LpaModifier, 1e-12)
	assert.InDelta(t, result.BaseRisk*1.68, result.ModifiedRisk, 1e-9)
	assert.InDelta(t, 45.7811, result.ModifiedRisk, 0.01)
	assert.Equal(t, domain.HIGH_RISK, result.RiskCategory)
}

func TestFraminghamEngine_Deterministic(t *testing.T) {
	engine := NewFraminghamEngine(newTestLogger())
	in := scenarioMale60()
	in.LpaMgdl = f64(75)
	in.Diabetes = true
	in.FamilyHistory = true

	first, err := engine.Calculate(in)
	require.NoError(t, err)
	second, err := engine.Calculate(in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, math.Float64bits(first.BaseRisk), math.Float64bits(second.BaseRisk))
}

func TestFraminghamEngine_InvalidSex(t *testing.T) {
	engine := NewFraminghamEngine(newTestLogger())
	in := scenarioMale60()
	in.Sex = "unknown"

	_, err := engine.Calculate(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSex)
}

func TestFraminghamEngine_LogDomainViolationIsNaN(t *testing.T) {
	engine := NewFraminghamEngine(newTestLogger())
	in := scenarioMale60()
	in.HDLCholesterol = -1

	assert.True(t, math.IsNaN(engine.BaseRisk(in)))
}

func TestFraminghamEngine_ContributingFactors(t *testing.T) {
	engine := NewFraminghamEngine(newTestLogger())
	in := scenarioMale60()
	in.Smoker = true
	in.LpaMgdl = f64(200)

	result, err := engine.Calculate(in)
	require.NoError(t, err)

	names := make([]string, 0, len(result.ContributingFactors))
	for _, f := range result.ContributingFactors {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Age", "Smoking", "Blood pressure", "Cholesterol ratio", "Lipoprotein(a)"}, names)
}

func TestFraminghamInRange(t *testing.T) {
	assert.False(t, FraminghamInRange(29))
	assert.True(t, FraminghamInRange(30))
	assert.True(t, FraminghamInRange(74))
	assert.False(t, FraminghamInRange(75))
}
