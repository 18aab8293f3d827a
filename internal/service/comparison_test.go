package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

func riskResult(algorithm domain.Algorithm, modified float64) *domain.RiskResult {
	return &domain.RiskResult{
		Algorithm:    algorithm,
		BaseRisk:     modified,
		LpaModifier:  1.0,
		ModifiedRisk: modified,
		RiskCategory: CategorizeRisk(modified),
	}
}

func TestComparator_SubstantialDifference(t *testing.T) {
	c := NewComparator(newTestLogger())

	result, err := c.Compare(riskResult(domain.FRAMINGHAM, 15.0), riskResult(domain.QRISK3, 22.0))
	require.NoError(t, err)

	assert.InDelta(t, 7.0, result.AbsoluteDifference, 1e-12)
	assert.InDelta(t, 37.8378, result.PercentDifference, 1e-3)
	assert.Equal(t, domain.AGREEMENT_SUBSTANTIAL, result.QualitativeAgreement)
	assert.Equal(t, 22.0, result.GoverningRisk)
	assert.Equal(t, domain.QRISK3, result.GoverningAlgorithm)
	assert.Equal(t, domain.HIGH_RISK, result.GoverningCategory)
	assert.Contains(t, result.InterpretationText, "QRISK3 gives the higher estimate")
	assert.Contains(t, result.InterpretationText, domain.HIGH_RISK.Label())
}

func TestComparator_OrderIndependent(t *testing.T) {
	c := NewComparator(newTestLogger())
	frs, qrisk := riskResult(domain.FRAMINGHAM, 18), riskResult(domain.QRISK3, 12)

	ab, err := c.Compare(frs, qrisk)
	require.NoError(t, err)
	ba, err := c.Compare(qrisk, frs)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Same(t, frs, ab.FRSResult)
	assert.Same(t, qrisk, ab.QRISKResult)
	assert.Equal(t, domain.FRAMINGHAM, ab.GoverningAlgorithm)
	assert.Equal(t, 18.0, ab.GoverningRisk)
	assert.Equal(t, domain.MODERATE_RISK, ab.GoverningCategory)
}

func TestClassifyAgreement(t *testing.T) {
	tests := []struct {
		percent float64
		want    domain.Agreement
	}{
		{0, domain.AGREEMENT_SIMILAR},
		{9.99, domain.AGREEMENT_SIMILAR},
		{10, domain.AGREEMENT_MODERATE},
		{29.99, domain.AGREEMENT_MODERATE},
		{30, domain.AGREEMENT_SUBSTANTIAL},
		{150, domain.AGREEMENT_SUBSTANTIAL},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyAgreement(tt.percent), "percent %v", tt.percent)
	}
}

func TestPercentDifference(t *testing.T) {
	assert.Equal(t, 0.0, PercentDifference(0, 0))
	assert.InDelta(t, 200.0, PercentDifference(0, 5), 1e-12)
	assert.InDelta(t, 9.5238, PercentDifference(10, 11), 1e-4)
}

func TestComparator_EqualEstimates(t *testing.T) {
	c := NewComparator(newTestLogger())

	result, err := c.Compare(riskResult(domain.FRAMINGHAM, 8), riskResult(domain.QRISK3, 8))
	require.NoError(t, err)

	assert.Equal(t, domain.AGREEMENT_SIMILAR, result.QualitativeAgreement)
	assert.Equal(t, 8.0, result.GoverningRisk)
	assert.Contains(t, result.InterpretationText, "both estimate 8.0%")
	assert.Contains(t, result.InterpretationText, domain.LOW_RISK.Label())
}

func TestComparator_Errors(t *testing.T) {
	c := NewComparator(newTestLogger())

	_, err := c.Compare(nil, riskResult(domain.QRISK3, 5))
	assert.ErrorIs(t, err, domain.ErrMissingResult)

	_, err = c.Compare(riskResult(domain.QRISK3, 5), riskResult(domain.QRISK3, 6))
	assert.ErrorIs(t, err, domain.ErrSameAlgorithm)

	_, err = c.Compare(riskResult(domain.FRAMINGHAM, 5), riskResult(domain.FRAMINGHAM, 6))
	assert.ErrorIs(t, err, domain.ErrSameAlgorithm)
}
