package service

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// Percent-difference thresholds between the two estimates.
const (
	agreementSimilarBelow  = 10.0
	agreementModerateBelow = 30.0
)

// Comparator reconciles a Framingham and a QRISK3 estimate.
type Comparator struct {
	logger *logrus.Logger
}

// NewComparator creates a new comparison engine
func NewComparator(logger *logrus.Logger) *Comparator {
	return &Comparator{logger: logger}
}

// Compare accepts the two results in either order. The higher modified risk governs.
func (c *Comparator) Compare(a, b *domain.RiskResult) (*domain.ComparisonResult, error) {
	if a == nil || b == nil {
		return nil, domain.WrapValidationError("results", nil, domain.ErrMissingResult)
	}

	frs, qrisk := a, b
	if frs.Algorithm == domain.QRISK3 {
		frs, qrisk = b, a
	}
	if frs.Algorithm != domain.FRAMINGHAM || qrisk.Algorithm != domain.QRISK3 {
		return nil, domain.WrapValidationError("results",
			fmt.Sprintf("%s,%s", a.Algorithm, b.Algorithm), domain.ErrSameAlgorithm)
	}

	diff := math.Abs(frs.ModifiedRisk - qrisk.ModifiedRisk)
	percent := PercentDifference(frs.ModifiedRisk, qrisk.ModifiedRisk)

	governing, governingAlgorithm := frs.ModifiedRisk, domain.FRAMINGHAM
	if qrisk.ModifiedRisk > frs.ModifiedRisk {
		governing, governingAlgorithm = qrisk.ModifiedRisk, domain.QRISK3
	}
	category := CategorizeRisk(governing)

	result := &domain.ComparisonResult{
		FRSResult:            frs,
		QRISKResult:          qrisk,
		AbsoluteDifference:   diff,
		PercentDifference:    percent,
		QualitativeAgreement: ClassifyAgreement(percent),
		GoverningRisk:        governing,
		GoverningAlgorithm:   governingAlgorithm,
		GoverningCategory:    category,
	}
	result.InterpretationText = interpret(result)

	c.logger.WithFields(logrus.Fields{
		"framingham_risk":     frs.ModifiedRisk,
		"qrisk3_risk":         qrisk.ModifiedRisk,
		"percent_difference":  percent,
		"agreement":           result.QualitativeAgreement,
		"governing_algorithm": governingAlgorithm,
	}).Debug("Risk scores compared")

	return result, nil
}

// PercentDifference is the absolute difference relative to the mean of both values.
// It is 0 when both values are 0.
func PercentDifference(a, b float64) float64 {
	mean := (a + b) / 2
	if mean == 0 {
		return 0
	}
	return math.Abs(a-b) / mean * 100
}

// ClassifyAgreement maps a percent difference to a qualitative agreement.
func ClassifyAgreement(percent float64) domain.Agreement {
	switch {
	case percent < agreementSimilarBelow:
		return domain.AGREEMENT_SIMILAR
	case percent < agreementModerateBelow:
		return domain.AGREEMENT_MODERATE
	default:
		return domain.AGREEMENT_SUBSTANTIAL
	}
}

func interpret(r *domain.ComparisonResult) string {
	higher, lower := r.FRSResult, r.QRISKResult
	if r.GoverningAlgorithm == domain.QRISK3 {
		higher, lower = r.QRISKResult, r.FRSResult
	}

	var lead string
	if r.AbsoluteDifference == 0 {
		lead = fmt.Sprintf("Framingham and QRISK3 both estimate %.1f%%.", r.GoverningRisk)
	} else {
		lead = fmt.Sprintf("%s gives the higher estimate (%.1f%% vs %.1f%% from %s); the scores show %s (%.1f%%).",
			higher.Algorithm, higher.ModifiedRisk, lower.ModifiedRisk, lower.Algorithm,
			r.QualitativeAgreement, r.PercentDifference)
	}

	return fmt.Sprintf("%s Using the more conservative estimate of %.1f%%, the combined category is %s.",
		lead, r.GoverningRisk, r.GoverningCategory.Label())
}
