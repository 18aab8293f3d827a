package service

import (
	"math"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// CategorizeRisk maps a modifier-adjusted risk percentage to its category.
func CategorizeRisk(modifiedRisk float64) domain.RiskCategory {
	return domain.CategorizeRisk(modifiedRisk)
}

// applyModifier scales a base risk by the Lp(a) modifier and clamps it to [0, 100].
func applyModifier(baseRisk, modifier float64) float64 {
	return math.Min(100, math.Max(0, baseRisk*modifier))
}

// buildResult assembles the immutable result shared by both algorithms.
func buildResult(algorithm domain.Algorithm, baseRisk float64, lpaMgdl *float64, factors []domain.ContributingFactor) *domain.RiskResult {
	modifier := LpaModifier(lpaMgdl)
	modified := applyModifier(baseRisk, modifier)

	var lpa *float64
	if lpaMgdl != nil {
		v := *lpaMgdl
		lpa = &v
	}

	return &domain.RiskResult{
		Algorithm:           algorithm,
		BaseRisk:            baseRisk,
		LpaModifier:         modifier,
		ModifiedRisk:        modified,
		RiskCategory:        CategorizeRisk(modified),
		ContributingFactors: factors,
		LpaMgdl:             lpa,
	}
}
