package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// LDL thresholds in mmol/L.
const (
	ldlEzetimibeHigh      = 1.8
	ldlPCSK9High          = 2.5
	ldlStatinModerate     = 3.5
	ldlEzetimibeModerate  = 2.0
	ldlSevereHypercholLow = 5.0
	diabetesStatinMinAge  = 40
)

// reasonInfo is the fixed rationale attached to a recommendation reason.
type reasonInfo struct {
	rationale string
	evidence  domain.EvidenceQuality
}

var reasonTable = map[domain.RecommendationReason]reasonInfo{
	domain.REASON_HIGH_INTENSITY_INDICATED: {
		rationale: "High-intensity statins reduce major vascular events by roughly 30-40% in patients at high cardiovascular risk.",
		evidence:  domain.EVIDENCE_HIGH,
	},
	domain.REASON_EZETIMIBE_ADD_ON_HIGH: {
		rationale: "Adding ezetimibe to statin therapy lowers LDL a further 20-25% and reduced events in IMPROVE-IT.",
		evidence:  domain.EVIDENCE_HIGH,
	},
	domain.REASON_PCSK9_CONSIDERATION: {
		rationale: "PCSK9 inhibitors lower LDL by about 60% on top of statins and reduced events in FOURIER and ODYSSEY OUTCOMES.",
		evidence:  domain.EVIDENCE_HIGH,
	},
	domain.REASON_LPA_AGGRESSIVENESS: {
		rationale: "Elevated Lp(a) is an independent, causal risk factor not lowered by statins; residual risk warrants lower LDL targets.",
		evidence:  domain.EVIDENCE_MODERATE,
	},
	domain.REASON_LDL_THRESHOLD_MODERATE: {
		rationale: "LDL at or above 3.5 mmol/L in moderate-risk patients is a guideline threshold for statin therapy.",
		evidence:  domain.EVIDENCE_HIGH,
	},
	domain.REASON_DIABETES_AGE_THRESHOLD: {
		rationale: "Adults with diabetes aged 40 or over benefit from statin therapy irrespective of baseline LDL.",
		evidence:  domain.EVIDENCE_HIGH,
	},
	domain.REASON_MODERATE_RISK_GENERAL: {
		rationale: "Statins reduce cardiovascular events in moderate-risk primary prevention; the decision should be shared with the patient.",
		evidence:  domain.EVIDENCE_MODERATE,
	},
	domain.REASON_EZETIMIBE_MODERATE: {
		rationale: "Ezetimibe is a well tolerated option when LDL remains above target or statins are not tolerated.",
		evidence:  domain.EVIDENCE_MODERATE,
	},
	domain.REASON_SEVERE_HYPERCHOLESTEROLEMIA: {
		rationale: "LDL at or above 5.0 mmol/L carries high lifetime risk regardless of the 10-year estimate.",
		evidence:  domain.EVIDENCE_HIGH,
	},
	domain.REASON_FH_GENETIC_TESTING: {
		rationale: "Severe hypercholesterolaemia may indicate familial hypercholesterolaemia; diagnosis enables cascade testing of relatives.",
		evidence:  domain.EVIDENCE_MODERATE,
	},
	domain.REASON_NOT_RECOMMENDED_LOW: {
		rationale: "In low-risk patients the absolute benefit of pharmacotherapy is small; lifestyle measures are first line.",
		evidence:  domain.EVIDENCE_MODERATE,
	},
	domain.REASON_LIFESTYLE_DIET: {
		rationale: "Mediterranean-style diets reduce cardiovascular events and modestly lower LDL.",
		evidence:  domain.EVIDENCE_HIGH,
	},
	domain.REASON_LIFESTYLE_ACTIVITY: {
		rationale: "Regular physical activity lowers blood pressure, improves lipids and reduces cardiovascular mortality.",
		evidence:  domain.EVIDENCE_HIGH,
	},
	domain.REASON_LIFESTYLE_SMOKING: {
		rationale: "Smoking cessation roughly halves excess cardiovascular risk within a few years.",
		evidence:  domain.EVIDENCE_HIGH,
	},
}

// RecommendationRules evaluates the treatment decision tree.
type RecommendationRules struct {
	logger *logrus.Logger
}

// NewRecommendationRules creates a new recommendation engine
func NewRecommendationRules(logger *logrus.Logger) *RecommendationRules {
	return &RecommendationRules{logger: logger}
}

// Recommend builds the recommendation set for a modifier-adjusted risk.
func (r *RecommendationRules) Recommend(req domain.RecommendationRequest) *domain.RecommendationSet {
	category := CategorizeRisk(req.RiskPercent)
	set := &domain.RecommendationSet{
		RiskCategory: category,
		OtherChanges: []domain.Recommendation{},
	}

	switch category {
	case domain.HIGH_RISK:
		r.recommendHigh(set, req)
	case domain.MODERATE_RISK:
		r.recommendModerate(set, req)
	default:
		r.recommendLow(set, req)
	}

	set.NonPharmacological = []domain.Recommendation{
		recommend(domain.REASON_LIFESTYLE_DIET,
			"Adopt a Mediterranean-style diet low in saturated fat and rich in fibre, fruit and vegetables"),
		recommend(domain.REASON_LIFESTYLE_ACTIVITY,
			"At least 150 minutes of moderate-intensity physical activity per week"),
		recommend(domain.REASON_LIFESTYLE_SMOKING,
			"Stop smoking and avoid second-hand smoke; offer cessation support where relevant"),
	}

	r.logger.WithFields(logrus.Fields{
		"risk_percent":  req.RiskPercent,
		"risk_category": category,
		"statin":        reasonOf(set.Statin),
		"ezetimibe":     reasonOf(set.Ezetimibe),
		"pcsk9":         reasonOf(set.PCSK9),
		"other_changes": len(set.OtherChanges),
	}).Debug("Recommendations generated")

	return set
}

func (r *RecommendationRules) recommendHigh(set *domain.RecommendationSet, req domain.RecommendationRequest) {
	set.Statin = ptr(recommend(domain.REASON_HIGH_INTENSITY_INDICATED,
		"High-intensity statin therapy is indicated (e.g. atorvastatin 40-80 mg or rosuvastatin 20-40 mg)"))

	if req.LDL != nil && *req.LDL >= ldlEzetimibeHigh {
		set.Ezetimibe = ptr(recommend(domain.REASON_EZETIMIBE_ADD_ON_HIGH,
			fmt.Sprintf("Add ezetimibe 10 mg: LDL %.1f mmol/L is at or above %.1f mmol/L", *req.LDL, ldlEzetimibeHigh)))

		// The pre-treatment LDL stands in for the LDL expected on ezetimibe.
		if *req.LDL >= ldlPCSK9High {
			set.PCSK9 = ptr(recommend(domain.REASON_PCSK9_CONSIDERATION,
				fmt.Sprintf("Consider a PCSK9 inhibitor if LDL remains at or above %.1f mmol/L despite statin and ezetimibe", ldlPCSK9High)))
		}
	}

	if req.LpaElevated {
		set.OtherChanges = append(set.OtherChanges, recommend(domain.REASON_LPA_AGGRESSIVENESS,
			"Elevated Lp(a): pursue more aggressive LDL lowering and manage other risk factors intensively"))
	}
}

func (r *RecommendationRules) recommendModerate(set *domain.RecommendationSet, req domain.RecommendationRequest) {
	switch {
	case req.LDL != nil && *req.LDL >= ldlStatinModerate:
		set.Statin = ptr(recommend(domain.REASON_LDL_THRESHOLD_MODERATE,
			fmt.Sprintf("Statin therapy recommended: LDL %.1f mmol/L is at or above %.1f mmol/L", *req.LDL, ldlStatinModerate)))
	case req.Diabetes && req.Age != nil && *req.Age >= diabetesStatinMinAge:
		set.Statin = ptr(recommend(domain.REASON_DIABETES_AGE_THRESHOLD,
			fmt.Sprintf("Statin therapy recommended: diabetes at age %d", *req.Age)))
	default:
		set.Statin = ptr(recommend(domain.REASON_MODERATE_RISK_GENERAL,
			"Consider moderate- to high-intensity statin therapy after shared decision-making"))
	}

	if req.LDL != nil && *req.LDL >= ldlEzetimibeModerate {
		set.Ezetimibe = ptr(recommend(domain.REASON_EZETIMIBE_MODERATE,
			"Consider ezetimibe if LDL remains above target on statin therapy or statins are not tolerated"))
	}
}

func (r *RecommendationRules) recommendLow(set *domain.RecommendationSet, req domain.RecommendationRequest) {
	if req.LDL != nil && *req.LDL >= ldlSevereHypercholLow {
		set.Statin = ptr(recommend(domain.REASON_SEVERE_HYPERCHOLESTEROLEMIA,
			fmt.Sprintf("Consider statin therapy: LDL %.1f mmol/L is at or above %.1f mmol/L", *req.LDL, ldlSevereHypercholLow)))
		set.OtherChanges = append(set.OtherChanges, recommend(domain.REASON_FH_GENETIC_TESTING,
			"Consider genetic testing for familial hypercholesterolaemia"))
		return
	}

	set.Statin = ptr(recommend(domain.REASON_NOT_RECOMMENDED_LOW, NotRecommendedText))
}

// NotRecommendedText is the statin text for low-risk patients without severe hypercholesterolaemia.
const NotRecommendedText = "Pharmacotherapy is generally not recommended at this risk level"

// recommend pairs recommendation text with the rationale of its reason.
func recommend(reason domain.RecommendationReason, text string) domain.Recommendation {
	info := reasonTable[reason]
	return domain.Recommendation{
		Text:            text,
		Reason:          reason,
		Rationale:       info.rationale,
		EvidenceQuality: info.evidence,
	}
}

// RationaleFor returns the fixed rationale and evidence quality for a reason.
func RationaleFor(reason domain.RecommendationReason) (string, domain.EvidenceQuality, bool) {
	info, ok := reasonTable[reason]
	return info.rationale, info.evidence, ok
}

func reasonOf(rec *domain.Recommendation) domain.RecommendationReason {
	if rec == nil {
		return ""
	}
	return rec.Reason
}

func ptr[T any](v T) *T {
	return &v
}
