package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/internal/service"
)

// Resource URIs.
const (
	ResourceRecommendationRules = "cvd-risk://guidelines/recommendations"
	ResourceLpaModifier         = "cvd-risk://guidelines/lpa-modifier"
	ResourceRiskCategories      = "cvd-risk://guidelines/risk-categories"
)

// PromptRiskReview is the guided assessment prompt.
const PromptRiskReview = "cvd_risk_review"

const jsonMIME = "application/json"

var allReasons = []domain.RecommendationReason{
	domain.REASON_HIGH_INTENSITY_INDICATED,
	domain.REASON_EZETIMIBE_ADD_ON_HIGH,
	domain.REASON_PCSK9_CONSIDERATION,
	domain.REASON_LPA_AGGRESSIVENESS,
	domain.REASON_LDL_THRESHOLD_MODERATE,
	domain.REASON_DIABETES_AGE_THRESHOLD,
	domain.REASON_MODERATE_RISK_GENERAL,
	domain.REASON_EZETIMIBE_MODERATE,
	domain.REASON_SEVERE_HYPERCHOLESTEROLEMIA,
	domain.REASON_FH_GENETIC_TESTING,
	domain.REASON_NOT_RECOMMENDED_LOW,
	domain.REASON_LIFESTYLE_DIET,
	domain.REASON_LIFESTYLE_ACTIVITY,
	domain.REASON_LIFESTYLE_SMOKING,
}

// lpaReferencePoints are the band edges of the Lp(a) modifier curve in mg/dL.
var lpaReferencePoints = []float64{0, 30, 50, 100, 200, 300}

func (s *Server) registerResources() {
	resources := []struct {
		resource *mcp.Resource
		build    func() interface{}
	}{
		{
			&mcp.Resource{
				URI:         ResourceRecommendationRules,
				Name:        "recommendation-rules",
				Description: "Rationale and evidence quality for every treatment recommendation reason",
				MIMEType:    jsonMIME,
			},
			recommendationRules,
		},
		{
			&mcp.Resource{
				URI:         ResourceLpaModifier,
				Name:        "lpa-modifier",
				Description: "Lp(a) risk multiplier at each band edge in mg/dL",
				MIMEType:    jsonMIME,
			},
			lpaModifierTable,
		},
		{
			&mcp.Resource{
				URI:         ResourceRiskCategories,
				Name:        "risk-categories",
				Description: "10-year risk category boundaries",
				MIMEType:    jsonMIME,
			},
			riskCategories,
		},
	}

	for _, r := range resources {
		build := r.build
		s.mcpServer.AddResource(r.resource, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			data, err := json.MarshalIndent(build(), "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to encode resource: %w", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: req.Params.URI, MIMEType: jsonMIME, Text: string(data)}},
			}, nil
		})
		s.resources = append(s.resources, r.resource.URI)
	}
}

type reasonRule struct {
	Reason          domain.RecommendationReason `json:"reason"`
	Rationale       string                      `json:"rationale"`
	EvidenceQuality domain.EvidenceQuality      `json:"evidence_quality"`
}

func recommendationRules() interface{} {
	rules := make([]reasonRule, 0, len(allReasons))
	for _, reason := range allReasons {
		rationale, evidence, ok := service.RationaleFor(reason)
		if !ok {
			continue
		}
		rules = append(rules, reasonRule{Reason: reason, Rationale: rationale, EvidenceQuality: evidence})
	}
	return rules
}

func lpaModifierTable() interface{} {
	type point struct {
		LpaMgdl  float64 `json:"lpa_mgdl"`
		Modifier float64 `json:"modifier"`
	}
	points := make([]point, 0, len(lpaReferencePoints))
	for _, v := range lpaReferencePoints {
		lpa := v
		points = append(points, point{LpaMgdl: lpa, Modifier: service.LpaModifier(&lpa)})
	}
	return map[string]interface{}{
		"interpolation":      "linear within each band",
		"elevated_threshold": service.LpaElevatedThreshold,
		"points":             points,
	}
}

func riskCategories() interface{} {
	return []map[string]interface{}{
		{"category": domain.LOW_RISK, "label": domain.LOW_RISK.Label(), "upper_exclusive": 10.0},
		{"category": domain.MODERATE_RISK, "label": domain.MODERATE_RISK.Label(), "lower": 10.0, "upper_exclusive": 20.0},
		{"category": domain.HIGH_RISK, "label": domain.HIGH_RISK.Label(), "lower": 20.0},
	}
}

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        PromptRiskReview,
		Description: "Guide a cardiovascular risk review from a free-text patient summary",
		Arguments: []*mcp.PromptArgument{
			{Name: "patient_summary", Description: "Age, sex, blood pressure, lipids and risk factors", Required: true},
			{Name: "focus", Description: "Optional emphasis, e.g. lipid therapy or Lp(a)"},
		},
	}, func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return riskReviewPrompt(req.Params.Arguments)
	})
	s.prompts = append(s.prompts, PromptRiskReview)
}

func riskReviewPrompt(args map[string]string) (*mcp.GetPromptResult, error) {
	summary := strings.TrimSpace(args["patient_summary"])
	if summary == "" {
		return nil, fmt.Errorf("patient_summary is required")
	}

	var b strings.Builder
	b.WriteString("Review the 10-year cardiovascular risk of this patient.\n\n")
	b.WriteString("Patient: " + summary + "\n\n")
	fmt.Fprintf(&b, "1. Extract the profile and call %s. Ask for any required value that is missing rather than guessing it.\n", ToolAssessCVDRisk)
	b.WriteString("2. Report both scores, their agreement and the governing estimate with its category.\n")
	b.WriteString("3. Summarize the recommendations with their evidence quality and list any warnings.\n")
	if focus := strings.TrimSpace(args["focus"]); focus != "" {
		b.WriteString("Focus on: " + focus + "\n")
	}

	return &mcp.GetPromptResult{
		Description: "Cardiovascular risk review",
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: b.String()}},
		},
	}, nil
}
