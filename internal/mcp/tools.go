package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/audit"
	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/internal/service"
)

// Tool names.
const (
	ToolCalculateFramingham = "calculate_framingham"
	ToolCalculateQRISK3     = "calculate_qrisk3"
	ToolAssessCVDRisk       = "assess_cvd_risk"
	ToolRecommendTreatment  = "recommend_treatment"
	ToolCompareRiskScores   = "compare_risk_scores"
	ToolConvertUnits        = "convert_units"
)

func (s *Server) registerTools() {
	s.addTool(&mcp.Tool{
		Name:        ToolCalculateFramingham,
		Description: "Calculate the Framingham 10-year cardiovascular risk with the Lp(a) modifier, risk category and treatment recommendations.",
		InputSchema: profileSchema(),
	}, s.profileHandler(ToolCalculateFramingham, s.calculator.AssessFramingham))

	s.addTool(&mcp.Tool{
		Name:        ToolCalculateQRISK3,
		Description: "Calculate the QRISK3 10-year cardiovascular risk. Requires BMI or height and weight.",
		InputSchema: profileSchema(),
	}, s.profileHandler(ToolCalculateQRISK3, s.calculator.AssessQRISK3))

	s.addTool(&mcp.Tool{
		Name:        ToolAssessCVDRisk,
		Description: "Run Framingham and QRISK3, compare them and recommend treatment from the higher estimate.",
		InputSchema: profileSchema(),
	}, s.profileHandler(ToolAssessCVDRisk, s.calculator.AssessBoth))

	s.addTool(&mcp.Tool{
		Name:        ToolRecommendTreatment,
		Description: "Recommend statin, ezetimibe, PCSK9 and lifestyle measures for a 10-year risk percentage.",
		InputSchema: recommendationSchema(),
	}, s.handleRecommendTreatment)

	s.addTool(&mcp.Tool{
		Name:        ToolCompareRiskScores,
		Description: "Compare a Framingham and a QRISK3 result: difference, agreement and the governing estimate.",
		InputSchema: compareSchema(),
	}, s.handleCompareRiskScores)

	s.addTool(&mcp.Tool{
		Name:        ToolConvertUnits,
		Description: "Convert cholesterol, Lp(a), height or weight between supported units.",
		InputSchema: conversionSchema(),
	}, s.handleConvertUnits)
}

type assessFunc func(context.Context, *domain.PatientProfile) (*domain.Assessment, error)

func (s *Server) profileHandler(tool string, assess assessFunc) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		var params domain.ProfileRequest
		if err := s.bind(req, &params); err != nil {
			return s.errorResult(tool, err), nil
		}

		assessment, err := assess(ctx, params.ToProfile())
		if err != nil {
			return s.errorResult(tool, err), nil
		}

		s.logger.WithFields(logrus.Fields{
			"tool":               tool,
			"assessment_id":      assessment.ID,
			"governing_risk":     assessment.GoverningRisk,
			"governing_category": assessment.GoverningCategory,
			"duration_ms":        time.Since(start).Milliseconds(),
		}).Info("Tool invoked")

		return s.jsonResult(summarize(assessment), assessment)
	}
}

func (s *Server) handleRecommendTreatment(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params domain.RecommendationInput
	if err := s.bind(req, &params); err != nil {
		return s.errorResult(ToolRecommendTreatment, err), nil
	}

	set, err := s.calculator.Recommend(ctx, service.BuildRecommendationRequest(params))
	if err != nil {
		return s.errorResult(ToolRecommendTreatment, err), nil
	}

	s.logger.WithFields(logrus.Fields{
		"tool":          ToolRecommendTreatment,
		"risk_category": set.RiskCategory,
	}).Info("Tool invoked")

	return s.jsonResult(fmt.Sprintf("Recommendations for %s", set.RiskCategory.Label()), set)
}

func (s *Server) handleCompareRiskScores(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params domain.CompareInput
	if err := s.bind(req, &params); err != nil {
		return s.errorResult(ToolCompareRiskScores, err), nil
	}

	result, err := s.calculator.Compare(ctx, params.First, params.Second)
	if err != nil {
		return s.errorResult(ToolCompareRiskScores, err), nil
	}

	s.logger.WithFields(logrus.Fields{
		"tool":                ToolCompareRiskScores,
		"agreement":           result.QualitativeAgreement,
		"governing_algorithm": result.GoverningAlgorithm,
	}).Info("Tool invoked")

	return s.jsonResult(result.InterpretationText, result)
}

func (s *Server) handleConvertUnits(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params domain.ConversionInput
	if err := s.bind(req, &params); err != nil {
		return s.errorResult(ToolConvertUnits, err), nil
	}

	result, err := service.ConvertUnits(params)
	if err != nil {
		return s.errorResult(ToolConvertUnits, err), nil
	}
	return s.jsonResult(fmt.Sprintf("%g %s", result.Value, result.Unit), result)
}

// bind decodes tool arguments and enforces the same binding rules as the HTTP API.
func (s *Server) bind(req *mcp.CallToolRequest, dest interface{}) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return domain.NewValidationError("arguments", "tool arguments are required", nil)
	}
	if err := json.Unmarshal(req.Params.Arguments, dest); err != nil {
		return fmt.Errorf("%w: %v", errMalformedArguments, err)
	}
	return s.validator.ValidateStruct(dest)
}

var errMalformedArguments = errors.New("malformed tool arguments")

// jsonResult returns a one-line summary followed by the JSON payload.
func (s *Server) jsonResult(summary string, payload interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}

// errorResult reports a failed call to the client as a tool error.
func (s *Server) errorResult(tool string, err error) *mcp.CallToolResult {
	code := errorCode(err)
	s.logger.WithFields(logrus.Fields{
		"tool":  tool,
		"code":  code,
		"error": err.Error(),
	}).Warn("Tool call failed")

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Error: %s - %v", code, err)},
		},
		IsError: true,
	}
}

func errorCode(err error) string {
	var (
		validationErrs validator.ValidationErrors
		domainErr      *domain.ValidationError
	)
	switch {
	case errors.As(err, &validationErrs), errors.As(err, &domainErr):
		return domain.ErrValidation
	case errors.Is(err, errMalformedArguments), errors.Is(err, audit.ErrInvalidExport):
		return domain.ErrInvalidInput
	case errors.Is(err, errAuditStore):
		return domain.ErrDatabaseError
	default:
		return domain.ErrCalculation
	}
}

func summarize(a *domain.Assessment) string {
	summary := fmt.Sprintf("10-year CVD risk %.1f%% (%s)", a.GoverningRisk, a.GoverningCategory.Label())
	if a.Comparison != nil {
		summary += ". " + a.Comparison.InterpretationText
	}
	for _, w := range a.Warnings {
		summary += "\nWarning: " + w
	}
	return summary
}

func object(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func prop(typ, description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: typ, Description: description}
}

func measurementSchema(description string) *jsonschema.Schema {
	s := object([]string{"value"}, map[string]*jsonschema.Schema{
		"value": prop("number", "Measured value"),
		"unit":  prop("string", "Unit of the value"),
	})
	s.Description = description
	return s
}

func profileSchema() *jsonschema.Schema {
	return object(
		[]string{"age", "sex", "systolic_bp", "total_cholesterol", "hdl_cholesterol"},
		map[string]*jsonschema.Schema{
			"age":               prop("integer", "Age in years"),
			"sex":               {Type: "string", Enum: []any{"male", "female"}},
			"systolic_bp":       prop("number", "Systolic blood pressure in mmHg"),
			"systolic_readings": {Type: "array", Items: prop("number", "mmHg"), Description: "Repeated SBP readings used to derive variability"},
			"sbp_variability":   prop("number", "Standard deviation of repeated SBP readings"),
			"bp_treatment":      prop("boolean", "On antihypertensive treatment"),
			"total_cholesterol": measurementSchema("Total cholesterol, mmol/L (default) or mg/dL"),
			"hdl_cholesterol":   measurementSchema("HDL cholesterol, mmol/L (default) or mg/dL"),
			"ldl_cholesterol":   measurementSchema("LDL cholesterol, mmol/L (default) or mg/dL"),
			"smoking":           prop("integer", "QRISK3 smoking category 0-4 (non, ex, light, moderate, heavy)"),
			"smoker":            prop("boolean", "Current smoker, used when smoking is absent"),
			"diabetes":          {Type: "string", Enum: []any{"none", "type1", "type2"}},
			"diabetic":          prop("boolean", "Any diabetes, used when diabetes is absent"),
			"family_history":    prop("boolean", "Premature CVD in a first-degree relative"),
			"lpa":               measurementSchema("Lipoprotein(a), mg/dL (default) or nmol/L"),
			"comorbidities": object(nil, map[string]*jsonschema.Schema{
				"atrial_fibrillation":     prop("boolean", ""),
				"rheumatoid_arthritis":    prop("boolean", ""),
				"chronic_kidney_disease":  prop("boolean", "CKD stage 3-5"),
				"migraine":                prop("boolean", ""),
				"sle":                     prop("boolean", "Systemic lupus erythematosus"),
				"severe_mental_illness":   prop("boolean", ""),
				"atypical_antipsychotics": prop("boolean", ""),
				"corticosteroids":         prop("boolean", "Regular oral corticosteroids"),
				"erectile_dysfunction":    prop("boolean", "Men only"),
			}),
			"ethnicity": prop("integer", "QRISK3 ethnicity code 1-9"),
			"bmi":       prop("number", "Body mass index in kg/m2"),
			"height":    measurementSchema("Height, cm (default), m or in"),
			"weight":    measurementSchema("Weight, kg (default) or lb"),
			"townsend":  prop("number", "Townsend deprivation score"),
		})
}

func recommendationSchema() *jsonschema.Schema {
	return object([]string{"risk_percent"}, map[string]*jsonschema.Schema{
		"risk_percent": prop("number", "10-year risk percentage after the Lp(a) modifier"),
		"ldl":          measurementSchema("LDL cholesterol, mmol/L (default) or mg/dL"),
		"diabetes":     prop("boolean", "Any diabetes"),
		"age":          prop("integer", "Age in years"),
		"lpa":          measurementSchema("Lipoprotein(a), mg/dL (default) or nmol/L"),
		"lpa_elevated": prop("boolean", "Lp(a) known to be elevated"),
	})
}

func riskResultSchema() *jsonschema.Schema {
	return object([]string{"algorithm", "modified_risk"}, map[string]*jsonschema.Schema{
		"algorithm":     {Type: "string", Enum: []any{"Framingham", "QRISK3"}},
		"base_risk":     prop("number", "Risk before the Lp(a) modifier"),
		"lpa_modifier":  prop("number", "Lp(a) multiplier"),
		"modified_risk": prop("number", "Risk after the Lp(a) modifier"),
		"risk_category": prop("string", "low, moderate or high"),
	})
}

func compareSchema() *jsonschema.Schema {
	return object([]string{"first", "second"}, map[string]*jsonschema.Schema{
		"first":  riskResultSchema(),
		"second": riskResultSchema(),
	})
}

func conversionSchema() *jsonschema.Schema {
	return object([]string{"quantity", "value", "from", "to"}, map[string]*jsonschema.Schema{
		"quantity": {Type: "string", Enum: []any{"cholesterol", "lpa", "height", "weight"}},
		"value":    prop("number", "Value to convert"),
		"from":     prop("string", "Source unit"),
		"to":       prop("string", "Target unit"),
	})
}
