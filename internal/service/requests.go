package service

import (
	"fmt"

	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/pkg/units"
)

// BuildRecommendationRequest normalizes a transport recommendation request. LDL is
// converted to mmol/L (default unit mmol/L). A measured Lp(a) sets the elevated
// flag; an explicit flag is kept.
func BuildRecommendationRequest(in domain.RecommendationInput) domain.RecommendationRequest {
	req := domain.RecommendationRequest{
		Diabetes:    in.Diabetes,
		Age:         in.Age,
		LpaElevated: in.LpaElevated,
	}
	if in.RiskPercent != nil {
		req.RiskPercent = *in.RiskPercent
	}
	if in.LDL != nil {
		req.LDL = units.Optional(in.LDL.Value, unitOr(units.Unit(in.LDL.Unit), units.MmolPerL), units.MmolPerL, units.ConvertCholesterol)
	}
	if in.Lpa != nil {
		lpa := units.Optional(in.Lpa.Value, unitOr(units.Unit(in.Lpa.Unit), units.MgPerDL), units.MgPerDL, units.ConvertLpa)
		req.LpaElevated = req.LpaElevated || LpaElevated(lpa)
	}
	return req
}

// ConvertUnits performs a single conversion between supported units of a quantity.
func ConvertUnits(in domain.ConversionInput) (*domain.ConversionResult, error) {
	if in.Value == nil {
		return nil, domain.NewValidationError("value", "value is required", nil)
	}
	quantity := units.Quantity(in.Quantity)
	from, to := units.Unit(in.From), units.Unit(in.To)

	convert, ok := units.ConverterFor(quantity)
	if !ok || !units.Supports(quantity, from, to) {
		return nil, domain.WrapValidationError("unit",
			fmt.Sprintf("%s: %s -> %s", in.Quantity, in.From, in.To), domain.ErrUnsupportedUnit)
	}

	return &domain.ConversionResult{
		Quantity: in.Quantity,
		Value:    convert(*in.Value, from, to),
		Unit:     string(units.Normalize(to)),
	}, nil
}
