// Package emr publishes risk assessments to an EMR as FHIR R4 RiskAssessment resources.
package emr

import (
	"fmt"
	"strings"
	"time"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// Coding systems. Local URNs are used where no standard code exists.
const (
	AssessmentIdentifierSystem = "urn:cvd-risk:assessment"
	MethodSystem               = "urn:cvd-risk:method"
	RiskProbabilitySystem      = "http://terminology.hl7.org/CodeSystem/risk-probability"
	UCUMSystem                 = "http://unitsofmeasure.org"
)

// OutcomeText describes what every prediction estimates.
const OutcomeText = "Cardiovascular disease event within 10 years"

// Minimal FHIR R4 datatypes needed for a RiskAssessment.

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Identifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

type Reference struct {
	Reference string `json:"reference"`
}

type Quantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	System string  `json:"system,omitempty"`
	Code   string  `json:"code,omitempty"`
}

type Range struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
}

type Annotation struct {
	Text string `json:"text"`
}

// Prediction is one RiskAssessment.prediction entry.
type Prediction struct {
	Outcome            CodeableConcept  `json:"outcome"`
	ProbabilityDecimal float64          `json:"probabilityDecimal"`
	QualitativeRisk    *CodeableConcept `json:"qualitativeRisk,omitempty"`
	WhenRange          *Range           `json:"whenRange,omitempty"`
	Rationale          string           `json:"rationale,omitempty"`
}

// RiskAssessment is the FHIR R4 resource sent to the EMR.
type RiskAssessment struct {
	ResourceType       string          `json:"resourceType"`
	ID                 string          `json:"id,omitempty"`
	Identifier         []Identifier    `json:"identifier,omitempty"`
	Status             string          `json:"status"`
	Method             CodeableConcept `json:"method"`
	Subject            Reference       `json:"subject"`
	OccurrenceDateTime string          `json:"occurrenceDateTime"`
	Prediction         []Prediction    `json:"prediction"`
	Mitigation         string          `json:"mitigation,omitempty"`
	Note               []Annotation    `json:"note,omitempty"`
}

// PatientReference normalizes a patient id into a FHIR reference.
func PatientReference(patientRef string) string {
	if strings.Contains(patientRef, "/") {
		return patientRef
	}
	return "Patient/" + patientRef
}

// MapAssessment converts an assessment into a RiskAssessment resource. The governing
// estimate is listed first.
func MapAssessment(patientRef string, a *domain.Assessment) (*RiskAssessment, error) {
	if strings.TrimSpace(patientRef) == "" {
		return nil, domain.NewValidationError("patient_ref", "patient reference is required", patientRef)
	}
	if a == nil {
		return nil, domain.NewValidationError("assessment", "assessment is required", nil)
	}

	algorithms := make([]string, 0, 2)
	for _, alg := range a.Algorithms() {
		algorithms = append(algorithms, string(alg))
	}
	method := strings.Join(algorithms, "+")

	res := &RiskAssessment{
		ResourceType: "RiskAssessment",
		Identifier:   []Identifier{{System: AssessmentIdentifierSystem, Value: a.ID}},
		Status:       "final",
		Method: CodeableConcept{
			Coding: []Coding{{System: MethodSystem, Code: method, Display: methodDisplay(algorithms)}},
		},
		Subject:            Reference{Reference: PatientReference(patientRef)},
		OccurrenceDateTime: occurrence(a.CreatedAt),
	}

	governing := a.Governing()
	if governing != nil {
		res.Prediction = append(res.Prediction, prediction(governing))
	}
	for _, r := range []*domain.RiskResult{a.Framingham, a.QRISK3} {
		if r != nil && r != governing {
			res.Prediction = append(res.Prediction, prediction(r))
		}
	}

	if a.Recommendations != nil && a.Recommendations.Statin != nil {
		res.Mitigation = a.Recommendations.Statin.Text
	}
	if a.Comparison != nil {
		res.Note = append(res.Note, Annotation{Text: a.Comparison.InterpretationText})
	}
	for _, w := range a.Warnings {
		res.Note = append(res.Note, Annotation{Text: w})
	}

	return res, nil
}

func prediction(r *domain.RiskResult) Prediction {
	rationale := fmt.Sprintf("%s base risk %.1f%%", r.Algorithm, r.BaseRisk)
	if r.LpaModifier != 1 {
		rationale += fmt.Sprintf(", Lp(a) modifier x%.2f", r.LpaModifier)
	}
	return Prediction{
		Outcome:            CodeableConcept{Text: OutcomeText},
		ProbabilityDecimal: r.ModifiedRisk / 100,
		QualitativeRisk: &CodeableConcept{
			Coding: []Coding{{System: RiskProbabilitySystem, Code: string(r.RiskCategory)}},
		},
		WhenRange: &Range{High: &Quantity{Value: 10, Unit: "years", System: UCUMSystem, Code: "a"}},
		Rationale: rationale,
	}
}

func methodDisplay(algorithms []string) string {
	if len(algorithms) == 2 {
		return "Framingham and QRISK3 10-year CVD risk, higher estimate governing"
	}
	return strings.Join(algorithms, "") + " 10-year CVD risk"
}

func occurrence(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
