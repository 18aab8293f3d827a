package domain

import (
	"testing"
)

func TestCategorizeRisk(t *testing.T) {
	tests := []struct {
		name     string
		risk     float64
		expected RiskCategory
	}{
		{"Zero", 0, LOW_RISK},
		{"Just below moderate", 9.999, LOW_RISK},
		{"Moderate lower bound", 10.0, MODERATE_RISK},
		{"Just below high", 19.999, MODERATE_RISK},
		{"High lower bound", 20.0, HIGH_RISK},
		{"Upper limit", 100.0, HIGH_RISK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeRisk(tt.risk); got != tt.expected {
				t.Errorf("CategorizeRisk(%v) = %s, expected %s", tt.risk, got, tt.expected)
			}
		})
	}
}

func TestRiskCategoryConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    RiskCategory
		expected string
	}{
		{"Low", LOW_RISK, "low"},
		{"Moderate", MODERATE_RISK, "moderate"},
		{"High", HIGH_RISK, "high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.value)
			}
		})
	}

	if RiskCategory("severe").IsValid() {
		t.Errorf("Unexpected category accepted")
	}
}

func TestSmokingStatus(t *testing.T) {
	tests := []struct {
		status  SmokingStatus
		valid   bool
		current bool
	}{
		{NON_SMOKER, true, false},
		{EX_SMOKER, true, false},
		{LIGHT_SMOKER, true, true},
		{MODERATE_SMOKER, true, true},
		{HEAVY_SMOKER, true, true},
		{SmokingStatus(5), false, true},
		{SmokingStatus(-1), false, false},
	}

	for _, tt := range tests {
		if tt.status.IsValid() != tt.valid {
			t.Errorf("IsValid(%d) = %t, expected %t", tt.status, tt.status.IsValid(), tt.valid)
		}
		if tt.status.IsCurrent() != tt.current {
			t.Errorf("IsCurrent(%d) = %t, expected %t", tt.status, tt.status.IsCurrent(), tt.current)
		}
	}
}

func TestDiabetesStatus(t *testing.T) {
	if !DiabetesStatus("").IsValid() || DiabetesStatus("").Present() {
		t.Errorf("Empty diabetes status should be valid and absent")
	}
	if !DIABETES_TYPE1.Present() || !DIABETES_TYPE2.Present() {
		t.Errorf("Type 1 and type 2 should count as present")
	}
	if DiabetesStatus("gestational").IsValid() {
		t.Errorf("Unexpected diabetes status accepted")
	}
}

func TestEthnicityRange(t *testing.T) {
	if Ethnicity(0).IsValid() || Ethnicity(10).IsValid() {
		t.Errorf("Codes outside 1-9 must be invalid")
	}
	for e := ETHNICITY_WHITE; e <= ETHNICITY_OTHER; e++ {
		if !e.IsValid() {
			t.Errorf("Ethnicity %d should be valid", e)
		}
	}
}

func TestAssessmentGoverning(t *testing.T) {
	frs := &RiskResult{Algorithm: FRAMINGHAM, ModifiedRisk: 15}
	qr := &RiskResult{Algorithm: QRISK3, ModifiedRisk: 22}

	single := &Assessment{Framingham: frs}
	if single.Governing() != frs {
		t.Errorf("Single Framingham assessment should govern with Framingham")
	}

	both := &Assessment{
		Framingham: frs,
		QRISK3:     qr,
		Comparison: &ComparisonResult{FRSResult: frs, QRISKResult: qr, GoverningAlgorithm: QRISK3},
	}
	if both.Governing() != qr {
		t.Errorf("Expected QRISK3 to govern")
	}
	if len(both.Algorithms()) != 2 {
		t.Errorf("Expected two algorithms, got %v", both.Algorithms())
	}
}
