// Package units converts the clinical quantities a risk calculation consumes between
// their supported unit pairs. All conversions are total: a same-unit or unsupported
// pair returns the input unchanged so callers can detect the no-op.
package units

import (
	"strings"
)

// Unit is a clinical unit symbol.
type Unit string

const (
	MgPerDL    Unit = "mg/dL"
	MmolPerL   Unit = "mmol/L"
	NmolPerL   Unit = "nmol/L"
	Centimetre Unit = "cm"
	Metre      Unit = "m"
	Inch       Unit = "in"
	Kilogram   Unit = "kg"
	Pound      Unit = "lb"
)

// Conversion factors
const (
	// CholesterolFactor converts mmol/L to mg/dL for total, HDL and LDL cholesterol.
	CholesterolFactor = 38.67
	// LpaMgToNmol converts Lp(a) mg/dL to nmol/L. The inverse is 0.4.
	LpaMgToNmol = 2.5
	// CentimetresPerInch is exact by definition.
	CentimetresPerInch = 2.54
	// KilogramsPerPound is exact by definition.
	KilogramsPerPound = 0.45359237
)

// Normalize maps common spellings onto the canonical unit symbols.
func Normalize(u Unit) Unit {
	switch strings.ToLower(strings.TrimSpace(string(u))) {
	case "mg/dl", "mgdl", "mg_dl":
		return MgPerDL
	case "mmol/l", "mmoll", "mmol_l":
		return MmolPerL
	case "nmol/l", "nmoll", "nmol_l":
		return NmolPerL
	case "cm", "centimetre", "centimeter":
		return Centimetre
	case "m", "metre", "meter":
		return Metre
	case "in", "inch", "inches":
		return Inch
	case "kg", "kilogram", "kilograms":
		return Kilogram
	case "lb", "lbs", "pound", "pounds":
		return Pound
	default:
		return u
	}
}

// ConvertCholesterol converts a cholesterol concentration between mg/dL and mmol/L.
// The round trip is approximate because of the fixed factor.
func ConvertCholesterol(value float64, from, to Unit) float64 {
	from, to = Normalize(from), Normalize(to)
	switch {
	case from == MgPerDL && to == MmolPerL:
		return value / CholesterolFactor
	case from == MmolPerL && to == MgPerDL:
		return value * CholesterolFactor
	default:
		return value
	}
}

// ConvertLpa converts an Lp(a) concentration between mg/dL and nmol/L.
//
// nmol/L to mg/dL divides by 2.5 rather than multiplying by 0.4, so converting
// back always yields a value that converts forward to the same nmol/L. The
// mg/dL -> nmol/L -> mg/dL round trip is exact when the mantissa of the mg/dL
// value is below 1.6 and within one ulp otherwise. Above 1.6 the forward map
// sends several adjacent doubles to one nmol/L value, so no inverse can be exact.
func ConvertLpa(value float64, from, to Unit) float64 {
	from, to = Normalize(from), Normalize(to)
	switch {
	case from == MgPerDL && to == NmolPerL:
		return value * LpaMgToNmol
	case from == NmolPerL && to == MgPerDL:
		return value / LpaMgToNmol
	default:
		return value
	}
}

// ConvertHeight converts a height to the target unit. Supported: cm, m, in.
func ConvertHeight(value float64, from, to Unit) float64 {
	from, to = Normalize(from), Normalize(to)
	if from == to {
		return value
	}
	var cm float64
	switch from {
	case Centimetre:
		cm = value
	case Metre:
		cm = value * 100
	case Inch:
		cm = value * CentimetresPerInch
	default:
		return value
	}
	switch to {
	case Centimetre:
		return cm
	case Metre:
		return cm / 100
	case Inch:
		return cm / CentimetresPerInch
	default:
		return value
	}
}

// FeetInchesToCentimetres converts a feet-and-inches height to centimetres.
func FeetInchesToCentimetres(feet, inches float64) float64 {
	return (feet*12 + inches) * CentimetresPerInch
}

// ConvertWeight converts a weight between kg and lb.
func ConvertWeight(value float64, from, to Unit) float64 {
	from, to = Normalize(from), Normalize(to)
	switch {
	case from == Pound && to == Kilogram:
		return value * KilogramsPerPound
	case from == Kilogram && to == Pound:
		return value / KilogramsPerPound
	default:
		return value
	}
}

// BMI returns the body mass index for a weight in kg and a height in cm.
func BMI(weightKg, heightCm float64) float64 {
	m := heightCm / 100
	return weightKg / (m * m)
}

// Optional applies a conversion to an optional value. A nil input yields nil.
func Optional(value *float64, from, to Unit, convert func(float64, Unit, Unit) float64) *float64 {
	if value == nil {
		return nil
	}
	out := convert(*value, from, to)
	return &out
}

// Quantity names a convertible clinical quantity.
type Quantity string

const (
	Cholesterol Quantity = "cholesterol"
	Lpa         Quantity = "lpa"
	Height      Quantity = "height"
	Weight      Quantity = "weight"
)

// ConverterFor returns the conversion function for a quantity.
func ConverterFor(q Quantity) (func(float64, Unit, Unit) float64, bool) {
	switch Quantity(strings.ToLower(strings.TrimSpace(string(q)))) {
	case Cholesterol:
		return ConvertCholesterol, true
	case Lpa:
		return ConvertLpa, true
	case Height:
		return ConvertHeight, true
	case Weight:
		return ConvertWeight, true
	default:
		return nil, false
	}
}

var quantityUnits = map[Quantity][]Unit{
	Cholesterol: {MgPerDL, MmolPerL},
	Lpa:         {MgPerDL, NmolPerL},
	Height:      {Centimetre, Metre, Inch},
	Weight:      {Kilogram, Pound},
}

// Supports reports whether both units belong to the quantity, so that ConverterFor's
// function performs a real conversion rather than a no-op.
func Supports(q Quantity, from, to Unit) bool {
	allowed := quantityUnits[Quantity(strings.ToLower(strings.TrimSpace(string(q))))]
	return containsUnit(allowed, Normalize(from)) && containsUnit(allowed, Normalize(to))
}

func containsUnit(list []Unit, u Unit) bool {
	for _, v := range list {
		if v == u {
			return true
		}
	}
	return false
}
