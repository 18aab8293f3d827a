package service

// Lp(a) risk modifier bands in mg/dL, after Willeit et al. (Lancet 2018).
// Each band interpolates linearly from its lower to its upper modifier so the
// function is continuous and non-decreasing.
type lpaBand struct {
	lower, upper     float64
	fromMult, toMult float64
}

var lpaBands = [...]lpaBand{
	{lower: 30, upper: 50, fromMult: 1.0, toMult: 1.3},
	{lower: 50, upper: 100, fromMult: 1.3, toMult: 1.6},
	{lower: 100, upper: 200, fromMult: 1.6, toMult: 2.0},
	{lower: 200, upper: 300, fromMult: 2.0, toMult: 3.0},
}

const (
	// LpaNeutralModifier applies when Lp(a) is absent or below 30 mg/dL.
	LpaNeutralModifier = 1.0
	// LpaMaxModifier applies at and above 300 mg/dL.
	LpaMaxModifier = 3.0
	// LpaElevatedThreshold is the mg/dL level that triggers Lp(a)-driven advice.
	LpaElevatedThreshold = 50.0
)

// LpaModifier returns the multiplicative risk adjustment for an Lp(a) concentration
// in mg/dL. A nil or NaN concentration yields the neutral modifier.
func LpaModifier(lpaMgdl *float64) float64 {
	if lpaMgdl == nil {
		return LpaNeutralModifier
	}
	return lpaModifierValue(*lpaMgdl)
}

func lpaModifierValue(lpa float64) float64 {
	if !(lpa >= lpaBands[0].lower) {
		return LpaNeutralModifier
	}
	for _, b := range lpaBands {
		if lpa < b.upper {
			return b.fromMult + (lpa-b.lower)*(b.toMult-b.fromMult)/(b.upper-b.lower)
		}
	}
	return LpaMaxModifier
}

// LpaElevated reports whether Lp(a) is at or above the elevated threshold.
func LpaElevated(lpaMgdl *float64) bool {
	return lpaMgdl != nil && *lpaMgdl >= LpaElevatedThreshold
}
