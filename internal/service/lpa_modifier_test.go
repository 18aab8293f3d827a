package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLpaModifier_BoundaryValues(t *testing.T) {
	tests := []struct {
		name string
		lpa  float64
		want float64
	}{
		{"below threshold", 29.9, 1.0},
		{"at 30", 30, 1.0},
		{"mid first band", 40, 1.15},
		{"at 50", 50, 1.3},
		{"mid second band", 75, 1.45},
		{"at 100", 100, 1.6},
		{"scenario value 120", 120, 1.68},
		{"at 200", 200, 2.0},
		{"mid last band", 250, 2.5},
		{"at 300", 300, 3.0},
		{"far above", 1000, 3.0},
		{"zero", 0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lpa := tt.lpa
			assert.InDelta(t, tt.want, LpaModifier(&lpa), 1e-9)
		})
	}
}

func TestLpaModifier_AbsentIsNeutral(t *testing.T) {
	assert.Equal(t, 1.0, LpaModifier(nil))

	nan := math.NaN()
	assert.Equal(t, LpaNeutralModifier, LpaModifier(&nan))
	assert.False(t, LpaElevated(&nan))

	negative := -5.0
	assert.Equal(t, LpaNeutralModifier, LpaModifier(&negative))

	inf := math.Inf(1)
	assert.Equal(t, LpaMaxModifier, LpaModifier(&inf))
}

func TestLpaModifier_MonotonicAndContinuous(t *testing.T) {
	prev := lpaModifierValue(0)
	for i := 1; i <= 40000; i++ {
		x := float64(i) / 100
		got := lpaModifierValue(x)
		assert.GreaterOrEqual(t, got, prev, "modifier decreased at %.2f", x)
		// No jumps: a 0.01 mg/dL step moves the modifier by at most 0.0001.
		assert.LessOrEqual(t, got-prev, 1e-4+1e-12, "jump at %.2f", x)
		prev = got
	}
}

func TestLpaElevated(t *testing.T) {
	below, at := 49.9, 50.0
	assert.False(t, LpaElevated(nil))
	assert.False(t, LpaElevated(&below))
	assert.True(t, LpaElevated(&at))
}
