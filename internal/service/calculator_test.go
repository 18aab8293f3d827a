package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/pkg/units"
)

type mapCache struct {
	mu    sync.Mutex
	items map[string]*domain.Assessment
	sets  int
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]*domain.Assessment)}
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.Assessment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.items[key]
	return a, ok
}

func (c *mapCache) Set(_ context.Context, key string, a *domain.Assessment, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = a
	c.sets++
	return nil
}

type recordedAudit struct {
	id       string
	cacheHit bool
}

type fakeRecorder struct {
	records []recordedAudit
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, a *domain.Assessment, cacheHit bool) error {
	r.records = append(r.records, recordedAudit{id: a.ID, cacheHit: cacheHit})
	return r.err
}

func scenarioProfile() *domain.PatientProfile {
	return &domain.PatientProfile{
		Age:              60,
		Sex:              domain.MALE,
		SystolicBP:       150,
		TotalCholesterol: domain.Measurement{Value: 6.0, Unit: units.MmolPerL},
		HDLCholesterol:   domain.Measurement{Value: 1.0, Unit: units.MmolPerL},
		BMI:              f64(26),
	}
}

func TestCalculatorService_AssessFramingham(t *testing.T) {
	svc := NewCalculatorService(newTestLogger())

	a, err := svc.AssessFramingham(context.Background(), scenarioProfile())
	require.NoError(t, err)

	require.NotNil(t, a.Framingham)
	assert.Nil(t, a.QRISK3)
	assert.Nil(t, a.Comparison)
	assert.NotEmpty(t, a.ID)
	assert.Len(t, a.Fingerprint, 64)
	assert.InDelta(t, 27.2507, a.GoverningRisk, 0.01)
	assert.Equal(t, domain.HIGH_RISK, a.GoverningCategory)
	assert.Empty(t, a.Warnings)
	require.NotNil(t, a.Recommendations)
	assert.Equal(t, domain.REASON_HIGH_INTENSITY_INDICATED, a.Recommendations.Statin.Reason)
	assert.Equal(t, []domain.Algorithm{domain.FRAMINGHAM}, a.Algorithms())
}

func TestCalculatorService_UnitNormalization(t *testing.T) {
	svc := NewCalculatorService(newTestLogger())
	ctx := context.Background()

	mmol, err := svc.AssessFramingham(ctx, scenarioProfile())
	require.NoError(t, err)

	p := scenarioProfile()
	p.TotalCholesterol = domain.Measurement{Value: 6.0 * units.CholesterolFactor, Unit: units.MgPerDL}
	p.HDLCholesterol = domain.Measurement{Value: units.CholesterolFactor, Unit: "mg/dl"}
	p.Lpa = &domain.Measurement{Value: 300, Unit: units.NmolPerL}
	mgdl, err := svc.AssessFramingham(ctx, p)
	require.NoError(t, err)

	assert.InDelta(t, mmol.Framingham.BaseRisk, mgdl.Framingham.BaseRisk, 1e-9)
	require.NotNil(t, mgdl.Framingham.LpaMgdl)
	assert.Equal(t, 120.0, *mgdl.Framingham.LpaMgdl)
	assert.InDelta(t, 1.68, mgdl.Framingham.LpaModifier, 1e-12)
	assert.True(t, mgdl.Recommendations.HasOther(domain.REASON_LPA_AGGRESSIVENESS))
}

func TestCalculatorService_AssessBoth(t *testing.T) {
	svc := NewCalculatorService(newTestLogger())

	a, err := svc.AssessBoth(context.Background(), scenarioProfile())
	require.NoError(t, err)

	require.NotNil(t, a.Framingham)
	require.NotNil(t, a.QRISK3)
	require.NotNil(t, a.Comparison)
	assert.InDelta(t, 14.7244, a.QRISK3.ModifiedRisk, 0.001)
	assert.Equal(t, domain.FRAMINGHAM, a.Comparison.GoverningAlgorithm)
	assert.Equal(t, domain.AGREEMENT_SUBSTANTIAL, a.Comparison.QualitativeAgreement)
	assert.Equal(t, a.Framingham.ModifiedRisk, a.GoverningRisk)
	assert.Equal(t, domain.HIGH_RISK, a.Recommendations.RiskCategory)
	assert.Same(t, a.Framingham, a.Governing())
}

func TestCalculatorService_QRISK3RequiresBodySize(t *testing.T) {
	svc := NewCalculatorService(newTestLogger())
	p := scenarioProfile()
	p.BMI = nil

	_, err := svc.AssessQRISK3(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingBodySize)

	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "bmi", verr.Field)

	_, err = svc.AssessFramingham(context.Background(), p)
	assert.NoError(t, err, "Framingham does not need BMI")
}

func TestCalculatorService_DerivedBMIWins(t *testing.T) {
	svc := NewCalculatorService(newTestLogger())
	ctx := context.Background()

	withBMI := scenarioProfile()
	withBMI.BMI = f64(25)
	reference, err := svc.AssessQRISK3(ctx, withBMI)
	require.NoError(t, err)

	derived := scenarioProfile()
	derived.BMI = f64(31)
	derived.Height = &domain.Measurement{Value: 180, Unit: units.Centimetre}
	derived.Weight = &domain.Measurement{Value: 81, Unit: units.Kilogram}
	got, err := svc.AssessQRISK3(ctx, derived)
	require.NoError(t, err)

	assert.InDelta(t, reference.QRISK3.BaseRisk, got.QRISK3.BaseRisk, 1e-9)
}

func TestCalculatorService_AgeWarnings(t *testing.T) {
	svc := NewCalculatorService(newTestLogger())
	ctx := context.Background()

	old := scenarioProfile()
	old.Age = 80
	a, err := svc.AssessBoth(ctx, old)
	require.NoError(t, err)
	require.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0], "Framingham")

	young := scenarioProfile()
	young.Age = 20
	a, err = svc.AssessBoth(ctx, young)
	require.NoError(t, err)
	assert.Len(t, a.Warnings, 2)

	a, err = svc.AssessQRISK3(ctx, old)
	require.NoError(t, err)
	assert.Empty(t, a.Warnings)
}

func TestCalculatorService_CacheHit(t *testing.T) {
	cache := newMapCache()
	recorder := &fakeRecorder{}
	svc := NewCalculatorService(newTestLogger(), WithResultCache(cache, time.Minute), WithRecorder(recorder))
	ctx := context.Background()

	first, err := svc.AssessBoth(ctx, scenarioProfile())
	require.NoError(t, err)
	second, err := svc.AssessBoth(ctx, scenarioProfile())
	require.NoError(t, err)

	assert.Equal(t, 1, cache.sets)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.GoverningRisk, second.GoverningRisk)
	require.Len(t, recorder.records, 2)
	assert.False(t, recorder.records[0].cacheHit)
	assert.True(t, recorder.records[1].cacheHit)
	assert.Equal(t, second.ID, recorder.records[1].id)

	// A different mode is a different key.
	_, err = svc.AssessFramingham(ctx, scenarioProfile())
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)
}

func TestCalculatorService_RecorderFailureDoesNotFail(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("disk full")}
	svc := NewCalculatorService(newTestLogger(), WithRecorder(recorder))

	a, err := svc.AssessFramingham(context.Background(), scenarioProfile())
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Len(t, recorder.records, 1)
}

func TestCalculatorService_Validation(t *testing.T) {
	svc := NewCalculatorService(newTestLogger())
	ctx := context.Background()

	_, err := svc.AssessBoth(ctx, nil)
	assert.Error(t, err)

	p := scenarioProfile()
	p.Sex = "other"
	_, err = svc.AssessBoth(ctx, p)
	assert.ErrorIs(t, err, domain.ErrInvalidSex)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.AssessFramingham(cancelled, scenarioProfile())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculatorService_RejectsUnknownCodes(t *testing.T) {
	svc := NewCalculatorService(newTestLogger())
	ctx := context.Background()

	assessors := map[string]func(context.Context, *domain.PatientProfile) (*domain.Assessment, error){
		"framingham": svc.AssessFramingham,
		"qrisk3":     svc.AssessQRISK3,
		"both":       svc.AssessBoth,
	}
	tests := []struct {
		name    string
		mutate  func(p *domain.PatientProfile)
		wantErr error
		field   string
	}{
		{"smoking code above range", func(p *domain.PatientProfile) { p.Smoking = 9 }, domain.ErrInvalidSmoking, "smoking"},
		{"negative smoking code", func(p *domain.PatientProfile) { p.Smoking = -1 }, domain.ErrInvalidSmoking, "smoking"},
		{"unknown diabetes type", func(p *domain.PatientProfile) { p.Diabetes = "type3" }, domain.ErrInvalidDiabetes, "diabetes"},
		{"NaN Lp(a)", func(p *domain.PatientProfile) { p.Lpa = &domain.Measurement{Value: math.NaN()} }, nil, "lpa"},
		{"negative Lp(a)", func(p *domain.PatientProfile) { p.Lpa = &domain.Measurement{Value: -1} }, nil, "lpa"},
	}

	for _, tt := range tests {
		for mode, assess := range assessors {
			t.Run(tt.name+"/"+mode, func(t *testing.T) {
				p := scenarioProfile()
				tt.mutate(p)

				a, err := assess(ctx, p)

				assert.Nil(t, a)
				var verr *domain.ValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				assert.Equal(t, tt.field, verr.Field)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			})
		}
	}
}

func TestCalculatorService_ConcurrentAssessmentsAreDeterministic(t *testing.T) {
	svc := NewCalculatorService(newTestLogger())
	ctx := context.Background()

	newProfile := func() *domain.PatientProfile {
		p := scenarioProfile()
		p.Smoking = domain.MODERATE_SMOKER
		p.Diabetes = domain.DIABETES_TYPE2
		p.Lpa = &domain.Measurement{Value: 120, Unit: units.MgPerDL}
		return p
	}
	want, err := svc.AssessBoth(ctx, newProfile())
	require.NoError(t, err)

	const workers = 16
	results := make([]*domain.Assessment, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.AssessBoth(ctx, newProfile())
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want.Fingerprint, got.Fingerprint)
		assert.Equal(t, want.Framingham.ModifiedRisk, got.Framingham.ModifiedRisk)
		assert.Equal(t, want.QRISK3.ModifiedRisk, got.QRISK3.ModifiedRisk)
		assert.Equal(t, want.GoverningRisk, got.GoverningRisk)
		assert.Equal(t, want.Recommendations, got.Recommendations)
	}
}

func TestCalculatorService_RecommendAndCompare(t *testing.T) {
	svc := NewCalculatorService(newTestLogger())
	ctx := context.Background()

	set, err := svc.Recommend(ctx, domain.RecommendationRequest{RiskPercent: 12, LDL: f64(3.6)})
	require.NoError(t, err)
	assert.Equal(t, domain.REASON_LDL_THRESHOLD_MODERATE, set.Statin.Reason)

	_, err = svc.Recommend(ctx, domain.RecommendationRequest{RiskPercent: 120})
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))

	cmp, err := svc.Compare(ctx, riskResult(domain.QRISK3, 22), riskResult(domain.FRAMINGHAM, 15))
	require.NoError(t, err)
	assert.Equal(t, 22.0, cmp.GoverningRisk)
}

func TestCalculatorService_Clock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewCalculatorService(newTestLogger(), WithClock(func() time.Time { return fixed }))

	a, err := svc.AssessFramingham(context.Background(), scenarioProfile())
	require.NoError(t, err)
	assert.Equal(t, fixed, a.CreatedAt)
}
