package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/pkg/units"
)

// bmiOverrideTolerance is how far a supplied BMI may drift from the one derived from
// height and weight before the derived value replaces it.
const bmiOverrideTolerance = 0.1

// DefaultResultTTL is used when a cache is configured without a TTL.
const DefaultResultTTL = time.Hour

// CalculatorService runs the full assessment workflow: unit normalization, risk
// engines, Lp(a) modifier, categorization, recommendations and comparison.
type CalculatorService struct {
	logger      *logrus.Logger
	framingham  *FraminghamEngine
	qrisk3      *QRISK3Engine
	recommender domain.RecommendationEngine
	comparator  domain.ComparisonEngine
	cache       domain.ResultCache
	cacheTTL    time.Duration
	recorder    domain.AssessmentRecorder
	repository  domain.AssessmentRepository
	now         func() time.Time
}

// CalculatorOption configures optional collaborators of the calculator.
type CalculatorOption func(*CalculatorService)

// WithResultCache memoizes assessments by input fingerprint.
func WithResultCache(cache domain.ResultCache, ttl time.Duration) CalculatorOption {
	return func(s *CalculatorService) {
		s.cache = cache
		s.cacheTTL = ttl
		if s.cacheTTL <= 0 {
			s.cacheTTL = DefaultResultTTL
		}
	}
}

// WithRecorder records an audit entry for every assessment.
func WithRecorder(recorder domain.AssessmentRecorder) CalculatorOption {
	return func(s *CalculatorService) {
		s.recorder = recorder
	}
}

// WithRepository persists every assessment so it can be fetched by id.
func WithRepository(repo domain.AssessmentRepository) CalculatorOption {
	return func(s *CalculatorService) {
		s.repository = repo
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) CalculatorOption {
	return func(s *CalculatorService) {
		s.now = now
	}
}

// NewCalculatorService creates a new calculator service
func NewCalculatorService(logger *logrus.Logger, opts ...CalculatorOption) *CalculatorService {
	s := &CalculatorService{
		logger:      logger,
		framingham:  NewFraminghamEngine(logger),
		qrisk3:      NewQRISK3Engine(logger),
		recommender: NewRecommendationRules(logger),
		comparator:  NewComparator(logger),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// normalizedProfile is the unit-normalized view of a profile both engines read from.
type normalizedProfile struct {
	framingham domain.FraminghamInput
	qrisk3     *domain.QRISK3Input
	ldlMmol    *float64
	warnings   []string
}

// fingerprintInput is what the result cache key is derived from.
type fingerprintInput struct {
	Mode       string                  `json:"mode"`
	Framingham *domain.FraminghamInput `json:"framingham,omitempty"`
	QRISK3     *domain.QRISK3Input     `json:"qrisk3,omitempty"`
	LDL        *float64                `json:"ldl,omitempty"`
}

// AssessFramingham runs the Framingham model and derives recommendations from it.
func (s *CalculatorService) AssessFramingham(ctx context.Context, profile *domain.PatientProfile) (*domain.Assessment, error) {
	return s.assess(ctx, "framingham", profile, false, func(n *normalizedProfile, a *domain.Assessment) error {
		result, err := s.framingham.Calculate(n.framingham)
		if err != nil {
			return fmt.Errorf("framingham calculation failed: %w", err)
		}
		a.Framingham = result
		a.GoverningRisk = result.ModifiedRisk
		a.GoverningCategory = result.RiskCategory
		return nil
	})
}

// AssessQRISK3 runs the QRISK3 model and derives recommendations from it.
func (s *CalculatorService) AssessQRISK3(ctx context.Context, profile *domain.PatientProfile) (*domain.Assessment, error) {
	return s.assess(ctx, "qrisk3", profile, true, func(n *normalizedProfile, a *domain.Assessment) error {
		result, err := s.qrisk3.Calculate(*n.qrisk3)
		if err != nil {
			return fmt.Errorf("qrisk3 calculation failed: %w", err)
		}
		a.QRISK3 = result
		a.GoverningRisk = result.ModifiedRisk
		a.GoverningCategory = result.RiskCategory
		return nil
	})
}

// AssessBoth runs both models, compares them and derives recommendations from the
// higher (governing) estimate.
func (s *CalculatorService) AssessBoth(ctx context.Context, profile *domain.PatientProfile) (*domain.Assessment, error) {
	return s.assess(ctx, "both", profile, true, func(n *normalizedProfile, a *domain.Assessment) error {
		frs, err := s.framingham.Calculate(n.framingham)
		if err != nil {
			return fmt.Errorf("framingham calculation failed: %w", err)
		}
		qr, err := s.qrisk3.Calculate(*n.qrisk3)
		if err != nil {
			return fmt.Errorf("qrisk3 calculation failed: %w", err)
		}
		cmp, err := s.comparator.Compare(frs, qr)
		if err != nil {
			return fmt.Errorf("comparison failed: %w", err)
		}
		a.Framingham = frs
		a.QRISK3 = qr
		a.Comparison = cmp
		a.GoverningRisk = cmp.GoverningRisk
		a.GoverningCategory = cmp.GoverningCategory
		return nil
	})
}

// Recommend derives treatment recommendations for a risk percentage.
func (s *CalculatorService) Recommend(ctx context.Context, req domain.RecommendationRequest) (*domain.RecommendationSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if math.IsNaN(req.RiskPercent) || req.RiskPercent < 0 || req.RiskPercent > 100 {
		return nil, domain.NewValidationError("risk_percent", "must be between 0 and 100", req.RiskPercent)
	}
	return s.recommender.Recommend(req), nil
}

// Compare reconciles a Framingham and a QRISK3 result.
func (s *CalculatorService) Compare(ctx context.Context, a, b *domain.RiskResult) (*domain.ComparisonResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.comparator.Compare(a, b)
}

func (s *CalculatorService) assess(
	ctx context.Context,
	mode string,
	profile *domain.PatientProfile,
	needsQRISK bool,
	run func(*normalizedProfile, *domain.Assessment) error,
) (*domain.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.NewValidationError("profile", "patient profile is required", nil)
	}

	n, err := s.normalize(profile, mode, needsQRISK)
	if err != nil {
		return nil, err
	}

	// Non-finite inputs cannot be encoded; such assessments bypass the cache.
	key, err := fingerprint(mode, n)
	if err != nil {
		s.logger.WithError(err).Debug("Input not fingerprintable, skipping result cache")
		key = ""
	}

	if cached := s.fromCache(ctx, key); cached != nil {
		s.persist(ctx, cached, true)
		return cached, nil
	}

	assessment := &domain.Assessment{
		ID:          uuid.New().String(),
		Fingerprint: key,
		Warnings:    n.warnings,
		CreatedAt:   s.now(),
	}
	if err := run(n, assessment); err != nil {
		return nil, err
	}

	age := profile.Age
	assessment.Recommendations = s.recommender.Recommend(domain.RecommendationRequest{
		RiskPercent: assessment.GoverningRisk,
		LDL:         n.ldlMmol,
		Diabetes:    profile.Diabetes.Present(),
		Age:         &age,
		LpaElevated: LpaElevated(n.framingham.LpaMgdl),
	})

	s.logger.WithFields(logrus.Fields{
		"assessment_id":      assessment.ID,
		"mode":               mode,
		"governing_risk":     assessment.GoverningRisk,
		"governing_category": assessment.GoverningCategory,
		"warnings":           len(assessment.Warnings),
	}).Info("Risk assessment completed")

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, assessment, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache assessment")
		}
	}
	s.persist(ctx, assessment, false)

	return assessment, nil
}

// fromCache returns a copy of a cached assessment under a fresh id, or nil on a miss.
func (s *CalculatorService) fromCache(ctx context.Context, key string) *domain.Assessment {
	if s.cache == nil || key == "" {
		return nil
	}
	hit, ok := s.cache.Get(ctx, key)
	if !ok || hit == nil {
		return nil
	}
	cp := *hit
	cp.ID = uuid.New().String()
	cp.CreatedAt = s.now()

	s.logger.WithFields(logrus.Fields{
		"assessment_id": cp.ID,
		"fingerprint":   key,
	}).Debug("Assessment served from cache")
	return &cp
}

// persist writes the audit record and the repository copy. Failures are logged, not
// returned: the calculation itself succeeded.
func (s *CalculatorService) persist(ctx context.Context, a *domain.Assessment, cacheHit bool) {
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, a, cacheHit); err != nil {
			s.logger.WithError(err).WithField("assessment_id", a.ID).Error("Failed to record assessment audit")
		}
	}
	if s.repository != nil {
		if err := s.repository.Save(ctx, a); err != nil {
			s.logger.WithError(err).WithField("assessment_id", a.ID).Error("Failed to save assessment")
		}
	}
}

// normalize converts the profile into engine inputs in canonical units.
func (s *CalculatorService) normalize(p *domain.PatientProfile, mode string, needsQRISK bool) (*normalizedProfile, error) {
	if !p.Sex.IsValid() {
		return nil, domain.WrapValidationError("sex", p.Sex, domain.ErrInvalidSex)
	}
	if !p.Smoking.IsValid() {
		return nil, domain.WrapValidationError("smoking", p.Smoking, domain.ErrInvalidSmoking)
	}
	if !p.Diabetes.IsValid() {
		return nil, domain.WrapValidationError("diabetes", p.Diabetes, domain.ErrInvalidDiabetes)
	}

	total := cholesterolMmol(p.TotalCholesterol)
	hdl := cholesterolMmol(p.HDLCholesterol)

	if p.Lpa != nil && (math.IsNaN(p.Lpa.Value) || math.IsInf(p.Lpa.Value, 0) || p.Lpa.Value < 0) {
		return nil, domain.NewValidationError("lpa", "must be a finite non-negative concentration", p.Lpa.Value)
	}
	lpa := units.Optional(p.Lpa.Amount(), p.Lpa.UnitOr(units.MgPerDL), units.MgPerDL, units.ConvertLpa)
	ldl := units.Optional(p.LDLCholesterol.Amount(), p.LDLCholesterol.UnitOr(units.MmolPerL), units.MmolPerL, units.ConvertCholesterol)

	n := &normalizedProfile{
		framingham: domain.FraminghamInput{
			Age:              p.Age,
			Sex:              p.Sex,
			TotalCholesterol: total,
			HDLCholesterol:   hdl,
			SystolicBP:       p.SystolicBP,
			BPTreatment:      p.BPTreatment,
			Smoker:           p.Smoking.IsCurrent(),
			Diabetes:         p.Diabetes.Present(),
			FamilyHistory:    p.FamilyHistory,
			LpaMgdl:          lpa,
		},
		ldlMmol: ldl,
	}

	if mode != "qrisk3" && !FraminghamInRange(p.Age) {
		n.warnings = append(n.warnings, fmt.Sprintf(
			"Age %d is outside the validated Framingham range (%d-%d); interpret with reduced confidence",
			p.Age, FraminghamMinAge, FraminghamMaxAge))
	}

	if !needsQRISK {
		return n, nil
	}

	bmi, err := s.resolveBMI(p)
	if err != nil {
		return nil, err
	}

	ethnicity := p.Ethnicity
	if ethnicity == 0 {
		ethnicity = domain.ETHNICITY_WHITE
	}
	diabetes := p.Diabetes
	if diabetes == "" {
		diabetes = domain.DIABETES_NONE
	}

	n.qrisk3 = &domain.QRISK3Input{
		Age:              p.Age,
		Sex:              p.Sex,
		Ethnicity:        ethnicity,
		Smoking:          p.Smoking,
		Diabetes:         diabetes,
		BMI:              bmi,
		CholesterolRatio: total / hdl,
		SystolicBP:       p.SystolicBP,
		SBPVariability:   SBPVariability(p.SBPVariability, p.SystolicReadings),
		Townsend:         p.Townsend,
		FamilyHistory:    p.FamilyHistory,
		BPTreatment:      p.BPTreatment,
		Comorbidities:    p.Comorbidities,
		LpaMgdl:          lpa,
	}

	if !QRISK3InRange(p.Age) {
		n.warnings = append(n.warnings, fmt.Sprintf(
			"Age %d is outside the validated QRISK3 range (%d-%d); interpret with reduced confidence",
			p.Age, QRISK3MinAge, QRISK3MaxAge))
	}

	return n, nil
}

// resolveBMI prefers the BMI derived from height and weight over a supplied one.
func (s *CalculatorService) resolveBMI(p *domain.PatientProfile) (float64, error) {
	if p.Height != nil && p.Weight != nil {
		heightCm := units.ConvertHeight(p.Height.Value, unitOr(p.Height.Unit, units.Centimetre), units.Centimetre)
		weightKg := units.ConvertWeight(p.Weight.Value, unitOr(p.Weight.Unit, units.Kilogram), units.Kilogram)
		derived := units.BMI(weightKg, heightCm)

		if p.BMI != nil && math.Abs(*p.BMI-derived) > bmiOverrideTolerance {
			s.logger.WithFields(logrus.Fields{
				"supplied_bmi": *p.BMI,
				"derived_bmi":  derived,
			}).Warn("Supplied BMI differs from height and weight; using derived BMI")
		}
		return derived, nil
	}
	if p.BMI != nil {
		return *p.BMI, nil
	}
	return 0, domain.WrapValidationError("bmi", nil, domain.ErrMissingBodySize)
}

func cholesterolMmol(m domain.Measurement) float64 {
	return units.ConvertCholesterol(m.Value, unitOr(m.Unit, units.MmolPerL), units.MmolPerL)
}

func unitOr(u, fallback units.Unit) units.Unit {
	if u == "" {
		return fallback
	}
	return u
}

// fingerprint hashes the normalized engine inputs, so equivalent inputs in different
// units share a cache entry.
func fingerprint(mode string, n *normalizedProfile) (string, error) {
	in := fingerprintInput{Mode: mode, QRISK3: n.qrisk3, LDL: n.ldlMmol}
	if mode != "qrisk3" {
		fr := n.framingham
		in.Framingham = &fr
	}
	data, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
