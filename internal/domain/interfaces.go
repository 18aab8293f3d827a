package domain

import (
	"context"
	"time"
)

// RiskEngine computes a complete risk result for one algorithm.
type RiskEngine[In any] interface {
	Calculate(input In) (*RiskResult, error)
	BaseRisk(input In) float64
	Algorithm() Algorithm
}

// RecommendationEngine derives treatment recommendations from a risk estimate.
type RecommendationEngine interface {
	Recommend(req RecommendationRequest) *RecommendationSet
}

// ComparisonEngine reconciles a Framingham and a QRISK3 result.
type ComparisonEngine interface {
	Compare(a, b *RiskResult) (*ComparisonResult, error)
}

// ResultCache memoizes assessments keyed by a normalized input fingerprint.
type ResultCache interface {
	Get(ctx context.Context, key string) (*Assessment, bool)
	Set(ctx context.Context, key string, assessment *Assessment, ttl time.Duration) error
}

// AssessmentRecorder persists assessments for audit trails. cacheHit marks an
// assessment served from the result cache.
type AssessmentRecorder interface {
	Record(ctx context.Context, assessment *Assessment, cacheHit bool) error
}

// AssessmentPublisher sends assessments to an external clinical record system.
type AssessmentPublisher interface {
	Publish(ctx context.Context, patientRef string, assessment *Assessment) (string, error)
}

// AssessmentRepository defines the interface for assessment persistence
type AssessmentRepository interface {
	Save(ctx context.Context, assessment *Assessment) error
	Get(ctx context.Context, id string) (*Assessment, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}

// RiskCalculator is the assessment surface the transports call into.
type RiskCalculator interface {
	AssessFramingham(ctx context.Context, profile *PatientProfile) (*Assessment, error)
	AssessQRISK3(ctx context.Context, profile *PatientProfile) (*Assessment, error)
	AssessBoth(ctx context.Context, profile *PatientProfile) (*Assessment, error)
	Recommend(ctx context.Context, req RecommendationRequest) (*RecommendationSet, error)
	Compare(ctx context.Context, a, b *RiskResult) (*ComparisonResult, error)
}
