package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cvd-risk-mcp-server/internal/database"
	"github.com/cvd-risk-mcp-server/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	require.NoError(t, err, "Failed to create database connection")

	databaseURL := "postgres://testuser:" + testPassword + "@" + host + ":" + port.Port() + "/testdb?sslmode=disable"
	migrationRunner, err := database.NewMigrationRunner(databaseURL, "../../migrations", logger)
	require.NoError(t, err, "Failed to create migration runner")
	require.NoError(t, migrationRunner.Up(ctx), "Failed to run migrations")

	t.Cleanup(func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	return db
}

func newRepo(t *testing.T) *AssessmentRepository {
	db := setupTestDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewAssessmentRepository(db.Pool, logger)
}

func sampleAssessment() *domain.Assessment {
	lpa := 60.0
	frs := &domain.RiskResult{
		Algorithm:    domain.FRAMINGHAM,
		BaseRisk:     15,
		LpaModifier:  1.36,
		ModifiedRisk: 20.4,
		RiskCategory: domain.HIGH_RISK,
		ContributingFactors: []domain.ContributingFactor{
			{Name: "Age", Impact: domain.IMPACT_HIGH, Description: "Age 60"},
		},
		LpaMgdl: &lpa,
	}
	qrisk := &domain.RiskResult{
		Algorithm:    domain.QRISK3,
		BaseRisk:     12,
		LpaModifier:  1.36,
		ModifiedRisk: 16.32,
		RiskCategory: domain.MODERATE_RISK,
		LpaMgdl:      &lpa,
	}
	return &domain.Assessment{
		ID:          uuid.New().String(),
		Fingerprint: "fp-sample",
		Framingham:  frs,
		QRISK3:      qrisk,
		Comparison: &domain.ComparisonResult{
			FRSResult:            frs,
			QRISKResult:          qrisk,
			AbsoluteDifference:   4.08,
			PercentDifference:    22.2,
			QualitativeAgreement: domain.AGREEMENT_MODERATE,
			GoverningRisk:        20.4,
			GoverningAlgorithm:   domain.FRAMINGHAM,
			GoverningCategory:    domain.HIGH_RISK,
		},
		GoverningRisk:     20.4,
		GoverningCategory: domain.HIGH_RISK,
		Recommendations: &domain.RecommendationSet{
			RiskCategory: domain.HIGH_RISK,
			Statin:       &domain.Recommendation{Text: "High-intensity statin", Reason: domain.REASON_HIGH_INTENSITY_INDICATED},
			OtherChanges: []domain.Recommendation{},
		},
		Warnings:  []string{"sample warning"},
		CreatedAt: time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC),
	}
}

func TestAssessmentRepository_SaveAndGet(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	assessment := sampleAssessment()

	require.NoError(t, repo.Save(ctx, assessment))

	got, err := repo.Get(ctx, assessment.ID)
	require.NoError(t, err)

	assert.Equal(t, assessment.ID, got.ID)
	assert.Equal(t, "fp-sample", got.Fingerprint)
	assert.Equal(t, domain.HIGH_RISK, got.GoverningCategory)
	require.NotNil(t, got.Framingham)
	assert.Equal(t, 20.4, got.Framingham.ModifiedRisk)
	require.NotNil(t, got.Framingham.LpaMgdl)
	assert.Equal(t, 60.0, *got.Framingham.LpaMgdl)
	require.NotNil(t, got.Comparison)
	assert.Same(t, got.Framingham, got.Comparison.FRSResult)
	assert.Equal(t, domain.REASON_HIGH_INTENSITY_INDICATED, got.Recommendations.Statin.Reason)
	assert.Equal(t, []string{"sample warning"}, got.Warnings)
	assert.True(t, assessment.CreatedAt.Equal(got.CreatedAt))
}

func TestAssessmentRepository_SaveSingleAlgorithm(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	assessment := sampleAssessment()
	assessment.ID = ""
	assessment.QRISK3 = nil
	assessment.Comparison = nil
	assessment.Warnings = nil

	require.NoError(t, repo.Save(ctx, assessment))
	require.NotEmpty(t, assessment.ID, "an ID is assigned")

	got, err := repo.Get(ctx, assessment.ID)
	require.NoError(t, err)
	assert.Nil(t, got.QRISK3)
	assert.Nil(t, got.Comparison)
	assert.Empty(t, got.Warnings)
}

func TestAssessmentRepository_GetNotFound(t *testing.T) {
	repo := newRepo(t)

	_, err := repo.Get(context.Background(), uuid.New().String())
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.Get(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAssessmentRepository_ListByFingerprint(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	older := sampleAssessment()
	newer := sampleAssessment()
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	other := sampleAssessment()
	other.Fingerprint = "fp-other"

	for _, a := range []*domain.Assessment{older, newer, other} {
		require.NoError(t, repo.Save(ctx, a))
	}

	list, err := repo.ListByFingerprint(ctx, "fp-sample", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestAssessmentRepository_AttachEMRReference(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	assessment := sampleAssessment()
	require.NoError(t, repo.Save(ctx, assessment))

	require.NoError(t, repo.AttachEMRReference(ctx, assessment.ID, "Patient/123", "RiskAssessment/abc"))

	err := repo.AttachEMRReference(ctx, uuid.New().String(), "Patient/123", "RiskAssessment/abc")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMarshalOptional(t *testing.T) {
	var missing *domain.RiskResult
	data, err := marshalOptional(missing)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = marshalOptional(&domain.RiskResult{Algorithm: domain.QRISK3})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"algorithm":"QRISK3"`)
}
