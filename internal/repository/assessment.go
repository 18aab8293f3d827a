package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// AssessmentRepository handles assessment persistence. Results, comparison and
// recommendations are stored as JSONB.
type AssessmentRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *pgxpool.Pool, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

const selectAssessment = `
	SELECT id::text, fingerprint, governing_risk, governing_category,
		framingham, qrisk3, comparison, recommendations, warnings, created_at
	FROM assessments`

// Save inserts an assessment. An empty ID is assigned a new UUID.
func (r *AssessmentRepository) Save(ctx context.Context, assessment *domain.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.New().String()
	}

	framinghamJSON, err := marshalOptional(assessment.Framingham)
	if err != nil {
		return fmt.Errorf("marshaling framingham result: %w", err)
	}
	qriskJSON, err := marshalOptional(assessment.QRISK3)
	if err != nil {
		return fmt.Errorf("marshaling qrisk3 result: %w", err)
	}
	comparisonJSON, err := marshalOptional(assessment.Comparison)
	if err != nil {
		return fmt.Errorf("marshaling comparison: %w", err)
	}
	recommendationsJSON, err := json.Marshal(assessment.Recommendations)
	if err != nil {
		return fmt.Errorf("marshaling recommendations: %w", err)
	}
	warnings := assessment.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshaling warnings: %w", err)
	}

	algorithms := make([]string, 0, 2)
	for _, alg := range assessment.Algorithms() {
		algorithms = append(algorithms, string(alg))
	}

	query := `
		INSERT INTO assessments (
			id, fingerprint, algorithms, governing_risk, governing_category,
			framingham, qrisk3, comparison, recommendations, warnings, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err = r.db.Exec(ctx, query,
		assessment.ID,
		assessment.Fingerprint,
		strings.Join(algorithms, ","),
		assessment.GoverningRisk,
		string(assessment.GoverningCategory),
		framinghamJSON,
		qriskJSON,
		comparisonJSON,
		recommendationsJSON,
		warningsJSON,
		assessment.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": assessment.ID,
			"error":         err,
		}).Error("Failed to save assessment")
		return fmt.Errorf("saving assessment: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"assessment_id":      assessment.ID,
		"governing_category": assessment.GoverningCategory,
	}).Debug("Assessment saved")

	return nil
}

// Get retrieves an assessment by ID
func (r *AssessmentRepository) Get(ctx context.Context, id string) (*domain.Assessment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("assessment %q not found: %w", id, domain.ErrNotFound)
	}

	assessment, err := scanAssessment(r.db.QueryRow(ctx, selectAssessment+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("assessment %q not found: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"assessment_id": id,
			"error":         err,
		}).Error("Failed to get assessment")
		return nil, fmt.Errorf("getting assessment: %w", err)
	}

	return assessment, nil
}

// ListByFingerprint returns assessments computed from the same normalized input, newest first.
func (r *AssessmentRepository) ListByFingerprint(ctx context.Context, fingerprint string, limit int) ([]*domain.Assessment, error) {
	rows, err := r.db.Query(ctx, selectAssessment+`
		WHERE fingerprint = $1
		ORDER BY created_at DESC
		LIMIT $2`, fingerprint, limit)
	if err != nil {
		return nil, fmt.Errorf("listing assessments by fingerprint: %w", err)
	}
	defer rows.Close()

	var assessments []*domain.Assessment
	for rows.Next() {
		assessment, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assessment row: %w", err)
		}
		assessments = append(assessments, assessment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessment rows: %w", err)
	}

	return assessments, nil
}

// AttachEMRReference records where an assessment was published.
func (r *AssessmentRepository) AttachEMRReference(ctx context.Context, id, patientRef, resourceID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE assessments SET patient_ref = $2, emr_resource_id = $3 WHERE id = $1`,
		id, patientRef, resourceID)
	if err != nil {
		return fmt.Errorf("attaching EMR reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assessment %q not found: %w", id, domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"assessment_id":   id,
		"emr_resource_id": resourceID,
	}).Info("Assessment linked to EMR resource")

	return nil
}

func scanAssessment(row pgx.Row) (*domain.Assessment, error) {
	var (
		a                             domain.Assessment
		category                      string
		framingham, qrisk, comparison []byte
		recommendations, warnings     []byte
	)

	err := row.Scan(
		&a.ID,
		&a.Fingerprint,
		&a.GoverningRisk,
		&category,
		&framingham,
		&qrisk,
		&comparison,
		&recommendations,
		&warnings,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.GoverningCategory = domain.RiskCategory(category)

	if err := unmarshalOptional(framingham, &a.Framingham); err != nil {
		return nil, fmt.Errorf("unmarshaling framingham result: %w", err)
	}
	if err := unmarshalOptional(qrisk, &a.QRISK3); err != nil {
		return nil, fmt.Errorf("unmarshaling qrisk3 result: %w", err)
	}
	if err := unmarshalOptional(comparison, &a.Comparison); err != nil {
		return nil, fmt.Errorf("unmarshaling comparison: %w", err)
	}
	if err := unmarshalOptional(recommendations, &a.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshaling recommendations: %w", err)
	}
	if err := unmarshalOptional(warnings, &a.Warnings); err != nil {
		return nil, fmt.Errorf("unmarshaling warnings: %w", err)
	}

	// The comparison embeds copies of both results; point it back at the top-level ones.
	if a.Comparison != nil {
		if a.Framingham != nil {
			a.Comparison.FRSResult = a.Framingham
		}
		if a.QRISK3 != nil {
			a.Comparison.QRISKResult = a.QRISK3
		}
	}

	return &a, nil
}

// marshalOptional returns nil for a nil pointer so the column is stored as NULL.
func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalOptional(data []byte, dest any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
