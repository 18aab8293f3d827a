// Package audit stores a record of every risk calculation served.
// Records carry the input fingerprint and the headline numbers, never the raw profile.
package audit

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// Store defines the interface for calculation audit storage.
type Store interface {
	// Save appends an audit record and assigns its ID.
	Save(ctx context.Context, record *domain.AuditRecord) error

	// Get retrieves the most recent record for an assessment, or nil when none exists.
	Get(ctx context.Context, assessmentID string) (*domain.AuditRecord, error)

	// List returns records, newest first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*domain.AuditRecord, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// Delete removes a record by ID, returning domain.ErrNotFound when it does not exist.
	Delete(ctx context.Context, id int64) error

	// ExportJSON writes every record to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads an export, skipping assessments already present.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ErrInvalidExport is returned by ImportJSON when the input is not an audit export.
var ErrInvalidExport = errors.New("invalid audit export")

// Export represents the JSON export format.
type Export struct {
	Version    string                `json:"version"`
	ExportedAt time.Time             `json:"exported_at"`
	Count      int                   `json:"count"`
	Records    []*domain.AuditRecord `json:"records"`
}

// exportVersion is written into every export.
const exportVersion = "1.0"

// maxExportLimit is the maximum number of records to export at once.
const maxExportLimit = 1000000

// Recorder adapts a Store to the calculator's AssessmentRecorder.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder writing to store
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record converts the assessment and saves it.
func (r *Recorder) Record(ctx context.Context, assessment *domain.Assessment, cacheHit bool) error {
	return r.store.Save(ctx, RecordFromAssessment(assessment, cacheHit))
}

// RecordFromAssessment flattens an assessment into an audit record.
func RecordFromAssessment(a *domain.Assessment, cacheHit bool) *domain.AuditRecord {
	algorithms := make([]string, 0, 2)
	for _, alg := range a.Algorithms() {
		algorithms = append(algorithms, string(alg))
	}

	record := &domain.AuditRecord{
		AssessmentID:      a.ID,
		Algorithms:        strings.Join(algorithms, ","),
		Fingerprint:       a.Fingerprint,
		LpaModifier:       1,
		GoverningRisk:     a.GoverningRisk,
		GoverningCategory: string(a.GoverningCategory),
		Warnings:          strings.Join(a.Warnings, "; "),
		CacheHit:          cacheHit,
		CreatedAt:         a.CreatedAt,
	}
	if a.Framingham != nil {
		risk := a.Framingham.ModifiedRisk
		record.FraminghamRisk = &risk
	}
	if a.QRISK3 != nil {
		risk := a.QRISK3.ModifiedRisk
		record.QRISK3Risk = &risk
	}
	if g := a.Governing(); g != nil {
		record.LpaModifier = g.LpaModifier
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return record
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}
