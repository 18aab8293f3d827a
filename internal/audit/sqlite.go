package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite audit store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a calculation is being recorded
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the audit table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS calculation_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assessment_id TEXT NOT NULL,
		algorithms TEXT NOT NULL,
		fingerprint TEXT DEFAULT '',
		framingham_risk REAL,
		qrisk3_risk REAL,
		lpa_modifier REAL NOT NULL DEFAULT 1,
		governing_risk REAL NOT NULL,
		governing_category TEXT NOT NULL,
		warnings TEXT DEFAULT '',
		cache_hit INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_assessment_id ON calculation_audit(assessment_id);
	CREATE INDEX IF NOT EXISTS idx_audit_fingerprint ON calculation_audit(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON calculation_audit(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// scanRecord scans a row into an AuditRecord.
func scanRecord(s scanner) (*domain.AuditRecord, error) {
	rec := &domain.AuditRecord{}
	var frs, qrisk sql.NullFloat64

	err := s.Scan(
		&rec.ID, &rec.AssessmentID, &rec.Algorithms, &rec.Fingerprint,
		&frs, &qrisk, &rec.LpaModifier, &rec.GoverningRisk,
		&rec.GoverningCategory, &rec.Warnings, &rec.CacheHit, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if frs.Valid {
		rec.FraminghamRisk = &frs.Float64
	}
	if qrisk.Valid {
		rec.QRISK3Risk = &qrisk.Float64
	}
	return rec, nil
}

const selectColumns = `
	SELECT id, assessment_id, algorithms, fingerprint,
		framingham_risk, qrisk3_risk, lpa_modifier, governing_risk,
		governing_category, warnings, cache_hit, created_at
	FROM calculation_audit`

// Save appends an audit record.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.AuditRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO calculation_audit (
			assessment_id, algorithms, fingerprint,
			framingham_risk, qrisk3_risk, lpa_modifier, governing_risk,
			governing_category, warnings, cache_hit, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.AssessmentID,
		record.Algorithms,
		record.Fingerprint,
		record.FraminghamRisk,
		record.QRISK3Risk,
		record.LpaModifier,
		record.GoverningRisk,
		record.GoverningCategory,
		record.Warnings,
		record.CacheHit,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	record.ID = id

	return nil
}

// Get retrieves the most recent record for an assessment.
func (s *SQLiteStore) Get(ctx context.Context, assessmentID string) (*domain.AuditRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`
		WHERE assessment_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, assessmentID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// List returns audit records, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*domain.AuditRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the total number of audit records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calculation_audit").Scan(&count)
	return count, err
}

// Delete removes an audit record by ID. A missing record yields domain.ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM calculation_audit WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete audit record: %w", err)
	}
	return requireAffected(result, id)
}

// ExportJSON exports all records to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports records from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func exportJSON(ctx context.Context, store Store, writer io.Writer) error {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list audit records: %w", err)
	}

	export := &Export{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Records:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("%w: failed to decode JSON: %v", ErrInvalidExport, err)
	}

	for _, rec := range export.Records {
		existing, err := store.Get(ctx, rec.AssessmentID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		rec.ID = 0
		if err := store.Save(ctx, rec); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

func requireAffected(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("audit record %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
