package audit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(assessmentID string, createdAt time.Time) *domain.AuditRecord {
	frs := 12.5
	return &domain.AuditRecord{
		AssessmentID:      assessmentID,
		Algorithms:        "Framingham",
		Fingerprint:       "fp-" + assessmentID,
		FraminghamRisk:    &frs,
		LpaModifier:       1,
		GoverningRisk:     12.5,
		GoverningCategory: "moderate",
		CreatedAt:         createdAt,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "audit.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("a-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	rec.Warnings = "age outside validated range"
	rec.CacheHit = true

	require.NoError(t, store.Save(ctx, rec))
	assert.NotZero(t, rec.ID, "ID should be assigned")

	got, err := store.Get(ctx, "a-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "Framingham", got.Algorithms)
	assert.Equal(t, "fp-a-1", got.Fingerprint)
	require.NotNil(t, got.FraminghamRisk)
	assert.Equal(t, 12.5, *got.FraminghamRisk)
	assert.Nil(t, got.QRISK3Risk)
	assert.Equal(t, "moderate", got.GoverningCategory)
	assert.Equal(t, "age outside validated range", got.Warnings)
	assert.True(t, got.CacheHit)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := createTestStore(t)

	got, err := store.Get(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_SaveDefaultsCreatedAt(t *testing.T) {
	store := createTestStore(t)

	rec := sampleRecord("a-1", time.Time{})
	require.NoError(t, store.Save(context.Background(), rec))

	assert.False(t, rec.CreatedAt.IsZero())
}

func TestSQLiteStore_ListAndCount(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, sampleRecord(fmt.Sprintf("a-%d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a-4", page[0].AssessmentID, "newest first")
	assert.Equal(t, "a-3", page[1].AssessmentID)

	page, err = store.List(ctx, 10, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a-0", page[0].AssessmentID)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("a-1", time.Now().UTC())
	require.NoError(t, store.Save(ctx, rec))
	require.NoError(t, store.Delete(ctx, rec.ID))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	source := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, source.Save(ctx, sampleRecord("a-1", base)))
	require.NoError(t, source.Save(ctx, sampleRecord("a-2", base.Add(time.Minute))))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))
	assert.Contains(t, buf.String(), `"version": "1.0"`)
	assert.Contains(t, buf.String(), `"count": 2`)

	target := createTestStore(t)
	require.NoError(t, target.Save(ctx, sampleRecord("a-1", base)))

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	count, err := target.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_ImportInvalidJSON(t *testing.T) {
	store := createTestStore(t)

	_, _, err := store.ImportJSON(context.Background(), bytes.NewReader([]byte("not json")))

	assert.ErrorIs(t, err, ErrInvalidExport)
}

func TestSQLiteStore_DeleteMissing(t *testing.T) {
	store := createTestStore(t)

	err := store.Delete(context.Background(), 42)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_RecorderIntegration(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, NewRecorder(store).Record(ctx, bothAssessment(), true))

	got, err := store.Get(ctx, "a-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Framingham,QRISK3", got.Algorithms)
	require.NotNil(t, got.QRISK3Risk)
	assert.Equal(t, 23.4, *got.QRISK3Risk)
	assert.True(t, got.CacheHit)
}
