package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartmann/sortier/internal/common"
	"github.com/mhartmann/sortier/internal/model"
)

func testStore(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func historyRow(hash string, at time.Time) model.AuditRow {
	return model.AuditRow{
		SourceFile:       "in/scan.pdf",
		TargetFile:       model.StringPtr("out/2024/acme/scan.pdf"),
		InvoiceNumber:    model.StringPtr("RE-1"),
		Supplier:         model.StringPtr("acme"),
		InvoiceDate:      model.StringPtr("2024-03-14"),
		Method:           model.MethodNativeText,
		ContentHash:      hash,
		Confidence:       0.85,
		ValidationStatus: model.StatusOK,
		AmountGross:      model.FloatPtr(119.0),
		AmountNet:        model.FloatPtr(100.0),
		AmountTax:        model.FloatPtr(19.0),
		Currency:         model.StringPtr("EUR"),
		ProcessedAt:      at,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestRecordAndFindByHash(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordDocument(ctx, historyRow("aaa", at)))

	got, err := store.FindByHash(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, "in/scan.pdf", got.SourceFile)
	require.NotNil(t, got.Supplier)
	assert.Equal(t, "acme", *got.Supplier)
	assert.Equal(t, model.StatusOK, got.ValidationStatus)
	assert.Equal(t, model.MethodNativeText, got.Method)
	require.NotNil(t, got.AmountGross)
	assert.InDelta(t, 119.0, *got.AmountGross, 0.001)
}

func TestFindByHashNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.FindByHash(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestFindByHashReturnsNewest(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	older := historyRow("aaa", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	older.SourceFile = "in/first.pdf"
	newer := historyRow("aaa", time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
	newer.SourceFile = "in/second.pdf"

	require.NoError(t, store.RecordDocument(ctx, older))
	require.NoError(t, store.RecordDocument(ctx, newer))

	got, err := store.FindByHash(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, "in/second.pdf", got.SourceFile)
}

func TestRecentDocumentsOrderAndLimit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		row := historyRow("h", time.Date(2026, 8, 1+i, 0, 0, 0, 0, time.UTC))
		require.NoError(t, store.RecordDocument(ctx, row))
	}

	docs, err := store.RecentDocuments(ctx, 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.True(t, docs[0].ProcessedAt.After(docs[1].ProcessedAt))
	assert.True(t, docs[1].ProcessedAt.After(docs[2].ProcessedAt))
}

func TestNewHistoryStoreRequiresPath(t *testing.T) {
	_, err := NewHistoryStore("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMissingConfig))
}
