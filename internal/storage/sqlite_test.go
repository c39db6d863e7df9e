package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/Veraticus/alco/internal/common"
	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/reconcile"
	"github.com/Veraticus/alco/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func reportCells(p model.Province, m model.Month, year int, notes string) []string {
	return model.ReportRecord{Province: p, Month: m, Year: year, Notes: notes}.Cells()
}

func TestSQLiteStorage_OpenOrCreateTable(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	handle, err := store.OpenOrCreateTable(ctx, "Bali")
	require.NoError(t, err)
	assert.Equal(t, "Bali", handle.Partition)
	assert.Equal(t, model.Header(), handle.Header)

	rows, err := store.ReadAll(ctx, handle)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Opening again does not reset the header.
	require.NoError(t, store.ReplaceAll(ctx, handle, []string{"Provinsi", "Tahun", "Bulan"}, nil))
	handle, err = store.OpenOrCreateTable(ctx, "Bali")
	require.NoError(t, err)
	assert.Equal(t, []string{"Provinsi", "Tahun", "Bulan"}, handle.Header)
}

func TestSQLiteStorage_ReplaceAndAppend(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	handle, err := store.OpenOrCreateTable(ctx, "Lampung")
	require.NoError(t, err)

	require.NoError(t, store.ReplaceAll(ctx, handle, model.Header(), [][]string{
		reportCells(model.Lampung, model.Feb, 2025, "b"),
		reportCells(model.Lampung, model.Jan, 2025, "a"),
	}))
	require.NoError(t, store.AppendRow(ctx, handle, reportCells(model.Lampung, model.Mar, 2025, "c")))

	rows, err := store.ReadAll(ctx, handle)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Feb", "Jan", "Mar"}, []string{rows[0]["Month"], rows[1]["Month"], rows[2]["Month"]},
		"stored order is preserved")
	assert.Equal(t, "c", rows[2]["Notes"])

	version, err := store.Version(ctx, "Lampung")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	history, err := store.History(ctx, "Lampung", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "append", history[0].Action)
	assert.Equal(t, int64(2), history[0].Version)
	assert.Equal(t, "replace", history[1].Action)
	assert.Equal(t, 2, history[1].RowCount)
	assert.False(t, history[0].WrittenAt.IsZero())
}

func TestSQLiteStorage_ReplaceAllShrinksTable(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	handle, err := store.OpenOrCreateTable(ctx, "Bali")
	require.NoError(t, err)
	require.NoError(t, store.ReplaceAll(ctx, handle, model.Header(), [][]string{
		reportCells(model.Bali, model.Jan, 2025, ""),
		reportCells(model.Bali, model.Feb, 2025, ""),
	}))
	require.NoError(t, store.ReplaceAll(ctx, handle, model.Header(), [][]string{
		reportCells(model.Bali, model.Mar, 2025, ""),
	}))

	rows, err := store.ReadAll(ctx, handle)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mar", rows[0]["Month"])

	require.NoError(t, store.AppendRow(ctx, handle, reportCells(model.Bali, model.Apr, 2025, "")))
	rows, err = store.ReadAll(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "Apr", rows[1]["Month"])
}

func TestSQLiteStorage_CompareAndSwap(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	handle, err := store.OpenOrCreateTable(ctx, "Bali")
	require.NoError(t, err)

	rows, err := store.ReadAll(ctx, handle)
	require.NoError(t, err)
	token := reconcile.Fingerprint(handle.Header, rows)

	require.NoError(t, store.AppendRowIf(ctx, handle, token, reportCells(model.Bali, model.Jan, 2025, "first")))

	// The token is stale now.
	err = store.ReplaceAllIf(ctx, handle, token, model.Header(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConflict))

	err = store.AppendRowIf(ctx, handle, token, reportCells(model.Bali, model.Feb, 2025, "second"))
	assert.ErrorIs(t, err, common.ErrConflict)

	rows, err = store.ReadAll(ctx, handle)
	require.NoError(t, err)
	require.Len(t, rows, 1, "conflicting writes must not land")

	fresh := reconcile.Fingerprint(handle.Header, rows)
	require.NoError(t, store.ReplaceAllIf(ctx, handle, fresh, model.Header(), [][]string{
		reportCells(model.Bali, model.Jan, 2025, "rewritten"),
	}))

	rows, err = store.ReadAll(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", rows[0]["Notes"])
}

func TestSQLiteStorage_Errors(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.ReadAll(ctx, service.TableHandle{Partition: "Nowhere"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = store.AppendRow(ctx, service.TableHandle{Partition: "Nowhere"}, []string{"x"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.OpenOrCreateTable(ctx, "  ")
	assert.ErrorIs(t, err, ErrEmptyString)

	handle, err := store.OpenOrCreateTable(ctx, "Bali")
	require.NoError(t, err)
	err = store.ReplaceAll(ctx, handle, []string{"Year", "Year"}, nil)
	assert.ErrorIs(t, err, ErrInvalidHeader)

	//nolint:staticcheck // nil context is the case under test
	_, err = store.OpenOrCreateTable(nil, "Bali")
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestSQLiteStorage_BlankRowsSkippedOnRead(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	handle, err := store.OpenOrCreateTable(ctx, "Bali")
	require.NoError(t, err)
	require.NoError(t, store.ReplaceAll(ctx, handle, model.Header(), [][]string{
		make([]string, len(model.Columns)),
		reportCells(model.Bali, model.Jan, 2025, ""),
	}))

	rows, err := store.ReadAll(ctx, handle)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:", nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))
	_, err = store.OpenOrCreateTable(context.Background(), "DKI Jakarta")
	require.NoError(t, err)
}
