// Package testutil provides shared fixtures for tests that need a populated
// report store.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/storage"
)

// TestDB is an in-memory SQLite report store scoped to one test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database seeded with reports.
// Reports are grouped by province and written in the order given.
//
// Example:
//
//	db := testutil.SetupTestDB(t,
//		testutil.NewReport(model.Bali, 2025, model.Jan).Amount(model.FieldAuction, "10").Build(),
//	)
func SetupTestDB(t *testing.T, reports ...model.ReportRecord) *TestDB {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewSQLiteStorage(":memory:", logger)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	db := &TestDB{Storage: store, t: t}
	db.Seed(reports...)
	return db
}

// Seed appends reports to their province tables.
func (db *TestDB) Seed(reports ...model.ReportRecord) {
	db.t.Helper()
	ctx := context.Background()

	byProvince := make(map[model.Province][]model.ReportRecord)
	var order []model.Province
	for _, r := range reports {
		if _, ok := byProvince[r.Province]; !ok {
			order = append(order, r.Province)
		}
		byProvince[r.Province] = append(byProvince[r.Province], r)
	}

	for _, p := range order {
		handle, err := db.Storage.OpenOrCreateTable(ctx, string(p))
		if err != nil {
			db.t.Fatalf("failed to open %s: %v", p, err)
		}
		for _, r := range byProvince[p] {
			if err := db.Storage.AppendRow(ctx, handle, r.Cells()); err != nil {
				db.t.Fatalf("failed to seed %s: %v", r.Key(), err)
			}
		}
	}
}

// Records returns the decoded table of one province.
func (db *TestDB) Records(province model.Province) []model.ReportRecord {
	db.t.Helper()
	ctx := context.Background()

	handle, err := db.Storage.OpenOrCreateTable(ctx, string(province))
	if err != nil {
		db.t.Fatalf("failed to open %s: %v", province, err)
	}
	rows, err := db.Storage.ReadAll(ctx, handle)
	if err != nil {
		db.t.Fatalf("failed to read %s: %v", province, err)
	}
	return model.DecodeRows(rows)
}
