package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/alco/internal/config"
	"github.com/Veraticus/alco/internal/engine"
	"github.com/Veraticus/alco/internal/service"
	"github.com/Veraticus/alco/internal/sheets"
	"github.com/Veraticus/alco/internal/storage"
	"github.com/spf13/viper"
)

// session bundles the opened report store with the engine driving it.
type session struct {
	store   service.RecordStore
	engine  *engine.Engine
	sheets  *sheets.Store
	sqlite  *storage.SQLiteStorage
	timeout time.Duration
}

// openSession opens the configured report store. store.timeout bounds each
// store phase separately, so a pending confirmation prompt never runs into it.
func openSession(ctx context.Context, prompter engine.Prompter) (*session, error) {
	storeConfig, err := config.LoadStoreConfig()
	if err != nil {
		return nil, err
	}

	s := &session{timeout: storeConfig.Timeout}

	logger := slog.Default()
	switch storeConfig.Backend {
	case config.BackendSQLite:
		db, err := storage.NewSQLiteStorage(storeConfig.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		migrateCtx, cancel := s.storeContext(ctx)
		err = db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		s.sqlite = db
		s.store = db
	default:
		sheetsConfig, err := config.LoadSheetsConfig()
		if err != nil {
			return nil, fmt.Errorf("google sheets is not configured: %w", err)
		}
		store, err := sheets.NewStore(ctx, *sheetsConfig, logger)
		if err != nil {
			return nil, err
		}
		s.sheets = store
		s.store = store
	}

	s.engine = engine.NewWithConfig(s.store, prompter, logger, engine.Config{
		MaxConflictRetries: engine.DefaultConfig().MaxConflictRetries,
		StoreTimeout:       s.timeout,
	})
	return s, nil
}

// storeContext bounds a store call made outside the engine.
func (s *session) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// close releases the store. A spreadsheet created during this run is
// remembered in the config file so later runs reuse it.
func (s *session) close() {
	if s.sqlite != nil {
		if err := s.sqlite.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}

	if s.sheets != nil {
		rememberSpreadsheet(s.sheets.SpreadsheetID())
	}
}

func rememberSpreadsheet(id string) {
	if id == "" || viper.GetString("sheets.spreadsheet_id") == id || os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID") == id {
		return
	}

	viper.Set("sheets.spreadsheet_id", id)
	if err := saveConfig(); err != nil {
		slog.Warn("Could not save the spreadsheet ID to the config file",
			"error", err,
			"spreadsheet_id", id)
		return
	}
	slog.Info("Saved spreadsheet ID to config", "spreadsheet_id", id)
}
