package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/alco/internal/common"
	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/reconcile"
	"github.com/Veraticus/alco/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var _ service.VersionedStore = (*SQLiteStorage)(nil)

// SQLiteStorage stores province tables in SQLite. Each partition keeps its
// header, ordered rows and a version bumped on every write.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
	dbPath string
}

// WriteEntry is one row of the partition write log.
type WriteEntry struct {
	WrittenAt time.Time
	Partition string
	Action    string
	Version   int64
	RowCount  int
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string, logger *slog.Logger) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers inside this process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// OpenOrCreateTable implements service.RecordStore.
func (s *SQLiteStorage) OpenOrCreateTable(ctx context.Context, partition string) (service.TableHandle, error) {
	handle := service.TableHandle{Partition: partition}
	if err := validateContext(ctx); err != nil {
		return handle, err
	}
	if err := validateString(partition, "partition"); err != nil {
		return handle, err
	}

	header, err := encodeCells(model.Header())
	if err != nil {
		return handle, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO partitions (name, header) VALUES (?, ?)`, partition, header)
	if err != nil {
		return handle, s.unavailable("open", partition, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("created partition", "partition", partition)
	}

	stored, _, err := s.loadHeader(ctx, s.db, partition)
	if err != nil {
		return handle, err
	}
	handle.Header = stored
	return handle, nil
}

// ReadAll implements service.RecordStore.
func (s *SQLiteStorage) ReadAll(ctx context.Context, handle service.TableHandle) ([]service.Row, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	header, cells, _, err := s.snapshot(ctx, s.db, handle.Partition)
	if err != nil {
		return nil, err
	}
	return service.ToRows(header, cells), nil
}

// ReplaceAll implements service.RecordStore.
func (s *SQLiteStorage) ReplaceAll(ctx context.Context, handle service.TableHandle, header []string, rows [][]string) error {
	return s.write(ctx, handle.Partition, "", func(tx *sql.Tx) (string, int, error) {
		return "replace", len(rows), s.replaceTx(ctx, tx, handle.Partition, header, rows)
	})
}

// AppendRow implements service.RecordStore.
func (s *SQLiteStorage) AppendRow(ctx context.Context, handle service.TableHandle, row []string) error {
	return s.write(ctx, handle.Partition, "", func(tx *sql.Tx) (string, int, error) {
		return "append", 1, s.appendTx(ctx, tx, handle.Partition, row)
	})
}

// ReplaceAllIf implements service.VersionedStore.
func (s *SQLiteStorage) ReplaceAllIf(ctx context.Context, handle service.TableHandle, expected string, header []string, rows [][]string) error {
	return s.write(ctx, handle.Partition, expected, func(tx *sql.Tx) (string, int, error) {
		return "replace", len(rows), s.replaceTx(ctx, tx, handle.Partition, header, rows)
	})
}

// AppendRowIf implements service.VersionedStore.
func (s *SQLiteStorage) AppendRowIf(ctx context.Context, handle service.TableHandle, expected string, row []string) error {
	return s.write(ctx, handle.Partition, expected, func(tx *sql.Tx) (string, int, error) {
		return "append", 1, s.appendTx(ctx, tx, handle.Partition, row)
	})
}

// Version returns the write counter of a partition.
func (s *SQLiteStorage) Version(ctx context.Context, partition string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	_, version, err := s.loadHeader(ctx, s.db, partition)
	return version, err
}

// History returns the write log of a partition, newest first.
func (s *SQLiteStorage) History(ctx context.Context, partition string, limit int) ([]WriteEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT partition, action, version, row_count, written_at
		FROM partition_writes
		WHERE partition = ?
		ORDER BY id DESC
		LIMIT ?`, partition, limit)
	if err != nil {
		return nil, s.unavailable("history", partition, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []WriteEntry
	for rows.Next() {
		var e WriteEntry
		if err := rows.Scan(&e.Partition, &e.Action, &e.Version, &e.RowCount, &e.WrittenAt); err != nil {
			return nil, fmt.Errorf("failed to scan write log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// write runs fn in a transaction. A non-empty expected fingerprint is
// compared against the stored snapshot first.
func (s *SQLiteStorage) write(ctx context.Context, partition, expected string, fn func(*sql.Tx) (string, int, error)) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(partition, "partition"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.unavailable("begin", partition, err)
	}
	defer func() { _ = tx.Rollback() }()

	if expected != "" {
		header, cells, _, err := s.snapshot(ctx, tx, partition)
		if err != nil {
			return err
		}
		if current := reconcile.Fingerprint(header, service.ToRows(header, cells)); current != expected {
			return fmt.Errorf("%w: partition %q", common.ErrConflict, partition)
		}
	}

	action, count, err := fn(tx)
	if err != nil {
		return err
	}

	var version int64
	err = tx.QueryRowContext(ctx,
		`UPDATE partitions SET version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE name = ? RETURNING version`, partition).Scan(&version)
	if err != nil {
		return s.unavailable(action, partition, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO partition_writes (partition, action, version, row_count) VALUES (?, ?, ?, ?)`,
		partition, action, version, count); err != nil {
		return s.unavailable(action, partition, err)
	}

	if err := tx.Commit(); err != nil {
		return s.unavailable("commit", partition, err)
	}

	s.logger.Debug("wrote partition", "partition", partition, "action", action, "version", version)
	return nil
}

func (s *SQLiteStorage) replaceTx(ctx context.Context, tx *sql.Tx, partition string, header []string, rows [][]string) error {
	if err := validateHeader(header); err != nil {
		return err
	}
	encoded, err := encodeCells(header)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO partitions (name, header) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET header = excluded.header`, partition, encoded); err != nil {
		return s.unavailable("replace", partition, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM partition_rows WHERE partition = ?`, partition); err != nil {
		return s.unavailable("replace", partition, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO partition_rows (partition, position, cells) VALUES (?, ?, ?)`)
	if err != nil {
		return s.unavailable("replace", partition, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range rows {
		cells, err := encodeCells(row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, partition, i, cells); err != nil {
			return s.unavailable("replace", partition, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) appendTx(ctx context.Context, tx *sql.Tx, partition string, row []string) error {
	if _, _, err := s.loadHeader(ctx, tx, partition); err != nil {
		return err
	}

	cells, err := encodeCells(row)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO partition_rows (partition, position, cells)
		SELECT ?, COALESCE(MAX(position) + 1, 0), ? FROM partition_rows WHERE partition = ?`,
		partition, cells, partition); err != nil {
		return s.unavailable("append", partition, err)
	}
	return nil
}

func (s *SQLiteStorage) loadHeader(ctx context.Context, q queryer, partition string) ([]string, int64, error) {
	var (
		raw     string
		version int64
	)
	err := q.QueryRowContext(ctx, `SELECT header, version FROM partitions WHERE name = ?`, partition).
		Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w: partition %q", common.ErrNotFound, partition)
	}
	if err != nil {
		return nil, 0, s.unavailable("read", partition, err)
	}

	header, err := decodeCells(raw)
	if err != nil {
		return nil, 0, err
	}
	return header, version, nil
}

func (s *SQLiteStorage) snapshot(ctx context.Context, q queryer, partition string) ([]string, [][]string, int64, error) {
	header, version, err := s.loadHeader(ctx, q, partition)
	if err != nil {
		return nil, nil, 0, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT cells FROM partition_rows WHERE partition = ? ORDER BY position`, partition)
	if err != nil {
		return nil, nil, 0, s.unavailable("read", partition, err)
	}
	defer func() { _ = rows.Close() }()

	var cells [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		row, err := decodeCells(raw)
		if err != nil {
			return nil, nil, 0, err
		}
		cells = append(cells, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, 0, s.unavailable("read", partition, err)
	}

	return header, cells, version, nil
}

func (s *SQLiteStorage) unavailable(op, partition string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", common.ErrStoreUnavailable, op, partition, err)
}

func encodeCells(cells []string) (string, error) {
	if cells == nil {
		cells = []string{}
	}
	b, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("failed to encode cells: %w", err)
	}
	return string(b), nil
}

func decodeCells(raw string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, fmt.Errorf("failed to decode cells: %w", err)
	}
	return cells, nil
}
