// Package service defines the interfaces shared by the report stores and the
// submission workflow.
package service

import (
	"context"
	"time"
)

// Row is one data row of a partition keyed by header text.
// Numbers arrive already rendered as strings; empty cells are "".
type Row map[string]string

// TableHandle identifies an opened partition and the header it currently
// carries. Header is empty when the partition exists but has no header row.
type TableHandle struct {
	Partition string
	Header    []string
}

// RecordStore is the contract a tabular backend must satisfy.
// There is deliberately no single-row update primitive.
type RecordStore interface {
	// OpenOrCreateTable opens the partition, creating it with the canonical
	// header when it does not exist.
	OpenOrCreateTable(ctx context.Context, partition string) (TableHandle, error)
	// ReadAll returns every non-empty data row below the header.
	ReadAll(ctx context.Context, handle TableHandle) ([]Row, error)
	// ReplaceAll clears the partition and writes header followed by rows.
	ReplaceAll(ctx context.Context, handle TableHandle, header []string, rows [][]string) error
	// AppendRow adds one row after the last data row.
	AppendRow(ctx context.Context, handle TableHandle, row []string) error
}

// VersionedStore is implemented by backends that can compare-and-swap a
// partition. expected is the fingerprint of the snapshot the caller read;
// a mismatch must return common.ErrConflict without writing.
type VersionedStore interface {
	RecordStore
	ReplaceAllIf(ctx context.Context, handle TableHandle, expected string, header []string, rows [][]string) error
	AppendRowIf(ctx context.Context, handle TableHandle, expected string, row []string) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
