// Package reconcile decides how a report submission lands in a province
// table: as a new row, or merged into the existing row for its key.
//
// The functions here are pure. Callers read the table, call Reconcile, and
// write the returned table back through a store.
package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/service"
)

// Outcome reports what Reconcile did with a submission.
type Outcome string

// Reconcile outcomes.
const (
	Inserted Outcome = "inserted"
	Updated  Outcome = "updated"
)

// Result is the complete table after reconciliation.
type Result struct {
	Outcome Outcome
	Table   []model.ReportRecord
	// Index is the position of the inserted or merged row in Table.
	Index int
}

// Record returns the inserted or merged row.
func (r Result) Record() model.ReportRecord {
	return r.Table[r.Index]
}

// Find returns the index of the first row with the given key, or -1.
func Find(table []model.ReportRecord, key model.Key) int {
	for i, rec := range table {
		if rec.Key() == key {
			return i
		}
	}
	return -1
}

// Reconcile inserts submission into current or merges it into the first row
// sharing its key. current is never modified.
func Reconcile(current []model.ReportRecord, submission model.ReportRecord) Result {
	table := make([]model.ReportRecord, 0, len(current)+1)
	for _, rec := range current {
		table = append(table, rec.Clone())
	}

	idx := Find(table, submission.Key())
	if idx < 0 {
		table = append(table, submission.Clone())
		return Result{Outcome: Inserted, Table: table, Index: len(table) - 1}
	}

	table[idx] = Merge(table[idx], submission)
	return Result{Outcome: Updated, Table: table, Index: idx}
}

// Merge applies the sparse update rule: every field present in submission
// replaces the existing value, absent fields are kept.
func Merge(existing, submission model.ReportRecord) model.ReportRecord {
	merged := existing.Clone()

	if strings.TrimSpace(submission.Timestamp) != "" {
		merged.Timestamp = submission.Timestamp
	}
	for _, f := range model.AmountFields {
		if v := submission.Amount(f); v.Valid {
			merged.SetAmount(f, v)
		}
	}
	if strings.TrimSpace(submission.Notes) != "" {
		merged.Notes = submission.Notes
	}

	return merged
}

// Action is the store primitive a write plan needs.
type Action int

// Write actions.
const (
	ActionReplaceAll Action = iota
	ActionAppendRow
)

func (a Action) String() string {
	if a == ActionAppendRow {
		return "append"
	}
	return "replace"
}

// WritePlan describes how to persist a Result.
type WritePlan struct {
	Header []string
	Rows   [][]string
	Action Action
}

// Plan chooses the cheapest store operation for result. An insert into a
// table whose header is already canonical is a single append; anything else
// rewrites header and rows.
func Plan(header []string, result Result) WritePlan {
	if result.Outcome == Inserted && model.IsCanonicalHeader(header) && result.Index == len(result.Table)-1 {
		return WritePlan{
			Action: ActionAppendRow,
			Header: model.Header(),
			Rows:   [][]string{result.Record().Cells()},
		}
	}
	return WritePlan{
		Action: ActionReplaceAll,
		Header: model.Header(),
		Rows:   model.EncodeRows(result.Table),
	}
}

// Decode turns the header and rows read from a store into records. A header
// without the key columns is treated as an empty table.
func Decode(header []string, rows []service.Row) []model.ReportRecord {
	if !model.HasKeyColumns(header) {
		return nil
	}
	return model.DecodeRows(rows)
}

// Fingerprint returns a stable token for a table snapshot. Two reads that
// return the same header and cells produce the same fingerprint.
func Fingerprint(header []string, rows []service.Row) string {
	h := sha256.New()
	writeRow := func(cells []string) {
		for _, c := range cells {
			h.Write([]byte(c))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	writeRow(header)
	cells := make([]string, len(header))
	for _, row := range rows {
		for i, name := range header {
			cells[i] = row[name]
		}
		writeRow(cells)
	}
	return hex.EncodeToString(h.Sum(nil))
}
