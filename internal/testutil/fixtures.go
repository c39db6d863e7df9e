package testutil

import (
	"testing"

	"github.com/Veraticus/alco/internal/model"
)

// ReportBuilder assembles report records for tests.
type ReportBuilder struct {
	t      testing.TB
	record model.ReportRecord
}

// NewReport starts a record for the given key.
func NewReport(province model.Province, year int, month model.Month) *ReportBuilder {
	return &ReportBuilder{
		record: model.ReportRecord{
			Province: province,
			Year:     year,
			Month:    month,
		},
	}
}

// WithT makes Amount fail the test on unparseable input instead of panicking.
func (b *ReportBuilder) WithT(t testing.TB) *ReportBuilder {
	b.t = t
	return b
}

// Amount sets an amount field from its decimal text.
func (b *ReportBuilder) Amount(f model.Field, value string) *ReportBuilder {
	v, err := model.ParseAmount(value)
	if err != nil {
		if b.t != nil {
			b.t.Helper()
			b.t.Fatalf("invalid amount %q for %s: %v", value, f, err)
			return b
		}
		panic(err)
	}
	b.record.SetAmount(f, v)
	return b
}

// Notes sets the free-text notes.
func (b *ReportBuilder) Notes(notes string) *ReportBuilder {
	b.record.Notes = notes
	return b
}

// Timestamp sets the submission timestamp text.
func (b *ReportBuilder) Timestamp(ts string) *ReportBuilder {
	b.record.Timestamp = ts
	return b
}

// Build returns a copy of the assembled record.
func (b *ReportBuilder) Build() model.ReportRecord {
	return b.record.Clone()
}
