// Package model defines the report record and its tabular encoding.
package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Field names one column of a province table.
type Field string

// Report columns. The string value is the header text written to the store.
const (
	FieldTimestamp          Field = "Timestamp"
	FieldProvince           Field = "Province"
	FieldYear               Field = "Year"
	FieldMonth              Field = "Month"
	FieldMonthlyTarget      Field = "MonthlyTarget"
	FieldMonthlyRealization Field = "MonthlyRealization"
	FieldAnnualTarget2024   Field = "AnnualTarget2024"
	FieldAnnualTarget2025   Field = "AnnualTarget2025"
	FieldRealizationYTD2024 Field = "RealizationYTD2024"
	FieldRealizationYTD2025 Field = "RealizationYTD2025"
	FieldAuction            Field = "Auction"
	FieldStateAssets        Field = "StateAssets"
	FieldReceivables        Field = "Receivables"
	FieldOtherStateAssets   Field = "OtherStateAssets"
	FieldOther              Field = "Other"
	FieldNotes              Field = "Notes"
)

// Columns is the fixed column order of every province table.
var Columns = []Field{
	FieldTimestamp, FieldProvince, FieldYear, FieldMonth,
	FieldMonthlyTarget, FieldMonthlyRealization,
	FieldAnnualTarget2024, FieldAnnualTarget2025,
	FieldRealizationYTD2024, FieldRealizationYTD2025,
	FieldAuction, FieldStateAssets, FieldReceivables, FieldOtherStateAssets, FieldOther,
	FieldNotes,
}

// AmountFields are the nullable decimal columns.
var AmountFields = []Field{
	FieldMonthlyTarget, FieldMonthlyRealization,
	FieldAnnualTarget2024, FieldAnnualTarget2025,
	FieldRealizationYTD2024, FieldRealizationYTD2025,
	FieldAuction, FieldStateAssets, FieldReceivables, FieldOtherStateAssets, FieldOther,
}

// CategoryFields are the five PNBP breakdown columns summed by the recap.
var CategoryFields = []Field{
	FieldAuction, FieldStateAssets, FieldReceivables, FieldOtherStateAssets, FieldOther,
}

// Header returns the header row in column order.
func Header() []string {
	header := make([]string, len(Columns))
	for i, f := range Columns {
		header[i] = string(f)
	}
	return header
}

// Key is the composite identity of a report record.
type Key struct {
	Province Province
	Year     int
	Month    Month
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s %d", k.Province, k.Month, k.Year)
}

// ReportRecord is one row of a province table.
type ReportRecord struct {
	Timestamp          string
	Province           Province
	Notes              string
	MonthlyTarget      decimal.NullDecimal
	MonthlyRealization decimal.NullDecimal
	AnnualTarget2024   decimal.NullDecimal
	AnnualTarget2025   decimal.NullDecimal
	RealizationYTD2024 decimal.NullDecimal
	RealizationYTD2025 decimal.NullDecimal
	Auction            decimal.NullDecimal
	StateAssets        decimal.NullDecimal
	Receivables        decimal.NullDecimal
	OtherStateAssets   decimal.NullDecimal
	Other              decimal.NullDecimal
	// invalid keeps the raw text of cells that failed to parse so a rewrite
	// does not erase them.
	invalid map[Field]string
	Year    int
	Month   Month
}

// Key returns the record's composite key.
func (r ReportRecord) Key() Key {
	return Key{Province: r.Province, Year: r.Year, Month: r.Month}
}

// Amount returns the value of an amount column. Unknown fields are null.
func (r ReportRecord) Amount(f Field) decimal.NullDecimal {
	if ref := r.amountRef(f); ref != nil {
		return *ref
	}
	return decimal.NullDecimal{}
}

// SetAmount stores v in an amount column and drops any unparseable raw text
// previously held for it.
func (r *ReportRecord) SetAmount(f Field, v decimal.NullDecimal) {
	ref := r.amountRef(f)
	if ref == nil {
		return
	}
	*ref = v
	r.clearInvalid(f)
}

// Invalid returns the raw text of a cell that could not be parsed.
func (r ReportRecord) Invalid(f Field) (string, bool) {
	raw, ok := r.invalid[f]
	return raw, ok
}

// Clone returns a deep copy safe to mutate.
func (r ReportRecord) Clone() ReportRecord {
	if r.invalid != nil {
		invalid := make(map[Field]string, len(r.invalid))
		for k, v := range r.invalid {
			invalid[k] = v
		}
		r.invalid = invalid
	}
	return r
}

func (r *ReportRecord) setInvalid(f Field, raw string) {
	if r.invalid == nil {
		r.invalid = make(map[Field]string)
	}
	r.invalid[f] = raw
}

func (r *ReportRecord) clearInvalid(f Field) {
	delete(r.invalid, f)
	if len(r.invalid) == 0 {
		r.invalid = nil
	}
}

func (r *ReportRecord) amountRef(f Field) *decimal.NullDecimal {
	switch f {
	case FieldMonthlyTarget:
		return &r.MonthlyTarget
	case FieldMonthlyRealization:
		return &r.MonthlyRealization
	case FieldAnnualTarget2024:
		return &r.AnnualTarget2024
	case FieldAnnualTarget2025:
		return &r.AnnualTarget2025
	case FieldRealizationYTD2024:
		return &r.RealizationYTD2024
	case FieldRealizationYTD2025:
		return &r.RealizationYTD2025
	case FieldAuction:
		return &r.Auction
	case FieldStateAssets:
		return &r.StateAssets
	case FieldReceivables:
		return &r.Receivables
	case FieldOtherStateAssets:
		return &r.OtherStateAssets
	case FieldOther:
		return &r.Other
	default:
		return nil
	}
}
