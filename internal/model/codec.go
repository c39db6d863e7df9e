package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/alco/internal/common"
	"github.com/Veraticus/alco/internal/service"
	"github.com/shopspring/decimal"
)

// legacyHeaders are the header texts used by sheets created before the
// columns were renamed.
var legacyHeaders = map[string]Field{
	"provinsi":          FieldProvince,
	"tahun":             FieldYear,
	"bulan":             FieldMonth,
	"targetbulanan":     FieldMonthlyTarget,
	"realisasibulanan":  FieldMonthlyRealization,
	"targettahunan2024": FieldAnnualTarget2024,
	"targettahunan2025": FieldAnnualTarget2025,
	"realisasiytd2024":  FieldRealizationYTD2024,
	"realisasiytd2025":  FieldRealizationYTD2025,
	"lelang":            FieldAuction,
	"bmn":               FieldStateAssets,
	"piutang":           FieldReceivables,
	"knl":               FieldOtherStateAssets,
	"lainnya":           FieldOther,
	"catatan":           FieldNotes,
}

// ResolveHeader maps a header cell onto its field.
func ResolveHeader(h string) (Field, bool) {
	h = strings.TrimSpace(h)
	for _, f := range Columns {
		if strings.EqualFold(string(f), h) {
			return f, true
		}
	}
	f, ok := legacyHeaders[strings.ToLower(h)]
	return f, ok
}

// HasKeyColumns reports whether header carries Province, Month and Year.
func HasKeyColumns(header []string) bool {
	seen := make(map[Field]bool, 3)
	for _, h := range header {
		if f, ok := ResolveHeader(h); ok {
			seen[f] = true
		}
	}
	return seen[FieldProvince] && seen[FieldMonth] && seen[FieldYear]
}

// IsCanonicalHeader reports whether header matches Header() exactly.
func IsCanonicalHeader(header []string) bool {
	if len(header) != len(Columns) {
		return false
	}
	for i, f := range Columns {
		if header[i] != string(f) {
			return false
		}
	}
	return true
}

// ParseAmount parses a decimal cell or input. Blank input is null.
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %q is not a number", common.ErrValidation, s)
	}
	return decimal.NewNullDecimal(d), nil
}

// parseYear accepts integral values, including the "2025.0" form some
// spreadsheet exports produce.
func parseYear(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return 0, false
	}
	return int(d.IntPart()), true
}

// DecodeRow converts a store row into a record. Cells that fail to parse are
// treated as missing; their raw text is kept for re-encoding.
func DecodeRow(row service.Row) ReportRecord {
	var r ReportRecord
	for header, raw := range row {
		f, ok := ResolveHeader(header)
		if !ok {
			continue
		}
		value := strings.TrimSpace(raw)

		switch f {
		case FieldTimestamp:
			r.Timestamp = value
		case FieldProvince:
			if p, err := ParseProvince(value); err == nil {
				r.Province = p
			} else {
				r.Province = Province(value)
			}
		case FieldNotes:
			r.Notes = raw
		case FieldYear:
			if value == "" {
				continue
			}
			if y, ok := parseYear(value); ok {
				r.Year = y
			} else {
				r.setInvalid(f, raw)
			}
		case FieldMonth:
			if value == "" {
				continue
			}
			if m, err := ParseMonth(value); err == nil {
				r.Month = m
			} else {
				r.setInvalid(f, raw)
			}
		default:
			amount, err := ParseAmount(value)
			if err != nil {
				r.setInvalid(f, raw)
				continue
			}
			*r.amountRef(f) = amount
		}
	}
	return r
}

// DecodeRows decodes every row in order.
func DecodeRows(rows []service.Row) []ReportRecord {
	records := make([]ReportRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, DecodeRow(row))
	}
	return records
}

// Cells encodes the record in column order.
func (r ReportRecord) Cells() []string {
	cells := make([]string, len(Columns))
	for i, f := range Columns {
		cells[i] = r.cell(f)
	}
	return cells
}

func (r ReportRecord) cell(f Field) string {
	if raw, ok := r.invalid[f]; ok {
		return raw
	}

	switch f {
	case FieldTimestamp:
		return r.Timestamp
	case FieldProvince:
		return string(r.Province)
	case FieldNotes:
		return r.Notes
	case FieldYear:
		if r.Year == 0 {
			return ""
		}
		return strconv.Itoa(r.Year)
	case FieldMonth:
		if !r.Month.Valid() {
			return ""
		}
		return r.Month.String()
	default:
		amount := r.Amount(f)
		if !amount.Valid {
			return ""
		}
		return amount.Decimal.String()
	}
}

// EncodeRows encodes records in order.
func EncodeRows(records []ReportRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Cells())
	}
	return rows
}
