// Package recap aggregates a province table into the yearly per-month
// category breakdown.
package recap

import (
	"sort"

	"github.com/Veraticus/alco/internal/model"
	"github.com/shopspring/decimal"
)

// Row is one month of the recap table.
type Row struct {
	Month            model.Month
	Auction          decimal.Decimal
	StateAssets      decimal.Decimal
	Receivables      decimal.Decimal
	OtherStateAssets decimal.Decimal
	Other            decimal.Decimal
}

// Value returns the sum held for one category field.
func (r Row) Value(f model.Field) decimal.Decimal {
	switch f {
	case model.FieldAuction:
		return r.Auction
	case model.FieldStateAssets:
		return r.StateAssets
	case model.FieldReceivables:
		return r.Receivables
	case model.FieldOtherStateAssets:
		return r.OtherStateAssets
	case model.FieldOther:
		return r.Other
	default:
		return decimal.Zero
	}
}

// Total is the sum of the five categories.
func (r Row) Total() decimal.Decimal {
	return decimal.Sum(r.Auction, r.StateAssets, r.Receivables, r.OtherStateAssets, r.Other)
}

func (r *Row) add(rec model.ReportRecord) {
	// Null amounts add nothing; unparseable cells decode as null.
	r.Auction = r.Auction.Add(rec.Auction.Decimal)
	r.StateAssets = r.StateAssets.Add(rec.StateAssets.Decimal)
	r.Receivables = r.Receivables.Add(rec.Receivables.Decimal)
	r.OtherStateAssets = r.OtherStateAssets.Add(rec.OtherStateAssets.Decimal)
	r.Other = r.Other.Add(rec.Other.Decimal)
}

// Recap filters table to year, sums categories per month and returns the
// months present in calendar order. Rows sharing a month are summed, not
// deduplicated. Rows without a valid month are skipped.
func Recap(table []model.ReportRecord, year int) []Row {
	byMonth := make(map[model.Month]*Row)
	for _, rec := range table {
		if rec.Year != year || !rec.Month.Valid() {
			continue
		}
		row, ok := byMonth[rec.Month]
		if !ok {
			row = &Row{
				Month:            rec.Month,
				Auction:          decimal.Zero,
				StateAssets:      decimal.Zero,
				Receivables:      decimal.Zero,
				OtherStateAssets: decimal.Zero,
				Other:            decimal.Zero,
			}
			byMonth[rec.Month] = row
		}
		row.add(rec)
	}

	rows := make([]Row, 0, len(byMonth))
	for _, row := range byMonth {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Month < rows[j].Month
	})
	return rows
}

// Totals sums every recap row into a single row with no month.
func Totals(rows []Row) Row {
	total := Row{
		Auction:          decimal.Zero,
		StateAssets:      decimal.Zero,
		Receivables:      decimal.Zero,
		OtherStateAssets: decimal.Zero,
		Other:            decimal.Zero,
	}
	for _, r := range rows {
		total.Auction = total.Auction.Add(r.Auction)
		total.StateAssets = total.StateAssets.Add(r.StateAssets)
		total.Receivables = total.Receivables.Add(r.Receivables)
		total.OtherStateAssets = total.OtherStateAssets.Add(r.OtherStateAssets)
		total.Other = total.Other.Add(r.Other)
	}
	return total
}

// Years lists the distinct years present in table, ascending.
func Years(table []model.ReportRecord) []int {
	seen := make(map[int]bool)
	years := make([]int, 0)
	for _, rec := range table {
		if rec.Year == 0 || seen[rec.Year] {
			continue
		}
		seen[rec.Year] = true
		years = append(years, rec.Year)
	}
	sort.Ints(years)
	return years
}
