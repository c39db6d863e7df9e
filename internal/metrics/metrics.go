// Package metrics computes period-over-period changes for report records.
package metrics

import (
	"sort"

	"github.com/Veraticus/alco/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Direction is the sign of a percentage change.
type Direction string

// Directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

// DirectionOf classifies pct by its sign.
func DirectionOf(pct decimal.Decimal) Direction {
	switch pct.Sign() {
	case 1:
		return Up
	case -1:
		return Down
	default:
		return Flat
	}
}

// Percent returns (current - previous) / previous * 100. A missing or zero
// baseline yields exactly zero.
func Percent(current decimal.Decimal, previous decimal.NullDecimal) decimal.Decimal {
	if !previous.Valid || previous.Decimal.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous.Decimal).Div(previous.Decimal).Mul(hundred)
}

// MonthOverMonth is the change in monthly realization against the previous
// period.
func MonthOverMonth(current decimal.Decimal, previous decimal.NullDecimal) decimal.Decimal {
	return Percent(current, previous)
}

// YearOverYear is the change in year-to-date realization against the prior
// year.
func YearOverYear(ytdCurrent decimal.Decimal, ytdPrior decimal.NullDecimal) decimal.Decimal {
	return Percent(ytdCurrent, ytdPrior)
}

// Chronological returns a copy of table ordered by year then calendar month.
// Rows with equal periods keep their table order.
func Chronological(table []model.ReportRecord) []model.ReportRecord {
	sorted := make([]model.ReportRecord, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Year != sorted[j].Year {
			return sorted[i].Year < sorted[j].Year
		}
		return sorted[i].Month < sorted[j].Month
	})
	return sorted
}

// Previous returns the row of key's province immediately before key in
// chronological order. It reports false when key is absent or sorts first.
func Previous(table []model.ReportRecord, key model.Key) (model.ReportRecord, bool) {
	same := make([]model.ReportRecord, 0, len(table))
	for _, rec := range table {
		if rec.Province == key.Province {
			same = append(same, rec)
		}
	}

	sorted := Chronological(same)
	for i, rec := range sorted {
		if rec.Key() != key {
			continue
		}
		if i == 0 {
			return model.ReportRecord{}, false
		}
		return sorted[i-1], true
	}
	return model.ReportRecord{}, false
}

// Summary bundles the metrics shown after a submission.
type Summary struct {
	MonthOverMonth    decimal.Decimal
	YearOverYear      decimal.Decimal
	TargetAchievement decimal.Decimal
	Current           model.ReportRecord
	Previous          model.ReportRecord
	HasPrevious       bool
}

// MoMDirection is the direction of the month-over-month change.
func (s Summary) MoMDirection() Direction {
	return DirectionOf(s.MonthOverMonth)
}

// YoYDirection is the direction of the year-over-year change.
func (s Summary) YoYDirection() Direction {
	return DirectionOf(s.YearOverYear)
}

// Compute derives the metrics for the row with key. Missing current values
// count as zero; missing baselines yield zero change.
func Compute(table []model.ReportRecord, key model.Key) Summary {
	var s Summary
	for _, rec := range table {
		if rec.Key() == key {
			s.Current = rec
			break
		}
	}

	var previous decimal.NullDecimal
	if prev, ok := Previous(table, key); ok {
		s.Previous = prev
		s.HasPrevious = true
		previous = prev.MonthlyRealization
	}

	s.MonthOverMonth = MonthOverMonth(s.Current.MonthlyRealization.Decimal, previous)
	s.YearOverYear = YearOverYear(s.Current.RealizationYTD2025.Decimal, s.Current.RealizationYTD2024)
	s.TargetAchievement = Achievement(s.Current.MonthlyRealization, s.Current.MonthlyTarget)
	return s
}

// Achievement is realization as a percentage of target, zero without a
// target.
func Achievement(realization, target decimal.NullDecimal) decimal.Decimal {
	if !realization.Valid || !target.Valid || target.Decimal.IsZero() {
		return decimal.Zero
	}
	return realization.Decimal.Div(target.Decimal).Mul(hundred)
}
