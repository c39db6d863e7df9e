package recap

import (
	"testing"

	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auctionRow(p model.Province, m model.Month, year int, auction int64) model.ReportRecord {
	return model.ReportRecord{
		Province: p,
		Month:    m,
		Year:     year,
		Auction:  decimal.NewNullDecimal(decimal.NewFromInt(auction)),
	}
}

func TestRecap_CalendarOrder(t *testing.T) {
	table := []model.ReportRecord{
		auctionRow(model.Bali, model.Mar, 2025, 10),
		auctionRow(model.Bali, model.Jan, 2025, 10),
		auctionRow(model.Bali, model.Feb, 2025, 10),
	}

	rows := Recap(table, 2025)

	require.Len(t, rows, 3)
	assert.Equal(t, []model.Month{model.Jan, model.Feb, model.Mar},
		[]model.Month{rows[0].Month, rows[1].Month, rows[2].Month})
	for _, r := range rows {
		assert.True(t, r.Auction.Equal(decimal.NewFromInt(10)), "%s auction %s", r.Month, r.Auction)
	}
}

func TestRecap_CalendarNotAlphabetical(t *testing.T) {
	table := []model.ReportRecord{
		auctionRow(model.Bali, model.Des, 2025, 1),
		auctionRow(model.Bali, model.Agu, 2025, 1),
		auctionRow(model.Bali, model.Apr, 2025, 1),
		auctionRow(model.Bali, model.Mei, 2025, 1),
	}

	rows := Recap(table, 2025)

	var tokens []string
	for _, r := range rows {
		tokens = append(tokens, r.Month.String())
	}
	assert.Equal(t, []string{"Apr", "Mei", "Agu", "Des"}, tokens)
}

func TestRecap_DuplicateRowsAreSummed(t *testing.T) {
	table := []model.ReportRecord{
		auctionRow("X", model.Jan, 2025, 5),
		auctionRow("X", model.Jan, 2025, 5),
	}

	rows := Recap(table, 2025)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Auction.Equal(decimal.NewFromInt(10)))
}

func TestRecap_FiltersYearAndSkipsBadCells(t *testing.T) {
	decoded := model.DecodeRows([]service.Row{
		{"Province": "Bali", "Year": "2025", "Month": "Jan", "Auction": "4", "StateAssets": "abc", "Other": "1.5"},
		{"Province": "Bali", "Year": "2025", "Month": "Jan", "StateAssets": "2"},
		{"Province": "Bali", "Year": "2024", "Month": "Jan", "Auction": "100"},
		{"Province": "Bali", "Year": "2025", "Month": "???", "Auction": "100"},
	})

	rows := Recap(decoded, 2025)

	require.Len(t, rows, 1)
	r := rows[0]
	assert.True(t, r.Auction.Equal(decimal.NewFromInt(4)))
	assert.True(t, r.StateAssets.Equal(decimal.NewFromInt(2)), "unparseable cell excluded")
	assert.True(t, r.Receivables.IsZero())
	assert.True(t, r.Other.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, r.Total().Equal(decimal.RequireFromString("7.5")))
}

func TestRecap_NoZeroFill(t *testing.T) {
	rows := Recap([]model.ReportRecord{auctionRow(model.Bali, model.Jun, 2025, 1)}, 2025)
	require.Len(t, rows, 1)
	assert.Equal(t, model.Jun, rows[0].Month)

	assert.Empty(t, Recap(nil, 2025))
}

func TestTotals(t *testing.T) {
	rows := []Row{
		{Month: model.Jan, Auction: decimal.NewFromInt(1), Other: decimal.NewFromInt(2)},
		{Month: model.Feb, Auction: decimal.NewFromInt(3), Receivables: decimal.NewFromInt(4)},
	}

	total := Totals(rows)

	assert.True(t, total.Auction.Equal(decimal.NewFromInt(4)))
	assert.True(t, total.Receivables.Equal(decimal.NewFromInt(4)))
	assert.True(t, total.Other.Equal(decimal.NewFromInt(2)))
	assert.True(t, total.Total().Equal(decimal.NewFromInt(10)))
	assert.True(t, total.Value(model.FieldReceivables).Equal(decimal.NewFromInt(4)))
	assert.True(t, total.Value(model.FieldNotes).IsZero())
}

func TestYears(t *testing.T) {
	table := []model.ReportRecord{
		auctionRow(model.Bali, model.Jan, 2026, 1),
		auctionRow(model.Bali, model.Jan, 2024, 1),
		auctionRow(model.Bali, model.Feb, 2026, 1),
		{Province: model.Bali},
	}

	assert.Equal(t, []int{2024, 2026}, Years(table))
	assert.Empty(t, Years(nil))
}
