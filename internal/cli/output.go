package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/alco/internal/export"
	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/recap"
	"github.com/shopspring/decimal"
)

// Output formats for the recap command.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// ValidateFormat checks an output format name.
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case FormatTable, FormatJSON, FormatCSV:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or csv)", format)
	}
}

type recapJSON struct {
	Province string         `json:"province"`
	Months   []recapRowJSON `json:"months"`
	Total    recapRowJSON   `json:"total"`
	Year     int            `json:"year"`
}

type recapRowJSON struct {
	Month            string          `json:"month,omitempty"`
	Auction          decimal.Decimal `json:"auction"`
	StateAssets      decimal.Decimal `json:"state_assets"`
	Receivables      decimal.Decimal `json:"receivables"`
	OtherStateAssets decimal.Decimal `json:"other_state_assets"`
	Other            decimal.Decimal `json:"other"`
	Total            decimal.Decimal `json:"total"`
}

func toRowJSON(month string, r recap.Row) recapRowJSON {
	return recapRowJSON{
		Month:            month,
		Auction:          r.Auction,
		StateAssets:      r.StateAssets,
		Receivables:      r.Receivables,
		OtherStateAssets: r.OtherStateAssets,
		Other:            r.Other,
		Total:            r.Total(),
	}
}

// WriteRecapJSON writes the recap as an indented JSON document. Amounts are
// encoded as decimal strings.
func WriteRecapJSON(w io.Writer, province model.Province, year int, rows []recap.Row) error {
	doc := recapJSON{
		Province: string(province),
		Year:     year,
		Months:   make([]recapRowJSON, 0, len(rows)),
		Total:    toRowJSON("", recap.Totals(rows)),
	}
	for _, r := range rows {
		doc.Months = append(doc.Months, toRowJSON(r.Month.String(), r))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode recap: %w", err)
	}
	return nil
}

// WriteRecapCSV writes the recap with the workbook's column header and a
// final Total row. Amounts use plain decimal notation.
func WriteRecapCSV(w io.Writer, rows []recap.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(export.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	write := func(label string, r recap.Row) error {
		record := []string{label}
		for _, f := range model.CategoryFields {
			record = append(record, r.Value(f).String())
		}
		return cw.Write(append(record, r.Total().String()))
	}

	for _, r := range rows {
		if err := write(r.Month.String(), r); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	if err := write("Total", recap.Totals(rows)); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
