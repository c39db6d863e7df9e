// Package export writes recap tables to Excel workbooks.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/recap"
	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned when there is nothing to write.
var ErrNoSheets = errors.New("no recap sheets to write")

// Columns is the header of every recap worksheet.
var Columns = []string{"Month", "Auction", "State Assets", "Receivables", "Other State Assets", "Other", "Total"}

const (
	titleRow  = 1
	headerRow = 3
	firstRow  = 4
)

// ProvinceRecap is one worksheet of the workbook.
type ProvinceRecap struct {
	Province model.Province
	Rows     []recap.Row
	Year     int
}

// WriteRecapWorkbook writes one worksheet per province: a title, the header,
// one line per month in calendar order and a totals line.
func WriteRecapWorkbook(w io.Writer, recaps []ProvinceRecap) error {
	if len(recaps) == 0 {
		return ErrNoSheets
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(recaps))
	for i, pr := range recaps {
		sheet := string(pr.Province)
		if seen[sheet] {
			return fmt.Errorf("duplicate worksheet %q", sheet)
		}
		seen[sheet] = true

		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("failed to name worksheet %q: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to add worksheet %q: %w", sheet, err)
		}

		if err := writeSheet(f, sheet, pr, styles); err != nil {
			return fmt.Errorf("failed to write worksheet %q: %w", sheet, err)
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type styles struct {
	title  int
	header int
	amount int
	total  int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error

	if s.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	}); err != nil {
		return s, fmt.Errorf("failed to create title style: %w", err)
	}

	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E6E6E6"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}

	if s.amount, err = f.NewStyle(&excelize.Style{NumFmt: 4}); err != nil {
		return s, fmt.Errorf("failed to create amount style: %w", err)
	}

	if s.total, err = f.NewStyle(&excelize.Style{
		NumFmt: 4,
		Font:   &excelize.Font{Bold: true},
		Border: []excelize.Border{{Type: "top", Color: "000000", Style: 1}},
	}); err != nil {
		return s, fmt.Errorf("failed to create total style: %w", err)
	}

	return s, nil
}

func writeSheet(f *excelize.File, sheet string, pr ProvinceRecap, st styles) error {
	title := fmt.Sprintf("PNBP recap %s %d", pr.Province, pr.Year)
	if err := f.SetCellValue(sheet, cell(1, titleRow), title); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell(1, titleRow), cell(1, titleRow), st.title); err != nil {
		return err
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, cell(1, headerRow), &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell(1, headerRow), cell(len(Columns), headerRow), st.header); err != nil {
		return err
	}

	row := firstRow
	for _, r := range pr.Rows {
		if err := f.SetSheetRow(sheet, cell(1, row), rowValues(r.Month.String(), r)); err != nil {
			return err
		}
		row++
	}

	if err := f.SetSheetRow(sheet, cell(1, row), rowValues("Total", recap.Totals(pr.Rows))); err != nil {
		return err
	}

	if row > firstRow {
		if err := f.SetCellStyle(sheet, cell(2, firstRow), cell(len(Columns), row-1), st.amount); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, cell(1, row), cell(len(Columns), row), st.total); err != nil {
		return err
	}

	if err := f.SetColWidth(sheet, "A", "A", 10); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", colName(len(Columns)), 20); err != nil {
		return err
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: cell(1, firstRow),
		ActivePane:  "bottomLeft",
	})
}

func rowValues(label string, r recap.Row) *[]any {
	values := []any{label}
	for _, f := range model.CategoryFields {
		values = append(values, r.Value(f).InexactFloat64())
	}
	values = append(values, r.Total().InexactFloat64())
	return &values
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func colName(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}
