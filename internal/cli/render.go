package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/alco/internal/engine"
	"github.com/Veraticus/alco/internal/export"
	"github.com/Veraticus/alco/internal/metrics"
	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/recap"
	"github.com/Veraticus/alco/internal/reconcile"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

// ChartStyle selects how the recap chart groups categories.
type ChartStyle string

// Chart styles.
const (
	ChartClustered ChartStyle = "clustered"
	ChartStacked   ChartStyle = "stacked"
)

// barWidth is the number of cells the longest bar occupies.
const barWidth = 40

// ParseChartStyle accepts "clustered" or "stacked".
func ParseChartStyle(s string) (ChartStyle, error) {
	switch ChartStyle(strings.ToLower(strings.TrimSpace(s))) {
	case ChartClustered, "":
		return ChartClustered, nil
	case ChartStacked:
		return ChartStacked, nil
	default:
		return "", fmt.Errorf("unknown chart style %q (want clustered or stacked)", s)
	}
}

// RenderSubmission renders everything shown after a successful submission.
func RenderSubmission(res *engine.SubmitResult, style ChartStyle) string {
	key := res.Record.Key()

	var outcome string
	if res.Outcome == reconcile.Updated {
		outcome = FormatSuccess(fmt.Sprintf("Updated the report for %s", key))
	} else {
		outcome = FormatSuccess(fmt.Sprintf("Saved a new report for %s", key))
	}

	sections := []string{
		outcome,
		"",
		RenderMetrics(res.Metrics),
		"",
		FormatTitle(fmt.Sprintf("PNBP recap %s %d", key.Province, key.Year)),
		RenderRecapTable(res.Recap),
		"",
		RenderRecapChart(res.Recap, style),
	}
	return strings.Join(sections, "\n")
}

// RenderMetrics draws the month-over-month and year-over-year comparison bars
// and the target achievement of the current report.
func RenderMetrics(s metrics.Summary) string {
	cur := s.Current

	prevLabel := "Previous period"
	var prevValue decimal.Decimal
	if s.HasPrevious {
		prevLabel = fmt.Sprintf("%s %d", s.Previous.Month, s.Previous.Year)
		prevValue = s.Previous.MonthlyRealization.Decimal
	}
	curLabel := fmt.Sprintf("%s %d", cur.Month, cur.Year)
	curValue := cur.MonthlyRealization.Decimal

	ytdPrior := cur.RealizationYTD2024.Decimal
	ytdCurrent := cur.RealizationYTD2025.Decimal

	var b strings.Builder
	b.WriteString(BoldStyle.Render("Month over month") + "  " + formatChange(s.MonthOverMonth) + "\n")
	b.WriteString(comparisonBars(
		[]string{prevLabel, curLabel},
		[]decimal.Decimal{prevValue, curValue},
		[]lipgloss.Color{SubtleColor, PrimaryColor},
	))
	b.WriteString("\n\n")
	b.WriteString(BoldStyle.Render("Year over year (YTD)") + "  " + formatChange(s.YearOverYear) + "\n")
	b.WriteString(comparisonBars(
		[]string{"YTD 2024", "YTD 2025"},
		[]decimal.Decimal{ytdPrior, ytdCurrent},
		[]lipgloss.Color{SubtleColor, PrimaryColor},
	))
	b.WriteString("\n\n")
	b.WriteString(BoldStyle.Render("Target achievement") + "  " + FormatPercent(s.TargetAchievement))
	if cur.MonthlyTarget.Valid {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("  (%s of %s)",
			FormatNullAmount(cur.MonthlyRealization), FormatAmount(cur.MonthlyTarget.Decimal))))
	}
	return b.String()
}

func formatChange(pct decimal.Decimal) string {
	text := FormatPercent(pct)
	switch metrics.DirectionOf(pct) {
	case metrics.Up:
		return SuccessStyle.Render(UpIcon + " " + text)
	case metrics.Down:
		return ErrorStyle.Render(DownIcon + " " + text)
	default:
		return SubtleStyle.Render(FlatIcon + " " + text)
	}
}

func comparisonBars(labels []string, values []decimal.Decimal, colors []lipgloss.Color) string {
	peak := decimal.Zero
	width := 0
	for i, v := range values {
		peak = decimal.Max(peak, v)
		width = max(width, len(labels[i]))
	}

	lines := make([]string, len(values))
	for i, v := range values {
		bar := lipgloss.NewStyle().Foreground(colors[i]).Render(strings.Repeat("█", barLength(v, peak, barWidth)))
		lines[i] = fmt.Sprintf("%-*s %s %s", width, labels[i], bar, FormatAmount(v))
	}
	return strings.Join(lines, "\n")
}

// barLength scales v against peak. Non-positive values draw nothing; any
// positive value draws at least one cell.
func barLength(v, peak decimal.Decimal, width int) int {
	if v.Sign() <= 0 || peak.Sign() <= 0 {
		return 0
	}
	n := int(v.Div(peak).Mul(decimal.NewFromInt(int64(width))).Round(0).IntPart())
	return min(max(n, 1), width)
}

// RenderRecapTable renders recap rows followed by a totals row.
func RenderRecapTable(rows []recap.Row) string {
	if len(rows) == 0 {
		return SubtleStyle.Render("No reports for this year.")
	}

	data := make([][]string, 0, len(rows)+1)
	for _, r := range rows {
		data = append(data, recapCells(r.Month.String(), r))
	}
	data = append(data, recapCells("Total", recap.Totals(rows)))
	last := len(data) - 1

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers(export.Columns...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch row {
			case table.HeaderRow:
				return TableHeaderStyle
			case last:
				style = TableTotalStyle
			default:
				style = TableCellStyle
			}
			if col > 0 {
				style = style.Align(lipgloss.Right)
			}
			return style
		})
	return t.String()
}

func recapCells(label string, r recap.Row) []string {
	cells := []string{label}
	for _, f := range model.CategoryFields {
		cells = append(cells, FormatAmount(r.Value(f)))
	}
	return append(cells, FormatAmount(r.Total()))
}

// RenderRecapChart draws the recap as horizontal bars per month, either one
// bar per category (clustered) or one segmented bar per month (stacked).
func RenderRecapChart(rows []recap.Row, style ChartStyle) string {
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(renderLegend() + "\n\n")
	if style == ChartStacked {
		renderStacked(&b, rows)
	} else {
		renderClustered(&b, rows)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderLegend() string {
	items := make([]string, len(model.CategoryFields))
	for i := range model.CategoryFields {
		swatch := lipgloss.NewStyle().Foreground(CategoryColors[i]).Render("█")
		items[i] = swatch + " " + export.Columns[i+1]
	}
	return strings.Join(items, "  ")
}

func renderClustered(b *strings.Builder, rows []recap.Row) {
	peak := decimal.Zero
	for _, r := range rows {
		for _, f := range model.CategoryFields {
			peak = decimal.Max(peak, r.Value(f))
		}
	}

	for _, r := range rows {
		for i, f := range model.CategoryFields {
			label := ""
			if i == 0 {
				label = r.Month.String()
			}
			v := r.Value(f)
			bar := lipgloss.NewStyle().Foreground(CategoryColors[i]).Render(strings.Repeat("█", barLength(v, peak, barWidth)))
			fmt.Fprintf(b, "%-3s %s %s\n", label, bar, FormatAmount(v))
		}
		b.WriteString("\n")
	}
}

func renderStacked(b *strings.Builder, rows []recap.Row) {
	peak := decimal.Zero
	for _, r := range rows {
		peak = decimal.Max(peak, stackedTotal(r))
	}

	for _, r := range rows {
		fmt.Fprintf(b, "%-3s %s %s\n", r.Month, stackedBar(r, peak, barWidth), FormatAmount(r.Total()))
	}
}

// stackedBar scales the month total to at most width cells and splits those
// cells across categories by cumulative rounding.
func stackedBar(r recap.Row, peak decimal.Decimal, width int) string {
	total := stackedTotal(r)
	n := decimal.NewFromInt(int64(barLength(total, peak, width)))

	var bar strings.Builder
	cum, drawn := decimal.Zero, 0
	for i, f := range model.CategoryFields {
		v := r.Value(f)
		if v.Sign() <= 0 {
			continue
		}
		cum = cum.Add(v)
		end := int(cum.Div(total).Mul(n).Round(0).IntPart())
		bar.WriteString(lipgloss.NewStyle().Foreground(CategoryColors[i]).Render(strings.Repeat("█", end-drawn)))
		drawn = end
	}
	return bar.String()
}

// stackedTotal sums the positive category values of a month.
func stackedTotal(r recap.Row) decimal.Decimal {
	total := decimal.Zero
	for _, f := range model.CategoryFields {
		if v := r.Value(f); v.Sign() > 0 {
			total = total.Add(v)
		}
	}
	return total
}
