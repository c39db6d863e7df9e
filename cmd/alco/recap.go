package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/alco/internal/cli"
	"github.com/Veraticus/alco/internal/engine"
	"github.com/Veraticus/alco/internal/export"
	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/recap"
	"github.com/spf13/cobra"
)

func recapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recap",
		Short: "Show the yearly PNBP recap of a province",
		Long: `Show the per-month PNBP category totals of one province for a year.

Without --year the latest year that has reports is shown.`,
		RunE: runRecap,
	}

	cmd.Flags().String("province", "", "province name (required)")
	cmd.Flags().Int("year", 0, "recap year (default: latest year with reports)")
	cmd.Flags().String("chart", string(cli.ChartClustered), "chart style (clustered, stacked)")
	cmd.Flags().String("format", cli.FormatTable, "output format (table, json, csv)")
	cmd.Flags().String("xlsx", "", "also write the recap to this Excel workbook")

	_ = cmd.MarkFlagRequired("province")

	return cmd
}

func runRecap(cmd *cobra.Command, _ []string) error {
	provinceFlag, _ := cmd.Flags().GetString("province")
	province, err := model.ParseProvince(provinceFlag)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if err := cli.ValidateFormat(format); err != nil {
		return err
	}
	format = strings.ToLower(format)

	chartFlag, _ := cmd.Flags().GetString("chart")
	chart, err := cli.ParseChartStyle(chartFlag)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer s.close()

	year, _ := cmd.Flags().GetInt("year")
	year, found, err := resolveYear(ctx, s.engine, province, year)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("No reports stored for %s yet.", province)))
		return nil
	}

	rows, err := s.engine.Recap(ctx, province, year)
	if err != nil {
		return err
	}

	if err := writeRecap(cmd.OutOrStdout(), format, chart, province, year, rows); err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
		recaps := []export.ProvinceRecap{{Province: province, Year: year, Rows: rows}}
		if err := writeWorkbook(path, recaps); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess("Wrote "+path))
	}
	return nil
}

// resolveYear returns year unchanged when set, otherwise the latest year in
// the province table. found is false when the table holds no reports.
func resolveYear(ctx context.Context, eng *engine.Engine, province model.Province, year int) (int, bool, error) {
	if year != 0 {
		return year, true, nil
	}
	years, err := eng.Years(ctx, province)
	if err != nil {
		return 0, false, err
	}
	if len(years) == 0 {
		return 0, false, nil
	}
	return years[len(years)-1], true, nil
}

func writeRecap(w io.Writer, format string, chart cli.ChartStyle, province model.Province, year int, rows []recap.Row) error {
	switch format {
	case cli.FormatJSON:
		return cli.WriteRecapJSON(w, province, year, rows)
	case cli.FormatCSV:
		return cli.WriteRecapCSV(w, rows)
	}

	out := []string{
		cli.FormatTitle(fmt.Sprintf("PNBP recap %s %d", province, year)),
		cli.RenderRecapTable(rows),
	}
	if len(rows) > 0 {
		out = append(out, "", cli.RenderRecapChart(rows, chart))
	}
	_, err := fmt.Fprintln(w, strings.Join(out, "\n"))
	return err
}

// writeWorkbook writes recaps to path, removing a partial file on failure.
func writeWorkbook(path string, recaps []export.ProvinceRecap) (err error) {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
		if err != nil {
			if rerr := os.Remove(path); rerr != nil {
				slog.Warn("Failed to remove partial workbook", "path", path, "error", rerr)
			}
		}
	}()

	if err := export.WriteRecapWorkbook(f, recaps); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
