package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/alco/internal/cli"
	"github.com/Veraticus/alco/internal/export"
	"github.com/Veraticus/alco/internal/model"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the recap of every province to an Excel workbook",
		Long: `Write one worksheet per province with its per-month PNBP category totals
for the given year.`,
		RunE: runExport,
	}

	cmd.Flags().String("xlsx", "", "workbook to write (required)")
	cmd.Flags().Int("year", time.Now().Year(), "recap year")

	_ = cmd.MarkFlagRequired("xlsx")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("xlsx")
	year, _ := cmd.Flags().GetInt("year")

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx, stop := handler.HandleInterrupts(cmd.Context(), "Export")
	defer stop()

	s, err := openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer s.close()

	provinces := model.Provinces()
	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(provinces), "Reading province tables...")

	recaps := make([]export.ProvinceRecap, 0, len(provinces))
	for _, province := range provinces {
		rows, err := s.engine.Recap(ctx, province, year)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", province, err)
		}
		recaps = append(recaps, export.ProvinceRecap{Province: province, Year: year, Rows: rows})

		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}

	if err := writeWorkbook(path, recaps); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d provinces for %d to %s", len(recaps), year, path)))
	return nil
}
