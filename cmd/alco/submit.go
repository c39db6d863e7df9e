package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Veraticus/alco/internal/cli"
	"github.com/Veraticus/alco/internal/engine"
	"github.com/Veraticus/alco/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// amountFlags maps submit flags onto the amount columns they fill.
var amountFlags = []struct {
	name  string
	usage string
	field model.Field
}{
	{"monthly-target", "monthly target", model.FieldMonthlyTarget},
	{"monthly-realization", "monthly realization", model.FieldMonthlyRealization},
	{"annual-target-2024", "annual target 2024", model.FieldAnnualTarget2024},
	{"annual-target-2025", "annual target 2025", model.FieldAnnualTarget2025},
	{"ytd-2024", "realization year-to-date 2024", model.FieldRealizationYTD2024},
	{"ytd-2025", "realization year-to-date 2025", model.FieldRealizationYTD2025},
	{"auction", "PNBP from auctions", model.FieldAuction},
	{"state-assets", "PNBP from state assets", model.FieldStateAssets},
	{"receivables", "PNBP from receivables", model.FieldReceivables},
	{"other-state-assets", "PNBP from other state assets", model.FieldOtherStateAssets},
	{"other", "other PNBP", model.FieldOther},
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit or update a monthly report",
		Long: `Submit the monthly PNBP figures of one province.

A report for a province and month that is not stored yet is added. If one
exists it is updated in place: only the values given here replace stored
values, blank ones are kept. Updates ask for confirmation unless --yes is set.`,
		Example: `  alco submit --province "Jawa Barat" --month Mar --year 2025 \
    --monthly-target 1500000 --monthly-realization 1250000 --auction 400000`,
		RunE: runSubmit,
	}

	cmd.Flags().String("province", "", "province name (required)")
	cmd.Flags().String("month", "", "month: Jan..Des, English or Indonesian name, or 1-12 (required)")
	cmd.Flags().Int("year", 0, "report year (required)")
	cmd.Flags().String("notes", "", "free-text notes")
	cmd.Flags().Bool("yes", false, "update an existing report without asking")
	cmd.Flags().String("chart", string(cli.ChartClustered), "recap chart style (clustered, stacked)")
	for _, f := range amountFlags {
		cmd.Flags().String(f.name, "", f.usage)
	}

	_ = cmd.MarkFlagRequired("province")
	_ = cmd.MarkFlagRequired("month")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	chartFlag, _ := cmd.Flags().GetString("chart")
	chart, err := cli.ParseChartStyle(chartFlag)
	if err != nil {
		return err
	}

	input := submissionInput(cmd.Flags())
	submission, err := model.ParseSubmission(input)
	if err != nil {
		return err
	}

	var prompter engine.Prompter
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		prompter = cli.NewPrompter(os.Stdin, cmd.OutOrStdout())
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx, stop := handler.HandleInterrupts(cmd.Context(), "Submission")
	defer stop()

	s, err := openSession(ctx, prompter)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := s.engine.Submit(ctx, submission)
	if errors.Is(err, engine.ErrUpdateDeclined) {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Update canceled; the stored report was not changed."))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderSubmission(result, chart))
	return nil
}

// submissionInput collects the raw flag values. Amount flags that were not
// given are left out so they keep their stored values.
func submissionInput(flags *pflag.FlagSet) model.SubmissionInput {
	province, _ := flags.GetString("province")
	month, _ := flags.GetString("month")
	year, _ := flags.GetInt("year")
	notes, _ := flags.GetString("notes")

	input := model.SubmissionInput{
		Province: province,
		Month:    month,
		Year:     year,
		Notes:    notes,
		Amounts:  make(map[model.Field]string),
	}
	for _, f := range amountFlags {
		if !flags.Changed(f.name) {
			continue
		}
		value, _ := flags.GetString(f.name)
		input.Amounts[f.field] = value
	}
	return input
}
