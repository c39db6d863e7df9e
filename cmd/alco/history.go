package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Veraticus/alco/internal/cli"
	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/storage"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var errNoHistory = errors.New("write history is only recorded by the sqlite store (set store.backend: sqlite)")

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent writes to a province table",
		Long: `List the most recent writes to one province table, newest first.

Only the sqlite store keeps a write log.`,
		RunE: runHistory,
	}

	cmd.Flags().String("province", "", "province name (required)")
	cmd.Flags().Int("limit", 20, "number of entries to show")

	_ = cmd.MarkFlagRequired("province")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	provinceFlag, _ := cmd.Flags().GetString("province")
	province, err := model.ParseProvince(provinceFlag)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer s.close()

	if s.sqlite == nil {
		return errNoHistory
	}

	ctx, cancel := s.storeContext(cmd.Context())
	defer cancel()

	entries, err := s.sqlite.History(ctx, string(province), limit)
	if err != nil {
		return err
	}
	return writeHistory(cmd.OutOrStdout(), province, entries)
}

func writeHistory(w io.Writer, province model.Province, entries []storage.WriteEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, cli.FormatInfo(fmt.Sprintf("No writes recorded for %s.", province)))
		return err
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.WrittenAt.Local().Format(time.DateTime),
			e.Action,
			strconv.FormatInt(e.Version, 10),
			strconv.Itoa(e.RowCount),
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(cli.SubtleStyle).
		Headers("Written at", "Action", "Version", "Rows").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return cli.TableHeaderStyle
			}
			return cli.TableCellStyle
		})

	_, err := fmt.Fprintln(w, cli.FormatTitle("Write history "+string(province))+"\n"+t.String())
	return err
}
