package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Veraticus/alco/internal/model"
)

// ErrInputTerminated is returned when the input stream ends before the user
// answered.
var ErrInputTerminated = errors.New("input terminated")

// FieldChange describes one value an update would overwrite.
type FieldChange struct {
	Field  model.Field
	Before string
	After  string
}

// Prompter asks for confirmation on the terminal before an existing report
// is overwritten.
type Prompter struct {
	reader *NonBlockingReader
	writer io.Writer
}

// NewPrompter creates a prompter reading answers from reader.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	return &Prompter{
		reader: NewNonBlockingReader(reader),
		writer: writer,
	}
}

// ConfirmUpdate shows what the submission would change and asks the user to
// confirm. An empty answer declines.
func (p *Prompter) ConfirmUpdate(ctx context.Context, existing, submission model.ReportRecord) (bool, error) {
	title := fmt.Sprintf("A report for %s already exists", existing.Key())
	if _, err := fmt.Fprintln(p.writer, RenderBox(title, renderChanges(UpdateChanges(existing, submission)))); err != nil {
		return false, fmt.Errorf("failed to write update summary: %w", err)
	}

	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt("Update the existing report? [y/N]")); err != nil {
			return false, fmt.Errorf("failed to write prompt: %w", err)
		}

		answer, err := p.reader.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, ErrInputTerminated
			}
			return false, err
		}

		switch strings.ToLower(answer) {
		case "y", "yes", "ya":
			return true, nil
		case "", "n", "no", "tidak":
			return false, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Please answer y or n.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

// UpdateChanges lists the fields whose stored value the submission would
// replace. Blank submission fields leave the stored value alone and are not
// listed.
func UpdateChanges(existing, submission model.ReportRecord) []FieldChange {
	var changes []FieldChange
	for _, f := range model.AmountFields {
		next := submission.Amount(f)
		if !next.Valid {
			continue
		}
		before := existing.Amount(f)
		raw, invalid := existing.Invalid(f)
		if before.Valid && !invalid && before.Decimal.Equal(next.Decimal) {
			continue
		}
		change := FieldChange{Field: f, Before: FormatNullAmount(before), After: FormatAmount(next.Decimal)}
		if invalid {
			change.Before = raw
		}
		changes = append(changes, change)
	}

	if submission.Notes != "" && submission.Notes != existing.Notes {
		before := existing.Notes
		if before == "" {
			before = "-"
		}
		changes = append(changes, FieldChange{Field: model.FieldNotes, Before: before, After: submission.Notes})
	}
	return changes
}

func renderChanges(changes []FieldChange) string {
	if len(changes) == 0 {
		return SubtleStyle.Render("No values change; only the timestamp is refreshed.")
	}

	width := 0
	for _, c := range changes {
		width = max(width, len(c.Field))
	}

	var b strings.Builder
	for i, c := range changes {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%-*s  %s → %s", width, c.Field, SubtleStyle.Render(c.Before), BoldStyle.Render(c.After))
	}
	return b.String()
}
