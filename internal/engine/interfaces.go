package engine

import (
	"context"

	"github.com/Veraticus/alco/internal/model"
)

// Prompter asks the user whether an existing report may be updated.
type Prompter interface {
	ConfirmUpdate(ctx context.Context, existing, submission model.ReportRecord) (bool, error)
}
