// Package engine runs the submission workflow: read a province table,
// reconcile the submission into it, write it back and compute the figures
// shown to the user.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/alco/internal/common"
	"github.com/Veraticus/alco/internal/metrics"
	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/recap"
	"github.com/Veraticus/alco/internal/reconcile"
	"github.com/Veraticus/alco/internal/service"
)

// ErrUpdateDeclined is returned when the prompter refuses to overwrite an
// existing report. Nothing is written.
var ErrUpdateDeclined = errors.New("update declined")

// Config holds configuration options for the engine.
type Config struct {
	// MaxConflictRetries bounds how often a submission is re-run after the
	// table changed between read and write.
	MaxConflictRetries int

	// StoreTimeout bounds each read or write phase against the store,
	// retries included. The confirmation prompt is never bounded by it.
	// Zero means no limit.
	StoreTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConflictRetries: 3,
	}
}

// Engine orchestrates report submissions against a record store.
type Engine struct {
	store    service.RecordStore
	prompter Prompter
	logger   *slog.Logger
	locks    map[model.Province]*sync.Mutex
	config   Config
	mu       sync.Mutex
}

// SubmitResult is the outcome of one submission.
type SubmitResult struct {
	Outcome  reconcile.Outcome
	Action   reconcile.Action
	Record   model.ReportRecord
	Table    []model.ReportRecord
	Recap    []recap.Row
	Metrics  metrics.Summary
	Attempts int
}

// New creates an engine with the default configuration. prompter may be nil,
// in which case updates are applied without asking.
func New(store service.RecordStore, prompter Prompter, logger *slog.Logger) *Engine {
	return NewWithConfig(store, prompter, logger, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(store service.RecordStore, prompter Prompter, logger *slog.Logger, config Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxConflictRetries < 0 {
		config.MaxConflictRetries = 0
	}
	return &Engine{
		store:    store,
		prompter: prompter,
		logger:   logger,
		config:   config,
		locks:    make(map[model.Province]*sync.Mutex),
	}
}

// Submit reconciles submission into its province table and persists the
// result. Validation happens before any store call.
func (e *Engine) Submit(ctx context.Context, submission model.ReportRecord) (*SubmitResult, error) {
	if err := model.ValidateKey(submission); err != nil {
		return nil, err
	}

	unlock := e.lock(submission.Province)
	defer unlock()

	confirmed := false
	for attempt := 1; ; attempt++ {
		result, err := e.submitOnce(ctx, submission, &confirmed)
		if err == nil {
			result.Attempts = attempt
			e.logger.Info("report submitted",
				"key", submission.Key().String(),
				"outcome", result.Outcome,
				"action", result.Action.String(),
				"attempts", attempt)
			return result, nil
		}

		if !errors.Is(err, common.ErrConflict) || attempt > e.config.MaxConflictRetries {
			return nil, userError(err)
		}

		e.logger.Warn("province table changed during submission, retrying",
			"key", submission.Key().String(),
			"attempt", attempt)
	}
}

func (e *Engine) submitOnce(ctx context.Context, submission model.ReportRecord, confirmed *bool) (*SubmitResult, error) {
	handle, rows, err := e.read(ctx, submission.Province)
	if err != nil {
		return nil, err
	}

	token := reconcile.Fingerprint(handle.Header, rows)
	current := reconcile.Decode(handle.Header, rows)
	if current == nil && len(rows) > 0 {
		e.logger.Warn("province table has no usable header, rewriting it",
			"province", submission.Province,
			"header", handle.Header)
	}

	result := reconcile.Reconcile(current, submission)

	if result.Outcome == reconcile.Updated && e.prompter != nil && !*confirmed {
		ok, err := e.prompter.ConfirmUpdate(ctx, current[result.Index], submission)
		if err != nil {
			return nil, fmt.Errorf("failed to confirm update: %w", err)
		}
		if !ok {
			return nil, ErrUpdateDeclined
		}
		*confirmed = true
	}

	plan := reconcile.Plan(handle.Header, result)
	if err := e.write(ctx, handle, token, plan); err != nil {
		return nil, err
	}

	return &SubmitResult{
		Outcome: result.Outcome,
		Action:  plan.Action,
		Record:  result.Record(),
		Table:   result.Table,
		Metrics: metrics.Compute(result.Table, submission.Key()),
		Recap:   recap.Recap(result.Table, submission.Year),
	}, nil
}

// write persists plan. Versioned stores check token atomically; for other
// stores the table is re-read and compared just before writing.
func (e *Engine) write(ctx context.Context, handle service.TableHandle, token string, plan reconcile.WritePlan) error {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	if vs, ok := e.store.(service.VersionedStore); ok {
		if plan.Action == reconcile.ActionAppendRow {
			return vs.AppendRowIf(ctx, handle, token, plan.Rows[0])
		}
		return vs.ReplaceAllIf(ctx, handle, token, plan.Header, plan.Rows)
	}

	fresh, rows, err := e.read(ctx, model.Province(handle.Partition))
	if err != nil {
		return err
	}
	if reconcile.Fingerprint(fresh.Header, rows) != token {
		return fmt.Errorf("%w: partition %q", common.ErrConflict, handle.Partition)
	}

	if plan.Action == reconcile.ActionAppendRow {
		return e.store.AppendRow(ctx, fresh, plan.Rows[0])
	}
	return e.store.ReplaceAll(ctx, fresh, plan.Header, plan.Rows)
}

func (e *Engine) read(ctx context.Context, province model.Province) (service.TableHandle, []service.Row, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	handle, err := e.store.OpenOrCreateTable(ctx, string(province))
	if err != nil {
		return handle, nil, fmt.Errorf("failed to open table for %s: %w", province, err)
	}

	rows, err := e.store.ReadAll(ctx, handle)
	if err != nil {
		return handle, nil, fmt.Errorf("failed to read table for %s: %w", province, err)
	}
	return handle, rows, nil
}

// storeContext derives the context for one store phase.
func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.config.StoreTimeout)
}

// Snapshot returns the decoded province table in stored order.
func (e *Engine) Snapshot(ctx context.Context, province model.Province) ([]model.ReportRecord, error) {
	if err := validateProvince(province); err != nil {
		return nil, err
	}

	handle, rows, err := e.read(ctx, province)
	if err != nil {
		return nil, userError(err)
	}
	return reconcile.Decode(handle.Header, rows), nil
}

// Lookup returns the stored record for key, if any.
func (e *Engine) Lookup(ctx context.Context, key model.Key) (model.ReportRecord, bool, error) {
	table, err := e.Snapshot(ctx, key.Province)
	if err != nil {
		return model.ReportRecord{}, false, err
	}
	idx := reconcile.Find(table, key)
	if idx < 0 {
		return model.ReportRecord{}, false, nil
	}
	return table[idx], true, nil
}

// Recap returns the per-month category breakdown of one province and year.
func (e *Engine) Recap(ctx context.Context, province model.Province, year int) ([]recap.Row, error) {
	table, err := e.Snapshot(ctx, province)
	if err != nil {
		return nil, err
	}
	return recap.Recap(table, year), nil
}

// Years lists the years present in a province table.
func (e *Engine) Years(ctx context.Context, province model.Province) ([]int, error) {
	table, err := e.Snapshot(ctx, province)
	if err != nil {
		return nil, err
	}
	return recap.Years(table), nil
}

// lock serializes submissions for one province within this process.
func (e *Engine) lock(province model.Province) func() {
	e.mu.Lock()
	l, ok := e.locks[province]
	if !ok {
		l = &sync.Mutex{}
		e.locks[province] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func validateProvince(province model.Province) error {
	if province == "" {
		return &model.FieldError{
			Field: model.FieldProvince,
			Err:   fmt.Errorf("%w: province is required", common.ErrValidation),
		}
	}
	return nil
}

// userError attaches a user-facing message to store failures.
func userError(err error) error {
	switch {
	case errors.Is(err, common.ErrConflict):
		return common.NewUserError("the province table kept changing while saving; please try again", err)
	case errors.Is(err, common.ErrStoreUnavailable), errors.Is(err, common.ErrNotFound):
		return common.NewUserError("could not reach the report store", err)
	default:
		return err
	}
}
