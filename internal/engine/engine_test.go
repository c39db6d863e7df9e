package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/alco/internal/common"
	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/reconcile"
	"github.com/Veraticus/alco/internal/service"
	"github.com/Veraticus/alco/internal/sheets"
	"github.com/Veraticus/alco/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func report(p model.Province, year int, m model.Month) *testutil.ReportBuilder {
	return testutil.NewReport(p, year, m)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// racingStore lets another writer append a row right after each of the
// first n reads, which invalidates the snapshot the engine just took.
type racingStore struct {
	*sheets.MockStore
	intruder model.ReportRecord
	n        int
	mu       sync.Mutex
}

func (r *racingStore) ReadAll(ctx context.Context, handle service.TableHandle) ([]service.Row, error) {
	rows, err := r.MockStore.ReadAll(ctx, handle)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.n > 0 {
		r.n--
		intruder := r.intruder
		intruder.Notes = fmt.Sprintf("intruder %d", r.n)
		if err := r.MockStore.AppendRow(ctx, handle, intruder.Cells()); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// slowPrompter answers only after delay, unless its context ends first.
type slowPrompter struct {
	delay       time.Duration
	hadDeadline bool
}

func (p *slowPrompter) ConfirmUpdate(ctx context.Context, _, _ model.ReportRecord) (bool, error) {
	_, p.hadDeadline = ctx.Deadline()
	select {
	case <-time.After(p.delay):
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// stalledStore blocks every read until the caller gives up.
type stalledStore struct {
	*sheets.MockStore
}

func (s *stalledStore) ReadAll(ctx context.Context, _ service.TableHandle) ([]service.Row, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// plainStore hides the compare-and-swap methods of the wrapped store.
type plainStore struct {
	service.RecordStore
}

func TestEngine_Submit_InsertIntoNewProvince(t *testing.T) {
	store := sheets.NewMockStore()
	eng := New(store, nil, discardLogger())

	sub := report(model.Bali, 2025, model.Jan).
		Amount(model.FieldMonthlyRealization, "100").
		Amount(model.FieldAuction, "40").
		Timestamp("2025-01-31T10:00:00Z").
		Build()

	result, err := eng.Submit(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, reconcile.Inserted, result.Outcome)
	assert.Equal(t, reconcile.ActionAppendRow, result.Action)
	assert.Equal(t, 1, result.Attempts)
	require.Len(t, result.Table, 1)
	assert.Equal(t, sub.Key(), result.Record.Key())

	assert.False(t, result.Metrics.HasPrevious)
	assert.True(t, result.Metrics.MonthOverMonth.IsZero())
	require.Len(t, result.Recap, 1)
	assert.True(t, result.Recap[0].Auction.Equal(dec("40")))

	header, rows, ok := store.Table("Bali")
	require.True(t, ok)
	assert.Equal(t, model.Header(), header)
	require.Len(t, rows, 1)
	assert.Equal(t, sub.Cells(), rows[0])
}

func TestEngine_Submit_UpdateMergesSparseFields(t *testing.T) {
	store := sheets.NewMockStore()
	existing := report(model.Bali, 2025, model.Feb).
		Amount(model.FieldMonthlyTarget, "500").
		Amount(model.FieldMonthlyRealization, "100").
		Notes("first").
		Build()
	store.Seed("Bali", model.Header(), [][]string{
		report(model.Bali, 2025, model.Jan).Amount(model.FieldMonthlyRealization, "80").Build().Cells(),
		existing.Cells(),
	})

	prompter := NewMockPrompter(true)
	eng := New(store, prompter, discardLogger())

	sub := report(model.Bali, 2025, model.Feb).
		Amount(model.FieldMonthlyRealization, "120").
		Build()

	result, err := eng.Submit(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, reconcile.Updated, result.Outcome)
	assert.Equal(t, reconcile.ActionReplaceAll, result.Action)
	assert.True(t, result.Record.MonthlyRealization.Decimal.Equal(dec("120")))
	assert.True(t, result.Record.MonthlyTarget.Decimal.Equal(dec("500")), "absent field kept")
	assert.Equal(t, "first", result.Record.Notes)

	// 120 against January's 80.
	assert.True(t, result.Metrics.HasPrevious)
	assert.True(t, result.Metrics.MonthOverMonth.Equal(dec("50")), "got %s", result.Metrics.MonthOverMonth)

	calls := prompter.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "first", calls[0].Existing.Notes)

	_, rows, _ := store.Table("Bali")
	require.Len(t, rows, 2, "no duplicate row")
	stored := model.DecodeRows(service.ToRows(model.Header(), rows))
	assert.True(t, stored[1].MonthlyRealization.Decimal.Equal(dec("120")))
}

func TestEngine_Submit_UpdateDeclined(t *testing.T) {
	store := sheets.NewMockStore()
	store.Seed("Bali", model.Header(), [][]string{
		report(model.Bali, 2025, model.Jan).Notes("keep").Build().Cells(),
	})
	eng := New(store, NewMockPrompter(false), discardLogger())

	_, err := eng.Submit(context.Background(), report(model.Bali, 2025, model.Jan).Notes("new").Build())
	require.ErrorIs(t, err, ErrUpdateDeclined)

	assert.Equal(t, 0, store.CallCount("replace"))
	_, rows, _ := store.Table("Bali")
	assert.Equal(t, "keep", rows[0][len(rows[0])-1])
}

func TestEngine_Submit_PrompterError(t *testing.T) {
	store := sheets.NewMockStore()
	store.Seed("Bali", model.Header(), [][]string{
		report(model.Bali, 2025, model.Jan).Build().Cells(),
	})
	prompter := NewMockPrompter(true)
	prompter.Err = errors.New("stdin closed")
	eng := New(store, prompter, discardLogger())

	_, err := eng.Submit(context.Background(), report(model.Bali, 2025, model.Jan).Build())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin closed")
	assert.Equal(t, 0, store.CallCount("replace"))
}

func TestEngine_Submit_SlowConfirmationOutlivesStoreTimeout(t *testing.T) {
	store := sheets.NewMockStore()
	store.Seed("Bali", model.Header(), [][]string{
		report(model.Bali, 2025, model.Jan).Notes("old").Build().Cells(),
	})
	prompter := &slowPrompter{delay: 150 * time.Millisecond}
	eng := NewWithConfig(store, prompter, discardLogger(), Config{
		MaxConflictRetries: 3,
		StoreTimeout:       50 * time.Millisecond,
	})

	result, err := eng.Submit(context.Background(), report(model.Bali, 2025, model.Jan).Notes("new").Build())
	require.NoError(t, err)

	assert.False(t, prompter.hadDeadline)
	assert.Equal(t, reconcile.Updated, result.Outcome)
	_, rows, _ := store.Table("Bali")
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0][len(rows[0])-1])
}

func TestEngine_Submit_StoreTimeoutBoundsReads(t *testing.T) {
	store := &stalledStore{MockStore: sheets.NewMockStore()}
	eng := NewWithConfig(store, nil, discardLogger(), Config{StoreTimeout: 20 * time.Millisecond})

	_, err := eng.Submit(context.Background(), report(model.Bali, 2025, model.Jan).Build())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_Submit_ValidationBeforeStore(t *testing.T) {
	tests := []struct {
		name string
		sub  model.ReportRecord
	}{
		{name: "missing province", sub: model.ReportRecord{Year: 2025, Month: model.Jan}},
		{name: "missing month", sub: model.ReportRecord{Province: model.Bali, Year: 2025}},
		{name: "missing year", sub: model.ReportRecord{Province: model.Bali, Month: model.Jan}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := sheets.NewMockStore()
			eng := New(store, nil, discardLogger())

			_, err := eng.Submit(context.Background(), tt.sub)
			require.ErrorIs(t, err, common.ErrValidation)

			var fieldErr *model.FieldError
			assert.ErrorAs(t, err, &fieldErr)
			assert.Empty(t, store.Calls, "no store call before validation passes")
		})
	}
}

func TestEngine_Submit_InitializesHeaderlessTable(t *testing.T) {
	store := sheets.NewMockStore()
	store.Seed("Bali", []string{"foo", "bar"}, [][]string{{"1", "2"}})
	eng := New(store, nil, discardLogger())

	sub := report(model.Bali, 2025, model.Mar).Build()
	result, err := eng.Submit(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, reconcile.Inserted, result.Outcome)
	assert.Equal(t, reconcile.ActionReplaceAll, result.Action)

	header, rows, _ := store.Table("Bali")
	assert.Equal(t, model.Header(), header)
	assert.Equal(t, [][]string{sub.Cells()}, rows)
}

func TestEngine_Submit_RewritesLegacyHeader(t *testing.T) {
	store := sheets.NewMockStore()
	store.Seed("Bali",
		[]string{"Provinsi", "Tahun", "Bulan", "Lelang", "Catatan"},
		[][]string{{"Bali", "2025", "Jan", "7", "lama"}},
	)
	eng := New(store, nil, discardLogger())

	result, err := eng.Submit(context.Background(), report(model.Bali, 2025, model.Feb).Amount(model.FieldAuction, "3").Build())
	require.NoError(t, err)
	assert.Equal(t, reconcile.ActionReplaceAll, result.Action)

	header, rows, _ := store.Table("Bali")
	assert.Equal(t, model.Header(), header)
	stored := model.DecodeRows(service.ToRows(header, rows))
	require.Len(t, stored, 2)
	assert.Equal(t, "lama", stored[0].Notes)
	assert.True(t, stored[0].Auction.Decimal.Equal(dec("7")))

	require.Len(t, result.Recap, 2)
	assert.Equal(t, model.Jan, result.Recap[0].Month)
}

func TestEngine_Submit_RetriesOnConflict(t *testing.T) {
	tests := []struct {
		wrap func(*racingStore) service.RecordStore
		name string
	}{
		{
			name: "versioned store",
			wrap: func(r *racingStore) service.RecordStore { return r },
		},
		{
			name: "plain store",
			wrap: func(r *racingStore) service.RecordStore { return plainStore{r} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			racing := &racingStore{
				MockStore: sheets.NewMockStore(),
				intruder:  report(model.Bali, 2025, model.Jan).Build(),
				n:         1,
			}
			eng := New(tt.wrap(racing), nil, discardLogger())

			result, err := eng.Submit(context.Background(), report(model.Bali, 2025, model.Feb).Build())
			require.NoError(t, err)
			assert.Equal(t, 2, result.Attempts)

			_, rows, _ := racing.Table("Bali")
			stored := model.DecodeRows(service.ToRows(model.Header(), rows))
			require.Len(t, stored, 2, "intruder row kept, submission added once")
			assert.Equal(t, model.Jan, stored[0].Month)
			assert.Equal(t, model.Feb, stored[1].Month)
		})
	}
}

func TestEngine_Submit_ConflictRetriesExhausted(t *testing.T) {
	racing := &racingStore{
		MockStore: sheets.NewMockStore(),
		intruder:  report(model.Bali, 2024, model.Des).Build(),
		n:         100,
	}
	eng := NewWithConfig(racing, nil, discardLogger(), Config{MaxConflictRetries: 2})

	_, err := eng.Submit(context.Background(), report(model.Bali, 2025, model.Jan).Build())
	require.ErrorIs(t, err, common.ErrConflict)

	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.UserMessage, "try again")

	_, rows, _ := racing.Table("Bali")
	stored := model.DecodeRows(service.ToRows(model.Header(), rows))
	assert.Len(t, stored, 3, "one intruder row per attempt")
	assert.Equal(t, -1, reconcile.Find(stored, model.Key{Province: model.Bali, Year: 2025, Month: model.Jan}),
		"the submission never landed")
}

func TestEngine_Submit_StoreUnavailable(t *testing.T) {
	store := sheets.NewMockStore()
	store.OpenFunc = func(string) error {
		return fmt.Errorf("%w: permission denied", common.ErrStoreUnavailable)
	}
	eng := New(store, nil, discardLogger())

	_, err := eng.Submit(context.Background(), report(model.Bali, 2025, model.Jan).Build())
	require.ErrorIs(t, err, common.ErrStoreUnavailable)

	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "could not reach the report store", userErr.UserMessage)
}

func TestEngine_Submit_WriteFailureLeavesNoPartialState(t *testing.T) {
	store := sheets.NewMockStore()
	store.Seed("Bali", model.Header(), [][]string{report(model.Bali, 2025, model.Jan).Build().Cells()})
	store.WriteFunc = func(string) error {
		return fmt.Errorf("%w: quota", common.ErrStoreUnavailable)
	}
	eng := New(store, nil, discardLogger())

	_, err := eng.Submit(context.Background(), report(model.Bali, 2025, model.Jan).Notes("x").Build())
	require.ErrorIs(t, err, common.ErrStoreUnavailable)

	_, rows, _ := store.Table("Bali")
	assert.Len(t, rows, 1)
}

func TestEngine_Submit_ConcurrentSameProvince(t *testing.T) {
	store := sheets.NewMockStore()
	eng := New(store, nil, discardLogger())

	var wg sync.WaitGroup
	errs := make(chan error, len(model.Months()))
	for _, m := range model.Months() {
		wg.Add(1)
		go func(m model.Month) {
			defer wg.Done()
			_, err := eng.Submit(context.Background(), report(model.Bali, 2025, m).Amount(model.FieldAuction, "1").Build())
			errs <- err
		}(m)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	rows, err := eng.Recap(context.Background(), model.Bali, 2025)
	require.NoError(t, err)
	assert.Len(t, rows, 12)
}

func TestEngine_ReadPaths(t *testing.T) {
	db := testutil.SetupTestDB(t,
		report(model.Bali, 2025, model.Mar).Amount(model.FieldAuction, "3").Build(),
		report(model.Bali, 2024, model.Des).Amount(model.FieldAuction, "9").Build(),
		report(model.Bali, 2025, model.Jan).Amount(model.FieldAuction, "1").Build(),
	)
	eng := New(db.Storage, nil, discardLogger())
	ctx := context.Background()

	table, err := eng.Snapshot(ctx, model.Bali)
	require.NoError(t, err)
	assert.Len(t, table, 3)

	rec, ok, err := eng.Lookup(ctx, model.Key{Province: model.Bali, Year: 2025, Month: model.Jan})
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Auction.Decimal.Equal(dec("1")))

	_, ok, err = eng.Lookup(ctx, model.Key{Province: model.Bali, Year: 2025, Month: model.Feb})
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := eng.Recap(ctx, model.Bali, 2025)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.Jan, rows[0].Month)
	assert.Equal(t, model.Mar, rows[1].Month)

	years, err := eng.Years(ctx, model.Bali)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025}, years)

	_, err = eng.Snapshot(ctx, "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestEngine_Submit_SQLiteBackend(t *testing.T) {
	db := testutil.SetupTestDB(t,
		report(model.Lampung, 2025, model.Jan).
			Amount(model.FieldRealizationYTD2024, "1000").
			Amount(model.FieldMonthlyRealization, "100").
			Build(),
	)
	eng := New(db.Storage, nil, discardLogger())
	ctx := context.Background()

	result, err := eng.Submit(ctx, report(model.Lampung, 2025, model.Jan).
		Amount(model.FieldRealizationYTD2025, "1200").
		Build())
	require.NoError(t, err)
	assert.Equal(t, reconcile.Updated, result.Outcome)
	assert.True(t, result.Metrics.YearOverYear.Equal(dec("20")), "got %s", result.Metrics.YearOverYear)

	result, err = eng.Submit(ctx, report(model.Lampung, 2025, model.Feb).
		Amount(model.FieldMonthlyRealization, "150").
		Build())
	require.NoError(t, err)
	assert.Equal(t, reconcile.ActionAppendRow, result.Action)
	assert.True(t, result.Metrics.MonthOverMonth.Equal(dec("50")))

	stored := db.Records(model.Lampung)
	require.Len(t, stored, 2)
	assert.True(t, stored[0].RealizationYTD2024.Decimal.Equal(dec("1000")))
	assert.True(t, stored[0].RealizationYTD2025.Decimal.Equal(dec("1200")))

	version, err := db.Storage.Version(ctx, string(model.Lampung))
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)
}
