package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/alco/internal/common"
	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/service"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Worksheet dimensions used when a province sheet is created.
const (
	newSheetRows    = 200
	newSheetColumns = 20
	// lastColumn is the widest column A1 notation can address.
	lastColumn = "ZZZ"
)

var _ service.RecordStore = (*Store)(nil)

// Store implements service.RecordStore on top of one spreadsheet.
type Store struct {
	service       *sheets.Service
	logger        *slog.Logger
	limiter       *rate.Limiter
	spreadsheetID string
	config        Config
	mu            sync.Mutex
}

// NewStore creates a Google Sheets backed report store.
func NewStore(ctx context.Context, config Config, logger *slog.Logger) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewStoreWithService(srv, config, logger), nil
}

// NewStoreWithService wraps an already configured Sheets service.
func NewStoreWithService(srv *sheets.Service, config Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}

	limit := rate.Inf
	if config.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(config.RequestsPerMinute) / 60.0)
	}

	return &Store{
		service:       srv,
		logger:        logger,
		limiter:       rate.NewLimiter(limit, 1),
		config:        config,
		spreadsheetID: config.SpreadsheetID,
	}
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// SpreadsheetID returns the spreadsheet in use, which may have been created
// by this store.
func (s *Store) SpreadsheetID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spreadsheetID
}

// OpenOrCreateTable implements service.RecordStore.
func (s *Store) OpenOrCreateTable(ctx context.Context, partition string) (service.TableHandle, error) {
	handle := service.TableHandle{Partition: partition}

	spreadsheetID, err := s.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return handle, err
	}

	var found *sheets.SheetProperties
	err = s.call(ctx, "open", partition, func(ctx context.Context) error {
		resp, err := s.service.Spreadsheets.Get(spreadsheetID).
			Fields("sheets.properties").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		for _, sh := range resp.Sheets {
			if sh.Properties != nil && sh.Properties.Title == partition {
				found = sh.Properties
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return handle, err
	}

	if found == nil {
		if err := s.createWorksheet(ctx, spreadsheetID, partition); err != nil {
			return handle, err
		}
		handle.Header = model.Header()
		return handle, nil
	}

	var header []string
	err = s.call(ctx, "read header", partition, func(ctx context.Context) error {
		resp, err := s.service.Spreadsheets.Values.Get(spreadsheetID, sheetRange(partition, "1:1")).
			ValueRenderOption("UNFORMATTED_VALUE").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(resp.Values) > 0 {
			header = trimTrailingEmpty(cellsToStrings(resp.Values[0]))
		}
		return nil
	})
	if err != nil {
		return handle, err
	}

	handle.Header = header
	return handle, nil
}

// createWorksheet adds a worksheet titled partition and writes the header.
func (s *Store) createWorksheet(ctx context.Context, spreadsheetID, partition string) error {
	var sheetID int64
	err := s.call(ctx, "create", partition, func(ctx context.Context) error {
		resp, err := s.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: partition,
						GridProperties: &sheets.GridProperties{
							RowCount:    newSheetRows,
							ColumnCount: newSheetColumns,
						},
					},
				},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
			sheetID = resp.Replies[0].AddSheet.Properties.SheetId
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("created province worksheet", "partition", partition, "sheet_id", sheetID)

	if err := s.writeValues(ctx, spreadsheetID, partition, [][]any{toValues(model.Header(), model.Header())}); err != nil {
		return err
	}

	if s.config.EnableFormatting {
		err = s.call(ctx, "format", partition, func(ctx context.Context) error {
			_, err := s.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
				Requests: headerFormatRequests(sheetID, len(model.Columns)),
			}).Context(ctx).Do()
			return err
		})
		if err != nil {
			s.logger.Warn("failed to apply formatting", "partition", partition, "error", err)
		}
	}

	return nil
}

// ReadAll implements service.RecordStore.
func (s *Store) ReadAll(ctx context.Context, handle service.TableHandle) ([]service.Row, error) {
	spreadsheetID, err := s.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return nil, err
	}

	var values [][]any
	err = s.call(ctx, "read", handle.Partition, func(ctx context.Context) error {
		resp, err := s.service.Spreadsheets.Values.Get(spreadsheetID, sheetRange(handle.Partition, "")).
			ValueRenderOption("UNFORMATTED_VALUE").
			DateTimeRenderOption("FORMATTED_STRING").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		values = resp.Values
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(values) == 0 {
		return nil, nil
	}

	header := cellsToStrings(values[0])
	cells := make([][]string, 0, len(values)-1)
	for _, raw := range values[1:] {
		cells = append(cells, cellsToStrings(raw))
	}
	rows := service.ToRows(header, cells)

	s.logger.Debug("read province worksheet", "partition", handle.Partition, "rows", len(rows))
	return rows, nil
}

// ReplaceAll implements service.RecordStore.
func (s *Store) ReplaceAll(ctx context.Context, handle service.TableHandle, header []string, rows [][]string) error {
	spreadsheetID, err := s.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return err
	}

	// Rows are padded to the old header width so stale cells to the right
	// are overwritten too.
	width := max(len(header), len(handle.Header))
	values := make([][]any, 0, len(rows)+1)
	values = append(values, padValues(toValues(header, header), width))
	for _, row := range rows {
		values = append(values, padValues(toValues(header, row), width))
	}

	// Old rows stay in place until the write succeeds; only rows below the
	// new last row are cleared.
	if err := s.writeValues(ctx, spreadsheetID, handle.Partition, values); err != nil {
		return err
	}

	below := sheetRange(handle.Partition, fmt.Sprintf("A%d:%s", len(values)+1, lastColumn))
	err = s.call(ctx, "clear", handle.Partition, func(ctx context.Context) error {
		_, err := s.service.Spreadsheets.Values.Clear(spreadsheetID, below, &sheets.ClearValuesRequest{}).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear rows below %d: %w", len(values), err)
	}

	s.logger.Info("rewrote province worksheet", "partition", handle.Partition, "rows", len(rows))
	return nil
}

// AppendRow implements service.RecordStore.
func (s *Store) AppendRow(ctx context.Context, handle service.TableHandle, row []string) error {
	spreadsheetID, err := s.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return err
	}

	header := handle.Header
	if len(header) == 0 {
		header = model.Header()
	}

	return s.call(ctx, "append", handle.Partition, func(ctx context.Context) error {
		_, err := s.service.Spreadsheets.Values.Append(spreadsheetID, sheetRange(handle.Partition, ""), &sheets.ValueRange{
			Values: [][]any{toValues(header, row)},
		}).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
}

// writeValues writes rows starting at A1 in BatchSize chunks.
func (s *Store) writeValues(ctx context.Context, spreadsheetID, partition string, values [][]any) error {
	for i := 0; i < len(values); i += s.config.BatchSize {
		end := i + s.config.BatchSize
		if end > len(values) {
			end = len(values)
		}

		batch := values[i:end]
		rangeStr := sheetRange(partition, fmt.Sprintf("A%d", i+1))
		err := s.call(ctx, "write", partition, func(ctx context.Context) error {
			_, err := s.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: batch}).
				ValueInputOption("RAW").
				Context(ctx).
				Do()
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		s.logger.Debug("wrote batch", "partition", partition, "start_row", i+1, "rows", len(batch))
	}

	return nil
}

// getOrCreateSpreadsheet returns the configured spreadsheet, creating one
// named SpreadsheetName when no ID is configured.
func (s *Store) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spreadsheetID != "" {
		return s.spreadsheetID, nil
	}

	var created *sheets.Spreadsheet
	err := s.call(ctx, "create spreadsheet", s.config.SpreadsheetName, func(ctx context.Context) error {
		var err error
		created, err = s.service.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{
				Title:    s.config.SpreadsheetName,
				TimeZone: s.config.TimeZone,
			},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	s.spreadsheetID = created.SpreadsheetId
	return s.spreadsheetID, nil
}

// call runs one API request under the rate limiter, a per-attempt timeout
// and bounded retries. Failures are wrapped in common.ErrStoreUnavailable.
func (s *Store) call(ctx context.Context, op, partition string, fn func(context.Context) error) error {
	retryOpts := service.RetryOptions{
		MaxAttempts:  s.config.RetryAttempts + 1,
		InitialDelay: s.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err := common.WithRetry(ctx, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return common.Permanent(err)
		}

		attemptCtx := ctx
		if s.config.RequestTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
			defer cancel()
		}

		return classify(fn(attemptCtx))
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("%w: %s %q: %w", common.ErrStoreUnavailable, op, partition, err)
	}
	return nil
}

// classify marks API errors as transient or permanent for WithRetry.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return common.Transient(fmt.Errorf("%w: %w", common.ErrRateLimit, err))
		case apiErr.Code >= 500:
			return common.Transient(err)
		case apiErr.Code == http.StatusNotFound:
			return common.Permanent(fmt.Errorf("%w: %w", common.ErrNotFound, err))
		default:
			return common.Permanent(err)
		}
	}

	if errors.Is(err, context.Canceled) {
		return common.Permanent(err)
	}

	return common.Transient(err)
}

// sheetRange builds an A1 range for a worksheet title.
func sheetRange(title, cells string) string {
	quoted := "'" + strings.ReplaceAll(title, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

// toValues converts string cells to API values. Numeric columns are sent as
// JSON numbers so the sheet stores them as numbers without float rounding.
func toValues(header, row []string) []any {
	out := make([]any, len(row))
	for i, cell := range row {
		out[i] = cell
		if i >= len(header) || cell == "" {
			continue
		}
		f, ok := model.ResolveHeader(header[i])
		if !ok || !isNumericField(f) {
			continue
		}
		// json.Number is emitted verbatim, so it must be a valid JSON
		// number as well as a decimal. NaN and Inf stay text.
		if _, err := decimal.NewFromString(cell); err == nil && json.Valid([]byte(cell)) {
			out[i] = json.Number(cell)
		}
	}
	return out
}

func padValues(values []any, width int) []any {
	for len(values) < width {
		values = append(values, "")
	}
	return values
}

// cellsToStrings renders API cell values as strings.
func cellsToStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch val := v.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = val
		case float64:
			out[i] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[i] = strconv.FormatBool(val)
		case json.Number:
			out[i] = val.String()
		default:
			out[i] = fmt.Sprint(val)
		}
	}
	return out
}

func trimTrailingEmpty(cells []string) []string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	return cells[:end]
}
