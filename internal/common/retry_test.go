package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/alco/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		op        func(calls int) error
		wantIs    error
		name      string
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "succeeds first try",
			op:        func(int) error { return nil },
			wantCalls: 1,
		},
		{
			name: "succeeds after transient failures",
			op: func(calls int) error {
				if calls < 3 {
					return Transient(errBoom)
				}
				return nil
			},
			wantCalls: 3,
		},
		{
			name:      "permanent error stops immediately",
			op:        func(int) error { return Permanent(errBoom) },
			wantCalls: 1,
			wantErr:   true,
			wantIs:    errBoom,
		},
		{
			name:      "exhausts attempts and keeps cause",
			op:        func(int) error { return errBoom },
			wantCalls: 4,
			wantErr:   true,
			wantIs:    errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				return tt.op(calls)
			}, fastRetry(4))

			assert.Equal(t, tt.wantCalls, calls)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
		})
	}
}

func TestWithRetry_MaxRetriesWrapsBoth(t *testing.T) {
	errBoom := errors.New("boom")
	err := WithRetry(context.Background(), func() error { return errBoom }, fastRetry(2))

	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.ErrorIs(t, err, errBoom)
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		return errors.New("fail")
	}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Second})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Transient(errors.New("x"))))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.False(t, IsRetryable(Permanent(errors.New("x"))))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestUserError(t *testing.T) {
	err := NewUserError("could not save report", ErrStoreUnavailable)

	assert.Equal(t, "could not save report: report store unavailable", err.Error())
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	var userErr *UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "could not save report", userErr.UserMessage)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("saved", "province", "Bali")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"province":"Bali"`)

	_, err = NewLogger(&buf, slog.LevelInfo, "xml")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
