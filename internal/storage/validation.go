// Package storage provides the SQLite report store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrInvalidHeader = errors.New("invalid header")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateHeader rejects empty headers and repeated column names, which
// would make rows ambiguous when keyed by header text.
func validateHeader(header []string) error {
	if len(header) == 0 {
		return fmt.Errorf("%w: no columns", ErrInvalidHeader)
	}
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if name == "" {
			continue
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidHeader, name)
		}
		seen[name] = true
	}
	return nil
}
