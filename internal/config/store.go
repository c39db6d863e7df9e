package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/alco/internal/common"
	"github.com/spf13/viper"
)

// Report store backends.
const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

// DefaultSQLitePath is where the offline report store lives.
const DefaultSQLitePath = "~/.local/share/alco/alco.db"

// StoreConfig selects and tunes the report store.
type StoreConfig struct {
	Backend    string
	SQLitePath string
	// Timeout bounds each read or write phase against the store, retries
	// included. Time spent waiting on the user is not counted.
	Timeout time.Duration
}

// DefaultStoreConfig returns the store configuration used when nothing is set.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Backend:    BackendSheets,
		SQLitePath: ExpandPath(DefaultSQLitePath),
		Timeout:    2 * time.Minute,
	}
}

// LoadStoreConfig reads the store.* keys from Viper.
func LoadStoreConfig() (*StoreConfig, error) {
	config := DefaultStoreConfig()

	if v := viper.GetString("store.backend"); v != "" {
		config.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := viper.GetString("store.sqlite_path"); v != "" {
		config.SQLitePath = ExpandPath(v)
	}
	if viper.IsSet("store.timeout") {
		config.Timeout = viper.GetDuration("store.timeout")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the backend name and its required settings.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendSheets:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: store.sqlite_path is required for the sqlite backend", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q (want %s or %s)", common.ErrInvalidConfig, c.Backend, BackendSheets, BackendSQLite)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: store.timeout must not be negative", common.ErrInvalidConfig)
	}
	return nil
}
