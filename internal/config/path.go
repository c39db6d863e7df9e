// Package config loads application settings from Viper and the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ExpandPath expands a leading ~ and $VAR references in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// Dir returns the directory holding config.yaml and the stored OAuth token:
// $XDG_CONFIG_HOME/alco, falling back to ~/.config/alco.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "alco")
	}
	return ExpandPath("~/.config/alco")
}

// TokenFile is where "alco auth sheets" stores the OAuth2 token. The
// sheets.token_file key overrides it.
func TokenFile() string {
	if v := viper.GetString("sheets.token_file"); v != "" {
		return ExpandPath(v)
	}
	return filepath.Join(Dir(), "sheets-token.json")
}
