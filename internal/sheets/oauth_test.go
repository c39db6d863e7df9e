package sheets

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SaveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "access", loaded.AccessToken)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestGetOrCreateToken_ReusesSavedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "saved"}))

	// An already canceled context fails the interactive flow immediately,
	// so success means the saved token was used.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	token, err := GetOrCreateToken(ctx, OAuth2Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenFile:    path,
		CallbackAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)
	assert.Equal(t, "saved", token.RefreshToken)
}

func TestGetOrCreateToken_WithoutRefreshTokenSignsIn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "short-lived"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GetOrCreateToken(ctx, OAuth2Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenFile:    path,
		CallbackAddr: "127.0.0.1:0",
	})
	assert.ErrorIs(t, err, context.Canceled)
}
