package sync

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestOAuthConfigCreation(t *testing.T) {
	config := NewOAuthConfig("id", "secret", "")

	require.NotNil(t, config)
	assert.Equal(t, "http://localhost:8085/oauth/callback", config.RedirectURL)
	assert.ElementsMatch(t, []string{
		"https://www.googleapis.com/auth/calendar.events",
		"https://www.googleapis.com/auth/calendar.freebusy",
		"https://www.googleapis.com/auth/gmail.send",
	}, config.Scopes)
	assert.NoError(t, RequireCredentials(config))

	assert.ErrorIs(t, RequireCredentials(NewOAuthConfig("", "secret", "")), ErrCredentialsMissing)
}

func TestTokenPathXDG(t *testing.T) {
	path := TokenPath()

	expectedBase := filepath.Join(xdg.DataHome, "consult")
	if !strings.HasPrefix(path, expectedBase) {
		t.Errorf("expected path under %s, got %s", expectedBase, path)
	}

	if filepath.Base(path) != "google-credentials.json" {
		t.Errorf("expected filename google-credentials.json, got %s", filepath.Base(path))
	}
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
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

func TestHTTPClientRequiresTokenAndCredentials(t *testing.T) {
	_, err := HTTPClient(t.Context(), NewOAuthConfig("id", "secret", ""), nil)
	assert.Error(t, err)

	_, err = HTTPClient(t.Context(), NewOAuthConfig("", "", ""), &oauth2.Token{AccessToken: "x"})
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	client, err := HTTPClient(t.Context(), NewOAuthConfig("id", "secret", ""), &oauth2.Token{AccessToken: "x"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}
