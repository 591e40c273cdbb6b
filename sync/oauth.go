// ABOUTME: OAuth configuration and token management for Google APIs
// ABOUTME: Handles OAuth flow, token storage at XDG paths, and auto-refresh
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes needed to manage booking events, read free/busy, and send mail.
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/calendar.freebusy",
	"https://www.googleapis.com/auth/gmail.send",
}

var ErrCredentialsMissing = errors.New("google OAuth credentials not configured. Set CONSULT_GOOGLE_CLIENT_ID and CONSULT_GOOGLE_CLIENT_SECRET")

// NewOAuthConfig creates OAuth2 config for Google APIs.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if redirectURL == "" {
		redirectURL = "http://localhost:8085/oauth/callback"
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

// RequireCredentials fails when the client id or secret is empty.
func RequireCredentials(config *oauth2.Config) error {
	if config.ClientID == "" || config.ClientSecret == "" {
		return ErrCredentialsMissing
	}
	return nil
}

// TokenPath returns XDG-compliant path for storing OAuth tokens.
func TokenPath() string {
	return filepath.Join(xdg.DataHome, "consult", "google-credentials.json")
}

// SaveToken saves the OAuth token to path.
func SaveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	// Write token file with restricted permissions
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return nil
}

// LoadToken loads the OAuth token stored at path.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	return &token, nil
}

// HTTPClient returns a client that refreshes token as needed.
func HTTPClient(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (*http.Client, error) {
	if token == nil {
		return nil, fmt.Errorf("token cannot be nil")
	}
	if err := RequireCredentials(config); err != nil {
		return nil, err
	}
	return config.Client(ctx, token), nil
}
