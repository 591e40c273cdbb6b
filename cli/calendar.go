// ABOUTME: Google OAuth setup for calendar and Gmail access
// ABOUTME: Runs a local callback server, exchanges the code, and stores the token
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/config"
	"github.com/harperreed/consult/sync"
	"golang.org/x/oauth2"
)

// CalendarInitCommand authorises access to Google Calendar and Gmail.
func CalendarInitCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("calendar init", flag.ExitOnError)
	noBrowser := fs.Bool("no-browser", false, "Print the URL instead of opening a browser")
	timeout := fs.Duration("timeout", 5*time.Minute, "How long to wait for the browser callback")
	_ = fs.Parse(args)

	oauthCfg := sync.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	if err := sync.RequireCredentials(oauthCfg); err != nil {
		return err
	}

	redirect, err := url.Parse(oauthCfg.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	state := uuid.NewString()
	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- errors.New("oauth state mismatch")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errCh <- errors.New("no authorization code received")
			return
		}

		token, err := oauthCfg.Exchange(ctx, code)
		if err != nil {
			http.Error(w, "exchange failed", http.StatusBadGateway)
			errCh <- fmt.Errorf("failed to exchange code: %w", err)
			return
		}

		tokenCh <- token
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Println("Opening browser for Google OAuth...")
	fmt.Printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
	if !*noBrowser {
		_ = openBrowser(authURL)
	}

	select {
	case token := <-tokenCh:
		path := cfg.TokenPath()
		if err := sync.SaveToken(path, token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		fmt.Println(ok("Authenticated successfully"))
		fmt.Println(ok("Token saved to " + path))
		fmt.Println("Bookings will now be added to your calendar. Run 'consult reconcile --once' to catch up earlier ones.")
		return nil
	case err := <-errCh:
		return fmt.Errorf("OAuth flow failed: %w", err)
	case <-ctx.Done():
		return errors.New("timed out waiting for OAuth callback")
	}
}

func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
