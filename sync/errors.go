// ABOUTME: Classifies Google API failures as retryable or permanent
package sync

import (
	"context"
	"errors"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// ErrCalendarNotConfigured is returned when no Google authorisation exists.
var ErrCalendarNotConfigured = errors.New("google calendar is not configured; run 'consult calendar init'")

// IsRetryable reports whether a calendar call is worth repeating.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrCalendarNotConfigured) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= 500:
			return true
		case apiErr.Code == http.StatusForbidden:
			for _, e := range apiErr.Errors {
				if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
					return true
				}
			}
		}
		return false
	}

	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) {
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
