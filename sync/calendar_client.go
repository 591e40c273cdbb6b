// ABOUTME: Google API service constructors for Calendar and Gmail
// ABOUTME: Both take an already-authorised HTTP client
package sync

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// NewCalendarService creates a Google Calendar API service.
func NewCalendarService(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*calendar.Service, error) {
	if client == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return service, nil
}

// NewGmailService creates a Google Gmail API service.
func NewGmailService(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*gmail.Service, error) {
	if client == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return service, nil
}
