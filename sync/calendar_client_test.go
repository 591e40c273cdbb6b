package sync

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCalendarService(t *testing.T) {
	service, err := NewCalendarService(context.Background(), http.DefaultClient)
	require.NoError(t, err)
	assert.NotNil(t, service.Events)
	assert.NotNil(t, service.Freebusy)
}

func TestNewGmailService(t *testing.T) {
	service, err := NewGmailService(context.Background(), http.DefaultClient)
	require.NoError(t, err)
	assert.NotNil(t, service.Users)
}

func TestNewServicesRejectNilClient(t *testing.T) {
	_, err := NewCalendarService(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewGmailService(context.Background(), nil)
	assert.Error(t, err)
}
