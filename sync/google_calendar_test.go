// ABOUTME: Tests for the Google Calendar adapter against an httptest server
// ABOUTME: Covers idempotent inserts, tolerant deletes, free/busy parsing, and error classification
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type recordedRequest struct {
	method string
	path   string
	event  calendar.Event
}

func newTestCalendar(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*GoogleCalendar, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path}
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &rec.event)
		}
		requests = append(requests, rec)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	svc, err := NewCalendarService(context.Background(), srv.Client(), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return NewGoogleCalendar(svc, "", nil), &requests
}

func apiError(w http.ResponseWriter, code int, reason string) {
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"%s","errors":[{"reason":"%s"}]}}`, code, reason, reason)
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:        uuid.MustParse("0b9f6e3c-1d2a-4b5c-8d7e-6f5a4b3c2d1e"),
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		Company:   "Engines Ltd",
		Inquiry:   "Difference engine review",
		StartTime: time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
		Duration:  models.Duration60,
		Status:    models.StatusPending,
	}
}

func TestEventID(t *testing.T) {
	id := EventID(testBooking().ID)
	assert.Equal(t, "0b9f6e3c1d2a4b5c8d7e6f5a4b3c2d1e", id)
	assert.Len(t, id, 32)

	var cal GoogleCalendar
	assert.Equal(t, id, cal.EventIDFor(testBooking().ID), "cancel can find an event whose create reply was lost")
}

func TestCreateEvent(t *testing.T) {
	cal, requests := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"0b9f6e3c1d2a4b5c8d7e6f5a4b3c2d1e"}`)
	})

	id, err := cal.CreateEvent(context.Background(), testBooking())
	require.NoError(t, err)
	assert.Equal(t, "0b9f6e3c1d2a4b5c8d7e6f5a4b3c2d1e", id)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/calendars/primary/events", req.path)
	assert.Equal(t, id, req.event.Id)
	assert.Equal(t, "Consultation: Ada Lovelace (Engines Ltd)", req.event.Summary)
	assert.Equal(t, "tentative", req.event.Status)
	assert.Equal(t, "2024-01-15T14:00:00Z", req.event.Start.DateTime)
	assert.Equal(t, "2024-01-15T15:00:00Z", req.event.End.DateTime)
	assert.True(t, strings.HasPrefix(req.event.Description, "Difference engine review"))
	assert.Equal(t, testBooking().ID.String(), req.event.ExtendedProperties.Private["booking_id"])
}

func TestCreateEventTreatsDuplicateAsSuccess(t *testing.T) {
	cal, requests := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			apiError(w, http.StatusConflict, "duplicate")
			return
		}
		_, _ = io.WriteString(w, `{"id":"0b9f6e3c1d2a4b5c8d7e6f5a4b3c2d1e"}`)
	})

	id, err := cal.CreateEvent(context.Background(), testBooking())
	require.NoError(t, err)
	assert.Equal(t, EventID(testBooking().ID), id)

	require.Len(t, *requests, 2)
	assert.Equal(t, http.MethodPut, (*requests)[1].method)
	assert.Equal(t, "/calendars/primary/events/"+id, (*requests)[1].path)
}

func TestUpdateEvent(t *testing.T) {
	cal, requests := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"evt"}`)
	})

	b := testBooking()
	b.Status = models.StatusConfirmed
	b.StartTime = time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, cal.UpdateEvent(context.Background(), "evt", b))

	req := (*requests)[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/calendars/primary/events/evt", req.path)
	assert.Equal(t, "confirmed", req.event.Status)
	assert.Equal(t, "2024-01-16T09:00:00Z", req.event.Start.DateTime)
}

func TestDeleteEvent(t *testing.T) {
	status := http.StatusNoContent
	cal, _ := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		apiError(w, status, "x")
	})

	assert.NoError(t, cal.DeleteEvent(context.Background(), "evt"))

	status = http.StatusGone
	assert.NoError(t, cal.DeleteEvent(context.Background(), "evt"), "already deleted")

	status = http.StatusNotFound
	assert.NoError(t, cal.DeleteEvent(context.Background(), "evt"))

	status = http.StatusInternalServerError
	err := cal.DeleteEvent(context.Background(), "evt")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestListBusyPeriods(t *testing.T) {
	cal, requests := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"calendars":{"primary":{"busy":[
			{"start":"2024-01-15T15:00:00Z","end":"2024-01-15T15:30:00Z"},
			{"start":"2024-01-15T10:00:00-06:00","end":"2024-01-15T11:00:00-06:00"}
		]}}}`)
	})

	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	periods, err := cal.ListBusyPeriods(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "/freeBusy", (*requests)[0].path)

	require.Len(t, periods, 2)
	assert.Equal(t, time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC), periods[0].Start)
	assert.Equal(t, time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC), periods[1].Start)
	assert.Equal(t, time.UTC, periods[1].Start.Location())
}

func TestListBusyPeriodsCalendarError(t *testing.T) {
	cal, _ := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"calendars":{"primary":{"errors":[{"domain":"global","reason":"notFound"}]}}}`)
	})

	_, err := cal.ListBusyPeriods(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notFound")
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("insert: %w", context.DeadlineExceeded), true},
		{"not configured", ErrCalendarNotConfigured, false},
		{"429", &googleapi.Error{Code: 429}, true},
		{"503", fmt.Errorf("insert: %w", &googleapi.Error{Code: 503}), true},
		{"403 rate limit", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, true},
		{"403 forbidden", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}, false},
		{"404", &googleapi.Error{Code: 404}, false},
		{"revoked token", &oauth2.RetrieveError{}, false},
		{"network", fmt.Errorf("dial: %w", timeoutErr{}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestUnconfiguredCalendar(t *testing.T) {
	var cal UnconfiguredCalendar
	_, err := cal.CreateEvent(context.Background(), testBooking())
	assert.ErrorIs(t, err, ErrCalendarNotConfigured)
	_, err = cal.ListBusyPeriods(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrCalendarNotConfigured)
	assert.ErrorIs(t, cal.DeleteEvent(context.Background(), "x"), ErrCalendarNotConfigured)
	assert.ErrorIs(t, cal.UpdateEvent(context.Background(), "x", testBooking()), ErrCalendarNotConfigured)
	assert.Empty(t, cal.EventIDFor(testBooking().ID))
}
