// ABOUTME: Tests for CRM contact and interaction storage
// ABOUTME: Covers email upsert merging, lookups, search, and interaction history
package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/consult/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertContactByEmail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := &models.Contact{Name: "Grace Hopper", Email: "Grace@Navy.mil", Company: "Navy"}
	require.NoError(t, UpsertContactByEmail(ctx, db, c))
	require.NotEqual(t, uuid.Nil, c.ID)
	firstID := c.ID

	again := &models.Contact{Email: "grace@navy.mil", Phone: "555-0199"}
	require.NoError(t, UpsertContactByEmail(ctx, db, again))
	assert.Equal(t, firstID, again.ID, "same email updates the existing contact")
	assert.Equal(t, "Grace Hopper", again.Name, "empty fields keep stored values")
	assert.Equal(t, "555-0199", again.Phone)
	assert.Equal(t, "Navy", again.Company)

	got, err := GetContact(ctx, db, firstID)
	require.NoError(t, err)
	assert.Equal(t, "grace@navy.mil", got.Email)
	assert.Equal(t, "555-0199", got.Phone)

	_, err = GetContactByEmail(ctx, db, "nobody@example.com")
	assert.ErrorIs(t, err, ErrContactNotFound)

	assert.Error(t, UpsertContactByEmail(ctx, db, &models.Contact{Name: "No Email"}))
}

func TestFindContacts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, UpsertContactByEmail(ctx, db, &models.Contact{Name: "Alan Turing", Email: "alan@bletchley.uk"}))
	require.NoError(t, UpsertContactByEmail(ctx, db, &models.Contact{Name: "Joan Clarke", Email: "joan@bletchley.uk", Company: "Hut 8"}))

	all, err := FindContacts(ctx, db, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hut, err := FindContacts(ctx, db, "hut", 10)
	require.NoError(t, err)
	require.Len(t, hut, 1)
	assert.Equal(t, "Joan Clarke", hut[0].Name)
}

func TestLogInteraction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := &models.Contact{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, UpsertContactByEmail(ctx, db, c))

	bookingID := uuid.New()
	ts := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	require.NoError(t, LogInteraction(ctx, db, &models.InteractionLog{
		ContactID:       c.ID,
		BookingID:       &bookingID,
		InteractionType: models.InteractionBooked,
		Timestamp:       ts,
		Notes:           "60m consultation",
	}))
	require.NoError(t, LogInteraction(ctx, db, &models.InteractionLog{
		ContactID:       c.ID,
		BookingID:       &bookingID,
		InteractionType: models.InteractionCancelled,
		Timestamp:       ts.Add(time.Hour),
	}))

	history, err := GetInteractionHistory(ctx, db, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.InteractionCancelled, history[0].InteractionType)

	forBooking, err := GetBookingInteractions(ctx, db, bookingID)
	require.NoError(t, err)
	require.Len(t, forBooking, 2)
	assert.Equal(t, models.InteractionBooked, forBooking[0].InteractionType)
	assert.Equal(t, "60m consultation", forBooking[0].Notes)
	require.NotNil(t, forBooking[0].BookingID)
	assert.Equal(t, bookingID, *forBooking[0].BookingID)

	got, err := GetContact(ctx, db, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastContactedAt)
	assert.True(t, got.LastContactedAt.Equal(ts.Add(time.Hour)))
}

func TestSyncStateTracking(t *testing.T) {
	db := setupTestDB(t)

	state, err := GetSyncState(db, "reconcile")
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, UpdateSyncStatus(db, "reconcile", "syncing", nil))
	state, err = GetSyncState(db, "reconcile")
	require.NoError(t, err)
	assert.Equal(t, "syncing", state.Status)

	require.NoError(t, MarkSyncComplete(db, "reconcile", "synced=2 failed=0"))
	state, err = GetSyncState(db, "reconcile")
	require.NoError(t, err)
	assert.Equal(t, "idle", state.Status)
	require.NotNil(t, state.LastSummary)
	assert.Equal(t, "synced=2 failed=0", *state.LastSummary)
	assert.NotNil(t, state.LastSyncTime)

	all, err := GetAllSyncStates(db)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
