package convstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGetCreatesDefaultState(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore(fixedClock(now))

	state, err := store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", state.SessionID)
	assert.Equal(t, StageGreeting, state.Current)
	assert.Equal(t, now, state.LastUpdatedAt)
	assert.Empty(t, state.UserID)
}

func TestGetIsNotDestructive(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	stage := StageConfirming
	_, err := store.Apply(ctx, "sess-1", Patch{Current: &stage})
	require.NoError(t, err)

	state, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, StageConfirming, state.Current)
}

// Patching one nested key must not erase siblings set in earlier turns.
func TestPatchMergesNestedMaps(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	_, err := store.Apply(ctx, "sess-1", Patch{
		BookingRequest: map[string]string{"doctorId": "doc-15", "specialtyId": "spec-cardio"},
	})
	require.NoError(t, err)

	state, err := store.Apply(ctx, "sess-1", Patch{
		BookingRequest: map[string]string{"status": "slot_selected"},
	})
	require.NoError(t, err)

	assert.Equal(t, "doc-15", state.BookingRequest["doctorId"])
	assert.Equal(t, "spec-cardio", state.BookingRequest["specialtyId"])
	assert.Equal(t, "slot_selected", state.BookingRequest["status"])
}

func TestPatchScalarOverwrites(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	userID := "user-9"
	summary := "patient asked about cardiology"
	state, err := store.Apply(ctx, "sess-1", Patch{UserID: &userID, Summary: &summary})
	require.NoError(t, err)
	assert.Equal(t, "user-9", state.UserID)

	newSummary := "patient booked a slot"
	state, err = store.Apply(ctx, "sess-1", Patch{Summary: &newSummary})
	require.NoError(t, err)
	assert.Equal(t, "patient booked a slot", state.Summary)
	assert.Equal(t, "user-9", state.UserID, "untouched scalar keeps its value")
}

func TestDrugQueriesAppendUnique(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	_, err := store.Apply(ctx, "sess-1", Patch{DrugQueries: []string{"paracetamol"}})
	require.NoError(t, err)
	state, err := store.Apply(ctx, "sess-1", Patch{DrugQueries: []string{"paracetamol", "ibuprofen"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"paracetamol", "ibuprofen"}, state.DrugQueries)
}

func TestDeleteRemovesState(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	stage := StageCompleted
	_, err := store.Apply(ctx, "sess-1", Patch{Current: &stage})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "sess-1"))

	state, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, StageGreeting, state.Current)
}

func TestReturnedStateIsACopy(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	_, err := store.Apply(ctx, "sess-1", Patch{PatientInfo: map[string]string{"name": "An"}})
	require.NoError(t, err)

	state, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	state.PatientInfo["name"] = "mutated"

	fresh, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "An", fresh.PatientInfo["name"])
}
