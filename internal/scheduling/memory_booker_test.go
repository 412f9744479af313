package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededBooker(t *testing.T) *MemoryBooker {
	t.Helper()
	booker := NewMemoryBooker(nil)
	booker.SeedSchedule(Schedule{
		ID:         "sch-1",
		DoctorID:   "doc-15",
		DoctorName: "BS. Trần Văn Minh",
		Date:       "2025-03-10",
		Slots: []TimeSlot{
			{ID: "ts-0800", Start: "08:00", End: "08:30"},
			{ID: "ts-0830", Start: "08:30", End: "09:00"},
			{ID: "ts-0900", Start: "09:00", End: "09:30", IsBooked: true},
		},
	})
	return booker
}

func TestFindOpenSlotsSkipsBooked(t *testing.T) {
	booker := seededBooker(t)

	slots, err := booker.FindOpenSlots(context.Background(), "doc-15", "2025-03-10")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	for _, slot := range slots {
		assert.NotEqual(t, "ts-0900", slot.TimeSlotID)
	}
}

func TestFindOpenSlotsFilters(t *testing.T) {
	booker := seededBooker(t)

	slots, err := booker.FindOpenSlots(context.Background(), "doc-99", "")
	require.NoError(t, err)
	assert.Empty(t, slots)

	slots, err = booker.FindOpenSlots(context.Background(), "", "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestBookCreatesConfirmedAppointment(t *testing.T) {
	now := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	booker := NewMemoryBooker(func() time.Time { return now })
	booker.SeedSchedule(Schedule{
		ID: "sch-1", DoctorID: "doc-15", DoctorName: "BS. Trần Văn Minh", Date: "2025-03-10",
		Slots: []TimeSlot{{ID: "ts-0800", Start: "08:00", End: "08:30"}},
	})

	appt, err := booker.Book(context.Background(), "user-9", "sch-1", "ts-0800")
	require.NoError(t, err)
	assert.Regexp(t, `^APT-[A-Z0-9]{8}$`, appt.BookingCode)
	assert.Equal(t, "confirmed", appt.Status)
	assert.Equal(t, "user-9", appt.UserID)
	assert.Equal(t, "08:00", appt.Time)
	assert.Equal(t, now, appt.CreatedAt)

	_, err = booker.Book(context.Background(), "user-10", "sch-1", "ts-0800")
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestBookErrorModes(t *testing.T) {
	booker := seededBooker(t)
	ctx := context.Background()

	_, err := booker.Book(ctx, "user-9", "sch-missing", "ts-0800")
	assert.ErrorIs(t, err, ErrScheduleNotFound)

	_, err = booker.Book(ctx, "user-9", "sch-1", "ts-missing")
	assert.ErrorIs(t, err, ErrSlotNotFound)

	_, err = booker.Book(ctx, "user-9", "sch-1", "ts-0900")
	assert.ErrorIs(t, err, ErrSlotTaken)
}

// Many goroutines race on one slot; exactly one wins and no loser leaves a
// partial appointment behind.
func TestBookIsAtomicUnderContention(t *testing.T) {
	const racers = 32
	booker := seededBooker(t)

	var wg sync.WaitGroup
	results := make(chan error, racers)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			_, err := booker.Book(context.Background(), "user-9", "sch-1", "ts-0800")
			results <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, losses)

	appts, err := booker.ListAppointments(context.Background(), "user-9")
	require.NoError(t, err)
	assert.Len(t, appts, 1, "losers must not leave partial records")
}

func TestCancelFreesSlot(t *testing.T) {
	booker := seededBooker(t)
	ctx := context.Background()

	appt, err := booker.Book(ctx, "user-9", "sch-1", "ts-0800")
	require.NoError(t, err)

	cancelled, err := booker.Cancel(ctx, "user-9", appt.BookingCode)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)

	// Slot is bookable again.
	_, err = booker.Book(ctx, "user-10", "sch-1", "ts-0800")
	assert.NoError(t, err)
}

func TestCancelIsScopedToOwner(t *testing.T) {
	booker := seededBooker(t)
	ctx := context.Background()

	appt, err := booker.Book(ctx, "user-9", "sch-1", "ts-0800")
	require.NoError(t, err)

	_, err = booker.Cancel(ctx, "user-10", appt.BookingCode)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = booker.Cancel(ctx, "user-9", "APT-NOPE1234")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestListAppointmentsNewestFirst(t *testing.T) {
	now := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	booker := NewMemoryBooker(func() time.Time {
		now = now.Add(time.Minute)
		return now
	})
	booker.SeedSchedule(Schedule{
		ID: "sch-1", DoctorID: "doc-15", Date: "2025-03-10",
		Slots: []TimeSlot{
			{ID: "ts-0800", Start: "08:00"},
			{ID: "ts-0830", Start: "08:30"},
		},
	})
	ctx := context.Background()

	first, err := booker.Book(ctx, "user-9", "sch-1", "ts-0800")
	require.NoError(t, err)
	second, err := booker.Book(ctx, "user-9", "sch-1", "ts-0830")
	require.NoError(t, err)

	appts, err := booker.ListAppointments(ctx, "user-9")
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, second.BookingCode, appts[0].BookingCode)
	assert.Equal(t, first.BookingCode, appts[1].BookingCode)
}
