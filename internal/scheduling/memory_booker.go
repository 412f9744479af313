package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBooker implements Booker in process memory. A single mutex makes the
// claim + appointment write atomic, honoring the exactly-one-winner contract
// for local development and tests.
type MemoryBooker struct {
	clock func() time.Time

	mu           sync.Mutex
	schedules    map[string]*Schedule
	appointments map[string]*Appointment // keyed by booking code
}

// NewMemoryBooker creates an empty in-memory booker.
func NewMemoryBooker(clock func() time.Time) *MemoryBooker {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryBooker{
		clock:        clock,
		schedules:    make(map[string]*Schedule),
		appointments: make(map[string]*Appointment),
	}
}

// SeedSchedule inserts or replaces a schedule document.
func (b *MemoryBooker) SeedSchedule(schedule Schedule) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := schedule
	cp.Slots = make([]TimeSlot, len(schedule.Slots))
	copy(cp.Slots, schedule.Slots)
	b.schedules[schedule.ID] = &cp
}

// FindOpenSlots lists free slots, optionally filtered by doctor and date.
func (b *MemoryBooker) FindOpenSlots(_ context.Context, doctorID, date string) ([]SlotRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []SlotRef
	for _, schedule := range b.schedules {
		if doctorID != "" && schedule.DoctorID != doctorID {
			continue
		}
		if date != "" && schedule.Date != date {
			continue
		}
		for _, slot := range schedule.Slots {
			if slot.IsBooked {
				continue
			}
			out = append(out, SlotRef{
				ScheduleID: schedule.ID,
				TimeSlotID: slot.ID,
				DoctorID:   schedule.DoctorID,
				DoctorName: schedule.DoctorName,
				Date:       schedule.Date,
				Time:       slot.Start,
			})
		}
	}
	return out, nil
}

// GetSchedule returns a copy of the schedule document.
func (b *MemoryBooker) GetSchedule(_ context.Context, scheduleID string) (Schedule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	schedule, ok := b.schedules[scheduleID]
	if !ok {
		return Schedule{}, ErrScheduleNotFound
	}
	cp := *schedule
	cp.Slots = make([]TimeSlot, len(schedule.Slots))
	copy(cp.Slots, schedule.Slots)
	return cp, nil
}

// Book claims the slot and creates the appointment under one lock. Exactly
// one of N concurrent attempts on the same slot succeeds; the rest observe
// ErrSlotTaken and leave no partial records.
func (b *MemoryBooker) Book(_ context.Context, userID, scheduleID, timeSlotID string) (Appointment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	schedule, ok := b.schedules[scheduleID]
	if !ok {
		return Appointment{}, ErrScheduleNotFound
	}

	slotIndex := -1
	for i, slot := range schedule.Slots {
		if slot.ID == timeSlotID {
			slotIndex = i
			break
		}
	}
	if slotIndex < 0 {
		return Appointment{}, ErrSlotNotFound
	}
	if schedule.Slots[slotIndex].IsBooked {
		return Appointment{}, ErrSlotTaken
	}

	schedule.Slots[slotIndex].IsBooked = true

	appt := Appointment{
		ID:          uuid.NewString(),
		BookingCode: NewBookingCode(),
		UserID:      userID,
		DoctorID:    schedule.DoctorID,
		DoctorName:  schedule.DoctorName,
		ScheduleID:  schedule.ID,
		TimeSlotID:  timeSlotID,
		Date:        schedule.Date,
		Time:        schedule.Slots[slotIndex].Start,
		Status:      "confirmed",
		CreatedAt:   b.clock().UTC(),
	}
	b.appointments[appt.BookingCode] = &appt
	return appt, nil
}

// Cancel marks the appointment cancelled and frees its slot.
func (b *MemoryBooker) Cancel(_ context.Context, userID, bookingCode string) (Appointment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	appt, ok := b.appointments[bookingCode]
	if !ok || appt.UserID != userID {
		return Appointment{}, ErrAppointmentNotFound
	}
	if appt.Status == "cancelled" {
		return *appt, nil
	}
	appt.Status = "cancelled"

	if schedule, ok := b.schedules[appt.ScheduleID]; ok {
		for i, slot := range schedule.Slots {
			if slot.ID == appt.TimeSlotID {
				schedule.Slots[i].IsBooked = false
				break
			}
		}
	}
	return *appt, nil
}

// ListAppointments returns the user's appointments, newest first.
func (b *MemoryBooker) ListAppointments(_ context.Context, userID string) ([]Appointment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Appointment
	for _, appt := range b.appointments {
		if appt.UserID == userID {
			out = append(out, *appt)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}
