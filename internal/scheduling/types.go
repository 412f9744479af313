package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Booking failure modes surfaced to the agent loop as user-facing messages.
var (
	ErrScheduleNotFound    = errors.New("scheduling: schedule no longer exists")
	ErrSlotNotFound        = errors.New("scheduling: slot no longer exists")
	ErrSlotTaken           = errors.New("scheduling: slot was just booked by someone else")
	ErrAppointmentNotFound = errors.New("scheduling: appointment not found")
)

// TimeSlot is one bookable window inside a schedule document.
type TimeSlot struct {
	ID       string `dynamodbav:"timeSlotId" json:"timeSlotId"`
	Start    string `dynamodbav:"start" json:"start"`
	End      string `dynamodbav:"end" json:"end"`
	IsBooked bool   `dynamodbav:"isBooked" json:"isBooked"`
}

// Schedule is a doctor's working block for one date with nested time slots.
type Schedule struct {
	ID         string     `dynamodbav:"scheduleId" json:"scheduleId"`
	DoctorID   string     `dynamodbav:"doctorId" json:"doctorId"`
	DoctorName string     `dynamodbav:"doctorName" json:"doctorName"`
	Date       string     `dynamodbav:"date" json:"date"` // yyyy-mm-dd
	Slots      []TimeSlot `dynamodbav:"slots" json:"slots"`
}

// SlotRef is the ephemeral, per-turn view of one free slot. The reference
// code exists only inside one tool response and the model's transcript.
type SlotRef struct {
	ReferenceCode string `json:"referenceCode"`
	ScheduleID    string `json:"scheduleId"`
	TimeSlotID    string `json:"timeSlotId"`
	DoctorID      string `json:"doctorId"`
	DoctorName    string `json:"doctorName"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

// Appointment is the booked record bound to the resolved user.
type Appointment struct {
	ID          string    `dynamodbav:"appointmentId" json:"appointmentId"`
	BookingCode string    `dynamodbav:"bookingCode" json:"bookingCode"`
	UserID      string    `dynamodbav:"userId" json:"userId"`
	DoctorID    string    `dynamodbav:"doctorId" json:"doctorId"`
	DoctorName  string    `dynamodbav:"doctorName" json:"doctorName"`
	ScheduleID  string    `dynamodbav:"scheduleId" json:"scheduleId"`
	TimeSlotID  string    `dynamodbav:"timeSlotId" json:"timeSlotId"`
	Date        string    `dynamodbav:"date" json:"date"`
	Time        string    `dynamodbav:"time" json:"time"`
	Status      string    `dynamodbav:"status" json:"status"` // confirmed | cancelled
	CreatedAt   time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// Booker is the document-store collaborator for the booking transaction.
// Book executes claim + appointment creation as a single atomic unit: under
// N simultaneous attempts on one slot exactly one commits.
type Booker interface {
	FindOpenSlots(ctx context.Context, doctorID, date string) ([]SlotRef, error)
	GetSchedule(ctx context.Context, scheduleID string) (Schedule, error)
	Book(ctx context.Context, userID, scheduleID, timeSlotID string) (Appointment, error)
	Cancel(ctx context.Context, userID, bookingCode string) (Appointment, error)
	ListAppointments(ctx context.Context, userID string) ([]Appointment, error)
}

// NewBookingCode mints a code matching APT-[A-Z0-9]{8}.
func NewBookingCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "APT-" + raw[:8]
}

// AssignReferenceCodes labels slots L01, L02, ... for the user to pick by
// name instead of raw id.
func AssignReferenceCodes(slots []SlotRef) []SlotRef {
	for i := range slots {
		slots[i].ReferenceCode = fmt.Sprintf("L%02d", i+1)
	}
	return slots
}

// ResolveReference finds the slot a user chose. Matching is case and
// zero-padding insensitive: "L1", "L01", "l01", and the bare index "1" all
// resolve to the first slot.
func ResolveReference(choice string, slots []SlotRef) (SlotRef, bool) {
	trimmed := strings.TrimSpace(strings.ToUpper(choice))
	trimmed = strings.TrimPrefix(trimmed, "L")
	index, err := strconv.Atoi(trimmed)
	if err != nil || index < 1 || index > len(slots) {
		return SlotRef{}, false
	}
	return slots[index-1], true
}

// SlotListCache remembers the most recently returned slot list per session so
// a follow-up turn can resolve "L01" against it.
type SlotListCache struct {
	mu    sync.RWMutex
	lists map[string][]SlotRef
}

// NewSlotListCache creates an empty cache.
func NewSlotListCache() *SlotListCache {
	return &SlotListCache{lists: make(map[string][]SlotRef)}
}

// Put replaces the cached list for a session.
func (c *SlotListCache) Put(sessionID string, slots []SlotRef) {
	cp := make([]SlotRef, len(slots))
	copy(cp, slots)
	c.mu.Lock()
	c.lists[sessionID] = cp
	c.mu.Unlock()
}

// Get returns the cached list for a session.
func (c *SlotListCache) Get(sessionID string) []SlotRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lists[sessionID]
}

// Clear drops the cached list after a successful booking.
func (c *SlotListCache) Clear(sessionID string) {
	c.mu.Lock()
	delete(c.lists, sessionID)
	c.mu.Unlock()
}
