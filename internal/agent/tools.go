package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carelink-health/carelink/internal/catalog"
	"github.com/carelink-health/carelink/internal/convstate"
	"github.com/carelink-health/carelink/internal/observability/metrics"
	"github.com/carelink-health/carelink/internal/scheduling"
	"github.com/carelink-health/carelink/pkg/logging"
)

// ToolName identifies one registered tool.
type ToolName string

const (
	ToolFindSpecialty         ToolName = "find_specialty"
	ToolFindServices          ToolName = "find_services"
	ToolFindDoctors           ToolName = "find_doctors"
	ToolFindAvailableSlots    ToolName = "find_available_slots"
	ToolBookAppointment       ToolName = "book_appointment"
	ToolCancelAppointment     ToolName = "cancel_appointment"
	ToolRescheduleAppointment ToolName = "reschedule_appointment"
	ToolGetMyAppointments     ToolName = "get_my_appointments"
	ToolLookupMedication      ToolName = "lookup_medication"
)

// AuthRequiredMarker is the sentinel a user-scoped tool returns when the
// session has no resolved user. It travels to the model untouched; the outer
// channel layer is what turns it into a login prompt.
const AuthRequiredMarker = "AUTHENTICATION_REQUIRED"

// sessionIDArg is injected into every tool call by the loop.
const sessionIDArg = "sessionId"

// Handler executes one tool call. A returned payload goes to the model
// verbatim, including error payloads; a returned Go error means the
// infrastructure itself failed.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool couples a model-facing definition with its handler.
type Tool struct {
	Definition ToolDefinition
	Handle     Handler
}

type catalogResolver interface {
	Resolve(ctx context.Context, kind catalog.Kind, query, parentID string) ([]catalog.Match, error)
}

type identityMap interface {
	GetUserID(ctx context.Context, sessionID string) (string, bool)
}

type stateStore interface {
	Apply(ctx context.Context, sessionID string, patch convstate.Patch) (convstate.State, error)
}

// ToolDeps are the collaborators the built-in tools close over.
type ToolDeps struct {
	Catalog     catalogResolver
	Booker      scheduling.Booker
	Slots       *scheduling.SlotListCache
	Identity    identityMap
	State       stateStore
	Medications catalog.MedicationDirectory
	Metrics     *metrics.TurnMetrics // optional; nil-safe
	Logger      *logging.Logger
}

// Registry holds the tools the loop may dispatch.
type Registry struct {
	tools map[ToolName]Tool
	order []ToolName
}

// NewRegistry builds the full hospital tool set from its collaborators.
func NewRegistry(deps ToolDeps) *Registry {
	if deps.Catalog == nil || deps.Booker == nil || deps.Slots == nil ||
		deps.Identity == nil || deps.State == nil || deps.Medications == nil {
		panic("agent: all tool dependencies are required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}

	r := &Registry{tools: make(map[ToolName]Tool)}
	r.register(findSpecialtyTool(deps))
	r.register(findServicesTool(deps))
	r.register(findDoctorsTool(deps))
	r.register(findAvailableSlotsTool(deps))
	r.register(bookAppointmentTool(deps))
	r.register(cancelAppointmentTool(deps))
	r.register(rescheduleAppointmentTool(deps))
	r.register(getMyAppointmentsTool(deps))
	r.register(lookupMedicationTool(deps))
	return r
}

func (r *Registry) register(tool Tool) {
	r.tools[tool.Definition.Name] = tool
	r.order = append(r.order, tool.Definition.Name)
}

// Definitions returns the model-facing declarations for a subset of tools,
// skipping names that are not registered.
func (r *Registry) Definitions(names []ToolName) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			defs = append(defs, tool.Definition)
		}
	}
	return defs
}

// Dispatch runs one tool call. Unknown tools yield a structured error payload
// rather than a Go error so the model can correct itself.
func (r *Registry) Dispatch(ctx context.Context, call FunctionCall, sessionID string) (map[string]any, error) {
	tool, ok := r.tools[ToolName(call.Name)]
	if !ok {
		return map[string]any{
			"error":   "unknown_tool",
			"message": fmt.Sprintf("no tool named %q is available", call.Name),
		}, nil
	}

	args := make(map[string]any, len(call.Args)+1)
	for k, v := range call.Args {
		args[k] = v
	}
	args[sessionIDArg] = sessionID

	return tool.Handle(ctx, args)
}

func stringArg(args map[string]any, name string) (string, bool) {
	v, ok := args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func optionalStringArg(args map[string]any, name string) string {
	s, _ := stringArg(args, name)
	return s
}

func missingArg(name string) map[string]any {
	return map[string]any{
		"error":   "invalid_arguments",
		"message": fmt.Sprintf("required argument %q is missing or empty", name),
	}
}

// resolveUser maps the injected session id to a user id. The marker payload
// is the tool's whole answer when the session is anonymous.
func resolveUser(ctx context.Context, deps ToolDeps, args map[string]any) (string, map[string]any) {
	sessionID := optionalStringArg(args, sessionIDArg)
	if sessionID == "" {
		return "", map[string]any{"error": AuthRequiredMarker}
	}
	userID, ok := deps.Identity.GetUserID(ctx, sessionID)
	if !ok {
		return "", map[string]any{"error": AuthRequiredMarker}
	}
	return userID, nil
}

func matchesPayload(matches []catalog.Match) map[string]any {
	out := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		out = append(out, map[string]any{
			"id":    m.TargetID,
			"name":  m.TargetName,
			"score": m.Score,
		})
	}
	return map[string]any{"matches": out}
}

func resolveCatalog(ctx context.Context, deps ToolDeps, kind catalog.Kind, query, parentID, emptyMessage string) (map[string]any, error) {
	matches, err := deps.Catalog.Resolve(ctx, kind, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("agent: resolve %s: %w", kind, err)
	}
	if len(matches) == 0 {
		return map[string]any{"error": "not_found", "message": emptyMessage}, nil
	}
	return matchesPayload(matches), nil
}

func findSpecialtyTool(deps ToolDeps) Tool {
	return Tool{
		Definition: ToolDefinition{
			Name:        ToolFindSpecialty,
			Description: "Map a symptom or free-text description to a hospital specialty. Returns specialty ids and names.",
			Params: []ToolParam{
				{Name: "query", Type: ParamString, Description: "Symptom or specialty description in the patient's words", Required: true},
			},
		},
		Handle: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query, ok := stringArg(args, "query")
			if !ok {
				return missingArg("query"), nil
			}
			return resolveCatalog(ctx, deps, catalog.KindSpecialty, query, "",
				"no specialty matches this description; ask the patient to describe their symptoms differently")
		},
	}
}

func findServicesTool(deps ToolDeps) Tool {
	return Tool{
		Definition: ToolDefinition{
			Name:        ToolFindServices,
			Description: "Find medical services by name, optionally restricted to one specialty.",
			Params: []ToolParam{
				{Name: "query", Type: ParamString, Description: "Service name or description", Required: true},
				{Name: "specialty_id", Type: ParamString, Description: "Restrict results to this specialty id"},
			},
		},
		Handle: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query, ok := stringArg(args, "query")
			if !ok {
				return missingArg("query"), nil
			}
			return resolveCatalog(ctx, deps, catalog.KindService, query, optionalStringArg(args, "specialty_id"),
				"no service matches this description")
		},
	}
}

func findDoctorsTool(deps ToolDeps) Tool {
	return Tool{
		Definition: ToolDefinition{
			Name:        ToolFindDoctors,
			Description: "Find doctors by name or specialty description, optionally restricted to one specialty.",
			Params: []ToolParam{
				{Name: "query", Type: ParamString, Description: "Doctor name or description", Required: true},
				{Name: "specialty_id", Type: ParamString, Description: "Restrict results to this specialty id"},
			},
		},
		Handle: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query, ok := stringArg(args, "query")
			if !ok {
				return missingArg("query"), nil
			}
			return resolveCatalog(ctx, deps, catalog.KindDoctor, query, optionalStringArg(args, "specialty_id"),
				"no doctor matches this description")
		},
	}
}

func findAvailableSlotsTool(deps ToolDeps) Tool {
	return Tool{
		Definition: ToolDefinition{
			Name:        ToolFindAvailableSlots,
			Description: "List free appointment slots for a doctor. Each slot carries a reference code like L01 the patient can pick.",
			Params: []ToolParam{
				{Name: "doctor_id", Type: ParamString, Description: "Doctor id from find_doctors", Required: true},
				{Name: "date", Type: ParamString, Description: "Date filter yyyy-mm-dd; empty means any upcoming date"},
			},
		},
		Handle: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			doctorID, ok := stringArg(args, "doctor_id")
			if !ok {
				return missingArg("doctor_id"), nil
			}
			slots, err := deps.Booker.FindOpenSlots(ctx, doctorID, optionalStringArg(args, "date"))
			if err != nil {
				return nil, fmt.Errorf("agent: find open slots: %w", err)
			}
			if len(slots) == 0 {
				return map[string]any{"error": "not_found", "message": "no free slots for this doctor on the requested date"}, nil
			}

			slots = scheduling.AssignReferenceCodes(slots)
			deps.Slots.Put(optionalStringArg(args, sessionIDArg), slots)

			out := make([]map[string]any, 0, len(slots))
			for _, slot := range slots {
				out = append(out, map[string]any{
					"referenceCode": slot.ReferenceCode,
					"doctorName":    slot.DoctorName,
					"date":          slot.Date,
					"time":          slot.Time,
				})
			}
			return map[string]any{"slots": out}, nil
		},
	}
}

func bookAppointmentTool(deps ToolDeps) Tool {
	return Tool{
		Definition: ToolDefinition{
			Name:        ToolBookAppointment,
			Description: "Book the slot the patient chose from the last find_available_slots result, identified by its reference code.",
			Params: []ToolParam{
				{Name: "slot_reference", Type: ParamString, Description: "Reference code the patient picked, e.g. L01", Required: true},
			},
		},
		Handle: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			userID, denied := resolveUser(ctx, deps, args)
			if denied != nil {
				return denied, nil
			}
			reference, ok := stringArg(args, "slot_reference")
			if !ok {
				return missingArg("slot_reference"), nil
			}

			sessionID := optionalStringArg(args, sessionIDArg)
			slot, ok := scheduling.ResolveReference(reference, deps.Slots.Get(sessionID))
			if !ok {
				return map[string]any{
					"error":   "unknown_slot_reference",
					"message": fmt.Sprintf("reference %q does not match the last slot list; call find_available_slots again", reference),
				}, nil
			}

			appt, err := deps.Booker.Book(ctx, userID, slot.ScheduleID, slot.TimeSlotID)
			if err != nil {
				return bookingErrorPayload(deps, err)
			}

			deps.Slots.Clear(sessionID)
			stage := convstate.StageCompleted
			if _, err := deps.State.Apply(ctx, sessionID, convstate.Patch{
				Current: &stage,
				BookingRequest: map[string]string{
					"status":      "confirmed",
					"bookingCode": appt.BookingCode,
					"doctorId":    appt.DoctorID,
				},
			}); err != nil {
				deps.Logger.Warn("state patch after booking failed", "session_id", sessionID, "error", err)
			}

			return appointmentPayload(appt), nil
		},
	}
}

func cancelAppointmentTool(deps ToolDeps) Tool {
	return Tool{
		Definition: ToolDefinition{
			Name:        ToolCancelAppointment,
			Description: "Cancel one of the patient's appointments by its booking code (APT-...).",
			Params: []ToolParam{
				{Name: "booking_code", Type: ParamString, Description: "Booking code, e.g. APT-7F3K2M9Q", Required: true},
			},
		},
		Handle: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			userID, denied := resolveUser(ctx, deps, args)
			if denied != nil {
				return denied, nil
			}
			code, ok := stringArg(args, "booking_code")
			if !ok {
				return missingArg("booking_code"), nil
			}

			appt, err := deps.Booker.Cancel(ctx, userID, code)
			if err != nil {
				return bookingErrorPayload(deps, err)
			}
			return appointmentPayload(appt), nil
		},
	}
}

func rescheduleAppointmentTool(deps ToolDeps) Tool {
	return Tool{
		Definition: ToolDefinition{
			Name:        ToolRescheduleAppointment,
			Description: "Move an existing appointment to a slot from the last find_available_slots result. Books the new slot first, then cancels the old appointment.",
			Params: []ToolParam{
				{Name: "booking_code", Type: ParamString, Description: "Booking code of the appointment to move", Required: true},
				{Name: "slot_reference", Type: ParamString, Description: "Reference code of the new slot, e.g. L02", Required: true},
			},
		},
		Handle: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			userID, denied := resolveUser(ctx, deps, args)
			if denied != nil {
				return denied, nil
			}
			code, ok := stringArg(args, "booking_code")
			if !ok {
				return missingArg("booking_code"), nil
			}
			reference, ok := stringArg(args, "slot_reference")
			if !ok {
				return missingArg("slot_reference"), nil
			}

			sessionID := optionalStringArg(args, sessionIDArg)
			slot, ok := scheduling.ResolveReference(reference, deps.Slots.Get(sessionID))
			if !ok {
				return map[string]any{
					"error":   "unknown_slot_reference",
					"message": fmt.Sprintf("reference %q does not match the last slot list; call find_available_slots again", reference),
				}, nil
			}

			appt, err := deps.Booker.Book(ctx, userID, slot.ScheduleID, slot.TimeSlotID)
			if err != nil {
				return bookingErrorPayload(deps, err)
			}
			if _, err := deps.Booker.Cancel(ctx, userID, code); err != nil {
				// The new booking stands; the old one could not be released.
				deps.Logger.Error("reschedule: cancel of old appointment failed",
					"booking_code", code, "error", err)
				payload := appointmentPayload(appt)
				payload["warning"] = fmt.Sprintf("new appointment is confirmed but the old one (%s) could not be cancelled: %v", code, err)
				return payload, nil
			}

			deps.Slots.Clear(sessionID)
			return appointmentPayload(appt), nil
		},
	}
}

func getMyAppointmentsTool(deps ToolDeps) Tool {
	return Tool{
		Definition: ToolDefinition{
			Name:        ToolGetMyAppointments,
			Description: "List the patient's appointments, newest first.",
		},
		Handle: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			userID, denied := resolveUser(ctx, deps, args)
			if denied != nil {
				return denied, nil
			}

			appts, err := deps.Booker.ListAppointments(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("agent: list appointments: %w", err)
			}

			out := make([]map[string]any, 0, len(appts))
			for _, appt := range appts {
				out = append(out, appointmentPayload(appt))
			}
			return map[string]any{"appointments": out}, nil
		},
	}
}

func lookupMedicationTool(deps ToolDeps) Tool {
	return Tool{
		Definition: ToolDefinition{
			Name:        ToolLookupMedication,
			Description: "Look up a medication in the hospital formulary by name.",
			Params: []ToolParam{
				{Name: "name", Type: ParamString, Description: "Medication name, brand or generic", Required: true},
			},
		},
		Handle: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, ok := stringArg(args, "name")
			if !ok {
				return missingArg("name"), nil
			}

			med, found, err := deps.Medications.Lookup(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("agent: medication lookup: %w", err)
			}
			if !found {
				return map[string]any{"error": "not_found", "message": fmt.Sprintf("medication %q is not in the formulary", name)}, nil
			}

			sessionID := optionalStringArg(args, sessionIDArg)
			if _, err := deps.State.Apply(ctx, sessionID, convstate.Patch{DrugQueries: []string{med.Name}}); err != nil {
				deps.Logger.Warn("state patch after medication lookup failed", "session_id", sessionID, "error", err)
			}

			return map[string]any{
				"name":       med.Name,
				"summary":    med.Summary,
				"dosage":     med.Dosage,
				"warnings":   med.Warnings,
				"requiresRx": med.RequiresRx,
			}, nil
		},
	}
}

func appointmentPayload(appt scheduling.Appointment) map[string]any {
	return map[string]any{
		"bookingCode": appt.BookingCode,
		"doctorName":  appt.DoctorName,
		"date":        appt.Date,
		"time":        appt.Time,
		"status":      appt.Status,
	}
}

// bookingErrorPayload converts the booker's failure modes into payloads the
// model can relay in natural language. Anything else is an infrastructure
// error.
func bookingErrorPayload(deps ToolDeps, err error) (map[string]any, error) {
	switch {
	case errors.Is(err, scheduling.ErrSlotTaken):
		deps.Metrics.ObserveBookingConflict()
		return map[string]any{"error": "slot_taken", "message": "this slot was just booked by someone else; offer the remaining slots"}, nil
	case errors.Is(err, scheduling.ErrScheduleNotFound), errors.Is(err, scheduling.ErrSlotNotFound):
		return map[string]any{"error": "slot_unavailable", "message": "this slot no longer exists; call find_available_slots again"}, nil
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		return map[string]any{"error": "appointment_not_found", "message": "no appointment with this booking code belongs to the patient"}, nil
	default:
		return nil, err
	}
}
