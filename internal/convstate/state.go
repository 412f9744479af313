package convstate

import (
	"context"
	"time"
)

// Stage tracks where a session is in the booking flow.
type Stage string

const (
	StageGreeting       Stage = "GREETING"
	StageCollectingInfo Stage = "COLLECTING_INFO"
	StageSelectingSlot  Stage = "SELECTING_SLOT"
	StageConfirming     Stage = "CONFIRMING"
	StageCompleted      Stage = "COMPLETED"
)

// State is the persisted per-session conversation record. Nested maps are
// merged key-by-key on patch, never replaced wholesale.
type State struct {
	SessionID      string            `dynamodbav:"sessionId" json:"sessionId"`
	UserID         string            `dynamodbav:"userId,omitempty" json:"userId,omitempty"`
	Current        Stage             `dynamodbav:"currentState" json:"currentState"`
	PatientInfo    map[string]string `dynamodbav:"patientInfo,omitempty" json:"patientInfo,omitempty"`
	BookingRequest map[string]string `dynamodbav:"bookingRequest,omitempty" json:"bookingRequest,omitempty"`
	DrugQueries    []string          `dynamodbav:"drugQueries,omitempty" json:"drugQueries,omitempty"`
	Summary        string            `dynamodbav:"summary,omitempty" json:"summary,omitempty"`
	LastUpdatedAt  time.Time         `dynamodbav:"lastUpdatedAt" json:"lastUpdatedAt"`
}

// Patch describes a non-destructive update. Nil pointer fields leave the
// current value untouched; map entries merge into the existing maps;
// DrugQueries entries append (deduplicated).
type Patch struct {
	UserID         *string
	Current        *Stage
	Summary        *string
	PatientInfo    map[string]string
	BookingRequest map[string]string
	DrugQueries    []string
}

// Store persists conversation state. Get is never destructive and creates a
// default GREETING record on first read.
type Store interface {
	Get(ctx context.Context, sessionID string) (State, error)
	Apply(ctx context.Context, sessionID string, patch Patch) (State, error)
	Delete(ctx context.Context, sessionID string) error
}

func defaultState(sessionID string, now time.Time) State {
	return State{
		SessionID:      sessionID,
		Current:        StageGreeting,
		PatientInfo:    map[string]string{},
		BookingRequest: map[string]string{},
		LastUpdatedAt:  now,
	}
}

// merge applies the patch to a copy of the state.
func merge(state State, patch Patch, now time.Time) State {
	if patch.UserID != nil {
		state.UserID = *patch.UserID
	}
	if patch.Current != nil {
		state.Current = *patch.Current
	}
	if patch.Summary != nil {
		state.Summary = *patch.Summary
	}
	state.PatientInfo = mergeMap(state.PatientInfo, patch.PatientInfo)
	state.BookingRequest = mergeMap(state.BookingRequest, patch.BookingRequest)
	state.DrugQueries = appendUnique(state.DrugQueries, patch.DrugQueries)
	state.LastUpdatedAt = now
	return state
}

func mergeMap(base, patch map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(patch))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

func appendUnique(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	out := make([]string, 0, len(base)+len(extra))
	for _, v := range base {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range extra {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
