package catalog

import (
	"context"
	"strings"
	"sync"
)

// Medication is one entry of the hospital formulary exposed to the
// medication persona.
type Medication struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	Summary    string   `json:"summary"`
	Dosage     string   `json:"dosage"`
	Warnings   string   `json:"warnings"`
	RequiresRx bool     `json:"requiresRx"`
}

// MedicationDirectory answers drug lookups by name or alias.
type MedicationDirectory interface {
	Lookup(ctx context.Context, name string) (Medication, bool, error)
}

// MemoryMedicationDirectory is a formulary held in memory, matched
// case-insensitively on name and aliases.
type MemoryMedicationDirectory struct {
	mu     sync.RWMutex
	byName map[string]Medication
}

// NewMemoryMedicationDirectory creates an empty directory.
func NewMemoryMedicationDirectory() *MemoryMedicationDirectory {
	return &MemoryMedicationDirectory{byName: make(map[string]Medication)}
}

// Add registers a medication under its name and every alias.
func (d *MemoryMedicationDirectory) Add(med Medication) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byName[normalizeName(med.Name)] = med
	for _, alias := range med.Aliases {
		d.byName[normalizeName(alias)] = med
	}
}

// Lookup finds a medication by name or alias.
func (d *MemoryMedicationDirectory) Lookup(_ context.Context, name string) (Medication, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	med, ok := d.byName[normalizeName(name)]
	return med, ok, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
