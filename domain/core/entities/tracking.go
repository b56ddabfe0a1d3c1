package entities

import (
	"time"

	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/domain/events"
)

// tracking holds the bookkeeping shared by every aggregate: optimistic
// version, timestamps, pending field changes and uncommitted events.
type tracking struct {
	createdAt time.Time
	updatedAt time.Time
	version   int
	changed   []string
	events    []events.DomainEvent
}

func newTracking(now time.Time) tracking {
	return tracking{createdAt: now, updatedAt: now, version: 1}
}

func restoreTracking(createdAt, updatedAt time.Time, version int) tracking {
	return tracking{createdAt: createdAt, updatedAt: updatedAt, version: version}
}

// CreatedAt returns when the entity was created
func (t *tracking) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns when the entity was last changed
func (t *tracking) UpdatedAt() time.Time { return t.updatedAt }

// Version returns the optimistic concurrency version
func (t *tracking) Version() int { return t.version }

// ChangedFields lists fields mutated since the last commit
func (t *tracking) ChangedFields() []string {
	return append([]string(nil), t.changed...)
}

// HasChanges reports whether any mutator changed state
func (t *tracking) HasChanges() bool { return len(t.changed) > 0 }

// GetUncommittedEvents returns all uncommitted domain events
func (t *tracking) GetUncommittedEvents() []events.DomainEvent {
	return t.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (t *tracking) MarkEventsAsCommitted() {
	t.events = nil
}

func (t *tracking) markChanged(field string) {
	for _, f := range t.changed {
		if f == field {
			return
		}
	}
	t.changed = append(t.changed, field)
}

// commit bumps the version once for all pending changes.
func (t *tracking) commit(now time.Time) bool {
	if len(t.changed) == 0 {
		return false
	}
	t.version++
	t.updatedAt = now
	return true
}

func (t *tracking) resetChanges() {
	t.changed = nil
}

func (t *tracking) addEvent(e events.DomainEvent) {
	t.events = append(t.events, e)
}

func sameIDs(a, b []valueobjects.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}

func copyIDs(ids []valueobjects.ID) []valueobjects.ID {
	return append([]valueobjects.ID(nil), ids...)
}

func removeID(ids []valueobjects.ID, id valueobjects.ID) ([]valueobjects.ID, bool) {
	out := ids[:0:0]
	found := false
	for _, existing := range ids {
		if existing.Equals(id) {
			found = true
			continue
		}
		out = append(out, existing)
	}
	return out, found
}

func sameMetadata(a, b valueobjects.Metadata) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
