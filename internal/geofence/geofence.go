// Package geofence keeps a platform geofence registry aligned with the
// active reminder set.
//
// Synchronization is a full resync: every registered boundary is removed and
// one boundary per active reminder is registered again. At any settled
// instant the registered ids equal the active reminder ids.
package geofence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/georemind/internal/reminder"
)

// DefaultRadiusMeters is the radius shared by all reminder geofences.
const DefaultRadiusMeters = 100.0

// Geofence is a circular boundary keyed by reminder id.
type Geofence struct {
	ID           string  `json:"id"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

// Registry is the platform geofencing service. Both methods may fail; the
// caller treats failures as recoverable.
type Registry interface {
	Add(ctx context.Context, g Geofence) error
	RemoveAll(ctx context.Context) error
}

// ForReminders builds one geofence per reminder, in input order.
func ForReminders(reminders []reminder.Reminder, radiusMeters float64) []Geofence {
	out := make([]Geofence, len(reminders))
	for i, r := range reminders {
		out[i] = Geofence{
			ID:           r.ID,
			Latitude:     r.Latitude,
			Longitude:    r.Longitude,
			RadiusMeters: radiusMeters,
		}
	}
	return out
}

// Fingerprint identifies a geofence set independent of order. Two sets with
// the same fingerprint need no resync.
func Fingerprint(gs []Geofence) string {
	parts := make([]string, len(gs))
	for i, g := range gs {
		parts[i] = fmt.Sprintf("%s@%v,%v/%v", g.ID, g.Latitude, g.Longitude, g.RadiusMeters)
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// EntryError is a failure to register one geofence.
type EntryError struct {
	ID  string
	Err error
}

// ResyncError collects the non-fatal failures of one resync.
type ResyncError struct {
	// RemoveErr is set when clearing the registry failed. Stale boundaries
	// may linger until the next resync.
	RemoveErr error
	// Entries lists the geofences the registry rejected.
	Entries []EntryError
}

func (e *ResyncError) Error() string {
	var b strings.Builder
	b.WriteString("geofence resync incomplete")
	if e.RemoveErr != nil {
		fmt.Fprintf(&b, ": remove all: %v", e.RemoveErr)
	}
	for _, entry := range e.Entries {
		fmt.Fprintf(&b, "; add %s: %v", entry.ID, entry.Err)
	}
	return b.String()
}

// Unwrap exposes the underlying failures to errors.Is and errors.As.
func (e *ResyncError) Unwrap() []error {
	var errs []error
	if e.RemoveErr != nil {
		errs = append(errs, e.RemoveErr)
	}
	for _, entry := range e.Entries {
		errs = append(errs, entry.Err)
	}
	return errs
}

// FailedIDs returns the ids that could not be registered.
func (e *ResyncError) FailedIDs() []string {
	ids := make([]string, len(e.Entries))
	for i, entry := range e.Entries {
		ids[i] = entry.ID
	}
	return ids
}
