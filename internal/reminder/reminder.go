package reminder

import (
	"fmt"

	"github.com/google/uuid"
)

// Reminder is a note tied to a geographic coordinate.
type Reminder struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	OwnerID     string  `json:"owner_id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Completed   bool    `json:"completed"`
}

// New creates an active reminder with a fresh UUIDv7 identity.
func New(title, description, ownerID string, latitude, longitude float64) Reminder {
	return Reminder{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
		Latitude:    latitude,
		Longitude:   longitude,
	}
}

// Active reports whether the reminder still participates in proximity tracking.
func (r Reminder) Active() bool {
	return !r.Completed
}

// DisplayTitle returns the title, falling back to the description when the
// title is empty.
func (r Reminder) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Description
}

// Validate checks coordinates and identity.
func (r Reminder) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("reminder id is required")
	}
	if r.Latitude < -90 || r.Latitude > 90 {
		return fmt.Errorf("reminder %s: latitude %v out of range [-90, 90]", r.ID, r.Latitude)
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return fmt.Errorf("reminder %s: longitude %v out of range [-180, 180]", r.ID, r.Longitude)
	}
	if r.Title == "" && r.Description == "" {
		return fmt.Errorf("reminder %s: title or description is required", r.ID)
	}
	return nil
}

// Snapshot is one emission of a reminder stream: either the full collection
// or the error that prevented reading it.
type Snapshot struct {
	Reminders []Reminder
	Err       error
}

// Active returns the active set of the snapshot. A failed snapshot has an
// empty active set.
func (s Snapshot) Active() []Reminder {
	if s.Err != nil {
		return nil
	}
	return FilterActive(s.Reminders)
}
