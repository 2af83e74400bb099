package reminder

import "fmt"

// FilterActive returns every reminder with Completed == false.
// The result preserves input order and never aliases the input slice.
func FilterActive(reminders []Reminder) []Reminder {
	return ShowActive.Apply(reminders)
}

// Filter selects a subset of a reminder collection.
type Filter string

const (
	ShowAll       Filter = "all"
	ShowActive    Filter = "active"
	ShowCompleted Filter = "completed"
)

// ParseFilter validates a filter name.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case ShowAll, ShowActive, ShowCompleted:
		return f, nil
	case "":
		return ShowAll, nil
	default:
		return "", fmt.Errorf("invalid filter %q: must be one of all, active, completed", s)
	}
}

// Apply returns the reminders matching the filter, in input order.
func (f Filter) Apply(reminders []Reminder) []Reminder {
	out := make([]Reminder, 0, len(reminders))
	for _, r := range reminders {
		switch f {
		case ShowActive:
			if r.Active() {
				out = append(out, r)
			}
		case ShowCompleted:
			if r.Completed {
				out = append(out, r)
			}
		default:
			out = append(out, r)
		}
	}
	return out
}

// IDs returns the ids of reminders in input order.
func IDs(reminders []Reminder) []string {
	ids := make([]string, len(reminders))
	for i, r := range reminders {
		ids[i] = r.ID
	}
	return ids
}

// Find returns the reminder with the given id.
func Find(reminders []Reminder, id string) (Reminder, bool) {
	for _, r := range reminders {
		if r.ID == id {
			return r, true
		}
	}
	return Reminder{}, false
}
