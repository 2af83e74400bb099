package reminder

// Stats summarises a reminder collection.
type Stats struct {
	Active           int     `json:"active"`
	Completed        int     `json:"completed"`
	ActivePercent    float64 `json:"active_percent"`
	CompletedPercent float64 `json:"completed_percent"`
}

// ComputeStats counts active and completed reminders. Percentages are zero
// for an empty collection.
func ComputeStats(reminders []Reminder) Stats {
	var s Stats
	for _, r := range reminders {
		if r.Completed {
			s.Completed++
		} else {
			s.Active++
		}
	}
	total := s.Active + s.Completed
	if total == 0 {
		return s
	}
	s.ActivePercent = 100 * float64(s.Active) / float64(total)
	s.CompletedPercent = 100 * float64(s.Completed) / float64(total)
	return s
}
