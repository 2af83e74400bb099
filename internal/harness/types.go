package harness

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/georemind/internal/reminder"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates every expect clause matched.
	Pass bool `json:"pass"`

	// Trace has one line per step, starting with the startup line.
	// Used for golden comparison.
	Trace []string `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []string{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends the observation after step index.
func (r *Result) AddTrace(index int, label string, o Observation) {
	r.Trace = append(r.Trace, fmt.Sprintf("%d %s %s", index, label, o))
}

// Observation is what the harness sees once a step has settled.
type Observation struct {
	State    string
	Active   int
	Degraded bool

	// Nearest is empty when no nearest reminder is known.
	Nearest  string
	Distance float64

	Geofences []string
	Stored    reminder.Stats

	// Notification is the text of the last notification posted during the
	// step, or empty.
	Notification string
}

// String renders the observation as a single trace line.
func (o Observation) String() string {
	nearest, distance := "-", "-"
	if o.Nearest != "" {
		nearest = o.Nearest
		distance = strconv.FormatFloat(o.Distance, 'f', 3, 64)
	}
	geofences := "-"
	if len(o.Geofences) > 0 {
		geofences = strings.Join(o.Geofences, ",")
	}
	notification := "-"
	if o.Notification != "" {
		notification = strconv.Quote(o.Notification)
	}
	return fmt.Sprintf("state=%s active=%d degraded=%t nearest=%s distance=%s geofences=%s stored=%d/%d notification=%s",
		o.State,
		o.Active,
		o.Degraded,
		nearest,
		distance,
		geofences,
		o.Stored.Active,
		o.Stored.Completed,
		notification,
	)
}

// distanceTolerance absorbs floating point noise in great-circle distances.
const distanceTolerance = 1e-6

// check compares o against e and returns one message per mismatch.
func (e *Expect) check(o Observation) []string {
	if e == nil {
		return nil
	}
	var problems []string
	mismatch := func(field string, got, want any) {
		problems = append(problems, fmt.Sprintf("%s = %v, want %v", field, got, want))
	}

	if e.State != nil && *e.State != o.State {
		mismatch("state", o.State, *e.State)
	}
	if e.Active != nil && *e.Active != o.Active {
		mismatch("active", o.Active, *e.Active)
	}
	if e.Degraded != nil && *e.Degraded != o.Degraded {
		mismatch("degraded", o.Degraded, *e.Degraded)
	}
	if e.Nearest != nil {
		got := o.Nearest
		if got == "" {
			got = "-"
		}
		if got != *e.Nearest {
			mismatch("nearest", got, *e.Nearest)
		}
	}
	if e.Distance != nil {
		if o.Nearest == "" {
			mismatch("distance", "-", *e.Distance)
		} else if math.Abs(o.Distance-*e.Distance) > distanceTolerance {
			mismatch("distance", o.Distance, *e.Distance)
		}
	}
	if e.Geofences != nil {
		want := *e.Geofences
		if want == nil {
			want = []string{}
		}
		got := o.Geofences
		if got == nil {
			got = []string{}
		}
		if !slices.Equal(got, want) {
			mismatch("geofences", got, want)
		}
	}
	if e.Notification != nil {
		got := o.Notification
		if got == "" {
			got = "-"
		}
		if got != *e.Notification {
			mismatch("notification", strconv.Quote(got), strconv.Quote(*e.Notification))
		}
	}
	if e.StoredActive != nil && *e.StoredActive != o.Stored.Active {
		mismatch("stored_active", o.Stored.Active, *e.StoredActive)
	}
	if e.StoredCompleted != nil && *e.StoredCompleted != o.Stored.Completed {
		mismatch("stored_completed", o.Stored.Completed, *e.StoredCompleted)
	}
	return problems
}
