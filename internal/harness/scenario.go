package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario scripts one controller run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Origin anchors every north offset in the scenario.
	Origin Origin `yaml:"origin"`

	// Config overrides the default controller configuration.
	Config Overrides `yaml:"config"`

	// PermissionDenied starts the run without location permission.
	PermissionDenied bool `yaml:"permission_denied"`

	// Reminders are stored, in order, before the controller starts.
	Reminders []ReminderSpec `yaml:"reminders"`

	// Steps run in order after startup.
	Steps []Step `yaml:"steps"`
}

// Origin is the reference coordinate of a scenario.
type Origin struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Overrides replaces individual configuration values. Nil fields keep the
// default.
type Overrides struct {
	RadiusMeters *float64 `yaml:"radius_meters"`
	TickBudget   *int     `yaml:"tick_budget"`
	MaxActive    *int     `yaml:"max_active"`
	StopOnExit   *bool    `yaml:"stop_on_exit"`
}

// ReminderSpec places a reminder North meters north of the origin, or at
// Latitude/Longitude when both are set.
type ReminderSpec struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	North       float64  `yaml:"north"`
	Latitude    *float64 `yaml:"latitude"`
	Longitude   *float64 `yaml:"longitude"`
	Completed   bool     `yaml:"completed"`
}

// Step is one scripted action.
type Step struct {
	Action string `yaml:"action"`

	// ID names the reminder for deactivate, complete, activate and delete.
	ID string `yaml:"id,omitempty"`

	// Count is the number of ticks for tick. Default 1.
	Count int `yaml:"count,omitempty"`

	// North is the fix position for fix. Latitude and Longitude, when both
	// set, take precedence.
	North     float64  `yaml:"north,omitempty"`
	Latitude  *float64 `yaml:"latitude,omitempty"`
	Longitude *float64 `yaml:"longitude,omitempty"`

	// Reminder is the reminder stored by add.
	Reminder *ReminderSpec `yaml:"reminder,omitempty"`

	// Error is the failure message for fail_source.
	Error string `yaml:"error,omitempty"`

	// Expect is checked after the step settles.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists the observations a step must produce. Only the fields that
// are set are checked.
type Expect struct {
	State    *string  `yaml:"state"`
	Active   *int     `yaml:"active"`
	Degraded *bool    `yaml:"degraded"`
	Nearest  *string  `yaml:"nearest"`
	Distance *float64 `yaml:"distance"`

	// Geofences are the registered ids in ascending order.
	Geofences *[]string `yaml:"geofences"`

	// Notification is the text of the last notification the step produced,
	// or "-" for none.
	Notification *string `yaml:"notification"`

	StoredActive    *int `yaml:"stored_active"`
	StoredCompleted *int `yaml:"stored_completed"`
}

// Step actions.
const (
	ActionFix             = "fix"
	ActionTick            = "tick"
	ActionDeactivate      = "deactivate"
	ActionAdd             = "add"
	ActionComplete        = "complete"
	ActionActivate        = "activate"
	ActionDelete          = "delete"
	ActionClearCompleted  = "clear_completed"
	ActionDeleteAll       = "delete_all"
	ActionFailSource      = "fail_source"
	ActionRecoverSource   = "recover_source"
	ActionGrantPermission = "grant_permission"
	ActionStart           = "start"
	ActionStop            = "stop"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Origin.Latitude < -90 || s.Origin.Latitude > 90 {
		return fmt.Errorf("origin latitude %v out of range", s.Origin.Latitude)
	}
	if s.Origin.Longitude < -180 || s.Origin.Longitude > 180 {
		return fmt.Errorf("origin longitude %v out of range", s.Origin.Longitude)
	}

	seen := make(map[string]bool, len(s.Reminders))
	for i, r := range s.Reminders {
		if r.ID == "" {
			return fmt.Errorf("reminders[%d]: id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("reminders[%d]: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = true
		if (r.Latitude == nil) != (r.Longitude == nil) {
			return fmt.Errorf("reminders[%d]: latitude and longitude must be set together", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch step.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionDeactivate, ActionComplete, ActionActivate, ActionDelete:
		if step.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for %s", index, step.Action)
		}
	case ActionAdd:
		if step.Reminder == nil || step.Reminder.ID == "" {
			return fmt.Errorf("steps[%d]: reminder with id is required for add", index)
		}
	case ActionTick:
		if step.Count < 0 {
			return fmt.Errorf("steps[%d]: count must be non-negative", index)
		}
	case ActionFix:
		if (step.Latitude == nil) != (step.Longitude == nil) {
			return fmt.Errorf("steps[%d]: latitude and longitude must be set together", index)
		}
	case ActionClearCompleted, ActionDeleteAll, ActionFailSource,
		ActionRecoverSource, ActionGrantPermission, ActionStart, ActionStop:
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}
	return nil
}

// label names a step in the trace.
func (s Step) label() string {
	switch s.Action {
	case ActionFix:
		if s.Latitude != nil && s.Longitude != nil {
			return fmt.Sprintf("fix(%g,%g)", *s.Latitude, *s.Longitude)
		}
		return fmt.Sprintf("fix(%g)", s.North)
	case ActionTick:
		if s.Count > 1 {
			return fmt.Sprintf("tick(%d)", s.Count)
		}
		return ActionTick
	case ActionDeactivate, ActionComplete, ActionActivate, ActionDelete:
		return fmt.Sprintf("%s(%s)", s.Action, s.ID)
	case ActionAdd:
		return fmt.Sprintf("add(%s)", s.Reminder.ID)
	default:
		return s.Action
	}
}
