// Package config loads the engine configuration file.
//
// A configuration file is YAML. It is first checked against an embedded CUE
// schema (unknown keys, value ranges, duration syntax), then decoded over
// Default so that every omitted field keeps its default.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/georemind/internal/engine"
	"github.com/roach88/georemind/internal/geofence"
	"github.com/roach88/georemind/internal/location"
	"github.com/roach88/georemind/internal/notify"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full engine configuration.
type Config struct {
	Geofence      Geofence        `yaml:"geofence"`
	Location      location.Config `yaml:"location"`
	Notifications Notifications   `yaml:"notifications"`
	Metrics       Metrics         `yaml:"metrics"`
}

// Geofence configures geofence registration.
type Geofence struct {
	RadiusMeters float64 `yaml:"radius_meters"`
}

// Notifications configures the notification loop.
type Notifications struct {
	notify.LoopConfig `yaml:",inline"`
	// StopOnExit stops the engine when the loop ends on its own.
	StopOnExit bool `yaml:"stop_on_exit"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Geofence:      Geofence{RadiusMeters: geofence.DefaultRadiusMeters},
		Location:      location.DefaultConfig(),
		Notifications: Notifications{LoopConfig: notify.DefaultLoopConfig(), StopOnExit: true},
	}
}

// SchemaError reports a configuration file that does not match the schema.
type SchemaError struct {
	File     string
	Problems []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: invalid configuration: %s", e.File, strings.Join(e.Problems, "; "))
}

// IsSchemaError returns true if err is a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// Load reads and validates the file at path. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates and decodes data. filename is used in error messages.
func Parse(data []byte, filename string) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	if err := checkSchema(data, filename); err != nil {
		return Config{}, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%s: decode config: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// Validate checks constraints that span fields.
func (c Config) Validate() error {
	if c.Geofence.RadiusMeters <= 0 {
		return fmt.Errorf("geofence radius must be positive, got %v", c.Geofence.RadiusMeters)
	}
	if err := c.Location.Validate(); err != nil {
		return err
	}
	if err := c.Notifications.Validate(); err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	return nil
}

// EngineOptions translates c into controller options.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithRadius(c.Geofence.RadiusMeters),
		engine.WithLocationConfig(c.Location),
		engine.WithLoopConfig(c.Notifications.LoopConfig),
		engine.WithStopOnLoopExit(c.Notifications.StopOnExit),
	}
}

// checkSchema unifies the document with #Config.
func checkSchema(data []byte, filename string) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: parse config: %w", filename, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return &SchemaError{File: filename, Problems: []string{"top level must be a mapping"}}
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: parse config: %w", filename, err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.CompileBytes(asJSON, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return fmt.Errorf("%s: parse config: %w", filename, err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		var problems []string
		for _, e := range cueerrors.Errors(err) {
			problems = append(problems, e.Error())
		}
		return &SchemaError{File: filename, Problems: problems}
	}
	return nil
}
