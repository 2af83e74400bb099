package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/georemind/internal/location"
	"github.com/roach88/georemind/internal/notify"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 100.0, cfg.Geofence.RadiusMeters)
	assert.Equal(t, location.DefaultConfig(), cfg.Location)
	assert.Equal(t, notify.DefaultLoopConfig(), cfg.Notifications.LoopConfig)
	assert.True(t, cfg.Notifications.StopOnExit)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "georemind.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 150.0, cfg.Geofence.RadiusMeters)
	assert.Equal(t, location.Config{
		Interval:        2 * time.Second,
		FastestInterval: 500 * time.Millisecond,
		MaxWait:         4 * time.Second,
		Priority:        location.PriorityBalanced,
	}, cfg.Location)
	assert.Equal(t, notify.LoopConfig{
		TickBudget:   120,
		TickInterval: 5 * time.Second,
		MaxActive:    20,
	}, cfg.Notifications.LoopConfig)
	assert.False(t, cfg.Notifications.StopOnExit)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("notifications:\n  tick_budget: 10\n"), "partial.yaml")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Notifications.TickBudget)
	assert.Equal(t, time.Second, cfg.Notifications.TickInterval)
	assert.Equal(t, 100, cfg.Notifications.MaxActive)
	assert.True(t, cfg.Notifications.StopOnExit)
	assert.Equal(t, location.DefaultConfig(), cfg.Location)
}

func TestParse_EmptyIsDefault(t *testing.T) {
	cfg, err := Parse([]byte("  \n"), "empty.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		contains string
	}{
		{
			name:     "unknown section",
			yaml:     "storage:\n  path: x\n",
			contains: "storage",
		},
		{
			name:     "unknown nested key",
			yaml:     "location:\n  accuracy: 5\n",
			contains: "accuracy",
		},
		{
			name:     "invalid priority",
			yaml:     "location:\n  priority: turbo\n",
			contains: "priority",
		},
		{
			name:     "malformed duration",
			yaml:     "notifications:\n  tick_interval: one second\n",
			contains: "tick_interval",
		},
		{
			name:     "zero tick budget",
			yaml:     "notifications:\n  tick_budget: 0\n",
			contains: "tick_budget",
		},
		{
			name:     "negative radius",
			yaml:     "geofence:\n  radius_meters: -5\n",
			contains: "radius_meters",
		},
		{
			name:     "fractional max active",
			yaml:     "notifications:\n  max_active: 2.5\n",
			contains: "max_active",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "bad.yaml")
			require.Error(t, err)
			assert.True(t, IsSchemaError(err), "expected SchemaError, got %v", err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Contains(t, err.Error(), "bad.yaml")
		})
	}
}

func TestParse_TopLevelMustBeMapping(t *testing.T) {
	_, err := Parse([]byte("- a\n- b\n"), "list.yaml")
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestParse_CrossFieldValidation(t *testing.T) {
	_, err := Parse([]byte("location:\n  interval: 1s\n  fastest_interval: 2s\n"), "cross.yaml")
	require.Error(t, err)
	assert.False(t, IsSchemaError(err))
	assert.Contains(t, err.Error(), "fastest_interval")
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("location: [unclosed\n"), "broken.yaml")
	require.Error(t, err)
	assert.False(t, IsSchemaError(err))
}

func TestEngineOptions(t *testing.T) {
	assert.Len(t, Default().EngineOptions(), 4)
}
