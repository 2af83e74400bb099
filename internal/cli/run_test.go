package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/georemind/internal/reminder"
	"github.com/roach88/georemind/internal/store"
)

func seedDatabase(t *testing.T, path string, reminders ...reminder.Reminder) {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	for _, r := range reminders {
		require.NoError(t, st.Save(context.Background(), r))
	}
}

// executeRun runs the run command with input as its control stream and
// fails the test if it does not return within a few seconds.
func executeRun(t *testing.T, rootOpts *RootOptions, input io.Reader, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(input)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.ExecuteContext(ctx)
	}()

	select {
	case err := <-errChan:
		return buf.String(), err
	case <-time.After(15 * time.Second):
		t.Fatal("run command did not return")
		return "", nil
	}
}

func TestRunHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Start the proximity engine")
	assert.Contains(t, output, "--config")
	assert.Contains(t, output, "--track")
	assert.Contains(t, output, "--metrics-addr")
}

func TestRunInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("geofence:\n  radius_meters: -5\n"), 0644))

	rootOpts := &RootOptions{Format: "text", Database: filepath.Join(tmpDir, "test.db")}
	_, err := executeRun(t, rootOpts, strings.NewReader(""), "--config", configPath)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunMissingTrack(t *testing.T) {
	tmpDir := t.TempDir()

	rootOpts := &RootOptions{Format: "text", Database: filepath.Join(tmpDir, "test.db")}
	_, err := executeRun(t, rootOpts, strings.NewReader(""), "--track", filepath.Join(tmpDir, "missing.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load track")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunInvalidDatabasePath(t *testing.T) {
	rootOpts := &RootOptions{Format: "text", Database: "/nonexistent/dir/test.db"}
	_, err := executeRun(t, rootOpts, strings.NewReader(""))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestRunEmptyDatabaseStopsOnFirstTick(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	rootOpts := &RootOptions{Format: "text", Database: dbPath}
	output, err := executeRun(t, rootOpts, strings.NewReader(""))

	require.NoError(t, err)
	assert.Contains(t, output, "Engine started")

	_, statErr := os.Stat(dbPath)
	assert.NoError(t, statErr, "database should be created")
}

func TestRunStopCommandCompletesActiveReminders(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	seedDatabase(t, dbPath,
		reminder.Reminder{ID: "bakery", Title: "Bread", Latitude: 45.4642, Longitude: 9.19},
		reminder.Reminder{ID: "florist", Title: "Tulips", Latitude: 45.47, Longitude: 9.19},
		reminder.Reminder{ID: "done", Title: "Old", Latitude: 45.46, Longitude: 9.18, Completed: true},
	)

	trackPath := filepath.Join(tmpDir, "walk.yaml")
	track := "fixes:\n  - { latitude: 45.4642, longitude: 9.19 }\n"
	require.NoError(t, os.WriteFile(trackPath, []byte(track), 0644))

	rootOpts := &RootOptions{Format: "text", Database: dbPath}
	_, err := executeRun(t, rootOpts, strings.NewReader("stop\n"), "--track", trackPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, 3, stats.Completed)
}

func TestRunContextCancellation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	seedDatabase(t, dbPath, reminder.Reminder{ID: "bakery", Title: "Bread", Latitude: 45.4642, Longitude: 9.19})

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Database: dbPath}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	// An idle terminal: nothing arrives until the test ends.
	pr, pw := io.Pipe()
	defer pw.Close()
	cmd.SetIn(pr)
	cmd.SetArgs([]string{})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.ExecuteContext(ctx)
	}()

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command did not respect context timeout")
	}

	assert.Contains(t, buf.String(), "Engine started")
}

type recordingTarget struct {
	calls   []string
	stopped bool
}

func (r *recordingTarget) Deactivate(id string) bool {
	r.calls = append(r.calls, "deactivate "+id)
	return !r.stopped
}

func (r *recordingTarget) Start() bool {
	r.calls = append(r.calls, "start")
	return !r.stopped
}

func (r *recordingTarget) Stop() {
	r.calls = append(r.calls, "stop")
	r.stopped = true
}

func TestReadCommands(t *testing.T) {
	input := strings.Join([]string{
		"deactivate bakery",
		"",
		"  start  ",
		"dance",
		"deactivate",
		"stop",
		"start",
	}, "\n")

	target := &recordingTarget{}
	readCommands(strings.NewReader(input), target)

	assert.Equal(t, []string{"deactivate bakery", "start", "stop"}, target.calls)
}

func TestReadCommands_StopsWhenTargetRejects(t *testing.T) {
	target := &recordingTarget{stopped: true}
	readCommands(strings.NewReader("start\ndeactivate bakery\n"), target)

	assert.Equal(t, []string{"start"}, target.calls)
}
