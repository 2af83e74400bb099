package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/georemind/internal/reminder"
)

// execute runs the root command with args against dbPath.
func execute(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

// addJSON adds a reminder and returns it as stored.
func addJSON(t *testing.T, dbPath string, args ...string) reminder.Reminder {
	t.Helper()
	out, err := execute(t, dbPath, append([]string{"--format", "json", "add"}, args...)...)
	require.NoError(t, err, out)

	var resp struct {
		Status string            `json:"status"`
		Data   reminder.Reminder `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func listJSON(t *testing.T, dbPath string, filter string) []reminder.Reminder {
	t.Helper()
	out, err := execute(t, dbPath, "--format", "json", "list", "--filter", filter)
	require.NoError(t, err, out)

	var resp struct {
		Data []reminder.Reminder `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestAddAndList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	bread := addJSON(t, dbPath, "--title", "Buy bread", "--lat", "45.4642", "--lng", "9.19", "--owner", "ana")
	assert.NotEmpty(t, bread.ID)
	assert.Equal(t, "Buy bread", bread.Title)
	assert.Equal(t, "ana", bread.OwnerID)
	assert.InDelta(t, 45.4642, bread.Latitude, 1e-9)
	assert.False(t, bread.Completed)

	books := addJSON(t, dbPath, "--description", "Return books", "--lat", "45.47", "--lng", "9.18")

	all := listJSON(t, dbPath, "all")
	require.Len(t, all, 2)
	assert.Equal(t, []string{bread.ID, books.ID}, reminder.IDs(all))

	out, err := execute(t, dbPath, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Buy bread")
	assert.Contains(t, out, "Return books")
	assert.Contains(t, out, "45.464200")
}

func TestAddRejectsInvalidReminder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	_, err := execute(t, dbPath, "add", "--lat", "45", "--lng", "9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "title or description is required")

	_, err = execute(t, dbPath, "add", "--title", "Far", "--lat", "91", "--lng", "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude")

	_, err = execute(t, dbPath, "add", "--title", "No coordinates")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestListEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	out, err := execute(t, dbPath, "list")
	require.NoError(t, err)
	assert.Equal(t, "No reminders.\n", out)
}

func TestListInvalidFilter(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	_, err := execute(t, dbPath, "list", "--filter", "someday")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompleteActivateDelete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	r := addJSON(t, dbPath, "--title", "Bread", "--lat", "45.4642", "--lng", "9.19")

	out, err := execute(t, dbPath, "complete", r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Completed reminder "+r.ID+"\n", out)
	assert.Len(t, listJSON(t, dbPath, "completed"), 1)
	assert.Empty(t, listJSON(t, dbPath, "active"))

	_, err = execute(t, dbPath, "activate", r.ID)
	require.NoError(t, err)
	assert.Len(t, listJSON(t, dbPath, "active"), 1)

	_, err = execute(t, dbPath, "delete", r.ID)
	require.NoError(t, err)
	assert.Empty(t, listJSON(t, dbPath, "all"))
}

func TestUnknownReminder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	for _, name := range []string{"complete", "activate", "delete"} {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, dbPath, name, "missing")
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, err.Error(), "unknown reminder")
		})
	}
}

func TestClearCompletedAndDeleteAll(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	a := addJSON(t, dbPath, "--title", "A", "--lat", "1", "--lng", "1")
	b := addJSON(t, dbPath, "--title", "B", "--lat", "2", "--lng", "2")
	addJSON(t, dbPath, "--title", "C", "--lat", "3", "--lng", "3")

	_, err := execute(t, dbPath, "complete", a.ID)
	require.NoError(t, err)
	_, err = execute(t, dbPath, "complete", b.ID)
	require.NoError(t, err)

	out, err := execute(t, dbPath, "clear-completed")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 2 reminders\n", out)
	assert.Len(t, listJSON(t, dbPath, "all"), 1)

	out, err = execute(t, dbPath, "--format", "json", "delete-all")
	require.NoError(t, err)
	var resp struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data["deleted"])
	assert.Empty(t, listJSON(t, dbPath, "all"))
}

func TestStats(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	out, err := execute(t, dbPath, "stats")
	require.NoError(t, err)
	assert.Equal(t, "Active: 0 (0.0%)\nCompleted: 0 (0.0%)\n", out)

	a := addJSON(t, dbPath, "--title", "A", "--lat", "1", "--lng", "1")
	addJSON(t, dbPath, "--title", "B", "--lat", "2", "--lng", "2")
	addJSON(t, dbPath, "--title", "C", "--lat", "3", "--lng", "3")
	addJSON(t, dbPath, "--title", "D", "--lat", "4", "--lng", "4")
	_, err = execute(t, dbPath, "complete", a.ID)
	require.NoError(t, err)

	out, err = execute(t, dbPath, "--format", "json", "stats")
	require.NoError(t, err)
	var resp struct {
		Data reminder.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, reminder.Stats{Active: 3, Completed: 1, ActivePercent: 75, CompletedPercent: 25}, resp.Data)
}

func TestOpenStoreFailure(t *testing.T) {
	_, err := execute(t, "/nonexistent/dir/test.db", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}
