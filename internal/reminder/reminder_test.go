package reminder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AssignsUniqueActiveReminder(t *testing.T) {
	a := New("Bakery", "buy bread", "user-1", 45.0, 7.0)
	b := New("Bakery", "buy bread", "user-1", 45.0, 7.0)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Active())
	require.NoError(t, a.Validate())
}

func TestDisplayTitle_FallsBackToDescription(t *testing.T) {
	assert.Equal(t, "Bakery", Reminder{Title: "Bakery", Description: "bread"}.DisplayTitle())
	assert.Equal(t, "bread", Reminder{Description: "bread"}.DisplayTitle())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       Reminder
		wantErr string
	}{
		{"missing id", Reminder{Title: "x"}, "id is required"},
		{"latitude", Reminder{ID: "r", Title: "x", Latitude: 91}, "latitude"},
		{"longitude", Reminder{ID: "r", Title: "x", Longitude: -181}, "longitude"},
		{"no text", Reminder{ID: "r"}, "title or description"},
		{"ok", Reminder{ID: "r", Description: "x", Latitude: -90, Longitude: 180}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFilterActive_KeepsExactlyIncompleteReminders(t *testing.T) {
	collections := [][]Reminder{
		nil,
		{},
		{{ID: "a"}, {ID: "b", Completed: true}, {ID: "c"}},
		{{ID: "a", Completed: true}, {ID: "b", Completed: true}},
		{{ID: "a"}, {ID: "b"}},
	}

	for _, coll := range collections {
		active := FilterActive(coll)
		want := map[string]bool{}
		for _, r := range coll {
			if !r.Completed {
				want[r.ID] = true
			}
		}
		got := map[string]bool{}
		for _, r := range active {
			assert.False(t, r.Completed)
			got[r.ID] = true
		}
		assert.Equal(t, want, got)
	}
}

func TestFilterActive_DoesNotAliasInput(t *testing.T) {
	in := []Reminder{{ID: "a"}, {ID: "b"}}
	out := FilterActive(in)
	out[0].Title = "changed"
	assert.Empty(t, in[0].Title)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, ShowAll, f)

	f, err = ParseFilter("completed")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, IDs(f.Apply([]Reminder{{ID: "a"}, {ID: "b", Completed: true}})))

	_, err = ParseFilter("pending")
	assert.Error(t, err)
}

func TestSnapshot_FailedSnapshotHasNoActiveReminders(t *testing.T) {
	s := Snapshot{Reminders: []Reminder{{ID: "a"}}, Err: errors.New("disk gone")}
	assert.Empty(t, s.Active())

	s.Err = nil
	assert.Equal(t, []string{"a"}, IDs(s.Active()))
}

func TestFind(t *testing.T) {
	rs := []Reminder{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}
	r, ok := Find(rs, "b")
	require.True(t, ok)
	assert.Equal(t, "B", r.Title)

	_, ok = Find(rs, "z")
	assert.False(t, ok)
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))

	s := ComputeStats([]Reminder{{ID: "a"}, {ID: "b", Completed: true}, {ID: "c"}, {ID: "d"}})
	assert.Equal(t, 3, s.Active)
	assert.Equal(t, 1, s.Completed)
	assert.InDelta(t, 75.0, s.ActivePercent, 1e-9)
	assert.InDelta(t, 25.0, s.CompletedPercent, 1e-9)
}
