package Tasks

import (
	"testing"

	"Anvil/Models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReady(t *testing.T) {
	tests := []struct {
		name       string
		checked    bool
		status     string
		require    string
		attachment bool
		want       bool
	}{
		{"unchecked", false, Models.StatusYes, "", false, false},
		{"no status", true, Models.StatusUnset, "", false, false},
		{"bogus status", true, "Maybe", "", false, false},
		{"yes without requirement", true, Models.StatusYes, "", false, true},
		{"no without requirement", true, Models.StatusNo, "No", false, true},
		{"required but missing", true, Models.StatusYes, "Yes", false, false},
		{"required case insensitive", true, Models.StatusNo, " yes ", false, false},
		{"required and present", true, Models.StatusYes, "YES", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubmitReady(tt.checked, tt.status, tt.require, tt.attachment))
		})
	}
}

func formWith(records ...Models.TaskRecord) *Form {
	f := NewForm()
	f.Sync(Partition(records))
	return f
}

func TestFormCheckSeedsRemarksAndStatus(t *testing.T) {
	task := record("TM-1", "SN-1", "Lathe", "alice", "")
	task.Remarks = "belt worn"
	task.TaskStatus = "No"
	task.SoundStatus = "noisy"
	f := formWith(task)

	st, err := f.Check("TM-1")
	require.NoError(t, err)
	assert.True(t, st.Checked)
	assert.Equal(t, "belt worn", st.Remarks)
	assert.Equal(t, Models.StatusNo, st.Status)
	assert.Empty(t, st.SoundStatus)
	assert.Equal(t, StateCheckedReady, st.State)

	// checking again keeps edits
	_, err = f.Edit("TM-1", EntryPatch{Remarks: ptr("replaced belt")})
	require.NoError(t, err)
	st, err = f.Check("TM-1")
	require.NoError(t, err)
	assert.Equal(t, "replaced belt", st.Remarks)
}

func TestFormCheckIgnoresFreeTextStatus(t *testing.T) {
	task := record("TM-1", "SN-1", "Lathe", "alice", "")
	task.TaskStatus = "Pending"
	f := formWith(task)

	st, err := f.Check("TM-1")
	require.NoError(t, err)
	assert.Equal(t, Models.StatusUnset, st.Status)
	assert.Equal(t, StateCheckedIncomplete, st.State)
	assert.False(t, st.Ready)
}

func TestFormRejectsCompletedAndUnknownTasks(t *testing.T) {
	f := formWith(
		record("TM-1", "SN-1", "Lathe", "alice", ""),
		record("TM-2", "SN-1", "Lathe", "alice", "2024-01-01"),
	)

	_, err := f.Check("TM-2")
	assert.ErrorIs(t, err, ErrUnknownTask)
	_, err = f.Check("TM-404")
	assert.ErrorIs(t, err, ErrUnknownTask)
	_, err = f.Edit("TM-1", EntryPatch{Remarks: ptr("x")})
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestFormTransitions(t *testing.T) {
	task := record("TM-1", "SN-1", "Lathe", "alice", "")
	task.RequireAttachment = "Yes"
	f := formWith(task)

	assert.Equal(t, StateUnchecked, f.state("TM-1"))

	_, err := f.Check("TM-1")
	require.NoError(t, err)
	assert.Equal(t, StateCheckedIncomplete, f.state("TM-1"))

	_, err = f.Edit("TM-1", EntryPatch{Status: ptr(Models.StatusYes)})
	require.NoError(t, err)
	assert.Equal(t, StateCheckedIncomplete, f.state("TM-1"), "attachment still missing")

	st, err := f.SetAttachment("TM-1", Models.NewMemoryAttachment("a.jpg", "image/jpeg", []byte("x")))
	require.NoError(t, err)
	assert.Equal(t, StateCheckedReady, st.State)

	_, entry, err := f.BeginSubmit("TM-1")
	require.NoError(t, err)
	assert.Equal(t, Models.StatusYes, entry.Status)
	assert.Equal(t, StateSubmitting, f.state("TM-1"))

	_, _, err = f.BeginSubmit("TM-1")
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.ErrorIs(t, f.Uncheck("TM-1"), ErrNotEditable)
	_, err = f.Edit("TM-1", EntryPatch{Remarks: ptr("late")})
	assert.ErrorIs(t, err, ErrNotEditable)

	f.FinishSubmit("TM-1", false)
	assert.Equal(t, StateCheckedReady, f.state("TM-1"), "failed submit keeps the entry")

	_, _, err = f.BeginSubmit("TM-1")
	require.NoError(t, err)
	f.FinishSubmit("TM-1", true)
	assert.Equal(t, StateUnchecked, f.state("TM-1"))
	assert.Empty(t, f.Entries())
}

func TestFormEditValidation(t *testing.T) {
	f := formWith(record("TM-1", "SN-1", "Lathe", "alice", ""))
	_, err := f.Check("TM-1")
	require.NoError(t, err)

	_, err = f.Edit("TM-1", EntryPatch{Status: ptr("yes")})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	st, err := f.Edit("TM-1", EntryPatch{
		Status:      ptr(Models.StatusNo),
		Cost:        ptr("120"),
		SoundStatus: ptr("Normal"),
		Temperature: ptr("Hot"),
	})
	require.NoError(t, err)
	assert.Equal(t, "120", st.Cost)
	assert.Equal(t, "Normal", st.SoundStatus)
	assert.Equal(t, "Hot", st.Temperature)
	assert.True(t, st.Ready)
}

func TestFormBeginSubmitNotReady(t *testing.T) {
	f := formWith(record("TM-1", "SN-1", "Lathe", "alice", ""))

	_, _, err := f.BeginSubmit("TM-1")
	assert.ErrorIs(t, err, ErrNotReady, "unchecked task")

	_, err = f.Check("TM-1")
	require.NoError(t, err)
	_, _, err = f.BeginSubmit("TM-1")
	assert.ErrorIs(t, err, ErrNotReady, "no status yet")
}

func TestFormSyncDropsVanishedEntries(t *testing.T) {
	f := formWith(
		record("TM-1", "SN-1", "Lathe", "alice", ""),
		record("TM-2", "SN-1", "Lathe", "alice", ""),
	)
	_, err := f.Check("TM-1")
	require.NoError(t, err)
	_, err = f.Check("TM-2")
	require.NoError(t, err)

	f.Sync(Partition([]Models.TaskRecord{
		record("TM-1", "SN-1", "Lathe", "alice", "2024-05-05"),
		record("TM-2", "SN-1", "Lathe", "alice", ""),
	}))

	entries := f.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "TM-2", entries[0].TaskNo)
}
