package goal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/core"
)

func TestTracker_AddTasksAssignsSequentialIDs(t *testing.T) {
	tracker := NewTracker()
	tasks := tracker.AddTasks([]string{"first", "second"})

	require.Len(t, tasks, 2)
	assert.Equal(t, 1, tasks[0].ID)
	assert.Equal(t, 2, tasks[1].ID)
	assert.Equal(t, core.TaskPending, tasks[0].Status)

	more := tracker.AddTasks([]string{"third"})
	assert.Equal(t, 3, more[0].ID)
}

func TestTracker_Lifecycle(t *testing.T) {
	tracker := NewTracker()
	tasks := tracker.AddTasks([]string{"a", "b"})

	require.NoError(t, tracker.StartTask(tasks[0].ID))
	current, ok := tracker.CurrentInProgress()
	require.True(t, ok)
	assert.Equal(t, "a", current.Description)

	require.NoError(t, tracker.CompleteTask(tasks[0].ID, "done"))
	done := tracker.Tasks()[0]
	assert.Equal(t, core.TaskCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	require.NoError(t, tracker.StartTask(tasks[1].ID))
	require.NoError(t, tracker.FailTask(tasks[1].ID, "backend down"))
	assert.True(t, tracker.AllTerminal())
}

func TestTracker_UnknownTaskID(t *testing.T) {
	tracker := NewTracker()
	assert.Error(t, tracker.StartTask(42))
	assert.Error(t, tracker.CompleteTask(42, ""))
}

func TestTracker_StrictRejectsSecondInProgress(t *testing.T) {
	tracker := NewTracker(WithStrict())
	tasks := tracker.AddTasks([]string{"a", "b"})

	require.NoError(t, tracker.StartTask(tasks[0].ID))
	assert.Error(t, tracker.StartTask(tasks[1].ID))

	// Finishing the first frees the slot.
	require.NoError(t, tracker.CompleteTask(tasks[0].ID, ""))
	assert.NoError(t, tracker.StartTask(tasks[1].ID))
}

func TestTracker_LenientAllowsOverlap(t *testing.T) {
	tracker := NewTracker()
	tasks := tracker.AddTasks([]string{"a", "b"})

	require.NoError(t, tracker.StartTask(tasks[0].ID))
	assert.NoError(t, tracker.StartTask(tasks[1].ID))
}

func TestTracker_BlockedIsNotTerminal(t *testing.T) {
	tracker := NewTracker()
	tasks := tracker.AddTasks([]string{"a"})

	require.NoError(t, tracker.BlockTask(tasks[0].ID, "waiting on data"))
	assert.False(t, tracker.AllTerminal())

	require.NoError(t, tracker.StartTask(tasks[0].ID))
	require.NoError(t, tracker.CompleteTask(tasks[0].ID, ""))
	assert.True(t, tracker.AllTerminal())
}

func TestTracker_AllTerminalEmpty(t *testing.T) {
	assert.False(t, NewTracker().AllTerminal())
}

func TestTracker_Progress(t *testing.T) {
	tracker := NewTracker()
	tasks := tracker.AddTasks([]string{"a", "b", "c"})
	require.NoError(t, tracker.StartTask(tasks[0].ID))
	require.NoError(t, tracker.CompleteTask(tasks[0].ID, ""))
	require.NoError(t, tracker.StartTask(tasks[1].ID))

	p := tracker.Progress()
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 1, p.Completed)
	assert.Equal(t, 1, p.InProgress)
	assert.Equal(t, 1, p.Pending)
	assert.InDelta(t, 33.3, p.PercentComplete, 0.4)
}

func TestTracker_Recap(t *testing.T) {
	tracker := NewTracker()
	assert.Equal(t, "", tracker.Recap())

	tasks := tracker.AddTasks([]string{"analyze data", "write report", "review"})
	require.NoError(t, tracker.StartTask(tasks[0].ID))
	require.NoError(t, tracker.CompleteTask(tasks[0].ID, ""))
	require.NoError(t, tracker.StartTask(tasks[1].ID))

	recap := tracker.Recap()
	assert.Equal(t, "## Current Objectives\n"+
		"- [ ] **write report** (in progress)\n"+
		"- [ ] review\n"+
		"- [x] ~~analyze data~~ (done)\n\n"+
		"Progress: 1/3 completed (33%)", recap)
}

func TestTracker_RecapShowsOnlyRecentCompleted(t *testing.T) {
	tracker := NewTracker()
	tasks := tracker.AddTasks([]string{"a", "b", "c", "d", "e"})
	for _, task := range tasks {
		require.NoError(t, tracker.StartTask(task.ID))
		require.NoError(t, tracker.CompleteTask(task.ID, ""))
	}

	recap := tracker.Recap()
	assert.NotContains(t, recap, "~~a~~")
	assert.NotContains(t, recap, "~~b~~")
	assert.Contains(t, recap, "~~c~~")
	assert.Contains(t, recap, "~~d~~")
	assert.Contains(t, recap, "~~e~~")
	assert.Contains(t, recap, "Progress: 5/5 completed (100%)")
}

func TestTracker_RestoreContinuesIDs(t *testing.T) {
	tracker := NewTracker()
	tracker.Restore([]core.Task{
		{ID: 1, Description: "old", Status: core.TaskCompleted},
		{ID: 2, Description: "older", Status: core.TaskFailed},
	})

	added := tracker.AddTasks([]string{"new"})
	assert.Equal(t, 3, added[0].ID)
	assert.Len(t, tracker.Tasks(), 3)
}
