package server

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/pipelinectl/internal/task"
)

func newTestManager(t *testing.T, maxConcurrency int) *ExecutionManager {
	t.Helper()
	return NewExecutionManagerWithRegistry(maxConcurrency, prometheus.NewRegistry())
}

func TestExecutionManagerCanStartRespectsMaxConcurrency(t *testing.T) {
	m := newTestManager(t, 1)
	assert.True(t, m.CanStart())

	m.Start(m.NextRunID(), &task.Task{Type: "classify"})
	assert.False(t, m.CanStart())
}

func TestExecutionManagerStartTracksExecution(t *testing.T) {
	m := newTestManager(t, 5)
	runID := m.NextRunID()

	exec := m.Start(runID, &task.Task{Type: "classify"})
	assert.Equal(t, runID, exec.RunID)
	assert.Equal(t, "classify", exec.TaskType)
	assert.Equal(t, "running", exec.Status)
	assert.Nil(t, exec.End)

	got, ok := m.Get(runID)
	require.True(t, ok)
	assert.Same(t, exec, got)
}

func TestExecutionManagerFinishRecordsOutcome(t *testing.T) {
	m := newTestManager(t, 5)
	runID := m.NextRunID()
	m.Start(runID, &task.Task{Type: "classify"})

	m.Finish(runID, map[string]any{"ok": true}, nil)

	exec, ok := m.Get(runID)
	require.True(t, ok)
	assert.Equal(t, "completed", exec.Status)
	require.NotNil(t, exec.End)
	assert.True(t, m.CanStart())
}

func TestExecutionManagerFinishRecordsError(t *testing.T) {
	m := newTestManager(t, 5)
	runID := m.NextRunID()
	m.Start(runID, &task.Task{Type: "classify"})

	m.Finish(runID, nil, assertError("boom"))

	exec, ok := m.Get(runID)
	require.True(t, ok)
	assert.Equal(t, "failed", exec.Status)
	assert.Equal(t, "boom", exec.Error)
}

func TestExecutionManagerNextRunIDIsUnique(t *testing.T) {
	m := newTestManager(t, 5)
	a := m.NextRunID()
	b := m.NextRunID()
	assert.NotEqual(t, a, b)
}

type assertError string

func (e assertError) Error() string { return string(e) }
