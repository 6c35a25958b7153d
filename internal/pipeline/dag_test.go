package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/pipelinectl/internal/backend"
	"github.com/taskflow/pipelinectl/internal/backend/mock"
	"github.com/taskflow/pipelinectl/internal/pipeline"
	"github.com/taskflow/pipelinectl/internal/task"
)

func newRegistryWith(backends ...backend.Backend) *backend.Registry {
	r := backend.NewRegistry()
	for _, b := range backends {
		_ = r.Register(b)
	}
	return r
}

func sleepy(name string, d time.Duration) *mock.Backend {
	b := mock.New(name)
	b.Latency = d
	return b
}

func TestDAGTwoIndependentStepsRunInParallel(t *testing.T) {
	reg := newRegistryWith(sleepy("worker", 50*time.Millisecond))
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk := &task.Task{
		Steps: []*task.Step{
			{ID: "a", Task: "noop"},
			{ID: "b", Task: "noop"},
		},
	}

	start := time.Now()
	res, err := runner.RunDAG(context.Background(), tsk, nil, nil)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Less(t, elapsed, 150*time.Millisecond)

	byID := map[string]*struct{ started time.Time }{}
	for _, st := range res.StepStatus {
		byID[st.ID] = &struct{ started time.Time }{*st.StartedAt}
	}
	diff := byID["a"].started.Sub(byID["b"].started)
	if diff < 0 {
		diff = -diff
	}
	assert.Less(t, diff, 20*time.Millisecond)
	assert.Len(t, res.ParallelGroups, 1)
}

func TestDAGLinearDependency(t *testing.T) {
	reg := newRegistryWith(mock.New("worker"))
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk := &task.Task{
		Steps: []*task.Step{
			{ID: "a", Task: "noop"},
			{ID: "b", Task: "noop", DependsOn: []string{"a"}},
		},
	}

	res, err := runner.RunDAG(context.Background(), tsk, nil, nil)
	require.NoError(t, err)

	var a, b *struct {
		start, complete time.Time
	}
	for _, st := range res.StepStatus {
		if st.ID == "a" {
			a = &struct{ start, complete time.Time }{*st.StartedAt, *st.CompletedAt}
		}
		if st.ID == "b" {
			b = &struct{ start, complete time.Time }{*st.StartedAt, *st.CompletedAt}
		}
	}
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.False(t, b.start.Before(a.complete))
}

func TestDAGDiamondDependency(t *testing.T) {
	reg := newRegistryWith(mock.New("worker"))
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk := &task.Task{
		Steps: []*task.Step{
			{ID: "a", Task: "noop"},
			{ID: "b", Task: "noop", DependsOn: []string{"a"}},
			{ID: "c", Task: "noop", DependsOn: []string{"a"}},
			{ID: "d", Task: "noop", DependsOn: []string{"b", "c"}},
		},
	}

	res, err := runner.RunDAG(context.Background(), tsk, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.StepStatus, 4)

	found := false
	for _, group := range res.ParallelGroups {
		if len(group) == 2 && contains(group, "b") && contains(group, "c") {
			found = true
		}
	}
	assert.True(t, found, "expected b and c to appear together in a parallel group")
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func TestDAGForEachMapping(t *testing.T) {
	b := mock.New("doubler")
	b.Handler = func(tsk *task.Task) (any, error) {
		n := tsk.Payload["n"].(int)
		return map[string]any{"processed": n, "doubled": n * 2}, nil
	}
	reg := newRegistryWith(b)
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk := &task.Task{
		Payload: map[string]any{"nums": []any{1, 2, 3, 4, 5}},
		Steps: []*task.Step{
			{
				ID:      "process",
				Task:    "double",
				ForEach: "{{payload.nums}}",
				Input:   map[string]string{"n": "{{item}}"},
			},
		},
	}

	res, err := runner.RunDAG(context.Background(), tsk, nil, nil)
	require.NoError(t, err)

	items := res.StepResults["process"].([]any)
	require.Len(t, items, 5)
	assert.Equal(t, map[string]any{"processed": 1, "doubled": 2}, items[0])
	assert.Equal(t, map[string]any{"processed": 5, "doubled": 10}, items[4])
}

func TestDAGCircularDependencyDeadlocks(t *testing.T) {
	reg := newRegistryWith(mock.New("worker"))
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk := &task.Task{
		Steps: []*task.Step{
			{ID: "a", Task: "noop", DependsOn: []string{"b"}},
			{ID: "b", Task: "noop", DependsOn: []string{"a"}},
		},
	}

	_, err := runner.RunDAG(context.Background(), tsk, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")
}

func TestDAGOptionalMiddleFailureUnblocksDependent(t *testing.T) {
	failing := mock.New("flaky")
	failing.Handler = func(tsk *task.Task) (any, error) {
		if tsk.Type == "boom" {
			return nil, errors.New("boom") // only the optional step fails
		}
		return "ok", nil
	}
	reg := newRegistryWith(failing)
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk := &task.Task{
		Backend: "flaky",
		Steps: []*task.Step{
			{ID: "first", Task: "noop"},
			{ID: "optional", Task: "boom", DependsOn: []string{"first"}, Optional: true},
			{ID: "last", Task: "noop", DependsOn: []string{"optional"}},
		},
	}

	res, err := runner.RunDAG(context.Background(), tsk, nil, nil)
	require.NoError(t, err)

	optResult := res.StepResults["optional"].(map[string]any)
	assert.Equal(t, true, optResult["skipped"])

	var lastStatus string
	for _, st := range res.StepStatus {
		if st.ID == "last" {
			lastStatus = string(st.Status)
		}
	}
	assert.Equal(t, "completed", lastStatus)
}

func TestDAGRetryOnFlakyStep(t *testing.T) {
	b := mock.New("flaky")
	b.FailuresBeforeSuccess = 2
	reg := newRegistryWith(b)
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk := &task.Task{
		Backend: "flaky",
		Steps: []*task.Step{
			{ID: "a", Task: "noop", Retry: &task.RetryPolicy{Attempts: 3, Backoff: "fixed", DelayMS: 10}},
		},
	}

	res, err := runner.RunDAG(context.Background(), tsk, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, execStatusCompleted, string(res.StepStatus[0].Status))
	assert.Equal(t, 3, res.StepStatus[0].RetryAttempt)
}

const execStatusCompleted = "completed"

func TestDAGTimeoutEnforcement(t *testing.T) {
	b := sleepy("slow", 100*time.Millisecond)
	reg := newRegistryWith(b)
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk := &task.Task{
		Backend: "slow",
		Steps: []*task.Step{
			{ID: "a", Task: "noop", TimeoutSeconds: 0.01},
		},
	}

	_, err := runner.RunDAG(context.Background(), tsk, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"a" timed out after 10ms`)
}

func TestDAGForEachEmptyArrayCompletesImmediately(t *testing.T) {
	reg := newRegistryWith(mock.New("worker"))
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk := &task.Task{
		Payload: map[string]any{"items": []any{}},
		Steps: []*task.Step{
			{ID: "a", Task: "noop", ForEach: "{{payload.items}}"},
		},
	}

	res, err := runner.RunDAG(context.Background(), tsk, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{}, res.StepResults["a"])
	assert.Equal(t, execStatusCompleted, string(res.StepStatus[0].Status))
}
