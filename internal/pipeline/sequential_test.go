package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/pipelinectl/internal/backend/mock"
	"github.com/taskflow/pipelinectl/internal/pipeline"
	"github.com/taskflow/pipelinectl/internal/task"
)

func TestSequentialExposesStepsAsOrderedArray(t *testing.T) {
	b := mock.New("worker")
	b.Handler = func(tsk *task.Task) (any, error) {
		return tsk.Payload["path"], nil
	}
	reg := newRegistryWith(b)
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk2 := &task.Task{
		Backend: "worker",
		Steps: []*task.Step{
			{Task: "noop", Input: map[string]string{"path": "/a"}},
			{Task: "noop", Input: map[string]string{"via": "{{steps.0}}"}},
		},
	}

	res, err := runner.RunSequential(context.Background(), tsk2, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "/a", res.Steps[0])
}

func TestSequentialOptionalFailureContinues(t *testing.T) {
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
			{Task: "boom", Optional: true},
			{Task: "noop"},
		},
	}

	res, err := runner.RunSequential(context.Background(), tsk, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)

	first := res.Steps[0].(map[string]any)
	assert.Equal(t, true, first["skipped"])
}

func TestSequentialRequiredFailureAborts(t *testing.T) {
	failing := mock.New("flaky")
	failing.FailuresBeforeSuccess = 1000
	reg := newRegistryWith(failing)
	runner := pipeline.New(pipeline.WithRegistry(reg))

	tsk := &task.Task{
		Backend: "flaky",
		Steps: []*task.Step{
			{Task: "noop"},
		},
	}

	_, err := runner.RunSequential(context.Background(), tsk, nil, nil)
	require.Error(t, err)
}
