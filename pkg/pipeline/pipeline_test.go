package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/pipelinectl/internal/backend"
	"github.com/taskflow/pipelinectl/internal/backend/mock"
	"github.com/taskflow/pipelinectl/internal/task"
	"github.com/taskflow/pipelinectl/pkg/pipeline"
)

func TestRunDispatchesSingleTask(t *testing.T) {
	reg := backend.NewRegistry()
	require.NoError(t, reg.Register(mock.New("worker")))

	runner := pipeline.New(reg)
	result, err := runner.Run(context.Background(), &task.Task{Type: "classify", Backend: "worker"}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, result.Pipeline)
	assert.NotNil(t, result.Single)
}

func TestRegistryIsAccessibleAfterConstruction(t *testing.T) {
	reg := backend.NewRegistry()
	runner := pipeline.New(reg)
	assert.Same(t, reg, runner.Registry())
}
