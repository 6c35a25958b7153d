package circuitbreaker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/pipelinectl/internal/backend/circuitbreaker"
	"github.com/taskflow/pipelinectl/internal/backend/mock"
	"github.com/taskflow/pipelinectl/internal/task"
)

func TestTripsOpenAfterFailureThreshold(t *testing.T) {
	inner := mock.New("flaky")
	inner.FailuresBeforeSuccess = 1000

	cfg := circuitbreaker.DefaultConfig()
	cfg.FailureThreshold = 2
	b := circuitbreaker.Wrap(inner, cfg)

	for i := 0; i < 2; i++ {
		_, err := b.Execute(context.Background(), &task.Task{})
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.Open, b.GetState())

	_, err := b.Execute(context.Background(), &task.Task{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.False(t, b.IsHealthy(context.Background()))
}

func TestHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	inner := mock.New("flaky")
	inner.FailuresBeforeSuccess = 1

	cfg := circuitbreaker.Config{FailureThreshold: 1, ResetTimeout: time.Millisecond, SuccessThreshold: 1}
	b := circuitbreaker.Wrap(inner, cfg)

	_, err := b.Execute(context.Background(), &task.Task{})
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.Open, b.GetState())

	time.Sleep(5 * time.Millisecond)

	_, err = b.Execute(context.Background(), &task.Task{})
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.Closed, b.GetState())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	inner := mock.New("flaky")
	inner.FailuresBeforeSuccess = 1000

	cfg := circuitbreaker.Config{FailureThreshold: 1, ResetTimeout: time.Millisecond, SuccessThreshold: 1}
	b := circuitbreaker.Wrap(inner, cfg)

	_, _ = b.Execute(context.Background(), &task.Task{})
	require.Equal(t, circuitbreaker.Open, b.GetState())

	time.Sleep(5 * time.Millisecond)

	_, err := b.Execute(context.Background(), &task.Task{})
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.Open, b.GetState())
}
