package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/pipelinectl/internal/backend"
	"github.com/taskflow/pipelinectl/internal/cache"
)

type fakeReporter struct {
	calls     int
	resources *backend.Resources
	err       error
}

func (f *fakeReporter) GetResources(ctx context.Context) (*backend.Resources, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resources, nil
}

func TestGetCachesWithinTTL(t *testing.T) {
	r := &fakeReporter{resources: &backend.Resources{RAM: backend.MemoryPool{Total: 100}}}
	c := cache.New(50 * time.Millisecond)

	first, err := c.Get(context.Background(), r, "worker")
	require.NoError(t, err)
	second, err := c.Get(context.Background(), r, "worker")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.calls)
}

func TestGetRefetchesAfterExpiry(t *testing.T) {
	r := &fakeReporter{resources: &backend.Resources{RAM: backend.MemoryPool{Total: 100}}}
	c := cache.New(5 * time.Millisecond)

	_, err := c.Get(context.Background(), r, "worker")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = c.Get(context.Background(), r, "worker")
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)
}

func TestGetFallsBackToStaleOnRefreshError(t *testing.T) {
	r := &fakeReporter{resources: &backend.Resources{RAM: backend.MemoryPool{Total: 100}}}
	c := cache.New(5 * time.Millisecond)

	first, err := c.Get(context.Background(), r, "worker")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	r.err = assertError("unreachable")

	second, err := c.Get(context.Background(), r, "worker")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	r := &fakeReporter{resources: &backend.Resources{RAM: backend.MemoryPool{Total: 100}}}
	c := cache.New(time.Hour)

	_, err := c.Get(context.Background(), r, "worker")
	require.NoError(t, err)
	c.Invalidate("worker")
	_, err = c.Get(context.Background(), r, "worker")
	require.NoError(t, err)

	assert.Equal(t, 2, r.calls)
}

type assertError string

func (e assertError) Error() string { return string(e) }
