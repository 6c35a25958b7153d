package httpbackend_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/pipelinectl/internal/backend/httpbackend"
	"github.com/taskflow/pipelinectl/internal/task"
)

func TestExecutePostsTaskAndDecodesJSONResponse(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var tsk task.Task
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tsk))
		json.NewEncoder(w).Encode(map[string]any{"echoedType": tsk.Type})
	}))
	defer srv.Close()

	b := httpbackend.New("remote", srv.URL, time.Second).WithAuthHeader("Bearer token")

	result, err := b.Execute(t.Context(), &task.Task{Type: "classify"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer token", gotAuth)
	assert.Equal(t, map[string]any{"echoedType": "classify"}, result)
}

func TestExecuteNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	b := httpbackend.New("remote", srv.URL, time.Second)
	_, err := b.Execute(t.Context(), &task.Task{Type: "classify"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestIsHealthyUsesDedicatedEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := httpbackend.New("remote", srv.URL, time.Second).WithHealthURL(srv.URL + "/healthz")
	assert.False(t, b.IsHealthy(t.Context()))
}

func TestIsHealthyFollowsLastRequestOutcomeWithoutHealthURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := httpbackend.New("remote", srv.URL, time.Second)
	assert.True(t, b.IsHealthy(t.Context()))
	_, _ = b.Execute(t.Context(), &task.Task{Type: "x"})
	assert.False(t, b.IsHealthy(t.Context()))
}
