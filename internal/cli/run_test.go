package cli

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExecutesSingleTaskAgainstHTTPBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"echo":"hi"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "task.yaml")
	require.NoError(t, os.WriteFile(path, []byte("type: classify\nbackend: worker\n"), 0o644))

	out, err := executeCommand(rootCmd, "run", path, "--backend", "worker="+srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "completed in")
}

func TestRunRejectsUnknownBackendSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.yaml")
	require.NoError(t, os.WriteFile(path, []byte("type: classify\n"), 0o644))

	_, err := executeCommand(rootCmd, "run", path, "--backend", "no-equals-sign")
	assert.Error(t, err)
}

func TestRunRejectsMissingFile(t *testing.T) {
	_, err := executeCommand(rootCmd, "run", "does-not-exist.yaml")
	assert.Error(t, err)
}
