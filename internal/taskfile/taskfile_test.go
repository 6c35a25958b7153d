package taskfile_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/pipelinectl/internal/taskfile"
)

const sample = `
type: classify
backend: worker
payload:
  text: hello
steps:
  - id: a
    task: normalize
  - id: b
    task: classify
    dependsOn: [a]
`

func TestParseBytesDecodesTask(t *testing.T) {
	p := taskfile.NewYAMLParser()
	tsk, err := p.ParseBytes([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "classify", tsk.Type)
	require.Len(t, tsk.Steps, 2)
	assert.Equal(t, "b", tsk.Steps[1].ID)
}

func TestParseBytesRequiresType(t *testing.T) {
	p := taskfile.NewYAMLParser()
	_, err := p.ParseBytes([]byte("backend: worker\n"))
	require.Error(t, err)
}

func TestParseFileRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	p := taskfile.NewYAMLParser()
	_, err := p.ParseFile(path)
	require.Error(t, err)
}

func TestParseFileReadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	p := taskfile.NewYAMLParser()
	tsk, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "classify", tsk.Type)
}

func TestParseReaderDecodesTask(t *testing.T) {
	p := taskfile.NewYAMLParser()
	tsk, err := p.ParseReader(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, "worker", tsk.Backend)
}
