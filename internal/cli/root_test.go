package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llxisdsh/qsync/internal/cli"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	tc := cli.NewRootCmd("test_qsync", "", "")
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	tc.SetArgs(args)
	tc.SetOut(stdout)
	tc.SetErr(stderr)

	err := tc.Execute()
	return stdout.String(), stderr.String(), err
}

func TestMutexCmd(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "mutex", "--workers=3", "--iterations=50", "--fair", "--log_level=error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "mutex: 150 acquisitions")
}

func TestSemaphoreCmd(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "semaphore", "--permits=2", "--workers=4", "--iterations=10", "--log_level=error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "semaphore: 40 acquisitions")
}

func TestProdConsCmd(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "prodcons", "--items=100", "--capacity=2", "--log_level=error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "prodcons: 200 acquisitions")
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "mutex", "--workers=0", "--iterations=0", "--log_level=error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
}

func TestBadLogFormat(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "version", "--log_format=xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed creating log handler")
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := execute(t, "version")
	require.NoError(t, err)
	assert.Regexp(t, `\d+\.\d+\.\d+`, stdout)
	assert.Empty(t, stderr)
}
