package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInitCreatesRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := runCommand(t, "init", dir, "--use-file-store", "--path-archive=")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ".outpack", "config.json"))
	assert.NoError(t, err)
}

func TestLocationAddListRemove(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	_, err := runCommand(t, "init", dir, "--use-file-store", "--path-archive=")
	require.NoError(t, err)
	_, err = runCommand(t, "init", other, "--use-file-store", "--path-archive=")
	require.NoError(t, err)

	_, err = runCommand(t, "location", "add", "--root", dir, "--type=path", "--arg=path="+other, "upstream")
	require.NoError(t, err)

	out, err := runCommand(t, "location", "list", "--root", dir)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "upstream"))
	assert.True(t, strings.Contains(out, "local"))

	_, err = runCommand(t, "location", "remove", "--root", dir, "upstream")
	require.NoError(t, err)

	out, err = runCommand(t, "location", "list", "--root", dir)
	require.NoError(t, err)
	assert.False(t, strings.Contains(out, "upstream"))
}

func TestSearchLatestFailsOnEmptyRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := runCommand(t, "init", dir, "--use-file-store", "--path-archive=")
	require.NoError(t, err)

	_, err = runCommand(t, "search", "--root", dir, "latest")
	require.Error(t, err)
}

func TestRunIsNotImplemented(t *testing.T) {
	_, err := runCommand(t, "run", "some-report")
	require.Error(t, err)
}

func TestRunRejectsDuplicateParameterKeys(t *testing.T) {
	_, err := runCommand(t, "run", "some-report", "-p", "a=1", "-n", "a=2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate parameter key")
}

func TestRunRejectsMalformedParameter(t *testing.T) {
	_, err := runCommand(t, "run", "some-report", "-b", "flag")
	require.Error(t, err)
}
