package cli_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskgraph/internal/cli"
)

func writeGraphFile(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestBuildInvocationRequiresAbsoluteWorkDir(t *testing.T) {
	_, err := cli.BuildInvocation("relative/path", "graph.json", "concurrent", "")
	require.Error(t, err)
}

func TestBuildInvocationRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	_, err := cli.BuildInvocation(dir, "graph.json", "parallel-ish", "")
	require.Error(t, err)
}

func TestExecuteRunsPrecedenceChainAndReportsResults(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeGraphFile(t, dir, `{
		"units": [
			{"id": "a", "callable": "fibonacci", "kwargs": {"n": 5}},
			{"id": "b", "callable": "echo", "args": [{"$ref": "a"}]}
		],
		"precedence": [["a", "b"]]
	}`)

	inv, err := cli.BuildInvocation(dir, graphPath, "concurrent", "")
	require.NoError(t, err)

	result, err := cli.Execute(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, cli.ExitSuccess, result.ExitCode)
	assert.Equal(t, []int{0, 1, 1, 2, 3}, result.Results["b"])
	assert.Empty(t, result.Errors)
}

func TestExecuteReportsUnitFailure(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeGraphFile(t, dir, `{
		"units": [
			{"id": "a", "callable": "fail", "kwargs": {"message": "boom"}}
		]
	}`)

	inv, err := cli.BuildInvocation(dir, graphPath, "concurrent", "")
	require.NoError(t, err)

	result, err := cli.Execute(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, cli.ExitGraphFailure, result.ExitCode)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "boom")
}

func TestExecuteWritesTraceFile(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeGraphFile(t, dir, `{
		"units": [{"id": "a", "callable": "echo", "args": ["hi"]}]
	}`)
	tracePath := "trace.json"

	inv, err := cli.BuildInvocation(dir, graphPath, "concurrent", tracePath)
	require.NoError(t, err)

	_, err = cli.Execute(context.Background(), inv)
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, tracePath))
	require.NoError(t, err)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(b, &events))
	assert.NotEmpty(t, events)
}

func TestLoadGraphFromFileRejectsUnknownCallable(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeGraphFile(t, dir, `{"units": [{"id": "a", "callable": "nope"}]}`)

	_, err := cli.LoadGraphFromFile(graphPath, cli.DefaultRegistry())
	require.Error(t, err)
}

func TestLoadGraphFromFileRejectsTrailingData(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeGraphFile(t, dir, `{"units": [{"id": "a", "callable": "echo"}]}{}`)

	_, err := cli.LoadGraphFromFile(graphPath, cli.DefaultRegistry())
	require.Error(t, err)
}
