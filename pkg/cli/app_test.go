package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mchmarny/cipherbench/pkg/data"
	"github.com/mchmarny/cipherbench/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dbPath     string
	configPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		dbPath:     filepath.Join(dir, "test.db"),
		configPath: filepath.Join(dir, "config.yaml"),
	}
}

func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	app.Reader = strings.NewReader(stdin)

	full := append([]string{appName, "--db", e.dbPath, "--config", e.configPath}, args...)
	err := app.Run(context.Background(), full)
	return out.String(), err
}

func TestEncodeDecode(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "encode", "--seed", "7", "Hello, World!")
	require.NoError(t, err)
	ciphertext := strings.TrimSuffix(out, "\n")
	assert.NotEmpty(t, ciphertext)

	again, err := env.run(t, "", "encode", "--seed", "7", "Hello, World!")
	require.NoError(t, err)
	assert.Equal(t, out, again)

	out, err = env.run(t, "", "decode", ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!\n", out)
}

func TestEncode_JSON(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "--format", "json", "encode", "--seed", "1", "ab")
	require.NoError(t, err)

	var r codecResult
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "ab", r.Input)
	assert.Len(t, []rune(r.Output), 4)
}

func TestEncodeDecode_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "encode")
	assert.ErrorIs(t, err, errTextRequired)

	_, err = env.run(t, "", "decode")
	assert.ErrorIs(t, err, errTextRequired)

	_, err = env.run(t, "", "decode", "x")
	assert.Error(t, err)
}

func TestRun_Table(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "run", "--seed", "42", "--no-save", "-s", "Hello, World!", "-s", "Short string")
	require.NoError(t, err)
	assert.Contains(t, out, "Test No.")
	assert.Contains(t, out, "Hello, World!")
	assert.Contains(t, out, "Average score:")

	out, err = env.run(t, "", "--format", "json", "history")
	require.NoError(t, err)
	var runs []*data.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	assert.Empty(t, runs)
}

func TestRun_SaveShowDelete(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "--format", "json", "run", "--seed", "42", "-s", "Hello, World!", "-s", "abc")
	require.NoError(t, err)

	var run data.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, uint64(42), run.Seed)
	require.Len(t, run.Results, 2)
	assert.Equal(t, score.Scored, run.Results[0].Outcome)
	assert.True(t, run.Results[0].Success)

	out, err = env.run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, run.ID[:shortIDLength])

	out, err = env.run(t, "", "show", run.ID[:shortIDLength])
	require.NoError(t, err)
	assert.Contains(t, out, run.ID)
	assert.Contains(t, out, "Average score:")

	out, err = env.run(t, "", "--format", "yaml", "show", run.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "seed: 42")

	out, err = env.run(t, "", "delete", run.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted run")

	_, err = env.run(t, "", "show", run.ID)
	assert.ErrorIs(t, err, data.ErrRunNotFound)

	_, err = env.run(t, "", "show")
	assert.ErrorIs(t, err, errRunIDRequired)
}

func TestRun_Disqualified(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "--format", "json", "run", "--no-save", "--multiplier", "1", "-s", "Hello, World!")
	require.NoError(t, err)

	var run data.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	require.Len(t, run.Results, 1)
	assert.Equal(t, score.Disqualified, run.Results[0].Outcome)
	assert.Equal(t, 0.0, run.Results[0].Score)
}

func TestRun_InvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "run", "--concurrency", "0", "-s", "abc")
	assert.Error(t, err)
}

func TestState(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "run", "--seed", "1", "-s", "abc")
	require.NoError(t, err)

	out, err := env.run(t, "", "state")
	require.NoError(t, err)

	var state map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, int64(1), state["run"])
	assert.Equal(t, int64(1), state["result"])
	assert.Equal(t, int64(len(score.MetricNames)), state["metric"])
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, env.configPath+"\n", out)

	out, err = env.run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "max_length_multiplier: 2")

	_, err = env.run(t, "", "config", "init")
	require.NoError(t, err)
	_, err = os.Stat(env.configPath)
	require.NoError(t, err)

	_, err = env.run(t, "", "config", "init")
	assert.Error(t, err)

	_, err = env.run(t, "", "config", "init", "--force")
	assert.NoError(t, err)
}

func TestReset(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "run", "--seed", "1", "-s", "abc")
	require.NoError(t, err)

	out, err := env.run(t, "n\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted.")

	out, err = env.run(t, "y\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Reset complete.")

	out, err = env.run(t, "", "--format", "json", "history")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "--format", "csv", "state")
	assert.Error(t, err)
}
