package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heart-intake-server/internal/classifier"
	"github.com/heart-intake-server/internal/setup"
)

func setupEnv(t *testing.T) {
	t.Helper()

	modelPath, err := filepath.Abs("../../ml_model/heart_attack_model.json")
	require.NoError(t, err)

	t.Chdir(t.TempDir())
	t.Setenv("HEART_INTAKE_DATABASE_DRIVER", "sqlite")
	t.Setenv("HEART_INTAKE_DATABASE_SQLITE_PATH", filepath.Join(t.TempDir(), "fresh", "patients.db"))
	t.Setenv("HEART_INTAKE_CLASSIFIER_MODEL_PATH", modelPath)
	t.Setenv("HEART_INTAKE_LOGGING_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEvaluateCommand(t *testing.T) {
	dataPath, err := filepath.Abs("../../internal/classifier/testdata/heart_sample.csv")
	require.NoError(t, err)
	setupEnv(t)

	out, err := run(t, "evaluate", "--data", dataPath)
	require.NoError(t, err)

	var metrics classifier.Metrics
	require.NoError(t, json.Unmarshal([]byte(out), &metrics))
	assert.Equal(t, 6, metrics.Samples)
	assert.GreaterOrEqual(t, metrics.Accuracy, 0.0)
	assert.LessOrEqual(t, metrics.Accuracy, 1.0)
}

func TestEvaluateCommand_RequiresData(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "evaluate")
	assert.ErrorContains(t, err, "data")
}

func TestMigrateCommands_SQLite(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "migrate", "up")
	require.NoError(t, err)

	out, err := run(t, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dirty: false")

	_, err = run(t, "migrate", "down")
	require.NoError(t, err)
}

func TestRegisterCommand(t *testing.T) {
	clientConfig := filepath.Join(t.TempDir(), "claude_desktop_config.json")

	out, err := run(t, "mcp-register", "--client-config", clientConfig, "--binary", "/opt/heart/mcp-server",
		"--env", "HEART_INTAKE_DATABASE_DRIVER=sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, clientConfig)

	config, err := setup.Load(clientConfig)
	require.NoError(t, err)
	assert.Equal(t, "/opt/heart/mcp-server", config.MCPServers[setup.ServerName].Command)
}
