package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigPath(t *testing.T) {
	env := map[string]string{"XDG_CONFIG_HOME": "/xdg", "APPDATA": `C:\AppData`}
	getenv := func(k string) string { return env[k] }

	path, err := DefaultConfigPath("linux", getenv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "Claude", "claude_desktop_config.json"), path)

	path, err = DefaultConfigPath("darwin", getenv)
	require.NoError(t, err)
	assert.Contains(t, path, filepath.Join("Library", "Application Support", "Claude"))

	_, err = DefaultConfigPath("windows", func(string) string { return "" })
	assert.Error(t, err)

	_, err = DefaultConfigPath("plan9", getenv)
	assert.ErrorContains(t, err, "unsupported operating system")
}

func TestLoad_Missing(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, config.MCPServers)
}

func TestRegister_PreservesOtherEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claude_desktop_config.json")
	existing := `{"theme":"dark","mcpServers":{"other":{"command":"/bin/other"}}}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	written, err := Register(Options{
		ConfigPath: path,
		BinaryPath: "/usr/local/bin/mcp-server",
		Env:        map[string]string{"HEART_INTAKE_DATABASE_DRIVER": "sqlite"},
	})
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"dark"`, string(raw["theme"]))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/bin/other", config.MCPServers["other"].Command)
	assert.Equal(t, "/usr/local/bin/mcp-server", config.MCPServers[ServerName].Command)
	assert.Equal(t, "sqlite", config.MCPServers[ServerName].Env["HEART_INTAKE_DATABASE_DRIVER"])
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}
