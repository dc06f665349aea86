// Package setup registers the MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerName is the key the MCP server is registered under.
const ServerName = "heart-intake"

// ClientConfig is the desktop client configuration file. Keys other than
// mcpServers are preserved as-is.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry describes how the client launches one MCP server.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls Register.
type Options struct {
	ConfigPath string // client config file; DefaultConfigPath when empty
	BinaryPath string // mcp-server binary; looked up on PATH when empty
	Env        map[string]string
}

// DefaultConfigPath returns the Claude Desktop config file location for goos.
func DefaultConfigPath(goos string, getenv func(string) string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	var dir string
	switch goos {
	case "darwin":
		dir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "Claude")
		} else {
			dir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		dir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
	return filepath.Join(dir, "claude_desktop_config.json"), nil
}

// Load reads the client config; a missing file yields an empty config.
func Load(path string) (*ClientConfig, error) {
	config := &ClientConfig{MCPServers: map[string]ServerEntry{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(config.extra, "mcpServers")
	}
	if config.MCPServers == nil {
		config.MCPServers = map[string]ServerEntry{}
	}
	return config, nil
}

// Save writes the client config, creating its directory.
func Save(path string, config *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(config.extra)+1)
	for k, v := range config.extra {
		out[k] = v
	}
	out["mcpServers"] = config.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the heart intake entry and returns the config path written.
func Register(opts Options) (string, error) {
	path := opts.ConfigPath
	if path == "" {
		var err error
		path, err = DefaultConfigPath(runtime.GOOS, os.Getenv)
		if err != nil {
			return "", err
		}
	}

	binary := opts.BinaryPath
	if binary == "" {
		found, err := exec.LookPath("mcp-server")
		if err != nil {
			return "", fmt.Errorf("could not find server binary: %w", err)
		}
		binary = found
	}
	binary, err := filepath.Abs(binary)
	if err != nil {
		return "", fmt.Errorf("resolving binary path: %w", err)
	}

	config, err := Load(path)
	if err != nil {
		return "", err
	}
	config.MCPServers[ServerName] = ServerEntry{
		Command: binary,
		Env:     opts.Env,
	}
	return path, Save(path, config)
}
