package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/heart-intake-server/internal/database"
	"github.com/heart-intake-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile creates a configuration manager that reads an explicit config
// file instead of searching the default locations.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if path != "" {
		m.v.SetConfigFile(path)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/heart-intake/")
	}

	// HEART_INTAKE_DATABASE_DRIVER overrides database.driver, and so on
	v.SetEnvPrefix("HEART_INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.tls_enabled", false)

	// Database defaults
	v.SetDefault("database.driver", domain.DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "heart_intake")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.sqlite_path", defaultSQLitePath())
	v.SetDefault("database.migrations_path", "")
	v.SetDefault("database.auto_migrate", true)

	// Classifier defaults
	v.SetDefault("classifier.backend", domain.BackendFile)
	v.SetDefault("classifier.model_path", "ml_model/heart_attack_model.json")
	v.SetDefault("classifier.cache_size", 1000)
	v.SetDefault("classifier.remote.base_url", "http://localhost:8000")
	v.SetDefault("classifier.remote.timeout", "10s")
	v.SetDefault("classifier.remote.rate_limit", 10)
	v.SetDefault("classifier.remote.retry_count", 2)
	v.SetDefault("classifier.remote.failure_threshold", 5)
	v.SetDefault("classifier.remote.open_timeout", "30s")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "heart-intake-mcp-server")
	v.SetDefault("mcp.server_version", "v0.1.0")
}

// defaultSQLitePath places the standalone database under the user's home directory.
func defaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "patients.db"
	}
	return filepath.Join(homeDir, ".heart-intake", "patients.db")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetClassifierConfig returns classifier configuration
func (m *Manager) GetClassifierConfig() *domain.ClassifierConfig {
	return &m.config.Classifier
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Database.Driver {
	case domain.DriverPostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	case domain.DriverSQLite:
		if config.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", config.Database.Driver)
	}

	switch config.Classifier.Backend {
	case domain.BackendFile:
		if config.Classifier.ModelPath == "" {
			return fmt.Errorf("classifier model path is required")
		}
	case domain.BackendRemote:
		if config.Classifier.Remote.BaseURL == "" {
			return fmt.Errorf("classifier remote base URL is required")
		}
	default:
		return fmt.Errorf("unsupported classifier backend: %s", config.Classifier.Backend)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when the cache is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseURL returns the database URL in the form golang-migrate expects
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	if db.Driver == domain.DriverSQLite {
		return "sqlite://" + db.SQLitePath
	}
	return database.ConfigFromDomain(&db).ConnString()
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}
