package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heart-intake-server/internal/domain"
)

func TestNew(t *testing.T) {
	logger, err := New(domain.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stderr, logger.Out)
}

func TestNew_Defaults(t *testing.T) {
	logger, err := New(domain.LoggingConfig{})
	require.NoError(t, err)

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.log")

	logger, err := New(domain.LoggingConfig{Level: "info", Output: path})
	require.NoError(t, err)

	logger.WithField("patient", "Alice").Info("Patient created")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"patient":"Alice"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(domain.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
