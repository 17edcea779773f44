package logger

import (
	"os"
	"path/filepath"
	"testing"

	"go-marugujarat-scraper/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scraper.log")

	log, closer, err := New(config.LoggingConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log.WithField("page", 2).Info("fetched")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"page":2`)
	assert.Contains(t, string(data), `"msg":"fetched"`)
}

func TestNew_NoFile(t *testing.T) {
	log, closer, err := New(config.LoggingConfig{Level: "warning", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.NoError(t, closer.Close())
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
