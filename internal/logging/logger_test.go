package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmubeta/outlook-mcp-server/internal/model"
)

func TestSetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected log.Level
	}{
		{"debug", "debug", log.DebugLevel},
		{"verbose mixed case", "Verbose", log.DebugLevel},
		{"info", "INFO", log.InfoLevel},
		{"warn", "warn", log.WarnLevel},
		{"warning", "Warning", log.WarnLevel},
		{"error", "error", log.ErrorLevel},
		{"quiet", "quiet", log.FatalLevel},
		{"silent", "SILENT", log.FatalLevel},
		{"padded", "  debug ", log.DebugLevel},
		{"unknown", "foobar", log.InfoLevel},
		{"empty", "", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log.SetLevel(log.PanicLevel)
			SetLogLevel(tt.input)
			assert.Equal(t, tt.expected, log.GetLevel())
		})
	}
}

func TestConfigureLogOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	closer, err := ConfigureLogOutput(model.LogConfig{Level: "info", File: path})
	require.NoError(t, err)

	Component("test").Info("hello from test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
	assert.Contains(t, string(data), "component=test")
}

func TestConfigureLogOutputToStderr(t *testing.T) {
	closer, err := ConfigureLogOutput(model.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.Equal(t, log.WarnLevel, log.GetLevel())
}
