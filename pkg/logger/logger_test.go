package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dustin/coursemate-backend/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{logger: zerolog.New(&buf).Level(zerolog.WarnLevel)}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	logger, err := NewLogger(&config.LoggingConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "test-service",
	})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_InvalidSettings(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr string
	}{
		{"bad level", &config.LoggingConfig{Level: "loud", Format: "console"}, "invalid log level"},
		{"bad format", &config.LoggingConfig{Level: "info", Format: "xml"}, "invalid log format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := NewLogger(tc.cfg)
			assert.Error(t, err)
			assert.Nil(t, logger)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewLogger_FileLogging(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewLogger(&config.LoggingConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "test-service",
		Dir:         logDir,
	})
	require.NoError(t, err)

	logger.Info("test log message")

	files, err := filepath.Glob(filepath.Join(logDir, "test-service-*.log"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "No log files found")

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "test log message")
	assert.Contains(t, string(content), `"service":"test-service"`)
	assert.Contains(t, string(content), `"level":"info"`)
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{logger: zerolog.New(&buf).Level(zerolog.InfoLevel)}

	logger.WithComponent("search-matcher").WithRequestID("req-42").Info("component message")

	output := buf.String()
	assert.Contains(t, output, "component message")
	assert.Contains(t, output, `"component":"search-matcher"`)
	assert.Contains(t, output, `"request_id":"req-42"`)
}

func TestLogger_WithRequestID_Empty(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{logger: zerolog.New(&buf)}

	logger.WithRequestID("").Info("no id")

	assert.NotContains(t, buf.String(), "request_id")
}

func TestNewNop(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop().WithComponent("x").Error("dropped")
	})
}
