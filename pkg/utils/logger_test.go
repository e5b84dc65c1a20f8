package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel("trace"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel(" WARN "))
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("chatty"))
	assert.Equal(t, LogFormatJSON, ParseLogFormat("JSON"))
	assert.Equal(t, LogFormatText, ParseLogFormat(""))
}

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: LogFormatJSON, Output: &buf})
	require.NoError(t, err)

	l.Info("hidden %d", 1)
	l.WithField("source", "a.apks").Warn("dropped %s", "split")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "dropped split", rec["msg"])
	assert.Equal(t, "a.apks", rec["source"])
	assert.Equal(t, "warning", rec["level"])
}

func TestLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scope.log")
	var buf bytes.Buffer
	l, err := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf, EnableFile: true, FilePath: path})
	require.NoError(t, err)

	l.Info("to both")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}
