package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.SetLevel("info")
	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)
	l.Error("shown %d", 3)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var line struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &line))
	assert.Equal(t, "info", line.Level)
	assert.Equal(t, "shown 2", line.Message)
}

func TestLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.SetEnabled(false)
	l.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestLoggerNamedSharesState(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	child := l.Named("arith")
	l.SetLevel("debug")
	child.Debug("adding %d and %d", 2, 3)
	assert.Contains(t, buf.String(), `"logger":"arith"`)
	assert.Contains(t, buf.String(), "adding 2 and 3")
}

func TestOpenWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, closer, err := Open(dir, "weather", "info")
	require.NoError(t, err)
	defer closer.Close() //nolint:errcheck
	l.Info("hello")
	assert.FileExists(t, dir+"/weather.log")
}
