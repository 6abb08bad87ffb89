package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, Level(0))
	assert.Equal(t, zapcore.WarnLevel, Level(-1))
	assert.Equal(t, zapcore.InfoLevel, Level(1))
	assert.Equal(t, zapcore.DebugLevel, Level(2))
	assert.Equal(t, zapcore.DebugLevel, Level(5))
}

func TestNewJSONRespectsVerbosity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	log, err := New(Config{Verbosity: 1, OutputPaths: []string{path}})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("Overall counts", zap.Int("files", 3))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Overall counts", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, float64(3), entry["files"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	log, err := New(Config{Verbosity: 0, Console: true, OutputPaths: []string{path}})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("Total reads: 10")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total reads: 10")
	assert.NotContains(t, string(data), "hidden")
}

func TestMustFallsBackToNop(t *testing.T) {
	log := Must(Config{OutputPaths: []string{filepath.Join(t.TempDir(), "missing", "dir", "log")}})
	require.NotNil(t, log)
	log.Warn("dropped")
}
