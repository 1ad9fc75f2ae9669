package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slabctl.log")
	closeLog, err := Init(Options{Path: path, Level: "debug"})
	require.NoError(t, err)

	L.Debug("store grown", "length", 4096)
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "store grown", rec["msg"])
	assert.Equal(t, "DEBUG", rec["level"])
}

func TestInit_Disabled(t *testing.T) {
	_, err := Init(Options{})
	require.NoError(t, err)
	assert.False(t, L.Enabled(t.Context(), slog.LevelError))
}

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = parseLevel("loud")
	require.Error(t, err)
}
