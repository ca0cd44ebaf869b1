package logger

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

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	SetFormat(FormatText)
	SetLevel("warn")
	defer func() {
		SetLevel("INFO")
		SetWriter(os.Stdout)
	}()

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	SetFormat(FormatJSON)
	SetLevel("DEBUG")
	defer func() {
		SetFormat(FormatText)
		SetLevel("INFO")
		SetWriter(os.Stdout)
	}()

	Debug("song %s stored", "abc")

	var entry map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "song abc stored", entry["msg"])
	assert.NotEmpty(t, entry["time"])
}

func TestSetOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunecache.log")
	require.NoError(t, SetOutput(path))
	defer func() { _ = SetOutput("stdout") }()

	Error("disk %s", "full")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[ERROR] disk full")
}
