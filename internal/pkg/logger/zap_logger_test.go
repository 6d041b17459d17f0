package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.log")
	l := NewIsolatedLogger(path)

	l.Debug("Hub", "below file level", nil)
	l.Info("Hub", "Client registered", map[string]interface{}{"client_id": "c1"})
	l.Error("Committer", "Failed to persist document", map[string]interface{}{"error": "boom"})
	require.NoError(t, l.Sync())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "Hub", lines[0]["module"])
	assert.Equal(t, "Client registered", lines[0]["message"])
	assert.Equal(t, map[string]interface{}{"client_id": "c1"}, lines[0]["details"])

	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error_ref"])
}

func TestNopLogger(t *testing.T) {
	var l ILogger = NewNopLogger()
	assert.NotPanics(t, func() {
		l.Info("Hub", "ignored", nil)
		l.Error("Hub", "ignored", map[string]interface{}{"error": "x"})
	})
}
