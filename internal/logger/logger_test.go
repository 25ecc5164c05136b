package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WithValidConfig(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid json config stdout",
			config: Config{Level: "debug", Format: "json", Output: "stdout"},
		},
		{
			name:   "valid text config stderr",
			config: Config{Level: "info", Format: "text", Output: "stderr"},
		},
		{
			name:   "valid line config file",
			config: Config{Level: "warn", Format: "line", Output: filepath.Join(tmpDir, "nested", "agent.log")},
		},
		{
			name:    "invalid level",
			config:  Config{Level: "invalid", Format: "json", Output: "stdout"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  Config{Level: "debug", Format: "xml", Output: "stdout"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, log)
			assert.NoError(t, log.Close())
		})
	}
}

func TestLogger_FileOutputAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")

	for i := 0; i < 2; i++ {
		log, err := New(Config{Level: "info", Format: "line", Output: path})
		require.NoError(t, err)
		log.Info("decision")
		require.NoError(t, log.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "decision"))
}

func TestLogger_LineFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "info", "line")
	require.NoError(t, err)

	log.Info("alice is ready to claim!", Field{Key: "account", Value: "alice"})

	line := buf.String()
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] - alice is ready to claim! account=alice\n$`, line)
}

func TestLogger_LineFormatLevelsAndQuoting(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "debug", "line")
	require.NoError(t, err)

	log.Error("claim failed", errors.New("missing linkauth"))
	log.With(Field{Key: "job", Value: "WAX-GBM/alice"}).Warn("slow endpoint")

	out := buf.String()
	assert.Contains(t, out, `ERROR claim failed error="missing linkauth"`)
	assert.Contains(t, out, "WARN slow endpoint job=WAX-GBM/alice")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "warn", "line")
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "info", "json")
	require.NoError(t, err)

	log.InfoCtx(context.Background(), "armed", Field{Key: "job", Value: "WAX-GBM/alice"})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "armed", record["msg"])
	assert.Equal(t, "WAX-GBM/alice", record["job"])
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "debug", "text")
	require.NoError(t, err)

	cl := NewCronLogger(log)
	cl.Info("schedule", "entry", 3)
	cl.Error(errors.New("boom"), "panic", "stack", "trace")

	out := buf.String()
	assert.Contains(t, out, "cron: schedule")
	assert.Contains(t, out, "entry=3")
	assert.Contains(t, out, "error=boom")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/x/y.log")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y.log"), got)

	got, err = ExpandHome("/var/log/../log/a.log")
	require.NoError(t, err)
	assert.Equal(t, "/var/log/a.log", got)
}
