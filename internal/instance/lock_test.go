package instance

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/autoclaim/internal/logger"
)

func newManager(t *testing.T) *Manager {
	return NewManager(t.TempDir(), "simpleos", logger.Nop())
}

func TestRoleFromArgs(t *testing.T) {
	assert.Equal(t, RoleInteractive, RoleFromArgs(nil))
	assert.Equal(t, RoleInteractive, RoleFromArgs([]string{"--config", "x"}))
	assert.Equal(t, RoleAutostart, RoleFromArgs([]string{"--config", "x", "--autostart"}))
}

func TestMarkerPaths(t *testing.T) {
	m := NewManager("/ws", "simpleos", logger.Nop())
	assert.Equal(t, "/ws/simpleos-lockLFile", m.MarkerPath(RoleInteractive))
	assert.Equal(t, "/ws/simpleos-lockALFile", m.MarkerPath(RoleAutostart))
}

func TestAcquire_WritesMarker(t *testing.T) {
	m := newManager(t)

	h, err := m.AcquireRoleLock(RoleAutostart)
	require.NoError(t, err)

	data, err := os.ReadFile(m.MarkerPath(RoleAutostart))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	held, pid := m.Inspect(RoleAutostart)
	assert.True(t, held)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, h.Release())
	assert.NoFileExists(t, m.MarkerPath(RoleAutostart))
	held, _ = m.Inspect(RoleAutostart)
	assert.False(t, held)

	assert.NoError(t, h.Release(), "release is idempotent")
}

func TestAcquire_SameRoleIsExclusive(t *testing.T) {
	m := newManager(t)
	first, err := m.AcquireRoleLock(RoleAutostart)
	require.NoError(t, err)
	defer first.Release()

	before, err := os.Stat(m.MarkerPath(RoleAutostart))
	require.NoError(t, err)

	second, err := m.AcquireRoleLock(RoleAutostart)
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrAlreadyHeld)
	var held *HeldError
	require.True(t, errors.As(err, &held))
	assert.Equal(t, os.Getpid(), held.PID)

	after, err := os.Stat(m.MarkerPath(RoleAutostart))
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "marker must not be rewritten")
}

func TestAcquire_RolesCoexist(t *testing.T) {
	m := newManager(t)

	agent, err := m.AcquireRoleLock(RoleAutostart)
	require.NoError(t, err)
	defer agent.Release()

	window, err := m.AcquireRoleLock(RoleInteractive)
	require.NoError(t, err)
	defer window.Release()

	assert.FileExists(t, m.MarkerPath(RoleAutostart))
	assert.FileExists(t, m.MarkerPath(RoleInteractive))
}

func TestAcquire_ReconcilesStaleMarker(t *testing.T) {
	m := newManager(t)
	marker := m.MarkerPath(RoleAutostart)
	require.NoError(t, os.WriteFile(marker, []byte("999999"), 0644))

	held, pid := m.Inspect(RoleAutostart)
	assert.False(t, held, "marker without lock is not liveness")
	assert.Equal(t, 999999, pid)

	h, err := m.AcquireRoleLock(RoleAutostart)
	require.NoError(t, err)
	defer h.Release()

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquire_GarbageMarker(t *testing.T) {
	m := newManager(t)
	require.NoError(t, os.WriteFile(m.MarkerPath(RoleInteractive), []byte("not a pid"), 0644))

	h, err := m.AcquireRoleLock(RoleInteractive)
	require.NoError(t, err)
	require.NoError(t, h.Release())
}

func TestAcquire_UncreatableDirectory(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	m := NewManager(filepath.Join(blocker, "ws"), "simpleos", logger.Nop())
	_, err := m.AcquireRoleLock(RoleAutostart)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyHeld)
}
