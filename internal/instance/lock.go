// Package instance keeps at most one process per role alive on a machine.
//
// Each role owns two files in the workspace: a lock file guarded by a
// non-blocking exclusive flock, which the kernel releases when the process
// dies, and a marker file holding the owner's pid, which the wallet UI and
// status tooling read. A marker whose lock is free was left behind by a
// process that died uncleanly and is reconciled on the next acquire.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/logger"
)

// Role is the kind of process holding a lock.
type Role int

const (
	RoleInteractive Role = iota
	RoleAutostart
)

func (r Role) String() string {
	if r == RoleAutostart {
		return "autostart"
	}
	return "interactive"
}

// RoleFromArgs returns RoleAutostart when args contain the autostart flag.
func RoleFromArgs(args []string) Role {
	for _, a := range args {
		if a == constants.AutostartFlag {
			return RoleAutostart
		}
	}
	return RoleInteractive
}

// ErrAlreadyHeld is returned when another live process holds the role.
var ErrAlreadyHeld = errors.New("role lock already held")

// HeldError carries the holder's pid as read from its marker.
type HeldError struct {
	Role Role
	PID  int
}

func (e *HeldError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("%s role held by pid %d", e.Role, e.PID)
	}
	return fmt.Sprintf("%s role held by another process", e.Role)
}

func (e *HeldError) Unwrap() error {
	return ErrAlreadyHeld
}

// Manager hands out role locks for one workspace and product.
type Manager struct {
	dir     string
	product string
	logger  *logger.Logger
}

// NewManager creates a Manager.
func NewManager(dir, product string, log *logger.Logger) *Manager {
	if product == "" {
		product = constants.DefaultProduct
	}
	return &Manager{dir: dir, product: product, logger: log}
}

// MarkerPath returns the role's marker file path.
func (m *Manager) MarkerPath(role Role) string {
	suffix := constants.InteractiveMarkerSuffix
	if role == RoleAutostart {
		suffix = constants.AutostartMarkerSuffix
	}
	return filepath.Join(m.dir, m.product+"-"+suffix)
}

func (m *Manager) lockPath(role Role) string {
	return filepath.Join(m.dir, m.product+"-"+role.String()+".lock")
}

// AcquireRoleLock takes the role's lock and writes its marker. When another
// process holds the role it returns a *HeldError wrapping ErrAlreadyHeld
// and leaves the marker alone.
func (m *Manager) AcquireRoleLock(role Role) (*Handle, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", m.dir, err)
	}

	file, err := tryLock(m.lockPath(role))
	if err != nil {
		if errors.Is(err, ErrAlreadyHeld) {
			pid, _ := readPID(m.MarkerPath(role))
			return nil, &HeldError{Role: role, PID: pid}
		}
		return nil, err
	}

	marker := m.MarkerPath(role)
	if pid, err := readPID(marker); err == nil || !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("removing stale role marker",
			logger.Field{Key: "role", Value: role.String()},
			logger.Field{Key: "marker", Value: marker},
			logger.Field{Key: "pid", Value: pid},
			logger.Field{Key: "pid_alive", Value: isRunning(pid)})
		if err := os.Remove(marker); err != nil && !errors.Is(err, os.ErrNotExist) {
			unlock(file)
			return nil, fmt.Errorf("failed to remove stale marker %s: %w", marker, err)
		}
	}

	if err := os.WriteFile(marker, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		unlock(file)
		return nil, fmt.Errorf("failed to write marker %s: %w", marker, err)
	}

	m.logger.Debug("role lock acquired",
		logger.Field{Key: "role", Value: role.String()},
		logger.Field{Key: "pid", Value: os.Getpid()})
	return &Handle{role: role, file: file, marker: marker, logger: m.logger}, nil
}

// Inspect reports whether a process currently holds role, and the pid in its
// marker when one is readable.
func (m *Manager) Inspect(role Role) (held bool, pid int) {
	pid, _ = readPID(m.MarkerPath(role))

	file, err := tryLock(m.lockPath(role))
	if err != nil {
		return errors.Is(err, ErrAlreadyHeld), pid
	}
	unlock(file)
	return false, pid
}

// Handle is a held role lock.
type Handle struct {
	role   Role
	file   *os.File
	marker string
	logger *logger.Logger
	once   sync.Once
	err    error
}

// Role returns the held role.
func (h *Handle) Role() Role {
	return h.role
}

// Release deletes the marker and drops the lock. It is safe to call more
// than once.
func (h *Handle) Release() error {
	h.once.Do(func() {
		if err := os.Remove(h.marker); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.err = fmt.Errorf("failed to remove marker %s: %w", h.marker, err)
		}
		unlock(h.file)
		h.logger.Debug("role lock released", logger.Field{Key: "role", Value: h.role.String()})
	})
	return h.err
}

func tryLock(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyHeld
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return file, nil
}

func unlock(file *os.File) {
	unix.Flock(int(file.Fd()), unix.LOCK_UN)
	file.Close()
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	return pid, nil
}

// isRunning checks the pid with signal 0.
func isRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
