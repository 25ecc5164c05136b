// Package autostart registers the agent as an XDG login item, so the
// autostart role comes up with the desktop session.
package autostart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aatumaykin/autoclaim/internal/constants"
)

// Entry is an XDG autostart .desktop file.
type Entry struct {
	dir  string
	name string
}

// New returns the entry for product inside dir. An empty dir resolves to
// $XDG_CONFIG_HOME/autostart, falling back to ~/.config/autostart.
func New(dir, product string) (*Entry, error) {
	if dir == "" {
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
		dir = filepath.Join(base, "autostart")
	}
	if product == "" {
		product = constants.DefaultProduct
	}
	return &Entry{dir: dir, name: product + "-autoclaim"}, nil
}

// Path returns the .desktop file location.
func (e *Entry) Path() string {
	return filepath.Join(e.dir, e.name+".desktop")
}

// Enable writes the entry so the session starts exe with args followed by
// the autostart flag.
func (e *Entry) Enable(exe string, args ...string) error {
	if exe == "" {
		return errors.New("executable path is required")
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("failed to create autostart directory %s: %w", e.dir, err)
	}

	cmd := make([]string, 0, len(args)+2)
	cmd = append(cmd, quoteExec(exe))
	for _, a := range args {
		cmd = append(cmd, quoteExec(a))
	}
	cmd = append(cmd, constants.AutostartFlag)

	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", e.name)
	b.WriteString("Comment=Claims recurring on-chain rewards in the background\n")
	fmt.Fprintf(&b, "Exec=%s\n", strings.Join(cmd, " "))
	b.WriteString("Terminal=false\n")
	b.WriteString("NoDisplay=true\n")
	b.WriteString("X-GNOME-Autostart-enabled=true\n")

	if err := os.WriteFile(e.Path(), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write autostart entry: %w", err)
	}
	return nil
}

// Disable removes the entry. Removing an absent entry is not an error.
func (e *Entry) Disable() error {
	if err := os.Remove(e.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove autostart entry: %w", err)
	}
	return nil
}

// Enabled reports whether the entry exists.
func (e *Entry) Enabled() (bool, error) {
	_, err := os.Stat(e.Path())
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// quoteExec quotes an Exec argument using desktop entry quoting rules.
func quoteExec(arg string) string {
	if !strings.ContainsAny(arg, " \t\n\"'\\><~|&;$*?#()`") {
		return arg
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(arg) + `"`
}
