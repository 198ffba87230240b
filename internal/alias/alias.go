// Package alias publishes stable symlinks to the virtual device nodes
package alias

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDir is where aliases are published unless configured otherwise
const DefaultDir = "/dev/input/by-path"

// Publisher creates aliases named after the physical source
type Publisher struct {
	Dir string
}

// Name returns the alias file name for a source and sink label,
// e.g. "platform-i8042-serio-0-event-kbd-guest"
func Name(source, label string) string {
	return fmt.Sprintf("%s-%s", filepath.Base(source), label)
}

// Path returns the full alias path
func (p Publisher) Path(source, label string) string {
	dir := p.Dir
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, Name(source, label))
}

// Publish points the alias for source/label at node. A stale alias with
// the same name is removed first.
func (p Publisher) Publish(node, source, label string) (string, error) {
	path := p.Path(source, label)

	if _, err := os.Lstat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to remove stale alias %s: %w", path, err)
		}
	}

	if err := os.Symlink(node, path); err != nil {
		return "", fmt.Errorf("failed to create alias %s -> %s: %w", path, node, err)
	}
	return path, nil
}

// Remove deletes a published alias. A missing alias is not an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove alias %s: %w", path, err)
	}
	return nil
}

// Chown gives uid ownership of path. Symlinks are followed, so chowning an
// alias changes the device node it points at.
func Chown(path string, uid int) error {
	if err := os.Chown(path, uid, -1); err != nil {
		return fmt.Errorf("failed to set owner of %s to %d: %w", path, uid, err)
	}
	return nil
}
