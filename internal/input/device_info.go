package input

import (
	"os"
	"path/filepath"
)

// symlinkDirs are searched in order for persistent device aliases
var symlinkDirs = []string{"/dev/input/by-id", "/dev/input/by-path"}

// FindSymlink finds the persistent alias of a device path, preferring
// /dev/input/by-id over /dev/input/by-path
func FindSymlink(devicePath string) string {
	for _, dir := range symlinkDirs {
		if symlink := findSymlinkInDir(devicePath, dir); symlink != "" {
			return symlink
		}
	}
	return ""
}

// findSymlinkInDir finds a symlink pointing to devicePath in the given directory
func findSymlinkInDir(devicePath, dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		fullPath := filepath.Join(dir, entry.Name())
		target, err := os.Readlink(fullPath)
		if err != nil {
			continue
		}

		// Resolve relative paths
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		if filepath.Clean(target) == filepath.Clean(devicePath) {
			return fullPath
		}
	}
	return ""
}

// ResolveEventPath follows a persistent alias to its /dev/input/eventN node.
// Paths that are not symlinks are returned unchanged.
func ResolveEventPath(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return path, nil
	}
	return filepath.EvalSymlinks(path)
}
