// SPDX-License-Identifier: MIT

// Package fsutil keeps upload paths inside the upload directory.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscapesRoot is returned when a path would resolve outside its root.
var ErrEscapesRoot = errors.New("path escapes root")

// Confine resolves rel under root and returns the physical path. Absolute
// targets, backslashes, ".." segments and symlinks leaving root are refused.
// rel itself does not need to exist.
func Confine(root, rel string) (string, error) {
	if strings.ContainsRune(rel, '\\') {
		return "", fmt.Errorf("%w: backslash in %q", ErrEscapesRoot, rel)
	}
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: target must be relative: %q", ErrEscapesRoot, rel)
	}
	if climbs(clean) {
		return "", fmt.Errorf("%w: traversal in %q", ErrEscapesRoot, rel)
	}

	base, err := realDir(root)
	if err != nil {
		return "", err
	}
	target, err := realTarget(filepath.Join(base, clean))
	if err != nil {
		return "", err
	}
	inside, err := filepath.Rel(base, target)
	if err != nil || climbs(inside) {
		return "", fmt.Errorf("%w: %s", ErrEscapesRoot, target)
	}
	return target, nil
}

// climbs reports whether a cleaned relative path starts with a ".." segment.
// "a..b" is a legal file name.
func climbs(p string) bool {
	return p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator))
}

func realDir(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	switch {
	case err == nil:
		return resolved, nil
	case os.IsNotExist(err):
		return "", err
	default:
		return abs, nil
	}
}

// realTarget follows symlinks for an existing path, or for the parent of a
// path that is about to be created.
func realTarget(full string) (string, error) {
	if _, err := os.Lstat(full); err == nil {
		resolved, err := filepath.EvalSymlinks(full)
		if err != nil {
			return "", fmt.Errorf("resolve path: %w", err)
		}
		return resolved, nil
	}
	parent := filepath.Dir(full)
	resolved, err := filepath.EvalSymlinks(parent)
	if err == nil {
		return filepath.Join(resolved, filepath.Base(full)), nil
	}
	if _, statErr := os.Stat(parent); statErr == nil {
		return "", fmt.Errorf("resolve parent path: %w", err)
	}
	return full, nil
}

// EnsureWritableDir creates dir if needed and proves it is writable with a
// scratch file that is removed again.
func EnsureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	scratch, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return fmt.Errorf("directory %s not writable: %w", dir, err)
	}
	_ = scratch.Close()
	return os.Remove(scratch.Name())
}
