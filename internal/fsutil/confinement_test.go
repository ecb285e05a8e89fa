// SPDX-License-Identifier: MIT

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfine(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.txt"), []byte("x"), 0o600))

	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	got, err := Confine(root, "ok.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(realRoot, "ok.txt"), got)

	got, err = Confine(root, "new..name.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(realRoot, "new..name.txt"), got)

	for _, bad := range []string{"../etc/passwd", "..", "/etc/passwd", `a\b`, "a/../../x"} {
		_, err := Confine(root, bad)
		assert.ErrorIs(t, err, ErrEscapesRoot, bad)
	}
}

func TestConfine_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "link")))

	_, err := Confine(root, "link")
	assert.ErrorIs(t, err, ErrEscapesRoot)
}

func TestEnsureWritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureWritableDir(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file must be removed")
}
