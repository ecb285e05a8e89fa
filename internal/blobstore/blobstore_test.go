// SPDX-License-Identifier: MIT

package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/filechain/internal/cache"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "uploads"), opts...)
	require.NoError(t, err)
	return s
}

func TestSaveAndHash(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	content := strings.Repeat("filechain", 1000)
	res, err := s.Save(ctx, "data.txt", strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "data.txt", res.Name)
	assert.Equal(t, sha(content), res.Digest)
	assert.EqualValues(t, len(content), res.Size)

	digest, err := s.Hash(ctx, "data.txt")
	require.NoError(t, err)
	assert.Equal(t, res.Digest, digest)
	assert.True(t, s.Exists("data.txt"))
}

func TestSave_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Save(ctx, "f", strings.NewReader("one"))
	require.NoError(t, err)
	_, err = s.Save(ctx, "f", strings.NewReader("two"))
	require.NoError(t, err)

	f, _, err := s.Open("f")
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))
}

func TestSave_TooLarge(t *testing.T) {
	s := newStore(t, WithMaxBytes(4))

	_, err := s.Save(context.Background(), "big", strings.NewReader("12345"))
	require.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, s.Exists("big"), "rejected upload must not be committed")

	_, err = s.Save(context.Background(), "ok", strings.NewReader("1234"))
	require.NoError(t, err)
}

func TestSave_CancelledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, "x", strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.Exists("x"))
}

func TestInvalidNames(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{"", ".", "..", "../x", "a/b", `a\b`} {
		_, err := s.Save(context.Background(), name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestHash_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, WithDigestCache(cache.NewMemoryCache(0), time.Hour))

	res, err := s.Save(ctx, "doc", strings.NewReader("original"))
	require.NoError(t, err)

	path := filepath.Join(s.Dir(), "doc")
	require.NoError(t, os.WriteFile(path, []byte("tampered!"), 0o600))
	// Ensure the mtime moves even on coarse filesystems.
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	digest, err := s.Hash(ctx, "doc")
	require.NoError(t, err)
	assert.NotEqual(t, res.Digest, digest)
	assert.Equal(t, sha("tampered!"), digest)
}

func TestHash_UsesCache(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(0)
	s := newStore(t, WithDigestCache(c, time.Hour))

	_, err := s.Save(ctx, "doc", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = s.Hash(ctx, "doc")
	require.NoError(t, err)

	assert.EqualValues(t, 1, c.Stats().Hits)
}

func TestHash_Missing(t *testing.T) {
	_, err := newStore(t).Hash(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveAndList(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, n := range []string{"b", "a"} {
		_, err := s.Save(ctx, n, bytes.NewReader([]byte(n)))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), ".hidden"), nil, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "sub"), 0o750))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.EqualValues(t, 1, list[0].Size)

	require.NoError(t, s.Remove("a"))
	assert.ErrorIs(t, s.Remove("a"), ErrNotFound)
}

func TestHashReader_Blocks(t *testing.T) {
	content := strings.Repeat("z", BlockSize*3+7)
	digest, n, err := HashReader(context.Background(), strings.NewReader(content))
	require.NoError(t, err)
	assert.EqualValues(t, len(content), n)
	assert.Equal(t, sha(content), digest)
}
