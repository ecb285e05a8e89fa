// SPDX-License-Identifier: MIT

// Package blobstore keeps uploaded files in a single flat directory and
// computes their SHA-256 digests.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ManuGH/filechain/internal/cache"
	"github.com/ManuGH/filechain/internal/fsutil"
	"github.com/google/renameio/v2"
)

// BlockSize is the read size used while hashing stored files.
const BlockSize = 4096

var (
	// ErrInvalidName is returned for names that are empty or escape the directory.
	ErrInvalidName = errors.New("invalid file name")
	// ErrNotFound is returned when the named file is not stored.
	ErrNotFound = errors.New("file not found")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("file exceeds upload limit")
)

// SaveResult describes a stored upload.
type SaveResult struct {
	Name   string
	Digest string
	Size   int64
}

// FileInfo is a stored file's listing entry.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store is a directory of uploaded files.
type Store struct {
	dir      string
	maxBytes int64
	digests  cache.Cache
	cacheTTL time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBytes limits the size of a single upload. Zero means unlimited.
func WithMaxBytes(n int64) Option {
	return func(s *Store) { s.maxBytes = n }
}

// WithDigestCache enables digest caching keyed by name, size and mtime.
func WithDigestCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Store) {
		s.digests = c
		s.cacheTTL = ttl
	}
}

// New opens dir, creating it if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("blobstore: empty directory")
	}
	if err := fsutil.EnsureWritableDir(dir); err != nil {
		return nil, err
	}
	s := &Store{dir: dir, digests: cache.NewNoOpCache(), cacheTTL: time.Hour}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the confined absolute path of name.
func (s *Store) Path(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, '/') || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	p, err := fsutil.Confine(s.dir, name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return p, nil
}

// Save streams r into name, replacing any previous file atomically, and
// hashes the bytes in the same pass.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (SaveResult, error) {
	path, err := s.Path(name)
	if err != nil {
		return SaveResult{}, err
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return SaveResult{}, fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(pending, h), &ctxReader{ctx: ctx, r: src})
	if err != nil {
		return SaveResult{}, fmt.Errorf("write %s: %w", name, err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return SaveResult{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return SaveResult{}, err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return SaveResult{}, fmt.Errorf("atomically replace %s: %w", name, err)
	}

	digest := hex.EncodeToString(h.Sum(nil))
	if info, err := os.Stat(path); err == nil {
		if key, ok := digestKey(name, path, info); ok {
			s.digests.Set(ctx, key, digest, s.cacheTTL)
		}
	}
	return SaveResult{Name: name, Digest: digest, Size: n}, nil
}

// Hash returns the SHA-256 of the stored file, read in BlockSize chunks.
func (s *Store) Hash(ctx context.Context, name string) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}
	info, err := s.stat(path)
	if err != nil {
		return "", err
	}

	key, cacheable := digestKey(name, path, info)
	if cacheable {
		if d, ok := s.digests.Get(ctx, key); ok {
			return d, nil
		}
	}

	f, err := os.Open(path) //nolint:gosec // path is confined above
	if err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	digest, _, err := HashReader(ctx, f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", name, err)
	}
	if cacheable {
		s.digests.Set(ctx, key, digest, s.cacheTTL)
	}
	return digest, nil
}

// digestKey returns the cache key for the file at path. Files whose change
// stamp cannot be read are never cached.
func digestKey(name, path string, info os.FileInfo) (string, bool) {
	change, ok := changeStamp(path)
	if !ok {
		return "", false
	}
	return cache.DigestKey(name, info.Size(), info.ModTime(), change), true
}

// Open opens the stored file for reading.
func (s *Store) Open(name string) (*os.File, os.FileInfo, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := s.stat(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path) //nolint:gosec // path is confined above
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, info, nil
}

// Stat returns the stored file's info.
func (s *Store) Stat(name string) (os.FileInfo, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return s.stat(path)
}

// Exists reports whether name is stored as a regular file.
func (s *Store) Exists(name string) bool {
	_, err := s.Stat(name)
	return err == nil
}

// Remove deletes name. Removing a missing file returns ErrNotFound.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// List returns the stored regular files sorted by name. Hidden files,
// including in-flight temp files, are skipped.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}
	return info, nil
}

// HashReader returns the hex SHA-256 of r and the number of bytes read.
func HashReader(ctx context.Context, r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := copyBlocks(ctx, h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func copyBlocks(ctx context.Context, h hash.Hash, r io.Reader) (int64, error) {
	buf := make([]byte, BlockSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n])
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
