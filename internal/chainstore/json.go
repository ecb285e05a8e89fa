// SPDX-License-Identifier: MIT

package chainstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ManuGH/filechain/internal/chain"
	"github.com/google/renameio/v2"
)

// JSONStore keeps the chain as a single indented JSON array on disk.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONStore returns a store backed by path. The file is created on first Save.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Backend() string { return BackendJSON }

func (s *JSONStore) Load(_ context.Context) ([]chain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	blocks, err := decodeBlocks(data)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, ErrNotFound
	}
	return blocks, nil
}

// Save writes with fsync + atomic rename so a crash never leaves a torn file.
func (s *JSONStore) Save(_ context.Context, blocks []chain.Block) error {
	if blocks == nil {
		blocks = []chain.Block{}
	}
	data, err := json.MarshalIndent(blocks, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal chain: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create chain directory: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending chain file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write chain data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace chain file: %w", err)
	}
	return nil
}

func (s *JSONStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }
