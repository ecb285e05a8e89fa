// SPDX-License-Identifier: MIT

// Package chainstore persists the hash chain. Every backend stores the blocks
// verbatim; hashes are never recomputed on the way in or out.
package chainstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/filechain/internal/chain"
)

var (
	// ErrNotFound is returned by Load when no blocks have been persisted.
	ErrNotFound = errors.New("chainstore: nothing persisted")
	// ErrCorrupt is returned by Load when persisted data cannot be decoded.
	ErrCorrupt = errors.New("chainstore: persisted chain is corrupt")
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendBolt   = "bolt"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Backends lists every supported backend name.
var Backends = []string{BackendJSON, BackendBolt, BackendBadger, BackendSQLite, BackendMemory}

// Store loads and saves the complete chain.
type Store interface {
	// Load returns the persisted blocks in chain order.
	Load(ctx context.Context) ([]chain.Block, error)
	// Save atomically replaces the persisted blocks.
	Save(ctx context.Context, blocks []chain.Block) error
	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error
	// Backend returns the backend name.
	Backend() string
	Close() error
}

// Config selects and locates a backend.
type Config struct {
	Backend string
	// Path is a file for json/bolt/sqlite and a directory for badger.
	Path string
}

// DefaultPath returns the conventional location of a backend inside dataDir.
func DefaultPath(backend, dataDir string) string {
	switch backend {
	case BackendBolt:
		return filepath.Join(dataDir, "blockchain.bolt")
	case BackendBadger:
		return filepath.Join(dataDir, "blockchain.badger")
	case BackendSQLite:
		return filepath.Join(dataDir, "blockchain.db")
	default:
		return filepath.Join(dataDir, "blockchain.json")
	}
}

// Open creates a Store for cfg.Backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendJSON, "":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create chain directory: %w", err)
		}
		return NewJSONStore(cfg.Path), nil
	case BackendBolt:
		return OpenBoltStore(cfg.Path)
	case BackendBadger:
		return OpenBadgerStore(cfg.Path)
	case BackendSQLite:
		return OpenSQLiteStore(cfg.Path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

// Copy loads every block from src and saves it to dst.
func Copy(ctx context.Context, src, dst Store) (int, error) {
	blocks, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load from %s: %w", src.Backend(), err)
	}
	if err := dst.Save(ctx, blocks); err != nil {
		return 0, fmt.Errorf("save to %s: %w", dst.Backend(), err)
	}
	return len(blocks), nil
}

// wireBlock mirrors chain.Block with pointer fields so a missing key is
// detected instead of silently decoding to a zero value.
type wireBlock struct {
	Index        *int          `json:"index"`
	Timestamp    *float64      `json:"timestamp"`
	FileData     *wireFileData `json:"file_data"`
	PreviousHash *string       `json:"previous_hash"`
	Hash         *string       `json:"hash"`
}

type wireFileData struct {
	Filename *string `json:"filename"`
	FileHash *string `json:"file_hash"`
}

func decodeBlock(data []byte) (chain.Block, error) {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return chain.Block{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return w.toBlock()
}

func decodeBlocks(data []byte) ([]chain.Block, error) {
	var ws []wireBlock
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	out := make([]chain.Block, 0, len(ws))
	for i := range ws {
		b, err := ws[i].toBlock()
		if err != nil {
			return nil, fmt.Errorf("block at position %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (w wireBlock) toBlock() (chain.Block, error) {
	if w.Index == nil || w.Timestamp == nil || w.FileData == nil || w.PreviousHash == nil || w.Hash == nil ||
		w.FileData.Filename == nil || w.FileData.FileHash == nil {
		return chain.Block{}, fmt.Errorf("%w: missing field", ErrCorrupt)
	}
	return chain.Block{
		Index:        *w.Index,
		Timestamp:    *w.Timestamp,
		FileData:     chain.FileData{Filename: *w.FileData.Filename, FileHash: *w.FileData.FileHash},
		PreviousHash: *w.PreviousHash,
		Hash:         *w.Hash,
	}, nil
}
