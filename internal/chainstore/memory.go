// SPDX-License-Identifier: MIT

package chainstore

import (
	"context"
	"sync"

	"github.com/ManuGH/filechain/internal/chain"
)

// MemoryStore keeps the chain in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	blocks []chain.Block
	saves  int
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Backend() string { return BackendMemory }

func (s *MemoryStore) Load(_ context.Context) ([]chain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blocks) == 0 {
		return nil, ErrNotFound
	}
	out := make([]chain.Block, len(s.blocks))
	copy(out, s.blocks)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, blocks []chain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = make([]chain.Block, len(blocks))
	copy(s.blocks, blocks)
	s.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
