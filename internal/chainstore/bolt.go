// SPDX-License-Identifier: MIT

package chainstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/filechain/internal/chain"
	bolt "go.etcd.io/bbolt"
)

var bucketBlocks = []byte("blocks")

// BoltStore keeps one JSON value per block in a bbolt bucket keyed by the
// block's position as a big-endian uint64, so cursor order is chain order.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) a bbolt database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create bolt directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Backend() string { return BackendBolt }

func positionKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

func (s *BoltStore) Load(_ context.Context) ([]chain.Block, error) {
	var blocks []chain.Block
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlocks)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			blk, err := decodeBlock(v)
			if err != nil {
				return fmt.Errorf("key %x: %w", k, err)
			}
			blocks = append(blocks, blk)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, ErrNotFound
	}
	return blocks, nil
}

// Save drops and rebuilds the bucket inside one transaction.
func (s *BoltStore) Save(_ context.Context, blocks []chain.Block) error {
	values := make([][]byte, len(blocks))
	for i, blk := range blocks {
		v, err := json.Marshal(blk)
		if err != nil {
			return fmt.Errorf("marshal block %d: %w", i, err)
		}
		values[i] = v
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketBlocks) != nil {
			if err := tx.DeleteBucket(bucketBlocks); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketBlocks)
		if err != nil {
			return err
		}
		for i, v := range values {
			if err := b.Put(positionKey(i), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Ping(_ context.Context) error {
	return s.db.View(func(*bolt.Tx) error { return nil })
}

func (s *BoltStore) Close() error { return s.db.Close() }
