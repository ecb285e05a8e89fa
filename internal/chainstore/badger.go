// SPDX-License-Identifier: MIT

package chainstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/filechain/internal/chain"
	"github.com/dgraph-io/badger/v4"
)

var blockPrefix = []byte("block:")

func badgerKey(i int) []byte {
	return []byte(fmt.Sprintf("block:%020d", i))
}

// BadgerStore keeps one JSON value per block under zero-padded keys so that
// prefix iteration yields chain order.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a badger database in dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	return openBadger(opts)
}

// OpenInMemoryBadgerStore opens a badger database that never touches disk.
func OpenInMemoryBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Backend() string { return BackendBadger }

func (s *BadgerStore) Load(_ context.Context) ([]chain.Block, error) {
	var blocks []chain.Block
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: blockPrefix, PrefetchValues: true, PrefetchSize: 64})
		defer it.Close()
		for it.Seek(blockPrefix); it.ValidForPrefix(blockPrefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				blk, err := decodeBlock(val)
				if err != nil {
					return fmt.Errorf("key %s: %w", item.Key(), err)
				}
				blocks = append(blocks, blk)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, ErrNotFound
	}
	return blocks, nil
}

// Save replaces all block keys in a single transaction.
func (s *BadgerStore) Save(_ context.Context, blocks []chain.Block) error {
	values := make([][]byte, len(blocks))
	for i, blk := range blocks {
		v, err := json.Marshal(blk)
		if err != nil {
			return fmt.Errorf("marshal block %d: %w", i, err)
		}
		values[i] = v
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: blockPrefix})
		for it.Seek(blockPrefix); it.ValidForPrefix(blockPrefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for i, v := range values {
			if err := txn.Set(badgerKey(i), v); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("chain too large for a single badger transaction (%d blocks): %w", len(blocks), err)
	}
	return err
}

func (s *BadgerStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }
