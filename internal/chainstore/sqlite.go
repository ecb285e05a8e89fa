// SPDX-License-Identifier: MIT

package chainstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/filechain/internal/chain"
	_ "modernc.org/sqlite" // Pure Go driver
)

// SQLiteStore keeps one row per block.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path with WAL and
// busy_timeout applied to every pooled connection.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, (5 * time.Second).Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blocks (
		position INTEGER PRIMARY KEY,
		block_index INTEGER NOT NULL,
		timestamp REAL NOT NULL,
		filename TEXT NOT NULL,
		file_hash TEXT NOT NULL,
		previous_hash TEXT NOT NULL,
		hash TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_blocks_filename ON blocks(filename);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Backend() string { return BackendSQLite }

func (s *SQLiteStore) Load(ctx context.Context) ([]chain.Block, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT block_index, timestamp, filename, file_hash, previous_hash, hash
	FROM blocks
	ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var blocks []chain.Block
	for rows.Next() {
		var b chain.Block
		if err := rows.Scan(&b.Index, &b.Timestamp, &b.FileData.Filename, &b.FileData.FileHash, &b.PreviousHash, &b.Hash); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, ErrNotFound
	}
	return blocks, nil
}

func (s *SQLiteStore) Save(ctx context.Context, blocks []chain.Block) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks`); err != nil {
		return fmt.Errorf("clear blocks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO blocks (position, block_index, timestamp, filename, file_hash, previous_hash, hash)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, b := range blocks {
		if _, err := stmt.ExecContext(ctx, i, b.Index, b.Timestamp, b.FileData.Filename, b.FileData.FileHash, b.PreviousHash, b.Hash); err != nil {
			return fmt.Errorf("insert block %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// VerifyIntegrity runs PRAGMA quick_check (or integrity_check when full is
// set) and returns the diagnostic rows, or nil when the database is healthy.
func (s *SQLiteStore) VerifyIntegrity(ctx context.Context, full bool) ([]string, error) {
	pragma := "PRAGMA quick_check;"
	if full {
		pragma = "PRAGMA integrity_check;"
	}
	rows, err := s.db.QueryContext(ctx, pragma)
	if err != nil {
		return nil, fmt.Errorf("integrity pragma failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []string
	for rows.Next() {
		var res string
		if err := rows.Scan(&res); err != nil {
			return nil, fmt.Errorf("scan integrity result row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 1 && results[0] == "ok" {
		return nil, nil
	}
	if len(results) == 0 {
		return []string{"no results returned from integrity check"}, nil
	}
	return results, nil
}
