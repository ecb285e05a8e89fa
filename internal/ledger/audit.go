// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/filechain/internal/blobstore"
	"github.com/ManuGH/filechain/internal/log"
	"github.com/ManuGH/filechain/internal/metrics"
)

// File check statuses.
const (
	StatusOK        = "ok"
	StatusTampered  = "tampered"
	StatusMissing   = "missing"
	StatusUntracked = "untracked"
)

// Check sources, used as metric labels.
const (
	CheckSourceAudit = "audit"
	CheckSourceWatch = "watch"
)

// FileStatus is the integrity of one stored file against the chain.
type FileStatus struct {
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
	BlockIndex int    `json:"block_index"`
}

type expectation struct {
	digest string
	index  int
}

// AuditFiles checks every file recorded in the chain against its latest
// block. Files are hashed concurrently; results keep first-recorded order.
// Uploads wait until the audit finishes.
func (s *Service) AuditFiles(ctx context.Context) ([]FileStatus, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.AuditFiles")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := s.chain.Filenames()
	expected := make([]expectation, len(names))
	for i, name := range names {
		b, _ := s.chain.FindLatest(name)
		expected[i] = expectation{digest: b.FileData.FileHash, index: b.Index}
	}

	results := make([]FileStatus, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, name := range names {
		g.Go(func() error {
			st, err := s.checkFile(gctx, name, expected[i], CheckSourceAudit)
			if err != nil {
				return err
			}
			results[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("audit files: %w", err)
	}
	return results, nil
}

// CheckFile checks one stored file against the latest block recording it.
// Files the chain does not record are reported untracked.
func (s *Service) CheckFile(ctx context.Context, name string) (FileStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.chain.FindLatest(name)
	if !ok {
		return FileStatus{Filename: name, Status: StatusUntracked}, nil
	}
	return s.checkFile(ctx, name, expectation{digest: b.FileData.FileHash, index: b.Index}, CheckSourceWatch)
}

// checkFile hashes name and compares it to exp. Callers hold the read lock.
func (s *Service) checkFile(ctx context.Context, name string, exp expectation, source string) (FileStatus, error) {
	st := FileStatus{Filename: name, Expected: exp.digest, BlockIndex: exp.index}

	digest, err := s.blobs.Hash(ctx, name)
	switch {
	case err == nil:
		st.Actual = digest
		st.Status = StatusOK
		if digest != exp.digest {
			st.Status = StatusTampered
		}
	case errors.Is(err, blobstore.ErrNotFound), errors.Is(err, blobstore.ErrInvalidName):
		st.Status = StatusMissing
	default:
		return st, fmt.Errorf("hash %s: %w", name, err)
	}

	metrics.IncFileCheck(source, st.Status)
	if st.Status != StatusOK {
		s.audit.FileTampered(ctx, name, st.Status, st.Expected, st.Actual)
		logger := log.Enrich(ctx, s.logger)
		logger.Warn().Str(log.FieldEvent, "ledger.file_"+st.Status).
			Str(log.FieldFilename, name).
			Str("source", source).
			Str("expected", st.Expected).
			Str("actual", st.Actual).
			Msg("stored file failed integrity check")
	}
	return st, nil
}
