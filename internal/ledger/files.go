// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/filechain/internal/blobstore"
	"github.com/ManuGH/filechain/internal/chain"
	"github.com/ManuGH/filechain/internal/log"
	"github.com/ManuGH/filechain/internal/metrics"
	"github.com/ManuGH/filechain/internal/telemetry"
)

// Download is a verified stored file. The caller closes File.
type Download struct {
	File  *os.File
	Info  os.FileInfo
	Block chain.Block
}

// Upload sanitises filename, stores r under it and appends a block recording
// its digest. Uploads are serialised so the stored bytes always match the
// block appended for them.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (chain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Upload")
	defer span.End()

	name := blobstore.SecureFilename(filename)
	if name == "" {
		metrics.IncUpload(metrics.OutcomeRejected)
		s.audit.FileUploadFailed(ctx, filename, ErrNoFilename.Error())
		return chain.Block{}, ErrNoFilename
	}
	logger := log.Enrich(ctx, s.logger).With().Str(log.FieldFilename, name).Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.blobs.Save(ctx, name, r)
	if err != nil {
		outcome := metrics.OutcomeFailure
		if errors.Is(err, blobstore.ErrTooLarge) || errors.Is(err, blobstore.ErrInvalidName) {
			outcome = metrics.OutcomeRejected
		}
		metrics.IncUpload(outcome)
		telemetry.RecordError(span, err, "store")
		s.audit.FileUploadFailed(ctx, name, err.Error())
		return chain.Block{}, fmt.Errorf("store %s: %w", name, err)
	}
	span.SetAttributes(telemetry.FileAttributes(name, res.Digest, res.Size)...)

	block := s.chain.Add(chain.FileData{Filename: name, FileHash: res.Digest})
	span.SetAttributes(telemetry.BlockAttribute(block.Index))
	if verr := s.chain.Validate(); verr != nil {
		s.chain.Truncate(block.Index)
		invalid := &ChainInvalidError{Errors: []string{verr.Error()}}
		metrics.IncUpload(metrics.OutcomeFailure)
		metrics.RecordChainState(s.chain.Len(), false)
		telemetry.RecordError(span, invalid, "validation")
		s.audit.FileUploadFailed(ctx, name, invalid.Error())
		logger.Warn().Str(log.FieldEvent, "ledger.upload_rejected").
			Str("validation_error", verr.Error()).
			Msg("chain invalid after append; block discarded")
		return chain.Block{}, invalid
	}

	if err := s.persist(ctx); err != nil {
		s.chain.Truncate(block.Index)
		metrics.IncUpload(metrics.OutcomeFailure)
		telemetry.RecordError(span, err, "persist")
		s.audit.FileUploadFailed(ctx, name, err.Error())
		return chain.Block{}, err
	}

	metrics.IncUpload(metrics.OutcomeSuccess)
	metrics.ObserveUploadSize(res.Size)
	metrics.RecordChainState(s.chain.Len(), true)
	s.audit.FileUploaded(ctx, name, res.Digest, block.Index)
	logger.Info().Str(log.FieldEvent, "ledger.upload").
		Str(log.FieldFileHash, res.Digest).
		Int(log.FieldBlockIndex, block.Index).
		Int64("size", res.Size).
		Msg("file recorded in chain")
	return block, nil
}

// Download opens filename after checking that its current digest matches the
// latest block recording it. The digest is computed from the returned handle,
// under the read lock so a concurrent Upload cannot swap the file between the
// hash and the block lookup.
func (s *Service) Download(ctx context.Context, filename string) (*Download, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Download")
	defer span.End()
	span.SetAttributes(telemetry.FileAttributes(filename, "", 0)...)

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, info, err := s.blobs.Open(filename)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) || errors.Is(err, blobstore.ErrInvalidName) {
			metrics.IncDownload(metrics.OutcomeMissing)
			s.audit.FileDownloaded(ctx, filename, false, ErrFileNotFound.Error())
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
		}
		telemetry.RecordError(span, err, "open")
		return nil, err
	}

	digest, _, err := blobstore.HashReader(ctx, f)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = f.Close()
		telemetry.RecordError(span, err, "hash")
		return nil, fmt.Errorf("hash %s: %w", filename, err)
	}

	block, ok := s.chain.FindLatest(filename)
	if !ok || block.FileData.FileHash != digest {
		_ = f.Close()
		expected := ""
		if ok {
			expected = block.FileData.FileHash
		}
		metrics.IncDownload(metrics.OutcomeTampered)
		s.audit.FileDownloaded(ctx, filename, false, ErrIntegrity.Error())
		s.audit.FileTampered(ctx, filename, StatusTampered, expected, digest)
		logger := log.Enrich(ctx, s.logger)
		logger.Warn().Str(log.FieldEvent, "ledger.download_refused").
			Str(log.FieldFilename, filename).
			Str("expected", expected).
			Str("actual", digest).
			Msg("stored file does not match chain")
		return nil, fmt.Errorf("%w: %s", ErrIntegrity, filename)
	}

	metrics.IncDownload(metrics.OutcomeSuccess)
	s.audit.FileDownloaded(ctx, filename, true, "")
	return &Download{File: f, Info: info, Block: block}, nil
}
