// SPDX-License-Identifier: MIT

// Package ledger records uploaded files in a hash chain and uses the chain to
// detect tampering. A Service serialises all chain access and persists the
// chain after every change.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/filechain/internal/audit"
	"github.com/ManuGH/filechain/internal/blobstore"
	"github.com/ManuGH/filechain/internal/chain"
	"github.com/ManuGH/filechain/internal/chainstore"
	"github.com/ManuGH/filechain/internal/log"
	"github.com/ManuGH/filechain/internal/metrics"
	"github.com/ManuGH/filechain/internal/telemetry"
)

// Load sources reported by Open.
const (
	SourceStore   = "store"
	SourceGenesis = "genesis"
	SourceReset   = "reset"
)

// Options wires a Service.
type Options struct {
	Store chainstore.Store
	Blobs *blobstore.Store
	// Clock defaults to time.Now.
	Clock chain.Clock
	// Audit defaults to the component audit logger.
	Audit *audit.Logger
	// AuditConcurrency bounds AuditFiles. Defaults to 4.
	AuditConcurrency int
	// Strict makes Open fail with an error wrapping chainstore.ErrCorrupt
	// instead of replacing undecodable content with a genesis block.
	Strict bool
}

// Service is the ledger. It is safe for concurrent use.
type Service struct {
	mu    sync.RWMutex
	chain *chain.Chain

	store       chainstore.Store
	blobs       *blobstore.Store
	audit       *audit.Logger
	logger      zerolog.Logger
	tracer      trace.Tracer
	concurrency int
	source      string
}

// Overview is the listing shown on the index page.
type Overview struct {
	Files  []chain.FileEntry `json:"files"`
	Valid  bool              `json:"valid"`
	Errors []string          `json:"errors"`
	Blocks int               `json:"blocks"`
}

// Report is the result of a chain verification.
type Report struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// RepairResult describes a repair attempt.
type RepairResult struct {
	AlreadyValid    bool     `json:"already_valid"`
	Repaired        bool     `json:"repaired"`
	PreviousErrors  []string `json:"previous_errors"`
	RemainingErrors []string `json:"remaining_errors"`
}

// Open loads the chain from opts.Store. A store with nothing persisted is
// initialised with a fresh genesis block, as is one with undecodable content
// unless opts.Strict is set. A chain that decodes but fails validation is
// kept so it can be inspected and repaired.
func Open(ctx context.Context, opts Options) (*Service, error) {
	if opts.Store == nil || opts.Blobs == nil {
		return nil, errors.New("ledger: store and blobs are required")
	}
	s := &Service{
		store:       opts.Store,
		blobs:       opts.Blobs,
		audit:       opts.Audit,
		logger:      log.WithComponent("ledger").With().Str(log.FieldBackend, opts.Store.Backend()).Logger(),
		tracer:      telemetry.Tracer(),
		concurrency: opts.AuditConcurrency,
	}
	if s.audit == nil {
		s.audit = audit.NewLogger()
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}

	ctx, span := s.tracer.Start(ctx, "ledger.Open")
	defer span.End()

	blocks, err := opts.Store.Load(ctx)
	switch {
	case err == nil:
		s.chain = chain.FromBlocks(blocks, opts.Clock)
		s.source = SourceStore
	case errors.Is(err, chainstore.ErrNotFound):
		s.chain = chain.New(opts.Clock)
		s.source = SourceGenesis
	case errors.Is(err, chainstore.ErrCorrupt) && opts.Strict:
		telemetry.RecordError(span, err, "load")
		metrics.IncChainOperation("load", metrics.OutcomeFailure)
		return nil, fmt.Errorf("load chain: %w", err)
	case errors.Is(err, chainstore.ErrCorrupt):
		s.logger.Error().Err(err).Str(log.FieldEvent, "chain.load_corrupt").
			Msg("persisted chain could not be decoded; starting from genesis")
		s.chain = chain.New(opts.Clock)
		s.source = SourceReset
	default:
		telemetry.RecordError(span, err, "load")
		metrics.IncChainOperation("load", metrics.OutcomeFailure)
		return nil, fmt.Errorf("load chain: %w", err)
	}

	if s.source != SourceStore {
		if err := s.persist(ctx); err != nil {
			telemetry.RecordError(span, err, "persist")
			metrics.IncChainOperation("load", metrics.OutcomeFailure)
			return nil, err
		}
	}

	verr := s.chain.Validate()
	if verr != nil {
		s.logger.Warn().Str(log.FieldEvent, "chain.load_invalid").
			Str("validation_error", verr.Error()).
			Msg("loaded chain is invalid")
	}
	s.logger.Info().Str(log.FieldEvent, "chain.loaded").
		Str("source", s.source).
		Int(log.FieldBlocks, s.chain.Len()).
		Bool("valid", verr == nil).
		Msg("chain ready")

	metrics.RecordChainState(s.chain.Len(), verr == nil)
	metrics.IncChainOperation("load", metrics.OutcomeSuccess)
	s.audit.ChainLoaded(ctx, s.source, s.chain.Len(), verr == nil)
	span.SetAttributes(telemetry.ChainAttributes(s.chain.Len(), verr == nil)...)
	return s, nil
}

// Source reports how Open obtained the chain.
func (s *Service) Source() string { return s.source }

// Blobs returns the file store.
func (s *Service) Blobs() *blobstore.Store { return s.blobs }

// persist saves the chain. Callers hold the write lock.
func (s *Service) persist(ctx context.Context) error {
	start := time.Now()
	err := s.store.Save(ctx, s.chain.Blocks())
	metrics.ObservePersist(s.store.Backend(), time.Since(start).Seconds(), err)
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldEvent, "chain.persist_failed").Msg("failed to save chain")
		return fmt.Errorf("save chain: %w", err)
	}
	return nil
}

// errorsOf renders the chain's validation result for display.
func errorsOf(verr *chain.ValidationError) []string {
	if verr == nil {
		return []string{}
	}
	return []string{verr.Error()}
}

// List returns the recorded files and the chain's validity.
func (s *Service) List(ctx context.Context) Overview {
	_, span := s.tracer.Start(ctx, "ledger.List")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	verr := s.chain.Validate()
	metrics.RecordChainState(s.chain.Len(), verr == nil)
	return Overview{
		Files:  s.chain.Files(),
		Valid:  verr == nil,
		Errors: errorsOf(verr),
		Blocks: s.chain.Len(),
	}
}

// Blocks returns a copy of every block.
func (s *Service) Blocks(context.Context) []chain.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chain.Blocks()
}

// Verify validates the chain.
func (s *Service) Verify(ctx context.Context) Report {
	ctx, span := s.tracer.Start(ctx, "ledger.Verify")
	defer span.End()

	s.mu.RLock()
	verr := s.chain.Validate()
	blocks := s.chain.Len()
	s.mu.RUnlock()

	report := Report{Valid: verr == nil, Errors: errorsOf(verr)}
	metrics.RecordChainState(blocks, report.Valid)
	span.SetAttributes(telemetry.ChainAttributes(blocks, report.Valid)...)
	s.audit.ChainVerified(ctx, report.Valid, report.Errors)
	return report
}

// Valid reports chain validity without auditing. Health checks use it.
func (s *Service) Valid(context.Context) (bool, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	verr := s.chain.Validate()
	return verr == nil, errorsOf(verr)
}

// Repair relinks an invalid chain and persists it. A valid chain is left
// untouched.
func (s *Service) Repair(ctx context.Context) (RepairResult, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Repair")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.chain.Validate()
	if before == nil {
		return RepairResult{AlreadyValid: true, PreviousErrors: []string{}, RemainingErrors: []string{}}, nil
	}

	s.chain.Repair()
	if err := s.persist(ctx); err != nil {
		telemetry.RecordError(span, err, "persist")
		metrics.IncChainOperation("repair", metrics.OutcomeFailure)
		return RepairResult{}, err
	}

	after := s.chain.Validate()
	res := RepairResult{
		Repaired:        after == nil,
		PreviousErrors:  errorsOf(before),
		RemainingErrors: errorsOf(after),
	}
	outcome := metrics.OutcomeSuccess
	if !res.Repaired {
		outcome = metrics.OutcomeFailure
	}
	metrics.IncChainOperation("repair", outcome)
	metrics.RecordChainState(s.chain.Len(), res.Repaired)
	s.audit.ChainRepaired(ctx, res.Repaired, res.PreviousErrors, res.RemainingErrors)
	s.logger.Info().Str(log.FieldEvent, "chain.repair").
		Bool("repaired", res.Repaired).
		Strs("previous_errors", res.PreviousErrors).
		Msg("chain repair attempted")
	return res, nil
}

// Reset replaces the chain with a fresh genesis block and persists it.
// Stored files are left in place.
func (s *Service) Reset(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "ledger.Reset")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := max(s.chain.Len()-1, 0)
	s.chain.Reset()
	if err := s.persist(ctx); err != nil {
		telemetry.RecordError(span, err, "persist")
		metrics.IncChainOperation("reset", metrics.OutcomeFailure)
		return err
	}
	metrics.IncChainOperation("reset", metrics.OutcomeSuccess)
	metrics.RecordChainState(s.chain.Len(), true)
	s.audit.ChainReset(ctx, dropped)
	s.logger.Info().Str(log.FieldEvent, "chain.reset").Int("dropped_blocks", dropped).Msg("chain reset to genesis")
	return nil
}
