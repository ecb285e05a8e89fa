// SPDX-License-Identifier: MIT

// Package metrics exposes the ledger's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeTampered = "tampered"
	OutcomeMissing  = "missing"
	OutcomeOK       = "ok"
)

var (
	chainBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "filechain_chain_blocks",
		Help: "Number of blocks in the chain, genesis included",
	})

	chainValid = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "filechain_chain_valid",
		Help: "Whether the last chain validation passed (1) or failed (0)",
	})

	chainValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_chain_validations_total",
		Help: "Chain validations by result",
	}, []string{"result"}) // result=valid|invalid

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_uploads_total",
		Help: "Upload attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure|rejected

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "filechain_upload_size_bytes",
		Help:    "Size of accepted uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_downloads_total",
		Help: "Download attempts by outcome",
	}, []string{"outcome"}) // outcome=success|tampered|missing

	fileChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_file_checks_total",
		Help: "Stored-file integrity checks by result",
	}, []string{"source", "result"}) // source=audit|watch, result=ok|tampered|missing

	chainOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_chain_operations_total",
		Help: "Administrative chain operations by kind and outcome",
	}, []string{"operation", "outcome"}) // operation=repair|reset|load

	persistDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filechain_persist_duration_seconds",
		Help:    "Time spent saving the chain by backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	persistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filechain_persist_errors_total",
		Help: "Chain save failures by backend",
	}, []string{"backend"})
)

// RecordChainState publishes the chain length and validity.
func RecordChainState(blocks int, valid bool) {
	chainBlocks.Set(float64(blocks))
	if valid {
		chainValid.Set(1)
		chainValidations.WithLabelValues("valid").Inc()
		return
	}
	chainValid.Set(0)
	chainValidations.WithLabelValues("invalid").Inc()
}

func IncUpload(outcome string)           { uploadsTotal.WithLabelValues(outcome).Inc() }
func ObserveUploadSize(n int64)          { uploadBytes.Observe(float64(n)) }
func IncDownload(outcome string)         { downloadsTotal.WithLabelValues(outcome).Inc() }
func IncFileCheck(source, result string) { fileChecks.WithLabelValues(source, result).Inc() }

// IncChainOperation counts a repair, reset or load.
func IncChainOperation(operation, outcome string) {
	chainOperations.WithLabelValues(operation, outcome).Inc()
}

// ObservePersist records one chain save.
func ObservePersist(backend string, seconds float64, err error) {
	persistDuration.WithLabelValues(backend).Observe(seconds)
	if err != nil {
		persistErrors.WithLabelValues(backend).Inc()
	}
}
