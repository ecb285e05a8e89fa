// SPDX-License-Identifier: MIT

// Package audit provides structured audit logging for operations that change
// or attest to the ledger. It follows the WHO/WHAT/WHEN pattern.
package audit

import (
	"context"
	"time"

	"github.com/ManuGH/filechain/internal/log"
	"github.com/rs/zerolog"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventFileUpload   EventType = "file.upload"
	EventFileDownload EventType = "file.download"
	EventFileTamper   EventType = "file.tamper"

	EventChainLoad   EventType = "chain.load"
	EventChainVerify EventType = "chain.verify"
	EventChainRepair EventType = "chain.repair"
	EventChainReset  EventType = "chain.reset"
)

// Result values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDenied  = "denied"
)

// Event represents a structured audit event.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Type       EventType         `json:"type"`
	Actor      string            `json:"actor"`             // WHO: remote address or "system"
	Action     string            `json:"action"`            // WHAT: human-readable action description
	Resource   string            `json:"resource"`          // filename or "chain"
	Result     string            `json:"result"`            // success, failure, denied
	RemoteAddr string            `json:"remote_addr"`       // Client IP address
	UserAgent  string            `json:"user_agent"`        // Client user agent
	RequestID  string            `json:"request_id"`        // Correlation ID
	Surface    string            `json:"surface,omitempty"` // ui, api, cli or watch
	Details    map[string]string `json:"details,omitempty"` // Additional context
}

type metaKey struct{}

type requestMeta struct {
	remoteAddr string
	userAgent  string
}

// WithRequestMeta records the caller's address and user agent in ctx so that
// events logged further down the call chain can be attributed.
func WithRequestMeta(ctx context.Context, remoteAddr, userAgent string) context.Context {
	return context.WithValue(ctx, metaKey{}, requestMeta{remoteAddr: remoteAddr, userAgent: userAgent})
}

// Logger provides audit logging functionality.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new audit logger with a dedicated "audit" component.
func NewLogger() *Logger {
	return NewLoggerWith(log.WithComponent("audit"))
}

// NewLoggerWith wraps an existing logger.
func NewLoggerWith(l zerolog.Logger) *Logger {
	return &Logger{logger: l.With().Str("log_type", "audit").Logger()}
}

// Log writes an audit event to the audit log.
func (l *Logger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ev := l.logger.Info()
	if event.Result != ResultSuccess {
		ev = l.logger.Warn()
	}
	ev = ev.
		Time("timestamp", event.Timestamp).
		Str("event_type", string(event.Type)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Str("result", event.Result)

	if event.RemoteAddr != "" {
		ev = ev.Str("remote_addr", event.RemoteAddr)
	}
	if event.UserAgent != "" {
		ev = ev.Str("user_agent", event.UserAgent)
	}
	if event.RequestID != "" {
		ev = ev.Str("request_id", event.RequestID)
	}
	if event.Surface != "" {
		ev = ev.Str("surface", event.Surface)
	}
	for key, value := range event.Details {
		ev = ev.Str(key, value)
	}

	ev.Msg("audit event")
}

// LogFromContext fills request ID, remote address and user agent from ctx.
// Events without a request context are attributed to "system".
func (l *Logger) LogFromContext(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = log.RequestID(ctx)
	}
	if event.Surface == "" {
		event.Surface = log.Surface(ctx)
	}
	if meta, ok := ctx.Value(metaKey{}).(requestMeta); ok {
		if event.RemoteAddr == "" {
			event.RemoteAddr = meta.remoteAddr
		}
		if event.UserAgent == "" {
			event.UserAgent = meta.userAgent
		}
	}
	if event.Actor == "" {
		event.Actor = event.RemoteAddr
		if event.Actor == "" {
			event.Actor = "system"
		}
	}
	l.Log(event)
}

// FileUploaded records a file appended to the chain.
func (l *Logger) FileUploaded(ctx context.Context, filename, digest string, blockIndex int) {
	l.LogFromContext(ctx, Event{
		Type:     EventFileUpload,
		Action:   "uploaded file and appended block",
		Resource: filename,
		Result:   ResultSuccess,
		Details: map[string]string{
			"file_hash":   digest,
			"block_index": formatInt(blockIndex),
		},
	})
}

// FileUploadFailed records an upload that was not recorded in the chain.
func (l *Logger) FileUploadFailed(ctx context.Context, filename, reason string) {
	l.LogFromContext(ctx, Event{
		Type:     EventFileUpload,
		Action:   "upload rejected",
		Resource: filename,
		Result:   ResultFailure,
		Details:  map[string]string{"error": reason},
	})
}

// FileDownloaded records a verified download, or one refused by integrity checks.
func (l *Logger) FileDownloaded(ctx context.Context, filename string, verified bool, reason string) {
	ev := Event{
		Type:     EventFileDownload,
		Action:   "downloaded verified file",
		Resource: filename,
		Result:   ResultSuccess,
	}
	if !verified {
		ev.Action = "download refused"
		ev.Result = ResultDenied
		ev.Details = map[string]string{"reason": reason}
	}
	l.LogFromContext(ctx, ev)
}

// FileTampered records a stored file whose digest no longer matches the chain.
func (l *Logger) FileTampered(ctx context.Context, filename, status, expected, actual string) {
	l.LogFromContext(ctx, Event{
		Type:     EventFileTamper,
		Action:   "stored file failed integrity check",
		Resource: filename,
		Result:   ResultFailure,
		Details: map[string]string{
			"status":   status,
			"expected": expected,
			"actual":   actual,
		},
	})
}

// ChainVerified records a chain validation requested by an operator.
func (l *Logger) ChainVerified(ctx context.Context, valid bool, problems []string) {
	ev := Event{
		Type:     EventChainVerify,
		Action:   "verified chain integrity",
		Resource: "chain",
		Result:   ResultSuccess,
	}
	if !valid {
		ev.Result = ResultFailure
		ev.Details = map[string]string{"errors": join(problems)}
	}
	l.LogFromContext(ctx, ev)
}

// ChainRepaired records a repair attempt.
func (l *Logger) ChainRepaired(ctx context.Context, ok bool, previous, remaining []string) {
	ev := Event{
		Type:     EventChainRepair,
		Action:   "repaired chain",
		Resource: "chain",
		Result:   ResultSuccess,
		Details:  map[string]string{"previous_errors": join(previous)},
	}
	if !ok {
		ev.Result = ResultFailure
		ev.Details["remaining_errors"] = join(remaining)
	}
	l.LogFromContext(ctx, ev)
}

// ChainReset records a reset to a fresh genesis block.
func (l *Logger) ChainReset(ctx context.Context, droppedBlocks int) {
	l.LogFromContext(ctx, Event{
		Type:     EventChainReset,
		Action:   "reset chain to genesis",
		Resource: "chain",
		Result:   ResultSuccess,
		Details:  map[string]string{"dropped_blocks": formatInt(droppedBlocks)},
	})
}

// ChainLoaded records how the chain was obtained at startup.
func (l *Logger) ChainLoaded(ctx context.Context, source string, blocks int, valid bool) {
	result := ResultSuccess
	if !valid {
		result = ResultFailure
	}
	l.LogFromContext(ctx, Event{
		Type:     EventChainLoad,
		Actor:    "system",
		Action:   "loaded chain",
		Resource: "chain",
		Result:   result,
		Details: map[string]string{
			"source": source,
			"blocks": formatInt(blocks),
		},
	})
}
