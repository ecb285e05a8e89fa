// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	FileNameKey    = attribute.Key("file.name")
	FileHashKey    = attribute.Key("file.hash")
	FileSizeKey    = attribute.Key("file.size")
	BlockIndexKey  = attribute.Key("chain.block_index")
	ChainBlocksKey = attribute.Key("chain.blocks")
	ChainValidKey  = attribute.Key("chain.valid")
	ErrorTypeKey   = attribute.Key("error.type")
)

// FileAttributes describes a stored file; empty name or digest and a zero
// size are left out.
func FileAttributes(name, digest string, size int64) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if name != "" {
		attrs = append(attrs, FileNameKey.String(name))
	}
	if digest != "" {
		attrs = append(attrs, FileHashKey.String(digest))
	}
	if size > 0 {
		attrs = append(attrs, FileSizeKey.Int64(size))
	}
	return attrs
}

// ChainAttributes describes the chain after an operation.
func ChainAttributes(blocks int, valid bool) []attribute.KeyValue {
	return []attribute.KeyValue{ChainBlocksKey.Int(blocks), ChainValidKey.Bool(valid)}
}

// BlockAttribute tags a span with the block an upload produced.
func BlockAttribute(index int) attribute.KeyValue {
	return BlockIndexKey.Int(index)
}

// RecordError marks span failed with err classified as kind. nil is a no-op.
func RecordError(span trace.Span, err error, kind string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(ErrorTypeKey.String(kind))
	span.SetStatus(codes.Error, err.Error())
}
