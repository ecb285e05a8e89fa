// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldSurface   = "surface"

	// Event fields
	FieldEvent = "event"

	// Ledger fields
	FieldFilename   = "filename"
	FieldFileHash   = "file_hash"
	FieldBlockIndex = "block_index"
	FieldBlocks     = "blocks"
	FieldBackend    = "backend"

	// Path fields
	FieldPath = "path"
)
