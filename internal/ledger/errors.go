// SPDX-License-Identifier: MIT

package ledger

import (
	"errors"
	"strings"
)

var (
	// ErrNoFilename is returned when an upload has no usable file name.
	ErrNoFilename = errors.New("no selected file")
	// ErrFileNotFound is returned when a requested file is not stored.
	ErrFileNotFound = errors.New("file not found")
	// ErrIntegrity is returned when a stored file no longer matches the
	// digest recorded for it, or no block records it.
	ErrIntegrity = errors.New("file integrity check failed")
)

// ChainInvalidError is returned when appending a block leaves the chain
// invalid. The append is rolled back.
type ChainInvalidError struct {
	Errors []string
}

func (e *ChainInvalidError) Error() string {
	return "Failed to add file to blockchain. Validation errors: " + strings.Join(e.Errors, ", ")
}
