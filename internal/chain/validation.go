// SPDX-License-Identifier: MIT

package chain

import "fmt"

// ViolationKind classifies a chain validation failure.
type ViolationKind string

const (
	ViolationEmpty        ViolationKind = "empty"
	ViolationGenesis      ViolationKind = "genesis"
	ViolationHash         ViolationKind = "hash"
	ViolationPreviousHash ViolationKind = "previous_hash"
	ViolationIndex        ViolationKind = "index"
)

// ValidationError describes the first integrity violation found in a chain.
type ValidationError struct {
	Kind     ViolationKind `json:"kind"`
	Position int           `json:"position"`
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ViolationEmpty:
		return "Blockchain is empty"
	case ViolationGenesis:
		return "Invalid genesis block"
	case ViolationHash:
		return fmt.Sprintf("Invalid hash for block %d", e.Position)
	case ViolationPreviousHash:
		return fmt.Sprintf("Invalid previous hash reference in block %d", e.Position)
	case ViolationIndex:
		return fmt.Sprintf("Non-sequential block index at position %d", e.Position)
	default:
		return fmt.Sprintf("unknown violation %q at position %d", e.Kind, e.Position)
	}
}

// Messages renders validation errors as plain strings for display.
func Messages(errs []*ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

// validateBlocks stops at the first violation. The genesis block's own hash is
// not recomputed; only its index and previous-hash sentinel are checked.
func validateBlocks(blocks []Block) *ValidationError {
	if len(blocks) == 0 {
		return &ValidationError{Kind: ViolationEmpty}
	}
	if blocks[0].Index != 0 || blocks[0].PreviousHash != GenesisPreviousHash {
		return &ValidationError{Kind: ViolationGenesis}
	}
	for i := 1; i < len(blocks); i++ {
		cur, prev := blocks[i], blocks[i-1]
		if cur.Hash != cur.CalculateHash() {
			return &ValidationError{Kind: ViolationHash, Position: i}
		}
		if cur.PreviousHash != prev.Hash {
			return &ValidationError{Kind: ViolationPreviousHash, Position: i}
		}
		if cur.Index != i {
			return &ValidationError{Kind: ViolationIndex, Position: i}
		}
	}
	return nil
}
