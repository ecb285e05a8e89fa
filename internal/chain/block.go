// SPDX-License-Identifier: MIT

// Package chain implements the append-only hash chain that records every
// stored file. Each block commits to a file's name and SHA-256 digest and to
// the hash of the block before it.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	// GenesisFilename is the placeholder filename recorded in block 0.
	GenesisFilename = "genesis"
	// GenesisPreviousHash is the previous-hash sentinel of block 0.
	GenesisPreviousHash = "0"
)

// FileData is the payload recorded for one stored file.
type FileData struct {
	Filename string `json:"filename"`
	FileHash string `json:"file_hash"`
}

// Block is one link of the chain. Timestamp is seconds since the Unix epoch.
type Block struct {
	Index        int      `json:"index"`
	Timestamp    float64  `json:"timestamp"`
	FileData     FileData `json:"file_data"`
	PreviousHash string   `json:"previous_hash"`
	Hash         string   `json:"hash"`
}

// NewBlock builds a block and seals it with its computed hash.
func NewBlock(index int, timestamp float64, fd FileData, previousHash string) Block {
	b := Block{
		Index:        index,
		Timestamp:    timestamp,
		FileData:     fd,
		PreviousHash: previousHash,
	}
	b.Hash = b.CalculateHash()
	return b
}

// NewGenesisBlock returns block 0.
func NewGenesisBlock(timestamp float64) Block {
	return NewBlock(0, timestamp, FileData{Filename: GenesisFilename, FileHash: "0"}, GenesisPreviousHash)
}

// CalculateHash returns the lower-case hex SHA-256 of the block's canonical
// encoding. The stored Hash field is not part of the input.
func (b Block) CalculateHash() string {
	sum := sha256.Sum256(canonicalPayload(b.Index, b.Timestamp, b.FileData, b.PreviousHash))
	return hex.EncodeToString(sum[:])
}

// Time converts the block timestamp to a time.Time.
func (b Block) Time() time.Time {
	sec := int64(b.Timestamp)
	nsec := int64((b.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// IsGenesis reports whether b is the first block of a chain.
func (b Block) IsGenesis() bool {
	return b.Index == 0 && b.PreviousHash == GenesisPreviousHash
}

// Timestamp converts t to the fractional epoch seconds stored in blocks.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
