// SPDX-License-Identifier: MIT

package chain

import (
	"time"
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

// FileEntry is the listing view of a non-genesis block.
type FileEntry struct {
	Filename   string    `json:"filename"`
	FileHash   string    `json:"hash"`
	UploadedAt time.Time `json:"timestamp"`
	BlockIndex int       `json:"block_index"`
}

// Chain is an ordered list of blocks. It is not safe for concurrent use;
// callers serialise access.
type Chain struct {
	blocks []Block
	now    Clock
}

// New returns a chain holding a fresh genesis block.
func New(now Clock) *Chain {
	if now == nil {
		now = time.Now
	}
	c := &Chain{now: now}
	c.Reset()
	return c
}

// FromBlocks wraps persisted blocks. Stored hashes are kept as-is until the
// chain is validated or repaired.
func FromBlocks(blocks []Block, now Clock) *Chain {
	if now == nil {
		now = time.Now
	}
	cp := make([]Block, len(blocks))
	copy(cp, blocks)
	return &Chain{blocks: cp, now: now}
}

// Len returns the number of blocks, genesis included.
func (c *Chain) Len() int { return len(c.blocks) }

// Blocks returns a copy of the blocks.
func (c *Chain) Blocks() []Block {
	cp := make([]Block, len(c.blocks))
	copy(cp, c.blocks)
	return cp
}

// Latest returns the last block. ok is false for an empty chain.
func (c *Chain) Latest() (Block, bool) {
	if len(c.blocks) == 0 {
		return Block{}, false
	}
	return c.blocks[len(c.blocks)-1], true
}

// Add appends a block for fd linked to the latest block.
func (c *Chain) Add(fd FileData) Block {
	prevHash := GenesisPreviousHash
	if latest, ok := c.Latest(); ok {
		prevHash = latest.Hash
	}
	b := NewBlock(len(c.blocks), Timestamp(c.now()), fd, prevHash)
	c.blocks = append(c.blocks, b)
	return b
}

// Truncate drops every block at position n and beyond.
func (c *Chain) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(c.blocks) {
		c.blocks = c.blocks[:n]
	}
}

// Validate returns the first integrity violation, or nil for a valid chain.
func (c *Chain) Validate() *ValidationError {
	return validateBlocks(c.blocks)
}

// Valid is shorthand for Validate() == nil.
func (c *Chain) Valid() bool {
	return c.Validate() == nil
}

// Repair relinks the chain. Chains with at most one block are reset.
// Otherwise block 0 is kept and every later block is rebuilt with a
// sequential index, its original timestamp and payload, and a fresh link.
func (c *Chain) Repair() {
	if len(c.blocks) <= 1 {
		c.Reset()
		return
	}

	rebuilt := make([]Block, 1, len(c.blocks))
	rebuilt[0] = c.blocks[0]
	for i := 1; i < len(c.blocks); i++ {
		cur := c.blocks[i]
		rebuilt = append(rebuilt, NewBlock(i, cur.Timestamp, cur.FileData, rebuilt[i-1].Hash))
	}
	c.blocks = rebuilt
}

// Reset replaces the chain with a single fresh genesis block.
func (c *Chain) Reset() {
	c.blocks = []Block{NewGenesisBlock(Timestamp(c.now()))}
}

// Files lists every block after genesis in chain order.
func (c *Chain) Files() []FileEntry {
	if len(c.blocks) <= 1 {
		return []FileEntry{}
	}
	out := make([]FileEntry, 0, len(c.blocks)-1)
	for _, b := range c.blocks[1:] {
		out = append(out, FileEntry{
			Filename:   b.FileData.Filename,
			FileHash:   b.FileData.FileHash,
			UploadedAt: b.Time(),
			BlockIndex: b.Index,
		})
	}
	return out
}

// FindLatest returns the highest-index block that records filename.
// The genesis placeholder never matches.
func (c *Chain) FindLatest(filename string) (Block, bool) {
	for i := len(c.blocks) - 1; i >= 1; i-- {
		if c.blocks[i].FileData.Filename == filename {
			return c.blocks[i], true
		}
	}
	return Block{}, false
}

// Filenames returns the distinct filenames recorded after genesis, in first-seen order.
func (c *Chain) Filenames() []string {
	seen := make(map[string]struct{})
	var out []string
	for i := 1; i < len(c.blocks); i++ {
		name := c.blocks[i].FileData.Filename
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
