// SPDX-License-Identifier: MIT

package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() Clock {
	t := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestCanonicalPayload_Layout(t *testing.T) {
	got := string(canonicalPayload(3, 1700000000.25, FileData{Filename: "a.txt", FileHash: "abc"}, "prev"))
	want := `{"file_data": {"file_hash": "abc", "filename": "a.txt"}, "index": 3, "previous_hash": "prev", "timestamp": 1700000000.25}`
	assert.Equal(t, want, got)
}

func TestCanonicalPayload_Escapes(t *testing.T) {
	got := string(canonicalPayload(1, 1, FileData{Filename: "café \"x\"\\\n\U0001F600", FileHash: "h"}, "p"))
	assert.Contains(t, got, `"filename": "caf\u00e9 \"x\"\\\n\ud83d\ude00"`)
	assert.Contains(t, got, `"timestamp": 1.0}`)
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1700000000, "1700000000.0"},
		{1700000000.123456, "1700000000.123456"},
		{0, "0.0"},
		{0.0001, "0.0001"},
		{0.00001, "1e-05"},
		{1e16, "1e+16"},
		{-2.5, "-2.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatFloat(tt.in), "input %v", tt.in)
	}
}

func TestCalculateHash_MatchesCanonicalSHA256(t *testing.T) {
	b := Block{Index: 1, Timestamp: 1700000000.5, FileData: FileData{Filename: "x.bin", FileHash: "ff"}, PreviousHash: "0"}
	sum := sha256.Sum256([]byte(`{"file_data": {"file_hash": "ff", "filename": "x.bin"}, "index": 1, "previous_hash": "0", "timestamp": 1700000000.5}`))
	assert.Equal(t, hex.EncodeToString(sum[:]), b.CalculateHash())

	b.Hash = "ignored"
	assert.Equal(t, hex.EncodeToString(sum[:]), b.CalculateHash(), "stored hash must not feed the digest")
}

// Digests recorded by ledgers that serialise with Python's
// json.dumps(sort_keys=True).
func TestCalculateHash_RecordedLedgerVectors(t *testing.T) {
	tests := []struct {
		name  string
		block Block
		want  string
	}{
		{
			name:  "genesis",
			block: Block{Index: 0, Timestamp: 1700000000.123456, FileData: FileData{Filename: "genesis", FileHash: "0"}, PreviousHash: "0"},
			want:  "792b6b148a3230f41695807d3fe86c4183ab7bc081321242e59ddce9eaaaf3d5",
		},
		{
			name: "integral timestamp",
			block: Block{Index: 1, Timestamp: 1700000000, PreviousHash: strings.Repeat("0", 64), FileData: FileData{
				Filename: "report.pdf", FileHash: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			}},
			want: "ef01a73f8e5fb64cda1d8127daedf123ea7b84ee546e6e21c674f5136931b16f",
		},
		{
			name:  "non-ASCII filename",
			block: Block{Index: 2, Timestamp: 1714564800.25, FileData: FileData{Filename: "café résumé.txt", FileHash: "ab"}, PreviousHash: strings.Repeat("1", 64)},
			want:  "894d5507b53a04b240d79639d1d27bc254d4d6b4d800eed3572bb09b101a2846",
		},
		{
			name:  "astral filename and exponent timestamp",
			block: Block{Index: 3, Timestamp: 1e16, FileData: FileData{Filename: "\U0001F600 smile.png", FileHash: "cd"}, PreviousHash: strings.Repeat("2", 64)},
			want:  "1ff3afec2da0a484917abff0ba0a186b4bbcb583c1f0791a6c8df743253ac1ff",
		},
		{
			name:  "escapes and small exponent",
			block: Block{Index: 4, Timestamp: 1.5e-05, FileData: FileData{Filename: "tab\tquote\"back\\slash", FileHash: "ef"}, PreviousHash: strings.Repeat("3", 64)},
			want:  "8b4a81190af297f799bb600afef8297cc2eedc0cc5fe03b6cea24e1686243253",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.block.CalculateHash())
		})
	}
}

func TestNew_HasValidGenesis(t *testing.T) {
	c := New(fixedClock())
	require.Equal(t, 1, c.Len())

	g, ok := c.Latest()
	require.True(t, ok)
	assert.True(t, g.IsGenesis())
	assert.Equal(t, GenesisFilename, g.FileData.Filename)
	assert.Equal(t, "0", g.FileData.FileHash)
	assert.Equal(t, g.CalculateHash(), g.Hash)
	assert.Nil(t, c.Validate())
	assert.Empty(t, c.Files())
}

func TestAdd_LinksBlocks(t *testing.T) {
	c := New(fixedClock())
	b1 := c.Add(FileData{Filename: "a.txt", FileHash: "h1"})
	b2 := c.Add(FileData{Filename: "b.txt", FileHash: "h2"})

	blocks := c.Blocks()
	assert.Equal(t, 1, b1.Index)
	assert.Equal(t, 2, b2.Index)
	assert.Equal(t, blocks[0].Hash, b1.PreviousHash)
	assert.Equal(t, b1.Hash, b2.PreviousHash)
	assert.Greater(t, b2.Timestamp, b1.Timestamp)
	assert.True(t, c.Valid())

	files := c.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Filename)
	assert.Equal(t, "h1", files[0].FileHash)
	assert.Equal(t, 1, files[0].BlockIndex)
}

func TestValidate_Violations(t *testing.T) {
	build := func() []Block {
		c := New(fixedClock())
		c.Add(FileData{Filename: "a", FileHash: "1"})
		c.Add(FileData{Filename: "b", FileHash: "2"})
		return c.Blocks()
	}

	tests := []struct {
		name    string
		mutate  func([]Block) []Block
		wantMsg string
	}{
		{
			name:    "empty",
			mutate:  func([]Block) []Block { return nil },
			wantMsg: "Blockchain is empty",
		},
		{
			name: "genesis index",
			mutate: func(b []Block) []Block {
				b[0].Index = 7
				return b
			},
			wantMsg: "Invalid genesis block",
		},
		{
			name: "genesis previous hash",
			mutate: func(b []Block) []Block {
				b[0].PreviousHash = "x"
				return b
			},
			wantMsg: "Invalid genesis block",
		},
		{
			name: "tampered payload",
			mutate: func(b []Block) []Block {
				b[1].FileData.FileHash = "evil"
				return b
			},
			wantMsg: "Invalid hash for block 1",
		},
		{
			name: "broken link",
			mutate: func(b []Block) []Block {
				b[2] = NewBlock(2, b[2].Timestamp, b[2].FileData, "not-the-previous")
				return b
			},
			wantMsg: "Invalid previous hash reference in block 2",
		},
		{
			name: "non sequential index",
			mutate: func(b []Block) []Block {
				b[2] = NewBlock(5, b[2].Timestamp, b[2].FileData, b[1].Hash)
				return b
			},
			wantMsg: "Non-sequential block index at position 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := FromBlocks(tt.mutate(build()), fixedClock())
			verr := c.Validate()
			require.NotNil(t, verr)
			assert.Equal(t, tt.wantMsg, verr.Error())
			assert.False(t, c.Valid())
		})
	}
}

func TestValidate_GenesisHashNotRecomputed(t *testing.T) {
	c := New(fixedClock())
	blocks := c.Blocks()
	blocks[0].Hash = "whatever"
	// Only the genesis sentinel fields are checked.
	assert.Nil(t, FromBlocks(blocks, nil).Validate())
}

func TestRepair_RelinksTamperedChain(t *testing.T) {
	c := New(fixedClock())
	c.Add(FileData{Filename: "a", FileHash: "1"})
	c.Add(FileData{Filename: "b", FileHash: "2"})
	c.Add(FileData{Filename: "c", FileHash: "3"})

	blocks := c.Blocks()
	blocks[1].FileData.FileHash = "changed"
	blocks[3].Index = 9

	broken := FromBlocks(blocks, fixedClock())
	require.NotNil(t, broken.Validate())

	broken.Repair()
	require.Nil(t, broken.Validate())

	repaired := broken.Blocks()
	require.Len(t, repaired, 4)
	assert.Equal(t, blocks[0], repaired[0], "genesis is kept verbatim")
	for i := 1; i < len(repaired); i++ {
		assert.Equal(t, i, repaired[i].Index)
		assert.Equal(t, blocks[i].Timestamp, repaired[i].Timestamp)
		assert.Equal(t, blocks[i].FileData, repaired[i].FileData)
	}
}

func TestRepair_ValidChainIsUnchanged(t *testing.T) {
	c := New(fixedClock())
	c.Add(FileData{Filename: "a", FileHash: "1"})
	before := c.Blocks()

	c.Repair()

	if diff := cmp.Diff(before, c.Blocks()); diff != "" {
		t.Fatalf("repair changed a valid chain (-before +after):\n%s", diff)
	}
}

func TestRepair_ShortChainResets(t *testing.T) {
	c := FromBlocks(nil, fixedClock())
	c.Repair()
	require.Equal(t, 1, c.Len())
	assert.True(t, c.Valid())

	g := NewGenesisBlock(1)
	g.Index = 4
	c = FromBlocks([]Block{g}, fixedClock())
	c.Repair()
	assert.True(t, c.Valid())
}

func TestRepair_InvalidGenesisRemainsInvalid(t *testing.T) {
	c := New(fixedClock())
	c.Add(FileData{Filename: "a", FileHash: "1"})
	blocks := c.Blocks()
	blocks[0].PreviousHash = "bogus"

	broken := FromBlocks(blocks, fixedClock())
	broken.Repair()

	verr := broken.Validate()
	require.NotNil(t, verr)
	assert.Equal(t, ViolationGenesis, verr.Kind)
}

func TestReset(t *testing.T) {
	c := New(fixedClock())
	c.Add(FileData{Filename: "a", FileHash: "1"})
	c.Reset()
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Valid())
}

func TestFindLatestAndFilenames(t *testing.T) {
	c := New(fixedClock())
	c.Add(FileData{Filename: "a", FileHash: "1"})
	c.Add(FileData{Filename: "b", FileHash: "2"})
	c.Add(FileData{Filename: "a", FileHash: "3"})

	b, ok := c.FindLatest("a")
	require.True(t, ok)
	assert.Equal(t, "3", b.FileData.FileHash)
	assert.Equal(t, 3, b.Index)

	_, ok = c.FindLatest(GenesisFilename)
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, c.Filenames())
}

func TestTruncate(t *testing.T) {
	c := New(fixedClock())
	c.Add(FileData{Filename: "a", FileHash: "1"})
	c.Add(FileData{Filename: "b", FileHash: "2"})
	c.Truncate(2)
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Valid())
}

func TestBlockTime(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := NewBlock(1, Timestamp(ts), FileData{}, "x")
	assert.True(t, ts.Equal(b.Time()))
}

func TestMessages(t *testing.T) {
	msgs := Messages([]*ValidationError{{Kind: ViolationHash, Position: 2}})
	assert.Equal(t, []string{"Invalid hash for block 2"}, msgs)
}
