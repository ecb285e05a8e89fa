// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/filechain/internal/blobstore"
	"github.com/ManuGH/filechain/internal/chain"
	"github.com/ManuGH/filechain/internal/chainstore"
	"github.com/ManuGH/filechain/internal/ledger"
)

func runCtl(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("FILECHAIN_SECRET_KEY", "ctl-test-secret-key")
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--data", dataDir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seedLedger uploads files through the ledger into dataDir's default JSON store.
func seedLedger(t *testing.T, dataDir string, files map[string]string) {
	t.Helper()
	store, err := chainstore.Open(chainstore.Config{
		Backend: chainstore.BackendJSON,
		Path:    chainstore.DefaultPath(chainstore.BackendJSON, dataDir),
	})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	blobs, err := blobstore.New(filepath.Join(dataDir, "uploads"))
	require.NoError(t, err)
	svc, err := ledger.Open(context.Background(), ledger.Options{Store: store, Blobs: blobs})
	require.NoError(t, err)
	for name, body := range files {
		_, err := svc.Upload(context.Background(), name, strings.NewReader(body))
		require.NoError(t, err)
	}
}

func writeTamperedChain(t *testing.T, dataDir string) {
	t.Helper()
	c := chain.New(func() time.Time { return time.Unix(1714564800, 0) })
	c.Add(chain.FileData{Filename: "a.txt", FileHash: strings.Repeat("a", 64)})
	c.Add(chain.FileData{Filename: "b.txt", FileHash: strings.Repeat("b", 64)})
	blocks := c.Blocks()
	// Rehashed so the broken link, not the hash, is the first violation.
	blocks[2] = chain.NewBlock(2, blocks[2].Timestamp, blocks[2].FileData, strings.Repeat("0", 64))
	data, err := json.MarshalIndent(blocks, "", "    ")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dataDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "blockchain.json"), data, 0o600))
}

func TestList(t *testing.T) {
	dir := t.TempDir()

	out, err := runCtl(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1 blocks, chain valid")
	assert.FileExists(t, filepath.Join(dir, "blockchain.json"), "genesis is persisted on first open")

	seedLedger(t, dir, map[string]string{"notes.txt": "hello"})
	out, err = runCtl(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "2 blocks, chain valid")

	out, err = runCtl(t, dir, "list", "--json")
	require.NoError(t, err)
	var ov ledger.Overview
	require.NoError(t, json.Unmarshal([]byte(out), &ov))
	require.Len(t, ov.Files, 1)
	assert.Equal(t, "notes.txt", ov.Files[0].Filename)
}

func TestVerify_Files(t *testing.T) {
	dir := t.TempDir()
	seedLedger(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta"})

	out, err := runCtl(t, dir, "verify", "--files")
	require.NoError(t, err)
	assert.Contains(t, out, "Blockchain integrity verified. All data is intact.")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "b.txt"), []byte("BETA"), 0o600))
	require.NoError(t, os.Remove(filepath.Join(dir, "uploads", "a.txt")))

	out, err = runCtl(t, dir, "verify", "--files")
	require.ErrorIs(t, err, errFilesFailed)
	assert.Contains(t, out, ledger.StatusTampered)
	assert.Contains(t, out, ledger.StatusMissing)
}

func TestVerifyAndRepair_InvalidChain(t *testing.T) {
	dir := t.TempDir()
	writeTamperedChain(t, dir)

	out, err := runCtl(t, dir, "verify")
	require.ErrorIs(t, err, errChainInvalid)
	assert.Contains(t, out, "Issues detected: Invalid previous hash reference in block 2")

	out, err = runCtl(t, dir, "repair")
	require.NoError(t, err)
	assert.Contains(t, out, "Blockchain has been successfully repaired. Previous issues: Invalid previous hash reference in block 2")

	out, err = runCtl(t, dir, "repair")
	require.NoError(t, err)
	assert.Contains(t, out, "Blockchain is already valid. No repair needed.")

	_, err = runCtl(t, dir, "verify")
	require.NoError(t, err)
}

func TestCorruptStoreIsNotOverwritten(t *testing.T) {
	dir := t.TempDir()
	seedLedger(t, dir, map[string]string{"a.txt": "alpha"})
	path := filepath.Join(dir, "blockchain.json")
	full, err := os.ReadFile(path)
	require.NoError(t, err)
	truncated := full[:len(full)/2]
	require.NoError(t, os.WriteFile(path, truncated, 0o600))

	for _, args := range [][]string{{"list"}, {"verify"}, {"verify", "--files"}, {"repair"}} {
		out, err := runCtl(t, dir, args...)
		require.ErrorIs(t, err, chainstore.ErrCorrupt, args)
		assert.Contains(t, err.Error(), "store-check", args)
		assert.NotContains(t, out, "All data is intact", args)

		onDisk, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, truncated, onDisk, "%v left the store untouched", args)
	}

	_, err = runCtl(t, dir, "store-check")
	require.ErrorIs(t, err, errStoreCorrupt)

	_, err = runCtl(t, dir, "reset", "--force")
	require.NoError(t, err)
	out, err := runCtl(t, dir, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "All data is intact")
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	seedLedger(t, dir, map[string]string{"a.txt": "alpha"})

	_, err := runCtl(t, dir, "reset")
	require.ErrorIs(t, err, errNeedForce)

	out, err := runCtl(t, dir, "reset", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Blockchain has been reset to initial state.")

	out, err = runCtl(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1 blocks, chain valid")
	assert.FileExists(t, filepath.Join(dir, "uploads", "a.txt"), "reset keeps stored files")
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	seedLedger(t, dir, map[string]string{"a.txt": "alpha"})

	out, err := runCtl(t, dir, "export")
	require.NoError(t, err)
	var blocks []chain.Block
	require.NoError(t, json.Unmarshal([]byte(out), &blocks))
	require.Len(t, blocks, 2)
	assert.Equal(t, "a.txt", blocks[1].FileData.Filename)

	target := filepath.Join(t.TempDir(), "chain.json")
	_, err = runCtl(t, dir, "export", "--out", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))
}

func TestMigrateAndStoreCheck(t *testing.T) {
	dir := t.TempDir()
	seedLedger(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta"})

	_, err := runCtl(t, dir, "migrate", "--to", "memory")
	require.Error(t, err)

	_, err = runCtl(t, dir, "migrate", "--to", "json")
	require.ErrorContains(t, err, "same store")

	out, err := runCtl(t, dir, "migrate", "--to", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated 3 blocks from json")
	assert.NotContains(t, out, "warning")

	out, err = runCtl(t, dir, "--backend", "sqlite", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "3 blocks, chain valid")

	out, err = runCtl(t, dir, "--backend", "sqlite", "store-check", "--full")
	require.NoError(t, err)
	assert.Contains(t, out, "Store ok: 3 blocks decoded.")

	boltPath := filepath.Join(t.TempDir(), "chain.bolt")
	out, err = runCtl(t, dir, "migrate", "--to", "bolt", "--to-path", boltPath)
	require.NoError(t, err)
	assert.Contains(t, out, boltPath)

	out, err = runCtl(t, dir, "--backend", "bolt", "--store-path", boltPath, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "All data is intact")
}

func TestStoreCheck_Empty(t *testing.T) {
	dir := t.TempDir()
	out, err := runCtl(t, dir, "store-check")
	require.NoError(t, err)
	assert.Contains(t, out, "Store is empty.")
}
