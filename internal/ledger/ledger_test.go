// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/filechain/internal/audit"
	"github.com/ManuGH/filechain/internal/blobstore"
	"github.com/ManuGH/filechain/internal/cache"
	"github.com/ManuGH/filechain/internal/chain"
	"github.com/ManuGH/filechain/internal/chainstore"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// faultyStore wraps a MemoryStore with injectable errors.
type faultyStore struct {
	*chainstore.MemoryStore
	loadErr error
	saveErr error
}

func (s *faultyStore) Load(ctx context.Context) ([]chain.Block, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.MemoryStore.Load(ctx)
}

func (s *faultyStore) Save(ctx context.Context, blocks []chain.Block) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, blocks)
}

type fixture struct {
	svc   *Service
	store *chainstore.MemoryStore
	dir   string
}

func newFixture(t *testing.T, seed []chain.Block) *fixture {
	t.Helper()
	store := chainstore.NewMemoryStore()
	if seed != nil {
		require.NoError(t, store.Save(context.Background(), seed))
	}
	return openFixture(t, store, store)
}

func openFixture(t *testing.T, store chainstore.Store, mem *chainstore.MemoryStore) *fixture {
	t.Helper()
	dir := t.TempDir()
	blobs, err := blobstore.New(dir)
	require.NoError(t, err)

	clock := &tickClock{t: epoch}
	svc, err := Open(context.Background(), Options{
		Store: store,
		Blobs: blobs,
		Clock: clock.Now,
		Audit: audit.NewLoggerWith(zerolog.Nop()),
	})
	require.NoError(t, err)
	return &fixture{svc: svc, store: mem, dir: dir}
}

func digestOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (f *fixture) upload(t *testing.T, name, body string) chain.Block {
	t.Helper()
	b, err := f.svc.Upload(context.Background(), name, strings.NewReader(body))
	require.NoError(t, err)
	return b
}

func tamperedChain(t *testing.T) []chain.Block {
	t.Helper()
	c := chain.New(func() time.Time { return epoch })
	c.Add(chain.FileData{Filename: "a.txt", FileHash: digestOf("a")})
	c.Add(chain.FileData{Filename: "b.txt", FileHash: digestOf("b")})
	blocks := c.Blocks()
	blocks[1].FileData.FileHash = digestOf("forged")
	return blocks
}

func TestOpen_EmptyStoreCreatesGenesis(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, SourceGenesis, f.svc.Source())
	assert.Equal(t, 1, f.store.Saves())
	blocks := f.svc.Blocks(context.Background())
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].IsGenesis())
}

func TestOpen_KeepsInvalidChain(t *testing.T) {
	f := newFixture(t, tamperedChain(t))

	assert.Equal(t, SourceStore, f.svc.Source())
	assert.Equal(t, 1, f.store.Saves(), "only the seeding save")

	ov := f.svc.List(context.Background())
	assert.False(t, ov.Valid)
	assert.Equal(t, []string{"Invalid hash for block 1"}, ov.Errors)
	assert.Equal(t, 3, ov.Blocks)
	assert.Len(t, ov.Files, 2)
}

func TestOpen_CorruptStoreResets(t *testing.T) {
	mem := chainstore.NewMemoryStore()
	store := &faultyStore{MemoryStore: mem, loadErr: chainstore.ErrCorrupt}
	f := openFixture(t, store, mem)

	assert.Equal(t, SourceReset, f.svc.Source())
	assert.Equal(t, 1, mem.Saves())
}

func TestOpen_StrictKeepsCorruptStore(t *testing.T) {
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	mem := chainstore.NewMemoryStore()
	store := &faultyStore{MemoryStore: mem, loadErr: fmt.Errorf("%w: unexpected EOF", chainstore.ErrCorrupt)}

	svc, err := Open(context.Background(), Options{Store: store, Blobs: blobs, Strict: true, Audit: audit.NewLoggerWith(zerolog.Nop())})
	require.ErrorIs(t, err, chainstore.ErrCorrupt)
	assert.Nil(t, svc)
	assert.Zero(t, mem.Saves(), "corrupt store must not be overwritten")
}

func TestOpen_LoadFailurePropagates(t *testing.T) {
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	store := &faultyStore{MemoryStore: chainstore.NewMemoryStore(), loadErr: errors.New("disk on fire")}

	_, err = Open(context.Background(), Options{Store: store, Blobs: blobs, Audit: audit.NewLoggerWith(zerolog.Nop())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")

	_, err = Open(context.Background(), Options{Blobs: blobs})
	assert.Error(t, err)
}

func TestUpload_AppendsAndPersists(t *testing.T) {
	f := newFixture(t, nil)

	b := f.upload(t, "../My Report.pdf", "hello")
	assert.Equal(t, 1, b.Index)
	assert.Equal(t, "My_Report.pdf", b.FileData.Filename)
	assert.Equal(t, digestOf("hello"), b.FileData.FileHash)

	data, err := os.ReadFile(filepath.Join(f.dir, "My_Report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	persisted, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, b, persisted[1])

	ov := f.svc.List(context.Background())
	assert.True(t, ov.Valid)
	assert.Empty(t, ov.Errors)
	require.Len(t, ov.Files, 1)
	assert.Equal(t, chain.FileEntry{
		Filename:   "My_Report.pdf",
		FileHash:   digestOf("hello"),
		UploadedAt: b.Time(),
		BlockIndex: 1,
	}, ov.Files[0])
}

func TestUpload_NoFilename(t *testing.T) {
	f := newFixture(t, nil)
	for _, name := range []string{"", "../..", ".."} {
		_, err := f.svc.Upload(context.Background(), name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrNoFilename, name)
	}
	assert.Equal(t, 1, len(f.svc.Blocks(context.Background())))
}

func TestUpload_InvalidChainRollsBack(t *testing.T) {
	f := newFixture(t, tamperedChain(t))

	_, err := f.svc.Upload(context.Background(), "c.txt", strings.NewReader("c"))
	var invalid *ChainInvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{"Invalid hash for block 1"}, invalid.Errors)
	assert.Equal(t, "Failed to add file to blockchain. Validation errors: Invalid hash for block 1", invalid.Error())

	assert.Len(t, f.svc.Blocks(context.Background()), 3, "append rolled back")
	assert.Equal(t, 1, f.store.Saves(), "nothing persisted")
}

func TestUpload_PersistFailureRollsBack(t *testing.T) {
	mem := chainstore.NewMemoryStore()
	store := &faultyStore{MemoryStore: mem}
	f := openFixture(t, store, mem)

	store.saveErr = errors.New("read-only")
	_, err := f.svc.Upload(context.Background(), "a.txt", strings.NewReader("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
	assert.Len(t, f.svc.Blocks(context.Background()), 1)
}

func TestDownload(t *testing.T) {
	f := newFixture(t, nil)
	f.upload(t, "a.txt", "first")
	latest := f.upload(t, "a.txt", "second")

	dl, err := f.svc.Download(context.Background(), "a.txt")
	require.NoError(t, err, "re-uploaded file verifies against the latest block")
	defer func() { _ = dl.File.Close() }()
	assert.Equal(t, latest, dl.Block)
	body, err := io.ReadAll(dl.File)
	require.NoError(t, err)
	assert.Equal(t, "second", string(body), "handle is rewound after hashing")

	_, err = f.svc.Download(context.Background(), "nope.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = f.svc.Download(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDownload_Tampered(t *testing.T) {
	f := newFixture(t, nil)
	f.upload(t, "a.txt", "original")
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "a.txt"), []byte("evil"), 0o600))

	_, err := f.svc.Download(context.Background(), "a.txt")
	assert.ErrorIs(t, err, ErrIntegrity)

	// A file placed on disk without a block is never served.
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "stray.txt"), []byte("x"), 0o600))
	_, err = f.svc.Download(context.Background(), "stray.txt")
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestVerify(t *testing.T) {
	f := newFixture(t, nil)
	f.upload(t, "a.txt", "a")
	assert.Equal(t, Report{Valid: true, Errors: []string{}}, f.svc.Verify(context.Background()))

	bad := newFixture(t, tamperedChain(t))
	assert.Equal(t, Report{Valid: false, Errors: []string{"Invalid hash for block 1"}}, bad.svc.Verify(context.Background()))

	valid, problems := bad.svc.Valid(context.Background())
	assert.False(t, valid)
	assert.Len(t, problems, 1)
}

func TestRepair(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.Repair(context.Background())
	require.NoError(t, err)
	assert.True(t, res.AlreadyValid)
	assert.Equal(t, 1, f.store.Saves())

	bad := newFixture(t, tamperedChain(t))
	res, err = bad.svc.Repair(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RepairResult{
		Repaired:        true,
		PreviousErrors:  []string{"Invalid hash for block 1"},
		RemainingErrors: []string{},
	}, res)
	assert.Equal(t, 2, bad.store.Saves())
	assert.True(t, bad.svc.Verify(context.Background()).Valid)
}

func TestRepair_BrokenGenesisRemainsInvalid(t *testing.T) {
	blocks := tamperedChain(t)
	blocks[0].PreviousHash = "x"
	f := newFixture(t, blocks)

	res, err := f.svc.Repair(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Repaired)
	assert.Equal(t, []string{"Invalid genesis block"}, res.RemainingErrors)
}

func TestReset(t *testing.T) {
	f := newFixture(t, nil)
	f.upload(t, "a.txt", "a")
	f.upload(t, "b.txt", "b")

	require.NoError(t, f.svc.Reset(context.Background()))
	blocks := f.svc.Blocks(context.Background())
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].IsGenesis())

	persisted, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
	assert.FileExists(t, filepath.Join(f.dir, "a.txt"), "stored files survive a reset")
}

func TestAuditFiles(t *testing.T) {
	f := newFixture(t, nil)
	f.upload(t, "ok.txt", "fine")
	f.upload(t, "bad.txt", "original")
	f.upload(t, "gone.txt", "bye")

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "bad.txt"), []byte("changed"), 0o600))
	require.NoError(t, os.Remove(filepath.Join(f.dir, "gone.txt")))

	results, err := f.svc.AuditFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, FileStatus{Filename: "ok.txt", Status: StatusOK, Expected: digestOf("fine"), Actual: digestOf("fine"), BlockIndex: 1}, results[0])
	assert.Equal(t, StatusTampered, results[1].Status)
	assert.Equal(t, digestOf("changed"), results[1].Actual)
	assert.Equal(t, FileStatus{Filename: "gone.txt", Status: StatusMissing, Expected: digestOf("bye"), BlockIndex: 3}, results[2])
}

func TestChecks_CachedDigestDoesNotHideRewrite(t *testing.T) {
	dir := t.TempDir()
	blobs, err := blobstore.New(dir, blobstore.WithDigestCache(cache.NewMemoryCache(0), time.Hour))
	require.NoError(t, err)
	clock := &tickClock{t: epoch}
	svc, err := Open(context.Background(), Options{
		Store: chainstore.NewMemoryStore(),
		Blobs: blobs,
		Clock: clock.Now,
		Audit: audit.NewLoggerWith(zerolog.Nop()),
	})
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), "ledger.txt", strings.NewReader("pay alice 100"))
	require.NoError(t, err)
	st, err := svc.CheckFile(context.Background(), "ledger.txt")
	require.NoError(t, err)
	require.Equal(t, StatusOK, st.Status)

	path := filepath.Join(dir, "ledger.txt")
	before, err := os.Stat(path)
	require.NoError(t, err)
	// The status change time advances with the kernel tick.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("pay mallo 900"), 0o600))
	require.NoError(t, os.Chtimes(path, before.ModTime(), before.ModTime()))

	st, err = svc.CheckFile(context.Background(), "ledger.txt")
	require.NoError(t, err)
	assert.Equal(t, StatusTampered, st.Status)
	assert.Equal(t, digestOf("pay mallo 900"), st.Actual)

	results, err := svc.AuditFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusTampered, results[0].Status)
}

func TestCheckFile(t *testing.T) {
	f := newFixture(t, nil)
	f.upload(t, "a.txt", "a")

	st, err := f.svc.CheckFile(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st.Status)

	st, err = f.svc.CheckFile(context.Background(), "other.txt")
	require.NoError(t, err)
	assert.Equal(t, StatusUntracked, st.Status)
}

func TestDownload_ConcurrentReuploadIsNotTampering(t *testing.T) {
	f := newFixture(t, nil)
	f.upload(t, "shared.txt", "v0")

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := range 10 {
				_, err := f.svc.Upload(context.Background(), "shared.txt", strings.NewReader(strings.Repeat("v", i*10+j+1)))
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for range 10 {
				dl, err := f.svc.Download(context.Background(), "shared.txt")
				if !assert.NoError(t, err) {
					continue
				}
				_ = dl.File.Close()
			}
		}()
	}
	wg.Wait()
}

func TestConcurrentUploads(t *testing.T) {
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Upload(context.Background(), "shared.txt", strings.NewReader(strings.Repeat("x", i+1)))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.svc.Blocks(context.Background()), 9)
	assert.True(t, f.svc.Verify(context.Background()).Valid)
	_, err := f.svc.Download(context.Background(), "shared.txt")
	assert.NoError(t, err, "stored bytes match the latest block")
}
