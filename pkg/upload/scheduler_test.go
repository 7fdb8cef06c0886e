package upload

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/chunkerr"
	"github.com/meshstore/netup/pkg/chunkstore"
	"github.com/meshstore/netup/pkg/config"
	"github.com/meshstore/netup/pkg/netclient"
	"github.com/meshstore/netup/pkg/progress"
	"github.com/meshstore/netup/pkg/walletpay"
)

func newTestEnv(t *testing.T, batchSize int) (*chunkstore.Store, *chunkstore.Manager, *walletpay.MockGateway, *netclient.Mock) {
	t.Helper()
	store, err := chunkstore.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	manager := chunkstore.NewManager(store)
	gateway := walletpay.NewMockGateway(1_000_000, 10, 1)
	network := netclient.NewMock(gateway)
	return store, manager, gateway, network
}

func writeAndChunkFile(t *testing.T, dir string, manager *chunkstore.Manager, name string, data []byte) chunk.FileEntry {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	chunker := chunk.NewFixedSizeChunker(filepath.Join(manager.Store().Root, "chunks"), 4)
	entry, err := manager.Chunk(path, chunker)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	return entry
}

func TestSchedulerHappyPath(t *testing.T) {
	dir := t.TempDir()
	store, manager, _, network := newTestEnv(t, 4)
	writeAndChunkFile(t, dir, manager, "hello.txt", []byte("hello world\n"))

	cfg := config.DefaultConfig()
	cfg.BatchSize = 4
	sched := NewScheduler(cfg, manager, network.Gateway(), network, store, &progress.Reporter{})

	result, err := sched.Run(context.Background(), false, false, 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ChunksUploaded == 0 {
		t.Fatal("expected at least one chunk uploaded")
	}
	if !manager.IsEmpty() {
		t.Error("expected no Pending chunks after a successful run")
	}
	if len(manager.VerifiedFiles()) != 1 {
		t.Errorf("expected exactly one verified file, got %d", len(manager.VerifiedFiles()))
	}
}

func TestSchedulerSkipsAlreadyStoredChunks(t *testing.T) {
	dir := t.TempDir()
	store, manager, gateway, network := newTestEnv(t, 4)
	entry := writeAndChunkFile(t, dir, manager, "hello.txt", []byte("hello world\n"))

	gateway.MarkStored(entry.Chunks[0])

	cfg := config.DefaultConfig()
	cfg.BatchSize = 4
	sched := NewScheduler(cfg, manager, gateway, network, store, &progress.Reporter{})

	result, err := sched.Run(context.Background(), false, false, 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExistingChunks != 1 {
		t.Errorf("expected 1 existing chunk, got %d", result.ExistingChunks)
	}
	if _, err := network.ReadBytes(context.Background(), entry.Chunks[0]); err == nil {
		t.Error("expected skipped chunk to never have been uploaded to the network")
	}
}

func TestSchedulerMissingChunkOnDiskSucceedsWithWarning(t *testing.T) {
	dir := t.TempDir()
	store, manager, _, network := newTestEnv(t, 4)
	entry := writeAndChunkFile(t, dir, manager, "hello.txt", []byte("hello world\n"))

	if err := os.Remove(store.ChunkPath(entry.Chunks[0])); err != nil {
		t.Fatalf("remove chunk file: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.BatchSize = 4
	sched := NewScheduler(cfg, manager, network.Gateway(), network, store, &progress.Reporter{})

	_, err := sched.Run(context.Background(), false, false, 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(manager.VerifiedFiles()) != 1 {
		t.Error("expected file to still verify despite a missing chunk on disk")
	}
}

func TestSchedulerRetriesFailedUpload(t *testing.T) {
	dir := t.TempDir()
	store, manager, gateway, network := newTestEnv(t, 4)
	entry := writeAndChunkFile(t, dir, manager, "hello.txt", []byte("hello world\n"))

	network.FailPutNext[entry.Chunks[0]] = errTransient{}

	cfg := config.DefaultConfig()
	cfg.BatchSize = 4
	sched := NewScheduler(cfg, manager, gateway, network, store, &progress.Reporter{})

	_, err := sched.Run(context.Background(), false, false, 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !manager.IsEmpty() {
		t.Error("expected every chunk Completed after retries")
	}
}

type errTransient struct{}

func (errTransient) Error() string { return "transient network error" }

func TestSchedulerAbortsOnTooManySequentialPaymentFails(t *testing.T) {
	dir := t.TempDir()
	store, manager, _, network := newTestEnv(t, 1)
	// Four 4-byte chunks so batch_size=1 yields four separate batches.
	writeAndChunkFile(t, dir, manager, "hello.txt", []byte("abcdefghijklmnop"))

	gateway := &alwaysSoftFailGateway{}
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1
	cfg.MaxSequentialPaymentFails = 3
	sched := NewScheduler(cfg, manager, gateway, network, store, &progress.Reporter{})

	_, err := sched.Run(context.Background(), false, false, 3)
	if err == nil {
		t.Fatal("expected an error after three sequential soft payment failures")
	}
	uploadErr, ok := err.(*chunkerr.UploadError)
	if !ok {
		t.Fatalf("expected *chunkerr.UploadError, got %T: %v", err, err)
	}
	if uploadErr.Code != chunkerr.CodeTooManyPaymentFails {
		t.Errorf("expected CodeTooManyPaymentFails, got %v", uploadErr.Code)
	}
	if len(network.Held()) != 0 {
		t.Error("expected no chunk to have been dispatched before the abort")
	}
}

type alwaysSoftFailGateway struct{}

func (alwaysSoftFailGateway) PayFor(ctx context.Context, addrs []chunk.Address) (walletpay.NanoTokens, walletpay.NanoTokens, walletpay.NanoTokens, []chunk.Address, error) {
	return 0, 0, 0, nil, &walletpay.PaymentError{Kind: walletpay.FailCouldNotVerifyTransfer}
}

func TestSchedulerBackpressureNeverExceedsBatchSize(t *testing.T) {
	dir := t.TempDir()
	store, manager, gateway, network := newTestEnv(t, 2)

	data := make([]byte, 64)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	writeAndChunkFile(t, dir, manager, "big.bin", data)

	const batchSize = 2
	tracker := &concurrencyTracker{network: network, limit: batchSize}

	cfg := config.DefaultConfig()
	cfg.BatchSize = batchSize
	sched := NewScheduler(cfg, manager, gateway, tracker, store, &progress.Reporter{})

	_, err := sched.Run(context.Background(), false, false, 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tracker.maxConcurrent > batchSize {
		t.Errorf("observed %d concurrent uploads, want <= %d", tracker.maxConcurrent, batchSize)
	}
}

// concurrencyTracker wraps a NetworkClient and records the maximum number
// of concurrent PutChunk calls observed.
type concurrencyTracker struct {
	network       netclient.NetworkClient
	limit         int
	mu            sync.Mutex
	active        int
	maxConcurrent int
}

func (c *concurrencyTracker) PayForChunks(ctx context.Context, addrs []chunk.Address) (walletpay.NanoTokens, walletpay.NanoTokens, walletpay.NanoTokens, []chunk.Address, error) {
	return c.network.PayForChunks(ctx, addrs)
}

func (c *concurrencyTracker) PutChunk(ctx context.Context, ch chunk.Chunk) error {
	c.mu.Lock()
	c.active++
	if c.active > c.maxConcurrent {
		c.maxConcurrent = c.active
	}
	c.mu.Unlock()

	err := c.network.PutChunk(ctx, ch)

	c.mu.Lock()
	c.active--
	c.mu.Unlock()

	return err
}

func (c *concurrencyTracker) VerifyUploadedChunks(ctx context.Context, addrs []chunk.Address) ([]chunk.Address, error) {
	return c.network.VerifyUploadedChunks(ctx, addrs)
}

func (c *concurrencyTracker) ReadBytes(ctx context.Context, addr chunk.Address) ([]byte, error) {
	return c.network.ReadBytes(ctx, addr)
}

func (c *concurrencyTracker) Holders(ctx context.Context, addr chunk.Address) ([]string, error) {
	return c.network.Holders(ctx, addr)
}
