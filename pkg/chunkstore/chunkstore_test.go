package chunkstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meshstore/netup/pkg/chunk"
)

func TestManagerChunkAndStateTransitions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	srcPath := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(srcPath, []byte("abcdefghijklmnopqrst"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	chunker := chunk.NewFixedSizeChunker(store.chunksDir(), 8)
	mgr := NewManager(store)

	entry, err := mgr.Chunk(srcPath, chunker)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(entry.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(entry.Chunks))
	}

	if mgr.IsEmpty() {
		t.Fatal("expected non-empty (pending chunks present)")
	}

	pending := mgr.GetChunks(chunk.StatePending)
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending chunks, got %d", len(pending))
	}

	var addrs []chunk.Address
	for _, p := range pending {
		addrs = append(addrs, p.Address)
	}

	mgr.MarkInFlight(addrs...)
	if len(mgr.GetChunks(chunk.StateInFlight)) != 3 {
		t.Fatal("expected 3 in-flight chunks")
	}

	mgr.MarkCompleted(addrs...)
	if !mgr.IsEmpty() {
		t.Fatal("expected empty after all chunks completed")
	}

	already := mgr.AlreadyPutChunks()
	if len(already) != 3 {
		t.Fatalf("expected 3 already-put chunks, got %d", len(already))
	}

	verified := mgr.VerifiedFiles()
	if len(verified) != 1 || verified[0].Filename != "a.txt" {
		t.Fatalf("expected a.txt verified, got %v", verified)
	}

	readBack, err := store.GetFileEntry(entry.Root)
	if err != nil {
		t.Fatalf("GetFileEntry: %v", err)
	}
	if readBack.Filename != "a.txt" || len(readBack.Chunks) != 3 {
		t.Fatalf("unexpected readback: %+v", readBack)
	}
}

func TestManagerRebuildsCompletedStateAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	srcPath := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(srcPath, []byte("abcdefghijklmnopqrst"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	chunker := chunk.NewFixedSizeChunker(store.chunksDir(), 8)

	// First process: chunk and record a completed upload.
	first := NewManager(store)
	entry, err := first.Chunk(srcPath, chunker)
	if err != nil {
		t.Fatalf("Chunk (first run): %v", err)
	}
	first.MarkCompleted(entry.Chunks...)

	// Second process, same Store, fresh in-memory Manager: re-chunking
	// the same content must see it as already stored, not Pending.
	second := NewManager(store)
	if _, err := second.Chunk(srcPath, chunker); err != nil {
		t.Fatalf("Chunk (second run): %v", err)
	}

	if !second.IsEmpty() {
		t.Error("expected resumed manager to have no Pending chunks")
	}
	if len(second.AlreadyPutChunks()) != len(entry.Chunks) {
		t.Errorf("expected all %d chunks marked Completed on resume, got %d",
			len(entry.Chunks), len(second.AlreadyPutChunks()))
	}
}

func TestManagerFreshFileStaysPending(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	srcPath := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(srcPath, make([]byte, 20), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	chunker := chunk.NewFixedSizeChunker(store.chunksDir(), 8)

	mgr := NewManager(store)
	if _, err := mgr.Chunk(srcPath, chunker); err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	if mgr.IsEmpty() {
		t.Error("expected a never-before-seen file to register as Pending")
	}
	if len(mgr.AlreadyPutChunks()) != 0 {
		t.Error("expected no chunks marked Completed for a brand new file")
	}
}

func TestManagerDemoteToPending(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	mgr := NewManager(store)

	addr := chunk.NewAddress([]byte("x"))
	mgr.MarkCompleted(addr)
	if len(mgr.AlreadyPutChunks()) != 1 {
		t.Fatal("expected completed chunk registered")
	}

	mgr.DemoteToPending(addr)
	if len(mgr.AlreadyPutChunks()) != 0 {
		t.Fatal("expected chunk demoted out of completed set")
	}
}
