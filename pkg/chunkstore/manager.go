package chunkstore

import (
	"fmt"
	"sync"

	"github.com/meshstore/netup/pkg/chunk"
)

// Manager tracks ChunkState for every chunk discovered in a run and
// exposes the operations the scheduler and verifier need, on top of a
// Store that owns the actual bytes on disk.
type Manager struct {
	store *Store

	mu      sync.Mutex
	state   map[chunk.Address]chunk.ChunkState
	paths   map[chunk.Address]string
	files   []chunk.FileEntry
}

// NewManager returns a Manager backed by store.
func NewManager(store *Store) *Manager {
	return &Manager{
		store: store,
		state: make(map[chunk.Address]chunk.ChunkState),
		paths: make(map[chunk.Address]string),
	}
}

// Chunk splits the file at path with chunker, persists the resulting
// FileEntry and chunk bytes, and registers every component address
// (unless already known this run).
//
// A root address is content-derived, so a file chunked before in a
// prior process carries the same root. If the store already holds a
// FileEntry for this root (written by that prior run, before this call
// overwrites it), every address it lists that still has bytes on disk
// is registered Completed rather than Pending: the chunk store is
// reconstructing its view of a previously-uploaded file, not starting
// one. The verifier reconciles that optimistic guess against the
// network before any chunk is trusted.
func (m *Manager) Chunk(path string, chunker chunk.Chunker) (chunk.FileEntry, error) {
	entry, refs, err := chunker.ChunkFile(path)
	if err != nil {
		return chunk.FileEntry{}, fmt.Errorf("chunkstore: chunk %s: %w", path, err)
	}

	_, getErr := m.store.GetFileEntry(entry.Root)
	seenBefore := getErr == nil

	if err := m.store.PutFileEntry(entry); err != nil {
		return chunk.FileEntry{}, err
	}

	m.mu.Lock()
	for _, ref := range refs {
		if _, known := m.state[ref.Address]; known {
			m.paths[ref.Address] = ref.Path
			continue
		}
		if seenBefore && m.store.HasChunk(ref.Address) {
			m.state[ref.Address] = chunk.StateCompleted
		} else {
			m.state[ref.Address] = chunk.StatePending
		}
		m.paths[ref.Address] = ref.Path
	}
	m.files = append(m.files, entry)
	m.mu.Unlock()

	return entry, nil
}

// AlreadyPutChunks returns the addresses currently marked Completed.
func (m *Manager) AlreadyPutChunks() []chunk.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chunk.Address
	for addr, st := range m.state {
		if st == chunk.StateCompleted {
			out = append(out, addr)
		}
	}
	return out
}

// IsEmpty reports whether no chunk remains Pending — i.e. every known
// chunk is believed Completed (or InFlight, which should not happen
// between runs). The CLI and verify.Reconcile use this at resume time
// to decide whether the verifier pass must run instead of a fresh
// upload pass.
func (m *Manager) IsEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.state {
		if st == chunk.StatePending {
			return false
		}
	}
	return true
}

// GetChunks returns ChunkRefs for every address currently in state st.
func (m *Manager) GetChunks(st chunk.ChunkState) []chunk.ChunkRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chunk.ChunkRef
	for addr, s := range m.state {
		if s == st {
			out = append(out, chunk.ChunkRef{Address: addr, Path: m.paths[addr]})
		}
	}
	return out
}

// MarkInFlight transitions addresses from Pending to InFlight. It is a
// no-op for addresses not currently Pending.
func (m *Manager) MarkInFlight(addrs ...chunk.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range addrs {
		if m.state[a] == chunk.StatePending {
			m.state[a] = chunk.StateInFlight
		}
	}
}

// MarkCompleted transitions addresses to Completed, regardless of their
// current state. Completed is terminal within a run.
func (m *Manager) MarkCompleted(addrs ...chunk.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range addrs {
		m.state[a] = chunk.StateCompleted
	}
}

// MarkPending transitions addresses back to Pending, used when an
// in-flight worker reports failure. Completed addresses are left
// unchanged; the verifier demotes those with DemoteToPending.
func (m *Manager) MarkPending(addrs ...chunk.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range addrs {
		if m.state[a] != chunk.StateCompleted {
			m.state[a] = chunk.StatePending
		}
	}
}

// DemoteToPending forcibly transitions addrs to Pending even if they
// were Completed. Used by the verifier when the network no longer
// reports an address as present.
func (m *Manager) DemoteToPending(addrs ...chunk.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range addrs {
		m.state[a] = chunk.StatePending
	}
}

// VerifiedFiles returns every registered FileEntry whose component
// addresses are all Completed.
func (m *Manager) VerifiedFiles() []chunk.FileEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chunk.FileEntry
	for _, f := range m.files {
		complete := true
		for _, a := range f.Chunks {
			if m.state[a] != chunk.StateCompleted {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, f)
		}
	}
	return out
}

// Store returns the underlying Store.
func (m *Manager) Store() *Store {
	return m.store
}
