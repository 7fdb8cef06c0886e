// Package chunkstore is the on-disk chunk store and chunk manager: it
// owns where chunk bytes and file records live on disk and tracks each
// chunk's state across an upload run.
package chunkstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/codec/cborcanon"
)

// Store owns the on-disk layout: <root>/chunks/<hex> for chunk bytes and
// <root>/files/<hex-root> for canonical-CBOR FileEntry records.
type Store struct {
	Root string
}

// NewStore returns a Store rooted at root, creating its subdirectories
// if they do not already exist.
func NewStore(root string) (*Store, error) {
	s := &Store{Root: root}
	for _, dir := range []string{s.chunksDir(), s.filesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("chunkstore: create %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Store) chunksDir() string { return filepath.Join(s.Root, "chunks") }
func (s *Store) filesDir() string  { return filepath.Join(s.Root, "files") }

// ChunkPath returns the path at which a chunk's bytes are (or would be)
// stored.
func (s *Store) ChunkPath(addr chunk.Address) string {
	return filepath.Join(s.chunksDir(), addr.String())
}

// FilePath returns the path at which a file's record is (or would be)
// stored, keyed by the file's root address.
func (s *Store) FilePath(root chunk.Address) string {
	return filepath.Join(s.filesDir(), root.String())
}

// HasChunk reports whether a chunk's bytes exist on disk.
func (s *Store) HasChunk(addr chunk.Address) bool {
	_, err := os.Stat(s.ChunkPath(addr))
	return err == nil
}

// PutChunk writes a chunk's bytes to disk.
func (s *Store) PutChunk(c chunk.Chunk) error {
	if err := os.WriteFile(s.ChunkPath(c.Address), c.Data, 0o644); err != nil {
		return fmt.Errorf("chunkstore: write chunk %s: %w", c.Address, err)
	}
	return nil
}

// ReadChunk reads a chunk's bytes from disk, returning os.ErrNotExist
// (wrapped) if the chunk file is missing.
func (s *Store) ReadChunk(addr chunk.Address) ([]byte, error) {
	data, err := os.ReadFile(s.ChunkPath(addr))
	if err != nil {
		return nil, fmt.Errorf("chunkstore: read chunk %s: %w", addr, err)
	}
	return data, nil
}

// PutFileEntry writes a FileEntry record under the store's files
// directory, keyed by its root address, as canonical CBOR.
func (s *Store) PutFileEntry(entry chunk.FileEntry) error {
	rec := fileRecord{Filename: entry.Filename, Chunks: make([][]byte, len(entry.Chunks))}
	for i, a := range entry.Chunks {
		addr := a
		rec.Chunks[i] = addr[:]
	}
	data, err := cborcanon.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("chunkstore: encode file record: %w", err)
	}
	if err := os.WriteFile(s.FilePath(entry.Root), data, 0o644); err != nil {
		return fmt.Errorf("chunkstore: write file record %s: %w", entry.Root, err)
	}
	return nil
}

// GetFileEntry reads back a FileEntry record by its root address.
func (s *Store) GetFileEntry(root chunk.Address) (chunk.FileEntry, error) {
	data, err := os.ReadFile(s.FilePath(root))
	if err != nil {
		return chunk.FileEntry{}, fmt.Errorf("chunkstore: read file record %s: %w", root, err)
	}
	var rec fileRecord
	if err := cborcanon.Unmarshal(data, &rec); err != nil {
		return chunk.FileEntry{}, fmt.Errorf("chunkstore: decode file record %s: %w", root, err)
	}
	addrs := make([]chunk.Address, len(rec.Chunks))
	for i, b := range rec.Chunks {
		if len(b) != chunk.AddressSize {
			return chunk.FileEntry{}, fmt.Errorf("chunkstore: malformed address in file record %s", root)
		}
		copy(addrs[i][:], b)
	}
	return chunk.FileEntry{Filename: rec.Filename, Root: root, Chunks: addrs}, nil
}

// fileRecord is the canonical-CBOR on-disk shape of a FileEntry. It
// stores raw address bytes rather than chunk.Address directly, since the
// array type does not itself need a custom CBOR tag.
type fileRecord struct {
	Filename string   `cbor:"filename"`
	Chunks   [][]byte `cbor:"chunks"`
}
