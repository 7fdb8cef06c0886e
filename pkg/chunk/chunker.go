package chunk

import (
	"fmt"
	"io"
	"os"
)

// DefaultChunkSize is the fixed chunk size used by the default Chunker.
const DefaultChunkSize = 1024 * 1024

// Chunker splits a file on disk into an ordered sequence of chunks. The
// chunking/encryption algorithm itself is an external concern: this is a
// concrete, swappable default implementation used to exercise the
// pipeline end-to-end, not a spec'd algorithm.
type Chunker interface {
	ChunkFile(path string) (FileEntry, []ChunkRef, error)
}

// FixedSizeChunker splits files into fixed-size, BLAKE3-addressed chunks
// and stores the raw bytes under outDir/<hex-address>.
type FixedSizeChunker struct {
	ChunkSize int
	OutDir    string
}

// NewFixedSizeChunker returns a FixedSizeChunker with the default chunk
// size if size <= 0.
func NewFixedSizeChunker(outDir string, size int) *FixedSizeChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &FixedSizeChunker{ChunkSize: size, OutDir: outDir}
}

// ChunkFile reads path, splits it into fixed-size chunks, writes each
// chunk's bytes to OutDir, and returns the resulting FileEntry plus
// ChunkRefs pointing at the written files.
func (c *FixedSizeChunker) ChunkFile(path string) (FileEntry, []ChunkRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileEntry{}, nil, fmt.Errorf("chunk: open %s: %w", path, err)
	}
	defer f.Close()

	if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
		return FileEntry{}, nil, fmt.Errorf("chunk: create chunk dir: %w", err)
	}

	var addrs []Address
	var refs []ChunkRef
	buf := make([]byte, c.ChunkSize)

	for {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			ch := NewChunk(data)

			chunkPath := chunkFilePath(c.OutDir, ch.Address)
			if err := os.WriteFile(chunkPath, ch.Data, 0o644); err != nil {
				return FileEntry{}, nil, fmt.Errorf("chunk: write %s: %w", chunkPath, err)
			}

			addrs = append(addrs, ch.Address)
			refs = append(refs, ChunkRef{Address: ch.Address, Path: chunkPath})
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return FileEntry{}, nil, fmt.Errorf("chunk: read %s: %w", path, readErr)
		}
	}

	root := rootAddress(addrs)
	entry := FileEntry{
		Filename: filenameOf(path),
		Root:     root,
		Chunks:   addrs,
	}
	return entry, refs, nil
}

// rootAddress derives a single address identifying a file's ordered chunk
// list, by hashing the concatenation of the component addresses.
func rootAddress(addrs []Address) Address {
	buf := make([]byte, 0, len(addrs)*AddressSize)
	for _, a := range addrs {
		buf = append(buf, a[:]...)
	}
	return NewAddress(buf)
}

func chunkFilePath(dir string, addr Address) string {
	return dir + "/" + addr.String()
}

func filenameOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
