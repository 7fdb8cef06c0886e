// Package chunk defines the content-addressed data types shared by the
// chunk store, upload pipeline, and manifest writer.
package chunk

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// AddressSize is the length in bytes of a content address.
const AddressSize = 32

// Address is a 32-byte BLAKE3-256 content hash, rendered externally as a
// 64-character lowercase hex string.
type Address [AddressSize]byte

// NewAddress computes the content address of data.
func NewAddress(data []byte) Address {
	return Address(blake3.Sum256(data))
}

// String returns the lowercase hex encoding of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// ParseAddress decodes a 64-character lowercase hex string into an Address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if len(s) != AddressSize*2 {
		return a, fmt.Errorf("chunk: invalid address length %d", len(s))
	}
	n, err := hex.Decode(a[:], []byte(s))
	if err != nil {
		return a, fmt.Errorf("chunk: invalid address: %w", err)
	}
	if n != AddressSize {
		return a, fmt.Errorf("chunk: short address decode: %d bytes", n)
	}
	return a, nil
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Chunk is an immutable blob of bytes identified by its Address.
type Chunk struct {
	Address Address
	Data    []byte
}

// NewChunk builds a Chunk from raw bytes, computing its address.
func NewChunk(data []byte) Chunk {
	return Chunk{Address: NewAddress(data), Data: data}
}

// ChunkRef is a pointer to a chunk's bytes on local disk, without holding
// the bytes themselves in memory.
type ChunkRef struct {
	Address Address
	Path    string
}

// FileEntry records how a single uploaded file maps onto an ordered list
// of chunk addresses, plus the address of the file's own root record.
type FileEntry struct {
	Filename  string
	Root      Address
	Chunks    []Address
}

// ChunkState is the lifecycle state of a chunk within one upload run.
type ChunkState int

const (
	// StatePending means the chunk has not yet been admitted into a batch.
	StatePending ChunkState = iota
	// StateInFlight means the chunk has been paid for and dispatched to a
	// worker, but the worker has not yet reported success or failure.
	StateInFlight
	// StateCompleted means the chunk was successfully stored by the
	// network. Terminal within a run.
	StateCompleted
)

func (s ChunkState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in-flight"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}
