// Package wire defines the signed, versioned, canonical-CBOR request and
// response envelopes exchanged with the storage network.
package wire

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/meshstore/netup/pkg/codec/cborcanon"
)

// Kind identifies the RPC an Envelope carries.
type Kind uint8

const (
	KindPayForChunks Kind = iota + 1
	KindPutChunk
	KindVerifyChunks
	KindReadBytes
	KindHolders
)

// Envelope is the signed wrapper every request and response travels in:
// versioned, sender-tagged, sequenced, and Ed25519-signed over its
// canonical encoding.
type Envelope struct {
	V    uint16      `cbor:"v"`
	Kind Kind        `cbor:"kind"`
	From string      `cbor:"from"`
	Seq  uint64      `cbor:"seq"`
	TS   int64       `cbor:"ts"`
	Body interface{} `cbor:"body"`
	Sig  []byte      `cbor:"sig,omitempty"`
}

// NewEnvelope builds an unsigned Envelope for kind, tagged with from and
// seq, timestamped now.
func NewEnvelope(kind Kind, from string, seq uint64, now time.Time, body interface{}) *Envelope {
	return &Envelope{V: 1, Kind: kind, From: from, Seq: seq, TS: now.UnixMilli(), Body: body}
}

// Sign signs the envelope's canonical encoding (excluding Sig) with
// privateKey.
func (e *Envelope) Sign(privateKey ed25519.PrivateKey) error {
	data, err := cborcanon.EncodeForSigning(e, "sig")
	if err != nil {
		return fmt.Errorf("wire: encode envelope for signing: %w", err)
	}
	e.Sig = ed25519.Sign(privateKey, data)
	return nil
}

// Verify checks the envelope's signature against publicKey.
func (e *Envelope) Verify(publicKey ed25519.PublicKey) error {
	if len(e.Sig) == 0 {
		return fmt.Errorf("wire: envelope has no signature")
	}
	data, err := cborcanon.EncodeForSigning(e, "sig")
	if err != nil {
		return fmt.Errorf("wire: encode envelope for verification: %w", err)
	}
	if !ed25519.Verify(publicKey, data, e.Sig) {
		return fmt.Errorf("wire: envelope signature verification failed")
	}
	return nil
}

// Marshal encodes the envelope as canonical CBOR.
func (e *Envelope) Marshal() ([]byte, error) {
	return cborcanon.Marshal(e)
}

// Unmarshal decodes an envelope from CBOR.
func (e *Envelope) Unmarshal(data []byte) error {
	return cborcanon.Unmarshal(data, e)
}

// PayForChunksRequest asks the network to charge the wallet for storing
// the given addresses.
type PayForChunksRequest struct {
	Addresses [][]byte `cbor:"addresses"`
}

// PayForChunksResponse reports the outcome of a PayForChunksRequest.
type PayForChunksResponse struct {
	CostNano      uint64   `cbor:"cost_nano"`
	RoyaltiesNano uint64   `cbor:"royalties_nano"`
	BalanceNano   uint64   `cbor:"balance_nano"`
	Skipped       [][]byte `cbor:"skipped"`
}

// PutChunkRequest uploads one chunk's bytes.
type PutChunkRequest struct {
	Address []byte `cbor:"address"`
	Data    []byte `cbor:"data"`
}

// PutChunkResponse acknowledges a PutChunkRequest.
type PutChunkResponse struct {
	Stored bool `cbor:"stored"`
}

// VerifyChunksRequest asks which addresses the network currently holds.
type VerifyChunksRequest struct {
	Addresses [][]byte `cbor:"addresses"`
}

// VerifyChunksResponse lists the subset of requested addresses present
// on the network.
type VerifyChunksResponse struct {
	Present [][]byte `cbor:"present"`
}

// ReadBytesRequest fetches one chunk's bytes by address.
type ReadBytesRequest struct {
	Address []byte `cbor:"address"`
}

// ReadBytesResponse carries the requested chunk's bytes.
type ReadBytesResponse struct {
	Data []byte `cbor:"data"`
}

// HoldersRequest asks which holders the network has on record for an
// address.
type HoldersRequest struct {
	Address []byte `cbor:"address"`
}

// HoldersResponse carries each holder's signed claim record, still
// canonically encoded so the caller can verify it independently of the
// envelope it arrived in.
type HoldersResponse struct {
	Records [][]byte `cbor:"records"`
}

// Error is a protocol-level error response.
type Error struct {
	Code       uint16  `cbor:"code"`
	Reason     string  `cbor:"reason"`
	RetryAfter *uint32 `cbor:"retry_after,omitempty"`
}

func (e *Error) Error() string {
	if e.RetryAfter != nil {
		return fmt.Sprintf("netup wire error %d: %s (retry after %ds)", e.Code, e.Reason, *e.RetryAfter)
	}
	return fmt.Sprintf("netup wire error %d: %s", e.Code, e.Reason)
}

// IsRetryable reports whether the error suggests retrying.
func (e *Error) IsRetryable() bool {
	return e.RetryAfter != nil
}

const (
	ErrorCodeNotEnoughBalance        uint16 = 1
	ErrorCodeCouldNotVerifyTransfer  uint16 = 2
	ErrorCodeChunkNotFound           uint16 = 3
	ErrorCodeInternal                uint16 = 4
)
