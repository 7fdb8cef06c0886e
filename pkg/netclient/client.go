// Package netclient is the client's interface to the storage network: a
// small RPC surface for paying for chunks, storing them, verifying
// presence, and reading bytes back.
package netclient

import (
	"context"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/walletpay"
)

// NetworkClient is the external collaborator the upload/download
// pipeline talks to. It is intentionally narrow: the storage network's
// own consensus and transfer-verification logic live behind it.
type NetworkClient interface {
	// PayForChunks pays for storing the given addresses, returning the
	// network-reported cost, royalties, remaining balance, and the
	// subset of addresses the network already holds (and therefore did
	// not charge for).
	PayForChunks(ctx context.Context, addrs []chunk.Address) (cost, royalties, balance walletpay.NanoTokens, skipped []chunk.Address, err error)

	// PutChunk uploads one chunk's bytes to the network.
	PutChunk(ctx context.Context, c chunk.Chunk) error

	// VerifyUploadedChunks asks the network which of the given
	// addresses it currently holds, returning the present subset.
	VerifyUploadedChunks(ctx context.Context, addrs []chunk.Address) ([]chunk.Address, error)

	// ReadBytes fetches a chunk's bytes by address.
	ReadBytes(ctx context.Context, addr chunk.Address) ([]byte, error)

	// Holders returns the identifiers of the network holders currently
	// claiming to store addr, for --show-holders reporting.
	Holders(ctx context.Context, addr chunk.Address) ([]string, error)
}
