// Package upload implements the batched, paid, verified chunk-upload
// pipeline: the Upload Worker that stores one chunk, and the Batch
// Scheduler that drives payment, dispatch, and retry across the
// pending set.
package upload

import (
	"context"
	"errors"
	"os"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/chunkstore"
	"github.com/meshstore/netup/pkg/netclient"
	"github.com/meshstore/netup/pkg/progress"
)

// Worker reads one chunk from the store and submits it to the network
// client. A chunk file missing on disk is reported as success with a
// warning, not failure: a prior interrupted cleanup may have removed
// the file of an already-stored chunk, and treating that as failure
// would cause perpetual retry.
type Worker struct {
	Store    *chunkstore.Store
	Network  netclient.NetworkClient
	Reporter *progress.Reporter
}

// Upload stores ref's chunk, optionally confirming persistence
// (verifyStore) before returning, and optionally announcing which
// holder stored it (showHolders).
func (w *Worker) Upload(ctx context.Context, ref chunk.ChunkRef, verifyStore, showHolders bool) (chunk.Address, error) {
	data, err := w.Store.ReadChunk(ref.Address)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.Reporter.ChunkMissing(ref.Address)
			return ref.Address, nil
		}
		return ref.Address, err
	}

	c := chunk.Chunk{Address: ref.Address, Data: data}
	if err := w.Network.PutChunk(ctx, c); err != nil {
		return ref.Address, err
	}

	if verifyStore {
		present, err := w.Network.VerifyUploadedChunks(ctx, []chunk.Address{ref.Address})
		if err != nil {
			return ref.Address, err
		}
		if len(present) == 0 {
			return ref.Address, errNotPersisted(ref.Address)
		}
	}

	if showHolders {
		holders, err := w.Network.Holders(ctx, ref.Address)
		if err == nil {
			for _, h := range holders {
				w.Reporter.HolderAnnounce(ref.Address, h)
			}
		}
	}

	return ref.Address, nil
}

type persistError struct {
	addr chunk.Address
}

func errNotPersisted(addr chunk.Address) error {
	return &persistError{addr: addr}
}

func (e *persistError) Error() string {
	return "chunk " + e.addr.String() + " not confirmed stored after put"
}
