// Package verify implements the resume-time reconciliation pass: when
// the chunk store believes every chunk of a prior run is Completed,
// the Verifier asks the network which of those addresses are actually
// still absent and demotes them back to Pending.
package verify

import (
	"context"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/chunkstore"
	"github.com/meshstore/netup/pkg/netclient"
)

// Verifier asks the network for chunk presence in batches, used
// exclusively on resume paths where the chunk store believes
// everything is already Completed.
type Verifier struct {
	Network   netclient.NetworkClient
	BatchSize int
}

// New returns a Verifier that queries network in batches of batchSize.
func New(network netclient.NetworkClient, batchSize int) *Verifier {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Verifier{Network: network, BatchSize: batchSize}
}

// VerifyUploaded checks every ref in refs against the network and
// returns the subset the network reports absent.
func (v *Verifier) VerifyUploaded(ctx context.Context, refs []chunk.ChunkRef) ([]chunk.ChunkRef, error) {
	byAddress := make(map[chunk.Address]chunk.ChunkRef, len(refs))
	addrs := make([]chunk.Address, len(refs))
	for i, r := range refs {
		byAddress[r.Address] = r
		addrs[i] = r.Address
	}

	var failed []chunk.ChunkRef
	for i := 0; i < len(addrs); i += v.BatchSize {
		end := i + v.BatchSize
		if end > len(addrs) {
			end = len(addrs)
		}
		present, err := v.Network.VerifyUploadedChunks(ctx, addrs[i:end])
		if err != nil {
			return nil, err
		}

		presentSet := make(map[chunk.Address]bool, len(present))
		for _, a := range present {
			presentSet[a] = true
		}
		for _, a := range addrs[i:end] {
			if !presentSet[a] {
				failed = append(failed, byAddress[a])
			}
		}
	}
	return failed, nil
}

// Reconcile implements the resume-time decision: if manager has no
// Pending chunks, it verifies every chunk the manager believes
// Completed and demotes whichever ones the network no longer reports
// present back to Pending. It returns the set of chunks now Pending as
// a result of this pass (empty if every chunk was confirmed present).
func Reconcile(ctx context.Context, v *Verifier, manager *chunkstore.Manager) ([]chunk.ChunkRef, error) {
	if !manager.IsEmpty() {
		return nil, nil
	}

	completed := manager.AlreadyPutChunks()
	if len(completed) == 0 {
		return nil, nil
	}

	refs := manager.GetChunks(chunk.StateCompleted)
	failed, err := v.VerifyUploaded(ctx, refs)
	if err != nil {
		return nil, err
	}
	if len(failed) == 0 {
		return nil, nil
	}

	addrs := make([]chunk.Address, len(failed))
	for i, r := range failed {
		addrs[i] = r.Address
	}
	manager.DemoteToPending(addrs...)

	return failed, nil
}
