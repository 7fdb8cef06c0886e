package netclient

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/netclient/providerindex"
	"github.com/meshstore/netup/pkg/walletpay"
)

// holderTTL is how long the mock's self-announced holder records stay
// valid; long enough that a single test or CLI run never sees one
// expire mid-flight.
const holderTTL = 24 * time.Hour

// Mock is an in-memory NetworkClient for tests: a map-backed fake
// standing in for a real network connection.
type Mock struct {
	mu sync.Mutex

	gateway walletpay.Gateway
	held    map[chunk.Address][]byte

	holders    *providerindex.Index
	holderName string
	holderKey  ed25519.PrivateKey

	// FailPutNext, if set, makes the next PutChunk call for this
	// address fail, then clears itself for that address.
	FailPutNext map[chunk.Address]error
}

// NewMock returns a Mock backed by gateway for payment accounting. It
// announces itself as the sole holder of every chunk it stores, so
// --show-holders has something real to report against.
func NewMock(gateway walletpay.Gateway) *Mock {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		// crypto/rand failure; ed25519 keys are never attempted again
		// for this process, so fall back to a fixed seed rather than
		// leave the mock unable to sign holder records.
		priv = ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	}
	return &Mock{
		gateway:     gateway,
		held:        make(map[chunk.Address][]byte),
		holders:     providerindex.New(),
		holderName:  "mock-network",
		holderKey:   priv,
		FailPutNext: make(map[chunk.Address]error),
	}
}

// PayForChunks implements NetworkClient.
func (m *Mock) PayForChunks(ctx context.Context, addrs []chunk.Address) (walletpay.NanoTokens, walletpay.NanoTokens, walletpay.NanoTokens, []chunk.Address, error) {
	return m.gateway.PayFor(ctx, addrs)
}

// PutChunk implements NetworkClient.
func (m *Mock) PutChunk(ctx context.Context, c chunk.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailPutNext[c.Address]; ok {
		delete(m.FailPutNext, c.Address)
		return err
	}

	data := make([]byte, len(c.Data))
	copy(data, c.Data)
	m.held[c.Address] = data

	rec, err := providerindex.NewHolderRecord(c.Address, m.holderName, "mock://"+m.holderName, holderTTL, m.holderKey)
	if err != nil {
		return fmt.Errorf("netclient: sign holder record: %w", err)
	}
	m.holders.Announce(rec)
	return nil
}

// VerifyUploadedChunks implements NetworkClient.
func (m *Mock) VerifyUploadedChunks(ctx context.Context, addrs []chunk.Address) ([]chunk.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var present []chunk.Address
	for _, a := range addrs {
		if _, ok := m.held[a]; ok {
			present = append(present, a)
		}
	}
	return present, nil
}

// ReadBytes implements NetworkClient.
func (m *Mock) ReadBytes(ctx context.Context, addr chunk.Address) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.held[addr]
	if !ok {
		return nil, fmt.Errorf("netclient: mock has no chunk %s", addr)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Holders implements NetworkClient.
func (m *Mock) Holders(ctx context.Context, addr chunk.Address) ([]string, error) {
	recs := m.holders.Holders(addr)
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.Holder
	}
	return out, nil
}

// Forget removes an address from the mock's held set, simulating the
// network losing a chunk between the upload pass and a later verify.
func (m *Mock) Forget(addr chunk.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, addr)
}

// Gateway returns the Gateway this mock pays through.
func (m *Mock) Gateway() walletpay.Gateway {
	return m.gateway
}

// Held returns the set of addresses currently stored by the mock.
func (m *Mock) Held() []chunk.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chunk.Address, 0, len(m.held))
	for a := range m.held {
		out = append(out, a)
	}
	return out
}
