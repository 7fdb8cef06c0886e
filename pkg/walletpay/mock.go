package walletpay

import (
	"context"
	"fmt"
	"sync"

	"github.com/meshstore/netup/pkg/chunk"
)

// MockGateway is an in-memory Gateway for tests: a map-backed fake
// that implements the production interface without any network
// dependency.
type MockGateway struct {
	mu sync.Mutex

	balance      NanoTokens
	costPerChunk NanoTokens
	royaltyRate  NanoTokens

	// stored tracks addresses the mock network already considers paid
	// for, so repeated PayFor calls skip them (no double payment).
	stored map[chunk.Address]bool

	// FailNext, if set, makes the next PayFor call return this error
	// instead of succeeding, then clears itself.
	FailNext error
}

// NewMockGateway returns a MockGateway with the given starting balance
// and a flat per-chunk cost.
func NewMockGateway(balance, costPerChunk, royaltyRate NanoTokens) *MockGateway {
	return &MockGateway{
		balance:      balance,
		costPerChunk: costPerChunk,
		royaltyRate:  royaltyRate,
		stored:       make(map[chunk.Address]bool),
	}
}

// Balance returns the current mock wallet balance.
func (m *MockGateway) Balance() NanoTokens {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance
}

// MarkStored pre-seeds addresses as already-stored on the mock network,
// so a subsequent PayFor call will skip them.
func (m *MockGateway) MarkStored(addrs ...chunk.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range addrs {
		m.stored[a] = true
	}
}

// PayFor implements Gateway.
func (m *MockGateway) PayFor(ctx context.Context, addresses []chunk.Address) (NanoTokens, NanoTokens, NanoTokens, []chunk.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return 0, 0, m.balance, nil, err
	}

	var toPay []chunk.Address
	var skipped []chunk.Address
	for _, a := range addresses {
		if m.stored[a] {
			skipped = append(skipped, a)
			continue
		}
		toPay = append(toPay, a)
	}

	cost := m.costPerChunk * NanoTokens(len(toPay))
	royalties := m.royaltyRate * NanoTokens(len(toPay))
	total := cost + royalties

	if total > m.balance {
		return 0, 0, m.balance, nil, &PaymentError{
			Kind:  FailNotEnoughBalance,
			Cause: fmt.Errorf("need %d, have %d", total, m.balance),
		}
	}

	m.balance -= total
	for _, a := range toPay {
		m.stored[a] = true
	}

	return cost, royalties, m.balance, skipped, nil
}
