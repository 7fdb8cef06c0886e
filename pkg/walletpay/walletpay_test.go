package walletpay

import (
	"context"
	"math"
	"testing"

	"github.com/meshstore/netup/pkg/chunk"
)

func TestNanoTokensAddOverflow(t *testing.T) {
	a := NanoTokens(math.MaxUint64)
	if _, err := a.Add(1); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestNanoTokensAddNormal(t *testing.T) {
	sum, err := NanoTokens(5).Add(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 12 {
		t.Fatalf("expected 12, got %d", sum)
	}
}

func TestNanoTokensSubUnderflow(t *testing.T) {
	if _, err := NanoTokens(1).Sub(2); err == nil {
		t.Fatal("expected underflow error")
	}
}

func TestMockGatewayPaysAndSkipsStored(t *testing.T) {
	addrs := []chunk.Address{chunk.NewAddress([]byte("a")), chunk.NewAddress([]byte("b"))}
	gw := NewMockGateway(1000, 10, 1)
	gw.MarkStored(addrs[0])

	cost, royalties, balance, skipped, err := gw.PayFor(context.Background(), addrs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(skipped) != 1 || skipped[0] != addrs[0] {
		t.Fatalf("expected addrs[0] skipped, got %v", skipped)
	}
	if cost != 10 || royalties != 1 {
		t.Fatalf("unexpected cost/royalties: %d %d", cost, royalties)
	}
	if balance != 989 {
		t.Fatalf("unexpected balance: %d", balance)
	}
}

func TestMockGatewayNotEnoughBalance(t *testing.T) {
	addrs := []chunk.Address{chunk.NewAddress([]byte("a"))}
	gw := NewMockGateway(1, 10, 1)

	_, _, _, _, err := gw.PayFor(context.Background(), addrs)
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*PaymentError)
	if !ok || pe.Kind != FailNotEnoughBalance {
		t.Fatalf("expected FailNotEnoughBalance, got %v", err)
	}
}

func TestMockGatewayFailNextInjection(t *testing.T) {
	addrs := []chunk.Address{chunk.NewAddress([]byte("a"))}
	gw := NewMockGateway(1000, 10, 1)
	gw.FailNext = &PaymentError{Kind: FailCouldNotVerifyTransfer}

	_, _, _, _, err := gw.PayFor(context.Background(), addrs)
	if err == nil {
		t.Fatal("expected injected error")
	}

	// Second call should succeed since FailNext clears itself.
	_, _, _, _, err = gw.PayFor(context.Background(), addrs)
	if err != nil {
		t.Fatalf("expected success after injected failure cleared: %v", err)
	}
}
