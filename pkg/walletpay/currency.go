package walletpay

import (
	"fmt"
	"math"
)

// NanoTokens is the network's smallest accounting unit, carried as an
// immutable value type the way the example pack's Sia Currency type is,
// but uint64-backed since spec'd balances never need arbitrary precision.
type NanoTokens uint64

// ErrOverflow is returned by Add when the sum would exceed the uint64
// range. Per design, overflow here is treated as a fatal condition by
// callers, never silently wrapped.
var ErrOverflow = fmt.Errorf("walletpay: nano token addition overflowed")

// Add returns a + b, or ErrOverflow if the sum would overflow.
func (a NanoTokens) Add(b NanoTokens) (NanoTokens, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a - b, or an error if b exceeds a.
func (a NanoTokens) Sub(b NanoTokens) (NanoTokens, error) {
	if b > a {
		return 0, fmt.Errorf("walletpay: nano token subtraction underflowed: %d - %d", a, b)
	}
	return a - b, nil
}

// Cmp compares a and b, returning -1, 0, or 1.
func (a NanoTokens) Cmp(b NanoTokens) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (a NanoTokens) String() string {
	return fmt.Sprintf("%d nano", uint64(a))
}
