package walletpay

import (
	"context"
	"fmt"

	"github.com/meshstore/netup/pkg/chunk"
)

// PaymentFailKind classifies why a PayFor call failed, replacing the
// original source's dynamic downcast of ClientError with a static enum
// the scheduler can switch on directly.
type PaymentFailKind int

const (
	// FailNotEnoughBalance: the wallet cannot cover the cost. Fatal.
	FailNotEnoughBalance PaymentFailKind = iota
	// FailCouldNotVerifyTransfer: the transfer may have succeeded but
	// could not be confirmed. Soft: counts against the sequential
	// failure budget.
	FailCouldNotVerifyTransfer
	// FailOther: any other payment failure. Fatal.
	FailOther
)

// PaymentError is returned by Gateway.PayFor on failure.
type PaymentError struct {
	Kind  PaymentFailKind
	Cause error
}

func (e *PaymentError) Error() string {
	switch e.Kind {
	case FailNotEnoughBalance:
		return fmt.Sprintf("not enough balance: %v", e.Cause)
	case FailCouldNotVerifyTransfer:
		return fmt.Sprintf("could not verify transfer: %v", e.Cause)
	default:
		return fmt.Sprintf("payment failed: %v", e.Cause)
	}
}

func (e *PaymentError) Unwrap() error {
	return e.Cause
}

// Gateway pays for storing a set of chunk addresses on the network.
// Addresses already stored (and therefore requiring no payment) are
// returned in skipped.
type Gateway interface {
	PayFor(ctx context.Context, addresses []chunk.Address) (cost, royalties NanoTokens, balance NanoTokens, skipped []chunk.Address, err error)
}
