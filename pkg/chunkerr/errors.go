// Package chunkerr defines the typed error taxonomy for the upload and
// download pipeline.
package chunkerr

import (
	"fmt"

	"github.com/meshstore/netup/pkg/chunk"
)

// Code classifies an UploadError so callers can branch on it without
// type assertions into a dynamic error chain.
type Code int

const (
	// CodeWalletEmpty: the wallet balance was zero before any payment
	// was attempted.
	CodeWalletEmpty Code = iota
	// CodeNotEnoughBalance: a payment call reported insufficient funds.
	// Fatal: aborts the run.
	CodeNotEnoughBalance
	// CodeCouldNotVerifyTransfer: a payment call could not confirm the
	// transfer completed. Soft: counted against the sequential-failure
	// budget.
	CodeCouldNotVerifyTransfer
	// CodeTooManyPaymentFails: the sequential soft-failure budget was
	// exhausted. Fatal.
	CodeTooManyPaymentFails
	// CodeUploadWorkerError: a worker's upload of one chunk failed.
	// Non-fatal: the chunk stays Pending for the next retry pass.
	CodeUploadWorkerError
	// CodeChunkMissingOnDisk: the chunk's source file was not found when
	// a worker tried to read it. Treated as success-with-warning, not a
	// failure; this code exists for logging, not for aborting.
	CodeChunkMissingOnDisk
	// CodeArithmeticOverflow: a cumulative cost or royalty total
	// overflowed. Fatal.
	CodeArithmeticOverflow
	// CodeManifestIO: reading or writing the manifest file failed.
	CodeManifestIO
	// CodeAddressDecode: an address given on the command line failed
	// to parse as hex. Manifest lines with a bad address are skipped by
	// manifest.Read instead.
	CodeAddressDecode
)

func (c Code) String() string {
	switch c {
	case CodeWalletEmpty:
		return "wallet-empty"
	case CodeNotEnoughBalance:
		return "not-enough-balance"
	case CodeCouldNotVerifyTransfer:
		return "could-not-verify-transfer"
	case CodeTooManyPaymentFails:
		return "too-many-payment-fails"
	case CodeUploadWorkerError:
		return "upload-worker-error"
	case CodeChunkMissingOnDisk:
		return "chunk-missing-on-disk"
	case CodeArithmeticOverflow:
		return "arithmetic-overflow"
	case CodeManifestIO:
		return "manifest-io"
	case CodeAddressDecode:
		return "address-decode"
	default:
		return "unknown"
	}
}

// UploadError is the error type returned by every component in the
// upload/download pipeline.
type UploadError struct {
	Code      Code
	Address   chunk.Address
	Retryable bool
	Cause     error
}

func (e *UploadError) Error() string {
	if e.Address.IsZero() {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Code, e.Cause)
		}
		return e.Code.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (address %s): %v", e.Code, e.Address, e.Cause)
	}
	return fmt.Sprintf("%s (address %s)", e.Code, e.Address)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the caller may reasonably retry the
// operation that produced this error.
func (e *UploadError) IsRetryable() bool {
	return e.Retryable
}

func newErr(code Code, retryable bool, addr chunk.Address, cause error) *UploadError {
	return &UploadError{Code: code, Retryable: retryable, Address: addr, Cause: cause}
}

// NewWalletEmpty builds a CodeWalletEmpty error.
func NewWalletEmpty() *UploadError {
	return newErr(CodeWalletEmpty, false, chunk.Address{}, nil)
}

// NewNotEnoughBalance builds a CodeNotEnoughBalance error.
func NewNotEnoughBalance(cause error) *UploadError {
	return newErr(CodeNotEnoughBalance, false, chunk.Address{}, cause)
}

// NewCouldNotVerifyTransfer builds a CodeCouldNotVerifyTransfer error.
func NewCouldNotVerifyTransfer(cause error) *UploadError {
	return newErr(CodeCouldNotVerifyTransfer, true, chunk.Address{}, cause)
}

// NewTooManyPaymentFails builds a CodeTooManyPaymentFails error.
func NewTooManyPaymentFails(n int) *UploadError {
	return newErr(CodeTooManyPaymentFails, false, chunk.Address{},
		fmt.Errorf("too many sequential payment failures: %d", n))
}

// NewUploadWorkerError builds a CodeUploadWorkerError error for addr.
func NewUploadWorkerError(addr chunk.Address, cause error) *UploadError {
	return newErr(CodeUploadWorkerError, true, addr, cause)
}

// NewChunkMissingOnDisk builds a CodeChunkMissingOnDisk error for addr.
func NewChunkMissingOnDisk(addr chunk.Address) *UploadError {
	return newErr(CodeChunkMissingOnDisk, false, addr, nil)
}

// NewArithmeticOverflow builds a CodeArithmeticOverflow error.
func NewArithmeticOverflow() *UploadError {
	return newErr(CodeArithmeticOverflow, false, chunk.Address{}, nil)
}

// NewManifestIO builds a CodeManifestIO error.
func NewManifestIO(cause error) *UploadError {
	return newErr(CodeManifestIO, false, chunk.Address{}, cause)
}

// NewAddressDecode builds a CodeAddressDecode error for the offending
// text (kept in Cause, not Address, since it failed to parse).
func NewAddressDecode(text string, cause error) *UploadError {
	return newErr(CodeAddressDecode, false, chunk.Address{},
		fmt.Errorf("invalid address %q: %w", text, cause))
}

// IsFatal reports whether err should abort the run rather than being
// retried or tolerated.
func IsFatal(err error) bool {
	ue, ok := err.(*UploadError)
	if !ok {
		return true
	}
	switch ue.Code {
	case CodeChunkMissingOnDisk:
		return false
	default:
		return !ue.Retryable
	}
}
