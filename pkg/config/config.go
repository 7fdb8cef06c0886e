// Package config holds the tunable defaults for the upload/download
// pipeline.
package config

import "github.com/meshstore/netup/pkg/chunk"

// Config bundles the knobs the CLI exposes over the pipeline.
type Config struct {
	// BatchSize bounds the number of chunks in flight at once.
	BatchSize int
	// ChunkSize is the size in bytes of each chunk the default chunker
	// produces.
	ChunkSize int
	// MaxRetries is the default number of scheduler retry passes over
	// chunks still Pending after the first pass. The CLI does not read
	// this field; its --max-retries flag has its own default of 3.
	MaxRetries int
	// MaxSequentialPaymentFails bounds how many consecutive
	// CouldNotVerifyTransfer payment failures the scheduler tolerates
	// before aborting.
	MaxSequentialPaymentFails int
	// StoreRoot is the local directory backing the chunk store.
	StoreRoot string
	// ShowHolders mirrors the --show-holders flag. Nothing in the
	// pipeline reads this field: the CLI passes the flag to the
	// scheduler and the progress reporter directly.
	ShowHolders bool
}

// DefaultBatchSize matches the original CLI's default batch size.
const DefaultBatchSize = 16

// DefaultConfig returns the pipeline's default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:                 DefaultBatchSize,
		ChunkSize:                 chunk.DefaultChunkSize,
		MaxRetries:                3,
		MaxSequentialPaymentFails: 3,
		StoreRoot:                 ".netup",
		ShowHolders:               false,
	}
}

// DownloadBatchSize returns the batch size used for parallel download
// reads, a quarter of the upload batch size (minimum 1), matching the
// original CLI's "--batch-size BATCH_SIZE/4" default for downloads.
func (c Config) DownloadBatchSize() int {
	size := c.BatchSize / 4
	if size < 1 {
		return 1
	}
	return size
}
