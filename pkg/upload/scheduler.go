package upload

import (
	"context"
	"errors"
	"time"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/chunkerr"
	"github.com/meshstore/netup/pkg/chunkstore"
	"github.com/meshstore/netup/pkg/config"
	"github.com/meshstore/netup/pkg/netclient"
	"github.com/meshstore/netup/pkg/progress"
	"github.com/meshstore/netup/pkg/walletpay"
)

// Result summarizes a completed upload run.
type Result struct {
	ChunksUploaded int
	ExistingChunks int
	TotalCost      walletpay.NanoTokens
	TotalRoyalties walletpay.NanoTokens
	FinalBalance   walletpay.NanoTokens
	Elapsed        time.Duration
}

type workerResult struct {
	address chunk.Address
	err     error
}

// Scheduler is the batched, paid, verified upload pipeline's driver. It
// owns every per-run mutable field: the in-flight window, running
// payment totals, and the existing-chunk counter. Workers only read
// their assigned ChunkRef; only the scheduler goroutine mutates these
// fields, reading worker results serially off the completion channel.
type Scheduler struct {
	cfg      config.Config
	manager  *chunkstore.Manager
	gateway  walletpay.Gateway
	worker   *Worker
	reporter *progress.Reporter

	active  int
	results chan workerResult

	totalCost      walletpay.NanoTokens
	totalRoyalties walletpay.NanoTokens
	finalBalance   walletpay.NanoTokens
	existingChunks int
}

// NewScheduler builds a Scheduler over manager's pending set, paying
// through gateway and uploading through network.
func NewScheduler(cfg config.Config, manager *chunkstore.Manager, gateway walletpay.Gateway, network netclient.NetworkClient, store *chunkstore.Store, reporter *progress.Reporter) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		manager:  manager,
		gateway:  gateway,
		worker:   &Worker{Store: store, Network: network, Reporter: reporter},
		reporter: reporter,
		results:  make(chan workerResult),
	}
}

// Run drives the full batched-upload state machine: an initial pass
// over every currently Pending chunk, a final drain, then up to
// maxRetries further passes over whatever remains Pending.
func (s *Scheduler) Run(ctx context.Context, verifyStore, showHolders bool, maxRetries int) (Result, error) {
	start := time.Now()

	pending := s.manager.GetChunks(chunk.StatePending)
	total := len(pending)
	s.reporter.UploadStarting(total)

	sequentialFails := 0
	if err := s.runPasses(ctx, pending, verifyStore, showHolders, &sequentialFails); err != nil {
		return Result{}, err
	}
	if err := s.drainInFlight(ctx, true); err != nil {
		return Result{}, err
	}

	retryCount := 0
	failed := s.manager.GetChunks(chunk.StatePending)
	for len(failed) > 0 && retryCount < maxRetries {
		s.reporter.UploadRetrying(len(failed), retryCount, maxRetries)
		retryCount++

		if err := s.runPasses(ctx, failed, verifyStore, showHolders, &sequentialFails); err != nil {
			return Result{}, err
		}
		if err := s.drainInFlight(ctx, true); err != nil {
			return Result{}, err
		}
		failed = s.manager.GetChunks(chunk.StatePending)
	}

	return Result{
		ChunksUploaded: total,
		ExistingChunks: s.existingChunks,
		TotalCost:      s.totalCost,
		TotalRoyalties: s.totalRoyalties,
		FinalBalance:   s.finalBalance,
		Elapsed:        time.Since(start),
	}, nil
}

// runPasses partitions refs into fixed-size batches and handles each
// in turn. Batch order is refs' iteration order; the scheduler makes
// no ordering guarantee between chunks within a batch.
func (s *Scheduler) runPasses(ctx context.Context, refs []chunk.ChunkRef, verifyStore, showHolders bool, sequentialFails *int) error {
	batchSize := s.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for i := 0; i < len(refs); i += batchSize {
		end := i + batchSize
		if end > len(refs) {
			end = len(refs)
		}
		if err := s.handleBatch(ctx, refs[i:end], verifyStore, showHolders, sequentialFails); err != nil {
			return err
		}
	}
	return nil
}

// handleBatch pays for one batch and dispatches Upload Workers for
// every address the network did not report as already stored.
func (s *Scheduler) handleBatch(ctx context.Context, batch []chunk.ChunkRef, verifyStore, showHolders bool, sequentialFails *int) error {
	// Pre-admission drain: don't pay for a new batch while the window
	// is already full.
	if err := s.drainInFlight(ctx, false); err != nil {
		return err
	}

	if *sequentialFails >= s.cfg.MaxSequentialPaymentFails {
		return chunkerr.NewTooManyPaymentFails(*sequentialFails)
	}

	addrs := refAddresses(batch)
	cost, royalties, balance, skipped, err := s.gateway.PayFor(ctx, addrs)
	if err != nil {
		return s.classifyPaymentError(err, sequentialFails)
	}
	*sequentialFails = 0

	newCost, err := s.totalCost.Add(cost)
	if err != nil {
		return chunkerr.NewArithmeticOverflow()
	}
	newRoyalties, err := s.totalRoyalties.Add(royalties)
	if err != nil {
		return chunkerr.NewArithmeticOverflow()
	}
	s.totalCost = newCost
	s.totalRoyalties = newRoyalties
	s.finalBalance = balance

	if len(skipped) > 0 {
		s.manager.MarkCompleted(skipped...)
		s.existingChunks += len(skipped)
	}

	toUpload := excludeAddresses(batch, skipped)
	s.manager.MarkInFlight(refAddresses(toUpload)...)

	for _, ref := range toUpload {
		if err := s.drainInFlight(ctx, false); err != nil {
			return err
		}
		s.dispatch(ctx, ref, verifyStore, showHolders)
	}
	return nil
}

func (s *Scheduler) classifyPaymentError(err error, sequentialFails *int) error {
	var payErr *walletpay.PaymentError
	if !errors.As(err, &payErr) {
		return err
	}

	switch payErr.Kind {
	case walletpay.FailNotEnoughBalance:
		return chunkerr.NewNotEnoughBalance(payErr)
	case walletpay.FailCouldNotVerifyTransfer:
		*sequentialFails++
		if *sequentialFails >= s.cfg.MaxSequentialPaymentFails {
			return chunkerr.NewTooManyPaymentFails(*sequentialFails)
		}
		return nil
	default:
		return payErr
	}
}

func (s *Scheduler) dispatch(ctx context.Context, ref chunk.ChunkRef, verifyStore, showHolders bool) {
	s.active++
	go func() {
		addr, err := s.worker.Upload(ctx, ref, verifyStore, showHolders)
		s.results <- workerResult{address: addr, err: err}
	}()
}

// drainInFlight waits for completions until the in-flight window is
// below batch_size (drainAll=false) or fully empty (drainAll=true).
func (s *Scheduler) drainInFlight(ctx context.Context, drainAll bool) error {
	for (drainAll && s.active > 0) || s.active >= s.cfg.BatchSize {
		select {
		case res := <-s.results:
			s.active--
			if res.err != nil {
				s.reporter.ChunkFailed(res.address, res.err)
				s.manager.MarkPending(res.address)
			} else {
				s.manager.MarkCompleted(res.address)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func refAddresses(refs []chunk.ChunkRef) []chunk.Address {
	out := make([]chunk.Address, len(refs))
	for i, r := range refs {
		out[i] = r.Address
	}
	return out
}

func excludeAddresses(refs []chunk.ChunkRef, skipped []chunk.Address) []chunk.ChunkRef {
	if len(skipped) == 0 {
		return refs
	}
	skip := make(map[chunk.Address]bool, len(skipped))
	for _, a := range skipped {
		skip[a] = true
	}
	out := make([]chunk.ChunkRef, 0, len(refs))
	for _, r := range refs {
		if !skip[r.Address] {
			out = append(out, r)
		}
	}
	return out
}
