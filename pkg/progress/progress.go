// Package progress prints operator-facing upload/download progress,
// matching the terse "Component: message" style used elsewhere for
// status output.
package progress

import (
	"fmt"
	"time"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/walletpay"
)

// FormatElapsed renders d as "N minutes M seconds", or just "M seconds"
// when under a minute.
func FormatElapsed(d time.Duration) string {
	totalSeconds := int64(d.Seconds())
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60
	if minutes > 0 {
		return fmt.Sprintf("%d minutes %d seconds", minutes, seconds)
	}
	return fmt.Sprintf("%d seconds", seconds)
}

// Reporter prints upload/download progress and summaries. The zero
// value is ready to use.
type Reporter struct {
	ShowHolders bool
}

// UploadStarting announces the total number of chunks about to be
// uploaded.
func (r *Reporter) UploadStarting(total int) {
	fmt.Printf("Uploading %d chunks\n", total)
}

// UploadRetrying announces a retry pass over the chunks still pending.
func (r *Reporter) UploadRetrying(pending, attempt, maxRetries int) {
	fmt.Printf("Retrying failed chunks %d, attempt %d/%d...\n", pending, attempt, maxRetries)
}

// ChunkFailed reports a single chunk upload failure (non-fatal, will be
// retried).
func (r *Reporter) ChunkFailed(addr chunk.Address, cause error) {
	fmt.Printf("Warning: failed to upload chunk %s: %v\n", addr, cause)
}

// ChunkMissing reports a chunk that could not be found on disk; upload
// of the remaining chunks continues.
func (r *Reporter) ChunkMissing(addr chunk.Address) {
	fmt.Printf("Warning: chunk %s missing from local store, skipping\n", addr)
}

// HolderAnnounce optionally prints which holder is serving a chunk.
func (r *Reporter) HolderAnnounce(addr chunk.Address, holder string) {
	if !r.ShowHolders {
		return
	}
	fmt.Printf("Chunk %s stored at %s\n", addr, holder)
}

// UploadSummary is the final report printed once an upload run settles.
type UploadSummary struct {
	ChunksUploaded int
	ExistingChunks int
	Elapsed        time.Duration
	TotalCost      walletpay.NanoTokens
	TotalRoyalties walletpay.NanoTokens
	FinalBalance   walletpay.NanoTokens
	VerifiedFiles  []chunk.FileEntry
}

// Print renders the final upload summary block.
func (r *Reporter) Print(s UploadSummary) {
	fmt.Println("**************************************")
	fmt.Println("*          Uploaded Files            *")
	fmt.Println("**************************************")
	for _, f := range s.VerifiedFiles {
		fmt.Printf("%q %s\n", f.Filename, f.Root)
	}

	fmt.Printf("Uploaded %d chunks (with %d existing chunks) in %s\n",
		s.ChunksUploaded, s.ExistingChunks, FormatElapsed(s.Elapsed))

	fmt.Println("**************************************")
	fmt.Println("*          Payment Details           *")
	fmt.Println("**************************************")
	fmt.Printf("Made payment of %s for %d chunks\n", s.TotalCost, s.ChunksUploaded)
	fmt.Printf("Made payment of %s for royalties fees\n", s.TotalRoyalties)
	fmt.Printf("New wallet balance: %s\n", s.FinalBalance)
}

// DownloadSummary is the final report printed once a download run
// completes.
type DownloadSummary struct {
	Filename string
	Root     chunk.Address
	Bytes    int
	Elapsed  time.Duration
}

// PrintDownload renders the final download summary block.
func (r *Reporter) PrintDownload(s DownloadSummary) {
	fmt.Printf("Downloaded %q (%s, %d bytes) in %s\n", s.Filename, s.Root, s.Bytes, FormatElapsed(s.Elapsed))
}
