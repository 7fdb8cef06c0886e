// Package main implements the netup CLI: upload a file or directory to
// the storage network, and download files back either every manifest
// entry at once or one file given both its name and its address.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/chunkerr"
	"github.com/meshstore/netup/pkg/chunkstore"
	"github.com/meshstore/netup/pkg/config"
	"github.com/meshstore/netup/pkg/identity"
	"github.com/meshstore/netup/pkg/manifest"
	"github.com/meshstore/netup/pkg/netclient"
	"github.com/meshstore/netup/pkg/progress"
	"github.com/meshstore/netup/pkg/upload"
	"github.com/meshstore/netup/pkg/verify"
	"github.com/meshstore/netup/pkg/walletpay"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "upload":
		err = uploadCommand(os.Args[2:])
	case "download":
		err = downloadCommand(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: netup <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  upload <path> [--batch-size N] [--show-holders] [--max-retries R]")
	fmt.Println("  download [<name> <address>] [--show-holders] [--batch-size N]")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  NETUP_NETWORK_ADDR    dial a live network at this address instead of using the in-process mock")
	fmt.Println("  NETUP_NETWORK_PUBKEY  hex-encoded Ed25519 public key the network authenticates as")
}

// uploadCommand handles a single positional path plus
// batch-size/show-holders/max-retries flags.
func uploadCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: netup upload <path> [--batch-size N] [--show-holders] [--max-retries R]")
	}

	cfg := config.DefaultConfig()
	maxRetries := 3
	showHolders := false
	var path string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--batch-size":
			i++
			if i >= len(args) {
				return fmt.Errorf("--batch-size requires a value")
			}
			n, parseErr := parseInt(args[i])
			if parseErr != nil {
				return fmt.Errorf("--batch-size: %w", parseErr)
			}
			cfg.BatchSize = n
		case "--max-retries":
			i++
			if i >= len(args) {
				return fmt.Errorf("--max-retries requires a value")
			}
			n, parseErr := parseInt(args[i])
			if parseErr != nil {
				return fmt.Errorf("--max-retries: %w", parseErr)
			}
			maxRetries = n
		case "--show-holders":
			showHolders = true
		default:
			if path != "" {
				return fmt.Errorf("unexpected argument %q", args[i])
			}
			path = args[i]
		}
	}

	if path == "" {
		return fmt.Errorf("usage: netup upload <path> [--batch-size N] [--show-holders] [--max-retries R]")
	}

	return runUpload(path, cfg, maxRetries, showHolders)
}

func runUpload(path string, cfg config.Config, maxRetries int, showHolders bool) error {
	gateway, err := loadGateway(cfg)
	if err != nil {
		return err
	}

	network, closeNetwork, err := newNetworkClient(context.Background(), cfg, gateway)
	if err != nil {
		return err
	}
	defer closeNetwork()

	store, err := chunkstore.NewStore(cfg.StoreRoot)
	if err != nil {
		return err
	}
	mgr := chunkstore.NewManager(store)

	chunker := chunk.NewFixedSizeChunker(filepath.Join(cfg.StoreRoot, "chunks"), cfg.ChunkSize)
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		_, chunkErr := mgr.Chunk(p, chunker)
		return chunkErr
	})
	if err != nil {
		return err
	}

	reporter := &progress.Reporter{ShowHolders: showHolders}

	if mgr.IsEmpty() {
		v := verify.New(network, cfg.BatchSize)
		demoted, err := verify.Reconcile(context.Background(), v, mgr)
		if err != nil {
			return err
		}
		if len(demoted) == 0 {
			fmt.Println("All files were already uploaded and verified")
			printUploadedFiles(mgr.VerifiedFiles())
			return nil
		}
		fmt.Printf("%d chunks were uploaded in the past but failed to verify. Will attempt to upload them again...\n", len(demoted))
	}

	sched := upload.NewScheduler(cfg, mgr, gateway, network, store, reporter)
	result, err := sched.Run(context.Background(), true, showHolders, maxRetries)
	if err != nil {
		return err
	}

	printUploadedFiles(mgr.VerifiedFiles())

	entries := make([]manifest.Entry, 0, len(mgr.VerifiedFiles()))
	for _, f := range mgr.VerifiedFiles() {
		entries = append(entries, manifest.Entry{Address: f.Root, Filename: f.Filename})
	}
	if err := manifest.Append(filepath.Join(cfg.StoreRoot, "uploaded_files"), entries); err != nil {
		return chunkerr.NewManifestIO(err)
	}

	reporter.Print(progress.UploadSummary{
		ChunksUploaded: result.ChunksUploaded,
		ExistingChunks: result.ExistingChunks,
		Elapsed:        result.Elapsed,
		TotalCost:      result.TotalCost,
		TotalRoyalties: result.TotalRoyalties,
		FinalBalance:   result.FinalBalance,
		VerifiedFiles:  mgr.VerifiedFiles(),
	})

	return nil
}

func printUploadedFiles(files []chunk.FileEntry) {
	fmt.Println("**************************************")
	fmt.Println("*          Uploaded Files            *")
	fmt.Println("**************************************")
	for _, f := range files {
		fmt.Printf("%q %s\n", f.Filename, f.Root)
	}
}

// downloadCommand downloads every manifest entry, or a single
// name/address pair when both are supplied.
func downloadCommand(args []string) error {
	showHolders := false
	batchSize := config.DefaultConfig().DownloadBatchSize()
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--show-holders":
			showHolders = true
		case "--batch-size":
			i++
			if i >= len(args) {
				return fmt.Errorf("--batch-size requires a value")
			}
			n, err := parseInt(args[i])
			if err != nil {
				return fmt.Errorf("--batch-size: %w", err)
			}
			batchSize = n
		default:
			positional = append(positional, args[i])
		}
	}

	cfg := config.DefaultConfig()
	cfg.BatchSize = batchSize

	switch len(positional) {
	case 0:
		return downloadAll(cfg, showHolders)
	case 1:
		return fmt.Errorf("both the name and address must be supplied if either are used")
	case 2:
		return downloadOne(cfg, positional[0], positional[1], showHolders)
	default:
		return fmt.Errorf("too many arguments to download")
	}
}

func downloadAll(cfg config.Config, showHolders bool) error {
	fmt.Println("Attempting to download all files uploaded by the current user...")

	entries, err := manifest.Read(filepath.Join(cfg.StoreRoot, "uploaded_files"))
	if err != nil {
		return chunkerr.NewManifestIO(err)
	}

	gateway, err := loadGateway(cfg)
	if err != nil {
		return err
	}
	network, closeNetwork, err := newNetworkClient(context.Background(), cfg, gateway)
	if err != nil {
		return err
	}
	defer closeNetwork()

	for _, e := range entries {
		if err := downloadEntry(cfg, network, e, showHolders); err != nil {
			fmt.Fprintf(os.Stderr, "Error downloading %q: %v\n", e.Filename, err)
		}
	}
	return nil
}

func downloadOne(cfg config.Config, name, addrHex string, showHolders bool) error {
	addr, err := chunk.ParseAddress(addrHex)
	if err != nil {
		return chunkerr.NewAddressDecode(addrHex, err)
	}

	gateway, err := loadGateway(cfg)
	if err != nil {
		return err
	}
	network, closeNetwork, err := newNetworkClient(context.Background(), cfg, gateway)
	if err != nil {
		return err
	}
	defer closeNetwork()

	return downloadEntry(cfg, network, manifest.Entry{Address: addr, Filename: name}, showHolders)
}

func downloadEntry(cfg config.Config, network netclient.NetworkClient, e manifest.Entry, showHolders bool) error {
	start := time.Now()
	data, err := network.ReadBytes(context.Background(), e.Address)
	if err != nil {
		return err
	}

	dir := downloadDir(cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create download directory %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, e.Filename), data, 0o644); err != nil {
		return err
	}

	reporter := &progress.Reporter{ShowHolders: showHolders}
	if showHolders {
		if holders, err := network.Holders(context.Background(), e.Address); err == nil {
			for _, h := range holders {
				reporter.HolderAnnounce(e.Address, h)
			}
		}
	}
	reporter.PrintDownload(progress.DownloadSummary{
		Filename: e.Filename,
		Root:     e.Address,
		Bytes:    len(data),
		Elapsed:  time.Since(start),
	})
	return nil
}

// downloadDir resolves where downloaded files are written: the user's
// home Downloads directory when it exists, otherwise a
// downloaded_files directory under the store root.
func downloadDir(cfg config.Config) string {
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, "Downloads")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return filepath.Join(cfg.StoreRoot, "downloaded_files")
}

// loadGateway is the CLI's wallet wiring point.
func loadGateway(cfg config.Config) (walletpay.Gateway, error) {
	gateway := walletpay.NewMockGateway(1_000_000_000, 1, 0)
	if gateway.Balance() == 0 {
		return nil, chunkerr.NewWalletEmpty()
	}
	return gateway, nil
}

// newNetworkClient is the CLI's network wiring point. By default it
// returns a Mock, matching the rest of the command's in-process
// accounting. Setting NETUP_NETWORK_ADDR switches it to a Live client
// dialed over QUIC against that address, authenticated with a
// persisted wallet identity and the network's public key from
// NETUP_NETWORK_PUBKEY (hex-encoded Ed25519 public key). The returned
// close function releases any underlying connection; it is always
// safe to call even for a Mock.
func newNetworkClient(ctx context.Context, cfg config.Config, gateway walletpay.Gateway) (netclient.NetworkClient, func() error, error) {
	addr := os.Getenv("NETUP_NETWORK_ADDR")
	if addr == "" {
		return netclient.NewMock(gateway), func() error { return nil }, nil
	}

	pkHex := os.Getenv("NETUP_NETWORK_PUBKEY")
	networkPK, err := hex.DecodeString(pkHex)
	if err != nil {
		return nil, nil, fmt.Errorf("NETUP_NETWORK_PUBKEY: invalid hex: %w", err)
	}

	id, err := loadOrCreateIdentity(filepath.Join(cfg.StoreRoot, "identity.json"))
	if err != nil {
		return nil, nil, err
	}

	live, err := netclient.DialLive(ctx, nil, addr, id, networkPK, nil)
	if err != nil {
		return nil, nil, err
	}
	return live, live.Close, nil
}

// loadOrCreateIdentity loads the wallet identity persisted at filename,
// generating and saving a new one the first time the CLI runs against
// a given store root.
func loadOrCreateIdentity(filename string) (*identity.Identity, error) {
	id, err := identity.LoadFromFile(filename)
	if err == nil {
		return id, nil
	}

	id, err = identity.Generate()
	if err != nil {
		return nil, err
	}
	if err := id.SaveToFile(filename); err != nil {
		return nil, err
	}
	return id, nil
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}
