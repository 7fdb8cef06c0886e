// Package manifest implements the append-only Address->filename record
// used to later bulk-download everything a run uploaded.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/meshstore/netup/pkg/chunk"
	"golang.org/x/text/unicode/norm"
)

// Entry is one (address, filename) record.
type Entry struct {
	Address  chunk.Address
	Filename string
}

// Append opens path with create+append semantics, writes one line per
// entry in the form "<hex-address>: <filename>\n", and fsyncs before
// returning so a later crash cannot lose the record of a completed
// upload. Filenames are NFC-normalized before being written; a filename
// that is not valid UTF-8 is written in Go's %q quoted form, which Read
// returns as-is rather than unquoting.
func Append(path string, entries []Entry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		name := norm.NFC.String(e.Filename)
		if !utf8.ValidString(name) {
			name = fmt.Sprintf("%q", name)
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", e.Address, name); err != nil {
			return fmt.Errorf("manifest: write entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("manifest: flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("manifest: fsync: %w", err)
	}
	return nil
}

// Read parses every line of path, splitting on the literal ": ".
// Lines whose split does not yield exactly two parts are skipped, not
// fatal. Duplicate addresses are tolerated; the caller decides how to
// dedupe (last write wins if entries are applied in file order).
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) != 2 {
			continue
		}

		addr, err := chunk.ParseAddress(parts[0])
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Address: addr, Filename: parts[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return entries, nil
}
