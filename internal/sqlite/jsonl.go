package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// Record kinds in a thread export.
const (
	exportKindThread = "thread"
	exportKindOffer  = "offer"
)

type exportRecord struct {
	Kind   string             `json:"kind"`
	Thread *types.OfferThread `json:"thread,omitempty"`
	Offer  *types.Offer       `json:"offer,omitempty"`
}

// ExportThread writes the thread row and its full ledger to
// dir/thread-<id>.jsonl, one record per line, and returns the path.
func (b *Backend) ExportThread(ctx context.Context, threadID, dir string) (string, error) {
	snap, err := b.LoadOfferThreadWithLiveOffer(ctx, threadID)
	if err != nil {
		return "", err
	}
	return WriteThreadExport(snap, dir)
}

// WriteThreadExport writes snap in the ExportThread format. Callers use it
// to export a filtered view of a thread rather than the stored ledger.
func WriteThreadExport(snap types.ThreadSnapshot, dir string) (string, error) {
	records := make([]json.RawMessage, 0, len(snap.Ledger)+1)
	head, err := json.Marshal(exportRecord{Kind: exportKindThread, Thread: &snap.Thread})
	if err != nil {
		return "", fmt.Errorf("marshal thread: %w", err)
	}
	records = append(records, head)
	for i := range snap.Ledger {
		rec, err := json.Marshal(exportRecord{Kind: exportKindOffer, Offer: &snap.Ledger[i]})
		if err != nil {
			return "", fmt.Errorf("marshal offer: %w", err)
		}
		records = append(records, rec)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, "thread-"+snap.Thread.ThreadID+".jsonl")
	if err := writeJSONL(path, records); err != nil {
		return "", err
	}
	return path, nil
}

// ReadThreadExport reads a file written by ExportThread back into a
// snapshot. Malformed lines are skipped.
func ReadThreadExport(path string) (types.ThreadSnapshot, error) {
	records, err := readJSONL(path)
	if err != nil {
		return types.ThreadSnapshot{}, err
	}
	var (
		snap  types.ThreadSnapshot
		found bool
	)
	for _, raw := range records {
		var rec exportRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		switch {
		case rec.Kind == exportKindThread && rec.Thread != nil:
			snap.Thread = *rec.Thread
			found = true
		case rec.Kind == exportKindOffer && rec.Offer != nil:
			snap.Ledger = append(snap.Ledger, *rec.Offer)
		}
	}
	if !found {
		return types.ThreadSnapshot{}, types.New(types.CodeInvalidArgument, path+" holds no thread record")
	}
	if id := snap.Thread.LiveOfferID; id != "" {
		if o, ok := snap.Find(id); ok {
			snap.Live = &o
		}
	}
	return snap, nil
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail(fmt.Errorf("writing record: %w", err))
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail(fmt.Errorf("writing newline: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
