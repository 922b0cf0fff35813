package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// progressRecord is one append-only line in the progress ledger: a
// chunk hash that has been both inserted into the vector store and
// durably recorded here. A chunk is "done" only once both have
// happened.
type progressRecord struct {
	ChunkHash string `json:"chunk_hash"`
}

// progressLedger is the in-memory-plus-append-only-file record of
// completed chunk hashes; opening it loads every hash already in the
// file, including those written by earlier runs. It exists
// alongside the permanent VectorStore record because the vector store
// alone can't tell a resumed run "you already embedded this in the run
// that just crashed" any faster than re-querying it per chunk — the
// ledger gives an O(1) in-memory check for the common case, while
// VectorStore.Contains remains the source of truth across restarts.
type progressLedger struct {
	mu   sync.Mutex
	seen map[string]bool
	file *os.File
}

func openProgressLedger(path string) (*progressLedger, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ingest: creating progress ledger directory: %w", err)
		}
	}

	seen := make(map[string]bool)
	if existing, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(existing)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var rec progressRecord
			if err := json.Unmarshal(scanner.Bytes(), &rec); err == nil && rec.ChunkHash != "" {
				seen[rec.ChunkHash] = true
			}
		}
		existing.Close()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("ingest: reading progress ledger: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ingest: opening progress ledger: %w", err)
	}
	return &progressLedger{seen: seen, file: f}, nil
}

// Contains reports whether chunkHash has already been recorded as
// completed in this ledger.
func (l *progressLedger) Contains(chunkHash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[chunkHash]
}

// Append durably records chunkHash as completed: open-append-flush
// discipline via O_APPEND plus an explicit Sync, so a crash immediately
// after Append never loses the record.
func (l *progressLedger) Append(chunkHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(progressRecord{ChunkHash: chunkHash})
	if err != nil {
		return fmt.Errorf("ingest: marshaling progress record: %w", err)
	}
	data = append(data, '\n')
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("ingest: appending to progress ledger: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("ingest: syncing progress ledger: %w", err)
	}
	l.seen[chunkHash] = true
	return nil
}

func (l *progressLedger) Close() error {
	return l.file.Close()
}
