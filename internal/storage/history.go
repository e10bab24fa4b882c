package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// HistoryFileName is the append-only audit ledger kept in the base directory.
const HistoryFileName = "history.jsonl"

// HistoryLedger is an append-only JSONL file of task history entries.
// Entries are never rewritten or removed.
type HistoryLedger struct {
	path string
	mu   sync.Mutex
}

// NewHistoryLedger creates a ledger stored in basePath.
func NewHistoryLedger(basePath string) *HistoryLedger {
	return &HistoryLedger{path: filepath.Join(basePath, HistoryFileName)}
}

// AppendHistory writes entry as one JSON line. An entry without an id is
// given a random UUID.
func (l *HistoryLedger) AppendHistory(_ context.Context, entry models.HistoryEntry) (models.HistoryEntry, error) {
	if entry.TaskID <= 0 {
		return models.HistoryEntry{}, fmt.Errorf("appending history: task id is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("marshalling history entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return models.HistoryEntry{}, fmt.Errorf("creating history directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("opening history ledger: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		return models.HistoryEntry{}, fmt.Errorf("writing history entry: %w", err)
	}
	return entry, nil
}

// HistoryByTask returns the entries of a task in timestamp order. Lines
// that cannot be decoded are skipped.
func (l *HistoryLedger) HistoryByTask(_ context.Context, taskID int64) ([]models.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history ledger for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []models.HistoryEntry
	r := bufio.NewReader(f)
	for {
		line, readErr := r.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			var e models.HistoryEntry
			if err := json.Unmarshal(line, &e); err == nil && e.TaskID == taskID {
				entries = append(entries, e)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading history ledger: %w", readErr)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}
