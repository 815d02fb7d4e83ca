// Package jsondb implements the verdict history store as an append-only
// JSON-lines file. Portable and grep-able; the right choice for a single
// agent instance with modest volume.
package jsondb

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/storage"
)

// MaxHistoryBytes caps how much history List will load back into memory.
// An attacker who can grow the file should not be able to blow the heap.
const MaxHistoryBytes = 64 * 1024 * 1024

// Store appends verdict records to a single JSONL file. Appends are
// serialized by a mutex; the file is opened per operation so external log
// rotation does not wedge a long-lived handle.
type Store struct {
	path string
	mu   sync.Mutex
}

// New validates the path and returns a store. The file is created lazily on
// first append.
func New(path string) (*Store, error) {
	cleanPath := filepath.Clean(path)
	if info, err := os.Stat(cleanPath); err == nil && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("history path %s is not a regular file", cleanPath)
	}
	return &Store{path: cleanPath}, nil
}

func (s *Store) Append(rec *storage.VerdictRecord) error {
	if rec == nil {
		return fmt.Errorf("nil verdict record")
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("verdict record marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, models.FilePermSecure)
	if err != nil {
		return fmt.Errorf("history open: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	return nil
}

func (s *Store) List(limit int) ([]*storage.VerdictRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history open: %w", err)
	}
	defer f.Close()

	var records []*storage.VerdictRecord
	scanner := bufio.NewScanner(io.LimitReader(f, MaxHistoryBytes))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec storage.VerdictRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn trailing line from a crashed append is tolerated;
			// anything else in the middle of the file is corruption.
			continue
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("history scan: %w", err)
	}

	// Newest first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *Store) Close() error { return nil }

var _ storage.VerdictStore = (*Store)(nil)
