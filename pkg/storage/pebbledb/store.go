// Package pebbledb implements the verdict history store on CockroachDB's
// Pebble. LSM trees give cheap appends and efficient reverse range scans,
// which is exactly the write-heavy, read-rarely shape of a signing audit
// trail.
package pebbledb

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/storage"
)

// Key layout: verdict:<unix-nanos, zero padded>:<record id> -> JSON blob.
// Zero padding keeps lexicographic order equal to chronological order so a
// reverse iterator yields newest first.
var (
	prefixVerdict = []byte("verdict:")
	keyMetaSchema = []byte("meta:schema")
)

// CurrentSchemaVersion guards binary compatibility of the stored blobs.
const CurrentSchemaVersion = "1"

// Store is a Pebble backed verdict history.
type Store struct {
	db *pebble.DB
	mu sync.Mutex
}

// Open opens or creates a Pebble history database. A short retry loop
// absorbs the transient lock contention that rapid agent restarts cause.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{Cache: pebble.NewCache(8 << 20)}

	var db *pebble.DB
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		db, err = pebble.Open(path, opts)
		if err == nil {
			break
		}
		if !strings.Contains(err.Error(), "lock") {
			return nil, fmt.Errorf("pebble open: %w", err)
		}
		time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("pebble open after retries: %w", err)
	}

	s := &Store{db: db}
	if err := s.checkSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) checkSchema() error {
	val, closer, err := s.db.Get(keyMetaSchema)
	if err == pebble.ErrNotFound {
		return s.db.Set(keyMetaSchema, []byte(CurrentSchemaVersion), pebble.Sync)
	}
	if err != nil {
		return fmt.Errorf("schema read: %w", err)
	}
	defer closer.Close()
	if string(val) != CurrentSchemaVersion {
		return fmt.Errorf("history database schema %q is incompatible with %q", val, CurrentSchemaVersion)
	}
	return nil
}

func (s *Store) Append(rec *storage.VerdictRecord) error {
	if rec == nil {
		return fmt.Errorf("nil verdict record")
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("verdict record marshal: %w", err)
	}

	ts := rec.EvaluatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	key := fmt.Sprintf("%s%020d:%s", prefixVerdict, ts.UnixNano(), rec.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Set([]byte(key), blob, pebble.Sync); err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	return nil
}

func (s *Store) List(limit int) ([]*storage.VerdictRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	upper := append(append([]byte{}, prefixVerdict...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefixVerdict,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("history iterator: %w", err)
	}
	defer iter.Close()

	var records []*storage.VerdictRecord
	for valid := iter.Last(); valid; valid = iter.Prev() {
		if limit > 0 && len(records) >= limit {
			break
		}
		var rec storage.VerdictRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("history record decode at %s: %w", iter.Key(), err)
		}
		records = append(records, &rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("history scan: %w", err)
	}
	return records, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ storage.VerdictStore = (*Store)(nil)
