package jsondb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/storage"
)

func record(id string, safe bool, at time.Time) *storage.VerdictRecord {
	return &storage.VerdictRecord{
		ID:          id,
		BatchID:     "batch-1",
		SafeAddress: "0xsafe",
		SafeTxHash:  "0x" + id,
		Safe:        safe,
		SecurityChecks: models.SecurityChecks{
			models.CheckAddressPoisoning: {Safe: safe, Risk: models.RiskNone, Message: "clean"},
		},
		Summary:     "✅ addressPoisoning: clean",
		EvaluatedAt: at,
	}
}

func TestAppendAndList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.jsonl")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	base := time.Now()
	for i, id := range []string{"aaa", "bbb", "ccc"} {
		if err := s.Append(record(id, true, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Append(%s): %v", id, err)
		}
	}

	got, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List returned %d records, want 3", len(got))
	}
	if got[0].ID != "ccc" || got[2].ID != "aaa" {
		t.Errorf("records not newest-first: %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}

	limited, err := s.List(2)
	if err != nil {
		t.Fatalf("List(2): %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "ccc" {
		t.Errorf("limit not applied: %+v", limited)
	}
}

func TestListMissingFile(t *testing.T) {
	t.Parallel()

	s, err := New(filepath.Join(t.TempDir(), "never-written.jsonl"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := s.List(10)
	if err != nil {
		t.Fatalf("List on missing file: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestToleratesTornTrailingLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.jsonl")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Append(record("good", true, time.Now())); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Simulate a crash mid-append.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.WriteString(`{"id":"torn","safe":tr`)
	f.Close()

	got, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "good" {
		t.Errorf("torn line should be skipped, got %+v", got)
	}
}

func TestSecureFilePermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.jsonl")
	s, _ := New(path)
	if err := s.Append(record("aaa", false, time.Now())); err != nil {
		t.Fatalf("Append: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != models.FilePermSecure {
		t.Errorf("history file permissions = %o, want %o", perm, models.FilePermSecure)
	}
}
