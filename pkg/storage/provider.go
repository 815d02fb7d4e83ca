package storage

import (
	"time"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
)

// VerdictRecord is one evaluated transaction as persisted in the history
// store: the verdict plus enough batch context to audit what the agent
// signed and why.
type VerdictRecord struct {
	ID             string                `json:"id"`
	BatchID        string                `json:"batchId"`
	SafeAddress    string                `json:"safeAddress"`
	SafeTxHash     string                `json:"safeTxHash"`
	Safe           bool                  `json:"safe"`
	Signed         bool                  `json:"signed"`
	SecurityChecks models.SecurityChecks `json:"securityChecks"`
	Summary        string                `json:"summary"`
	AIAnalysis     string                `json:"aiAnalysis"`
	EvaluatedAt    time.Time             `json:"evaluatedAt"`
}

// VerdictStore is the contract for verdict history persistence. The
// history is append-only; records are immutable once written.
type VerdictStore interface {
	Append(rec *VerdictRecord) error
	// List returns up to limit records, newest first. limit <= 0 means all.
	List(limit int) ([]*VerdictRecord, error)
	Close() error
}

// NopStore discards everything. Used when history is disabled.
type NopStore struct{}

func (NopStore) Append(*VerdictRecord) error          { return nil }
func (NopStore) List(int) ([]*VerdictRecord, error)   { return nil, nil }
func (NopStore) Close() error                         { return nil }
