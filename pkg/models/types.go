package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// -- Risk Levels --

// RiskLevel is the ordered severity scale used by every security check.
// The integer ordering is load bearing: aggregation and escalation logic
// compare levels directly.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = [...]string{"none", "low", "medium", "high", "critical"}

func (r RiskLevel) String() string {
	if r < RiskNone || r > RiskCritical {
		return "unknown"
	}
	return riskNames[r]
}

// ParseRiskLevel maps the wire name back to a level. Unknown names map to
// RiskHigh so that a corrupted or future value is never silently downgraded.
func ParseRiskLevel(s string) RiskLevel {
	for i, name := range riskNames {
		if strings.EqualFold(s, name) {
			return RiskLevel(i)
		}
	}
	return RiskHigh
}

func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("risk level decode: %w", err)
	}
	*r = ParseRiskLevel(s)
	return nil
}

// -- Security Checks --

// CheckID is the stable identifier of one evaluator, used as the key in
// SecurityChecks and in every report.
type CheckID string

const (
	CheckAddressPoisoning    CheckID = "addressPoisoning"
	CheckValueTransfer       CheckID = "valueTransfer"
	CheckContractInteraction CheckID = "contractInteraction"
	CheckKnownScams          CheckID = "knownScams"
	CheckApprovalRisks       CheckID = "approvalRisks"
	CheckProxyRisks          CheckID = "proxyRisks"
	CheckContractAge         CheckID = "contractAge"
)

// SecurityCheck is the atomic output of one evaluator. Safe and Risk are
// stored independently: a check may flag elevated but tolerable risk while
// still reporting Safe.
type SecurityCheck struct {
	Safe    bool      `json:"safe"`
	Risk    RiskLevel `json:"risk"`
	Message string    `json:"message"`
}

// SecurityChecks maps check identifiers to their results for one transaction.
type SecurityChecks map[CheckID]SecurityCheck

// Unsafe reports whether any member carries high or critical risk.
func (sc SecurityChecks) Unsafe() bool {
	for _, c := range sc {
		if c.Risk >= RiskHigh {
			return true
		}
	}
	return false
}

// -- Verdict --

// Verdict is the aggregated decision for one transaction. It is produced
// once by the decision engine and never mutated afterwards.
type Verdict struct {
	Safe           bool           `json:"safe"`
	SecurityChecks SecurityChecks `json:"securityChecks"`
	Summary        string         `json:"summary"`
	AIAnalysis     string         `json:"aiAnalysis"`
	SafeTxHash     string         `json:"safeTxHash,omitempty"`
	EvaluatedAt    time.Time      `json:"evaluatedAt"`
}

// -- Reputation --

// AddressEntry is one raw record from an external reputation list. Only the
// address is semantically used; it is lowercased on ingestion.
type AddressEntry struct {
	Address string `json:"address"`
	Comment string `json:"comment,omitempty"`
	Date    string `json:"date,omitempty"`
}

// -- Safe Transaction Service Shapes --

// DecodedParameter is one decoded argument of a contract call.
type DecodedParameter struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// DataDecoded is the transaction service's ABI decoding of the call data.
type DataDecoded struct {
	Method     string             `json:"method"`
	Parameters []DecodedParameter `json:"parameters"`
}

// PendingTransaction is a multisig transaction awaiting confirmations,
// as returned by the Safe Transaction Service. Consumed read-only.
type PendingTransaction struct {
	SafeTxHash            string       `json:"safeTxHash"`
	To                    string       `json:"to"`
	Value                 string       `json:"value"` // wei, decimal string
	Data                  string       `json:"data,omitempty"`
	Nonce                 int64        `json:"nonce"`
	ExecutionDate         *string      `json:"executionDate"`
	SubmissionDate        string       `json:"submissionDate,omitempty"`
	DataDecoded           *DataDecoded `json:"dataDecoded,omitempty"`
	ConfirmationsRequired int          `json:"confirmationsRequired,omitempty"`
}

// Executed reports whether the transaction already ran on chain.
func (t *PendingTransaction) Executed() bool {
	return t.ExecutionDate != nil && *t.ExecutionDate != ""
}

// Method returns the decoded method name, or "" for plain transfers and
// undecoded call data.
func (t *PendingTransaction) Method() string {
	if t.DataDecoded == nil {
		return ""
	}
	return t.DataDecoded.Method
}

// Parameter returns the decoded parameter with the given name, if present.
func (t *PendingTransaction) Parameter(name string) (DecodedParameter, bool) {
	if t.DataDecoded == nil {
		return DecodedParameter{}, false
	}
	for _, p := range t.DataDecoded.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return DecodedParameter{}, false
}

// WalletInfo describes the multisig wallet at the coordination service.
type WalletInfo struct {
	Address   string   `json:"address"`
	Nonce     int64    `json:"nonce"`
	Threshold int      `json:"threshold"`
	Owners    []string `json:"owners"`
	Version   string   `json:"version,omitempty"`
}

// -- Batch Processing --

// TransactionResult records the outcome for one transaction inside a batch.
type TransactionResult struct {
	SafeTxHash string `json:"safeTxHash"`
	Safe       bool   `json:"safe"`
	Signed     bool   `json:"signed"`
	// SignError carries a confirmation submission failure. It never aborts
	// the batch; it is surfaced here for the operator.
	SignError string `json:"signError,omitempty"`
}

// BatchResult is the terminal outcome of one pass over a wallet's pending
// queue. On a fully safe batch Safe is true and LastTransaction points at
// the final processed transaction. When the batch halts on an unsafe
// transaction, Safe is false and the halting verdict's detail is inlined.
type BatchResult struct {
	BatchID             string              `json:"batchId"`
	SafeAddress         string              `json:"safeAddress"`
	Safe                bool                `json:"safe"`
	TransactionsResults []TransactionResult `json:"transactionsResults"`
	LastTransaction     *PendingTransaction `json:"lastTransaction,omitempty"`

	// Populated only when the batch halted on an unsafe transaction.
	HaltedTxHash   string         `json:"haltedTxHash,omitempty"`
	SecurityChecks SecurityChecks `json:"securityChecks,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	AIAnalysis     string         `json:"aiAnalysis,omitempty"`
}
