// Package checks implements the independent risk evaluators applied to every
// pending multisig transaction. Each evaluator is pure: one transaction in,
// one SecurityCheck out, no shared mutable state beyond read-only access to
// the reputation cache. An evaluator absorbs its own failures and degrades
// to a conservative result; it never panics past its boundary and never
// aborts the batch.
package checks

import (
	"context"
	"strings"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/policy"
)

// Check is one independent risk evaluator.
type Check interface {
	ID() models.CheckID
	Evaluate(ctx context.Context, tx *models.PendingTransaction) models.SecurityCheck
}

// ReputationReader is the read side of the address reputation cache.
type ReputationReader interface {
	IsDenylisted(address string) bool
	IsAllowlisted(address string) bool
}

// ChainReader supplies on-chain facts for the contractAge check.
type ChainReader interface {
	GetCode(ctx context.Context, address string) ([]byte, error)
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
}

// NewRegistry assembles the fixed evaluator set. The contractAge check is
// only registered when an on-chain provider is available; everything else is
// unconditional.
func NewRegistry(pol *policy.Policy, rep ReputationReader, chain ChainReader) []Check {
	registry := []Check{
		&AddressPoisoning{Reputation: rep},
		&ValueTransfer{Policy: pol},
		&ContractInteraction{Policy: pol},
		&KnownScams{Policy: pol},
		&ApprovalRisks{},
		&ProxyRisks{Policy: pol},
	}
	if chain != nil {
		registry = append(registry, &ContractAge{Policy: pol, Chain: chain})
	}
	return registry
}

// -- Shared Helpers --

// hasCallData reports whether the transaction carries a contract call.
// The transaction service represents plain transfers as "" or "0x".
func hasCallData(tx *models.PendingTransaction) bool {
	return tx.Data != "" && tx.Data != "0x"
}

// selector returns the lowercased 4-byte function selector ("0x" + 8 hex
// chars), or "" when the call data is too short to carry one.
func selector(tx *models.PendingTransaction) string {
	data := strings.ToLower(tx.Data)
	if len(data) < 10 || !strings.HasPrefix(data, "0x") {
		return ""
	}
	return data[:10]
}

// unableToVerify is the conservative degradation result used when a check's
// backing call fails. Medium risk keeps the verdict signable while making
// the gap visible in the summary.
func unableToVerify(what string) models.SecurityCheck {
	return models.SecurityCheck{
		Safe:    false,
		Risk:    models.RiskMedium,
		Message: "Unable to verify " + what,
	}
}

func pass(message string) models.SecurityCheck {
	return models.SecurityCheck{Safe: true, Risk: models.RiskNone, Message: message}
}
