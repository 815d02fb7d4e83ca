// Package signer walks a wallet's pending transaction queue, evaluates each
// transaction through the decision engine, and co-signs the safe ones. The
// walk is an explicit halt-on-first-unsafe fold: transactions are processed
// strictly in the order the coordination service returns them, and the
// first unsafe verdict terminates the batch. A halted batch is a terminal
// outcome requiring human review, never an auto-retry.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/metrics"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/storage"
)

// CoordinationClient is the boundary with the multisig coordination
// service.
type CoordinationClient interface {
	ListPending(ctx context.Context, safeAddress string) ([]models.PendingTransaction, error)
	GetWalletInfo(ctx context.Context, address string) (*models.WalletInfo, error)
	Confirm(ctx context.Context, safeTxHash, signature string) error
}

// Evaluator produces a verdict for one transaction.
type Evaluator interface {
	Evaluate(ctx context.Context, tx *models.PendingTransaction) (*models.Verdict, error)
}

// Orchestrator owns one signing key and processes batches sequentially.
// No two transactions of a batch are ever evaluated or signed concurrently;
// confirming N before N-1 is resolved would violate multisig nonce
// assumptions.
type Orchestrator struct {
	coordination CoordinationClient
	evaluator    Evaluator
	key          *ecdsa.PrivateKey
	history      storage.VerdictStore
}

// New builds an orchestrator from a hex-encoded owner key. The history
// store may be a storage.NopStore but must not be nil.
func New(coordination CoordinationClient, evaluator Evaluator, ownerKeyHex string, history storage.VerdictStore) (*Orchestrator, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(ownerKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("owner key parse: %w", err)
	}
	return &Orchestrator{
		coordination: coordination,
		evaluator:    evaluator,
		key:          key,
		history:      history,
	}, nil
}

// OwnerAddress returns the signer's address, for matching against the
// wallet's owner set.
func (o *Orchestrator) OwnerAddress() string {
	return crypto.PubkeyToAddress(o.key.PublicKey).Hex()
}

// ProcessPendingTransactions runs one batch for the given wallet. It
// returns an error only when the pending queue itself cannot be fetched;
// unsafe verdicts and confirmation failures are outcomes, not errors.
func (o *Orchestrator) ProcessPendingTransactions(ctx context.Context, safeAddress string) (*models.BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, models.GlobalBatchTimeout)
	defer cancel()

	pending, err := o.coordination.ListPending(ctx, safeAddress)
	if err != nil {
		return nil, fmt.Errorf("pending queue fetch: %w", err)
	}

	// Keep only unexecuted transactions, preserving the service's order.
	queue := pending[:0:0]
	for _, tx := range pending {
		if !tx.Executed() {
			queue = append(queue, tx)
		}
	}

	result := &models.BatchResult{
		BatchID:     uuid.NewString(),
		SafeAddress: safeAddress,
		Safe:        true,
	}
	log.Printf("signer: batch %s: %d unexecuted transactions for %s", result.BatchID, len(queue), safeAddress)

	for i := range queue {
		tx := &queue[i]

		verdict, err := o.evaluator.Evaluate(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", tx.SafeTxHash, err)
		}
		if !verdict.Safe {
			o.record(result.BatchID, safeAddress, verdict, false)
			log.Printf("signer: batch %s halted at unsafe transaction %s", result.BatchID, tx.SafeTxHash)
			result.Safe = false
			result.HaltedTxHash = tx.SafeTxHash
			result.SecurityChecks = verdict.SecurityChecks
			result.Summary = verdict.Summary
			result.AIAnalysis = verdict.AIAnalysis
			return result, nil
		}

		txResult := models.TransactionResult{SafeTxHash: tx.SafeTxHash, Safe: true}
		if err := o.confirm(ctx, tx); err != nil {
			// A failed submission never aborts the batch; it is logged and
			// surfaced in the per-transaction result.
			log.Printf("signer: confirmation failed for %s: %v", tx.SafeTxHash, err)
			metrics.ConfirmationsSubmitted.WithLabelValues("error").Inc()
			txResult.SignError = err.Error()
		} else {
			metrics.ConfirmationsSubmitted.WithLabelValues("success").Inc()
			txResult.Signed = true
		}
		o.record(result.BatchID, safeAddress, verdict, txResult.Signed)
		result.TransactionsResults = append(result.TransactionsResults, txResult)
		last := queue[i]
		result.LastTransaction = &last
	}

	return result, nil
}

// confirm signs the transaction's canonical hash and submits the signature.
func (o *Orchestrator) confirm(ctx context.Context, tx *models.PendingTransaction) error {
	signature, err := o.signHash(tx.SafeTxHash)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	return o.coordination.Confirm(ctx, tx.SafeTxHash, signature)
}

// signHash produces an eth_sign style signature over the 32-byte safe
// transaction hash, with the recovery id shifted into the 27/28 range the
// coordination service expects.
func (o *Orchestrator) signHash(safeTxHash string) (string, error) {
	raw, err := hexutil.Decode(safeTxHash)
	if err != nil || len(raw) != common.HashLength {
		return "", fmt.Errorf("malformed safe tx hash %q", safeTxHash)
	}
	sig, err := crypto.Sign(raw, o.key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// record appends the verdict to the history store. History failures are
// logged, never fatal: losing an audit line must not block signing.
func (o *Orchestrator) record(batchID, safeAddress string, verdict *models.Verdict, signed bool) {
	rec := &storage.VerdictRecord{
		ID:             uuid.NewString(),
		BatchID:        batchID,
		SafeAddress:    safeAddress,
		SafeTxHash:     verdict.SafeTxHash,
		Safe:           verdict.Safe,
		Signed:         signed,
		SecurityChecks: verdict.SecurityChecks,
		Summary:        verdict.Summary,
		AIAnalysis:     verdict.AIAnalysis,
		EvaluatedAt:    verdict.EvaluatedAt,
	}
	if err := o.history.Append(rec); err != nil {
		log.Printf("signer: history append failed for %s: %v", verdict.SafeTxHash, err)
	}
}
