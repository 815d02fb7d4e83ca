// Package engine runs every registered risk check concurrently for one
// transaction and folds the results into a single Verdict. The decision is
// purely a function of the deterministic checks; the advisory narrative is
// bolted on afterwards and can fail without touching the outcome.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/checks"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/metrics"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Narrator produces the advisory natural-language report. Implementations
// are best-effort: any error is replaced by a fixed fallback string and the
// verdict is never affected.
type Narrator interface {
	Narrate(ctx context.Context, tx *models.PendingTransaction, results models.SecurityChecks) (string, error)
}

// Engine evaluates transactions against a fixed check registry.
type Engine struct {
	registry []checks.Check
	narrator Narrator
}

// New builds an engine. A nil narrator disables the advisory report; the
// fallback text is used unconditionally.
func New(registry []checks.Check, narrator Narrator) *Engine {
	return &Engine{registry: registry, narrator: narrator}
}

// Evaluate fans all checks out concurrently, waits for every one of them,
// and aggregates. The resulting SecurityChecks always has one entry per
// registered check: a check that panics is recorded as a conservative
// failure rather than dropped.
func (e *Engine) Evaluate(ctx context.Context, tx *models.PendingTransaction) (*models.Verdict, error) {
	if tx == nil {
		return nil, fmt.Errorf("nil transaction")
	}

	results := make([]models.SecurityCheck, len(e.registry))

	g, gctx := errgroup.WithContext(ctx)
	for i, check := range e.registry {
		i, check := i, check
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("engine: check %s panicked: %v", check.ID(), r)
					results[i] = models.SecurityCheck{
						Safe:    false,
						Risk:    models.RiskMedium,
						Message: "Unable to verify (internal check failure)",
					}
				}
			}()
			results[i] = check.Evaluate(gctx, tx)
			return nil
		})
	}
	// Checks absorb their own failures, so Wait only synchronizes the fan-in.
	_ = g.Wait()

	securityChecks := make(models.SecurityChecks, len(e.registry))
	for i, check := range e.registry {
		securityChecks[check.ID()] = results[i]
	}

	verdict := &models.Verdict{
		Safe:           !securityChecks.Unsafe(),
		SecurityChecks: securityChecks,
		Summary:        e.renderSummary(results),
		SafeTxHash:     tx.SafeTxHash,
		EvaluatedAt:    time.Now(),
	}

	metrics.TransactionsEvaluated.Inc()
	if verdict.Safe {
		metrics.Verdicts.WithLabelValues("safe").Inc()
	} else {
		metrics.Verdicts.WithLabelValues("unsafe").Inc()
	}

	// The verdict is final at this point. The narrative is enrichment only.
	verdict.AIAnalysis = e.narrate(ctx, tx, securityChecks)
	return verdict, nil
}

// renderSummary produces the deterministic check-by-check report, one line
// per check in registration order.
func (e *Engine) renderSummary(results []models.SecurityCheck) string {
	var b strings.Builder
	for i, check := range e.registry {
		if i > 0 {
			b.WriteByte('\n')
		}
		r := results[i]
		b.WriteString(riskIndicator(r.Risk))
		b.WriteByte(' ')
		b.WriteString(string(check.ID()))
		b.WriteString(": ")
		b.WriteString(r.Message)
	}
	return b.String()
}

func riskIndicator(risk models.RiskLevel) string {
	switch {
	case risk >= models.RiskHigh:
		return "🚨"
	case risk == models.RiskMedium:
		return "⚠️"
	default:
		return "✅"
	}
}

func (e *Engine) narrate(ctx context.Context, tx *models.PendingTransaction, results models.SecurityChecks) string {
	if e.narrator == nil {
		return models.NarrativeFallback
	}
	nctx, cancel := context.WithTimeout(ctx, models.NarrativeTimeout)
	defer cancel()

	analysis, err := e.narrator.Narrate(nctx, tx, results)
	if err != nil || strings.TrimSpace(analysis) == "" {
		if err != nil {
			log.Printf("engine: narrative generation failed, using fallback: %v", err)
		}
		metrics.NarrativeFallbacks.Inc()
		return models.NarrativeFallback
	}
	return analysis
}
