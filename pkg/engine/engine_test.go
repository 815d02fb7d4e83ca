package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/checks"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
)

// stubCheck returns a fixed result, optionally after a delay or a panic.
type stubCheck struct {
	id     models.CheckID
	result models.SecurityCheck
	delay  time.Duration
	panics bool
}

func (s *stubCheck) ID() models.CheckID { return s.id }

func (s *stubCheck) Evaluate(ctx context.Context, tx *models.PendingTransaction) models.SecurityCheck {
	if s.panics {
		panic("backing call exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	return s.result
}

type stubNarrator struct {
	text string
	err  error
}

func (s *stubNarrator) Narrate(ctx context.Context, tx *models.PendingTransaction, res models.SecurityChecks) (string, error) {
	return s.text, s.err
}

func safeCheck(id models.CheckID, risk models.RiskLevel) *stubCheck {
	return &stubCheck{id: id, result: models.SecurityCheck{Safe: risk < models.RiskHigh, Risk: risk, Message: "stub " + string(id)}}
}

func testTx() *models.PendingTransaction {
	return &models.PendingTransaction{SafeTxHash: "0xabc", To: "0xto", Value: "0"}
}

func TestAggregationRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		risks    []models.RiskLevel
		wantSafe bool
	}{
		{"all none", []models.RiskLevel{models.RiskNone, models.RiskNone}, true},
		{"medium is tolerable", []models.RiskLevel{models.RiskNone, models.RiskLow, models.RiskMedium}, true},
		{"one high trips", []models.RiskLevel{models.RiskNone, models.RiskHigh}, false},
		{"one critical trips", []models.RiskLevel{models.RiskLow, models.RiskCritical, models.RiskNone}, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			registry := make([]checks.Check, len(tc.risks))
			for i, r := range tc.risks {
				registry[i] = safeCheck(models.CheckID("check"+string(rune('A'+i))), r)
			}
			e := New(registry, &stubNarrator{text: "fine"})
			v, err := e.Evaluate(context.Background(), testTx())
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if v.Safe != tc.wantSafe {
				t.Errorf("Safe = %v, want %v (checks: %+v)", v.Safe, tc.wantSafe, v.SecurityChecks)
			}
		})
	}
}

func TestAllChecksPresentDespiteFailures(t *testing.T) {
	t.Parallel()

	registry := []checks.Check{
		safeCheck("healthy", models.RiskNone),
		&stubCheck{id: "panicky", panics: true},
		&stubCheck{id: "slow", delay: 50 * time.Millisecond,
			result: models.SecurityCheck{Safe: true, Risk: models.RiskNone, Message: "eventually fine"}},
	}
	e := New(registry, nil)

	v, err := e.Evaluate(context.Background(), testTx())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(v.SecurityChecks) != 3 {
		t.Fatalf("SecurityChecks has %d entries, want 3: %+v", len(v.SecurityChecks), v.SecurityChecks)
	}
	panicked := v.SecurityChecks["panicky"]
	if panicked.Safe || panicked.Risk != models.RiskMedium {
		t.Errorf("panicked check should degrade conservatively, got %+v", panicked)
	}
	if got := v.SecurityChecks["slow"]; got.Message != "eventually fine" {
		t.Errorf("slow check result lost: %+v", got)
	}
}

func TestSummaryIsDeterministicAndOrdered(t *testing.T) {
	t.Parallel()

	registry := []checks.Check{
		safeCheck("first", models.RiskNone),
		safeCheck("second", models.RiskMedium),
		safeCheck("third", models.RiskCritical),
	}
	e := New(registry, nil)

	v1, _ := e.Evaluate(context.Background(), testTx())
	v2, _ := e.Evaluate(context.Background(), testTx())
	if v1.Summary != v2.Summary {
		t.Error("summary must be deterministic across evaluations")
	}

	lines := strings.Split(v1.Summary, "\n")
	if len(lines) != 3 {
		t.Fatalf("summary has %d lines, want 3:\n%s", len(lines), v1.Summary)
	}
	if !strings.Contains(lines[0], "first:") || !strings.Contains(lines[2], "third:") {
		t.Errorf("summary lines out of registration order:\n%s", v1.Summary)
	}
	if !strings.HasPrefix(lines[2], "🚨") {
		t.Errorf("critical line missing alert indicator: %q", lines[2])
	}
	if !strings.HasPrefix(lines[1], "⚠️") {
		t.Errorf("medium line missing warning indicator: %q", lines[1])
	}
}

func TestNarrativeIsAdvisoryOnly(t *testing.T) {
	t.Parallel()

	unsafeRegistry := []checks.Check{safeCheck("threat", models.RiskCritical)}

	// Narrator failure degrades to the fixed fallback without touching Safe.
	e := New(unsafeRegistry, &stubNarrator{err: errors.New("provider down")})
	v, err := e.Evaluate(context.Background(), testTx())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Safe {
		t.Error("verdict must stay unsafe when narrative fails")
	}
	if v.AIAnalysis != models.NarrativeFallback {
		t.Errorf("AIAnalysis = %q, want fallback", v.AIAnalysis)
	}

	// A glowing narrative never overrides the deterministic decision.
	e = New(unsafeRegistry, &stubNarrator{text: "This transaction looks perfectly safe to me."})
	v, _ = e.Evaluate(context.Background(), testTx())
	if v.Safe {
		t.Error("narrative text must never flip the verdict")
	}
	if v.AIAnalysis == models.NarrativeFallback {
		t.Error("successful narrative should be kept")
	}

	// Nil narrator uses the fallback.
	e = New(unsafeRegistry, nil)
	v, _ = e.Evaluate(context.Background(), testTx())
	if v.AIAnalysis != models.NarrativeFallback {
		t.Errorf("nil narrator: AIAnalysis = %q, want fallback", v.AIAnalysis)
	}
}

func TestEvaluateNilTransaction(t *testing.T) {
	t.Parallel()

	e := New(nil, nil)
	if _, err := e.Evaluate(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil transaction")
	}
}
