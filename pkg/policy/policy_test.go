package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
)

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()

	p := Default()

	if p.Thresholds.Low != 1 || p.Thresholds.Medium != 10 || p.Thresholds.High != 50 {
		t.Fatalf("unexpected default thresholds: %+v", p.Thresholds)
	}
	if !p.IsVerifiedContract("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D") {
		t.Error("verified contract lookup should be case-insensitive")
	}
	if p.IsVerifiedContract("0x0000000000000000000000000000000000000000") {
		t.Error("zero address should not be verified")
	}
}

func TestScamPatternOrderAndLevels(t *testing.T) {
	t.Parallel()

	p := Default()

	// Critical phishing patterns must precede the high severity ones so that
	// first-match-wins picks the harsher classification.
	seenHigh := false
	for _, sp := range p.ScamPatterns {
		if sp.Level() == models.RiskHigh {
			seenHigh = true
		}
		if sp.Level() == models.RiskCritical && seenHigh {
			t.Fatalf("critical pattern %q declared after a high pattern", sp.Pattern)
		}
	}

	var phish *ScamPattern
	for i := range p.ScamPatterns {
		if p.ScamPatterns[i].Pattern == "phishing" {
			phish = &p.ScamPatterns[i]
		}
	}
	if phish == nil {
		t.Fatal("missing phishing pattern")
	}
	if !phish.Matches("0xPHISHINGdeadbeef") {
		t.Error("pattern match should ignore case")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
valueThresholds:
  low: 2
  medium: 20
  high: 100
minContractTxCount: 50
scamPatterns:
  - pattern: rugpull
    risk: critical
    message: custom pattern
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Thresholds.High != 100 {
		t.Errorf("threshold override not applied: %+v", p.Thresholds)
	}
	if p.MinContractTxCount != 50 {
		t.Errorf("tx count override not applied: %d", p.MinContractTxCount)
	}
	if len(p.ScamPatterns) != 1 || !p.ScamPatterns[0].Matches("RugPull") {
		t.Errorf("scam pattern override not applied: %+v", p.ScamPatterns)
	}
	// Untouched sections keep defaults.
	if len(p.SuspiciousSelectors) == 0 {
		t.Error("suspicious selectors lost during merge")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	t.Parallel()

	p, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if p.Thresholds.High != 50 {
		t.Errorf("expected defaults, got %+v", p.Thresholds)
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("valueThresholds:\n  low: 10\n  medium: 5\n  high: 50\n"), 0644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for inverted thresholds")
	}
}
