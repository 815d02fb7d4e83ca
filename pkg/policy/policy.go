// Package policy holds the declarative risk policy: value thresholds,
// suspicious selectors, scam keyword patterns and the verified contract
// allowlist. Defaults are compiled in; a YAML file can override any section
// per deployment.
package policy

import (
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strings"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
	"gopkg.in/yaml.v3"
)

// wei per unit of the chain's native 18-decimal currency.
var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ScamPattern is one entry of the knownScams table. Patterns are matched
// case-insensitively against the call data and the decoded method name,
// iterated in declared order, first match wins.
type ScamPattern struct {
	Pattern string           `yaml:"pattern"`
	Risk    string           `yaml:"risk"`
	Message string           `yaml:"message"`
	re      *regexp.Regexp   `yaml:"-"`
	level   models.RiskLevel `yaml:"-"`
}

// Level returns the compiled risk level of the pattern.
func (p *ScamPattern) Level() models.RiskLevel { return p.level }

// Matches reports whether the pattern occurs in s, ignoring case.
func (p *ScamPattern) Matches(s string) bool { return p.re != nil && p.re.MatchString(s) }

// ValueThresholds holds the native-currency escalation boundaries, expressed
// in whole units. Comparison is exclusive: a value exactly at a boundary is
// not escalated past it.
type ValueThresholds struct {
	Low    int64 `yaml:"low"`
	Medium int64 `yaml:"medium"`
	High   int64 `yaml:"high"`
}

// Policy is the full risk policy consumed by the check registry.
type Policy struct {
	Thresholds ValueThresholds `yaml:"valueThresholds"`

	// selector (0x + 8 hex chars) -> human label
	SuspiciousSelectors map[string]string `yaml:"suspiciousSelectors"`
	ProxySelectors      map[string]string `yaml:"proxySelectors"`

	// hex substring flagged as an unlimited ERC20 approval when embedded in
	// call data
	UnlimitedApprovalPattern string `yaml:"unlimitedApprovalPattern"`

	// lowercased addresses of audited, well known contracts
	VerifiedContracts []string `yaml:"verifiedContracts"`

	ScamPatterns []ScamPattern `yaml:"scamPatterns"`

	// contracts with fewer historical transactions than this are flagged
	MinContractTxCount uint64 `yaml:"minContractTxCount"`

	verified map[string]struct{}
}

// Default returns the compiled-in policy.
func Default() *Policy {
	p := &Policy{
		Thresholds: ValueThresholds{Low: 1, Medium: 10, High: 50},
		SuspiciousSelectors: map[string]string{
			"0x095ea7b3": "approve",
			"0xa22cb465": "setApprovalForAll",
			"0x23b872dd": "transferFrom",
			"0x42842e0e": "safeTransferFrom",
		},
		ProxySelectors: map[string]string{
			"0x3659cfe6": "upgradeTo",
			"0x4f1ef286": "upgradeToAndCall",
			"0x8f283970": "changeAdmin",
			"0x8129fc1c": "initialize",
		},
		UnlimitedApprovalPattern: strings.Repeat("f", 64),
		VerifiedContracts: []string{
			// Uniswap V2 router
			"0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
			// Uniswap V3 router
			"0xe592427a0aece92de3edee1f18e0157c05861564",
			// USDC
			"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		},
		ScamPatterns: []ScamPattern{
			{Pattern: "phishing", Risk: "critical", Message: "Phishing marker found in call data"},
			{Pattern: "claimreward", Risk: "critical", Message: "Fake reward claim pattern in call data"},
			{Pattern: "airdrop", Risk: "critical", Message: "Airdrop lure pattern in call data"},
			{Pattern: "securityupdate", Risk: "critical", Message: "Fake security update pattern in call data"},
			{Pattern: "mint", Risk: "high", Message: "Unexpected mint operation in call data"},
			{Pattern: "upgrade", Risk: "high", Message: "Upgrade operation in call data"},
			{Pattern: "emergency", Risk: "high", Message: "Emergency function call in call data"},
			{Pattern: "drain", Risk: "high", Message: "Drain pattern in call data"},
		},
		MinContractTxCount: 100,
	}
	if err := p.compile(); err != nil {
		// Compiled-in patterns are static; a failure here is a programming
		// error, not an input error.
		panic(err)
	}
	return p
}

// Load reads a YAML policy file and merges it over the defaults. Sections
// absent from the file keep their default values. An empty path returns the
// defaults unchanged.
func Load(path string) (*Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("policy file read: %w", err)
	}

	var overlay Policy
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("policy file unmarshal: %w", err)
	}

	if overlay.Thresholds != (ValueThresholds{}) {
		p.Thresholds = overlay.Thresholds
	}
	if len(overlay.SuspiciousSelectors) > 0 {
		p.SuspiciousSelectors = overlay.SuspiciousSelectors
	}
	if len(overlay.ProxySelectors) > 0 {
		p.ProxySelectors = overlay.ProxySelectors
	}
	if overlay.UnlimitedApprovalPattern != "" {
		p.UnlimitedApprovalPattern = overlay.UnlimitedApprovalPattern
	}
	if len(overlay.VerifiedContracts) > 0 {
		p.VerifiedContracts = overlay.VerifiedContracts
	}
	if len(overlay.ScamPatterns) > 0 {
		p.ScamPatterns = overlay.ScamPatterns
	}
	if overlay.MinContractTxCount > 0 {
		p.MinContractTxCount = overlay.MinContractTxCount
	}

	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

// compile validates thresholds, compiles pattern regexes and builds the
// verified contract lookup set.
func (p *Policy) compile() error {
	t := p.Thresholds
	if t.Low <= 0 || t.Medium <= t.Low || t.High <= t.Medium {
		return fmt.Errorf("value thresholds must satisfy 0 < low < medium < high, got %+v", t)
	}
	for i := range p.ScamPatterns {
		sp := &p.ScamPatterns[i]
		re, err := regexp.Compile("(?i)" + sp.Pattern)
		if err != nil {
			return fmt.Errorf("scam pattern %q: %w", sp.Pattern, err)
		}
		sp.re = re
		sp.level = models.ParseRiskLevel(sp.Risk)
	}
	p.verified = make(map[string]struct{}, len(p.VerifiedContracts))
	for _, addr := range p.VerifiedContracts {
		p.verified[strings.ToLower(addr)] = struct{}{}
	}
	return nil
}

// IsVerifiedContract reports whether addr is in the verified allowlist.
// Comparison is case-insensitive.
func (p *Policy) IsVerifiedContract(addr string) bool {
	_, ok := p.verified[strings.ToLower(addr)]
	return ok
}

// ThresholdWei converts one of the configured unit thresholds to wei.
func ThresholdWei(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), weiPerEther)
}
