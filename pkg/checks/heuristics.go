package checks

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/policy"
)

// maxUint256 is the largest representable unsigned 256-bit value, the
// canonical "unlimited" ERC20 approval amount.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var weiPerEther = new(big.Float).SetFloat64(1e18)

// -- addressPoisoning --

// AddressPoisoning flags destinations present in the curated denylist and
// clears destinations in the allowlist. Membership queries are
// case-insensitive against the current reputation snapshot.
type AddressPoisoning struct {
	Reputation ReputationReader
}

func (c *AddressPoisoning) ID() models.CheckID { return models.CheckAddressPoisoning }

func (c *AddressPoisoning) Evaluate(ctx context.Context, tx *models.PendingTransaction) models.SecurityCheck {
	if c.Reputation == nil {
		return unableToVerify("address reputation (cache not configured)")
	}
	if c.Reputation.IsDenylisted(tx.To) {
		return models.SecurityCheck{
			Safe:    false,
			Risk:    models.RiskCritical,
			Message: fmt.Sprintf("Destination %s is on the curated denylist", tx.To),
		}
	}
	if c.Reputation.IsAllowlisted(tx.To) {
		return pass("Destination is on the verified allowlist")
	}
	return pass("Destination not present in reputation lists")
}

// -- valueTransfer --

// ValueTransfer escalates by native-currency value against the configured
// thresholds. Boundaries are exclusive: a value exactly at a threshold is
// not escalated past it.
type ValueTransfer struct {
	Policy *policy.Policy
}

func (c *ValueTransfer) ID() models.CheckID { return models.CheckValueTransfer }

func (c *ValueTransfer) Evaluate(ctx context.Context, tx *models.PendingTransaction) models.SecurityCheck {
	value, ok := new(big.Int).SetString(strings.TrimSpace(tx.Value), 10)
	if !ok || value.Sign() < 0 {
		return unableToVerify("transaction value")
	}
	if value.Sign() == 0 {
		return pass("No native value transferred")
	}

	t := c.Policy.Thresholds
	eth := formatEther(value)
	switch {
	case value.Cmp(policy.ThresholdWei(t.High)) > 0:
		return models.SecurityCheck{
			Safe:    false,
			Risk:    models.RiskHigh,
			Message: fmt.Sprintf("Very high value transfer: %s ETH (above %d ETH)", eth, t.High),
		}
	case value.Cmp(policy.ThresholdWei(t.Medium)) > 0:
		return models.SecurityCheck{
			Safe:    true,
			Risk:    models.RiskMedium,
			Message: fmt.Sprintf("High value transfer: %s ETH", eth),
		}
	case value.Cmp(policy.ThresholdWei(t.Low)) > 0:
		return models.SecurityCheck{
			Safe:    true,
			Risk:    models.RiskLow,
			Message: fmt.Sprintf("Moderate value transfer: %s ETH", eth),
		}
	default:
		return pass(fmt.Sprintf("Low value transfer: %s ETH", eth))
	}
}

func formatEther(wei *big.Int) string {
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther)
	return f.Text('f', 4)
}

// -- contractInteraction --

// ContractInteraction inspects the call data of contract calls: verified
// destinations pass, known suspicious selectors and embedded unlimited
// approval patterns escalate, everything else is flagged low.
type ContractInteraction struct {
	Policy *policy.Policy
}

func (c *ContractInteraction) ID() models.CheckID { return models.CheckContractInteraction }

func (c *ContractInteraction) Evaluate(ctx context.Context, tx *models.PendingTransaction) models.SecurityCheck {
	if !hasCallData(tx) {
		return pass("Simple transfer, no contract interaction")
	}
	if c.Policy.IsVerifiedContract(tx.To) {
		return pass("Interaction with a verified contract")
	}

	if sel := selector(tx); sel != "" {
		if label, ok := c.Policy.SuspiciousSelectors[sel]; ok {
			return models.SecurityCheck{
				Safe:    false,
				Risk:    models.RiskHigh,
				Message: fmt.Sprintf("Suspicious function selector %s (%s)", sel, label),
			}
		}
	}
	if strings.Contains(strings.ToLower(tx.Data), c.Policy.UnlimitedApprovalPattern) {
		return models.SecurityCheck{
			Safe:    false,
			Risk:    models.RiskHigh,
			Message: "Unlimited approval bit pattern embedded in call data",
		}
	}

	return models.SecurityCheck{
		Safe:    true,
		Risk:    models.RiskLow,
		Message: "Interaction with an unverified contract",
	}
}

// -- knownScams --

// KnownScams scans call data and the decoded method name against the
// declarative scam pattern table. Patterns are tried in declared order and
// the first match wins.
type KnownScams struct {
	Policy *policy.Policy
}

func (c *KnownScams) ID() models.CheckID { return models.CheckKnownScams }

func (c *KnownScams) Evaluate(ctx context.Context, tx *models.PendingTransaction) models.SecurityCheck {
	if !hasCallData(tx) {
		return pass("No call data to scan")
	}
	haystack := tx.Data + " " + tx.Method()
	for i := range c.Policy.ScamPatterns {
		p := &c.Policy.ScamPatterns[i]
		if p.Matches(haystack) {
			level := p.Level()
			return models.SecurityCheck{
				Safe:    level < models.RiskHigh,
				Risk:    level,
				Message: p.Message,
			}
		}
	}
	return pass("No known scam patterns detected")
}

// -- approvalRisks --

// ApprovalRisks triggers only on decoded approve calls and flags approvals
// of exactly the maximum uint256 value. One less than the maximum is a
// bounded approval and passes.
type ApprovalRisks struct{}

func (c *ApprovalRisks) ID() models.CheckID { return models.CheckApprovalRisks }

func (c *ApprovalRisks) Evaluate(ctx context.Context, tx *models.PendingTransaction) models.SecurityCheck {
	if tx.Method() != "approve" {
		return pass("Not an approval transaction")
	}

	amount, ok := approvalAmount(tx)
	if !ok {
		return unableToVerify("approval amount")
	}
	if amount.Cmp(maxUint256) == 0 {
		return models.SecurityCheck{
			Safe:    false,
			Risk:    models.RiskHigh,
			Message: "Unlimited token approval (max uint256)",
		}
	}
	return pass("Bounded token approval")
}

// approvalAmount extracts the approved amount from the decoded parameters.
// The transaction service names it "value" for canonical ERC20 ABIs; older
// or nonstandard ABIs fall back to the second positional parameter.
func approvalAmount(tx *models.PendingTransaction) (*big.Int, bool) {
	var raw string
	for _, name := range []string{"value", "amount", "_value", "wad"} {
		if p, ok := tx.Parameter(name); ok {
			raw, _ = p.Value.(string)
			break
		}
	}
	if raw == "" && tx.DataDecoded != nil && len(tx.DataDecoded.Parameters) >= 2 {
		raw, _ = tx.DataDecoded.Parameters[1].Value.(string)
	}
	if raw == "" {
		return nil, false
	}

	base := 10
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		raw, base = raw[2:], 16
	}
	amount, ok := new(big.Int).SetString(raw, base)
	if !ok || amount.Sign() < 0 {
		return nil, false
	}
	return amount, true
}

// -- proxyRisks --

// ProxyRisks flags calls whose selector matches a proxy upgrade or
// initializer function.
type ProxyRisks struct {
	Policy *policy.Policy
}

func (c *ProxyRisks) ID() models.CheckID { return models.CheckProxyRisks }

func (c *ProxyRisks) Evaluate(ctx context.Context, tx *models.PendingTransaction) models.SecurityCheck {
	if !hasCallData(tx) {
		return pass("No call data")
	}
	if sel := selector(tx); sel != "" {
		if label, ok := c.Policy.ProxySelectors[sel]; ok {
			return models.SecurityCheck{
				Safe:    false,
				Risk:    models.RiskHigh,
				Message: fmt.Sprintf("Proxy upgrade pattern %s (%s)", sel, label),
			}
		}
	}
	return pass("No proxy upgrade patterns detected")
}
