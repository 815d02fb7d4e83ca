package checks

import (
	"context"
	"fmt"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/policy"
)

// ContractAge queries the on-chain provider for bytecode presence and
// historical activity of the destination. Brand new or barely used
// contracts are a common scam vehicle. Provider errors degrade to a
// conservative medium risk instead of failing the evaluation.
type ContractAge struct {
	Policy *policy.Policy
	Chain  ChainReader
}

func (c *ContractAge) ID() models.CheckID { return models.CheckContractAge }

func (c *ContractAge) Evaluate(ctx context.Context, tx *models.PendingTransaction) models.SecurityCheck {
	if !hasCallData(tx) {
		return pass("Simple transfer, contract age not applicable")
	}

	code, err := c.Chain.GetCode(ctx, tx.To)
	if err != nil {
		return unableToVerify("contract bytecode")
	}
	if len(code) == 0 {
		return pass("Destination is not a contract")
	}

	count, err := c.Chain.GetTransactionCount(ctx, tx.To)
	if err != nil {
		return unableToVerify("contract transaction history")
	}
	if count < c.Policy.MinContractTxCount {
		return models.SecurityCheck{
			Safe:    false,
			Risk:    models.RiskHigh,
			Message: fmt.Sprintf("Low-activity contract: %d transactions (minimum %d)", count, c.Policy.MinContractTxCount),
		}
	}
	return pass(fmt.Sprintf("Established contract with %d transactions", count))
}
