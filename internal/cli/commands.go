package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
)

// RunProcess evaluates and co-signs a wallet's pending queue. The returned
// exit code is 0 for a fully signed batch and 2 for a halted one, so shell
// automation can distinguish "nothing to do" from "needs human review".
func RunProcess(ctx context.Context, out io.Writer, cfg *Config, safeAddress string) (int, error) {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return 1, err
	}
	defer app.Close()

	orch, err := app.Orchestrator()
	if err != nil {
		return 1, err
	}

	info, err := app.safeClient.GetWalletInfo(ctx, safeAddress)
	if err != nil {
		return 1, fmt.Errorf("wallet lookup: %w", err)
	}
	if !isOwner(info, orch.OwnerAddress()) {
		return 1, fmt.Errorf("signer %s is not an owner of %s", orch.OwnerAddress(), safeAddress)
	}

	res, err := orch.ProcessPendingTransactions(ctx, safeAddress)
	if err != nil {
		return 1, err
	}
	renderBatch(out, res)
	if !res.Safe {
		return 2, nil
	}
	return 0, nil
}

// RunEvaluate produces a verdict for a single transaction without signing
// anything. The target is either a safe tx hash (fetched from the service)
// or a path to a JSON file holding the transaction.
func RunEvaluate(ctx context.Context, out io.Writer, cfg *Config, target string) (int, error) {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return 1, err
	}
	defer app.Close()

	tx, err := loadTransaction(ctx, app, target)
	if err != nil {
		return 1, err
	}

	verdict, err := app.engine.Evaluate(ctx, tx)
	if err != nil {
		return 1, err
	}
	renderVerdict(out, verdict)
	if !verdict.Safe {
		return 2, nil
	}
	return 0, nil
}

// RunHistory prints the most recent verdict records.
func RunHistory(out io.Writer, cfg *Config, limit int) error {
	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	records, err := history.List(limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "no recorded verdicts")
		return nil
	}
	for _, rec := range records {
		verdictWord := color.GreenString("SAFE")
		if !rec.Safe {
			verdictWord = color.RedString("UNSAFE")
		}
		signedWord := ""
		if rec.Signed {
			signedWord = " signed"
		}
		fmt.Fprintf(out, "%s  %s  %s%s\n", rec.EvaluatedAt.Format("2006-01-02 15:04:05"), verdictWord, rec.SafeTxHash, signedWord)
	}
	return nil
}

func loadTransaction(ctx context.Context, app *App, target string) (*models.PendingTransaction, error) {
	if strings.HasPrefix(target, "0x") && len(target) == 66 {
		return app.safeClient.GetTransaction(ctx, target)
	}
	raw, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("transaction file: %w", err)
	}
	var tx models.PendingTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("transaction file %s: %w", target, err)
	}
	return &tx, nil
}

func isOwner(info *models.WalletInfo, address string) bool {
	for _, owner := range info.Owners {
		if strings.EqualFold(owner, address) {
			return true
		}
	}
	return false
}

// -- Rendering --

func renderBatch(out io.Writer, res *models.BatchResult) {
	fmt.Fprintf(out, "Batch %s for %s\n", res.BatchID, res.SafeAddress)

	for _, tr := range res.TransactionsResults {
		switch {
		case tr.Signed:
			fmt.Fprintf(out, "  %s %s\n", color.GreenString("signed"), tr.SafeTxHash)
		case tr.SignError != "":
			fmt.Fprintf(out, "  %s %s (%s)\n", color.YellowString("unsigned"), tr.SafeTxHash, tr.SignError)
		default:
			fmt.Fprintf(out, "  %s %s\n", color.YellowString("skipped"), tr.SafeTxHash)
		}
	}

	if res.Safe {
		fmt.Fprintf(out, "%s all %d transactions processed\n", color.GreenString("OK:"), len(res.TransactionsResults))
		return
	}

	fmt.Fprintf(out, "%s batch halted at %s\n", color.RedString("UNSAFE:"), res.HaltedTxHash)
	renderChecks(out, res.SecurityChecks)
	if res.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", res.Summary)
	}
	if res.AIAnalysis != "" {
		fmt.Fprintf(out, "\nAdvisory report:\n%s\n", res.AIAnalysis)
	}
}

func renderVerdict(out io.Writer, v *models.Verdict) {
	if v.Safe {
		fmt.Fprintln(out, color.GreenString("SAFE"))
	} else {
		fmt.Fprintln(out, color.RedString("UNSAFE"))
	}
	renderChecks(out, v.SecurityChecks)
	if v.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", v.Summary)
	}
	if v.AIAnalysis != "" {
		fmt.Fprintf(out, "\nAdvisory report:\n%s\n", v.AIAnalysis)
	}
}

func renderChecks(out io.Writer, checks models.SecurityChecks) {
	ids := make([]string, 0, len(checks))
	for id := range checks {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	for _, id := range ids {
		check := checks[models.CheckID(id)]
		fmt.Fprintf(out, "  %-22s %-8s %s\n", id, riskWord(check.Risk), check.Message)
	}
}

func riskWord(risk models.RiskLevel) string {
	switch {
	case risk >= models.RiskHigh:
		return color.RedString(risk.String())
	case risk == models.RiskMedium:
		return color.YellowString(risk.String())
	default:
		return risk.String()
	}
}

// ExitError prints the error and terminates with a non-zero status.
func ExitError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
