// Command sentinel is the multisig security agent CLI. It evaluates a
// wallet's pending transactions against the risk check registry and
// co-signs the ones that pass, halting the batch at the first unsafe
// verdict.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Udit-takkar/safe-duckai-security-agent/internal/cli"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/metrics"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/version"
)

func main() {
	// Local .env is a convenience for development; a missing file is fine.
	_ = godotenv.Load()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `sentinel - Multisig Security Agent

Evaluates pending multisig transactions and autonomously co-signs the
safe ones. An unsafe verdict halts the batch for human review.

Usage:
  sentinel process <safe-address>          Evaluate and sign the pending queue
  sentinel evaluate <tx-hash|file.json>    Evaluate one transaction, sign nothing
  sentinel history [--limit N]             Show recent verdict records
  sentinel version                         Display agent version

Configuration (environment, .env supported):
  SAFE_TX_SERVICE_URL   Coordination service base URL (default: mainnet)
  RPC_URL               JSON-RPC endpoint; unset disables the contract age check
  SIGNER_PRIVATE_KEY    Owner key for signing (required for process)
  LLM_API_KEY           Advisory narrative key (GEMINI_API_KEY/OPENAI_API_KEY also honored)
  LLM_MODEL             Narrative model (default: %s)
  DENYLIST_URL          Address denylist feed
  ALLOWLIST_URL         Address allowlist feed
  REFRESH_INTERVAL      Reputation refresh period (default: 6h, floor 1m)
  POLICY_FILE           YAML risk policy overrides
  HISTORY_BACKEND       json, pebble or none (default: json)
  HISTORY_DB            Verdict history path (default: ./verdicts.db)
  METRICS_ADDR          Prometheus listen address; unset disables metrics

Exit codes:
  0  batch fully processed / transaction safe
  1  operational error
  2  unsafe verdict, human review required
`, models.ModelGeminiFlash)
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}
	cmd := os.Args[1]

	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	historyLimit := historyCmd.Int("limit", 20, "Maximum records to show, 0 for all")

	if cmd == "version" {
		fmt.Println("Multisig Security Agent")
		fmt.Printf("Build: %s\n", version.EngineVersion())
		return
	}

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.ExitError(err)
	}

	metrics.Register(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Printf("metrics endpoint: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "process":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: sentinel process <safe-address>")
			os.Exit(1)
		}
		code, err := cli.RunProcess(ctx, os.Stdout, cfg, os.Args[2])
		if err != nil {
			cli.ExitError(err)
		}
		os.Exit(code)

	case "evaluate":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: sentinel evaluate <tx-hash|file.json>")
			os.Exit(1)
		}
		code, err := cli.RunEvaluate(ctx, os.Stdout, cfg, os.Args[2])
		if err != nil {
			cli.ExitError(err)
		}
		os.Exit(code)

	case "history":
		if err := historyCmd.Parse(os.Args[2:]); err != nil {
			cli.ExitError(err)
		}
		if err := cli.RunHistory(os.Stdout, cfg, *historyLimit); err != nil {
			cli.ExitError(err)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		if suggestion := cli.SuggestCommand(cmd); suggestion != "" {
			fmt.Fprintf(os.Stderr, "Did you mean '%s'?\n", suggestion)
		}
		flag.Usage()
		os.Exit(1)
	}
}
