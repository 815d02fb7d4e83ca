// Package cli wires configuration, the risk pipeline and the signing
// orchestrator behind the sentinel command surface.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
)

// Config is the full runtime configuration, sourced from environment
// variables. Secrets (signer key, LLM key) are env-only; there is no flag
// path for them so they never land in shell history.
type Config struct {
	// Coordination service and chain endpoints.
	TxServiceURL string
	RPCURL       string

	// Owner key used to co-sign safe transactions, hex encoded.
	SignerPrivateKey string

	// Advisory narrative provider. An empty key disables the LLM and the
	// fixed fallback report is used.
	LLMAPIKey  string
	LLMModel   string
	LLMAPIBase string

	// Reputation feeds.
	DenylistURL     string
	AllowlistURL    string
	RefreshInterval time.Duration

	// Optional risk policy overrides.
	PolicyFile string

	// Verdict history persistence.
	HistoryBackend string
	HistoryPath    string

	// Prometheus endpoint; empty disables it.
	MetricsAddr string
}

// LoadConfig reads the configuration from the environment and applies
// defaults. Validation of required fields is per command: history listing
// needs no signer key, so requiredness is checked at use sites.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		TxServiceURL:     os.Getenv("SAFE_TX_SERVICE_URL"),
		RPCURL:           os.Getenv("RPC_URL"),
		SignerPrivateKey: os.Getenv("SIGNER_PRIVATE_KEY"),
		LLMAPIKey:        os.Getenv("LLM_API_KEY"),
		LLMModel:         envOr("LLM_MODEL", models.ModelGeminiFlash),
		LLMAPIBase:       os.Getenv("LLM_API_BASE"),
		DenylistURL:      envOr("DENYLIST_URL", models.DefaultDenylistURL),
		AllowlistURL:     envOr("ALLOWLIST_URL", models.DefaultAllowlistURL),
		RefreshInterval:  models.DefaultRefreshInterval,
		PolicyFile:       os.Getenv("POLICY_FILE"),
		HistoryBackend:   envOr("HISTORY_BACKEND", models.BackendJSON),
		HistoryPath:      envOr("HISTORY_DB", "./verdicts.db"),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
	}

	// Provider-specific key variables win over the generic one so existing
	// GEMINI_API_KEY / OPENAI_API_KEY setups keep working.
	if cfg.LLMAPIKey == "" {
		if strings.HasPrefix(strings.ToLower(cfg.LLMModel), "gemini") {
			cfg.LLMAPIKey = os.Getenv("GEMINI_API_KEY")
		} else {
			cfg.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if raw := os.Getenv("REFRESH_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("REFRESH_INTERVAL: %w", err)
		}
		if d < time.Minute {
			return nil, fmt.Errorf("REFRESH_INTERVAL %s is below the 1m floor", d)
		}
		cfg.RefreshInterval = d
	}

	switch cfg.HistoryBackend {
	case models.BackendJSON, models.BackendPebbleDB, "none":
	default:
		return nil, fmt.Errorf("HISTORY_BACKEND %q: must be %s, %s or none",
			cfg.HistoryBackend, models.BackendJSON, models.BackendPebbleDB)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
