package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/Udit-takkar/safe-duckai-security-agent/internal/chain"
	"github.com/Udit-takkar/safe-duckai-security-agent/internal/llm"
	"github.com/Udit-takkar/safe-duckai-security-agent/internal/safe"
	"github.com/Udit-takkar/safe-duckai-security-agent/internal/signer"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/checks"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/engine"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/policy"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/reputation"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/storage"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/storage/jsondb"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/storage/pebbledb"
)

// App holds the wired pipeline for one invocation.
type App struct {
	cfg        *Config
	engine     *engine.Engine
	safeClient *safe.Client
	history    storage.VerdictStore
	reputation *reputation.Cache
}

// NewApp builds the evaluation pipeline: policy, reputation cache, check
// registry, engine and history store. The reputation cache is refreshed
// once before return; a failed first refresh aborts startup because an
// empty denylist cannot answer safely.
func NewApp(ctx context.Context, cfg *Config) (*App, error) {
	pol, err := loadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	rep := reputation.New(reputation.NewHTTPSource(cfg.DenylistURL, cfg.AllowlistURL))
	if err := rep.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("initial reputation refresh: %w", err)
	}
	rep.Start(ctx, cfg.RefreshInterval)
	deny, allow := rep.Sizes()
	log.Printf("cli: reputation cache loaded: %d denylisted, %d allowlisted", deny, allow)

	var chainClient checks.ChainReader
	if cfg.RPCURL != "" {
		chainClient = chain.NewClient(cfg.RPCURL)
	} else {
		log.Printf("cli: RPC_URL not set, contract age check disabled")
	}

	var narrator engine.Narrator
	if cfg.LLMAPIKey != "" {
		narrator = llm.NewClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMAPIBase)
	} else {
		log.Printf("cli: no LLM key configured, advisory reports use the fallback text")
	}

	history, err := openHistory(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:        cfg,
		engine:     engine.New(checks.NewRegistry(pol, rep, chainClient), narrator),
		safeClient: safe.NewClient(cfg.TxServiceURL),
		history:    history,
		reputation: rep,
	}, nil
}

// Close releases the history store.
func (a *App) Close() error {
	return a.history.Close()
}

// Orchestrator builds the signing orchestrator for this app. Requires the
// signer key.
func (a *App) Orchestrator() (*signer.Orchestrator, error) {
	if a.cfg.SignerPrivateKey == "" {
		return nil, fmt.Errorf("SIGNER_PRIVATE_KEY is required to sign transactions")
	}
	return signer.New(a.safeClient, a.engine, a.cfg.SignerPrivateKey, a.history)
}

func loadPolicy(path string) (*policy.Policy, error) {
	if path == "" {
		return policy.Default(), nil
	}
	pol, err := policy.Load(path)
	if err != nil {
		return nil, fmt.Errorf("risk policy %s: %w", path, err)
	}
	log.Printf("cli: risk policy loaded from %s", path)
	return pol, nil
}

func openHistory(cfg *Config) (storage.VerdictStore, error) {
	switch cfg.HistoryBackend {
	case models.BackendPebbleDB:
		return pebbledb.Open(cfg.HistoryPath)
	case models.BackendJSON:
		return jsondb.New(cfg.HistoryPath)
	default:
		return storage.NopStore{}, nil
	}
}
