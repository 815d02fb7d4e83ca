// Package safe is the HTTP client for the multisig coordination service
// (Safe Transaction Service). It lists pending transactions, reads wallet
// metadata and submits confirmations. Pure boundary code: no risk logic.
package safe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
)

// DefaultBaseURL is the public mainnet transaction service.
const DefaultBaseURL = "https://safe-transaction-mainnet.safe.global"

// Client talks to one Safe Transaction Service deployment.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client with bounded-timeout transport. An empty
// baseURL selects the public mainnet service.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: models.HTTPClientTimeout},
	}
}

// ListPending returns the wallet's queued multisig transactions in the
// service's nonce/submission order. The order is part of the contract:
// callers must not re-sort it.
func (c *Client) ListPending(ctx context.Context, safeAddress string) ([]models.PendingTransaction, error) {
	url := fmt.Sprintf("%s/api/v1/safes/%s/multisig-transactions/?executed=false&ordering=nonce", c.baseURL, safeAddress)

	var page struct {
		Count   int                         `json:"count"`
		Results []models.PendingTransaction `json:"results"`
	}
	if err := c.getJSON(ctx, url, &page); err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	return page.Results, nil
}

// GetTransaction fetches one multisig transaction by its safe tx hash.
func (c *Client) GetTransaction(ctx context.Context, safeTxHash string) (*models.PendingTransaction, error) {
	url := fmt.Sprintf("%s/api/v1/multisig-transactions/%s/", c.baseURL, safeTxHash)
	var tx models.PendingTransaction
	if err := c.getJSON(ctx, url, &tx); err != nil {
		return nil, fmt.Errorf("transaction %s: %w", safeTxHash, err)
	}
	return &tx, nil
}

// GetWalletInfo reads the multisig wallet metadata.
func (c *Client) GetWalletInfo(ctx context.Context, address string) (*models.WalletInfo, error) {
	url := fmt.Sprintf("%s/api/v1/safes/%s/", c.baseURL, address)
	var info models.WalletInfo
	if err := c.getJSON(ctx, url, &info); err != nil {
		return nil, fmt.Errorf("wallet info: %w", err)
	}
	return &info, nil
}

// Confirm submits an owner signature endorsing the given transaction.
func (c *Client) Confirm(ctx context.Context, safeTxHash, signature string) error {
	url := fmt.Sprintf("%s/api/v1/multisig-transactions/%s/confirmations/", c.baseURL, safeTxHash)

	body, err := json.Marshal(map[string]string{"signature": signature})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("confirmation submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("confirmation rejected: HTTP %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// getJSON performs a GET and decodes the response, capping the body size.
func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, models.MaxAPIResponseSize)).Decode(target)
}
