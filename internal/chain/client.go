// Package chain is the on-chain data provider used by the contractAge
// check: raw JSON-RPC for bytecode presence and historical transaction
// counts. Errors surface to the caller, which degrades them to a
// conservative check result.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
)

// Client is a minimal JSON-RPC 2.0 client against one Ethereum node.
type Client struct {
	rpcURL string
	http   *http.Client
	nextID atomic.Uint64
}

// NewClient builds a client with a bounded-timeout transport.
func NewClient(rpcURL string) *Client {
	return &Client{
		rpcURL: rpcURL,
		http:   &http.Client{Timeout: models.HTTPClientTimeout},
	}
}

// GetCode returns the deployed bytecode at address, empty for EOAs.
func (c *Client) GetCode(ctx context.Context, address string) ([]byte, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	var result string
	if err := c.call(ctx, "eth_getCode", []any{address, "latest"}, &result); err != nil {
		return nil, err
	}
	code, err := hexutil.Decode(result)
	if err != nil {
		return nil, fmt.Errorf("eth_getCode result decode: %w", err)
	}
	return code, nil
}

// GetTransactionCount returns the historical transaction count for address.
func (c *Client) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("invalid address %q", address)
	}
	var result string
	if err := c.call(ctx, "eth_getTransactionCount", []any{address, "latest"}, &result); err != nil {
		return 0, err
	}
	count, err := hexutil.DecodeUint64(result)
	if err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount result decode: %w", err)
	}
	return count, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d", method, resp.StatusCode)
	}

	var parsed rpcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, models.MaxAPIResponseSize)).Decode(&parsed); err != nil {
		return fmt.Errorf("%s: response decode: %w", method, err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, parsed.Error.Code, parsed.Error.Message)
	}
	if err := json.Unmarshal(parsed.Result, result); err != nil {
		return fmt.Errorf("%s: result decode: %w", method, err)
	}
	return nil
}
