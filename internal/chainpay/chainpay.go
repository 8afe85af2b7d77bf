// Package chainpay verifies on-chain roast payments. A roast aimed at
// someone else must present a transaction hash that (a) exists on chain,
// (b) succeeded, and (c) has never been spent on a previous roast.
package chainpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/roastcast/ledger/internal/kv"
)

// Verification failure modes.
var (
	ErrTxNotFound = errors.New("transaction not found")
	ErrTxFailed   = errors.New("transaction reverted")
	ErrTxUsed     = errors.New("transaction already spent")
)

const usedKey = "used-tx-hashes"

// Verifier checks payment transactions against an EVM JSON-RPC node and
// tracks spent hashes in the shared store.
type Verifier struct {
	rpcURL string
	store  kv.Store
	http   *http.Client
}

// NewVerifier creates a payment verifier.
func NewVerifier(rpcURL string, store kv.Store) *Verifier {
	return &Verifier{
		rpcURL: rpcURL,
		store:  store,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

// IsUsed reports whether the hash has already paid for a roast.
func (v *Verifier) IsUsed(ctx context.Context, txHash string) (bool, error) {
	return v.store.SIsMember(ctx, usedKey, normalize(txHash))
}

// MarkUsed burns the hash so it cannot pay twice.
func (v *Verifier) MarkUsed(ctx context.Context, txHash string) error {
	if _, err := v.store.SAdd(ctx, usedKey, normalize(txHash)); err != nil {
		return fmt.Errorf("mark tx used: %w", err)
	}
	return nil
}

// Verify confirms the transaction succeeded on chain and is unspent. It
// does not mark the hash; callers burn it only after the roast persists.
func (v *Verifier) Verify(ctx context.Context, txHash string) error {
	used, err := v.IsUsed(ctx, txHash)
	if err != nil {
		return fmt.Errorf("check tx reuse: %w", err)
	}
	if used {
		return ErrTxUsed
	}

	receipt, err := v.receipt(ctx, normalize(txHash))
	if err != nil {
		return err
	}
	if !receipt.Exists() || receipt.Type == gjson.Null {
		return ErrTxNotFound
	}
	if receipt.Get("status").String() != "0x1" {
		return ErrTxFailed
	}
	return nil
}

type rpcRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
	ID      int      `json:"id"`
}

func (v *Verifier) receipt(ctx context.Context, txHash string) (gjson.Result, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_getTransactionReceipt",
		Params:  []string{txHash},
		ID:      1,
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("rpc request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("rpc node returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read rpc response: %w", err)
	}
	if errMsg := gjson.GetBytes(body, "error.message"); errMsg.Exists() {
		return gjson.Result{}, fmt.Errorf("rpc error: %s", errMsg.String())
	}
	return gjson.GetBytes(body, "result"), nil
}

func normalize(txHash string) string {
	return strings.ToLower(strings.TrimSpace(txHash))
}
