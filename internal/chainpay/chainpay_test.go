package chainpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roastcast/ledger/internal/kv"
)

// rpcServer answers eth_getTransactionReceipt with a canned result per hash.
func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string   `json:"method"`
			Params []string `json:"params"`
			ID     int      `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad rpc request: %v", err)
		}
		if req.Method != "eth_getTransactionReceipt" {
			t.Errorf("method = %s", req.Method)
		}
		result, ok := results[req.Params[0]]
		if !ok {
			result = "null"
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
	}))
}

func TestVerifySuccess(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"0xabc": `{"status":"0x1","transactionHash":"0xabc"}`,
	})
	defer srv.Close()

	verifier := NewVerifier(srv.URL, kv.NewMemoryStore())
	if err := verifier.Verify(context.Background(), "0xABC"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyNotFound(t *testing.T) {
	srv := rpcServer(t, nil)
	defer srv.Close()

	verifier := NewVerifier(srv.URL, kv.NewMemoryStore())
	err := verifier.Verify(context.Background(), "0xmissing")
	if !errors.Is(err, ErrTxNotFound) {
		t.Fatalf("err = %v, want ErrTxNotFound", err)
	}
}

func TestVerifyReverted(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"0xbad": `{"status":"0x0","transactionHash":"0xbad"}`,
	})
	defer srv.Close()

	verifier := NewVerifier(srv.URL, kv.NewMemoryStore())
	err := verifier.Verify(context.Background(), "0xbad")
	if !errors.Is(err, ErrTxFailed) {
		t.Fatalf("err = %v, want ErrTxFailed", err)
	}
}

func TestVerifyReplayRejected(t *testing.T) {
	ctx := context.Background()
	srv := rpcServer(t, map[string]string{
		"0xabc": `{"status":"0x1"}`,
	})
	defer srv.Close()

	verifier := NewVerifier(srv.URL, kv.NewMemoryStore())
	if err := verifier.Verify(ctx, "0xabc"); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if err := verifier.MarkUsed(ctx, "0xabc"); err != nil {
		t.Fatalf("markused: %v", err)
	}

	err := verifier.Verify(ctx, "0xabc")
	if !errors.Is(err, ErrTxUsed) {
		t.Fatalf("err = %v, want ErrTxUsed", err)
	}

	// Case variants are the same hash.
	err = verifier.Verify(ctx, "0xABC")
	if !errors.Is(err, ErrTxUsed) {
		t.Fatalf("err for case variant = %v, want ErrTxUsed", err)
	}
}

func TestIsUsed(t *testing.T) {
	ctx := context.Background()
	verifier := NewVerifier("http://unused.invalid", kv.NewMemoryStore())

	used, err := verifier.IsUsed(ctx, "0xabc")
	if err != nil || used {
		t.Fatalf("isused = (%v, %v), want (false, nil)", used, err)
	}
	verifier.MarkUsed(ctx, "0xabc")
	used, _ = verifier.IsUsed(ctx, "0xAbC")
	if !used {
		t.Fatal("marked hash not reported as used")
	}
}

func TestVerifyRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"node overloaded"}}`)
	}))
	defer srv.Close()

	verifier := NewVerifier(srv.URL, kv.NewMemoryStore())
	err := verifier.Verify(context.Background(), "0xabc")
	if err == nil || errors.Is(err, ErrTxNotFound) {
		t.Fatalf("err = %v, want transport error, not a verdict", err)
	}
}
