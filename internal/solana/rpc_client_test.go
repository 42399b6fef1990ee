package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func rpcResult(t *testing.T, w http.ResponseWriter, id uint64, result interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestHTTPClient_GetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "getBalance" {
			t.Errorf("expected method getBalance, got %s", req.Method)
		}
		if len(req.Params) == 0 || req.Params[0] != "testaddr" {
			t.Errorf("expected address param testaddr, got %v", req.Params)
		}

		rpcResult(t, w, req.ID, map[string]interface{}{
			"context": map[string]interface{}{"slot": 123},
			"value":   uint64(5_000_000_000),
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	balance, err := client.GetBalance(context.Background(), "testaddr")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 5_000_000_000 {
		t.Errorf("expected 5000000000 lamports, got %d", balance)
	}
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method != "getLatestBlockhash" {
			t.Errorf("expected method getLatestBlockhash, got %s", req.Method)
		}

		rpcResult(t, w, req.ID, map[string]interface{}{
			"context": map[string]interface{}{"slot": 123},
			"value": map[string]interface{}{
				"blockhash":            "9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oALxZMgthWfoo",
				"lastValidBlockHeight": int64(287500000),
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	bh, err := client.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if bh.Hash != "9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oALxZMgthWfoo" {
		t.Errorf("unexpected blockhash %s", bh.Hash)
	}
	if bh.LastValidBlockHeight != 287500000 {
		t.Errorf("unexpected last valid block height %d", bh.LastValidBlockHeight)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method != "sendTransaction" {
			t.Errorf("expected method sendTransaction, got %s", req.Method)
		}
		if len(req.Params) < 2 {
			t.Fatalf("expected 2 params, got %d", len(req.Params))
		}
		opts, ok := req.Params[1].(map[string]interface{})
		if !ok || opts["encoding"] != "base64" {
			t.Errorf("expected base64 encoding option, got %v", req.Params[1])
		}

		rpcResult(t, w, req.ID, "testsignature123")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	sig, err := client.SendTransaction(context.Background(), []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "testsignature123" {
		t.Errorf("expected signature testsignature123, got %s", sig)
	}
}

func TestHTTPClient_SendTransaction_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32002,
				"message": "Transaction simulation failed",
				"data": map[string]interface{}{
					"err":  "InsufficientFundsForFee",
					"logs": []string{},
				},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.SendTransaction(context.Background(), []byte{0x01})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32002 {
		t.Errorf("expected code -32002, got %d", rpcErr.Code)
	}
	if len(rpcErr.Data) == 0 {
		t.Error("expected structured error data, got none")
	}
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method != "getSignatureStatuses" {
			t.Errorf("expected method getSignatureStatuses, got %s", req.Method)
		}

		confirmations := int64(5)
		rpcResult(t, w, req.ID, map[string]interface{}{
			"context": map[string]interface{}{"slot": 123},
			"value": []interface{}{
				map[string]interface{}{
					"slot":               int64(100),
					"confirmations":      confirmations,
					"confirmationStatus": "confirmed",
					"err":                nil,
				},
				nil,
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	statuses, err := client.GetSignatureStatuses(context.Background(), []string{"sig1", "sig2"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0] == nil || !statuses[0].Confirmed() {
		t.Errorf("expected first signature confirmed, got %+v", statuses[0])
	}
	if statuses[1] != nil {
		t.Errorf("expected nil status for unknown signature, got %+v", statuses[1])
	}
}

func TestHTTPClient_RetriesOnServerError(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		rpcResult(t, w, req.ID, map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value":   uint64(42),
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond))

	balance, err := client.GetBalance(context.Background(), "addr")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 42 {
		t.Errorf("expected balance 42, got %d", balance)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		attempts.Add(1)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "Invalid param"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))

	_, err := client.GetBalance(context.Background(), "addr")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected 1 attempt for RPC error, got %d", got)
	}
}
