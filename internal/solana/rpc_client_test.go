package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "getTransaction" {
			t.Errorf("expected method getTransaction, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"slot":      int64(123456),
				"blockTime": int64(1700000000),
				"meta": map[string]interface{}{
					"err":          nil,
					"fee":          uint64(5000),
					"preBalances":  []uint64{2000000000, 1000000000},
					"postBalances": []uint64{1500000000, 1000000000},
					"preTokenBalances": []map[string]interface{}{
						{
							"accountIndex": 1,
							"mint":         "mintA",
							"owner":        "walletA",
							"uiTokenAmount": map[string]interface{}{
								"amount":   "0",
								"decimals": 6,
								"uiAmount": nil,
							},
						},
					},
					"postTokenBalances": []map[string]interface{}{
						{
							"accountIndex": 1,
							"mint":         "mintA",
							"owner":        "walletA",
							"uiTokenAmount": map[string]interface{}{
								"amount":   "1500000",
								"decimals": 6,
								"uiAmount": 1.5,
							},
						},
					},
					"logMessages": []string{"Program log: Hello"},
				},
				"transaction": map[string]interface{}{
					"message": map[string]interface{}{
						"accountKeys": []string{"addr1", "addr2"},
					},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	tx, err := client.GetTransaction(ctx, "testsig123")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}

	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}

	if tx.Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", tx.Slot)
	}

	if tx.BlockTime != 1700000000 {
		t.Errorf("expected blockTime 1700000000, got %d", tx.BlockTime)
	}

	if tx.Meta == nil {
		t.Fatal("expected meta, got nil")
	}

	if tx.Meta.Fee != 5000 {
		t.Errorf("expected fee 5000, got %d", tx.Meta.Fee)
	}

	if len(tx.Meta.PreBalances) != 2 || tx.Meta.PreBalances[0] != 2000000000 {
		t.Errorf("unexpected preBalances: %v", tx.Meta.PreBalances)
	}

	if len(tx.Meta.PostBalances) != 2 || tx.Meta.PostBalances[0] != 1500000000 {
		t.Errorf("unexpected postBalances: %v", tx.Meta.PostBalances)
	}

	if len(tx.Meta.PostTokenBalances) != 1 {
		t.Fatalf("expected 1 post token balance, got %d", len(tx.Meta.PostTokenBalances))
	}

	ptb := tx.Meta.PostTokenBalances[0]
	if ptb.Mint != "mintA" || ptb.Owner != "walletA" || ptb.AccountIndex != 1 {
		t.Errorf("unexpected post token balance: %+v", ptb)
	}
	if ptb.Amount.UIAmount != 1.5 {
		t.Errorf("expected uiAmount 1.5, got %f", ptb.Amount.UIAmount)
	}

	// Null uiAmount falls back to computing from the raw amount.
	if tx.Meta.PreTokenBalances[0].Amount.UIAmount != 0 {
		t.Errorf("expected pre uiAmount 0, got %f", tx.Meta.PreTokenBalances[0].Amount.UIAmount)
	}

	if tx.Message == nil {
		t.Fatal("expected message, got nil")
	}

	if len(tx.Message.AccountKeys) != 2 {
		t.Errorf("expected 2 account keys, got %d", len(tx.Message.AccountKeys))
	}
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  nil,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	tx, err := client.GetTransaction(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}

	if tx != nil {
		t.Errorf("expected nil for not found, got %+v", tx)
	}
}

func TestHTTPClient_GetSignaturesForAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getSignaturesForAddress" {
			t.Errorf("expected method getSignaturesForAddress, got %s", req.Method)
		}

		blockTime := int64(1700000000)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": []map[string]interface{}{
				{"signature": "sig1", "slot": int64(100), "blockTime": blockTime, "err": nil},
				{"signature": "sig2", "slot": int64(101), "blockTime": blockTime, "err": nil},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	sigs, err := client.GetSignaturesForAddress(ctx, "testaddr", &SignaturesOpts{Limit: 10})
	if err != nil {
		t.Fatalf("GetSignaturesForAddress: %v", err)
	}

	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sigs))
	}

	if sigs[0].Signature != "sig1" {
		t.Errorf("expected sig1, got %s", sigs[0].Signature)
	}

	if sigs[1].Slot != 101 {
		t.Errorf("expected slot 101, got %d", sigs[1].Slot)
	}
}

func TestHTTPClient_GetTokenLargestAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getTokenLargestAccounts" {
			t.Errorf("expected method getTokenLargestAccounts, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []map[string]interface{}{
					{"address": "acct1", "amount": "500000000", "decimals": 6, "uiAmount": 500.0},
					{"address": "acct2", "amount": "250000000", "decimals": 6, "uiAmount": nil},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	accounts, err := client.GetTokenLargestAccounts(ctx, "testmint")
	if err != nil {
		t.Fatalf("GetTokenLargestAccounts: %v", err)
	}

	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}

	if accounts[0].Address != "acct1" || accounts[0].UIAmount != 500.0 {
		t.Errorf("unexpected first account: %+v", accounts[0])
	}

	// Null uiAmount computed from amount / 10^decimals.
	if accounts[1].UIAmount != 250.0 {
		t.Errorf("expected computed uiAmount 250, got %f", accounts[1].UIAmount)
	}
}

func TestHTTPClient_GetTokenSupply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getTokenSupply" {
			t.Errorf("expected method getTokenSupply, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{
					"amount":   "1000000000000000",
					"decimals": 6,
					"uiAmount": 1000000000.0,
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	supply, err := client.GetTokenSupply(ctx, "testmint")
	if err != nil {
		t.Fatalf("GetTokenSupply: %v", err)
	}

	if supply == nil {
		t.Fatal("expected supply, got nil")
	}

	if supply.UIAmount != 1000000000.0 {
		t.Errorf("expected uiAmount 1e9, got %f", supply.UIAmount)
	}

	if supply.Decimals != 6 {
		t.Errorf("expected decimals 6, got %d", supply.Decimals)
	}
}

func TestHTTPClient_GetAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getAsset" {
			t.Errorf("expected method getAsset, got %s", req.Method)
		}

		// DAS methods take named parameters, not a positional array.
		params, ok := req.Params.(map[string]interface{})
		if !ok {
			t.Errorf("expected object params, got %T", req.Params)
		} else if params["id"] != "testmint" {
			t.Errorf("expected id testmint, got %v", params["id"])
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"id": "testmint",
				"content": map[string]interface{}{
					"metadata": map[string]interface{}{
						"name":   "Test Token",
						"symbol": "TEST",
					},
				},
				"authorities": []map[string]interface{}{
					{"address": "authority1", "scopes": []string{"full"}},
				},
				"creators": []map[string]interface{}{
					{"address": "creator1", "share": 100, "verified": false},
					{"address": "creator2", "share": 0, "verified": true},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	asset, err := client.GetAsset(ctx, "testmint")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}

	if asset == nil {
		t.Fatal("expected asset, got nil")
	}

	if asset.Name != "Test Token" || asset.Symbol != "TEST" {
		t.Errorf("unexpected metadata: %+v", asset)
	}

	// Verified creator wins over the listed-first unverified one.
	if asset.Creator != "creator2" {
		t.Errorf("expected creator2, got %s", asset.Creator)
	}
}

func TestHTTPClient_GetAsset_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  nil,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	asset, err := client.GetAsset(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}

	if asset != nil {
		t.Errorf("expected nil for not found, got %+v", asset)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)
	ctx := context.Background()

	slot, err := client.GetSlot(ctx)
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}

	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32600,
				"message": "Invalid Request",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	rpcErr, ok := err.(*rpcError)
	if !ok {
		t.Fatalf("expected rpcError, got %T", err)
	}

	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getAccountInfo" {
			t.Errorf("expected method getAccountInfo, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{
					"lamports":   uint64(1000000),
					"owner":      "11111111111111111111111111111111",
					"data":       []string{"SGVsbG8gV29ybGQ=", "base64"},
					"executable": false,
					"rentEpoch":  uint64(100),
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	info, err := client.GetAccountInfo(ctx, "testpubkey")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info == nil {
		t.Fatal("expected account info, got nil")
	}

	if info.Lamports != 1000000 {
		t.Errorf("expected lamports 1000000, got %d", info.Lamports)
	}

	if info.Owner != "11111111111111111111111111111111" {
		t.Errorf("unexpected owner: %s", info.Owner)
	}

	if info.Data != "SGVsbG8gV29ybGQ=" {
		t.Errorf("unexpected data: %s", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": nil,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	info, err := client.GetAccountInfo(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
