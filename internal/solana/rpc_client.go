package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Client using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

var _ Client = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the RPC endpoint URL.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// rpcRequest represents a JSON-RPC 2.0 request. Params is either a
// positional array or, for DAS methods, a named-parameter object.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetTokenLargestAccounts retrieves the largest token accounts for a mint.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	params := []interface{}{
		mint,
		map[string]interface{}{"commitment": "confirmed"},
	}

	var result tokenLargestAccountsResult
	if err := c.call(ctx, "getTokenLargestAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccountBalance, len(result.Value))
	for i, v := range result.Value {
		accounts[i] = TokenAccountBalance{
			Address:  v.Address,
			Amount:   v.Amount,
			Decimals: v.Decimals,
			UIAmount: uiAmountOf(v.Amount, v.Decimals, v.UIAmount),
		}
	}

	return accounts, nil
}

type tokenLargestAccountsResult struct {
	Value []tokenAccountBalanceValue `json:"value"`
}

type tokenAccountBalanceValue struct {
	Address  string   `json:"address"`
	Amount   string   `json:"amount"`
	Decimals int      `json:"decimals"`
	UIAmount *float64 `json:"uiAmount"`
}

// GetTokenSupply retrieves the total supply of a mint.
// Returns nil if the mint is unknown to the node.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error) {
	params := []interface{}{mint}

	var result tokenSupplyResult
	if err := c.call(ctx, "getTokenSupply", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	return &TokenAmount{
		Amount:   result.Value.Amount,
		Decimals: result.Value.Decimals,
		UIAmount: uiAmountOf(result.Value.Amount, result.Value.Decimals, result.Value.UIAmount),
	}, nil
}

type tokenSupplyResult struct {
	Value *tokenAmountValue `json:"value"`
}

type tokenAmountValue struct {
	Amount   string   `json:"amount"`
	Decimals int      `json:"decimals"`
	UIAmount *float64 `json:"uiAmount"`
}

// GetAsset retrieves token metadata through the DAS getAsset method.
// Returns nil if the indexer does not know the asset.
func (c *HTTPClient) GetAsset(ctx context.Context, mint string) (*Asset, error) {
	// DAS methods take named parameters
	params := map[string]interface{}{"id": mint}

	var result getAssetResult
	if err := c.call(ctx, "getAsset", params, &result); err != nil {
		return nil, err
	}

	if result.ID == "" {
		return nil, nil
	}

	asset := &Asset{ID: result.ID}
	if result.Content != nil {
		asset.Name = result.Content.Metadata.Name
		asset.Symbol = result.Content.Metadata.Symbol
	}

	for _, creator := range result.Creators {
		if creator.Verified {
			asset.Creator = creator.Address
			break
		}
	}
	if asset.Creator == "" && len(result.Creators) > 0 {
		asset.Creator = result.Creators[0].Address
	}
	if asset.Creator == "" {
		for _, auth := range result.Authorities {
			if auth.Address != "" {
				asset.Creator = auth.Address
				break
			}
		}
	}

	return asset, nil
}

// getAssetResult is the raw DAS response for getAsset.
type getAssetResult struct {
	ID          string              `json:"id"`
	Content     *getAssetContent    `json:"content"`
	Authorities []getAssetAuthority `json:"authorities"`
	Creators    []getAssetCreator   `json:"creators"`
}

type getAssetContent struct {
	Metadata getAssetMetadata `json:"metadata"`
}

type getAssetMetadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type getAssetAuthority struct {
	Address string   `json:"address"`
	Scopes  []string `json:"scopes"`
}

type getAssetCreator struct {
	Address  string `json:"address"`
	Share    int    `json:"share"`
	Verified bool   `json:"verified"`
}

// GetTransaction retrieves a transaction by signature.
// Returns nil if the transaction is not found.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result getTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result.Slot == 0 && result.BlockTime == nil {
		// Transaction not found
		return nil, nil
	}

	tx := &Transaction{
		Slot:      result.Slot,
		Signature: signature,
	}

	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}

	if result.Meta != nil {
		tx.Meta = &TransactionMeta{
			Err:               result.Meta.Err,
			Fee:               result.Meta.Fee,
			PreBalances:       result.Meta.PreBalances,
			PostBalances:      result.Meta.PostBalances,
			PreTokenBalances:  toTokenBalances(result.Meta.PreTokenBalances),
			PostTokenBalances: toTokenBalances(result.Meta.PostTokenBalances),
			LogMessages:       result.Meta.LogMessages,
		}
	}

	if result.Transaction != nil && result.Transaction.Message != nil {
		tx.Message = &TransactionMessage{
			AccountKeys: result.Transaction.Message.AccountKeys,
		}
	}

	return tx, nil
}

// getTransactionResult is the raw RPC response for getTransaction.
type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err               interface{}         `json:"err"`
	Fee               uint64              `json:"fee"`
	PreBalances       []uint64            `json:"preBalances"`
	PostBalances      []uint64            `json:"postBalances"`
	PreTokenBalances  []tokenBalanceValue `json:"preTokenBalances"`
	PostTokenBalances []tokenBalanceValue `json:"postTokenBalances"`
	LogMessages       []string            `json:"logMessages"`
}

type tokenBalanceValue struct {
	AccountIndex  int              `json:"accountIndex"`
	Mint          string           `json:"mint"`
	Owner         string           `json:"owner"`
	UITokenAmount tokenAmountValue `json:"uiTokenAmount"`
}

type getTransactionTx struct {
	Message *getTransactionMessage `json:"message"`
}

type getTransactionMessage struct {
	AccountKeys []string `json:"accountKeys"`
}

func toTokenBalances(values []tokenBalanceValue) []TokenBalance {
	if len(values) == 0 {
		return nil
	}
	balances := make([]TokenBalance, len(values))
	for i, v := range values {
		balances[i] = TokenBalance{
			AccountIndex: v.AccountIndex,
			Mint:         v.Mint,
			Owner:        v.Owner,
			Amount: TokenAmount{
				Amount:   v.UITokenAmount.Amount,
				Decimals: v.UITokenAmount.Decimals,
				UIAmount: uiAmountOf(v.UITokenAmount.Amount, v.UITokenAmount.Decimals, v.UITokenAmount.UIAmount),
			},
		}
	}
	return balances
}

// GetSignaturesForAddress retrieves signatures for an address with pagination.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []getSignaturesResult
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			BlockTime: r.BlockTime,
			Err:       r.Err,
		}
	}

	return sigs, nil
}

// getSignaturesResult is the raw RPC response item for getSignaturesForAddress.
type getSignaturesResult struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding": "base64",
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
		RentEpoch:  result.Value.RentEpoch,
	}

	if len(result.Value.Data) >= 1 {
		info.Data = result.Value.Data[0]
	}

	return info, nil
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// GetSlot retrieves the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	var result int64
	if err := c.call(ctx, "getSlot", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// uiAmountOf prefers the node-provided uiAmount and falls back to computing
// it from the raw amount. The node reports null uiAmount for some assets.
func uiAmountOf(amount string, decimals int, ui *float64) float64 {
	if ui != nil {
		return *ui
	}
	raw, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return 0
	}
	return float64(raw) / math.Pow10(decimals)
}
