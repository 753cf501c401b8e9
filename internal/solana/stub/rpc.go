// Package stub provides an in-memory solana.Client for tests.
package stub

import (
	"context"
	"sync"

	"solana-meme-radar/internal/solana"
)

// Client implements solana.Client from in-memory maps. Lookups into an
// unpopulated map return the RPC "unknown" value (nil, no error) so tests
// exercise the same paths as a live node; Errs forces a failure per method.
type Client struct {
	mu sync.Mutex

	Transactions    map[string]*solana.Transaction
	Signatures      map[string][]solana.SignatureInfo
	LargestAccounts map[string][]solana.TokenAccountBalance
	Supplies        map[string]*solana.TokenAmount
	Assets          map[string]*solana.Asset
	Accounts        map[string]*solana.AccountInfo
	Slot            int64

	// Errs maps an RPC method name to an error returned for every call.
	Errs map[string]error

	// Calls counts invocations per method name.
	Calls map[string]int
}

var _ solana.Client = (*Client)(nil)

// New creates an empty stub client.
func New() *Client {
	return &Client{
		Transactions:    make(map[string]*solana.Transaction),
		Signatures:      make(map[string][]solana.SignatureInfo),
		LargestAccounts: make(map[string][]solana.TokenAccountBalance),
		Supplies:        make(map[string]*solana.TokenAmount),
		Assets:          make(map[string]*solana.Asset),
		Accounts:        make(map[string]*solana.AccountInfo),
		Errs:            make(map[string]error),
		Calls:           make(map[string]int),
	}
}

func (c *Client) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls[method]++
	return c.Errs[method]
}

// GetTokenLargestAccounts returns the configured holder list for a mint.
func (c *Client) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	if err := c.record("getTokenLargestAccounts"); err != nil {
		return nil, err
	}
	return c.LargestAccounts[mint], nil
}

// GetTokenSupply returns the configured supply for a mint.
func (c *Client) GetTokenSupply(_ context.Context, mint string) (*solana.TokenAmount, error) {
	if err := c.record("getTokenSupply"); err != nil {
		return nil, err
	}
	return c.Supplies[mint], nil
}

// GetAsset returns the configured asset for a mint.
func (c *Client) GetAsset(_ context.Context, mint string) (*solana.Asset, error) {
	if err := c.record("getAsset"); err != nil {
		return nil, err
	}
	return c.Assets[mint], nil
}

// GetAccountInfo returns the configured account info for a pubkey.
func (c *Client) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	if err := c.record("getAccountInfo"); err != nil {
		return nil, err
	}
	return c.Accounts[pubkey], nil
}

// GetSignaturesForAddress returns the configured signatures for an address.
func (c *Client) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := c.record("getSignaturesForAddress"); err != nil {
		return nil, err
	}

	sigs := c.Signatures[address]
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}
	return sigs, nil
}

// GetTransaction returns the configured transaction for a signature, or
// nil when unknown, matching the live client's not-found contract.
func (c *Client) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	if err := c.record("getTransaction"); err != nil {
		return nil, err
	}
	return c.Transactions[signature], nil
}

// GetSlot returns the configured slot.
func (c *Client) GetSlot(_ context.Context) (int64, error) {
	if err := c.record("getSlot"); err != nil {
		return 0, err
	}
	return c.Slot, nil
}

// AddTransaction adds a transaction to the stub store.
func (c *Client) AddTransaction(tx *solana.Transaction) {
	c.Transactions[tx.Signature] = tx
}

// AddSignatures adds signatures for an address to the stub store.
func (c *Client) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.Signatures[address] = sigs
}
