package domain

import "strings"

// Token represents a tracked meme token.
// Corresponds to tokens table in PostgreSQL.
type Token struct {
	Mint         string  // PRIMARY KEY, base58 mint address
	Symbol       *string // token symbol (nullable)
	Name         *string // token name (nullable)
	Creator      *string // creator wallet address (nullable)
	Narrative    *string // analyst narrative tag (nullable)
	Source       Source  // STREAM | SCAN
	BondingCurve bool    // still on a launchpad bonding curve
	Migrated     bool    // graduated to an AMM pool

	// Authority state read from the mint account. nil authority with
	// AuthoritiesVerified true means revoked; without it, unknown.
	MintAuthority       *string
	FreezeAuthority     *string
	AuthoritiesVerified bool

	FirstSeenAt int64 // Unix timestamp in milliseconds
	UpdatedAt   int64 // last upsert timestamp (ms)
}

// IsBondingCurveMint reports whether a mint address belongs to a
// launchpad bonding-curve token. Launchpad mints are vanity-ground to
// end in "pump".
func IsBondingCurveMint(mint string) bool {
	return strings.HasSuffix(mint, "pump")
}
