package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// mintAccountLen is the size of a legacy SPL Token mint account.
// Token-2022 mints carry extensions after this prefix.
const mintAccountLen = 82

// MintInfo holds the authority and supply state of an SPL mint account.
// A nil authority means the corresponding option flag was None, i.e. the
// authority has been revoked on-chain.
type MintInfo struct {
	MintAuthority   *string
	FreezeAuthority *string
	Supply          uint64
	Decimals        uint8
	Initialized     bool
}

// ParseMintAccount parses base64 SPL Token mint account data.
// Mint layout (82 bytes):
// - mintAuthorityOption: u32 LE (0 = None, 1 = Some)
// - mintAuthority: Pubkey (32 bytes)
// - supply: u64 LE
// - decimals: u8
// - isInitialized: u8
// - freezeAuthorityOption: u32 LE
// - freezeAuthority: Pubkey (32 bytes)
func ParseMintAccount(data string) (*MintInfo, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode mint account data: %w", err)
	}

	if len(decoded) < mintAccountLen {
		return nil, fmt.Errorf("mint account data too short: %d", len(decoded))
	}

	info := &MintInfo{
		Supply:      binary.LittleEndian.Uint64(decoded[36:44]),
		Decimals:    decoded[44],
		Initialized: decoded[45] != 0,
	}

	if binary.LittleEndian.Uint32(decoded[0:4]) == 1 {
		auth := base58.Encode(decoded[4:36])
		info.MintAuthority = &auth
	}
	if binary.LittleEndian.Uint32(decoded[46:50]) == 1 {
		auth := base58.Encode(decoded[50:82])
		info.FreezeAuthority = &auth
	}

	return info, nil
}
