package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// TokenMetadata holds fields parsed from a Metaplex token metadata account.
type TokenMetadata struct {
	Name            string
	Symbol          string
	UpdateAuthority string
}

// ParseMetadataAccount parses base64 Metaplex Token Metadata account data.
// Metaplex Metadata layout:
// - key: u8 (1 byte, should be 4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name: String (4 + length bytes, max 32 chars)
// - symbol: String (4 + length bytes, max 10 chars)
// - uri: String (4 + length bytes, max 200 chars)
// ...and more fields
func ParseMetadataAccount(data string) (*TokenMetadata, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode metadata account data: %w", err)
	}

	// Minimum size check
	if len(decoded) < 100 {
		return nil, fmt.Errorf("metadata account data too short: %d", len(decoded))
	}

	// Check metadata key
	if decoded[0] != 4 { // MetadataV1 key
		return nil, fmt.Errorf("unexpected metadata key %d", decoded[0])
	}

	meta := &TokenMetadata{
		UpdateAuthority: base58.Encode(decoded[1:33]),
	}

	// Skip: key(1) + updateAuthority(32) + mint(32) = 65 bytes
	offset := 65

	// Parse name (borsh string: 4-byte length + data)
	if offset+4 > len(decoded) {
		return meta, nil
	}
	nameLen := binary.LittleEndian.Uint32(decoded[offset:])
	offset += 4

	if nameLen > 100 || offset+int(nameLen) > len(decoded) {
		return meta, nil
	}
	meta.Name = strings.TrimRight(string(decoded[offset:offset+int(nameLen)]), "\x00")
	offset += int(nameLen)

	// Parse symbol
	if offset+4 > len(decoded) {
		return meta, nil
	}
	symbolLen := binary.LittleEndian.Uint32(decoded[offset:])
	offset += 4

	if symbolLen > 20 || offset+int(symbolLen) > len(decoded) {
		return meta, nil
	}
	meta.Symbol = strings.TrimRight(string(decoded[offset:offset+int(symbolLen)]), "\x00")

	return meta, nil
}
