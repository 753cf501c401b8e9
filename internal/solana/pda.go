package solana

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program addresses.
const (
	TokenProgramID    = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	MetadataProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
	SystemProgramID   = "11111111111111111111111111111111"

	// WSOLMint is the wrapped SOL mint address.
	WSOLMint = "So11111111111111111111111111111111111111112"
)

// DerivePDA derives a Program Derived Address using the Solana algorithm.
// Returns "" if no off-curve bump exists (practically unreachable).
func DerivePDA(seeds [][]byte, programID []byte) string {
	// PDA derivation algorithm:
	// 1. Concatenate all seeds with bump
	// 2. Append program ID and "ProgramDerivedAddress" marker
	// 3. SHA256 hash
	// 4. Find bump seed that results in off-curve point

	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		// Check if point is off the ed25519 curve
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}

	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// MetadataPDA returns the Metaplex token metadata account address for a mint.
func MetadataPDA(mint string) (string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}

	programBytes, err := base58.Decode(MetadataProgramID)
	if err != nil {
		return "", fmt.Errorf("decode metadata program id: %w", err)
	}

	seeds := [][]byte{
		[]byte("metadata"),
		programBytes,
		mintBytes,
	}

	addr := DerivePDA(seeds, programBytes)
	if addr == "" {
		return "", fmt.Errorf("no off-curve bump for mint %s", mint)
	}
	return addr, nil
}
