package solana

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
)

// buildMintAccount assembles SPL mint account bytes. Nil authority slices
// produce a None option with a zeroed pubkey field, matching the on-chain
// COption encoding.
func buildMintAccount(mintAuth, freezeAuth []byte, supply uint64, decimals byte) string {
	data := make([]byte, 0, mintAccountLen)

	data = appendCOptionPubkey(data, mintAuth)

	var supplyBuf [8]byte
	binary.LittleEndian.PutUint64(supplyBuf[:], supply)
	data = append(data, supplyBuf[:]...)
	data = append(data, decimals, 1) // initialized

	data = appendCOptionPubkey(data, freezeAuth)

	return base64.StdEncoding.EncodeToString(data)
}

func appendCOptionPubkey(data, pubkey []byte) []byte {
	var optBuf [4]byte
	if pubkey != nil {
		binary.LittleEndian.PutUint32(optBuf[:], 1)
		data = append(data, optBuf[:]...)
		return append(data, pubkey...)
	}
	data = append(data, optBuf[:]...)
	return append(data, make([]byte, 32)...)
}

func TestParseMintAccount(t *testing.T) {
	mintAuth := bytes.Repeat([]byte{0x11}, 32)
	freezeAuth := bytes.Repeat([]byte{0x22}, 32)
	encoded := buildMintAccount(mintAuth, freezeAuth, 1_000_000_000, 6)

	info, err := ParseMintAccount(encoded)
	if err != nil {
		t.Fatalf("ParseMintAccount: %v", err)
	}

	if info.Supply != 1_000_000_000 {
		t.Errorf("expected supply 1000000000, got %d", info.Supply)
	}
	if info.Decimals != 6 {
		t.Errorf("expected 6 decimals, got %d", info.Decimals)
	}
	if !info.Initialized {
		t.Error("expected initialized mint")
	}

	if info.MintAuthority == nil {
		t.Fatal("expected mint authority to be set")
	}
	decoded, err := base58.Decode(*info.MintAuthority)
	if err != nil {
		t.Fatalf("mint authority is not valid base58: %v", err)
	}
	if !bytes.Equal(decoded, mintAuth) {
		t.Errorf("unexpected mint authority bytes: %x", decoded)
	}

	if info.FreezeAuthority == nil {
		t.Fatal("expected freeze authority to be set")
	}
	decoded, err = base58.Decode(*info.FreezeAuthority)
	if err != nil {
		t.Fatalf("freeze authority is not valid base58: %v", err)
	}
	if !bytes.Equal(decoded, freezeAuth) {
		t.Errorf("unexpected freeze authority bytes: %x", decoded)
	}
}

func TestParseMintAccount_RevokedAuthorities(t *testing.T) {
	encoded := buildMintAccount(nil, nil, 500, 9)

	info, err := ParseMintAccount(encoded)
	if err != nil {
		t.Fatalf("ParseMintAccount: %v", err)
	}

	if info.MintAuthority != nil {
		t.Errorf("expected nil mint authority, got %q", *info.MintAuthority)
	}
	if info.FreezeAuthority != nil {
		t.Errorf("expected nil freeze authority, got %q", *info.FreezeAuthority)
	}
	if info.Supply != 500 {
		t.Errorf("expected supply 500, got %d", info.Supply)
	}
}

func TestParseMintAccount_Token2022Extensions(t *testing.T) {
	// Token-2022 mints append extension TLVs after the 82-byte prefix.
	mintAuth := bytes.Repeat([]byte{0x33}, 32)
	encoded := buildMintAccount(mintAuth, nil, 42, 0)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatal(err)
	}
	raw = append(raw, make([]byte, 120)...)

	info, err := ParseMintAccount(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("ParseMintAccount: %v", err)
	}
	if info.MintAuthority == nil {
		t.Fatal("expected mint authority to survive trailing extensions")
	}
	if info.Supply != 42 {
		t.Errorf("expected supply 42, got %d", info.Supply)
	}
}

func TestParseMintAccount_TooShort(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(make([]byte, 40))

	if _, err := ParseMintAccount(encoded); err == nil {
		t.Fatal("expected error for truncated data")
	}
}

func TestParseMintAccount_BadBase64(t *testing.T) {
	if _, err := ParseMintAccount("%%% definitely not base64"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}
