package solana

import (
	"testing"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

func TestDerivePDA_Deterministic(t *testing.T) {
	program, err := base58.Decode(MetadataProgramID)
	if err != nil {
		t.Fatalf("decode program id: %v", err)
	}

	seeds := [][]byte{[]byte("metadata"), program}

	a := DerivePDA(seeds, program)
	b := DerivePDA(seeds, program)

	if a == "" {
		t.Fatal("expected non-empty PDA")
	}
	if a != b {
		t.Errorf("PDA not deterministic: %s vs %s", a, b)
	}

	decoded, err := base58.Decode(a)
	if err != nil {
		t.Fatalf("PDA is not valid base58: %v", err)
	}
	if len(decoded) != 32 {
		t.Errorf("expected 32-byte address, got %d", len(decoded))
	}

	// PDAs are off the ed25519 curve by construction.
	if isOnCurve(decoded) {
		t.Error("derived PDA lies on the curve")
	}
}

func TestDerivePDA_SeedsChangeAddress(t *testing.T) {
	program, err := base58.Decode(MetadataProgramID)
	if err != nil {
		t.Fatalf("decode program id: %v", err)
	}

	a := DerivePDA([][]byte{[]byte("metadata"), program}, program)
	b := DerivePDA([][]byte{[]byte("edition"), program}, program)

	if a == b {
		t.Errorf("different seeds produced the same PDA: %s", a)
	}
}

func TestIsOnCurve(t *testing.T) {
	// The generator point is on the curve.
	gen := edwards25519.NewGeneratorPoint().Bytes()
	if !isOnCurve(gen) {
		t.Error("generator point reported off-curve")
	}

	if isOnCurve([]byte{1, 2, 3}) {
		t.Error("short input reported on-curve")
	}
}

func TestMetadataPDA(t *testing.T) {
	addr, err := MetadataPDA(WSOLMint)
	if err != nil {
		t.Fatalf("MetadataPDA: %v", err)
	}

	decoded, err := base58.Decode(addr)
	if err != nil {
		t.Fatalf("metadata PDA is not valid base58: %v", err)
	}
	if len(decoded) != 32 {
		t.Errorf("expected 32-byte address, got %d", len(decoded))
	}

	again, err := MetadataPDA(WSOLMint)
	if err != nil {
		t.Fatalf("MetadataPDA repeat: %v", err)
	}
	if addr != again {
		t.Errorf("metadata PDA not deterministic: %s vs %s", addr, again)
	}
}

func TestMetadataPDA_InvalidMint(t *testing.T) {
	if _, err := MetadataPDA("not-a-valid-mint!!"); err == nil {
		t.Fatal("expected error for invalid mint")
	}
}
