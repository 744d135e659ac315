package crypto

import (
	"errors"
	"strings"
	"testing"
)

var testProgramID = AddressFromSeed("test-program")

func TestFindProgramAddressDeterministic(t *testing.T) {
	seeds := [][]byte{[]byte("machine"), testProgramID[:], []byte("ARCADE-01")}

	a1, b1, err := FindProgramAddress(seeds, testProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	a2, b2, err := FindProgramAddress(seeds, testProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	if a1 != a2 || b1 != b2 {
		t.Errorf("derivation not deterministic: %s/%d vs %s/%d", a1, b1, a2, b2)
	}
	if IsOnCurve(a1) {
		t.Error("derived address must be off curve")
	}
}

func TestFindProgramAddressSeedsMatter(t *testing.T) {
	a1, _, err := FindProgramAddress([][]byte{[]byte("game"), []byte("Zork"), {0}}, testProgramID)
	if err != nil {
		t.Fatal(err)
	}
	a2, _, err := FindProgramAddress([][]byte{[]byte("game"), []byte("Zork"), {1}}, testProgramID)
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a2 {
		t.Error("different nonce should derive a different address")
	}

	other := AddressFromSeed("other-program")
	a3, _, err := FindProgramAddress([][]byte{[]byte("game"), []byte("Zork"), {0}}, other)
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a3 {
		t.Error("different program id should derive a different address")
	}
}

func TestVerifyProgramAddress(t *testing.T) {
	seeds := [][]byte{[]byte("game"), []byte("Zork"), {7}}
	addr, bump, err := FindProgramAddress(seeds, testProgramID)
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyProgramAddress(addr, seeds, bump, testProgramID); err != nil {
		t.Errorf("verify with declared bump: %v", err)
	}

	// Another bump either lands on the curve or yields a different address.
	err = VerifyProgramAddress(addr, seeds, bump-1, testProgramID)
	if err == nil {
		t.Fatal("wrong bump should not verify")
	}
	if !errors.Is(err, ErrAddressMismatch) && !errors.Is(err, ErrOnCurve) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreateProgramAddressLimits(t *testing.T) {
	long := []byte(strings.Repeat("x", MaxSeedLen+1))
	if _, err := CreateProgramAddress([][]byte{long}, testProgramID); !errors.Is(err, ErrSeedTooLong) {
		t.Errorf("seed too long: got %v", err)
	}

	many := make([][]byte, MaxSeeds+1)
	for i := range many {
		many[i] = []byte{byte(i)}
	}
	if _, err := CreateProgramAddress(many, testProgramID); !errors.Is(err, ErrMaxSeedsExceeded) {
		t.Errorf("too many seeds: got %v", err)
	}

	// A 32-byte name is still a valid seed.
	if _, _, err := FindProgramAddress([][]byte{[]byte(strings.Repeat("n", MaxSeedLen))}, testProgramID); err != nil {
		t.Errorf("32-byte seed: %v", err)
	}
}

func TestPublicKeysAreOnCurve(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if !IsOnCurve(pub.Address()) {
		t.Error("an ed25519 public key must decode as a curve point")
	}
}
