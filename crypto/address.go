package crypto

import (
	"encoding/hex"
	"fmt"
)

// AddressSize is the byte length of every ledger address.
const AddressSize = 32

// Address identifies a participant or record on the ledger. It is either an
// ed25519 public key or a program-derived address that has no private key.
type Address [AddressSize]byte

// ZeroAddress is the all-zero address.
var ZeroAddress Address

// AddressFromBytes copies b into an Address. b must be exactly AddressSize bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// ParseAddress decodes a 64-char hex address.
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address hex: %w", err)
	}
	return AddressFromBytes(b)
}

// MustParseAddress is ParseAddress that panics; for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromSeed derives a well-known identity from a label, e.g. for
// built-in program ids. The result is not guaranteed to be off-curve.
func AddressFromSeed(label string) Address {
	var a Address
	copy(a[:], HashBytes([]byte(label)))
	return a
}

func (a Address) String() string { return hex.EncodeToString(a[:]) }

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
