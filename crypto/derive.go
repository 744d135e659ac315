package crypto

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds is the maximum number of seeds, bump included, accepted by
	// CreateProgramAddress.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 32

	derivationMarker = "ProgramDerivedAddress"
)

var (
	// ErrMaxSeedsExceeded is returned when too many seeds are supplied.
	ErrMaxSeedsExceeded = errors.New("derive: too many seeds")
	// ErrSeedTooLong is returned when a seed is longer than MaxSeedLen.
	ErrSeedTooLong = errors.New("derive: seed too long")
	// ErrOnCurve is returned when the digest is a valid ed25519 point and
	// could therefore have a private key.
	ErrOnCurve = errors.New("derive: address is on the ed25519 curve")
	// ErrNoViableBump is returned when no bump in [0, 255] yields an
	// off-curve address.
	ErrNoViableBump = errors.New("derive: unable to find a viable bump")
	// ErrAddressMismatch is returned when a recomputed address differs from
	// the supplied one.
	ErrAddressMismatch = errors.New("derive: address mismatch")
)

// CreateProgramAddress hashes seeds and the owning program id into an
// address. The seeds are expected to already carry the bump byte.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrMaxSeedsExceeded
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return Address{}, ErrSeedTooLong
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(derivationMarker))

	var addr Address
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr) {
		return Address{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first
// address that is off the curve together with its bump.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// VerifyProgramAddress recomputes the address from seeds and bump and
// compares it to expected.
func VerifyProgramAddress(expected Address, seeds [][]byte, bump uint8, programID Address) error {
	withBump := append(append([][]byte{}, seeds...), []byte{bump})
	addr, err := CreateProgramAddress(withBump, programID)
	if err != nil {
		return err
	}
	if addr != expected {
		return ErrAddressMismatch
	}
	return nil
}

// IsOnCurve reports whether a decodes to a valid ed25519 point.
func IsOnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
