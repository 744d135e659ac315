package vm

import "github.com/tolelom/arcadechain/crypto"

// The assertions below are side-effect free: each one checks a single role of
// a supplied account and returns the caller's error when the role is missing.

// AssertSigner fails with err unless acc signed the transaction.
func AssertSigner(acc *AccountInfo, err error) error {
	if acc == nil || !acc.IsSigner {
		return err
	}
	return nil
}

// AssertWritable fails with err unless acc was passed as writable. A nil err
// falls back to ErrAccountNotWritable.
func AssertWritable(acc *AccountInfo, err error) error {
	if acc != nil && acc.IsWritable {
		return nil
	}
	if err == nil {
		return ErrAccountNotWritable
	}
	return err
}

// AssertProgramID fails with err unless acc is the expected program.
func AssertProgramID(acc *AccountInfo, expected crypto.Address, err error) error {
	if acc == nil || acc.Key != expected {
		return err
	}
	return nil
}

// AssertDerivation recomputes the canonical address for seeds under
// programID and fails with err unless it equals acc. On success it returns
// the bump that produced the address.
func AssertDerivation(programID crypto.Address, acc *AccountInfo, seeds [][]byte, err error) (uint8, error) {
	addr, bump, derr := crypto.FindProgramAddress(seeds, programID)
	if derr != nil || acc == nil || addr != acc.Key {
		return 0, err
	}
	return bump, nil
}
