package cartridge

import (
	"encoding/binary"
	"unicode/utf8"
)

// Instruction is the leading discriminator byte of a cartridge payload.
type Instruction uint8

// The discriminator values are part of the wire format and must never be
// renumbered.
const (
	CommissionMachineV1  Instruction = 0
	ReleaseGameV1        Instruction = 1
	PrintGameCartridgeV1 Instruction = 2
	InsertCartridgeV1    Instruction = 3
	RemoveCartridgeV1    Instruction = 4
)

func (i Instruction) String() string {
	switch i {
	case CommissionMachineV1:
		return "Commission Machine"
	case ReleaseGameV1:
		return "Release Game"
	case PrintGameCartridgeV1:
		return "Print Game Cartridge"
	case InsertCartridgeV1:
		return "Insert Cartridge"
	case RemoveCartridgeV1:
		return "Remove Cartridge"
	default:
		return "Unknown"
	}
}

// CollectionArgsSize is the encoded size of CollectionArgs including the
// discriminator.
const CollectionArgsSize = 3

// CommissionMachineArgs is the payload of CommissionMachineV1.
type CommissionMachineArgs struct {
	Name string
	URI  string
}

// ReleaseGameArgs is the payload of ReleaseGameV1.
type ReleaseGameArgs struct {
	Name  string
	URI   string
	Nonce uint8
	Price uint64
}

// CollectionArgs is the fixed payload shared by Print, Insert and Remove:
//
//	[0] discriminator
//	[1] game collection nonce
//	[2] game collection bump
type CollectionArgs struct {
	Nonce uint8
	Bump  uint8
}

func checkNameURI(name, uri string) error {
	if len(name) == 0 || len(name) > MaxNameLen {
		return ErrInvalidName
	}
	if len(uri) == 0 {
		return ErrInvalidURI
	}
	return nil
}

// Check validates the format of the arguments.
func (a CommissionMachineArgs) Check() error { return checkNameURI(a.Name, a.URI) }

// Check validates the format of the arguments.
func (a ReleaseGameArgs) Check() error { return checkNameURI(a.Name, a.URI) }

// ---- encoding ----

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// Encode returns the full instruction data.
func (a CommissionMachineArgs) Encode() []byte {
	buf := []byte{byte(CommissionMachineV1)}
	buf = appendString(buf, a.Name)
	return appendString(buf, a.URI)
}

// Encode returns the full instruction data.
func (a ReleaseGameArgs) Encode() []byte {
	buf := []byte{byte(ReleaseGameV1)}
	buf = appendString(buf, a.Name)
	buf = appendString(buf, a.URI)
	buf = append(buf, a.Nonce)
	return binary.LittleEndian.AppendUint64(buf, a.Price)
}

// Encode returns the full instruction data for ix.
func (a CollectionArgs) Encode(ix Instruction) []byte {
	return []byte{byte(ix), a.Nonce, a.Bump}
}

// ---- decoding ----

// reader consumes a payload after its discriminator. Any short read or
// malformed string fails with ErrDeserialization.
type reader struct {
	buf []byte
	off int
}

func newReader(data []byte) *reader {
	return &reader{buf: data, off: 1}
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || len(r.buf)-r.off < n {
		return nil, ErrDeserialization
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) str() (string, error) {
	lb, err := r.take(4)
	if err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lb)
	if uint64(n) > uint64(len(r.buf)-r.off) {
		return "", ErrDeserialization
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrDeserialization
	}
	return string(b), nil
}

func (r *reader) done() error {
	if r.off != len(r.buf) {
		return ErrDeserialization
	}
	return nil
}

// DecodeCommissionMachineArgs parses CommissionMachineV1 instruction data.
func DecodeCommissionMachineArgs(data []byte) (CommissionMachineArgs, error) {
	var a CommissionMachineArgs
	r := newReader(data)
	var err error
	if a.Name, err = r.str(); err != nil {
		return a, err
	}
	if a.URI, err = r.str(); err != nil {
		return a, err
	}
	return a, r.done()
}

// DecodeReleaseGameArgs parses ReleaseGameV1 instruction data.
func DecodeReleaseGameArgs(data []byte) (ReleaseGameArgs, error) {
	var a ReleaseGameArgs
	r := newReader(data)
	var err error
	if a.Name, err = r.str(); err != nil {
		return a, err
	}
	if a.URI, err = r.str(); err != nil {
		return a, err
	}
	if a.Nonce, err = r.u8(); err != nil {
		return a, err
	}
	if a.Price, err = r.u64(); err != nil {
		return a, err
	}
	return a, r.done()
}

// DecodeCollectionArgs parses the fixed 3-byte payload of Print, Insert and
// Remove.
func DecodeCollectionArgs(data []byte) (CollectionArgs, error) {
	if len(data) != CollectionArgsSize {
		return CollectionArgs{}, ErrDeserialization
	}
	return CollectionArgs{Nonce: data[1], Bump: data[2]}, nil
}
