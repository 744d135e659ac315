package cartridge

import (
	"encoding/binary"

	"github.com/tolelom/arcadechain/crypto"
)

// Seed prefixes of the program-derived addresses.
var (
	MachinePrefix = []byte("machine")
	GamePrefix    = []byte("game")
)

// MaxNameLen bounds machine and game names so they fit in a single seed.
const MaxNameLen = crypto.MaxSeedLen

// GameCollectionDataSize is the encoded size of GameCollectionData.
const GameCollectionDataSize = 16

// GameCollectionData is the collection-level blob written on release.
//
//	[0]      version u8
//	[1..8)   padding, zero
//	[8..16)  price u64 little-endian
type GameCollectionData struct {
	Version uint8
	Price   uint64
}

// MarshalBinary encodes d in its fixed 16-byte layout.
func (d GameCollectionData) MarshalBinary() ([]byte, error) {
	buf := make([]byte, GameCollectionDataSize)
	buf[0] = d.Version
	binary.LittleEndian.PutUint64(buf[8:], d.Price)
	return buf, nil
}

// UnmarshalBinary decodes a 16-byte blob. Non-zero padding is rejected.
func (d *GameCollectionData) UnmarshalBinary(b []byte) error {
	if len(b) != GameCollectionDataSize {
		return ErrDeserialization
	}
	for _, p := range b[1:8] {
		if p != 0 {
			return ErrDeserialization
		}
	}
	d.Version = b[0]
	d.Price = binary.LittleEndian.Uint64(b[8:])
	return nil
}

func machineSeeds(collection crypto.Address, name string) [][]byte {
	return [][]byte{MachinePrefix, collection.Bytes(), []byte(name)}
}

func gameSeeds(name string, nonce uint8) [][]byte {
	return [][]byte{GamePrefix, []byte(name), {nonce}}
}

func withBump(seeds [][]byte, bump uint8) [][]byte {
	out := make([][]byte, 0, len(seeds)+1)
	out = append(out, seeds...)
	return append(out, []byte{bump})
}

// MachineAddress derives the address of the machine called name inside
// collection.
func MachineAddress(programID, collection crypto.Address, name string) (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress(machineSeeds(collection, name), programID)
}

// GameAddress derives the address of the game collection called name.
func GameAddress(programID crypto.Address, name string, nonce uint8) (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress(gameSeeds(name, nonce), programID)
}
