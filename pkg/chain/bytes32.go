package chain

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Bytes32 is a fixed 32-byte value used for coin ids, puzzle hashes, asset
// ids and nonces.
type Bytes32 [32]byte

// Zero32 is the zero value, used as the parent of synthetic (ephemeral)
// coins and as the native-asset key.
var Zero32 Bytes32

func NewBytes32(b []byte) (Bytes32, error) {
	var out Bytes32
	if len(b) != 32 {
		return out, fmt.Errorf("invalid length %d, expected 32", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func Bytes32FromHex(s string) (Bytes32, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Bytes32{}, err
	}
	return NewBytes32(b)
}

func (b Bytes32) Hex() string {
	return hex.EncodeToString(b[:])
}

func (b Bytes32) String() string {
	return b.Hex()
}

func (b Bytes32) IsZero() bool {
	return b == Zero32
}

// Less orders values byte-lexicographically. This is the total order used
// when sorting coins for notarization.
func (b Bytes32) Less(other Bytes32) bool {
	return bytes.Compare(b[:], other[:]) < 0
}

func (b Bytes32) MarshalText() ([]byte, error) {
	return []byte(b.Hex()), nil
}

func (b *Bytes32) UnmarshalText(text []byte) error {
	v, err := Bytes32FromHex(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
