package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Program is an opaque serialized script. The daemon never executes scripts;
// it only hashes them, compares them and unwraps the outer token layer.
type Program []byte

func (p Program) Hash() Bytes32 {
	return Bytes32(sha256.Sum256(p))
}

func (p Program) Equal(other Program) bool {
	return bytes.Equal(p, other)
}

func (p Program) Hex() string {
	return hex.EncodeToString(p)
}
