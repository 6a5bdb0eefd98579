package chain

import (
	"encoding/hex"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// Signature is a compressed BLS12-381 G2 point. Signing happens in the key
// layer; this package only needs the group operation to combine the partial
// signatures of independently-built bundles.
type Signature [96]byte

// IsEmpty reports whether the signature is the all-zero placeholder, which
// aggregation treats as the identity.
func (s Signature) IsEmpty() bool {
	return s == Signature{}
}

func (s Signature) Hex() string {
	return hex.EncodeToString(s[:])
}

// AggregateSignatures adds the signature points on the curve. Empty
// placeholders are skipped; aggregating nothing yields the empty signature.
func AggregateSignatures(sigs ...Signature) (Signature, error) {
	var acc bls12381.G2Jac
	count := 0
	for _, sig := range sigs {
		if sig.IsEmpty() {
			continue
		}
		var p bls12381.G2Affine
		if _, err := p.SetBytes(sig[:]); err != nil {
			return Signature{}, fmt.Errorf("invalid signature point: %w", err)
		}
		acc.AddMixed(&p)
		count++
	}
	if count == 0 {
		return Signature{}, nil
	}
	var sum bls12381.G2Affine
	sum.FromJacobian(&acc)
	return Signature(sum.Bytes()), nil
}
