package chain

import "crypto/sha256"

// SettlementProgram is the fixed script all offered value is routed through.
// Anyone can spend a settlement output by supplying the notarized payment
// groups committed to by the maker; see the offer package for the solution
// format.
var SettlementProgram = Program{
	0xff, 0x02, 0xff, 0xff, 0x01, 0xff, 0x02, 0xff, 0xff, 0x01, 0xff, 0x02,
	0xff, 0xff, 0x03, 0xff, 0xff, 0x01, 0x02, 0xff, 0xff, 0x01, 0x02, 0xff,
	0xff, 0x01, 0x3f, 0xff, 0x02, 0x80, 0x80, 0x80, 0x80, 0x01, 0x80,
}

// SettlementPuzzleHash is the hash of the plain settlement script, the
// puzzle hash native-asset offered value is sent to.
var SettlementPuzzleHash = SettlementProgram.Hash()

// tokenOuterPrefix tags a script wrapped under the conserved-supply outer
// layer: prefix || asset id || inner script. The asset id is the sole curry
// argument of the outer layer, so unwrapping recovers it exactly.
var tokenOuterPrefix = []byte{0xca, 0x74}

// WrapTokenPuzzle wraps an inner script under the conserved-supply outer
// layer of the given asset.
func WrapTokenPuzzle(assetID Bytes32, inner Program) Program {
	out := make([]byte, 0, len(tokenOuterPrefix)+32+len(inner))
	out = append(out, tokenOuterPrefix...)
	out = append(out, assetID[:]...)
	out = append(out, inner...)
	return Program(out)
}

// MatchTokenPuzzle unwraps the conserved-supply outer layer, returning the
// curried asset id and the inner script.
func MatchTokenPuzzle(puzzle Program) (assetID Bytes32, inner Program, ok bool) {
	if len(puzzle) < len(tokenOuterPrefix)+32 {
		return Bytes32{}, nil, false
	}
	for i, b := range tokenOuterPrefix {
		if puzzle[i] != b {
			return Bytes32{}, nil, false
		}
	}
	copy(assetID[:], puzzle[len(tokenOuterPrefix):len(tokenOuterPrefix)+32])
	inner = Program(puzzle[len(tokenOuterPrefix)+32:])
	return assetID, inner, true
}

// WrapPuzzleHash wraps a bare inner puzzle hash under an asset's outer
// layer at the hash level. Payments only carry inner puzzle hashes, so the
// on-chain hash of any wrapped script is defined through this function; a
// wrapped Program's puzzle hash is WrapPuzzleHash(asset, inner.Hash()),
// never a direct hash of the wrapped bytes.
func WrapPuzzleHash(assetID Bytes32, innerPuzzleHash Bytes32) Bytes32 {
	if assetID.IsZero() {
		return innerPuzzleHash
	}
	h := sha256.New()
	h.Write(tokenOuterPrefix)
	h.Write(assetID[:])
	h.Write(innerPuzzleHash[:])
	var out Bytes32
	copy(out[:], h.Sum(nil))
	return out
}

// WrappedSettlementPuzzleHash returns the on-chain puzzle hash of the
// settlement script under the given asset's outer layer, or the plain
// settlement hash for the native asset (zero id).
func WrappedSettlementPuzzleHash(assetID Bytes32) Bytes32 {
	return WrapPuzzleHash(assetID, SettlementPuzzleHash)
}

// PuzzleHashOf returns the on-chain puzzle hash of a revealed script,
// accounting for the outer token layer.
func PuzzleHashOf(puzzle Program) Bytes32 {
	if assetID, inner, ok := MatchTokenPuzzle(puzzle); ok {
		return WrapPuzzleHash(assetID, inner.Hash())
	}
	return puzzle.Hash()
}
