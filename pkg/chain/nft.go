package chain

import "encoding/binary"

// nftStatePrefix tags an inner script carrying an NFT's transfer state:
// prefix || royalty puzzle hash || royalty basis points || owner script.
// The state layer sits inside the conserved-supply wrap, so an NFT spend
// reveals WrapTokenPuzzle(launcherID, WrapNFTStatePuzzle(...)).
var nftStatePrefix = []byte{0x4e, 0x01}

// WrapNFTStatePuzzle wraps an owner script with the NFT transfer state.
func WrapNFTStatePuzzle(
	royaltyPuzzleHash Bytes32, royaltyBasisPoints uint16, owner Program,
) Program {
	out := make([]byte, 0, len(nftStatePrefix)+32+2+len(owner))
	out = append(out, nftStatePrefix...)
	out = append(out, royaltyPuzzleHash[:]...)
	out = binary.BigEndian.AppendUint16(out, royaltyBasisPoints)
	out = append(out, owner...)
	return Program(out)
}

// MatchNFTStatePuzzle unwraps the NFT transfer state layer, returning the
// royalty terms and the owner script.
func MatchNFTStatePuzzle(puzzle Program) (
	royaltyPuzzleHash Bytes32, royaltyBasisPoints uint16, owner Program, ok bool,
) {
	if len(puzzle) < len(nftStatePrefix)+32+2 {
		return Bytes32{}, 0, nil, false
	}
	for i, b := range nftStatePrefix {
		if puzzle[i] != b {
			return Bytes32{}, 0, nil, false
		}
	}
	rest := puzzle[len(nftStatePrefix):]
	copy(royaltyPuzzleHash[:], rest[:32])
	royaltyBasisPoints = binary.BigEndian.Uint16(rest[32:34])
	owner = Program(rest[34:])
	return royaltyPuzzleHash, royaltyBasisPoints, owner, true
}
