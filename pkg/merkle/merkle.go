// Package merkle builds commitment trees over ordered leaf sets and
// produces per-leaf inclusion proofs. Offers use these proofs to attach
// "prove this value was in that root" conditions.
package merkle

import (
	"crypto/sha256"
	"errors"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

const (
	leafPrefix byte = 0x01
	nodePrefix byte = 0x02
)

var (
	ErrEmptyLeaves = errors.New("merkle tree requires at least one leaf")
	ErrProofDepth  = errors.New("proof deeper than 64 levels")
)

// Proof is an inclusion proof for one leaf: a path bitmask and the sibling
// hashes ordered leaf to root. Bit i of the path set means the proven node
// is the right child at level i, so the sibling is the left operand.
type Proof struct {
	Path     uint64
	Siblings []chain.Bytes32
}

// HashLeaf hashes a leaf value with the leaf domain prefix.
func HashLeaf(value []byte) chain.Bytes32 {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(value)
	var out chain.Bytes32
	copy(out[:], h.Sum(nil))
	return out
}

// HashNode hashes an internal node from its two children.
func HashNode(left, right chain.Bytes32) chain.Bytes32 {
	h := sha256.New()
	h.Write([]byte{nodePrefix})
	h.Write(left[:])
	h.Write(right[:])
	var out chain.Bytes32
	copy(out[:], h.Sum(nil))
	return out
}

// Build constructs the commitment tree over the given ordered leaves and
// returns the root plus an inclusion proof per leaf hash. The leaf sequence
// is bisected recursively; for odd counts the first half takes the extra
// element.
func Build(leaves [][]byte) (chain.Bytes32, map[chain.Bytes32]Proof, error) {
	if len(leaves) == 0 {
		return chain.Bytes32{}, nil, ErrEmptyLeaves
	}
	root, proofs := build(leaves)
	return root, proofs, nil
}

func build(leaves [][]byte) (chain.Bytes32, map[chain.Bytes32]Proof) {
	if len(leaves) == 1 {
		leafHash := HashLeaf(leaves[0])
		return leafHash, map[chain.Bytes32]Proof{leafHash: {}}
	}
	mid := (len(leaves) + 1) / 2
	leftRoot, leftProofs := build(leaves[:mid])
	rightRoot, rightProofs := build(leaves[mid:])
	root := HashNode(leftRoot, rightRoot)

	proofs := make(map[chain.Bytes32]Proof, len(leftProofs)+len(rightProofs))
	for leaf, p := range leftProofs {
		p.Siblings = append(p.Siblings, rightRoot)
		proofs[leaf] = p
	}
	for leaf, p := range rightProofs {
		p.Path |= 1 << uint(len(p.Siblings))
		p.Siblings = append(p.Siblings, leftRoot)
		proofs[leaf] = p
	}
	return root, proofs
}

// SimplifyProof folds the siblings over the starting hash, recomputing each
// internal node, and returns the implied root.
func SimplifyProof(hash chain.Bytes32, proof Proof) (chain.Bytes32, error) {
	if len(proof.Siblings) > 64 {
		return chain.Bytes32{}, ErrProofDepth
	}
	current := hash
	for i, sibling := range proof.Siblings {
		if proof.Path&(1<<uint(i)) != 0 {
			current = HashNode(sibling, current)
		} else {
			current = HashNode(current, sibling)
		}
	}
	return current, nil
}

// CheckProof verifies that value is included under root via the given proof.
func CheckProof(root chain.Bytes32, value []byte, proof Proof) bool {
	computed, err := SimplifyProof(HashLeaf(value), proof)
	if err != nil {
		return false
	}
	return computed == root
}

// ParentBranch collapses a proof one level: it combines the proven hash with
// its immediate sibling into the parent hash and drops the first path bit
// and sibling. Used to prove inclusion of an updated subtree without
// re-stating every original leaf.
func ParentBranch(hash chain.Bytes32, proof Proof) (chain.Bytes32, Proof, error) {
	if len(proof.Siblings) == 0 {
		return chain.Bytes32{}, Proof{}, errors.New("proof has no sibling to collapse")
	}
	var parent chain.Bytes32
	if proof.Path&1 != 0 {
		parent = HashNode(proof.Siblings[0], hash)
	} else {
		parent = HashNode(hash, proof.Siblings[0])
	}
	shortened := Proof{
		Path:     proof.Path >> 1,
		Siblings: append([]chain.Bytes32{}, proof.Siblings[1:]...),
	}
	return parent, shortened, nil
}
