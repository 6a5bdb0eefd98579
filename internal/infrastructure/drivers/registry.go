package drivers

import (
	"github.com/chainswap/chainswap-daemon/internal/core/ports"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// OuterDriver recognizes one outer puzzle layer.
type OuterDriver interface {
	// Match inspects a revealed script and, if the layer applies, returns
	// the descriptor of the wrapped asset.
	Match(puzzle chain.Program) (ports.AssetDescriptor, bool)
}

type registry struct {
	drivers []OuterDriver
}

// NewRegistry returns the default driver registry: the NFT state layer is
// probed before the plain conserved-supply layer, since every NFT reveal
// also matches the latter.
func NewRegistry() ports.OuterDriverRegistry {
	return &registry{drivers: []OuterDriver{
		nftDriver{},
		tokenDriver{},
	}}
}

func (r *registry) DescriptorForPuzzle(puzzle chain.Program) (ports.AssetDescriptor, bool) {
	for _, driver := range r.drivers {
		if descriptor, ok := driver.Match(puzzle); ok {
			return descriptor, true
		}
	}
	return nil, false
}

// tokenDriver recognizes conserved-supply fungible tokens.
type tokenDriver struct{}

func (tokenDriver) Match(puzzle chain.Program) (ports.AssetDescriptor, bool) {
	assetID, _, ok := chain.MatchTokenPuzzle(puzzle)
	if !ok {
		return nil, false
	}
	return ports.TokenDescriptor{TailHash: assetID}, true
}

// nftDriver recognizes singletons carrying the NFT transfer state inside
// the conserved-supply wrap.
type nftDriver struct{}

func (nftDriver) Match(puzzle chain.Program) (ports.AssetDescriptor, bool) {
	launcherID, inner, ok := chain.MatchTokenPuzzle(puzzle)
	if !ok {
		return nil, false
	}
	royaltyPuzzleHash, royaltyBasisPoints, _, ok := chain.MatchNFTStatePuzzle(inner)
	if !ok {
		return nil, false
	}
	return ports.NFTDescriptor{
		LauncherID:         launcherID,
		RoyaltyBasisPoints: royaltyBasisPoints,
		RoyaltyPuzzleHash:  royaltyPuzzleHash,
	}, true
}
