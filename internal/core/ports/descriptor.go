package ports

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// ErrUnknownAssetKind is returned when decoding a descriptor of a kind this
// daemon does not know how to trade.
var ErrUnknownAssetKind = errors.New("unknown asset kind")

// Asset descriptor kinds.
const (
	AssetKindNative = "native"
	AssetKindToken  = "token"
	AssetKindNFT    = "nft"
)

// AssetDescriptor identifies one concrete asset kind and its parameters.
// The set of implementations is closed; decoding an unknown kind fails with
// ErrUnknownAssetKind instead of handing back a schemaless record.
type AssetDescriptor interface {
	Kind() string
	// AssetID is the offer-map key: zero for the native asset.
	AssetID() chain.Bytes32
}

// NativeDescriptor describes the native currency.
type NativeDescriptor struct{}

func (NativeDescriptor) Kind() string           { return AssetKindNative }
func (NativeDescriptor) AssetID() chain.Bytes32 { return chain.Zero32 }

// TokenDescriptor describes a conserved-supply fungible token.
type TokenDescriptor struct {
	TailHash chain.Bytes32 `json:"tail_hash"`
}

func (d TokenDescriptor) Kind() string           { return AssetKindToken }
func (d TokenDescriptor) AssetID() chain.Bytes32 { return d.TailHash }

// NFTDescriptor describes a singleton NFT, including its royalty terms.
type NFTDescriptor struct {
	LauncherID         chain.Bytes32 `json:"launcher_id"`
	RoyaltyBasisPoints uint16        `json:"royalty_basis_points"`
	RoyaltyPuzzleHash  chain.Bytes32 `json:"royalty_puzzle_hash"`
}

func (d NFTDescriptor) Kind() string           { return AssetKindNFT }
func (d NFTDescriptor) AssetID() chain.Bytes32 { return d.LauncherID }

// RoyaltyAmount computes the royalty owed on a fungible trade amount:
// floor(amount * basis points / 10000).
func (d NFTDescriptor) RoyaltyAmount(tradeAmount uint64) uint64 {
	return tradeAmount * uint64(d.RoyaltyBasisPoints) / 10000
}

// DecodeDescriptor decodes a descriptor from its kind tag and JSON payload.
func DecodeDescriptor(kind string, payload json.RawMessage) (AssetDescriptor, error) {
	switch kind {
	case AssetKindNative:
		return NativeDescriptor{}, nil
	case AssetKindToken:
		var d TokenDescriptor
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, fmt.Errorf("decoding token descriptor: %w", err)
		}
		return d, nil
	case AssetKindNFT:
		var d NFTDescriptor
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, fmt.Errorf("decoding nft descriptor: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAssetKind, kind)
	}
}
