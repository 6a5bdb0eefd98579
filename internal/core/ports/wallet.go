package ports

import (
	"context"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
)

// AssetWallet is the per-asset wallet capability the trade manager consumes.
// Implementations own key derivation, coin tracking and per-asset puzzle
// construction; the trade core never inspects puzzles beyond the outer
// token layer.
//
// Address derivation may extend a shared derivation index, so calls that
// derive addresses must be serialized by the caller.
type AssetWallet interface {
	// Descriptor identifies the wallet's asset.
	Descriptor() AssetDescriptor
	// ConfirmedBalance returns the spendable confirmed balance.
	ConfirmedBalance(ctx context.Context) (uint64, error)
	// SelectCoins picks confirmed coins covering amount, skipping the
	// excluded ids. Selection is not enforced exclusive by the store.
	SelectCoins(ctx context.Context, amount uint64, exclude []chain.Bytes32) ([]chain.Coin, error)
	// NewPuzzleHash derives a fresh puzzle hash this wallet controls.
	NewPuzzleHash(ctx context.Context) (chain.Bytes32, error)
	// BuildPaymentTransaction spends the given coins into the given
	// payments, reserving fee and asserting the announcements. Change
	// goes back to a wallet-controlled address.
	BuildPaymentTransaction(
		ctx context.Context,
		payments []offer.Payment,
		coins []chain.Coin,
		fee uint64,
		announcements []chain.Announcement,
	) (chain.SpendBundle, error)
	// Owns reports whether the puzzle hash belongs to this wallet.
	Owns(puzzleHash chain.Bytes32) bool
	// ToLocalAddress renders a wallet-owned puzzle hash as an address.
	ToLocalAddress(puzzleHash chain.Bytes32) (string, error)
}

// WalletRegistry maps wallet id, asset id and owning wallet.
type WalletRegistry interface {
	NativeWallet() AssetWallet
	// WalletForAsset resolves the wallet owning the given asset id.
	WalletForAsset(assetID chain.Bytes32) (AssetWallet, bool)
	// CreateAssetWallet creates the local wallet for a previously-unknown
	// asset.
	CreateAssetWallet(ctx context.Context, descriptor AssetDescriptor) (AssetWallet, error)
	Wallets() []AssetWallet
}

// OuterDriverRegistry recognizes outer puzzle layers, yielding the asset
// descriptor needed to create a wallet for an asset seen for the first time
// in an incoming offer.
type OuterDriverRegistry interface {
	DescriptorForPuzzle(puzzle chain.Program) (AssetDescriptor, bool)
}
