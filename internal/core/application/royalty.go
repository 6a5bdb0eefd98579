package application

import (
	"github.com/chainswap/chainswap-daemon/internal/core/ports"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
)

// royaltyPayments computes the royalty owed by this side of an offer map.
// Whoever pays a fungible amount in exchange for a royalty-bearing NFT also
// pays floor(amount * basis points / 10000) to the royalty address,
// alongside the settlement payment of the same asset.
func (m *TradeManager) royaltyPayments(
	offerMap map[chain.Bytes32]int64,
) (map[chain.Bytes32][]offer.Payment, error) {
	var nfts []ports.NFTDescriptor
	for assetID, amount := range offerMap {
		if amount <= 0 {
			continue
		}
		wallet, ok := m.wallets.WalletForAsset(assetID)
		if !ok {
			continue
		}
		if d, ok := wallet.Descriptor().(ports.NFTDescriptor); ok && d.RoyaltyBasisPoints > 0 {
			nfts = append(nfts, d)
		}
	}
	if len(nfts) == 0 {
		return nil, nil
	}

	out := make(map[chain.Bytes32][]offer.Payment)
	for assetID, amount := range offerMap {
		if amount >= 0 {
			continue
		}
		wallet, ok := m.wallets.WalletForAsset(assetID)
		if !ok {
			continue
		}
		if _, isNFT := wallet.Descriptor().(ports.NFTDescriptor); isNFT {
			continue
		}
		for _, nft := range nfts {
			royalty := nft.RoyaltyAmount(uint64(-amount))
			if royalty == 0 {
				continue
			}
			out[assetID] = append(out[assetID], offer.Payment{
				PuzzleHash: chain.WrapPuzzleHash(assetID, nft.RoyaltyPuzzleHash),
				Amount:     royalty,
				Memos:      [][]byte{nft.RoyaltyPuzzleHash[:]},
			})
		}
	}
	return out, nil
}
