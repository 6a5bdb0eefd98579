package application

import (
	"github.com/google/uuid"

	"github.com/chainswap/chainswap-daemon/internal/core/ports"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
)

// deriveHistory buckets the settled transaction's flows by owning local
// wallet. Settlement payments routed to a local address become incoming
// entries; a wallet's own spent coins, net of its change, become one
// outgoing entry; the fee and the zero-amount broadcast record carrying the
// full settled transaction round it out.
func (m *TradeManager) deriveHistory(
	settled chain.SpendBundle, tradeID chain.Bytes32, fee uint64,
) []ports.TxRecord {
	var records []ports.TxRecord

	for _, wallet := range m.wallets.Wallets() {
		assetID := wallet.Descriptor().AssetID()

		// Settlement payments routed to this wallet.
		for _, cs := range settled.CoinSpends {
			if !chain.IsSettlementSolution(cs.Solution) {
				continue
			}
			for _, payment := range settlementPayments(cs.Solution) {
				if !wallet.Owns(payment.PuzzleHash) {
					continue
				}
				records = append(records, ports.TxRecord{
					ID:         uuid.New(),
					AssetID:    assetID,
					Type:       ports.TxIncomingPayment,
					Amount:     payment.Amount,
					PuzzleHash: payment.PuzzleHash,
					TradeID:    tradeID,
				})
			}
		}

		// This wallet's own coins leaving, net of change coming back.
		var spent, change uint64
		for _, cs := range settled.CoinSpends {
			if cs.Coin.IsEphemeral() || chain.IsSettlementSolution(cs.Solution) {
				continue
			}
			if wallet.Owns(innerPuzzleHash(cs.Coin.PuzzleHash, cs.PuzzleReveal)) {
				spent += cs.Coin.Amount
			}
			additions, err := cs.Additions()
			if err != nil {
				continue
			}
			for _, created := range additions {
				if wallet.Owns(created.Coin.PuzzleHash) {
					change += created.Coin.Amount
				}
			}
		}
		if spent > change {
			records = append(records, ports.TxRecord{
				ID:      uuid.New(),
				AssetID: assetID,
				Type:    ports.TxOutgoingPayment,
				Amount:  spent - change,
				TradeID: tradeID,
			})
		}
	}

	if fee > 0 {
		records = append(records, ports.TxRecord{
			ID:      uuid.New(),
			AssetID: offer.NativeAsset,
			Type:    ports.TxFeeReservation,
			Amount:  fee,
			TradeID: tradeID,
		})
	}

	// Zero-amount broadcast record carrying the settled transaction.
	records = append(records, ports.TxRecord{
		ID:          uuid.New(),
		AssetID:     offer.NativeAsset,
		Type:        ports.TxBroadcast,
		Amount:      0,
		TradeID:     tradeID,
		SpendBundle: settled.Serialize(),
	})
	return records
}

// settlementPayments flattens the payments of a settlement solution,
// skipping unparseable ones.
func settlementPayments(solution chain.Program) []offer.Payment {
	groups, err := offer.ParseSettlementGroups(solution)
	if err != nil {
		return nil
	}
	var out []offer.Payment
	for _, g := range groups {
		out = append(out, g.Payments...)
	}
	return out
}

// innerPuzzleHash maps a coin's on-chain puzzle hash back to the inner hash
// wallets recognize, by unwrapping the token layer of the revealed script.
func innerPuzzleHash(puzzleHash chain.Bytes32, reveal chain.Program) chain.Bytes32 {
	if _, inner, ok := chain.MatchTokenPuzzle(reveal); ok {
		return inner.Hash()
	}
	return puzzleHash
}
