package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chainswap/chainswap-daemon/internal/core/domain"
	"github.com/chainswap/chainswap-daemon/internal/core/ports"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
)

// Cancel soft-cancels a trade: it is marked CANCELLED locally with no
// on-chain action. Only safe while no counterparty can still redeem the
// original offer.
func (m *TradeManager) Cancel(ctx context.Context, tradeID chain.Bytes32) error {
	record, err := m.repo.GetTradeRecord(ctx, tradeID)
	if err != nil {
		return err
	}
	if record.Status.IsTerminal() {
		return domain.ErrTradeTerminal
	}
	if err := m.repo.SetStatus(ctx, tradeID, domain.StatusCancelled, 0); err != nil {
		return err
	}
	m.metrics.TradeCancelled()
	m.log.WithField("trade_id", tradeID.Hex()).Info("trade cancelled")
	return nil
}

// CancelSafely securely cancels a trade by spending every root coin the
// offer committed back to freshly derived self-owned addresses. The fee is
// reserved once, in the offer's own native group when it has one, otherwise
// through a separate native spend. The competing transaction is enqueued
// for broadcast and the trade stays PENDING_CANCEL until it is observed
// confirmed, which also invalidates the original offer.
func (m *TradeManager) CancelSafely(
	ctx context.Context, tradeID chain.Bytes32, fee uint64,
) error {
	m.offerMtx.Lock()
	defer m.offerMtx.Unlock()

	record, err := m.repo.GetTradeRecord(ctx, tradeID)
	if err != nil {
		return err
	}
	if record.Status.IsTerminal() {
		return domain.ErrTradeTerminal
	}
	o, err := offer.FromBytes(record.OfferBytes)
	if err != nil {
		return fmt.Errorf("decoding stored offer: %w", err)
	}

	coinsByAsset := bucketCoinsByAsset(o.Bundle())
	_, feeFromOwnGroup := coinsByAsset[offer.NativeAsset]

	var bundles []chain.SpendBundle
	var history []ports.TxRecord
	for _, assetID := range sortedKeys(coinsByAsset) {
		coins := coinsByAsset[assetID]
		wallet, ok := m.wallets.WalletForAsset(assetID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedAssetKind, assetID.Hex())
		}
		selfPuzzleHash, err := wallet.NewPuzzleHash(ctx)
		if err != nil {
			return err
		}
		var total uint64
		for _, c := range coins {
			total += c.Amount
		}
		groupFee := uint64(0)
		if feeFromOwnGroup && assetID == offer.NativeAsset {
			groupFee = fee
		}
		amount := total
		if groupFee > 0 {
			if groupFee > amount {
				return fmt.Errorf("fee %d exceeds cancellable amount %d", groupFee, amount)
			}
			amount -= groupFee
		}
		bundle, err := wallet.BuildPaymentTransaction(
			ctx,
			[]offer.Payment{{
				PuzzleHash: chain.WrapPuzzleHash(assetID, selfPuzzleHash),
				Amount:     amount,
			}},
			coins, groupFee, nil,
		)
		if err != nil {
			return err
		}
		bundles = append(bundles, bundle)

		history = append(history, ports.TxRecord{
			ID:         uuid.New(),
			AssetID:    assetID,
			Type:       ports.TxOutgoingPayment,
			Amount:     total,
			TradeID:    tradeID,
			PuzzleHash: selfPuzzleHash,
		})
		if groupFee > 0 {
			history = append(history, ports.TxRecord{
				ID:      uuid.New(),
				AssetID: offer.NativeAsset,
				Type:    ports.TxFeeReservation,
				Amount:  groupFee,
				TradeID: tradeID,
			})
		}
		history = append(history, ports.TxRecord{
			ID:         uuid.New(),
			AssetID:    assetID,
			Type:       ports.TxIncomingPayment,
			Amount:     amount,
			TradeID:    tradeID,
			PuzzleHash: selfPuzzleHash,
		})
	}

	// An offer with no native coins still owes a native fee: fund it with
	// its own spend so the competing transaction stays valid.
	if fee > 0 && !feeFromOwnGroup {
		wallet := m.wallets.NativeWallet()
		excluded, err := m.repo.CoinIDsOfInterest(ctx, domain.NonTerminalStatuses())
		if err != nil {
			return err
		}
		feeCoins, err := wallet.SelectCoins(ctx, fee, excluded)
		if err != nil {
			return err
		}
		bundle, err := wallet.BuildPaymentTransaction(ctx, nil, feeCoins, fee, nil)
		if err != nil {
			return err
		}
		bundles = append(bundles, bundle)
		history = append(history, ports.TxRecord{
			ID:      uuid.New(),
			AssetID: offer.NativeAsset,
			Type:    ports.TxFeeReservation,
			Amount:  fee,
			TradeID: tradeID,
		})
	}

	competing, err := chain.CombineSpendBundles(bundles...)
	if err != nil {
		return err
	}
	history = append(history, ports.TxRecord{
		ID:          uuid.New(),
		AssetID:     offer.NativeAsset,
		Type:        ports.TxBroadcast,
		Amount:      0,
		TradeID:     tradeID,
		SpendBundle: competing.Serialize(),
	})

	if err := m.recorder.Enqueue(ctx, history); err != nil {
		return err
	}
	if err := m.repo.SetStatus(ctx, tradeID, domain.StatusPendingCancel, 0); err != nil {
		return err
	}
	m.log.WithFields(map[string]interface{}{
		"trade_id": tradeID.Hex(),
		"fee":      fee,
	}).Info("secure cancellation broadcast")
	return nil
}

// CoinsOfInterestFarmed reconciles trades watching a just-spent coin into
// their terminal outcome. If the settlement outputs descending from our own
// offered coins were spent, someone redeemed the trade and it is CONFIRMED;
// otherwise a pending cancel becomes CANCELLED and anything else FAILED,
// discarding its pending history entries.
func (m *TradeManager) CoinsOfInterestFarmed(
	ctx context.Context, event ports.CoinSpentEvent,
) error {
	records, err := m.repo.GetTradeRecordsByCoinID(ctx, event.CoinID)
	if err != nil {
		return err
	}
	for _, record := range records {
		if record.Status.IsTerminal() {
			continue
		}
		logger := m.log.WithField("trade_id", record.TradeID.Hex())

		o, err := offer.FromBytes(record.OfferBytes)
		if err != nil {
			return fmt.Errorf("decoding stored offer: %w", err)
		}
		redeemed, err := m.settlementOutputsSpent(ctx, o)
		if err != nil {
			return err
		}

		switch {
		case redeemed:
			if err := m.repo.SetStatus(
				ctx, record.TradeID, domain.StatusConfirmed, event.Height,
			); err != nil {
				return err
			}
			m.metrics.TradeConfirmed()
			logger.WithField("height", event.Height).Info("trade confirmed")
		case record.Status == domain.StatusPendingCancel:
			if err := m.repo.SetStatus(
				ctx, record.TradeID, domain.StatusCancelled, event.Height,
			); err != nil {
				return err
			}
			m.metrics.TradeCancelled()
			logger.Info("secure cancellation confirmed")
		default:
			if err := m.repo.SetStatus(
				ctx, record.TradeID, domain.StatusFailed, event.Height,
			); err != nil {
				return err
			}
			if err := m.recorder.DiscardByTrade(ctx, record.TradeID); err != nil {
				return err
			}
			m.metrics.TradeFailed()
			logger.Warn("trade lost on-chain race")
		}
	}
	return nil
}

// settlementOutputsSpent reports whether any settlement output descending
// from the offer's own coins has been spent on chain.
func (m *TradeManager) settlementOutputsSpent(
	ctx context.Context, o *offer.Offer,
) (bool, error) {
	offered, err := o.OfferedCoins()
	if err != nil {
		return false, err
	}
	var ids []chain.Bytes32
	for _, coins := range offered {
		for _, c := range coins {
			ids = append(ids, c.ID())
		}
	}
	if len(ids) == 0 {
		return false, nil
	}
	states, err := m.chain.CoinStates(ctx, ids)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if state, ok := states[id]; ok && state.Spent {
			return true, nil
		}
	}
	return false, nil
}

// GetCoinsOfInterest returns the coin ids every non-terminal trade watches,
// for scoping chain-event subscriptions and excluding those coins from
// unrelated coin selection.
func (m *TradeManager) GetCoinsOfInterest(ctx context.Context) ([]chain.Bytes32, error) {
	return m.repo.CoinIDsOfInterest(ctx, domain.NonTerminalStatuses())
}

// GetTradesBetween pages through stored trades.
func (m *TradeManager) GetTradesBetween(
	ctx context.Context, query domain.TradesBetweenQuery,
) ([]*domain.TradeRecord, error) {
	return m.repo.GetTradesBetween(ctx, query)
}

// bucketCoinsByAsset groups a bundle's non-ephemeral inputs by the asset of
// their revealed script.
func bucketCoinsByAsset(sb chain.SpendBundle) map[chain.Bytes32][]chain.Coin {
	out := make(map[chain.Bytes32][]chain.Coin)
	for _, cs := range sb.CoinSpends {
		if cs.Coin.IsEphemeral() {
			continue
		}
		assetID := offer.NativeAsset
		if id, _, ok := chain.MatchTokenPuzzle(cs.PuzzleReveal); ok {
			assetID = id
		}
		out[assetID] = append(out[assetID], cs.Coin)
	}
	return out
}
