package application

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/chainswap/chainswap-daemon/internal/core/domain"
	"github.com/chainswap/chainswap-daemon/internal/core/ports"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
)

// OfferResult is the outcome of offer construction or acceptance. Expected
// failures (insufficient funds, unsupported asset, stale offer) come back
// with Success=false and a human-readable reason; structural violations are
// returned as errors.
type OfferResult struct {
	Success bool
	Reason  string
	Offer   *offer.Offer
	Record  *domain.TradeRecord
}

func failedResult(reason string) *OfferResult {
	return &OfferResult{Success: false, Reason: reason}
}

// TradeManager orchestrates offer creation, counter-offer acceptance,
// cancellation and reconciliation of trades against on-chain coin events.
type TradeManager struct {
	log      log.FieldLogger
	repo     domain.TradeRepository
	wallets  ports.WalletRegistry
	chain    ports.ChainState
	drivers  ports.OuterDriverRegistry
	recorder ports.TransactionRecorder
	metrics  *Metrics

	// offerMtx serializes offer construction: coin selection is not
	// enforced exclusive by the store, so two concurrent constructions
	// could select the same coin.
	offerMtx sync.Mutex
}

// NewTradeManager wires the manager with its collaborators. The logger is
// injected, not ambient.
func NewTradeManager(
	logger log.FieldLogger,
	repo domain.TradeRepository,
	wallets ports.WalletRegistry,
	chainState ports.ChainState,
	drivers ports.OuterDriverRegistry,
	recorder ports.TransactionRecorder,
	metrics *Metrics,
) *TradeManager {
	return &TradeManager{
		log:      logger,
		repo:     repo,
		wallets:  wallets,
		chain:    chainState,
		drivers:  drivers,
		recorder: recorder,
		metrics:  metrics,
	}
}

// CreateOffer builds and persists a PENDING_ACCEPT offer from an offer map:
// negative entries are offered (spent), positive entries are requested. The
// fee is consumed exactly once across the whole multi-asset group.
func (m *TradeManager) CreateOffer(
	ctx context.Context, offerMap map[chain.Bytes32]int64, fee uint64,
) (*OfferResult, error) {
	m.offerMtx.Lock()
	defer m.offerMtx.Unlock()

	built, result, err := m.buildOfferHalf(ctx, offerMap, fee)
	if err != nil || result != nil {
		return result, err
	}

	tradeID := chain.Bytes32(sha256.Sum256(built.offer.Bytes()))
	record := &domain.TradeRecord{
		TradeID:         tradeID,
		CreatedAtTime:   uint64(time.Now().Unix()),
		IsMyOffer:       true,
		OfferBytes:      built.offer.Bytes(),
		CoinsOfInterest: built.offer.Bundle().NotEphemeralRemovals(),
		Status:          domain.StatusPendingAccept,
	}
	if err := m.repo.AddTradeRecord(ctx, record); err != nil {
		return nil, err
	}
	m.metrics.TradeCreated()
	m.log.WithField("trade_id", tradeID.Hex()).Info("offer created")

	return &OfferResult{Success: true, Offer: built.offer, Record: record}, nil
}

// builtOffer carries one side's freshly constructed half of a trade.
type builtOffer struct {
	offer     *offer.Offer
	coins     []chain.Coin
	feeAmount uint64
}

// buildOfferHalf performs the strictly two-pass construction: select the
// full coin set first, derive the nonce from it, then build the spends. No
// post-hoc patching.
func (m *TradeManager) buildOfferHalf(
	ctx context.Context, offerMap map[chain.Bytes32]int64, fee uint64,
) (*builtOffer, *OfferResult, error) {
	offered := make(map[chain.Bytes32]uint64)
	requestedAmounts := make(map[chain.Bytes32]uint64)
	for assetID, amount := range offerMap {
		switch {
		case amount < 0:
			offered[assetID] = uint64(-amount)
		case amount > 0:
			requestedAmounts[assetID] = uint64(amount)
		}
	}
	if len(offered) == 0 {
		return nil, nil, fmt.Errorf("offer map has no offered entry")
	}

	royalties, err := m.royaltyPayments(offerMap)
	if err != nil {
		return nil, nil, err
	}

	// Coins committed to live trades must not fund a second offer.
	excluded, err := m.repo.CoinIDsOfInterest(ctx, domain.NonTerminalStatuses())
	if err != nil {
		return nil, nil, err
	}

	// Pass one: resolve wallets and select every coin.
	type offeredAsset struct {
		assetID chain.Bytes32
		amount  uint64
		wallet  ports.AssetWallet
		coins   []chain.Coin
		royalty []offer.Payment
	}
	var offeredAssets []offeredAsset
	var allCoins []chain.Coin
	for _, assetID := range sortedKeys(offered) {
		amount := offered[assetID]
		wallet, ok := m.wallets.WalletForAsset(assetID)
		if !ok {
			return nil, failedResult(fmt.Sprintf(
				"%s: %s", domain.ErrUnsupportedAssetKind, assetID.Hex(),
			)), nil
		}
		need := amount
		for _, r := range royalties[assetID] {
			need += r.Amount
		}
		// The native group, when present, also fronts the fee.
		if assetID == offer.NativeAsset {
			need += fee
		}

		balance, err := wallet.ConfirmedBalance(ctx)
		if err != nil {
			return nil, nil, err
		}
		if balance < need {
			return nil, failedResult(fmt.Sprintf(
				"%s: have %d, need %d", domain.ErrInsufficientFunds, balance, need,
			)), nil
		}

		coins, err := wallet.SelectCoins(ctx, need, excluded)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return nil, failedResult(err.Error()), nil
			}
			return nil, nil, err
		}
		offeredAssets = append(offeredAssets, offeredAsset{
			assetID: assetID,
			amount:  amount,
			wallet:  wallet,
			coins:   coins,
			royalty: royalties[assetID],
		})
		allCoins = append(allCoins, coins...)
	}

	// A fee on an offer that spends no native coins is funded by a
	// separate native spend, selected now so the nonce commits to it.
	var feeCoins []chain.Coin
	if fee > 0 && offeredAssets[0].assetID != offer.NativeAsset {
		wallet := m.wallets.NativeWallet()
		balance, err := wallet.ConfirmedBalance(ctx)
		if err != nil {
			return nil, nil, err
		}
		if balance < fee {
			return nil, failedResult(fmt.Sprintf(
				"%s: have %d, need %d for fee", domain.ErrInsufficientFunds, balance, fee,
			)), nil
		}
		feeCoins, err = wallet.SelectCoins(ctx, fee, excluded)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return nil, failedResult(err.Error()), nil
			}
			return nil, nil, err
		}
		allCoins = append(allCoins, feeCoins...)
	}

	// Requested payments go to fresh self-controlled addresses so the
	// eventual proceeds are recognizable as ours.
	requested := make(map[chain.Bytes32][]offer.Payment, len(requestedAmounts))
	for _, assetID := range sortedKeys(requestedAmounts) {
		wallet, ok := m.wallets.WalletForAsset(assetID)
		if !ok {
			return nil, failedResult(fmt.Sprintf(
				"%s: %s", domain.ErrUnsupportedAssetKind, assetID.Hex(),
			)), nil
		}
		puzzleHash, err := wallet.NewPuzzleHash(ctx)
		if err != nil {
			return nil, nil, err
		}
		payment := offer.Payment{PuzzleHash: puzzleHash, Amount: requestedAmounts[assetID]}
		if assetID != offer.NativeAsset {
			payment.Memos = [][]byte{puzzleHash[:]}
		}
		requested[assetID] = []offer.Payment{payment}
	}

	// Pass two: one shared nonce domain binds the whole multi-asset offer.
	notarized := offer.NotarizeRequested(requested, allCoins)
	announcements, err := offer.CalculateAnnouncements(notarized)
	if err != nil {
		return nil, nil, err
	}

	bundles := make([]chain.SpendBundle, 0, len(offeredAssets))
	for i, oa := range offeredAssets {
		payments := []offer.Payment{{
			PuzzleHash: chain.WrappedSettlementPuzzleHash(oa.assetID),
			Amount:     oa.amount,
		}}
		payments = append(payments, oa.royalty...)
		feeForGroup := uint64(0)
		if i == 0 && len(feeCoins) == 0 {
			feeForGroup = fee
		}
		bundle, err := oa.wallet.BuildPaymentTransaction(
			ctx, payments, oa.coins, feeForGroup, announcements,
		)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return nil, failedResult(err.Error()), nil
			}
			return nil, nil, err
		}
		bundles = append(bundles, bundle)
	}
	if len(feeCoins) > 0 {
		bundle, err := m.wallets.NativeWallet().BuildPaymentTransaction(
			ctx, nil, feeCoins, fee, announcements,
		)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return nil, failedResult(err.Error()), nil
			}
			return nil, nil, err
		}
		bundles = append(bundles, bundle)
	}
	combined, err := chain.CombineSpendBundles(bundles...)
	if err != nil {
		return nil, nil, err
	}

	built, err := offer.New(notarized, combined)
	if err != nil {
		return nil, nil, err
	}
	return &builtOffer{offer: built, coins: allCoins, feeAmount: fee}, nil, nil
}

// CheckOfferValidity reports whether every non-ephemeral input of the offer
// is still unspent on chain. A spent input marks a stale offer.
func (m *TradeManager) CheckOfferValidity(
	ctx context.Context, o *offer.Offer,
) (bool, error) {
	removals := o.Bundle().NotEphemeralRemovals()
	ids := make([]chain.Bytes32, 0, len(removals))
	for _, c := range removals {
		ids = append(ids, c.ID())
	}
	states, err := m.chain.CoinStates(ctx, ids)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if state, ok := states[id]; ok && state.Spent {
			return false, nil
		}
	}
	return true, nil
}

// RespondToOffer accepts a counterparty's offer: it validates freshness,
// builds the complementary half, aggregates, settles and persists a
// PENDING_CONFIRM trade plus the derived history entries.
func (m *TradeManager) RespondToOffer(
	ctx context.Context, theirs *offer.Offer, fee uint64,
) (*OfferResult, error) {
	m.offerMtx.Lock()
	defer m.offerMtx.Unlock()

	fresh, err := m.CheckOfferValidity(ctx, theirs)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return failedResult(domain.ErrOfferAlreadySpent.Error()), nil
	}

	arbitrage, err := theirs.Arbitrage()
	if err != nil {
		return nil, err
	}
	// Their surplus is our requested side, their shortfall our offered
	// side; dropping the zero entries leaves the complementary map.
	complement := make(map[chain.Bytes32]int64, len(arbitrage))
	for assetID, amount := range arbitrage {
		if amount != 0 {
			complement[assetID] = amount
		}
	}

	if err := m.ensureWalletsFor(ctx, theirs, complement); err != nil {
		return nil, err
	}

	built, result, err := m.buildOfferHalf(ctx, complement, fee)
	if err != nil || result != nil {
		return result, err
	}

	aggregated, err := offer.Aggregate([]*offer.Offer{theirs, built.offer})
	if err != nil {
		return nil, err
	}
	valid, err := aggregated.IsValid()
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, fmt.Errorf("aggregated offer is not balanced")
	}

	leftover, err := m.wallets.NativeWallet().NewPuzzleHash(ctx)
	if err != nil {
		return nil, err
	}
	settled, err := aggregated.ToValidSpend(leftover)
	if err != nil {
		return nil, err
	}

	tradeID := settled.Name()
	now := uint64(time.Now().Unix())
	record := &domain.TradeRecord{
		TradeID:         tradeID,
		AcceptedAtTime:  now,
		CreatedAtTime:   now,
		IsMyOffer:       false,
		OfferBytes:      aggregated.Bytes(),
		TakenOfferBytes: theirs.Bytes(),
		CoinsOfInterest: settled.NotEphemeralRemovals(),
		Status:          domain.StatusPendingConfirm,
	}
	if err := m.repo.AddTradeRecord(ctx, record); err != nil {
		return nil, err
	}

	history := m.deriveHistory(settled, tradeID, fee)
	if err := m.recorder.Enqueue(ctx, history); err != nil {
		return nil, err
	}
	m.metrics.TradeAccepted()
	m.log.WithField("trade_id", tradeID.Hex()).Info("offer accepted, settlement broadcast")

	return &OfferResult{Success: true, Offer: aggregated, Record: record}, nil
}

// ensureWalletsFor creates local wallets for asset kinds referenced by the
// incoming offer that this wallet has never seen.
func (m *TradeManager) ensureWalletsFor(
	ctx context.Context, theirs *offer.Offer, complement map[chain.Bytes32]int64,
) error {
	for assetID := range complement {
		if assetID == offer.NativeAsset {
			continue
		}
		if _, ok := m.wallets.WalletForAsset(assetID); ok {
			continue
		}
		descriptor, found := m.descriptorFromBundle(theirs, assetID)
		if !found {
			return fmt.Errorf("%w: asset %s", ports.ErrUnknownAssetKind, assetID.Hex())
		}
		if _, err := m.wallets.CreateAssetWallet(ctx, descriptor); err != nil {
			return err
		}
		m.log.WithField("asset_id", assetID.Hex()).Info("created wallet for incoming asset")
	}
	return nil
}

func (m *TradeManager) descriptorFromBundle(
	o *offer.Offer, assetID chain.Bytes32,
) (ports.AssetDescriptor, bool) {
	for _, cs := range o.Bundle().CoinSpends {
		descriptor, ok := m.drivers.DescriptorForPuzzle(cs.PuzzleReveal)
		if ok && descriptor.AssetID() == assetID {
			return descriptor, true
		}
	}
	return nil, false
}

func sortedKeys[V any](m map[chain.Bytes32]V) []chain.Bytes32 {
	ids := make([]chain.Bytes32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}
