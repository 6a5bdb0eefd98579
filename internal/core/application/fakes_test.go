package application_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainswap/chainswap-daemon/internal/core/domain"
	"github.com/chainswap/chainswap-daemon/internal/core/ports"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
)

// fakeWallet is an in-memory AssetWallet whose transactions carry the real
// wire shapes: revealed outer layers, settlement outputs, change, fee
// reservation and announcement assertions.
type fakeWallet struct {
	descriptor ports.AssetDescriptor
	inner      chain.Program
	reveal     chain.Program
	coins      []chain.Coin
	owned      map[chain.Bytes32]bool
	deriveSeq  byte
}

func newFakeWallet(
	descriptor ports.AssetDescriptor, seed byte, amounts ...uint64,
) *fakeWallet {
	inner := chain.Program{0xf0, seed}
	w := &fakeWallet{
		descriptor: descriptor,
		inner:      inner,
		reveal:     inner,
		owned:      make(map[chain.Bytes32]bool),
	}
	assetID := descriptor.AssetID()
	switch d := descriptor.(type) {
	case ports.NFTDescriptor:
		w.reveal = chain.WrapTokenPuzzle(
			assetID,
			chain.WrapNFTStatePuzzle(d.RoyaltyPuzzleHash, d.RoyaltyBasisPoints, inner),
		)
	case ports.TokenDescriptor:
		w.reveal = chain.WrapTokenPuzzle(assetID, inner)
	}

	puzzleHash := chain.PuzzleHashOf(w.reveal)
	w.owned[inner.Hash()] = true
	w.owned[puzzleHash] = true
	if _, unwrapped, ok := chain.MatchTokenPuzzle(w.reveal); ok {
		w.owned[unwrapped.Hash()] = true
	}

	for i, amount := range amounts {
		parent := sha256.Sum256([]byte{0xc0, seed, byte(i)})
		w.coins = append(w.coins, chain.Coin{
			ParentCoinInfo: chain.Bytes32(parent),
			PuzzleHash:     puzzleHash,
			Amount:         amount,
		})
	}
	return w
}

func (w *fakeWallet) Descriptor() ports.AssetDescriptor { return w.descriptor }

func (w *fakeWallet) ConfirmedBalance(context.Context) (uint64, error) {
	var total uint64
	for _, c := range w.coins {
		total += c.Amount
	}
	return total, nil
}

func (w *fakeWallet) SelectCoins(
	_ context.Context, amount uint64, exclude []chain.Bytes32,
) ([]chain.Coin, error) {
	excluded := make(map[chain.Bytes32]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}
	var selected []chain.Coin
	var total uint64
	for _, c := range w.coins {
		if _, skip := excluded[c.ID()]; skip {
			continue
		}
		selected = append(selected, c)
		total += c.Amount
		if total >= amount {
			return selected, nil
		}
	}
	return nil, fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientFunds, total, amount)
}

func (w *fakeWallet) NewPuzzleHash(context.Context) (chain.Bytes32, error) {
	w.deriveSeq++
	h := chain.Bytes32(sha256.Sum256(append(w.inner, w.deriveSeq)))
	w.owned[h] = true
	w.owned[chain.WrapPuzzleHash(w.descriptor.AssetID(), h)] = true
	return h, nil
}

func (w *fakeWallet) BuildPaymentTransaction(
	ctx context.Context,
	payments []offer.Payment,
	coins []chain.Coin,
	fee uint64,
	announcements []chain.Announcement,
) (chain.SpendBundle, error) {
	var totalIn, totalOut uint64
	for _, c := range coins {
		totalIn += c.Amount
	}
	for _, p := range payments {
		totalOut += p.Amount
	}
	if totalIn < totalOut+fee {
		return chain.SpendBundle{}, domain.ErrInsufficientFunds
	}

	conditions := make([]chain.Condition, 0, len(payments)+len(announcements)+2)
	for _, p := range payments {
		conditions = append(conditions, chain.CreateCoin(p.PuzzleHash, p.Amount, p.Memos))
	}
	if change := totalIn - totalOut - fee; change > 0 {
		changeInner, err := w.NewPuzzleHash(ctx)
		if err != nil {
			return chain.SpendBundle{}, err
		}
		conditions = append(conditions, chain.CreateCoin(
			chain.WrapPuzzleHash(w.descriptor.AssetID(), changeInner), change, nil,
		))
	}
	if fee > 0 {
		conditions = append(conditions, chain.ReserveFee(fee))
	}
	for _, a := range announcements {
		conditions = append(conditions, chain.AssertPuzzleAnnouncement(a.ID()))
	}

	spends := make([]chain.CoinSpend, 0, len(coins))
	for i, c := range coins {
		solution := chain.ConditionsSolution(nil)
		if i == 0 {
			solution = chain.ConditionsSolution(conditions)
		}
		spends = append(spends, chain.CoinSpend{
			Coin:         c,
			PuzzleReveal: w.reveal,
			Solution:     solution,
		})
	}
	return chain.SpendBundle{CoinSpends: spends}, nil
}

func (w *fakeWallet) Owns(puzzleHash chain.Bytes32) bool { return w.owned[puzzleHash] }

func (w *fakeWallet) ToLocalAddress(puzzleHash chain.Bytes32) (string, error) {
	return hex.EncodeToString(puzzleHash[:]), nil
}

// fakeRegistry keeps wallets in registration order so derived history is
// deterministic across runs.
type fakeRegistry struct {
	order    []chain.Bytes32
	wallets  map[chain.Bytes32]*fakeWallet
	nextSeed byte
}

func newFakeRegistry(wallets ...*fakeWallet) *fakeRegistry {
	r := &fakeRegistry{
		wallets:  make(map[chain.Bytes32]*fakeWallet),
		nextSeed: 0x80,
	}
	for _, w := range wallets {
		r.register(w)
	}
	return r
}

func (r *fakeRegistry) register(w *fakeWallet) {
	assetID := w.descriptor.AssetID()
	r.order = append(r.order, assetID)
	r.wallets[assetID] = w
}

func (r *fakeRegistry) NativeWallet() ports.AssetWallet {
	return r.wallets[offer.NativeAsset]
}

func (r *fakeRegistry) WalletForAsset(assetID chain.Bytes32) (ports.AssetWallet, bool) {
	w, ok := r.wallets[assetID]
	return w, ok
}

func (r *fakeRegistry) CreateAssetWallet(
	_ context.Context, descriptor ports.AssetDescriptor,
) (ports.AssetWallet, error) {
	w := newFakeWallet(descriptor, r.nextSeed)
	r.nextSeed++
	r.register(w)
	return w, nil
}

func (r *fakeRegistry) Wallets() []ports.AssetWallet {
	out := make([]ports.AssetWallet, 0, len(r.order))
	for _, assetID := range r.order {
		out = append(out, r.wallets[assetID])
	}
	return out
}

// fakeChainState answers coin queries from a static spent set.
type fakeChainState struct {
	mu    sync.Mutex
	spent map[chain.Bytes32]uint32
}

func newFakeChainState() *fakeChainState {
	return &fakeChainState{spent: make(map[chain.Bytes32]uint32)}
}

func (s *fakeChainState) markSpent(coinID chain.Bytes32, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spent[coinID] = height
}

func (s *fakeChainState) CoinStates(
	_ context.Context, coinIDs []chain.Bytes32,
) (map[chain.Bytes32]ports.CoinState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[chain.Bytes32]ports.CoinState, len(coinIDs))
	for _, id := range coinIDs {
		state := ports.CoinState{CoinID: id}
		if height, ok := s.spent[id]; ok {
			state.Spent = true
			state.SpentHeight = height
		}
		out[id] = state
	}
	return out, nil
}

// fakeRecorder collects enqueued history entries.
type fakeRecorder struct {
	mu        sync.Mutex
	records   []ports.TxRecord
	discarded []chain.Bytes32
}

func (r *fakeRecorder) Enqueue(_ context.Context, records []ports.TxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}

func (r *fakeRecorder) DiscardByTrade(_ context.Context, tradeID chain.Bytes32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.TradeID != tradeID {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	r.discarded = append(r.discarded, tradeID)
	return nil
}

// offeredCoinIDs returns the settlement-output coin ids of a stored offer,
// the coins whose spending marks the trade redeemed.
func offeredCoinIDs(t *testing.T, offerBytes []byte) []chain.Bytes32 {
	t.Helper()
	o, err := offer.FromBytes(offerBytes)
	require.NoError(t, err)
	offered, err := o.OfferedCoins()
	require.NoError(t, err)
	var out []chain.Bytes32
	for _, coins := range offered {
		for _, c := range coins {
			out = append(out, c.ID())
		}
	}
	return out
}

func (r *fakeRecorder) byType(t ports.TxRecordType) []ports.TxRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.TxRecord
	for _, rec := range r.records {
		if rec.Type == t {
			out = append(out, rec)
		}
	}
	return out
}
