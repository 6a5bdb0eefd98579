package offer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
)

func TestToValidSpendFailsWhenNotBalanced(t *testing.T) {
	_, err := makerSide(t).ToValidSpend(b32(0x0f))
	require.ErrorIs(t, err, offer.ErrNotBalanced)
}

func TestToValidSpend(t *testing.T) {
	maker, taker := makerSide(t), takerSide(t, 90)
	aggregated, err := offer.Aggregate([]*offer.Offer{maker, taker})
	require.NoError(t, err)

	leftoverPH := b32(0x0f)
	settled, err := aggregated.ToValidSpend(leftoverPH)
	require.NoError(t, err)

	// Two wallet spends plus one settlement spend per offered coin.
	require.Len(t, settled.CoinSpends, 4)

	nativeSettlement := settlementSpendsOf(t, settled, offer.NativeAsset)
	require.Len(t, nativeSettlement, 1)
	tokenSettlement := settlementSpendsOf(t, settled, tokenAsset)
	require.Len(t, tokenSettlement, 1)

	// The native settlement coin pays the taker's request plus the
	// arbitrage leftover, nonced with its own id.
	groups, err := offer.ParseSettlementGroups(nativeSettlement[0].Solution)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, uint64(90), groups[0].Payments[0].Amount)
	require.Equal(t, nativeSettlement[0].Coin.ID(), groups[1].Nonce)
	require.Equal(t, []offer.Payment{{PuzzleHash: leftoverPH, Amount: 10}}, groups[1].Payments)

	// The token settlement coin pays exactly the maker's request.
	groups, err = offer.ParseSettlementGroups(tokenSettlement[0].Solution)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, []offer.Payment{{PuzzleHash: b32(0x0b), Amount: 50}}, groups[0].Payments)

	// Value is conserved: settlement payments per asset equal the
	// offered amounts.
	offered, err := aggregated.OfferedAmounts()
	require.NoError(t, err)
	require.Equal(t, offered[offer.NativeAsset], paymentTotal(t, nativeSettlement))
	require.Equal(t, offered[tokenAsset], paymentTotal(t, tokenSettlement))
}

func TestToValidSpendRingContinuity(t *testing.T) {
	// One party offers the token split across two coins; the counterparty
	// offers the native side.
	inner := chain.Program{0xc3}
	tokenCoinA := chain.Coin{
		ParentCoinInfo: b32(0x03),
		PuzzleHash:     chain.WrapPuzzleHash(tokenAsset, inner.Hash()),
		Amount:         30,
	}
	tokenCoinB := chain.Coin{
		ParentCoinInfo: b32(0x04),
		PuzzleHash:     chain.WrapPuzzleHash(tokenAsset, inner.Hash()),
		Amount:         20,
	}
	tokenBundle := chain.SpendBundle{CoinSpends: []chain.CoinSpend{
		{
			Coin:         tokenCoinA,
			PuzzleReveal: chain.WrapTokenPuzzle(tokenAsset, inner),
			Solution: chain.ConditionsSolution([]chain.Condition{
				chain.CreateCoin(chain.WrappedSettlementPuzzleHash(tokenAsset), 30, nil),
			}),
		},
		{
			Coin:         tokenCoinB,
			PuzzleReveal: chain.WrapTokenPuzzle(tokenAsset, inner),
			Solution: chain.ConditionsSolution([]chain.Condition{
				chain.CreateCoin(chain.WrappedSettlementPuzzleHash(tokenAsset), 20, nil),
			}),
		},
	}}
	tokenSide, err := offer.New(offer.NotarizeRequested(
		map[chain.Bytes32][]offer.Payment{
			offer.NativeAsset: {{PuzzleHash: b32(0x0c), Amount: 100}},
		},
		[]chain.Coin{tokenCoinA, tokenCoinB},
	), tokenBundle)
	require.NoError(t, err)

	nativeCoin := chain.Coin{ParentCoinInfo: b32(0x05), PuzzleHash: b32(0x0a), Amount: 100}
	nativeBundle := chain.SpendBundle{CoinSpends: []chain.CoinSpend{{
		Coin:         nativeCoin,
		PuzzleReveal: chain.Program{0xa1},
		Solution: chain.ConditionsSolution([]chain.Condition{
			chain.CreateCoin(chain.SettlementPuzzleHash, 100, nil),
		}),
	}}}
	nativeSide, err := offer.New(offer.NotarizeRequested(
		map[chain.Bytes32][]offer.Payment{
			tokenAsset: {{PuzzleHash: b32(0x0b), Amount: 50}},
		},
		[]chain.Coin{nativeCoin},
	), nativeBundle)
	require.NoError(t, err)

	aggregated, err := offer.Aggregate([]*offer.Offer{tokenSide, nativeSide})
	require.NoError(t, err)

	settled, err := aggregated.ToValidSpend(b32(0x0f))
	require.NoError(t, err)

	tokenSettlement := settlementSpendsOf(t, settled, tokenAsset)
	require.Len(t, tokenSettlement, 2)

	// The first token settlement coin carries the requested payments; the
	// second passes its own value through to keep the ring balanced.
	groups, err := offer.ParseSettlementGroups(tokenSettlement[0].Solution)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, uint64(50), groups[0].Payments[0].Amount)

	continuity, err := offer.ParseSettlementGroups(tokenSettlement[1].Solution)
	require.NoError(t, err)
	require.Len(t, continuity, 1)
	require.Equal(t, tokenSettlement[1].Coin.ID(), continuity[0].Nonce)
	require.Equal(t, []offer.Payment{{
		PuzzleHash: chain.SettlementPuzzleHash,
		Amount:     tokenSettlement[1].Coin.Amount,
	}}, continuity[0].Payments)

	// Only the first ring member emits the real outputs.
	require.Equal(t, uint64(50), paymentTotal(t, tokenSettlement[:1]))
}

// settlementSpendsOf returns the settlement spends of the given asset, in
// bundle order.
func settlementSpendsOf(
	t *testing.T, sb chain.SpendBundle, assetID chain.Bytes32,
) []chain.CoinSpend {
	t.Helper()

	var out []chain.CoinSpend
	for _, cs := range sb.CoinSpends {
		if !chain.IsSettlementSolution(cs.Solution) {
			continue
		}
		if cs.Coin.PuzzleHash == chain.WrappedSettlementPuzzleHash(assetID) {
			out = append(out, cs)
		}
	}
	return out
}

func paymentTotal(t *testing.T, spends []chain.CoinSpend) uint64 {
	t.Helper()

	var total uint64
	for _, cs := range spends {
		groups, err := offer.ParseSettlementGroups(cs.Solution)
		require.NoError(t, err)
		for _, g := range groups {
			for _, p := range g.Payments {
				total += p.Amount
			}
		}
	}
	return total
}
