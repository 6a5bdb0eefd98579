package offer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
)

var tokenAsset = b32(0x70)

// makerSide offers 100 native and requests 50 of the token.
func makerSide(t *testing.T) *offer.Offer {
	t.Helper()

	coin := chain.Coin{ParentCoinInfo: b32(0x01), PuzzleHash: b32(0x0a), Amount: 100}
	bundle := chain.SpendBundle{CoinSpends: []chain.CoinSpend{{
		Coin:         coin,
		PuzzleReveal: chain.Program{0xa1},
		Solution: chain.ConditionsSolution([]chain.Condition{
			chain.CreateCoin(chain.SettlementPuzzleHash, 100, nil),
		}),
	}}}
	requested := offer.NotarizeRequested(map[chain.Bytes32][]offer.Payment{
		tokenAsset: {{PuzzleHash: b32(0x0b), Amount: 50}},
	}, []chain.Coin{coin})

	o, err := offer.New(requested, bundle)
	require.NoError(t, err)
	return o
}

// takerSide offers 50 of the token and requests requestedNative native.
func takerSide(t *testing.T, requestedNative uint64) *offer.Offer {
	t.Helper()

	inner := chain.Program{0xb2}
	coin := chain.Coin{
		ParentCoinInfo: b32(0x02),
		PuzzleHash:     chain.WrapPuzzleHash(tokenAsset, inner.Hash()),
		Amount:         50,
	}
	bundle := chain.SpendBundle{CoinSpends: []chain.CoinSpend{{
		Coin:         coin,
		PuzzleReveal: chain.WrapTokenPuzzle(tokenAsset, inner),
		Solution: chain.ConditionsSolution([]chain.Condition{
			chain.CreateCoin(chain.WrappedSettlementPuzzleHash(tokenAsset), 50, nil),
		}),
	}}}
	requested := offer.NotarizeRequested(map[chain.Bytes32][]offer.Payment{
		offer.NativeAsset: {{PuzzleHash: b32(0x0c), Amount: requestedNative}},
	}, []chain.Coin{coin})

	o, err := offer.New(requested, bundle)
	require.NoError(t, err)
	return o
}

func TestNewFailures(t *testing.T) {
	t.Run("with_no_settlement_output", func(t *testing.T) {
		coin := chain.Coin{ParentCoinInfo: b32(0x01), PuzzleHash: b32(0x0a), Amount: 100}
		bundle := chain.SpendBundle{CoinSpends: []chain.CoinSpend{{
			Coin:         coin,
			PuzzleReveal: chain.Program{0xa1},
			Solution: chain.ConditionsSolution([]chain.Condition{
				chain.CreateCoin(b32(0x0d), 100, nil),
			}),
		}}}
		_, err := offer.New(nil, bundle)
		require.ErrorIs(t, err, offer.ErrEmptyOffer)
	})

	t.Run("with_duplicate_notarized_payment", func(t *testing.T) {
		base := makerSide(t)
		requested := base.Requested()
		requested[tokenAsset] = append(requested[tokenAsset], requested[tokenAsset][0])
		_, err := offer.New(requested, base.Bundle())
		require.ErrorIs(t, err, offer.ErrDuplicateNotarizedPayment)
	})
}

func TestOfferAmounts(t *testing.T) {
	maker := makerSide(t)

	offered, err := maker.OfferedAmounts()
	require.NoError(t, err)
	require.Equal(t, map[chain.Bytes32]uint64{offer.NativeAsset: 100}, offered)

	require.Equal(t,
		map[chain.Bytes32]uint64{tokenAsset: 50}, maker.RequestedAmounts(),
	)

	arbitrage, err := maker.Arbitrage()
	require.NoError(t, err)
	require.Equal(t, map[chain.Bytes32]int64{
		offer.NativeAsset: 100,
		tokenAsset:        -50,
	}, arbitrage)

	// A one-sided offer is not balanced on its own.
	valid, err := maker.IsValid()
	require.NoError(t, err)
	require.False(t, valid)
}

func TestAggregate(t *testing.T) {
	t.Run("with_complementary_offers", func(t *testing.T) {
		maker, taker := makerSide(t), takerSide(t, 90)

		aggregated, err := offer.Aggregate([]*offer.Offer{maker, taker})
		require.NoError(t, err)

		arbitrage, err := aggregated.Arbitrage()
		require.NoError(t, err)
		require.Equal(t, map[chain.Bytes32]int64{
			offer.NativeAsset: 10,
			tokenAsset:        0,
		}, arbitrage)

		valid, err := aggregated.IsValid()
		require.NoError(t, err)
		require.True(t, valid)
	})

	t.Run("with_overlapping_inputs", func(t *testing.T) {
		maker := makerSide(t)
		_, err := offer.Aggregate([]*offer.Offer{maker, makerSide(t)})
		require.ErrorIs(t, err, offer.ErrOverlappingInputs)
	})

	t.Run("with_requested_short_of_offered", func(t *testing.T) {
		// The taker asks for more native than the maker offers.
		aggregated, err := offer.Aggregate([]*offer.Offer{makerSide(t), takerSide(t, 110)})
		require.NoError(t, err)

		valid, err := aggregated.IsValid()
		require.NoError(t, err)
		require.False(t, valid)
	})
}

func TestNotarizeRequestedIsOrderInsensitive(t *testing.T) {
	coins := []chain.Coin{
		{ParentCoinInfo: b32(0x01), PuzzleHash: b32(0x0a), Amount: 1},
		{ParentCoinInfo: b32(0x02), PuzzleHash: b32(0x0b), Amount: 2},
		{ParentCoinInfo: b32(0x03), PuzzleHash: b32(0x0c), Amount: 3},
	}
	reversed := []chain.Coin{coins[2], coins[1], coins[0]}

	require.Equal(t, offer.NonceForCoins(coins), offer.NonceForCoins(reversed))

	requested := map[chain.Bytes32][]offer.Payment{
		tokenAsset: {{PuzzleHash: b32(0x0d), Amount: 10}},
	}
	a := offer.NotarizeRequested(requested, coins)
	b := offer.NotarizeRequested(requested, reversed)
	require.Equal(t, a, b)
	require.Equal(t, offer.NonceForCoins(coins), a[tokenAsset][0].Nonce)
}

func TestCalculateAnnouncements(t *testing.T) {
	coin := chain.Coin{ParentCoinInfo: b32(0x01), PuzzleHash: b32(0x0a), Amount: 1}
	notarized := offer.NotarizeRequested(map[chain.Bytes32][]offer.Payment{
		offer.NativeAsset: {{PuzzleHash: b32(0x0b), Amount: 5}},
		tokenAsset:        {{PuzzleHash: b32(0x0c), Amount: 7}},
	}, []chain.Coin{coin})

	announcements, err := offer.CalculateAnnouncements(notarized)
	require.NoError(t, err)
	require.Len(t, announcements, 2)

	// One announcement per asset, origin pinned to the asset's wrapped
	// settlement hash, in sorted asset order.
	require.Equal(t, chain.SettlementPuzzleHash, announcements[0].OriginInfo)
	require.Equal(t,
		chain.WrappedSettlementPuzzleHash(tokenAsset), announcements[1].OriginInfo,
	)

	// Same inputs, same announcements.
	again, err := offer.CalculateAnnouncements(notarized)
	require.NoError(t, err)
	require.Equal(t, announcements, again)
}

func b32(fill byte) chain.Bytes32 {
	var out chain.Bytes32
	for i := range out {
		out[i] = fill
	}
	return out
}
