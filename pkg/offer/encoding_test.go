package offer_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
)

func TestBytesRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		offer func(*testing.T) *offer.Offer
	}{
		{
			name:  "with_native_offered",
			offer: makerSide,
		},
		{
			name: "with_token_offered",
			offer: func(t *testing.T) *offer.Offer {
				return takerSide(t, 90)
			},
		},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			original := tt.offer(t)
			decoded, err := offer.FromBytes(original.Bytes())
			require.NoError(t, err)
			require.True(t, original.Equal(decoded))

			// The synthetic spends must not leak into the real bundle.
			require.Equal(t,
				len(original.Bundle().CoinSpends),
				len(decoded.Bundle().CoinSpends),
			)
		})
	}
}

func TestSpendBundleFormIsOrdinary(t *testing.T) {
	maker := makerSide(t)
	sb := maker.SpendBundle()

	// One synthetic spend for the requested asset plus the real spend.
	require.Len(t, sb.CoinSpends, 2)
	require.True(t, sb.CoinSpends[0].Coin.IsEphemeral())
	require.Equal(t,
		chain.WrappedSettlementPuzzleHash(tokenAsset),
		sb.CoinSpends[0].Coin.PuzzleHash,
	)

	// Ordinary bundle byte round-trip still holds.
	decoded, err := chain.DeserializeSpendBundle(sb.Serialize())
	require.NoError(t, err)
	require.Equal(t, sb, decoded)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	maker := makerSide(t)

	text, err := maker.Encode()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(text, offer.TextHRP+"1"))

	decoded, err := offer.Decode(text)
	require.NoError(t, err)
	require.True(t, maker.Equal(decoded))

	// Case-insensitive on input.
	decoded, err = offer.Decode(strings.ToUpper(text))
	require.NoError(t, err)
	require.True(t, maker.Equal(decoded))
}

func TestEncodeWithCustomPrefix(t *testing.T) {
	maker := makerSide(t)

	text, err := maker.EncodeWithPrefix("swaptest")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(text, "swaptest1"))

	_, err = offer.Decode(text)
	require.Error(t, err)

	decoded, err := offer.DecodeWithPrefix(text, "swaptest")
	require.NoError(t, err)
	require.True(t, maker.Equal(decoded))
}

func TestDecodeFailures(t *testing.T) {
	text, err := makerSide(t).Encode()
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
	}{
		{
			name: "with_empty_text",
			text: "",
		},
		{
			name: "with_corrupted_checksum",
			text: text[:len(text)-1] + flipBech32Char(text[len(text)-1]),
		},
		{
			name: "with_wrong_prefix",
			text: "nope" + text[len(offer.TextHRP):],
		},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := offer.Decode(tt.text)
			require.Error(t, err)
		})
	}
}

func TestCompressVersionNegotiation(t *testing.T) {
	t.Run("with_native_only_scripts", func(t *testing.T) {
		coin := chain.Coin{ParentCoinInfo: b32(0x03), PuzzleHash: b32(0x0d), Amount: 70}
		bundle := chain.SpendBundle{CoinSpends: []chain.CoinSpend{{
			Coin:         coin,
			PuzzleReveal: chain.Program{0xa3},
			Solution: chain.ConditionsSolution([]chain.Condition{
				chain.CreateCoin(chain.SettlementPuzzleHash, 70, nil),
			}),
		}}}
		requested := offer.NotarizeRequested(map[chain.Bytes32][]offer.Payment{
			offer.NativeAsset: {{PuzzleHash: b32(0x0e), Amount: 70}},
		}, []chain.Coin{coin})
		o, err := offer.New(requested, bundle)
		require.NoError(t, err)

		compressed, err := o.Compress()
		require.NoError(t, err)
		// Version prefix, big-endian.
		require.Equal(t, []byte{0x00, 0x01}, compressed[:2])
	})

	t.Run("with_token_requested_scripts", func(t *testing.T) {
		// Requesting a token puts a token-wrapped settlement script into
		// the encoded form, so the dictionary negotiates up even though
		// every real spend is native.
		compressed, err := makerSide(t).Compress()
		require.NoError(t, err)
		require.Equal(t, []byte{0x00, 0x02}, compressed[:2])
	})

	t.Run("with_token_scripts", func(t *testing.T) {
		compressed, err := takerSide(t, 90).Compress()
		require.NoError(t, err)
		require.Equal(t, []byte{0x00, 0x02}, compressed[:2])
	})

	t.Run("with_unknown_version", func(t *testing.T) {
		compressed, err := makerSide(t).Compress()
		require.NoError(t, err)
		compressed[1] = 0x09
		_, err = offer.Decompress(compressed)
		require.ErrorIs(t, err, offer.ErrUnknownEncodingVersion)
	})
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	original := takerSide(t, 90)

	compressed, err := original.Compress()
	require.NoError(t, err)

	decoded, err := offer.Decompress(compressed)
	require.NoError(t, err)
	require.True(t, original.Equal(decoded))

	// The dictionary pass must actually shrink the settlement scripts.
	require.Less(t, len(compressed), len(original.Bytes()))
}

func TestSummarize(t *testing.T) {
	aggregated, err := offer.Aggregate([]*offer.Offer{makerSide(t), takerSide(t, 90)})
	require.NoError(t, err)

	summary, err := offer.Summarize(aggregated)
	require.NoError(t, err)

	requireAmount(t, summary.Offered, offer.NativeAsset, 100)
	requireAmount(t, summary.Offered, tokenAsset, 50)
	requireAmount(t, summary.Requested, offer.NativeAsset, 90)
	requireAmount(t, summary.Requested, tokenAsset, 50)
	// Pending tracks the outstanding real inputs per asset.
	requireAmount(t, summary.Pending, offer.NativeAsset, 100)
	requireAmount(t, summary.Pending, tokenAsset, 50)
}

func requireAmount(
	t *testing.T, amounts map[chain.Bytes32]decimal.Decimal,
	assetID chain.Bytes32, expected int64,
) {
	t.Helper()
	got, ok := amounts[assetID]
	require.True(t, ok)
	require.True(t, got.Equal(decimal.NewFromInt(expected)))
}

// flipBech32Char swaps the final data character for a different valid
// bech32 character so the checksum no longer matches.
func flipBech32Char(c byte) string {
	if c == 'q' {
		return "p"
	}
	return "q"
}
