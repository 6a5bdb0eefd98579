package chain_test

import (
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/stretchr/testify/require"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

func testBundle() chain.SpendBundle {
	spender := chain.Coin{ParentCoinInfo: b32(0x01), PuzzleHash: b32(0x02), Amount: 100}
	ephemeral := chain.Coin{PuzzleHash: b32(0x03), Amount: 0}
	return chain.SpendBundle{
		CoinSpends: []chain.CoinSpend{
			{
				Coin:         spender,
				PuzzleReveal: chain.Program{0xaa, 0xbb},
				Solution: chain.ConditionsSolution([]chain.Condition{
					chain.CreateCoin(b32(0x0a), 100, nil),
				}),
			},
			{
				Coin:         ephemeral,
				PuzzleReveal: chain.SettlementProgram,
				Solution:     chain.Program{chain.SettlementSolutionTag},
			},
		},
	}
}

func TestSpendBundleSerializeRoundTrip(t *testing.T) {
	bundle := testBundle()

	decoded, err := chain.DeserializeSpendBundle(bundle.Serialize())
	require.NoError(t, err)
	require.Equal(t, bundle, decoded)
	require.Equal(t, bundle.Name(), decoded.Name())
}

func TestDeserializeSpendBundleFailures(t *testing.T) {
	raw := testBundle().Serialize()

	tests := []struct {
		name string
		raw  []byte
	}{
		{
			name: "with_empty_input",
			raw:  nil,
		},
		{
			name: "with_truncated_input",
			raw:  raw[:len(raw)-10],
		},
		{
			name: "with_trailing_bytes",
			raw:  append(append([]byte{}, raw...), 0x00),
		},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := chain.DeserializeSpendBundle(tt.raw)
			require.Error(t, err)
		})
	}
}

func TestSpendBundleRemovals(t *testing.T) {
	bundle := testBundle()

	require.Len(t, bundle.Removals(), 2)

	notEphemeral := bundle.NotEphemeralRemovals()
	require.Len(t, notEphemeral, 1)
	require.Equal(t, bundle.CoinSpends[0].Coin, notEphemeral[0])

	spend, ok := bundle.SpendOf(bundle.CoinSpends[0].Coin.ID())
	require.True(t, ok)
	require.Equal(t, bundle.CoinSpends[0], spend)

	_, ok = bundle.SpendOf(b32(0xff))
	require.False(t, ok)
}

func TestAggregateSignatures(t *testing.T) {
	_, _, _, g2 := bls12381.Generators()
	generatorSig := chain.Signature(g2.Bytes())

	t.Run("with_no_signatures", func(t *testing.T) {
		sig, err := chain.AggregateSignatures()
		require.NoError(t, err)
		require.True(t, sig.IsEmpty())
	})

	t.Run("with_empty_placeholders", func(t *testing.T) {
		sig, err := chain.AggregateSignatures(chain.Signature{}, chain.Signature{})
		require.NoError(t, err)
		require.True(t, sig.IsEmpty())
	})

	t.Run("with_single_point", func(t *testing.T) {
		sig, err := chain.AggregateSignatures(generatorSig, chain.Signature{})
		require.NoError(t, err)
		require.Equal(t, generatorSig, sig)
	})

	t.Run("with_two_points", func(t *testing.T) {
		sig, err := chain.AggregateSignatures(generatorSig, generatorSig)
		require.NoError(t, err)

		var doubled bls12381.G2Jac
		doubled.FromAffine(&g2)
		doubled.AddMixed(&g2)
		var expected bls12381.G2Affine
		expected.FromJacobian(&doubled)
		require.Equal(t, chain.Signature(expected.Bytes()), sig)
	})

	t.Run("with_invalid_point", func(t *testing.T) {
		var garbage chain.Signature
		for i := range garbage {
			garbage[i] = 0xff
		}
		_, err := chain.AggregateSignatures(garbage)
		require.Error(t, err)
	})
}

func TestCombineSpendBundles(t *testing.T) {
	a := testBundle()
	b := chain.SpendBundle{
		CoinSpends: []chain.CoinSpend{
			{
				Coin:         chain.Coin{ParentCoinInfo: b32(0x05), PuzzleHash: b32(0x06), Amount: 1},
				PuzzleReveal: chain.Program{0x01},
				Solution:     chain.ConditionsSolution(nil),
			},
		},
	}

	combined, err := chain.CombineSpendBundles(a, b)
	require.NoError(t, err)
	require.Len(t, combined.CoinSpends, 3)
	require.True(t, combined.AggregatedSignature.IsEmpty())
}
