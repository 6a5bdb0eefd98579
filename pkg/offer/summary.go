package offer

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// Summary is the pure, state-free view of an offer exposed to callers:
// offered and requested totals per asset, plus the amounts still pending on
// the offer's outstanding non-ephemeral inputs. It requires nothing beyond
// the offer itself.
type Summary struct {
	Offered   map[chain.Bytes32]decimal.Decimal
	Requested map[chain.Bytes32]decimal.Decimal
	Pending   map[chain.Bytes32]decimal.Decimal
}

// Summarize computes the summary of any offer.
func Summarize(o *Offer) (Summary, error) {
	offered, err := o.OfferedAmounts()
	if err != nil {
		return Summary{}, err
	}
	requested := o.RequestedAmounts()

	pending := make(map[chain.Bytes32]uint64)
	for _, coin := range o.bundle.NotEphemeralRemovals() {
		spend, _ := o.bundle.SpendOf(coin.ID())
		assetID := NativeAsset
		if id, _, ok := chain.MatchTokenPuzzle(spend.PuzzleReveal); ok {
			assetID = id
		}
		pending[assetID] += coin.Amount
	}

	return Summary{
		Offered:   toDecimals(offered),
		Requested: toDecimals(requested),
		Pending:   toDecimals(pending),
	}, nil
}

func toDecimals(amounts map[chain.Bytes32]uint64) map[chain.Bytes32]decimal.Decimal {
	out := make(map[chain.Bytes32]decimal.Decimal, len(amounts))
	for assetID, amount := range amounts {
		out[assetID] = decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0)
	}
	return out
}
