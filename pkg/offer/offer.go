// Package offer implements the offer value model: an immutable claim on
// blockchain value carried as a partially-signed combined transaction, plus
// the settlement algorithm that turns a balanced set of offers into the
// final redeemable spend.
package offer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

var (
	// ErrEmptyOffer is returned when an offer routes no value through the
	// settlement script. This is a malformed-caller error, not a routine
	// outcome.
	ErrEmptyOffer = errors.New("offer must offer at least one settlement output")
	// ErrDuplicateNotarizedPayment is returned when one asset's payment
	// list contains two identical notarized payments.
	ErrDuplicateNotarizedPayment = errors.New("duplicate notarized payment")
	// ErrOverlappingInputs is returned by Aggregate when two offers spend
	// the same input coin.
	ErrOverlappingInputs = errors.New("aggregated offers share an input coin")
	// ErrNotBalanced is returned by ToValidSpend when some asset's
	// arbitrage is negative.
	ErrNotBalanced = errors.New("offer is not balanced")
	// ErrMissingParentSpend is returned when a continuity spend cannot
	// re-derive its lineage because the parent spend is absent.
	ErrMissingParentSpend = errors.New("parent spend not present in bundle")
)

// NativeAsset is the asset key of the native currency.
var NativeAsset chain.Bytes32

// Offer is an immutable record of requested payments per asset plus the
// combined transaction contributing the offered side. Every mutation
// produces a new Offer.
type Offer struct {
	requested map[chain.Bytes32][]NotarizedPayment
	bundle    chain.SpendBundle
}

// New validates and builds an Offer. Structural violations (nothing offered,
// duplicate notarized payments) fail hard here.
func New(
	requested map[chain.Bytes32][]NotarizedPayment, bundle chain.SpendBundle,
) (*Offer, error) {
	for assetID, payments := range requested {
		seen := make(map[chain.Bytes32]struct{}, len(payments))
		for _, np := range payments {
			name := np.Name()
			if _, ok := seen[name]; ok {
				return nil, fmt.Errorf(
					"%w: asset %s", ErrDuplicateNotarizedPayment, assetID,
				)
			}
			seen[name] = struct{}{}
		}
	}

	o := &Offer{requested: copyRequested(requested), bundle: bundle}
	offered, err := o.OfferedCoins()
	if err != nil {
		return nil, err
	}
	valueBearing := false
	for _, coins := range offered {
		for _, c := range coins {
			if c.Amount > 0 {
				valueBearing = true
			}
		}
	}
	if !valueBearing {
		return nil, ErrEmptyOffer
	}
	return o, nil
}

// Requested returns a copy of the requested payments per asset.
func (o *Offer) Requested() map[chain.Bytes32][]NotarizedPayment {
	return copyRequested(o.requested)
}

// Bundle returns the underlying combined transaction.
func (o *Offer) Bundle() chain.SpendBundle {
	return o.bundle
}

// OfferedCoins scans the bundle's outputs and buckets the settlement-routed
// ones by asset. An output belongs to an asset when its parent spend's
// revealed script carries that asset's outer layer and the output's puzzle
// hash is the wrapped settlement hash; bare settlement outputs are native.
func (o *Offer) OfferedCoins() (map[chain.Bytes32][]chain.Coin, error) {
	out := make(map[chain.Bytes32][]chain.Coin)
	for _, cs := range o.bundle.CoinSpends {
		additions, err := cs.Additions()
		if err != nil {
			return nil, fmt.Errorf("additions of coin %s: %w", cs.Coin.ID(), err)
		}
		parentAsset, _, parentIsToken := chain.MatchTokenPuzzle(cs.PuzzleReveal)
		for _, created := range additions {
			switch {
			case created.Coin.PuzzleHash == chain.SettlementPuzzleHash:
				out[NativeAsset] = append(out[NativeAsset], created.Coin)
			case parentIsToken &&
				created.Coin.PuzzleHash == chain.WrappedSettlementPuzzleHash(parentAsset):
				out[parentAsset] = append(out[parentAsset], created.Coin)
			}
		}
	}
	return out, nil
}

// OfferedAmounts sums the offered settlement outputs per asset.
func (o *Offer) OfferedAmounts() (map[chain.Bytes32]uint64, error) {
	coins, err := o.OfferedCoins()
	if err != nil {
		return nil, err
	}
	out := make(map[chain.Bytes32]uint64, len(coins))
	for assetID, assetCoins := range coins {
		for _, c := range assetCoins {
			out[assetID] += c.Amount
		}
	}
	return out, nil
}

// RequestedAmounts sums the requested payments per asset.
func (o *Offer) RequestedAmounts() map[chain.Bytes32]uint64 {
	out := make(map[chain.Bytes32]uint64, len(o.requested))
	for assetID, payments := range o.requested {
		for _, np := range payments {
			out[assetID] += np.Amount
		}
	}
	return out
}

// Arbitrage returns offered minus requested for every asset appearing on
// either side.
func (o *Offer) Arbitrage() (map[chain.Bytes32]int64, error) {
	offered, err := o.OfferedAmounts()
	if err != nil {
		return nil, err
	}
	requested := o.RequestedAmounts()
	out := make(map[chain.Bytes32]int64, len(offered)+len(requested))
	for assetID, amount := range offered {
		out[assetID] += int64(amount)
	}
	for assetID, amount := range requested {
		out[assetID] -= int64(amount)
	}
	return out, nil
}

// IsValid reports whether every arbitrage value is non-negative, i.e. the
// offered side fully covers the requested side.
func (o *Offer) IsValid() (bool, error) {
	arbitrage, err := o.Arbitrage()
	if err != nil {
		return false, err
	}
	for _, v := range arbitrage {
		if v < 0 {
			return false, nil
		}
	}
	return true, nil
}

// Aggregate combines offers: requested payment lists are unioned per asset
// and the bundles are merged. It fails if any two offers consume the same
// input coin, which would double-count a party's contribution.
func Aggregate(offers []*Offer) (*Offer, error) {
	requested := make(map[chain.Bytes32][]NotarizedPayment)
	bundles := make([]chain.SpendBundle, 0, len(offers))
	seen := make(map[chain.Bytes32]struct{})
	for _, o := range offers {
		for _, cs := range o.bundle.CoinSpends {
			id := cs.Coin.ID()
			if _, ok := seen[id]; ok {
				return nil, fmt.Errorf("%w: coin %s", ErrOverlappingInputs, id)
			}
			seen[id] = struct{}{}
		}
		for assetID, payments := range o.requested {
			requested[assetID] = append(requested[assetID], payments...)
		}
		bundles = append(bundles, o.bundle)
	}
	combined, err := chain.CombineSpendBundles(bundles...)
	if err != nil {
		return nil, err
	}
	return New(requested, combined)
}

// Equal reports deep equality of requested payments and bundle bytes.
func (o *Offer) Equal(other *Offer) bool {
	if len(o.requested) != len(other.requested) {
		return false
	}
	for assetID, payments := range o.requested {
		otherPayments, ok := other.requested[assetID]
		if !ok || len(payments) != len(otherPayments) {
			return false
		}
		for i := range payments {
			if payments[i].Name() != otherPayments[i].Name() {
				return false
			}
		}
	}
	return string(o.bundle.Serialize()) == string(other.bundle.Serialize())
}

func copyRequested(
	requested map[chain.Bytes32][]NotarizedPayment,
) map[chain.Bytes32][]NotarizedPayment {
	out := make(map[chain.Bytes32][]NotarizedPayment, len(requested))
	for assetID, payments := range requested {
		out[assetID] = append([]NotarizedPayment{}, payments...)
	}
	return out
}

func sortedAssetIDs[V any](m map[chain.Bytes32]V) []chain.Bytes32 {
	ids := make([]chain.Bytes32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}
