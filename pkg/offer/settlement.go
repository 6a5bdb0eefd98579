package offer

import (
	"fmt"

	"github.com/chainswap/chainswap-daemon/pkg/bufferutil"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// lineageProof is the prior lineage commitment a conserved-supply spend must
// restate: the grandparent id, the parent's inner puzzle hash and the
// parent's amount. It is always re-derived from the parent spend's revealed
// script, never accepted from a caller.
type lineageProof struct {
	ParentCoinInfo  chain.Bytes32
	InnerPuzzleHash chain.Bytes32
	Amount          uint64
}

// settlementSolution is the solution of a settlement spend: optional lineage
// for wrapped assets plus the notarized payment groups to emit.
type settlementSolution struct {
	Lineage *lineageProof
	Groups  []PaymentGroup
}

func encodeSettlementSolution(sol settlementSolution) chain.Program {
	s := bufferutil.NewSerializer()
	s.WriteUint8(chain.SettlementSolutionTag)
	s.WriteBool(sol.Lineage != nil)
	if sol.Lineage != nil {
		s.WriteBytes(sol.Lineage.ParentCoinInfo[:])
		s.WriteBytes(sol.Lineage.InnerPuzzleHash[:])
		s.WriteUint64(sol.Lineage.Amount)
	}
	s.WriteUint32(uint32(len(sol.Groups)))
	for _, g := range sol.Groups {
		s.WriteBytes(encodePaymentGroup(g))
	}
	return chain.Program(s.Bytes())
}

func parseSettlementSolution(p chain.Program) (settlementSolution, error) {
	var sol settlementSolution
	d := bufferutil.NewDeserializer(p)
	tag, err := d.ReadUint8()
	if err != nil {
		return sol, err
	}
	if tag != chain.SettlementSolutionTag {
		return sol, fmt.Errorf("not a settlement solution, tag 0x%02x", tag)
	}
	hasLineage, err := d.ReadBool()
	if err != nil {
		return sol, err
	}
	if hasLineage {
		var lp lineageProof
		parent, err := d.ReadBytes(32)
		if err != nil {
			return sol, err
		}
		inner, err := d.ReadBytes(32)
		if err != nil {
			return sol, err
		}
		copy(lp.ParentCoinInfo[:], parent)
		copy(lp.InnerPuzzleHash[:], inner)
		if lp.Amount, err = d.ReadUint64(); err != nil {
			return sol, err
		}
		sol.Lineage = &lp
	}
	groupCount, err := d.ReadUint32()
	if err != nil {
		return sol, err
	}
	for i := uint32(0); i < groupCount; i++ {
		g, err := readPaymentGroup(d)
		if err != nil {
			return sol, fmt.Errorf("payment group %d: %w", i, err)
		}
		sol.Groups = append(sol.Groups, g)
	}
	if err := d.End(); err != nil {
		return sol, err
	}
	return sol, nil
}

// ParseSettlementGroups returns the payment groups carried by a settlement
// solution, or an error if the program is not one.
func ParseSettlementGroups(p chain.Program) ([]PaymentGroup, error) {
	sol, err := parseSettlementSolution(p)
	if err != nil {
		return nil, err
	}
	return sol.Groups, nil
}

func readPaymentGroup(d *bufferutil.Deserializer) (PaymentGroup, error) {
	var g PaymentGroup
	nonce, err := d.ReadBytes(32)
	if err != nil {
		return g, err
	}
	copy(g.Nonce[:], nonce)
	count, err := d.ReadUint32()
	if err != nil {
		return g, err
	}
	for i := uint32(0); i < count; i++ {
		p, err := readPayment(d)
		if err != nil {
			return g, err
		}
		g.Payments = append(g.Payments, p)
	}
	return g, nil
}

// ToValidSpend produces the final redeemable transaction from a balanced,
// aggregated offer. Per asset, the notarized payments are grouped by nonce
// in first-seen order; any positive arbitrage becomes one extra leftover
// payment attached to the first coin spent for that asset. Every other coin
// of a conserved-supply asset produces a continuity spend whose sole output
// passes its own value through, keeping the ring's total-in equal to its
// total-out; its lineage commitment is re-derived from the parent coin's
// revealed script.
func (o *Offer) ToValidSpend(leftoverPuzzleHash chain.Bytes32) (chain.SpendBundle, error) {
	arbitrage, err := o.Arbitrage()
	if err != nil {
		return chain.SpendBundle{}, err
	}
	for assetID, v := range arbitrage {
		if v < 0 {
			return chain.SpendBundle{}, fmt.Errorf(
				"%w: asset %s short by %d", ErrNotBalanced, assetID, -v,
			)
		}
	}

	offeredCoins, err := o.OfferedCoins()
	if err != nil {
		return chain.SpendBundle{}, err
	}

	settlementSpends := make([]chain.CoinSpend, 0)
	for _, assetID := range sortedAssetIDs(offeredCoins) {
		coins := offeredCoins[assetID]
		if len(coins) == 0 {
			continue
		}
		groups := groupByNonce(o.requested[assetID])
		if leftover := arbitrage[assetID]; leftover > 0 {
			groups = append(groups, PaymentGroup{
				Nonce: coins[0].ID(),
				Payments: []Payment{{
					PuzzleHash: leftoverPuzzleHash,
					Amount:     uint64(leftover),
				}},
			})
		}

		puzzle := chain.SettlementProgram
		if assetID != NativeAsset {
			puzzle = chain.WrapTokenPuzzle(assetID, chain.SettlementProgram)
		}

		for i, coin := range coins {
			sol := settlementSolution{}
			if assetID != NativeAsset {
				lineage, err := o.lineageFor(coin)
				if err != nil {
					return chain.SpendBundle{}, err
				}
				sol.Lineage = lineage
			}
			if i == 0 {
				sol.Groups = groups
			} else if assetID != NativeAsset {
				// Ring continuity: the sole output recreates the coin.
				sol.Groups = []PaymentGroup{{
					Nonce: coin.ID(),
					Payments: []Payment{{
						PuzzleHash: chain.SettlementPuzzleHash,
						Amount:     coin.Amount,
					}},
				}}
			}
			settlementSpends = append(settlementSpends, chain.CoinSpend{
				Coin:         coin,
				PuzzleReveal: puzzle,
				Solution:     encodeSettlementSolution(sol),
			})
		}
	}

	settled := chain.SpendBundle{CoinSpends: settlementSpends}
	return chain.CombineSpendBundles(o.bundle, settled)
}

// lineageFor re-derives the prior lineage commitment of a settlement coin by
// unwrapping the outer-layer curry arguments of its parent's revealed
// script.
func (o *Offer) lineageFor(coin chain.Coin) (*lineageProof, error) {
	parentSpend, ok := o.bundle.SpendOf(coin.ParentCoinInfo)
	if !ok {
		return nil, fmt.Errorf("%w: parent %s", ErrMissingParentSpend, coin.ParentCoinInfo)
	}
	innerHash := parentSpend.PuzzleReveal.Hash()
	if _, inner, ok := chain.MatchTokenPuzzle(parentSpend.PuzzleReveal); ok {
		innerHash = inner.Hash()
	}
	return &lineageProof{
		ParentCoinInfo:  parentSpend.Coin.ParentCoinInfo,
		InnerPuzzleHash: innerHash,
		Amount:          parentSpend.Coin.Amount,
	}, nil
}
