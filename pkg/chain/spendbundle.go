package chain

import (
	"crypto/sha256"
	"fmt"

	"github.com/chainswap/chainswap-daemon/pkg/bufferutil"
)

// CoinSpend is one input of a transaction: the coin, its revealed script and
// the solution that spends it.
type CoinSpend struct {
	Coin         Coin
	PuzzleReveal Program
	Solution     Program
}

// Additions returns the coins this spend creates. Only spends carrying a
// conditions solution produce decodable additions here; settlement spends
// are interpreted by the offer package.
func (cs CoinSpend) Additions() ([]CreatedCoin, error) {
	if IsSettlementSolution(cs.Solution) {
		return nil, nil
	}
	conditions, err := ParseConditionsSolution(cs.Solution)
	if err != nil {
		return nil, err
	}
	var out []CreatedCoin
	for _, c := range conditions {
		if c.Opcode != OpCreateCoin {
			continue
		}
		created, err := createdCoinFromCondition(cs.Coin, c)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

// ReservedFee returns the total fee reserved by this spend's conditions.
func (cs CoinSpend) ReservedFee() uint64 {
	conditions, err := ParseConditionsSolution(cs.Solution)
	if err != nil {
		return 0
	}
	var total uint64
	for _, c := range conditions {
		if c.Opcode != OpReserveFee || len(c.Args) < 1 {
			continue
		}
		d := bufferutil.NewDeserializer(c.Args[0])
		amount, err := d.ReadUint64()
		if err != nil {
			continue
		}
		total += amount
	}
	return total
}

// SpendBundle is a combined transaction: an ordered list of coin spends plus
// one aggregated signature over all of them.
type SpendBundle struct {
	CoinSpends          []CoinSpend
	AggregatedSignature Signature
}

// Serialize returns the canonical bundle encoding. This is also the interop
// format for sharing unsettled offers between wallets.
func (sb SpendBundle) Serialize() []byte {
	s := bufferutil.NewSerializer()
	s.WriteUint32(uint32(len(sb.CoinSpends)))
	for _, cs := range sb.CoinSpends {
		s.WriteBytes(cs.Coin.Serialize())
		s.WriteSlice(cs.PuzzleReveal)
		s.WriteSlice(cs.Solution)
	}
	s.WriteBytes(sb.AggregatedSignature[:])
	return s.Bytes()
}

// DeserializeSpendBundle decodes a bundle produced by Serialize.
func DeserializeSpendBundle(b []byte) (SpendBundle, error) {
	var sb SpendBundle
	d := bufferutil.NewDeserializer(b)
	count, err := d.ReadUint32()
	if err != nil {
		return sb, fmt.Errorf("spend count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		coin, err := deserializeCoin(d)
		if err != nil {
			return sb, fmt.Errorf("coin %d: %w", i, err)
		}
		reveal, err := d.ReadSlice()
		if err != nil {
			return sb, fmt.Errorf("puzzle reveal %d: %w", i, err)
		}
		solution, err := d.ReadSlice()
		if err != nil {
			return sb, fmt.Errorf("solution %d: %w", i, err)
		}
		sb.CoinSpends = append(sb.CoinSpends, CoinSpend{
			Coin:         coin,
			PuzzleReveal: Program(reveal),
			Solution:     Program(solution),
		})
	}
	sig, err := d.ReadBytes(96)
	if err != nil {
		return sb, fmt.Errorf("aggregated signature: %w", err)
	}
	copy(sb.AggregatedSignature[:], sig)
	if err := d.End(); err != nil {
		return sb, err
	}
	return sb, nil
}

// Name is the bundle's transaction hash, the domain of trade ids.
func (sb SpendBundle) Name() Bytes32 {
	return Bytes32(sha256.Sum256(sb.Serialize()))
}

// Removals returns the coins consumed by the bundle.
func (sb SpendBundle) Removals() []Coin {
	out := make([]Coin, 0, len(sb.CoinSpends))
	for _, cs := range sb.CoinSpends {
		out = append(out, cs.Coin)
	}
	return out
}

// NotEphemeralRemovals returns removals excluding synthetic settlement
// placeholders.
func (sb SpendBundle) NotEphemeralRemovals() []Coin {
	var out []Coin
	for _, cs := range sb.CoinSpends {
		if cs.Coin.IsEphemeral() {
			continue
		}
		out = append(out, cs.Coin)
	}
	return out
}

// SpendOf returns the spend consuming the coin with the given id.
func (sb SpendBundle) SpendOf(coinID Bytes32) (CoinSpend, bool) {
	for _, cs := range sb.CoinSpends {
		if cs.Coin.ID() == coinID {
			return cs, true
		}
	}
	return CoinSpend{}, false
}

// CombineSpendBundles concatenates the spends of all bundles and aggregates
// their signatures.
func CombineSpendBundles(bundles ...SpendBundle) (SpendBundle, error) {
	var out SpendBundle
	sigs := make([]Signature, 0, len(bundles))
	for _, b := range bundles {
		out.CoinSpends = append(out.CoinSpends, b.CoinSpends...)
		sigs = append(sigs, b.AggregatedSignature)
	}
	sig, err := AggregateSignatures(sigs...)
	if err != nil {
		return SpendBundle{}, err
	}
	out.AggregatedSignature = sig
	return out, nil
}
