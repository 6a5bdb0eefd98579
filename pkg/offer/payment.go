package offer

import (
	"crypto/sha256"

	"github.com/chainswap/chainswap-daemon/pkg/bufferutil"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// Payment is one requested output: recipient puzzle hash, amount and memos.
// The puzzle hash is the inner (unwrapped) hash; for token assets the
// on-chain hash is derived by wrapping it under the asset's outer layer.
type Payment struct {
	PuzzleHash chain.Bytes32
	Amount     uint64
	Memos      [][]byte
}

// NotarizedPayment is a Payment bound to the coin set being spent in the
// same settlement batch. The nonce prevents one redemption solution from
// being replayed against a different, structurally identical request.
type NotarizedPayment struct {
	Payment
	Nonce chain.Bytes32
}

// Name hashes the full notarized payment; used to reject duplicates within
// one asset's payment list.
func (np NotarizedPayment) Name() chain.Bytes32 {
	s := bufferutil.NewSerializer()
	s.WriteBytes(np.Nonce[:])
	writePayment(s, np.Payment)
	return chain.Bytes32(sha256.Sum256(s.Bytes()))
}

// NotarizeRequested binds the requested payments to the given coin set. The
// nonce is the hash of the canonical serialization of the coins sorted
// byte-lexicographically by id, so it is reproducible by the script layer
// regardless of insertion order.
func NotarizeRequested(
	requested map[chain.Bytes32][]Payment, coins []chain.Coin,
) map[chain.Bytes32][]NotarizedPayment {
	nonce := NonceForCoins(coins)
	out := make(map[chain.Bytes32][]NotarizedPayment, len(requested))
	for assetID, payments := range requested {
		notarized := make([]NotarizedPayment, 0, len(payments))
		for _, p := range payments {
			notarized = append(notarized, NotarizedPayment{Payment: p, Nonce: nonce})
		}
		out[assetID] = notarized
	}
	return out
}

// NonceForCoins derives the shared settlement nonce from a coin set.
func NonceForCoins(coins []chain.Coin) chain.Bytes32 {
	sorted := chain.SortCoins(coins)
	h := sha256.New()
	for _, c := range sorted {
		h.Write(c.Serialize())
	}
	var nonce chain.Bytes32
	copy(nonce[:], h.Sum(nil))
	return nonce
}

func writePayment(s *bufferutil.Serializer, p Payment) {
	s.WriteBytes(p.PuzzleHash[:])
	s.WriteUint64(p.Amount)
	s.WriteUint32(uint32(len(p.Memos)))
	for _, m := range p.Memos {
		s.WriteSlice(m)
	}
}

func readPayment(d *bufferutil.Deserializer) (Payment, error) {
	var p Payment
	ph, err := d.ReadBytes(32)
	if err != nil {
		return p, err
	}
	copy(p.PuzzleHash[:], ph)
	if p.Amount, err = d.ReadUint64(); err != nil {
		return p, err
	}
	memoCount, err := d.ReadUint32()
	if err != nil {
		return p, err
	}
	for i := uint32(0); i < memoCount; i++ {
		m, err := d.ReadSlice()
		if err != nil {
			return p, err
		}
		p.Memos = append(p.Memos, m)
	}
	return p, nil
}

// PaymentGroup is one settlement solution entry: a nonce and the payments
// notarized under it.
type PaymentGroup struct {
	Nonce    chain.Bytes32
	Payments []Payment
}

// encodePaymentGroup is the canonical (nonce, payment-condition-args...)
// encoding. Announcement messages hash this exact encoding, and the script
// layer recomputes it on-chain.
func encodePaymentGroup(g PaymentGroup) []byte {
	s := bufferutil.NewSerializer()
	s.WriteBytes(g.Nonce[:])
	s.WriteUint32(uint32(len(g.Payments)))
	for _, p := range g.Payments {
		writePayment(s, p)
	}
	return s.Bytes()
}

// groupByNonce groups notarized payments by nonce in first-seen order,
// dropping exact duplicates.
func groupByNonce(payments []NotarizedPayment) []PaymentGroup {
	var groups []PaymentGroup
	index := make(map[chain.Bytes32]int)
	seen := make(map[chain.Bytes32]struct{})
	for _, np := range payments {
		if _, dup := seen[np.Name()]; dup {
			continue
		}
		seen[np.Name()] = struct{}{}
		i, ok := index[np.Nonce]
		if !ok {
			groups = append(groups, PaymentGroup{Nonce: np.Nonce})
			i = len(groups) - 1
			index[np.Nonce] = i
		}
		groups[i].Payments = append(groups[i].Payments, np.Payment)
	}
	return groups
}

// CalculateAnnouncements derives, per asset, the puzzle announcement the
// counterparty's settlement spend must create. Asserting these is what makes
// the otherwise-independent coin spends of an offer atomic.
func CalculateAnnouncements(
	notarized map[chain.Bytes32][]NotarizedPayment,
) ([]chain.Announcement, error) {
	assetIDs := sortedAssetIDs(notarized)
	out := make([]chain.Announcement, 0, len(assetIDs))
	for _, assetID := range assetIDs {
		payments := notarized[assetID]
		if len(payments) == 0 {
			continue
		}
		msg := sha256.Sum256(encodePaymentGroup(PaymentGroup{
			Nonce:    payments[0].Nonce,
			Payments: rawPayments(payments),
		}))
		out = append(out, chain.Announcement{
			OriginInfo: chain.WrappedSettlementPuzzleHash(assetID),
			Message:    msg[:],
		})
	}
	return out, nil
}

func rawPayments(notarized []NotarizedPayment) []Payment {
	out := make([]Payment, 0, len(notarized))
	for _, np := range notarized {
		out = append(out, np.Payment)
	}
	return out
}
