package chain

import (
	"crypto/sha256"
	"sort"

	"github.com/chainswap/chainswap-daemon/pkg/bufferutil"
)

// Coin is a single unspent output: parent coin id, puzzle hash and amount.
type Coin struct {
	ParentCoinInfo Bytes32 `json:"parent_coin_info"`
	PuzzleHash     Bytes32 `json:"puzzle_hash"`
	Amount         uint64  `json:"amount"`
}

// Serialize returns the canonical encoding: parent || puzzle hash || amount
// big-endian. The coin id and notarization nonces are hashes over this
// encoding, so it must never change.
func (c Coin) Serialize() []byte {
	s := bufferutil.NewSerializer()
	s.WriteBytes(c.ParentCoinInfo[:])
	s.WriteBytes(c.PuzzleHash[:])
	s.WriteUint64(c.Amount)
	return s.Bytes()
}

// ID returns sha256 of the canonical encoding.
func (c Coin) ID() Bytes32 {
	return Bytes32(sha256.Sum256(c.Serialize()))
}

// IsEphemeral reports whether the coin is a synthetic settlement
// placeholder rather than a real on-chain coin.
func (c Coin) IsEphemeral() bool {
	return c.ParentCoinInfo.IsZero()
}

func deserializeCoin(d *bufferutil.Deserializer) (Coin, error) {
	var c Coin
	parent, err := d.ReadBytes(32)
	if err != nil {
		return c, err
	}
	puzzle, err := d.ReadBytes(32)
	if err != nil {
		return c, err
	}
	amount, err := d.ReadUint64()
	if err != nil {
		return c, err
	}
	copy(c.ParentCoinInfo[:], parent)
	copy(c.PuzzleHash[:], puzzle)
	c.Amount = amount
	return c, nil
}

// SortCoins returns a copy of the given coins sorted byte-lexicographically
// by coin id. The script layer recomputes this exact order on-chain, so it
// must not depend on insertion order.
func SortCoins(coins []Coin) []Coin {
	sorted := make([]Coin, len(coins))
	copy(sorted, coins)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID().Less(sorted[j].ID())
	})
	return sorted
}
