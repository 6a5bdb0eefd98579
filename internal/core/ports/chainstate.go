package ports

import (
	"context"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// CoinState is the on-chain status of one coin.
type CoinState struct {
	CoinID      chain.Bytes32
	Spent       bool
	SpentHeight uint32
}

// ChainState answers spent/unspent queries for coin ids.
type ChainState interface {
	CoinStates(ctx context.Context, coinIDs []chain.Bytes32) (map[chain.Bytes32]CoinState, error)
}

// CoinSpentEvent notifies the trade manager that a watched coin was spent.
type CoinSpentEvent struct {
	CoinID chain.Bytes32
	Height uint32
}
