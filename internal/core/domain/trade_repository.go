package domain

import (
	"context"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// TradeSortKey selects the ordering of GetTradesBetween.
type TradeSortKey uint8

const (
	// SortByHeight orders chronologically by confirmation height.
	SortByHeight TradeSortKey = iota
	// SortByRelevance surfaces non-terminal trades ahead of terminal
	// ones, each group independently chronological.
	SortByRelevance
)

// TradesBetweenQuery filters and orders a page of trade records.
type TradesBetweenQuery struct {
	Start           int
	End             int
	SortKey         TradeSortKey
	ExcludeMyOffers bool
	ExcludeTaken    bool
	IncludeTerminal bool
}

// TradeRepository is the durable, queryable store of trade records, with a
// secondary index mapping watched coins to the trades that care about them.
type TradeRepository interface {
	// AddTradeRecord upserts a record keyed by trade id and atomically
	// replaces its rows in the coin-of-interest index.
	AddTradeRecord(ctx context.Context, record *TradeRecord) error
	// GetTradeRecord returns the record for the given trade id, or
	// ErrTradeNotFound.
	GetTradeRecord(ctx context.Context, tradeID chain.Bytes32) (*TradeRecord, error)
	// GetTradeRecordsByCoinID returns every record watching the given
	// coin.
	GetTradeRecordsByCoinID(ctx context.Context, coinID chain.Bytes32) ([]*TradeRecord, error)
	// CoinIDsOfInterest returns the watched-coin id set for trades whose
	// status is in the given set, via the secondary index.
	CoinIDsOfInterest(ctx context.Context, statuses []TradeStatus) ([]chain.Bytes32, error)
	// GetTradesBetween returns a page of records per the query.
	GetTradesBetween(ctx context.Context, query TradesBetweenQuery) ([]*TradeRecord, error)
	// SetStatus replaces the record with the given status and, for
	// confirmations, the inclusion height.
	SetStatus(ctx context.Context, tradeID chain.Bytes32, status TradeStatus, confirmedAtHeight uint32) error
	// IncrementSent bumps the broadcast counter and appends the peer
	// outcome.
	IncrementSent(ctx context.Context, tradeID chain.Bytes32, peer SentPeer) error
	// GetAllUnconfirmed returns every non-terminal record.
	GetAllUnconfirmed(ctx context.Context) ([]*TradeRecord, error)
	// MigrateIsMyOffer backfills the is-my-offer column for stores
	// created before it existed, by replaying every stored record.
	MigrateIsMyOffer(ctx context.Context, decide func(*TradeRecord) bool) error
	// MigrateCoinIndex rebuilds the coin-of-interest index from the
	// stored records.
	MigrateCoinIndex(ctx context.Context) error
}
