package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// TxRecordType classifies a derived history entry.
type TxRecordType uint8

const (
	// TxIncomingPayment is a settlement payment routed to a local wallet.
	TxIncomingPayment TxRecordType = iota
	// TxOutgoingPayment is a spend of local coins.
	TxOutgoingPayment
	// TxFeeReservation is the fee consumed by a transaction group.
	TxFeeReservation
	// TxBroadcast is the zero-amount record carrying the full settled
	// transaction for broadcast.
	TxBroadcast
)

// TxRecord is one per-wallet history entry derived from a settled or
// cancelling transaction.
type TxRecord struct {
	ID          uuid.UUID
	AssetID     chain.Bytes32
	Type        TxRecordType
	Amount      uint64
	PuzzleHash  chain.Bytes32
	TradeID     chain.Bytes32
	SpendBundle []byte
}

// TransactionRecorder queues derived history entries for the surrounding
// wallet and discards the pending ones of a failed trade.
type TransactionRecorder interface {
	Enqueue(ctx context.Context, records []TxRecord) error
	DiscardByTrade(ctx context.Context, tradeID chain.Bytes32) error
}
