package domain

import (
	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// TradeStatus is the lifecycle state of a trade.
type TradeStatus uint8

const (
	// StatusPendingAccept marks an offer authored locally and not yet
	// taken by a counterparty.
	StatusPendingAccept TradeStatus = iota
	// StatusPendingConfirm marks an offer accepted by either side,
	// broadcast and awaiting confirmation.
	StatusPendingConfirm
	// StatusPendingCancel marks a cancellation transaction broadcast and
	// awaiting confirmation.
	StatusPendingCancel
	// StatusConfirmed is terminal: the settled transaction was included.
	StatusConfirmed
	// StatusFailed is terminal: the trade lost an on-chain race.
	StatusFailed
	// StatusCancelled is terminal.
	StatusCancelled
)

var statusNames = map[TradeStatus]string{
	StatusPendingAccept:  "PENDING_ACCEPT",
	StatusPendingConfirm: "PENDING_CONFIRM",
	StatusPendingCancel:  "PENDING_CANCEL",
	StatusConfirmed:      "CONFIRMED",
	StatusFailed:         "FAILED",
	StatusCancelled:      "CANCELLED",
}

func (s TradeStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsTerminal reports whether the status admits no further transitions.
func (s TradeStatus) IsTerminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Relevance orders statuses for display: pending-confirm trades first, then
// pending-cancel, pending-accept, and finally the terminal states.
func (s TradeStatus) Relevance() int {
	switch s {
	case StatusPendingConfirm:
		return 5
	case StatusPendingCancel:
		return 4
	case StatusPendingAccept:
		return 3
	case StatusConfirmed:
		return 2
	case StatusFailed:
		return 1
	default:
		return 0
	}
}

// NonTerminalStatuses lists every status a live trade can hold.
func NonTerminalStatuses() []TradeStatus {
	return []TradeStatus{StatusPendingAccept, StatusPendingConfirm, StatusPendingCancel}
}

// InclusionStatus is the outcome of pushing the settled transaction to one
// peer.
type InclusionStatus uint8

const (
	InclusionPending InclusionStatus = iota
	InclusionSuccess
	InclusionFailed
)

// SentPeer records one broadcast attempt of the settled transaction.
type SentPeer struct {
	Peer      string          `json:"peer"`
	Inclusion InclusionStatus `json:"inclusion"`
	Error     string          `json:"error,omitempty"`
}

// TradeRecord is the persisted lifecycle record of one trade. It is mutated
// only by full-record replacement and never destroyed: terminal states
// persist.
type TradeRecord struct {
	TradeID           chain.Bytes32 `json:"trade_id"`
	ConfirmedAtHeight uint32        `json:"confirmed_at_height"`
	AcceptedAtTime    uint64        `json:"accepted_at_time"`
	CreatedAtTime     uint64        `json:"created_at_time"`
	IsMyOffer         bool          `json:"is_my_offer"`
	Sent              uint32        `json:"sent"`
	OfferBytes        []byte        `json:"offer"`
	TakenOfferBytes   []byte        `json:"taken_offer,omitempty"`
	CoinsOfInterest   []chain.Coin  `json:"coins_of_interest"`
	Status            TradeStatus   `json:"status"`
	SentTo            []SentPeer    `json:"sent_to"`
}

// CoinIDsOfInterest returns the ids of the record's watched coins.
func (t *TradeRecord) CoinIDsOfInterest() []chain.Bytes32 {
	out := make([]chain.Bytes32, 0, len(t.CoinsOfInterest))
	for _, c := range t.CoinsOfInterest {
		out = append(out, c.ID())
	}
	return out
}
