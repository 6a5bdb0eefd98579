package domain

import "errors"

var (
	// ErrTradeNotFound ...
	ErrTradeNotFound = errors.New("trade not found")
	// ErrTradeTerminal is returned when mutating a trade already in a
	// terminal state.
	ErrTradeTerminal = errors.New("trade is in a terminal state")
	// ErrInsufficientFunds is an expected outcome of offer construction,
	// surfaced as a failed result rather than an error.
	ErrInsufficientFunds = errors.New("insufficient confirmed balance")
	// ErrUnsupportedAssetKind ...
	ErrUnsupportedAssetKind = errors.New("asset kind cannot be traded")
	// ErrOfferAlreadySpent marks a stale offer whose inputs are already
	// spent on chain.
	ErrOfferAlreadySpent = errors.New("offer inputs are already spent")
)
