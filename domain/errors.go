package domain

import "errors"

var (
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("Your requested Item is not found")
	// ErrConflict will throw if a write lost an optimistic concurrency race
	ErrConflict = errors.New("Stale write rejected")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput = errors.New("Given Param is not valid")

	// ErrAuctionClosed will throw on a bid against a non-open auction
	ErrAuctionClosed = errors.New("Auction is closed")
	// ErrInvalidAmount will throw if a bid amount is not a positive number
	ErrInvalidAmount = errors.New("Invalid bid amount")

	// request error
	ErrInvalidAddress = errors.New("Invalid address")
)
