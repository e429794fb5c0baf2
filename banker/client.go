// Package banker defines the C6 banker client interface (spec §4.5): spend
// authorization, commit, and rollback against per-account balances held by
// an external banker service. The router never holds the ledger itself.
package banker

import "github.com/rtbexchange/router/errortypes"

// Handle is an opaque reservation token returned by Authorize and consumed
// by exactly one of Commit or Rollback.
type Handle string

// Client is the C6 contract. The engine calls Authorize and then Commit once
// per auction it resolves with a winner, for that winner's clear price; it
// does not batch authorizations (spec §4.3 "Banker interaction").
type Client interface {
	// Authorize reserves amountMicros of currency against account. Returns
	// errortypes.BankerInsufficient if the account cannot cover the amount,
	// or errortypes.BankerUnavailable if the banker cannot be reached.
	Authorize(account string, amountMicros int64, currency string) (Handle, error)

	// Commit finalizes a reservation at actualMicros, which may be less than
	// (never more than) the amount originally authorized.
	Commit(handle Handle, actualMicros int64) error

	// Rollback releases a reservation with nothing committed.
	Rollback(handle Handle) error
}

// InsufficientError is returned by Authorize when account's available
// balance cannot cover the requested amount.
func InsufficientError(account string) error {
	return &errortypes.BankerInsufficient{Account: account}
}

// UnavailableError is returned when the banker cannot be reached at all.
func UnavailableError(reason string) error {
	return &errortypes.BankerUnavailable{Message: reason}
}
