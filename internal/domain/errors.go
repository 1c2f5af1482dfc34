package domain

import "errors"

// Domain invariant errors.
var (
	// ErrTxSignInvariant is returned when a transaction violates the
	// buy-negative / sell-positive gross transfer invariant.
	ErrTxSignInvariant = errors.New("transaction gross transfer sign violates buy/sell invariant")

	// ErrUnknownTxType is returned for transaction types other than BUY/SELL.
	ErrUnknownTxType = errors.New("unknown transaction type")
)
