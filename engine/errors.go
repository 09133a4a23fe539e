package engine

import "errors"

// ErrDuplicateOrder is returned by Place alongside NewOrderReject when the
// submitted ExchangeID is already present in the target book.
var ErrDuplicateOrder = errors.New("engine: duplicate exchange id")

// ErrUnknownOrder is returned by Cancel alongside CancelReject when no
// order with the given ExchangeID exists in the target book.
var ErrUnknownOrder = errors.New("engine: unknown exchange id")
