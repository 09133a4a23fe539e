// Package order defines the engine's immutable order header and the
// mutable, per-order-locked state (remaining quantity, cancellation) that
// sits inside it.
package order

import (
	"fmt"
	"math"
	"sync"

	"github.com/kestrel-markets/auctionengine/trader"
)

// Side is the direction of an Order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// MaxPrice is the sentinel limit price substituted for market BUY orders;
// 0 is substituted for market SELL orders. Storing these
// sentinels lets the Book and Matcher compare prices uniformly without
// branching on order.IsMarket everywhere.
const MaxPrice uint64 = math.MaxUint64

// QuantityUnderflow is raised when a caller asks to decrement an Order's
// remaining quantity by more than it has left. This is a programming
// error, not a recoverable condition.
type QuantityUnderflow struct {
	ExchangeID uint64
	Remaining  uint64
	Requested  uint64
}

func (e QuantityUnderflow) Error() string {
	return fmt.Sprintf("order %d: cannot decrement quantity %d by %d", e.ExchangeID, e.Remaining, e.Requested)
}

// Order is one resting or incoming buy/sell instruction. The header
// (Client, ExchangeID, Side, IsMarket, LimitPrice, Timestamp) is immutable
// once the order is inserted into a Book (Timestamp is set after
// construction, just before insertion); the trailing pair (quantity remaining, cancelled) is
// mutable and guarded by mu. mu must never be copied once an Order has
// been inserted into a Book — Orders always live behind a pointer.
type Order struct {
	Client     *trader.Trader
	ExchangeID uint64
	Side       Side
	IsMarket   bool
	LimitPrice uint64 // sentinel MaxPrice (buy) / 0 (sell) for market orders
	Timestamp  uint64 // assigned at insertion, used only to break ties

	mu        sync.Mutex
	remaining uint64
	cancelled bool
}

// New builds an Order in its initial, unlocked state. Timestamp is
// assigned by the caller (normally the Engine, from its injected Clock)
// before insertion, not here, since construction and insertion are
// logically distinct steps.
func New(client *trader.Trader, exchangeID uint64, side Side, isMarket bool, limitPrice uint64, quantity uint64) *Order {
	price := limitPrice
	if isMarket {
		if side == Buy {
			price = MaxPrice
		} else {
			price = 0
		}
	}
	return &Order{
		Client:     client,
		ExchangeID: exchangeID,
		Side:       side,
		IsMarket:   isMarket,
		LimitPrice: price,
		remaining:  quantity,
	}
}

// Remaining returns the current remaining quantity.
func (o *Order) Remaining() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remaining
}

// Cancelled reports whether the order has been cancelled.
func (o *Order) Cancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled
}

// Terminal reports whether the order can no longer participate in
// matching: fully filled or cancelled.
func (o *Order) Terminal() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remaining == 0 || o.cancelled
}

// Cancel is a one-shot flag: once set it stays set. It sets the flag and
// returns true only if the order is live (non-zero remaining quantity, not
// already cancelled); otherwise it changes nothing and returns false — the
// Engine uses this to decide cancel_ack vs cancel_reject.
func (o *Order) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelled || o.remaining == 0 {
		return false
	}
	o.cancelled = true
	return true
}

// Decrement reduces the remaining quantity by qty. It panics with
// QuantityUnderflow if qty exceeds the current remaining quantity — this
// indicates a matcher bug, not a condition to recover from.
func (o *Order) Decrement(qty uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if qty > o.remaining {
		panic(QuantityUnderflow{ExchangeID: o.ExchangeID, Remaining: o.remaining, Requested: qty})
	}
	o.remaining -= qty
}

// Lock/Unlock expose the per-order mutex directly so the Matcher can hold
// two orders' locks simultaneously in a fixed global order (ascending
// ExchangeID). While the lock is held, use the *Locked accessors below
// instead of Remaining/Cancelled/Decrement — the latter re-lock and would
// deadlock against an already-held mutex.
func (o *Order) Lock()   { o.mu.Lock() }
func (o *Order) Unlock() { o.mu.Unlock() }

// RemainingLocked and CancelledLocked read state without locking; the
// caller must already hold the order's lock (via Lock).
func (o *Order) RemainingLocked() uint64 { return o.remaining }
func (o *Order) CancelledLocked() bool   { return o.cancelled }

// DecrementLocked is Decrement for a caller that already holds the
// order's lock.
func (o *Order) DecrementLocked(qty uint64) {
	if qty > o.remaining {
		panic(QuantityUnderflow{ExchangeID: o.ExchangeID, Remaining: o.remaining, Requested: qty})
	}
	o.remaining -= qty
}

func (o *Order) String() string {
	return fmt.Sprintf(
		"Order{id=%d side=%s market=%v limitPrice=%d remaining=%d cancelled=%v ts=%d}",
		o.ExchangeID, o.Side, o.IsMarket, o.LimitPrice, o.Remaining(), o.Cancelled(), o.Timestamp,
	)
}
