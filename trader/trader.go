// Package trader holds the account side of the exchange: an identity plus
// a lock-free integer balance that Orders debit and credit as they match.
package trader

import "sync/atomic"

// Trader is a market participant's identity and balance. The balance is
// covered by none of the Book or Order locks: it is read, credited and
// debited via atomic compare-and-swap so matchers never need to hold a
// Trader lock while already holding book or order locks.
type Trader struct {
	id      uint64
	balance atomic.Uint64
}

// New returns a Trader with the given id and starting balance.
func New(id uint64, startingBalance uint64) *Trader {
	t := &Trader{id: id}
	t.balance.Store(startingBalance)
	return t
}

// ID returns the trader's immutable identifier.
func (t *Trader) ID() uint64 {
	return t.id
}

// Balance returns a snapshot of the current balance.
func (t *Trader) Balance() uint64 {
	return t.balance.Load()
}

// Credit unconditionally increases the balance by amount, saturating at
// the maximum representable value rather than wrapping.
func (t *Trader) Credit(amount uint64) {
	for {
		old := t.balance.Load()
		next := old + amount
		if next < old { // overflow
			next = ^uint64(0)
		}
		if t.balance.CompareAndSwap(old, next) {
			return
		}
	}
}

// Debit attempts to atomically subtract amount from the balance. It
// succeeds only if the balance is currently >= amount; on failure the
// balance is left unchanged. The debit is all-or-nothing: callers never
// observe a partially-applied debit.
func (t *Trader) Debit(amount uint64) bool {
	for {
		old := t.balance.Load()
		if old < amount {
			return false
		}
		if t.balance.CompareAndSwap(old, old-amount) {
			return true
		}
	}
}
