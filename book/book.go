// Package book implements one side (BUY or SELL) of the order book: a
// priority-ordered multiset of live Orders plus a secondary index from
// exchange-id to the order, coupled by the book's insertion and sweep
// invariants.
package book

import (
	"errors"
	"sync"

	"github.com/tidwall/btree"

	"github.com/kestrel-markets/auctionengine/order"
)

// ErrDuplicateOrder is returned by Insert when an order with the same
// ExchangeID is already indexed in this Book, live or not-yet-swept.
var ErrDuplicateOrder = errors.New("book: duplicate exchange id")

// orders is the ordered primary container, keyed by the full priority
// tuple so that ascending iteration yields orders in priority order (best
// first). Two distinct live orders are never comparator-equal: ExchangeID
// breaks any remaining tie, which also makes every element independently
// addressable for Delete.
type orderSet = btree.BTreeG[*order.Order]

// Book is one side of the book for a single instrument.
//
// Locking surface: index_lock (idxMu) guards the exchange-id -> *Order
// map; structure_lock (structMu) guards the priority-ordered btree.
// Writers (Insert, Sweep) acquire idxMu then structMu, always in that
// order, to prevent an ABBA deadlock against any other writer that might
// otherwise take the two locks in the opposite order. CancelByID and
// Lookup take only idxMu; CancelByID then changes the order under the
// order's own lock. Readers (Ascend) take only a shared structMu.
type Book struct {
	side string // "BUY" or "SELL", for logging only

	idxMu sync.Mutex
	index map[uint64]*order.Order

	structMu sync.RWMutex
	orders   *orderSet
}

// less implements the (is_market, price, timestamp) priority key: market
// orders first, then price favoring the side (higher for BUY, lower for
// SELL), then earlier timestamp first. Because market
// orders are stored with sentinel prices (order.MaxPrice for BUY, 0 for
// SELL), the price comparison alone already ranks market before limit at
// equal timestamps, but the explicit IsMarket check keeps the ordering
// correct even if a limit order is placed at exactly the sentinel price.
func less(buySide bool) func(a, b *order.Order) bool {
	return func(a, b *order.Order) bool {
		if a.IsMarket != b.IsMarket {
			return a.IsMarket // market sorts first
		}
		if a.LimitPrice != b.LimitPrice {
			if buySide {
				return a.LimitPrice > b.LimitPrice
			}
			return a.LimitPrice < b.LimitPrice
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp // earlier arrival first
		}
		return a.ExchangeID < b.ExchangeID
	}
}

// NewBuyBook returns an empty BUY-side Book (highest price first).
func NewBuyBook() *Book {
	return &Book{side: "BUY", index: make(map[uint64]*order.Order), orders: btree.NewBTreeG(less(true))}
}

// NewSellBook returns an empty SELL-side Book (lowest price first).
func NewSellBook() *Book {
	return &Book{side: "SELL", index: make(map[uint64]*order.Order), orders: btree.NewBTreeG(less(false))}
}

// Side reports which side this Book holds, for diagnostics.
func (b *Book) Side() string { return b.side }

// Insert adds a new order to the book. It rejects re-insertion of an
// exchange-id already present, even if the existing entry is terminal but
// not yet swept: exchange-ids must stay unique within a book until a
// sweep actually removes the old entry.
func (b *Book) Insert(o *order.Order) error {
	b.idxMu.Lock()
	defer b.idxMu.Unlock()

	if _, exists := b.index[o.ExchangeID]; exists {
		return ErrDuplicateOrder
	}

	b.structMu.Lock()
	b.orders.Set(o)
	b.structMu.Unlock()

	b.index[o.ExchangeID] = o
	return nil
}

// CancelByID locates the order via the secondary index, acquires its
// per-order lock and sets its cancelled flag. Returns whether the order
// was live at the moment of cancellation (the Engine maps this straight
// to cancel_ack/cancel_reject) and whether an order with that id exists
// at all.
func (b *Book) CancelByID(exchangeID uint64) (wasLive bool, found bool) {
	b.idxMu.Lock()
	o, found := b.index[exchangeID]
	b.idxMu.Unlock()
	if !found {
		return false, false
	}
	return o.Cancel(), true
}

// Lookup returns the order for an exchange-id, if present (live or not
// yet swept).
func (b *Book) Lookup(exchangeID uint64) (*order.Order, bool) {
	b.idxMu.Lock()
	defer b.idxMu.Unlock()
	o, ok := b.index[exchangeID]
	return o, ok
}

// Sweep removes every terminal (exhausted or cancelled) order from both
// the primary ordering and the secondary index. It holds exclusive access
// to both for its duration.
func (b *Book) Sweep() (removed int) {
	b.idxMu.Lock()
	defer b.idxMu.Unlock()
	b.structMu.Lock()
	defer b.structMu.Unlock()

	var dead []*order.Order
	b.orders.Scan(func(o *order.Order) bool {
		if o.Terminal() {
			dead = append(dead, o)
		}
		return true
	})
	for _, o := range dead {
		b.orders.Delete(o)
		delete(b.index, o.ExchangeID)
		removed++
	}
	return removed
}

// Ascend iterates the book's orders in priority order (best first),
// calling fn for each, including terminal orders not yet removed by
// Sweep. Iteration stops early if fn returns false. Ascend takes only
// a shared lock on the primary ordering: individual orders may change
// state concurrently and must be examined under their own lock.
func (b *Book) Ascend(fn func(o *order.Order) bool) {
	b.structMu.RLock()
	defer b.structMu.RUnlock()
	b.orders.Scan(fn)
}

// Len returns the number of entries currently indexed (including any not
// yet swept terminal orders).
func (b *Book) Len() int {
	b.idxMu.Lock()
	defer b.idxMu.Unlock()
	return len(b.index)
}

// FirstLastLimit returns the first and last limit (non-market) orders in
// priority order, used by the MarketPriceEstimator to build its demand or
// supply line. ok is false if the book holds no limit orders.
func (b *Book) FirstLastLimit() (first, last *order.Order, ok bool) {
	b.structMu.RLock()
	defer b.structMu.RUnlock()

	b.orders.Scan(func(o *order.Order) bool {
		if o.IsMarket {
			return true
		}
		if first == nil {
			first = o
		}
		last = o
		return true
	})
	return first, last, first != nil
}
