// Package engine is the public surface of the matching engine: it owns
// both order books, the transaction history, the market-price estimate
// and the background sweeper, and routes place/cancel/query operations
// across them.
package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/kestrel-markets/auctionengine/book"
	"github.com/kestrel-markets/auctionengine/history"
	"github.com/kestrel-markets/auctionengine/marketprice"
	"github.com/kestrel-markets/auctionengine/match"
	"github.com/kestrel-markets/auctionengine/order"
	"github.com/kestrel-markets/auctionengine/trader"
)

// DefaultSweepInterval is how often the background sweeper wakes.
const DefaultSweepInterval = 5 * time.Second

// PlaceRequest is the caller-supplied order, before the engine assigns it
// an arrival timestamp and inserts it into a book.
type PlaceRequest struct {
	Client     *trader.Trader
	ExchangeID uint64
	Side       order.Side
	IsMarket   bool
	LimitPrice uint64
	Quantity   uint64
}

// Engine is the single-instrument continuous-auction matching engine.
type Engine struct {
	buys  *book.Book
	sells *book.Book
	hist  *history.History

	marketPrice atomic.Uint64 // 0 until first estimate; readable lock-free

	clock Clock
	log   zerolog.Logger

	sweepInterval time.Duration
	t             *tomb.Tomb
}

// New constructs an Engine with the default counter Clock and a 5 second
// sweep interval, and starts its background sweeper.
func New() *Engine {
	return NewWithClock(NewCounterClock())
}

// NewWithClock constructs an Engine using the given Clock, for
// deterministic tests, and starts its background sweeper.
func NewWithClock(clock Clock) *Engine {
	e := &Engine{
		buys:          book.NewBuyBook(),
		sells:         book.NewSellBook(),
		hist:          history.New(),
		clock:         clock,
		log:           log.With().Str("component", "engine").Logger(),
		sweepInterval: DefaultSweepInterval,
	}
	e.startSweeper()
	return e
}

// Close terminates the background sweeper and waits for it to exit. A
// cancel on an in-flight sweep takes effect on the sweeper's next loop
// iteration; Close blocks until that iteration observes the kill signal
// and returns.
func (e *Engine) Close() {
	e.t.Kill(nil)
	_ = e.t.Wait()
}

func (e *Engine) bookFor(side order.Side) (own, opposite *book.Book) {
	if side == order.Buy {
		return e.buys, e.sells
	}
	return e.sells, e.buys
}

// Place inserts req into its own-side book, refreshes the market-price
// estimate, and attempts to match it against the opposite book in
// priority order.
func (e *Engine) Place(req PlaceRequest) (Response, error) {
	correlation := uuid.New().String()
	logger := e.log.With().Str("correlation_id", correlation).Uint64("exchange_id", req.ExchangeID).Logger()

	ts := e.clock.Now()
	o := order.New(req.Client, req.ExchangeID, req.Side, req.IsMarket, req.LimitPrice, req.Quantity)
	o.Timestamp = ts

	own, opposite := e.bookFor(req.Side)
	if err := own.Insert(o); err != nil {
		logger.Debug().Err(err).Msg("order rejected: duplicate exchange id")
		return NewOrderReject, ErrDuplicateOrder
	}

	e.refreshMarketPrice()
	price := e.marketPrice.Load()

	trades := e.sweepMatch(o, opposite, price, &logger)
	logger.Debug().Int("trades", trades).Msg("order placed")

	return NewOrderAck, nil
}

// sweepMatch iterates the opposite book in priority order, matching o
// against each candidate until o is exhausted or the opposite book is
// exhausted. It returns the number of transactions recorded.
//
// The opposite book's Ascend order ranks every market order ahead of every
// limit order (Book.less), but a resting market order's effective price is
// whatever the current marketPrice happens to be, not a sentinel that is
// monotonic with the rest of the scan. So the price-crossing early-exit
// below only fires once the scan has moved past that market-order prefix
// and into the limit-order suffix, where candidates really are ordered by
// effective price; a market candidate is always matched-or-skipped without
// ever truncating the scan, since its non-match says nothing about whether
// a later limit order still crosses.
func (e *Engine) sweepMatch(o *order.Order, opposite *book.Book, marketPrice uint64, logger *zerolog.Logger) int {
	recorded := 0
	oPrice := match.EffectivePrice(o, marketPrice)

	opposite.Ascend(func(candidate *order.Order) bool {
		if o.Remaining() == 0 {
			return false
		}
		if candidate.Remaining() == 0 {
			return true // not yet swept; skip and keep scanning
		}

		if !candidate.IsMarket {
			cPrice := match.EffectivePrice(candidate, marketPrice)
			if o.Side == order.Buy {
				if oPrice < cPrice {
					return false // in the limit suffix now: no later candidate crosses either
				}
			} else {
				if oPrice > cPrice {
					return false // in the limit suffix now: no later candidate crosses either
				}
			}
		}

		tx := match.Match(o, candidate, marketPrice)
		if !tx.Empty() {
			e.hist.Append(tx)
			recorded++
			logger.Debug().
				Uint64("seller", tx.ExchangeIDSeller).
				Uint64("buyer", tx.ExchangeIDBuyer).
				Uint64("qty", tx.SoldQuantity).
				Uint64("price", tx.Price).
				Msg("trade executed")
		}
		return true
	})

	return recorded
}

// refreshMarketPrice recomputes and atomically publishes the market-price
// estimate from both books' current limit orders. If either line is
// missing or the lines are parallel, the previous estimate is left in
// place.
func (e *Engine) refreshMarketPrice() {
	bFirst, bLast, bOK := e.buys.FirstLastLimit()
	sFirst, sLast, sOK := e.sells.FirstLastLimit()

	price, ok := marketprice.Estimate(bFirst, bLast, bOK, sFirst, sLast, sOK)
	if !ok {
		return
	}
	e.marketPrice.Store(price)
}

// MarketPrice returns the current market-price estimate, readable without
// any lock since it is a single atomic scalar.
func (e *Engine) MarketPrice() uint64 {
	return e.marketPrice.Load()
}

// Cancel flips the cancel flag on the order identified by exchangeID on
// the given side.
func (e *Engine) Cancel(exchangeID uint64, side order.Side) (Response, error) {
	b, _ := e.bookFor(side)
	wasLive, found := b.CancelByID(exchangeID)
	if !found {
		return CancelReject, ErrUnknownOrder
	}
	if !wasLive {
		return CancelReject, nil
	}
	return CancelAck, nil
}

// StateOf reports the current lifecycle state of an order on the given
// side.
func (e *Engine) StateOf(exchangeID uint64, side order.Side) OrderState {
	b, _ := e.bookFor(side)
	o, found := b.Lookup(exchangeID)
	if !found {
		return OrderUnknown
	}
	if o.Cancelled() {
		return OrderCancelled
	}
	if o.Remaining() == 0 {
		return OrderFilled
	}
	return OrderLive
}

// LastTransaction returns the most recently recorded transaction, or the
// empty Transaction if none has been recorded.
func (e *Engine) LastTransaction() history.Transaction {
	return e.hist.Last()
}

// LastTransactions returns up to n most-recently-recorded transactions,
// in chronological order (oldest first, most recent last).
func (e *Engine) LastTransactions(n int) []history.Transaction {
	return e.hist.LastN(n)
}

// Snapshot renders a human-readable, unstable-format view of both books.
func (e *Engine) Snapshot() string {
	var sb strings.Builder

	render := func(name string, b *book.Book) {
		fmt.Fprintf(&sb, "%s (%d orders):\n", name, b.Len())
		b.Ascend(func(o *order.Order) bool {
			if o.Terminal() {
				return true
			}
			fmt.Fprintf(&sb, "  %s\n", o)
			return true
		})
	}

	fmt.Fprintf(&sb, "market price estimate: %d\n", e.MarketPrice())
	render("BUY", e.buys)
	render("SELL", e.sells)
	return sb.String()
}
