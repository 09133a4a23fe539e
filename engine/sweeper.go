package engine

import (
	"time"

	tomb "gopkg.in/tomb.v2"

	"github.com/kestrel-markets/auctionengine/order"
)

// startSweeper launches the background maintenance task: every
// sweepInterval it removes terminal orders from both books and
// re-attempts matching across the whole book, to catch trades that
// became possible because a trader's balance changed out-of-band after
// their order first failed to match. tomb.Tomb gives a terminate-flag,
// wake, join lifecycle — Close calls t.Kill and t.Wait, and the loop
// below exits as soon as it observes t.Dying().
func (e *Engine) startSweeper() {
	e.t = new(tomb.Tomb)
	e.t.Go(func() error {
		ticker := time.NewTicker(e.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-e.t.Dying():
				return nil
			case <-ticker.C:
				e.sweepOnce()
			}
		}
	})
}

// sweepOnce performs one maintenance pass: garbage-collect both books,
// then run a full cross-book matching pass in priority order.
func (e *Engine) sweepOnce() {
	removedBuys := e.buys.Sweep()
	removedSells := e.sells.Sweep()
	if removedBuys > 0 || removedSells > 0 {
		e.log.Debug().Int("buys", removedBuys).Int("sells", removedSells).Msg("sweep: removed terminal orders")
	}

	e.refreshMarketPrice()
	price := e.marketPrice.Load()

	logger := e.log.With().Str("pass", "sweeper").Logger()
	e.buys.Ascend(func(buy *order.Order) bool {
		if buy.Remaining() == 0 {
			return true
		}
		e.sweepMatch(buy, e.sells, price, &logger)
		return true
	})
}
