// Package match implements the pure two-order matching primitive: given a
// buy order, a sell order and a market-price hint, it either produces a
// Transaction and mutates both orders' remaining quantity and both
// traders' balances, or produces no-trade.
package match

import (
	"github.com/kestrel-markets/auctionengine/history"
	"github.com/kestrel-markets/auctionengine/order"
)

// EffectivePrice is the price a matcher uses for crossing and pricing
// purposes: the order's own limit price, or marketPrice if it is a
// market order. Exposed so callers (Engine's book-iteration loops) can
// apply the same crossing test Match uses internally without duplicating
// the matching loop itself.
func EffectivePrice(o *order.Order, marketPrice uint64) uint64 {
	if o.IsMarket {
		return marketPrice
	}
	return o.LimitPrice
}

// Match attempts to match a and b, one of which must be a BUY and the
// other a SELL. marketPrice is the engine's current market-price estimate,
// used as the effective price for any market order. It returns the empty
// Transaction for every no-trade case: same side, self-trade, zero
// remaining quantity, non-crossing prices, a zero mid-price, either
// order being cancelled by the time its lock is acquired, or a buyer
// whose balance cannot pay for a single unit at the mid-price.
func Match(a, b *order.Order, marketPrice uint64) history.Transaction {
	if a.Side == b.Side {
		return history.Transaction{}
	}

	var buy, sell *order.Order
	if a.Side == order.Buy {
		buy, sell = a, b
	} else {
		buy, sell = b, a
	}

	if sell.Client == buy.Client {
		return history.Transaction{} // no self-trade
	}
	if buy.Remaining() == 0 || sell.Remaining() == 0 {
		return history.Transaction{}
	}

	buyPrice := EffectivePrice(buy, marketPrice)
	sellPrice := EffectivePrice(sell, marketPrice)
	if buyPrice < sellPrice {
		return history.Transaction{} // no crossing
	}

	// Fixed global lock order: lower exchange-id first, to prevent AB/BA
	// deadlock between concurrent matchers handling the same two orders
	// in opposite roles.
	first, second := buy, sell
	if sell.ExchangeID < buy.ExchangeID {
		first, second = sell, buy
	}
	first.Lock()
	defer first.Unlock()
	second.Lock()
	defer second.Unlock()

	if buy.CancelledLocked() || sell.CancelledLocked() {
		return history.Transaction{}
	}

	price := (buyPrice + sellPrice) / 2
	if price == 0 {
		return history.Transaction{}
	}

	for {
		maxQty := min(sell.RemainingLocked(), buy.RemainingLocked())
		if maxQty == 0 {
			return history.Transaction{}
		}

		affordableQty := buy.Client.Balance() / price
		qty := min(maxQty, affordableQty)
		if qty == 0 {
			return history.Transaction{}
		}

		if !buy.Client.Debit(qty * price) {
			// Buyer's balance moved under us between the quote above and
			// the debit; requote against the new, smaller balance rather
			// than failing the whole match.
			continue
		}

		sell.Client.Credit(qty * price)
		buy.DecrementLocked(qty)
		sell.DecrementLocked(qty)

		return history.Transaction{
			ExchangeIDSeller: sell.ExchangeID,
			ExchangeIDBuyer:  buy.ExchangeID,
			SoldQuantity:     qty,
			Price:            price,
		}
	}
}
