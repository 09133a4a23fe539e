// Package marketprice derives the engine's scalar market-price estimate
// from both order books. The estimate is deliberately approximate (not a
// true market-clearing price): it is the intersection
// of a "demand" line fit through the first and last limit BUY orders and
// a "supply" line fit through the first and last limit SELL orders, each
// using (quantity_remaining, limit_price) as (x, y).
package marketprice

import "github.com/kestrel-markets/auctionengine/order"

// Estimate computes the new market price from each book's first and last
// limit order (as returned by Book.FirstLastLimit). buyOK/sellOK are false
// when the respective book has no limit orders at all.
//
// It returns ok=false — leaving any existing estimate unchanged — when
// either side has no limit orders, or when the two fitted lines are
// parallel, including the degenerate case where a book's single limit
// order is used as both endpoints of its own line; that case is tolerated
// rather than rejected.
func Estimate(buyFirst, buyLast *order.Order, buyOK bool, sellFirst, sellLast *order.Order, sellOK bool) (price uint64, ok bool) {
	if !buyOK || !sellOK {
		return 0, false
	}

	// Line through two points (x1,y1)-(x2,y2) in general form A*x+B*y=C,
	// with A = y2-y1, B = x1-x2, C = A*x1 + B*y1. A degenerate pair (the
	// same order used for both endpoints) yields A=B=0, which forces the
	// determinant below to zero and so is tolerated as "no update".
	line := func(p1, p2 *order.Order) (a, b, c float64) {
		x1, y1 := float64(p1.Remaining()), float64(p1.LimitPrice)
		x2, y2 := float64(p2.Remaining()), float64(p2.LimitPrice)
		a = y2 - y1
		b = x1 - x2
		c = a*x1 + b*y1
		return
	}

	a1, b1, c1 := line(buyFirst, buyLast)   // demand
	a2, b2, c2 := line(sellFirst, sellLast) // supply

	det := a1*b2 - a2*b1
	if det == 0 {
		return 0, false
	}

	y := (a1*c2 - a2*c1) / det
	if y < 0 {
		return 0, false
	}
	return uint64(y), true
}
