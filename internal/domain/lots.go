package domain

import "math"

// lot is a slice of quantity acquired at a single entry price.
type lot struct {
	qty   float64
	price float64
}

// lotQueue tracks the open lots of one (market, side) key in event order.
// OPEN events enqueue; CLOSE events consume from the head, oldest first.
type lotQueue struct {
	lots []lot
}

// open enqueues a lot.
func (q *lotQueue) open(qty, price float64) {
	q.lots = append(q.lots, lot{qty: qty, price: price})
}

// close consumes up to qty units from the oldest lots at the given price
// and returns the realized P&L of the matched portion. Quantity beyond the
// remaining open units is dropped without effect: an over-close is
// tolerated, not an error.
func (q *lotQueue) close(qty, price float64) float64 {
	realized := 0.0
	remaining := qty
	for remaining > 0 && len(q.lots) > 0 {
		head := &q.lots[0]
		matched := math.Min(remaining, head.qty)
		realized += matched * (price - head.price)
		remaining -= matched
		if matched >= head.qty {
			q.lots = q.lots[1:]
		} else {
			head.qty -= matched
		}
	}
	return realized
}

// quantity returns the units remaining across all lots.
func (q *lotQueue) quantity() float64 {
	total := 0.0
	for _, l := range q.lots {
		total += l.qty
	}
	return total
}

// cost returns the entry cost of the remaining lots.
func (q *lotQueue) cost() float64 {
	total := 0.0
	for _, l := range q.lots {
		total += l.qty * l.price
	}
	return total
}

// avgPrice returns the weighted average entry price of the remaining lots,
// or 0 when the queue is empty.
func (q *lotQueue) avgPrice() float64 {
	qty := q.quantity()
	if qty <= 0 {
		return 0
	}
	return q.cost() / qty
}
