package book

// SelfOrder is the bot's single resting order on one side of the book.
// Queue is the count of contracts resting ahead of it at Price, plus one:
// Queue == 1 means nothing executes before us at this level. Qty == 0
// means no order is resting on this side.
type SelfOrder struct {
	Price int
	Qty   int
	Queue int
}

// Active reports whether an order is actually resting.
func (o SelfOrder) Active() bool {
	return o.Qty > 0
}

// restingAt reports whether our order rests at exactly this price.
func (o SelfOrder) restingAt(price int) bool {
	return o.Active() && o.Price == price
}
