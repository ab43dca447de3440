package book

// levels is one side's price → aggregate resting quantity map. A price is
// present iff its quantity is positive; presence is used as a depth test
// elsewhere, so every mutation goes through add/reduce, which delete a key
// exactly when it reaches zero.
type levels map[int]int

// add increments the quantity at price, creating the level if absent.
func (l levels) add(price, qty int) {
	if qty <= 0 {
		return
	}
	l[price] += qty
}

// reduce removes up to qty from the level at price, clamping at zero, and
// returns the quantity actually removed. The level is deleted when empty.
func (l levels) reduce(price, qty int) int {
	cur, ok := l[price]
	if !ok || qty <= 0 {
		return 0
	}
	removed := qty
	if removed > cur {
		removed = cur
	}
	if removed == cur {
		delete(l, price)
	} else {
		l[price] = cur - removed
	}
	return removed
}

// maxPrice returns the highest price present (best bid ordering).
func (l levels) maxPrice() (int, bool) {
	if len(l) == 0 {
		return 0, false
	}
	best := -1
	for p := range l {
		if p > best {
			best = p
		}
	}
	return best, true
}

// minPrice returns the lowest price present (best ask ordering).
func (l levels) minPrice() (int, bool) {
	if len(l) == 0 {
		return 0, false
	}
	best := -1
	for p := range l {
		if best == -1 || p < best {
			best = p
		}
	}
	return best, true
}

// depth returns the quantity at price, zero when the level is absent.
func (l levels) depth(price int) int {
	return l[price]
}

// total returns the summed quantity across all levels.
func (l levels) total() int {
	sum := 0
	for _, q := range l {
		sum += q
	}
	return sum
}
