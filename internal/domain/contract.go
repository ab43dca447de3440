package domain

// RangeContract is one daily index-range market: the contract settles YES
// when the final reference price lands inside [Lower, Upper], inclusive.
type RangeContract struct {
	Lower float64
	Upper float64
}

// Outcome resolves the contract against a reference price.
func (c RangeContract) Outcome(ref float64) Outcome {
	if ref >= c.Lower && ref <= c.Upper {
		return Yes
	}
	return No
}

// Contains is Outcome == Yes, kept for readability at call sites.
func (c RangeContract) Contains(ref float64) bool {
	return c.Outcome(ref) == Yes
}

// BoundsFromOpen derives the daily strike range from the session-open
// reference price: the enclosing 50-point band, upper bound exclusive by
// a cent so adjacent bands never overlap.
func BoundsFromOpen(open float64) RangeContract {
	lower := float64(int(open/50) * 50)
	return RangeContract{
		Lower: lower,
		Upper: lower + 50 - 0.01,
	}
}
