package domain

// Side is one side of the binary contract book: Bid (buy "yes") or
// Ask (buy "no", quoted as 100 - no price).
type Side int

const (
	Bid Side = iota
	Ask
)

// String devuelve "B" o "A", el mismo encoding que usa el replay file.
func (s Side) String() string {
	if s == Bid {
		return "B"
	}
	return "A"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// Outcome is the settlement side of the binary contract.
type Outcome int

const (
	Yes Outcome = iota
	No
)

func (o Outcome) String() string {
	if o == Yes {
		return "YES"
	}
	return "NO"
}

const (
	// MinPrice and MaxPrice bound valid contract prices in cents.
	// Orders at 0 or 100 have no market-maker semantics: the contract
	// settles at exactly those values.
	MinPrice = 1
	MaxPrice = 99
)

// ValidPrice reports whether p is a tradeable contract price.
func ValidPrice(p int) bool {
	return p >= MinPrice && p <= MaxPrice
}

// NoPrice converts between an ask-side book price and the equivalent
// "no" contract price. The mapping is its own inverse.
func NoPrice(askPrice int) int {
	return 100 - askPrice
}
