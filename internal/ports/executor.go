package ports

import (
	"context"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

// OrderExecutor places and cancels real limit orders on the exchange.
type OrderExecutor interface {
	// PlaceLimitOrder submits a buy limit order for count contracts on
	// the given outcome side at price cents. clientID deduplicates
	// retries exchange-side. Returns the exchange order ID.
	PlaceLimitOrder(ctx context.Context, outcome domain.Outcome, price, count int, clientID string) (string, error)

	// CancelOrder cancels a resting order by exchange order ID.
	CancelOrder(ctx context.Context, orderID string) error

	// CancelAll cancels every open order we have in the market.
	CancelAll(ctx context.Context) error
}
