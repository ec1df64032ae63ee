package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a quantity-denominated investment position tracked against a
// weighted-average cost basis.
type Holding struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	AccountID string          `json:"account_id"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	// CurrentPrice is the latest known market price; zero means unknown,
	// in which case valuations fall back to AvgCost.
	CurrentPrice decimal.Decimal `json:"current_price,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MarketValue is quantity times current price, falling back to cost basis
// when no price has been fetched yet.
func (h *Holding) MarketValue() decimal.Decimal {
	price := h.CurrentPrice
	if price.IsZero() {
		price = h.AvgCost
	}
	return h.Quantity.Mul(price)
}

type HoldingChange struct {
	HoldingID        string          `json:"holding_id"`
	HoldingName      string          `json:"holding_name"`
	PreviousQuantity decimal.Decimal `json:"previous_quantity"`
	NewQuantity      decimal.Decimal `json:"new_quantity"`
	QuantityChange   decimal.Decimal `json:"quantity_change"`
	AvgCost          decimal.Decimal `json:"avg_cost"`
}
