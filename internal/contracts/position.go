package contracts

import "time"

// Position is an open holding. Size is signed: positive is long,
// negative is short. A position is owned by exactly one strategy
// engine instance and never shared.
type Position struct {
	Symbol    string    `json:"symbol"`
	Size      float64   `json:"size"`
	AvgCost   float64   `json:"avg_cost"`
	EntryTime time.Time `json:"entry_time"`
}

// IsLong reports whether the position is long.
func (p *Position) IsLong() bool {
	return p.Size > 0
}

// IsShort reports whether the position is short.
func (p *Position) IsShort() bool {
	return p.Size < 0
}

// AbsSize returns the unsigned position size.
func (p *Position) AbsSize() float64 {
	if p.Size < 0 {
		return -p.Size
	}
	return p.Size
}

// ProfitPct returns the signed fractional return at the given price.
// A short position profits when price falls.
func (p *Position) ProfitPct(price float64) float64 {
	if p.AvgCost == 0 {
		return 0
	}
	pct := (price - p.AvgCost) / p.AvgCost
	if p.IsShort() {
		return -pct
	}
	return pct
}

// HoldingDuration returns how long the position has been open.
func (p *Position) HoldingDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// Balance is an account snapshot from the broker.
type Balance struct {
	Cash      float64   `json:"cash"`
	Equity    float64   `json:"equity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderType distinguishes market and limit orders
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus is the broker-reported state of an order
type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// OrderRequest is what the core hands to the broker.
type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Size       float64   `json:"size"`
	Type       OrderType `json:"type"`
	LimitPrice float64   `json:"limit_price,omitempty"`
}

// OrderResult is the broker's answer to an order request. A nil
// result signals a connection-level failure after retries; the core
// skips the symbol for the cycle.
type OrderResult struct {
	OrderID     string      `json:"order_id"`
	Status      OrderStatus `json:"status"`
	FilledSize  float64     `json:"filled_size"`
	FilledPrice float64     `json:"filled_price"`
	SubmittedAt time.Time   `json:"submitted_at"`
}
