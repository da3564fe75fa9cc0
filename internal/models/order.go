package models

import "time"

// OrderRecord is an immutable log entry for a recorded order.
type OrderRecord struct {
	OrderID   string    `json:"orderId"`
	Symbol    string    `json:"instrument"`
	Side      OrderSide `json:"side"`
	Quantity  int       `json:"qty"`
	Price     float64   `json:"price"`
	Mode      OrderMode `json:"mode"`
	Timestamp int64     `json:"timestampMillis"`
}

// PositionRecord is the authoritative per-instrument quantity and average price.
type PositionRecord struct {
	Symbol       string  `json:"instrument"`
	Quantity     int     `json:"qty"`
	AveragePrice float64 `json:"avgPrice"`
}

// TradeAllocation records the capital reserved for one active trade.
type TradeAllocation struct {
	TradeID          string
	Symbol           string
	Sector           string
	AllocatedCapital float64
	RiskAmount       float64
	PositionSize     int
	Active           bool
}

// Prediction is an ML model output read from the prediction store.
type Prediction struct {
	Symbol      string
	Direction   SignalType
	Probability float64
	GeneratedAt time.Time
}

// Fresh reports whether the prediction is younger than maxAge at the given instant.
func (p Prediction) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.GeneratedAt) <= maxAge
}
