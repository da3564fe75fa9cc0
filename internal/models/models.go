// Package models provides domain models for the execution engine.
package models

import "time"

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderMode represents how an order was placed.
type OrderMode string

const (
	OrderModeLive  OrderMode = "LIVE"
	OrderModePaper OrderMode = "PAPER"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Quote represents a market quote.
type Quote struct {
	Symbol        string
	LTP           float64
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        int64
	Change        float64
	ChangePercent float64
	Timestamp     time.Time
}

// PivotLevels holds classic pivot values derived from the previous session.
type PivotLevels struct {
	Pivot float64
	R1    float64
	R2    float64
	R3    float64
	S1    float64
	S2    float64
	S3    float64
}
