package models

import "time"

// SignalType represents the direction of a candidate signal.
type SignalType string

const (
	SignalLong  SignalType = "LONG"
	SignalShort SignalType = "SHORT"
)

// Confidence represents the confidence tier assigned by the strategy engine.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// CandidateSignal is a proposed trade awaiting selection.
type CandidateSignal struct {
	ID         string
	Symbol     string
	Strategy   string
	Type       SignalType
	EntryPrice float64
	StopLoss   float64
	Target1    float64
	Target2    float64
	Target3    float64
	RiskReward float64
	Confidence Confidence
	QueuedAt   time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the signal has passed its expiry at the given instant.
func (s CandidateSignal) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AgeMinutes returns how long the signal has been queued, in minutes.
func (s CandidateSignal) AgeMinutes(now time.Time) float64 {
	return now.Sub(s.QueuedAt).Minutes()
}

// TradeStatus represents the lifecycle state of an admitted trade.
type TradeStatus string

const (
	TradeWaitingForEntry TradeStatus = "WAITING_FOR_ENTRY"
	TradeEntered         TradeStatus = "ENTERED"
	TradeExited          TradeStatus = "EXITED"
)

// ActiveTradeRecord is the record created when the selector admits a winner.
type ActiveTradeRecord struct {
	TradeID    string
	Symbol     string
	Strategy   string
	Type       SignalType
	SignalTime time.Time
	EntryPrice float64
	StopLoss   float64
	Target1    float64
	Target2    float64
	Target3    float64
	Status     TradeStatus
}
