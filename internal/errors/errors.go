// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrPermitTimeout      = errors.New("permit not granted within wait budget")
	ErrInterrupted        = errors.New("wait cancelled")
	ErrSelectionRejected  = errors.New("signal rejected by selector")
	ErrTradeActive        = errors.New("a trade is already active")
	ErrAllocationRejected = errors.New("allocation rejected")
	ErrSectorExposure     = errors.New("sector exposure cap exceeded")
	ErrMaxTradesReached   = errors.New("maximum simultaneous trades reached")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrNotFound           = errors.New("record not found")
	ErrStalePrediction    = errors.New("prediction is stale")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrCircuitOpen        = errors.New("circuit breaker is open")
)

// AllocationError describes a rejected capital reservation.
type AllocationError struct {
	TradeID string
	Sector  string
	Current float64
	Limit   float64
	Err     error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocation rejected [%s] sector %s: current %.2f, limit %.2f: %v",
		e.TradeID, e.Sector, e.Current, e.Limit, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// NewAllocationError creates a new AllocationError.
func NewAllocationError(tradeID, sector string, current, limit float64, err error) *AllocationError {
	return &AllocationError{
		TradeID: tradeID,
		Sector:  sector,
		Current: current,
		Limit:   limit,
		Err:     err,
	}
}

// PersistenceError describes a failed store operation.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error [%s] %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(op, key string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Key: key, Err: err}
}

// SelectionError describes why a signal was not admitted.
type SelectionError struct {
	SignalID string
	Symbol   string
	Reason   string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("selection rejected [%s] %s: %s", e.SignalID, e.Symbol, e.Reason)
}

// NewSelectionError creates a new SelectionError.
func NewSelectionError(signalID, symbol, reason string) *SelectionError {
	return &SelectionError{SignalID: signalID, Symbol: symbol, Reason: reason}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
