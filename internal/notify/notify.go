// Package notify announces engine events to a human operator.
package notify

import (
	"signal-engine/internal/models"
)

// Notifier receives engine lifecycle events. Implementations must be safe for
// concurrent use; callers invoke them from engine goroutines.
type Notifier interface {
	TradeAdmitted(trade models.ActiveTradeRecord, allocated float64, size int)
	TradeExited(symbol string, exitPrice float64)
	EngineAlert(message string)
}

// Nop is a Notifier that discards everything.
type Nop struct{}

func (Nop) TradeAdmitted(models.ActiveTradeRecord, float64, int) {}
func (Nop) TradeExited(string, float64)                          {}
func (Nop) EngineAlert(string)                                   {}
