package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"signal-engine/internal/models"
	"signal-engine/pkg/utils"
)

// TerminalNotifier prints engine events as human-readable lines, one per
// event. Suited to an operator tailing the engine in a terminal; structured
// logging stays on the logger.
type TerminalNotifier struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewTerminalNotifier creates a notifier writing to out.
func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: out, now: time.Now}
}

func (n *TerminalNotifier) printf(format string, args ...interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	stamp := n.now().In(utils.IndiaLocation).Format("15:04:05")
	fmt.Fprintf(n.out, "[%s] "+format+"\n", append([]interface{}{stamp}, args...)...)
}

// TradeAdmitted announces a newly admitted trade with its capital grant.
func (n *TerminalNotifier) TradeAdmitted(trade models.ActiveTradeRecord, allocated float64, size int) {
	n.printf("TRADE %s %s @ %.2f | qty %s | capital %s | stop %.2f",
		trade.Type, trade.Symbol, trade.EntryPrice,
		utils.FormatQuantity(size), utils.FormatIndianCurrency(allocated), trade.StopLoss)
}

// TradeExited announces a closed trade.
func (n *TerminalNotifier) TradeExited(symbol string, exitPrice float64) {
	n.printf("EXIT %s @ %.2f", symbol, exitPrice)
}

// EngineAlert announces an operational condition needing attention.
func (n *TerminalNotifier) EngineAlert(message string) {
	n.printf("ALERT %s", message)
}
