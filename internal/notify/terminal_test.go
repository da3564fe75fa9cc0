package notify

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signal-engine/internal/models"
)

func TestTerminalNotifierOutput(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminalNotifier(&buf)
	n.now = func() time.Time { return time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC) }

	n.TradeAdmitted(models.ActiveTradeRecord{
		TradeID:    "t1",
		Symbol:     "TCS",
		Type:       models.SignalLong,
		EntryPrice: 3500.5,
		StopLoss:   3480,
	}, 100000, 28)
	n.TradeExited("TCS", 3520.25)
	n.EngineAlert("order journal unavailable")

	out := buf.String()
	assert.Contains(t, out, "TRADE LONG TCS @ 3500.50")
	assert.Contains(t, out, "qty 28")
	assert.Contains(t, out, "capital ₹1,00,000.00")
	assert.Contains(t, out, "EXIT TCS @ 3520.25")
	assert.Contains(t, out, "ALERT order journal unavailable")
}
