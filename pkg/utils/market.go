package utils

import "time"

// MarketStatus describes the NSE/BSE equity session state.
type MarketStatus string

const (
	MarketClosed  MarketStatus = "CLOSED"
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketOpen    MarketStatus = "OPEN"
)

// IndiaLocation is the timezone for Indian equity markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		IndiaLocation = time.FixedZone("IST", 5*3600+30*60)
	}
}

// MarketStatusAt returns the session state at the given instant. Regular
// session is 9:15 to 15:30 IST on weekdays, with pre-open from 9:00.
func MarketStatusAt(t time.Time) MarketStatus {
	local := t.In(IndiaLocation)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return MarketClosed
	}

	minutes := local.Hour()*60 + local.Minute()
	switch {
	case minutes >= 540 && minutes < 555:
		return MarketPreOpen
	case minutes >= 555 && minutes < 930:
		return MarketOpen
	default:
		return MarketClosed
	}
}

// IsMarketOpen reports whether the regular session is running at t.
func IsMarketOpen(t time.Time) bool {
	return MarketStatusAt(t) == MarketOpen
}
