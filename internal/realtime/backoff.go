package realtime

import (
	"math"
	"time"
)

// Backoff computes reconnection delays that grow geometrically from Min
// up to Max.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
}

// DefaultBackoff matches the dashboard's reconnecting socket settings.
var DefaultBackoff = Backoff{Min: time.Second, Max: 10 * time.Second, Factor: 1.3}

// Delay returns the wait before reconnection attempt n (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Min) * math.Pow(factor, float64(attempt))
	if d > float64(b.Max) || math.IsInf(d, 0) {
		return b.Max
	}
	return time.Duration(d)
}
