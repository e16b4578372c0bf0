package channel

import (
	"math"
	"math/rand"
	"time"
)

// reconnector computes capped, jittered exponential backoff for the
// channel's reconnection loop. Attempts are bounded so a dead backend
// is not hammered forever; a connection that stayed up for a minute
// resets the counter.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector() *reconnector {
	return &reconnector{
		baseDelay:   time.Second,
		maxDelay:    30 * time.Second,
		maxAttempts: 20,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}
