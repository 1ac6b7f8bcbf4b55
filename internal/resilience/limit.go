package resilience

import "golang.org/x/time/rate"

// NewLimiter allows rps requests per second with a burst of one second's
// worth, at least one.
func NewLimiter(rps float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
}
