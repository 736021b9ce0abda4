package jbod

import (
	"time"

	"github.com/pior/jbod/wire"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards exchanges with a server.
// *gobreaker.CircuitBreaker[wire.Response] satisfies it.
type CircuitBreaker interface {
	Execute(req func() (wire.Response, error)) (wire.Response, error)
	State() gobreaker.State
}

var _ CircuitBreaker = (*gobreaker.CircuitBreaker[wire.Response])(nil)

// NewCircuitBreakerConfig returns a function that creates circuit breakers for servers.
//
// The breaker trips when at least 3 requests were seen and 60% of them failed.
// Failures reported by the server itself (wire.ProtocolError) count as
// successes: the server answered, the operation was refused.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: isBreakerSuccess,
		}
		return gobreaker.NewCircuitBreaker[wire.Response](settings)
	}
}

func isBreakerSuccess(err error) bool {
	kind := ErrorKind(err)
	return kind == KindNone || kind == KindProtocol
}
