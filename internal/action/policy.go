package action

import "time"

// DefaultRetryCap is the suggested retry cap from the retry/backoff policy.
const DefaultRetryCap = 5

// maxIdleInterval bounds backoff growth so a persistently failing file
// cannot push its own re-arm interval out indefinitely.
const maxIdleInterval = time.Hour

// GrowIdleInterval doubles the interval between retries, capped at an
// hour. The policy only requires that the interval increase monotonically
// between retries; doubling is one of the two formulas the original
// implementation uses.
func GrowIdleInterval(current time.Duration) time.Duration {
	if current <= 0 {
		current = time.Second
	}
	grown := current * 2
	if grown > maxIdleInterval {
		grown = maxIdleInterval
	}
	return grown
}
