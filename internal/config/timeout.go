package config

import "time"

// TimeoutConfig holds the four independent deadlines of a connection. A zero
// value for any of them means "no deadline".
type TimeoutConfig struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration

	// PoolAcquire is not consumed by connections directly, it is carried so
	// that a pool can share the same configuration object.
	PoolAcquire time.Duration
}

var DefaultTimeoutConfig = TimeoutConfig{
	Connect: 5 * time.Second,
	Read:    5 * time.Second,
	Write:   5 * time.Second,
}

// Deadline turns a relative timeout into an absolute deadline, zero when
// there is no timeout.
func Deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
