package pigpio

import (
	"sync"
	"time"
)

// DefaultDebounce suits mechanical push buttons.
const DefaultDebounce = 200 * time.Millisecond

// TickDiff returns the time from start to end, two daemon ticks. Ticks are
// microseconds in a wrapping uint32.
func TickDiff(start, end uint32) time.Duration {
	return time.Duration(end-start) * time.Microsecond
}

// Debounce suppresses invocations of fn that follow the last passed
// invocation within threshold, measured in daemon ticks. The first
// invocation always passes.
func Debounce(threshold time.Duration, fn CallbackFunc) CallbackFunc {
	var (
		mutex sync.Mutex
		seen  bool
		last  uint32
	)
	return func(gpio uint, level Level, tick uint32) {
		mutex.Lock()
		if seen && TickDiff(last, tick) <= threshold {
			mutex.Unlock()
			return
		}
		seen = true
		last = tick
		mutex.Unlock()
		fn(gpio, level, tick)
	}
}
