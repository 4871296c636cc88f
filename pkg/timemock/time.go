// timemock is a thin wrapper over stdlib/time package that overloads a few
// functions to allow time manipulation in tests.
package timemock

import "time"

// Ticker delivers ticks on C like time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

var (
	Now       = time.Now
	After     = time.After
	Sleep     = time.Sleep
	NewTicker = func(d time.Duration) Ticker { return &ticker{time.NewTicker(d), 1} }
)

type ticker struct {
	t      *time.Ticker
	factor int
}

func (t *ticker) C() <-chan time.Time {
	return t.t.C
}

func (t *ticker) Reset(d time.Duration) {
	t.t.Reset(d / time.Duration(t.factor))
}

func (t *ticker) Stop() {
	t.t.Stop()
}

// TimeWarp makes time pass factor times faster until the returned function
// is called.
func TimeWarp(factor int) func() {
	start := time.Now()
	Now = func() time.Time {
		realNow := time.Now()
		return realNow.Add(realNow.Sub(start) * time.Duration(factor-1))
	}
	After = func(d time.Duration) <-chan time.Time {
		return time.After(d / time.Duration(factor))
	}
	Sleep = func(d time.Duration) {
		time.Sleep(d / time.Duration(factor))
	}
	NewTicker = func(d time.Duration) Ticker {
		return &ticker{time.NewTicker(d / time.Duration(factor)), factor}
	}
	return reset
}

func reset() {
	Now = time.Now
	After = time.After
	Sleep = time.Sleep
	NewTicker = func(d time.Duration) Ticker { return &ticker{time.NewTicker(d), 1} }
}
