package pigpio

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
)

// CallbackFunc receives the gpio, its new level (or Timeout) and the daemon
// tick in microseconds at which the change happened.
type CallbackFunc func(gpio uint, level Level, tick uint32)

// Callback is a registered edge handler.
type Callback struct {
	GPIO uint
	Edge Edge

	fn    CallbackFunc
	tally uint64

	cancelMutex sync.Mutex
	cancelled   bool
	cancel      func(context.Context) error
}

// NewCallback is used by Board implementations. cancel is run at most once,
// by the first successful call to Cancel.
func NewCallback(gpio uint, edge Edge, fn CallbackFunc, cancel func(context.Context) error) *Callback {
	return &Callback{
		GPIO:   gpio,
		Edge:   edge,
		fn:     fn,
		cancel: cancel,
	}
}

// Invoke counts the transition and runs the handler.
func (c *Callback) Invoke(level Level, tick uint32) {
	atomic.AddUint64(&c.tally, 1)
	metricCallbacks.With(strconv.Itoa(int(c.GPIO))).Add(1)
	if c.fn != nil {
		c.fn(c.GPIO, level, tick)
	}
}

// Tally returns the number of invocations since registration or the last
// ResetTally.
func (c *Callback) Tally() uint64 {
	return atomic.LoadUint64(&c.tally)
}

func (c *Callback) ResetTally() {
	atomic.StoreUint64(&c.tally, 0)
}

// Cancel unregisters the callback.
func (c *Callback) Cancel(ctx context.Context) error {
	c.cancelMutex.Lock()
	defer c.cancelMutex.Unlock()
	if c.cancelled || c.cancel == nil {
		return nil
	}
	if err := c.cancel(ctx); err != nil {
		return err
	}
	c.cancelled = true
	return nil
}
