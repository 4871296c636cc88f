package pigpio

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// notifier reads level change reports from the notification socket and
// dispatches them to the registered callbacks.
type notifier struct {
	conn   net.Conn
	handle uint32

	mutex     sync.Mutex
	callbacks []*Callback
	lastLevel uint32
	closing   bool
	err       error

	done chan struct{}
	wg   sync.WaitGroup
}

// openNotifier turns conn into an in-band notification stream.
func openNotifier(ctx context.Context, conn net.Conn, timeout time.Duration) (*notifier, error) {
	resp, err := exchange(ctx, conn, timeout, request{cmd: CommandNOIB})
	if err != nil {
		return nil, fmt.Errorf("failed to open notification handle: %w", err)
	}
	if resp.cmd != CommandNOIB {
		return nil, fmt.Errorf("NOIB received response for %v: %w", resp.cmd, ErrConnectionBroken)
	}
	if resp.status() < 0 {
		return nil, &Error{Cmd: CommandNOIB, Code: ErrorCode(resp.status())}
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return &notifier{
		conn:   conn,
		handle: resp.res,
		done:   make(chan struct{}),
	}, nil
}

func (n *notifier) start(levels uint32) {
	n.lastLevel = levels
	n.wg.Add(1)
	go n.run()
}

func (n *notifier) run() {
	defer n.wg.Done()
	defer close(n.done)

	buf := make([]byte, reportLen)
	for {
		_, err := io.ReadFull(n.conn, buf)
		if err != nil {
			n.mutex.Lock()
			if !n.closing {
				n.err = fmt.Errorf("notification stream: %w", err)
				log.Warn().Err(err).Msg("notification reader stopped")
			}
			n.mutex.Unlock()
			return
		}
		n.dispatch(parseReport(buf))
	}
}

func (n *notifier) dispatch(r Report) {
	metricNotifications.With().Add(1)

	if gpio, ok := r.Watchdog(); ok {
		log.Trace().Uint("gpio", gpio).Uint32("tick", r.Tick).Msg("watchdog timeout")
		for _, cb := range n.snapshot() {
			if cb.GPIO == gpio {
				cb.Invoke(Timeout, r.Tick)
			}
		}
		return
	}
	if r.Flags != 0 {
		log.Trace().Uint16("flags", r.Flags).Bool("alive", r.KeepAlive()).Bool("event", r.Event()).
			Msg("ignoring report")
		return
	}

	n.mutex.Lock()
	changed := r.Level ^ n.lastLevel
	n.lastLevel = r.Level
	n.mutex.Unlock()
	if changed == 0 {
		return
	}
	log.Trace().Uint16("seqno", r.Seqno).Uint32("tick", r.Tick).
		Str("changed", fmt.Sprintf("%032b", changed)).Msg("levels changed")

	for _, cb := range n.snapshot() {
		bit := uint32(1) << cb.GPIO
		if changed&bit == 0 {
			continue
		}
		level := Low
		if r.Level&bit != 0 {
			level = High
		}
		if cb.Edge.Matches(level) {
			cb.Invoke(level, r.Tick)
		}
	}
}

// snapshot lets callbacks register or cancel callbacks while being invoked.
func (n *notifier) snapshot() []*Callback {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]*Callback(nil), n.callbacks...)
}

// add returns the bitmask of monitored gpios including cb.
func (n *notifier) add(cb *Callback) uint32 {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.callbacks = append(n.callbacks, cb)
	return n.bits()
}

// remove returns the bitmask of the remaining monitored gpios.
func (n *notifier) remove(cb *Callback) (uint32, bool) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	for i := range n.callbacks {
		if n.callbacks[i] == cb {
			n.callbacks = append(n.callbacks[:i], n.callbacks[i+1:]...)
			return n.bits(), true
		}
	}
	return n.bits(), false
}

// bits must be called with mutex held.
func (n *notifier) bits() uint32 {
	var bits uint32
	for _, cb := range n.callbacks {
		bits |= 1 << cb.GPIO
	}
	return bits
}

func (n *notifier) Err() error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.err
}

// beginClose makes the reader treat the end of the stream as regular.
func (n *notifier) beginClose() {
	n.mutex.Lock()
	n.closing = true
	n.mutex.Unlock()
}

func (n *notifier) close() error {
	n.beginClose()
	err := n.conn.Close()
	n.wg.Wait()
	return err
}
