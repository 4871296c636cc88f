// localgpio drives pins of a GPIO chip on the local machine through the
// Linux character device, offering the same operations as a pigpiod
// connection.
package localgpio

import (
	"errors"
	"sync"
	"time"

	"github.com/yvesf/pigpio-tool/pkg/pigpio"
)

var ErrNotSupported = errors.New("local gpio not supported on this platform")

// watchers holds the callbacks registered on a chip.
type watchers struct {
	mutex     sync.Mutex
	callbacks []*pigpio.Callback
}

func (w *watchers) add(cb *pigpio.Callback) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// remove returns how many callbacks remain on the gpio of cb.
func (w *watchers) remove(cb *pigpio.Callback) int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	remaining := 0
	for i := 0; i < len(w.callbacks); i++ {
		if w.callbacks[i] == cb {
			w.callbacks = append(w.callbacks[:i], w.callbacks[i+1:]...)
			i--
			continue
		}
		if w.callbacks[i].GPIO == cb.GPIO {
			remaining++
		}
	}
	return remaining
}

func (w *watchers) dispatch(gpio uint, level pigpio.Level, tick uint32) {
	w.mutex.Lock()
	cbs := append([]*pigpio.Callback(nil), w.callbacks...)
	w.mutex.Unlock()
	for _, cb := range cbs {
		if cb.GPIO == gpio && cb.Edge.Matches(level) {
			cb.Invoke(level, tick)
		}
	}
}

// tickOf converts a kernel event timestamp into a wrapping microsecond tick
// comparable with pigpio.TickDiff.
func tickOf(ts time.Duration) uint32 {
	return uint32(ts / time.Microsecond)
}
