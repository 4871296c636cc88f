// blinker toggles an output pin at a fixed period until stopped.
package blinker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bsm/openmetrics"
	"github.com/rs/zerolog/log"

	"github.com/yvesf/pigpio-tool/pkg/pigpio"
	"github.com/yvesf/pigpio-tool/pkg/timemock"
)

// DefaultPeriod is the time between two level changes.
const DefaultPeriod = 200 * time.Millisecond

var metricBlinkerRunning = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
	Name:   "blinker_running",
	Unit:   "state",
	Help:   "1 while the blinker is toggling the pin",
	Labels: []string{"gpio"},
})

// Writer drives a pin. Both pigpio.Client and the local backend are writers.
type Writer interface {
	Write(ctx context.Context, gpio uint, level pigpio.Level) error
}

type Blinker struct {
	// configuration:
	writer Writer
	gpio   uint
	period time.Duration
	// state:
	mutex  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{} // closed when the running loop returned
	last   chan struct{} // done of the most recent loop, running or stopping
}

func New(writer Writer, gpio uint, period time.Duration) *Blinker {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Blinker{
		writer: writer,
		gpio:   gpio,
		period: period,
	}
}

func (b *Blinker) Running() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.cancel != nil
}

// Start begins blinking unless already running. Blinking ends on Stop,
// Toggle or when ctx is done. It returns whether a new loop was started.
func (b *Blinker) Start(ctx context.Context) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.cancel != nil {
		return false
	}
	b.startLocked(ctx)
	return true
}

// Toggle starts blinking when stopped and stops it otherwise. Unlike Stop it
// does not wait for the final OFF write, so it can be called from a
// callback. It returns whether the blinker is running afterwards.
func (b *Blinker) Toggle(ctx context.Context) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.cancel == nil {
		b.startLocked(ctx)
		return true
	}
	log.Info().Uint("gpio", b.gpio).Msg("Stop Blinking")
	b.stopLocked()
	return false
}

// Stop ends blinking and waits until the pin was switched off.
func (b *Blinker) Stop() {
	b.mutex.Lock()
	if b.cancel != nil {
		log.Info().Uint("gpio", b.gpio).Msg("Stop Blinking")
		b.stopLocked()
	}
	last := b.last
	b.mutex.Unlock()

	if last != nil {
		<-last
	}
}

func (b *Blinker) startLocked(ctx context.Context) {
	log.Info().Uint("gpio", b.gpio).Dur("period", b.period).Msg("Start Blinking")
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	prev := b.last
	b.cancel, b.done, b.last = cancel, done, done
	go b.run(ctx, prev, done)
}

func (b *Blinker) stopLocked() {
	b.cancel()
	b.cancel, b.done = nil, nil
}

func (b *Blinker) run(ctx context.Context, prev, done chan struct{}) {
	defer close(done)
	defer func() {
		b.mutex.Lock()
		if b.done == done {
			b.stopLocked()
		}
		b.mutex.Unlock()
	}()

	// a stopping loop still has to write its OFF
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return
		}
	}

	gauge := metricBlinkerRunning.With(strconv.Itoa(int(b.gpio)))
	gauge.Set(1)
	defer gauge.Set(0)

	ticker := timemock.NewTicker(b.period)
	defer ticker.Stop()

	isOn := true
	for {
		level := pigpio.Off
		if isOn {
			level = pigpio.On
		}
		if err := b.writer.Write(ctx, b.gpio, level); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Uint("gpio", b.gpio).Stringer("level", level).Msg("blink write failed")
		}
		isOn = !isOn

		select {
		case <-ctx.Done():
			b.switchOff()
			return
		case <-ticker.C():
		}
	}
}

func (b *Blinker) switchOff() {
	ctx, cancel := context.WithTimeout(context.Background(), pigpio.DefaultTimeout)
	defer cancel()
	if err := b.writer.Write(ctx, b.gpio, pigpio.Off); err != nil {
		log.Error().Err(err).Uint("gpio", b.gpio).Msg("failed to switch off")
	}
}
