//go:build linux

package localgpio

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/gpiod"

	"github.com/yvesf/pigpio-tool/pkg/pigpio"
)

type line struct {
	mode  pigpio.Mode
	pull  pigpio.Pull
	value pigpio.Level
	watch bool
	l     *gpiod.Line
}

// Chip implements pigpio.Board on a local gpiochip. Lines are requested on
// first use and requested again whenever their configuration changes.
type Chip struct {
	name string
	chip *gpiod.Chip

	mutex    sync.Mutex
	lines    map[uint]*line
	watchers watchers
}

var _ pigpio.Board = (*Chip)(nil)

func Open(name string) (*Chip, error) {
	chip, err := gpiod.NewChip(name, gpiod.WithConsumer("pigpio-tool"))
	if err != nil {
		return nil, fmt.Errorf("failed to open %v: %w", name, err)
	}
	log.Debug().Str("chip", name).Int("lines", chip.Lines()).Msg("opened gpio chip")
	return &Chip{
		name:  name,
		chip:  chip,
		lines: map[uint]*line{},
	}, nil
}

// lineLocked returns the line state for gpio, an input by default.
func (c *Chip) lineLocked(gpio uint) (*line, error) {
	if int(gpio) >= c.chip.Lines() {
		return nil, fmt.Errorf("gpio %d not on %v: %w", gpio, c.name, pigpio.ErrInvalidGPIO)
	}
	ln, ok := c.lines[gpio]
	if !ok {
		ln = &line{mode: pigpio.ModeInput}
		c.lines[gpio] = ln
	}
	return ln, nil
}

func (c *Chip) requestLocked(gpio uint, ln *line) error {
	if ln.l != nil {
		_ = ln.l.Close()
		ln.l = nil
	}
	var opts []gpiod.LineReqOption
	if ln.mode == pigpio.ModeOutput {
		opts = append(opts, gpiod.AsOutput(int(ln.value)))
	} else {
		opts = append(opts, gpiod.AsInput)
	}
	switch ln.pull {
	case pigpio.PullUp:
		opts = append(opts, gpiod.WithPullUp)
	case pigpio.PullDown:
		opts = append(opts, gpiod.WithPullDown)
	}
	if ln.watch {
		opts = append(opts, gpiod.WithBothEdges, gpiod.WithEventHandler(c.handleEvent))
	}
	l, err := c.chip.RequestLine(int(gpio), opts...)
	if err != nil {
		return fmt.Errorf("failed to request gpio %d: %w", gpio, err)
	}
	ln.l = l
	log.Debug().Uint("gpio", gpio).Stringer("mode", ln.mode).Stringer("pull", ln.pull).
		Bool("watch", ln.watch).Msg("requested line")
	return nil
}

func (c *Chip) handleEvent(evt gpiod.LineEvent) {
	level := pigpio.Low
	if evt.Type == gpiod.LineEventRisingEdge {
		level = pigpio.High
	}
	c.watchers.dispatch(uint(evt.Offset), level, tickOf(evt.Timestamp))
}

func (c *Chip) SetMode(_ context.Context, gpio uint, mode pigpio.Mode) error {
	if mode != pigpio.ModeInput && mode != pigpio.ModeOutput {
		return fmt.Errorf("mode %v: %w", mode, ErrNotSupported)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ln, err := c.lineLocked(gpio)
	if err != nil {
		return err
	}
	if ln.l != nil && ln.mode == mode {
		return nil
	}
	if mode == pigpio.ModeOutput && ln.watch {
		return fmt.Errorf("gpio %d has callbacks: %w", gpio, pigpio.ErrInvalidArgument)
	}
	ln.mode = mode
	return c.requestLocked(gpio, ln)
}

func (c *Chip) SetPullUpDown(_ context.Context, gpio uint, pull pigpio.Pull) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ln, err := c.lineLocked(gpio)
	if err != nil {
		return err
	}
	ln.pull = pull
	return c.requestLocked(gpio, ln)
}

func (c *Chip) Read(_ context.Context, gpio uint) (pigpio.Level, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ln, err := c.lineLocked(gpio)
	if err != nil {
		return 0, err
	}
	if ln.l == nil {
		if err := c.requestLocked(gpio, ln); err != nil {
			return 0, err
		}
	}
	v, err := ln.l.Value()
	if err != nil {
		return 0, fmt.Errorf("failed to read gpio %d: %w", gpio, err)
	}
	return pigpio.Level(v), nil
}

// Write switches the line to output first, like pigpiod does.
func (c *Chip) Write(_ context.Context, gpio uint, level pigpio.Level) error {
	if level > pigpio.High {
		return fmt.Errorf("level %v: %w", level, pigpio.ErrInvalidArgument)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ln, err := c.lineLocked(gpio)
	if err != nil {
		return err
	}
	ln.value = level
	if ln.l == nil || ln.mode != pigpio.ModeOutput {
		if ln.watch {
			return fmt.Errorf("gpio %d has callbacks: %w", gpio, pigpio.ErrInvalidArgument)
		}
		ln.mode = pigpio.ModeOutput
		return c.requestLocked(gpio, ln)
	}
	if err := ln.l.SetValue(int(level)); err != nil {
		return fmt.Errorf("failed to write gpio %d: %w", gpio, err)
	}
	return nil
}

func (c *Chip) AddCallback(_ context.Context, gpio uint, edge pigpio.Edge, fn pigpio.CallbackFunc) (*pigpio.Callback, error) {
	if edge > pigpio.EitherEdge {
		return nil, fmt.Errorf("edge %v: %w", edge, pigpio.ErrInvalidArgument)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ln, err := c.lineLocked(gpio)
	if err != nil {
		return nil, err
	}
	if ln.mode == pigpio.ModeOutput {
		return nil, fmt.Errorf("gpio %d is an output: %w", gpio, pigpio.ErrInvalidArgument)
	}

	var cb *pigpio.Callback
	cb = pigpio.NewCallback(gpio, edge, fn, func(context.Context) error {
		return c.removeCallback(cb)
	})
	if !ln.watch || ln.l == nil {
		ln.watch = true
		if err := c.requestLocked(gpio, ln); err != nil {
			ln.watch = false
			return nil, err
		}
	}
	c.watchers.add(cb)
	return cb, nil
}

func (c *Chip) removeCallback(cb *pigpio.Callback) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.watchers.remove(cb) > 0 {
		return nil
	}
	ln, ok := c.lines[cb.GPIO]
	if !ok || !ln.watch {
		return nil
	}
	ln.watch = false
	return c.requestLocked(cb.GPIO, ln)
}

func (c *Chip) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for gpio, ln := range c.lines {
		if ln.l != nil {
			_ = ln.l.Close()
		}
		delete(c.lines, gpio)
	}
	return c.chip.Close()
}
