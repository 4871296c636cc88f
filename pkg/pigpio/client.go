package pigpio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single command round trip.
const DefaultTimeout = 2 * time.Second

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client is a connection to a pigpio daemon. It holds two sockets: one for
// commands and one on which the daemon streams level change reports.
type Client struct {
	addr    string
	timeout time.Duration

	commandMutex sync.Mutex
	control      net.Conn
	broken       error

	// monitorMutex orders callback registration with the NB updates that
	// follow it.
	monitorMutex sync.Mutex
	notify       *notifier

	closeOnce sync.Once
}

// Connect opens the control and notification sockets and starts the
// notification reader.
func Connect(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := &Client{
		addr:    addr,
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}

	var d net.Dialer
	control, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %v: %w", addr, err)
	}
	c.control = control

	notifyConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		_ = control.Close()
		return nil, fmt.Errorf("failed to open notification socket to %v: %w", addr, err)
	}
	c.notify, err = openNotifier(ctx, notifyConn, c.timeout)
	if err != nil {
		_ = notifyConn.Close()
		_ = control.Close()
		return nil, err
	}

	levels, err := c.ReadBank1(ctx)
	if err != nil {
		_ = c.notify.close()
		_ = control.Close()
		return nil, fmt.Errorf("failed to read initial levels: %w", err)
	}
	c.notify.start(levels)

	log.Debug().Str("addr", addr).Uint32("handle", c.notify.handle).
		Str("levels", fmt.Sprintf("%032b", levels)).Msg("connected to pigpiod")
	return c, nil
}

// Addr returns the daemon address the client is connected to.
func (c *Client) Addr() string {
	return c.addr
}

// exchange writes req to conn and reads the response. The deadline is the
// earlier of the context deadline and timeout; cancelling ctx aborts the
// blocked read.
func exchange(ctx context.Context, conn net.Conn, timeout time.Duration, req request) (response, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return response{}, err
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Unix(1, 0))
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		<-stopped
	}()

	if _, err := conn.Write(req.Marshal()); err != nil {
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}
		return response{}, err
	}
	buf := make([]byte, responseLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}
		return response{}, err
	}
	return parseResponse(buf)
}

// command runs one request on the control socket. An i/o failure leaves the
// stream in an unknown position, so the client is marked broken.
func (c *Client) command(ctx context.Context, cmd Command, p1, p2 uint32) (uint32, error) {
	c.commandMutex.Lock()
	defer c.commandMutex.Unlock()

	if c.broken != nil {
		return 0, c.broken
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	metricCommands.With(cmd.String()).Add(1)
	resp, err := exchange(ctx, c.control, c.timeout, request{cmd: cmd, p1: p1, p2: p2})
	if err != nil {
		metricCommandErrors.With(cmd.String()).Add(1)
		c.markBroken(ErrConnectionBroken)
		return 0, fmt.Errorf("%v failed: %w", cmd, err)
	}
	if resp.cmd != cmd {
		metricCommandErrors.With(cmd.String()).Add(1)
		c.markBroken(ErrConnectionBroken)
		return 0, fmt.Errorf("%v received response for %v: %w", cmd, resp.cmd, ErrConnectionBroken)
	}
	log.Trace().Stringer("cmd", cmd).Uint32("p1", p1).Uint32("p2", p2).Uint32("res", resp.res).Msg("command")

	if !cmd.unsignedResult() && resp.status() < 0 {
		metricCommandErrors.With(cmd.String()).Add(1)
		return 0, &Error{Cmd: cmd, Code: ErrorCode(resp.status())}
	}
	return resp.res, nil
}

// markBroken must be called with commandMutex held.
func (c *Client) markBroken(err error) {
	if c.broken == nil {
		c.broken = err
		_ = c.control.Close()
	}
}

func checkGPIO(gpio, max uint) error {
	if gpio > max {
		return fmt.Errorf("gpio %d not 0-%d: %w", gpio, max, ErrInvalidGPIO)
	}
	return nil
}

func (c *Client) SetMode(ctx context.Context, gpio uint, mode Mode) error {
	if err := checkGPIO(gpio, MaxGPIO); err != nil {
		return err
	}
	if _, ok := modeNames[mode]; !ok {
		return fmt.Errorf("mode %v: %w", mode, ErrInvalidArgument)
	}
	_, err := c.command(ctx, CommandMODES, uint32(gpio), uint32(mode))
	return err
}

func (c *Client) GetMode(ctx context.Context, gpio uint) (Mode, error) {
	if err := checkGPIO(gpio, MaxGPIO); err != nil {
		return 0, err
	}
	res, err := c.command(ctx, CommandMODEG, uint32(gpio), 0)
	if err != nil {
		return 0, err
	}
	return Mode(res), nil
}

func (c *Client) SetPullUpDown(ctx context.Context, gpio uint, pull Pull) error {
	if err := checkGPIO(gpio, MaxGPIO); err != nil {
		return err
	}
	if pull > PullUp {
		return fmt.Errorf("pull %v: %w", pull, ErrInvalidArgument)
	}
	_, err := c.command(ctx, CommandPUD, uint32(gpio), uint32(pull))
	return err
}

func (c *Client) Read(ctx context.Context, gpio uint) (Level, error) {
	if err := checkGPIO(gpio, MaxGPIO); err != nil {
		return 0, err
	}
	res, err := c.command(ctx, CommandREAD, uint32(gpio), 0)
	if err != nil {
		return 0, err
	}
	return Level(res), nil
}

func (c *Client) Write(ctx context.Context, gpio uint, level Level) error {
	if err := checkGPIO(gpio, MaxGPIO); err != nil {
		return err
	}
	if level > High {
		return fmt.Errorf("level %v: %w", level, ErrInvalidArgument)
	}
	_, err := c.command(ctx, CommandWRITE, uint32(gpio), uint32(level))
	return err
}

// SetPWMDutycycle starts PWM on gpio; 0 switches it off.
func (c *Client) SetPWMDutycycle(ctx context.Context, gpio uint, dutycycle uint) error {
	if err := checkGPIO(gpio, MaxUserGPIO); err != nil {
		return err
	}
	_, err := c.command(ctx, CommandPWM, uint32(gpio), uint32(dutycycle))
	return err
}

func (c *Client) GetPWMDutycycle(ctx context.Context, gpio uint) (uint, error) {
	if err := checkGPIO(gpio, MaxUserGPIO); err != nil {
		return 0, err
	}
	res, err := c.command(ctx, CommandGDC, uint32(gpio), 0)
	return uint(res), err
}

// SetPWMRange returns the real range used for the current frequency.
func (c *Client) SetPWMRange(ctx context.Context, gpio uint, pwmRange uint) (uint, error) {
	if err := checkGPIO(gpio, MaxUserGPIO); err != nil {
		return 0, err
	}
	res, err := c.command(ctx, CommandPRS, uint32(gpio), uint32(pwmRange))
	return uint(res), err
}

// SetPWMFrequency returns the nearest frequency the daemon could set.
func (c *Client) SetPWMFrequency(ctx context.Context, gpio uint, hz uint) (uint, error) {
	if err := checkGPIO(gpio, MaxUserGPIO); err != nil {
		return 0, err
	}
	res, err := c.command(ctx, CommandPFS, uint32(gpio), uint32(hz))
	return uint(res), err
}

// SetServoPulsewidth takes 0 (off) or 500-2500 µs.
func (c *Client) SetServoPulsewidth(ctx context.Context, gpio uint, pulsewidth uint) error {
	if err := checkGPIO(gpio, MaxUserGPIO); err != nil {
		return err
	}
	_, err := c.command(ctx, CommandSERVO, uint32(gpio), uint32(pulsewidth))
	return err
}

// SetWatchdog makes the daemon report a Timeout level to callbacks on gpio
// when no level change happened for timeout. Zero disables it.
func (c *Client) SetWatchdog(ctx context.Context, gpio uint, timeout time.Duration) error {
	if err := checkGPIO(gpio, MaxUserGPIO); err != nil {
		return err
	}
	ms := timeout.Milliseconds()
	if ms < 0 || ms > MaxWatchdogMillis {
		return fmt.Errorf("watchdog timeout %v: %w", timeout, ErrInvalidArgument)
	}
	_, err := c.command(ctx, CommandWDOG, uint32(gpio), uint32(ms))
	return err
}

// ReadBank1 returns the levels of GPIO 0-31 as a bitmask.
func (c *Client) ReadBank1(ctx context.Context) (uint32, error) {
	return c.command(ctx, CommandBR1, 0, 0)
}

// Tick returns the daemon's microsecond tick. It wraps every ~72 minutes.
func (c *Client) Tick(ctx context.Context) (uint32, error) {
	return c.command(ctx, CommandTICK, 0, 0)
}

func (c *Client) HardwareRevision(ctx context.Context) (uint32, error) {
	return c.command(ctx, CommandHWVER, 0, 0)
}

func (c *Client) Version(ctx context.Context) (uint32, error) {
	return c.command(ctx, CommandPIGPV, 0, 0)
}

// AddCallback calls fn for each transition of gpio matching edge and for
// watchdog timeouts on gpio. fn runs on the notification reader and must
// not block. A nil fn only counts transitions, see Callback.Tally.
func (c *Client) AddCallback(ctx context.Context, gpio uint, edge Edge, fn CallbackFunc) (*Callback, error) {
	if err := checkGPIO(gpio, MaxUserGPIO); err != nil {
		return nil, err
	}
	if edge > EitherEdge {
		return nil, fmt.Errorf("edge %v: %w", edge, ErrInvalidArgument)
	}

	var cb *Callback
	cb = NewCallback(gpio, edge, fn, func(ctx context.Context) error {
		return c.removeCallback(ctx, cb)
	})

	c.monitorMutex.Lock()
	defer c.monitorMutex.Unlock()
	bits := c.notify.add(cb)
	if err := c.monitor(ctx, bits); err != nil {
		c.notify.remove(cb)
		return nil, fmt.Errorf("failed to register callback on gpio %d: %w", gpio, err)
	}
	log.Debug().Uint("gpio", gpio).Stringer("edge", edge).Msg("callback added")
	return cb, nil
}

func (c *Client) removeCallback(ctx context.Context, cb *Callback) error {
	c.monitorMutex.Lock()
	defer c.monitorMutex.Unlock()
	bits, ok := c.notify.remove(cb)
	if !ok {
		return nil
	}
	if err := c.monitor(ctx, bits); err != nil {
		return fmt.Errorf("failed to update monitored gpios: %w", err)
	}
	log.Debug().Uint("gpio", cb.GPIO).Stringer("edge", cb.Edge).Msg("callback removed")
	return nil
}

func (c *Client) monitor(ctx context.Context, bits uint32) error {
	_, err := c.command(ctx, CommandNB, c.notify.handle, bits)
	return err
}

// Done is closed when the notification reader stopped, either by Close or
// because the daemon went away.
func (c *Client) Done() <-chan struct{} {
	return c.notify.done
}

// Err returns why the notification reader stopped, nil after Close.
func (c *Client) Err() error {
	return c.notify.Err()
}

// Close releases the notification handle and closes both sockets.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		// the daemon closes the notification socket on NC
		c.notify.beginClose()
		if _, ncErr := c.command(ctx, CommandNC, c.notify.handle, 0); ncErr != nil &&
			!errors.Is(ncErr, ErrConnectionBroken) {
			log.Debug().Err(ncErr).Msg("failed to close notification handle")
		}
		err = c.notify.close()

		c.commandMutex.Lock()
		c.markBroken(ErrClosed)
		c.commandMutex.Unlock()
		log.Debug().Str("addr", c.addr).Msg("disconnected from pigpiod")
	})
	return err
}
