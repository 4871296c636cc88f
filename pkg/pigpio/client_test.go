package pigpio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, d *fakeDaemon, opts ...Option) *Client {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Connect(ctx, d.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type event struct {
	gpio  uint
	level Level
	tick  uint32
}

func recorder() (CallbackFunc, chan event) {
	events := make(chan event, 16)
	return func(gpio uint, level Level, tick uint32) {
		events <- event{gpio, level, tick}
	}, events
}

func requireEvent(t *testing.T, events chan event, expected event) {
	t.Helper()
	select {
	case e := <-events:
		require.Equal(t, expected, e)
	case <-time.After(time.Second):
		t.Fatalf("no event, expected %+v", expected)
	}
}

func requireNoEvent(t *testing.T, events chan event) {
	t.Helper()
	select {
	case e := <-events:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnect(t *testing.T) {
	d := newFakeDaemon(t)
	d.setLevels(1 << 18)
	c := connect(t, d)
	ctx := context.Background()

	require.Equal(t, []Command{CommandNOIB, CommandBR1}, d.commands())
	require.Equal(t, uint32(1<<18), c.notify.lastLevel)

	require.NoError(t, c.SetMode(ctx, 21, ModeOutput))
	mode, err := c.GetMode(ctx, 21)
	require.NoError(t, err)
	require.Equal(t, ModeOutput, mode)

	require.NoError(t, c.Write(ctx, 21, High))
	level, err := c.Read(ctx, 21)
	require.NoError(t, err)
	require.Equal(t, High, level)
	require.NoError(t, c.Write(ctx, 21, Low))
	level, err = c.Read(ctx, 21)
	require.NoError(t, err)
	require.Equal(t, Low, level)

	require.NoError(t, c.SetPullUpDown(ctx, 18, PullUp))
	require.Equal(t, request{cmd: CommandPUD, p1: 18, p2: 2}, d.lastRequest())

	require.NoError(t, c.SetWatchdog(ctx, 18, 1500*time.Millisecond))
	require.Equal(t, request{cmd: CommandWDOG, p1: 18, p2: 1500}, d.lastRequest())

	tick, err := c.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(123456), tick)

	rev, err := c.HardwareRevision(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(0xa02082), rev)

	version, err := c.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(79), version)
}

func TestPWM(t *testing.T) {
	d := newFakeDaemon(t)
	c := connect(t, d)
	ctx := context.Background()

	require.NoError(t, c.SetPWMDutycycle(ctx, 12, 64))
	require.Equal(t, request{cmd: CommandPWM, p1: 12, p2: 64}, d.lastRequest())

	duty, err := c.GetPWMDutycycle(ctx, 12)
	require.NoError(t, err)
	require.Equal(t, uint(128), duty)

	rng, err := c.SetPWMRange(ctx, 12, 1000)
	require.NoError(t, err)
	require.Equal(t, uint(1000), rng)

	hz, err := c.SetPWMFrequency(ctx, 12, 800)
	require.NoError(t, err)
	require.Equal(t, uint(800), hz)

	require.NoError(t, c.SetServoPulsewidth(ctx, 17, 1500))
	require.Equal(t, request{cmd: CommandSERVO, p1: 17, p2: 1500}, d.lastRequest())
}

func TestCommandError(t *testing.T) {
	d := newFakeDaemon(t)
	c := connect(t, d)
	ctx := context.Background()

	d.fail(CommandMODES, ErrNotPermitted)
	err := c.SetMode(ctx, 4, ModeOutput)
	require.EqualError(t, err, "MODES failed: GPIO operation not permitted (-41)")
	require.ErrorIs(t, err, ErrNotPermitted)
	var pigpioErr *Error
	require.True(t, errors.As(err, &pigpioErr))
	require.Equal(t, CommandMODES, pigpioErr.Cmd)

	// a rejected command leaves the connection usable
	require.NoError(t, c.Write(ctx, 4, High))
}

func TestInvalidArguments(t *testing.T) {
	d := newFakeDaemon(t)
	c := connect(t, d)
	ctx := context.Background()
	sent := len(d.commands())

	require.ErrorIs(t, c.SetMode(ctx, 54, ModeInput), ErrInvalidGPIO)
	require.ErrorIs(t, c.SetMode(ctx, 4, Mode(9)), ErrInvalidArgument)
	require.ErrorIs(t, c.Write(ctx, 4, Timeout), ErrInvalidArgument)
	require.ErrorIs(t, c.SetPullUpDown(ctx, 4, Pull(3)), ErrInvalidArgument)
	require.ErrorIs(t, c.SetWatchdog(ctx, 4, 61*time.Second), ErrInvalidArgument)
	require.ErrorIs(t, c.SetPWMDutycycle(ctx, 32, 10), ErrInvalidGPIO)
	_, err := c.AddCallback(ctx, 32, RisingEdge, nil)
	require.ErrorIs(t, err, ErrInvalidGPIO)
	_, err = c.AddCallback(ctx, 4, Edge(3), nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.Len(t, d.commands(), sent, "nothing sent to the daemon")
}

func TestCallbacks(t *testing.T) {
	d := newFakeDaemon(t)
	c := connect(t, d)
	ctx := context.Background()

	button, buttonEvents := recorder()
	cbButton, err := c.AddCallback(ctx, 18, RisingEdge, button)
	require.NoError(t, err)
	require.Equal(t, uint32(1<<18), d.monitoredBits())

	either, eitherEvents := recorder()
	cbEither, err := c.AddCallback(ctx, 4, EitherEdge, either)
	require.NoError(t, err)
	require.Equal(t, uint32(1<<18|1<<4), d.monitoredBits())

	d.send(Report{Seqno: 1, Tick: 1000, Level: 1 << 18})
	requireEvent(t, buttonEvents, event{18, High, 1000})

	d.send(Report{Seqno: 2, Tick: 2000, Level: 1<<18 | 1<<4})
	requireEvent(t, eitherEvents, event{4, High, 2000})
	requireNoEvent(t, buttonEvents)

	d.send(Report{Seqno: 3, Tick: 3000, Level: 0})
	requireEvent(t, eitherEvents, event{4, Low, 3000})
	requireNoEvent(t, buttonEvents)

	// watchdog on 18, keep-alive ignored
	d.send(Report{Seqno: 4, Tick: 4000, Flags: notifyFlagWatchdog | 18})
	requireEvent(t, buttonEvents, event{18, Timeout, 4000})
	d.send(Report{Seqno: 5, Tick: 5000, Flags: notifyFlagAlive, Level: 1 << 18})
	requireNoEvent(t, buttonEvents)

	require.Equal(t, uint64(2), cbButton.Tally())
	require.Equal(t, uint64(2), cbEither.Tally())

	require.NoError(t, cbButton.Cancel(ctx))
	require.Equal(t, uint32(1<<4), d.monitoredBits())
	require.NoError(t, cbButton.Cancel(ctx), "second cancel is a no-op")

	d.send(Report{Seqno: 6, Tick: 6000, Level: 1 << 18})
	requireNoEvent(t, buttonEvents)

	require.NoError(t, cbEither.Cancel(ctx))
	require.Equal(t, uint32(0), d.monitoredBits())
}

func TestCallbackTally(t *testing.T) {
	d := newFakeDaemon(t)
	c := connect(t, d)
	ctx := context.Background()

	cb, err := c.AddCallback(ctx, 7, EitherEdge, nil)
	require.NoError(t, err)

	d.send(Report{Tick: 1, Level: 1 << 7})
	d.send(Report{Tick: 2, Level: 0})
	d.send(Report{Tick: 3, Level: 1 << 7})
	require.Eventually(t, func() bool { return cb.Tally() == 3 }, time.Second, 5*time.Millisecond)

	cb.ResetTally()
	require.Equal(t, uint64(0), cb.Tally())
}

func TestAddCallbackFails(t *testing.T) {
	d := newFakeDaemon(t)
	c := connect(t, d)

	d.fail(CommandNB, ErrBadHandle)
	_, err := c.AddCallback(context.Background(), 18, RisingEdge, nil)
	require.ErrorIs(t, err, ErrBadHandle)
	require.Empty(t, c.notify.snapshot())
}

func TestCommandTimeout(t *testing.T) {
	d := newFakeDaemon(t)
	c := connect(t, d, WithTimeout(50*time.Millisecond))
	ctx := context.Background()

	d.stallOn(CommandREAD)
	_, err := c.Read(ctx, 4)
	require.Error(t, err)

	err = c.Write(ctx, 4, High)
	require.ErrorIs(t, err, ErrConnectionBroken)
}

func TestCommandCancelled(t *testing.T) {
	d := newFakeDaemon(t)
	c := connect(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Read(ctx, 4)
	require.ErrorIs(t, err, context.Canceled)

	// not sent, so the connection is still fine
	_, err = c.Read(context.Background(), 4)
	require.NoError(t, err)
}

func TestClose(t *testing.T) {
	d := newFakeDaemon(t)
	c := connect(t, d)

	require.NoError(t, c.Close())
	require.Contains(t, d.commands(), CommandNC)
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not stop")
	}
	require.NoError(t, c.Err())
	require.ErrorIs(t, c.Write(context.Background(), 4, High), ErrClosed)
	require.NoError(t, c.Close())
}

func TestDaemonGone(t *testing.T) {
	d := newFakeDaemon(t)
	c := connect(t, d)
	<-d.notifyOpened

	d.dropConnections()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not stop")
	}
	require.Error(t, c.Err())

	_, err := c.Read(context.Background(), 4)
	require.Error(t, err)
}
