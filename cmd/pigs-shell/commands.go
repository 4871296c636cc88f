package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yvesf/pigpio-tool/pkg/pigpio"
	"github.com/yvesf/pigpio-tool/pkg/ringbuf"
)

// device is the part of *pigpio.Client used by the shell.
type device interface {
	pigpio.Board
	GetMode(ctx context.Context, gpio uint) (pigpio.Mode, error)
	SetPWMDutycycle(ctx context.Context, gpio uint, dutycycle uint) error
	GetPWMDutycycle(ctx context.Context, gpio uint) (uint, error)
	SetServoPulsewidth(ctx context.Context, gpio uint, pulsewidth uint) error
	SetWatchdog(ctx context.Context, gpio uint, timeout time.Duration) error
	ReadBank1(ctx context.Context) (uint32, error)
	Tick(ctx context.Context) (uint32, error)
	HardwareRevision(ctx context.Context) (uint32, error)
	Version(ctx context.Context) (uint32, error)
}

var _ device = (*pigpio.Client)(nil)

type event struct {
	GPIO  uint
	Level pigpio.Level
	Tick  uint32
}

type shell struct {
	dev device
	out io.Writer

	mutex   sync.Mutex
	watches map[uint]*pigpio.Callback
	events  *ringbuf.Ringbuf[event]
}

const eventHistory = 32

func newShell(dev device, out io.Writer) *shell {
	return &shell{
		dev:     dev,
		out:     out,
		watches: map[uint]*pigpio.Callback{},
		events:  ringbuf.NewRingbuf[event](eventHistory),
	}
}

type c struct {
	command string
	args    int
	fun     func(ctx context.Context, s *shell, args ...string) error
	help    string
}

var commands []c

func init() {
	commands = []c{
		{
			command: "help",
			args:    0,
			help:    "help display this help",
			fun:     func(_ context.Context, s *shell, _ ...string) error { s.help(); return nil },
		},
		{
			command: "mode",
			args:    2,
			help:    "mode <gpio> <input|output|alt0..alt5> (MODES)",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				mode, err := pigpio.ParseMode(args[1])
				if err != nil {
					return err
				}
				return s.dev.SetMode(ctx, gpio, mode)
			},
		},
		{
			command: "getmode",
			args:    1,
			help:    "getmode <gpio> (MODEG)",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				mode, err := s.dev.GetMode(ctx, gpio)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "gpio=%d mode=%v\n", gpio, mode)
				return nil
			},
		},
		{
			command: "pud",
			args:    2,
			help:    "pud <gpio> <off|down|up> (PUD)",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				pull, err := pigpio.ParsePull(args[1])
				if err != nil {
					return err
				}
				return s.dev.SetPullUpDown(ctx, gpio, pull)
			},
		},
		{
			command: "read",
			args:    1,
			help:    "read <gpio> (READ)",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				level, err := s.dev.Read(ctx, gpio)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "gpio=%d level=%d\n", gpio, level)
				return nil
			},
		},
		{
			command: "write",
			args:    2,
			help:    "write <gpio> <0|1|on|off> (WRITE)",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				level, err := pigpio.ParseLevel(args[1])
				if err != nil {
					return err
				}
				return s.dev.Write(ctx, gpio, level)
			},
		},
		{
			command: "pwm",
			args:    2,
			help:    "pwm <gpio> <dutycycle> (PWM)",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				dutycycle, err := parseUint("dutycycle", args[1])
				if err != nil {
					return err
				}
				return s.dev.SetPWMDutycycle(ctx, gpio, dutycycle)
			},
		},
		{
			command: "getpwm",
			args:    1,
			help:    "getpwm <gpio> (GDC)",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				dutycycle, err := s.dev.GetPWMDutycycle(ctx, gpio)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "gpio=%d dutycycle=%d\n", gpio, dutycycle)
				return nil
			},
		},
		{
			command: "servo",
			args:    2,
			help:    "servo <gpio> <pulsewidth us, 0 or 500-2500> (SERVO)",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				width, err := parseUint("pulsewidth", args[1])
				if err != nil {
					return err
				}
				return s.dev.SetServoPulsewidth(ctx, gpio, width)
			},
		},
		{
			command: "wdog",
			args:    2,
			help:    "wdog <gpio> <timeout, e.g. 500ms, 0 disables> (WDOG)",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				timeout, err := time.ParseDuration(args[1])
				if err != nil {
					return fmt.Errorf("invalid timeout: %w", err)
				}
				return s.dev.SetWatchdog(ctx, gpio, timeout)
			},
		},
		{
			command: "bank",
			args:    0,
			help:    "bank read levels of gpio 0-31 (BR1)",
			fun: func(ctx context.Context, s *shell, _ ...string) error {
				levels, err := s.dev.ReadBank1(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "levels=0b%032b\n", levels)
				return nil
			},
		},
		{
			command: "tick",
			args:    0,
			help:    "tick microseconds since daemon start, wraps every ~72 minutes (TICK)",
			fun: func(ctx context.Context, s *shell, _ ...string) error {
				tick, err := s.dev.Tick(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "tick=%d\n", tick)
				return nil
			},
		},
		{
			command: "hwver",
			args:    0,
			help:    "hwver hardware revision (HWVER)",
			fun: func(ctx context.Context, s *shell, _ ...string) error {
				rev, err := s.dev.HardwareRevision(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "revision=0x%x\n", rev)
				return nil
			},
		},
		{
			command: "version",
			args:    0,
			help:    "version pigpio library version (PIGPV)",
			fun: func(ctx context.Context, s *shell, _ ...string) error {
				version, err := s.dev.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "version=%d\n", version)
				return nil
			},
		},
		{
			command: "watch",
			args:    2,
			help:    "watch <gpio> <rising|falling|either>\nrecords level changes, see events",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				edge, err := pigpio.ParseEdge(args[1])
				if err != nil {
					return err
				}
				return s.watch(ctx, gpio, edge)
			},
		},
		{
			command: "unwatch",
			args:    1,
			help:    "unwatch <gpio>",
			fun: func(ctx context.Context, s *shell, args ...string) error {
				gpio, err := parseGPIO(args[0])
				if err != nil {
					return err
				}
				return s.unwatch(ctx, gpio)
			},
		},
		{
			command: "events",
			args:    0,
			help:    "events print the recently recorded level changes",
			fun: func(_ context.Context, s *shell, _ ...string) error {
				s.mutex.Lock()
				defer s.mutex.Unlock()
				for _, e := range s.events.Items() {
					fmt.Fprintf(s.out, "tick=%d gpio=%d level=%v\n", e.Tick, e.GPIO, e.Level)
				}
				return nil
			},
		},
	}
}

func (s *shell) watch(ctx context.Context, gpio uint, edge pigpio.Edge) error {
	s.mutex.Lock()
	_, exists := s.watches[gpio]
	s.mutex.Unlock()
	if exists {
		return fmt.Errorf("gpio %d already watched", gpio)
	}

	cb, err := s.dev.AddCallback(ctx, gpio, edge, s.record)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	s.watches[gpio] = cb
	s.mutex.Unlock()
	return nil
}

func (s *shell) unwatch(ctx context.Context, gpio uint) error {
	s.mutex.Lock()
	cb, ok := s.watches[gpio]
	delete(s.watches, gpio)
	s.mutex.Unlock()
	if !ok {
		return fmt.Errorf("gpio %d not watched", gpio)
	}
	return cb.Cancel(ctx)
}

func (s *shell) record(gpio uint, level pigpio.Level, tick uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events.Add(event{GPIO: gpio, Level: level, Tick: tick})
}

func (s *shell) help() {
	fmt.Fprintf(s.out, "Commands help:\n")
	for _, c := range commands {
		fmt.Fprintf(s.out, "\t%s\n", strings.ReplaceAll(c.help, "\n", "\n\t\t"))
	}
	fmt.Fprintf(s.out, "\tquit\n")
}

func parseGPIO(arg string) (uint, error) {
	gpio, err := strconv.ParseUint(arg, 10, 8)
	if err != nil || gpio > pigpio.MaxGPIO {
		return 0, fmt.Errorf("invalid gpio %q", arg)
	}
	return uint(gpio), nil
}

func parseUint(name, arg string) (uint, error) {
	v, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, arg)
	}
	return uint(v), nil
}

func execute(ctx context.Context, s *shell, tokens []string) error {
	for _, comm := range commands {
		if comm.command != tokens[0] {
			continue
		}
		if comm.args != len(tokens)-1 {
			return fmt.Errorf("invalid number of arguments for command %v, expected %v got %v",
				comm.command, comm.args, len(tokens)-1)
		}
		err := comm.fun(ctx, s, tokens[1:]...)
		if err != nil {
			return fmt.Errorf("command failed %v: %w", tokens, err)
		}
		return nil
	}
	return fmt.Errorf("command not found: %v", tokens[0])
}
