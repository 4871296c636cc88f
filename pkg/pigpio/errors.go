package pigpio

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionBroken = errors.New("connection to pigpiod broken")
	ErrClosed           = errors.New("client closed")
	ErrInvalidGPIO      = errors.New("gpio out of range")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// ErrorCode is a negative status returned by the daemon.
type ErrorCode int32

const (
	ErrInitFailed      ErrorCode = -1
	ErrBadUserGPIO     ErrorCode = -2
	ErrBadGPIO         ErrorCode = -3
	ErrBadMode         ErrorCode = -4
	ErrBadLevel        ErrorCode = -5
	ErrBadPUD          ErrorCode = -6
	ErrBadPulsewidth   ErrorCode = -7
	ErrBadDutycycle    ErrorCode = -8
	ErrBadWatchdog     ErrorCode = -15
	ErrBadDutyrange    ErrorCode = -21
	ErrNoHandle        ErrorCode = -24
	ErrBadHandle       ErrorCode = -25
	ErrNotInitialised  ErrorCode = -31
	ErrNotPermitted    ErrorCode = -41
	ErrSomePermitted   ErrorCode = -42
	ErrNotPWMGPIO      ErrorCode = -92
	ErrNotServoGPIO    ErrorCode = -93
	ErrNotHardwarePWM  ErrorCode = -94
	ErrBadHardwarePWM  ErrorCode = -96
	ErrNotHClockGPIO   ErrorCode = -97
	ErrBadSocketPort   ErrorCode = -28
	ErrBadFIFOCommand  ErrorCode = -29
	ErrBadIfFlags      ErrorCode = -26
	ErrBadClockPeriph  ErrorCode = -17
	ErrNoAlertFunction ErrorCode = -16
)

var errorDescriptions = map[ErrorCode]string{
	ErrInitFailed:      "gpioInitialise failed",
	ErrBadUserGPIO:     "GPIO not 0-31",
	ErrBadGPIO:         "GPIO not 0-53",
	ErrBadMode:         "mode not 0-7",
	ErrBadLevel:        "level not 0-1",
	ErrBadPUD:          "pud not 0-2",
	ErrBadPulsewidth:   "pulsewidth not 0 or 500-2500",
	ErrBadDutycycle:    "dutycycle outside set range",
	ErrBadWatchdog:     "timeout not 0-60000",
	ErrBadDutyrange:    "dutyrange not 25-40000",
	ErrNoHandle:        "no handle available",
	ErrBadHandle:       "unknown handle",
	ErrNotInitialised:  "function called before gpioInitialise",
	ErrNotPermitted:    "GPIO operation not permitted",
	ErrSomePermitted:   "one or more GPIO not permitted",
	ErrNotPWMGPIO:      "GPIO not in use for PWM",
	ErrNotServoGPIO:    "GPIO not in use for servo pulses",
	ErrNotHardwarePWM:  "GPIO has no hardware PWM",
	ErrBadHardwarePWM:  "invalid hardware PWM frequency",
	ErrNotHClockGPIO:   "GPIO has no hardware clock",
	ErrBadSocketPort:   "socket port not 1024-32000",
	ErrBadFIFOCommand:  "unrecognized fifo command",
	ErrBadIfFlags:      "gpioCfgInterface: bad flags",
	ErrBadClockPeriph:  "clock peripheral not 0-1",
	ErrNoAlertFunction: "DEPRECATED",
}

func (c ErrorCode) Error() string {
	if d, ok := errorDescriptions[c]; ok {
		return d
	}
	return fmt.Sprintf("unknown error %d", int32(c))
}

// Error is returned when the daemon rejected a command.
type Error struct {
	Cmd  Command
	Code ErrorCode
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v failed: %v (%d)", e.Cmd, e.Code.Error(), int32(e.Code))
}

func (e *Error) Unwrap() error {
	return e.Code
}
