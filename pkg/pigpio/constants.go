package pigpio

import (
	"fmt"
	"strings"
)

// Command is the numeric id of a pigpio socket command.
type Command uint32

const (
	CommandMODES Command = 0
	CommandMODEG Command = 1
	CommandPUD   Command = 2
	CommandREAD  Command = 3
	CommandWRITE Command = 4
	CommandPWM   Command = 5
	CommandPRS   Command = 6
	CommandPFS   Command = 7
	CommandSERVO Command = 8
	CommandWDOG  Command = 9
	CommandBR1   Command = 10
	CommandBR2   Command = 11
	CommandTICK  Command = 16
	CommandHWVER Command = 17
	CommandNB    Command = 19
	CommandNC    Command = 21
	CommandPIGPV Command = 26
	CommandGDC   Command = 83
	CommandNOIB  Command = 99
)

var commandNames = map[Command]string{
	CommandMODES: "MODES",
	CommandMODEG: "MODEG",
	CommandPUD:   "PUD",
	CommandREAD:  "READ",
	CommandWRITE: "WRITE",
	CommandPWM:   "PWM",
	CommandPRS:   "PRS",
	CommandPFS:   "PFS",
	CommandSERVO: "SERVO",
	CommandWDOG:  "WDOG",
	CommandBR1:   "BR1",
	CommandBR2:   "BR2",
	CommandTICK:  "TICK",
	CommandHWVER: "HWVER",
	CommandNB:    "NB",
	CommandNC:    "NC",
	CommandPIGPV: "PIGPV",
	CommandGDC:   "GDC",
	CommandNOIB:  "NOIB",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("CMD(%d)", uint32(c))
}

// unsignedResult reports whether the daemon returns the result of c as a
// plain uint32 instead of a status/error code.
func (c Command) unsignedResult() bool {
	switch c {
	case CommandBR1, CommandBR2, CommandTICK, CommandHWVER, CommandPIGPV:
		return true
	default:
		return false
	}
}

// Mode is the function of a GPIO.
type Mode uint8

const (
	ModeInput  Mode = 0
	ModeOutput Mode = 1
	ModeAlt0   Mode = 4
	ModeAlt1   Mode = 5
	ModeAlt2   Mode = 6
	ModeAlt3   Mode = 7
	ModeAlt4   Mode = 3
	ModeAlt5   Mode = 2
)

var modeNames = map[Mode]string{
	ModeInput:  "input",
	ModeOutput: "output",
	ModeAlt0:   "alt0",
	ModeAlt1:   "alt1",
	ModeAlt2:   "alt2",
	ModeAlt3:   "alt3",
	ModeAlt4:   "alt4",
	ModeAlt5:   "alt5",
}

func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode accepts the names returned by Mode.String (case insensitive).
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(s)
	for m, n := range modeNames {
		if n == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Pull selects the internal pull resistor of a GPIO.
type Pull uint8

const (
	PullOff  Pull = 0
	PullDown Pull = 1
	PullUp   Pull = 2
)

func (p Pull) String() string {
	switch p {
	case PullOff:
		return "off"
	case PullDown:
		return "down"
	case PullUp:
		return "up"
	default:
		return fmt.Sprintf("pull(%d)", uint8(p))
	}
}

func ParsePull(s string) (Pull, error) {
	switch strings.ToLower(s) {
	case "off", "none":
		return PullOff, nil
	case "down":
		return PullDown, nil
	case "up":
		return PullUp, nil
	default:
		return 0, fmt.Errorf("unknown pull %q", s)
	}
}

// Level of a GPIO. Timeout is only ever passed to callbacks when a
// watchdog expired.
type Level uint8

const (
	Low     Level = 0
	High    Level = 1
	Timeout Level = 2
)

// Off and On are aliases for driving outputs.
const (
	Off = Low
	On  = High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case High:
		return "high"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "0", "low", "off":
		return Low, nil
	case "1", "high", "on":
		return High, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}

// Edge selects which transitions fire a callback.
type Edge uint8

const (
	RisingEdge  Edge = 0
	FallingEdge Edge = 1
	EitherEdge  Edge = 2
)

func (e Edge) String() string {
	switch e {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	case EitherEdge:
		return "either"
	default:
		return fmt.Sprintf("edge(%d)", uint8(e))
	}
}

func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(s) {
	case "rising":
		return RisingEdge, nil
	case "falling":
		return FallingEdge, nil
	case "either", "both":
		return EitherEdge, nil
	default:
		return 0, fmt.Errorf("unknown edge %q", s)
	}
}

// Matches reports whether a transition to level fires a callback on e.
func (e Edge) Matches(level Level) bool {
	// rising=0, falling=1: xor with the new level is non-zero on a match.
	return uint8(e)^uint8(level) != 0
}

// Flags in notification reports.
const (
	notifyFlagWatchdog uint16 = 1 << 5
	notifyFlagAlive    uint16 = 1 << 6
	notifyFlagEvent    uint16 = 1 << 7
	notifyFlagGPIOMask uint16 = 0x1f
)

const (
	// MaxGPIO is the highest GPIO number the daemon knows about.
	MaxGPIO = 53
	// MaxUserGPIO is the highest GPIO that can be monitored or watched.
	MaxUserGPIO = 31
	// MaxWatchdogMillis is the longest watchdog timeout the daemon accepts.
	MaxWatchdogMillis = 60000
)
