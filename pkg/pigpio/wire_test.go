package pigpio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestMarshal(t *testing.T) {
	require.Equal(t,
		[]byte{0x04, 0, 0, 0, 0x15, 0, 0, 0, 0x01, 0, 0, 0, 0, 0, 0, 0},
		request{cmd: CommandWRITE, p1: 21, p2: 1}.Marshal())
	require.Equal(t,
		[]byte{0x13, 0, 0, 0, 0x03, 0, 0, 0, 0x00, 0x00, 0x04, 0x00, 0, 0, 0, 0},
		request{cmd: CommandNB, p1: 3, p2: 1 << 18}.Marshal())
	require.Equal(t,
		[]byte{0x63, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x02, 0, 0, 0, 0xaa, 0xbb},
		request{cmd: CommandNOIB, ext: []byte{0xaa, 0xbb}}.Marshal())
}

func TestParseResponse(t *testing.T) {
	resp, err := parseResponse([]byte{0x00, 0, 0, 0, 0x12, 0, 0, 0, 0x01, 0, 0, 0, 0xfd, 0xff, 0xff, 0xff})
	require.NoError(t, err)
	require.Equal(t, CommandMODES, resp.cmd)
	require.Equal(t, uint32(18), resp.p1)
	require.Equal(t, int32(-3), resp.status())

	resp, err = parseResponse([]byte{0x10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff})
	require.NoError(t, err)
	require.Equal(t, uint32(0xffffffff), resp.res, "TICK is unsigned")
	require.True(t, resp.cmd.unsignedResult())

	_, err = parseResponse([]byte{0x00})
	require.EqualError(t, err, "invalid response length 1")
}

func TestReport(t *testing.T) {
	r := Report{Seqno: 7, Flags: notifyFlagWatchdog | 18, Tick: 0x01020304, Level: 1 << 21}
	data := r.Marshal()
	require.Equal(t, []byte{0x07, 0x00, 0x32, 0x00, 0x04, 0x03, 0x02, 0x01, 0x00, 0x00, 0x20, 0x00}, data)
	require.Equal(t, r, parseReport(data))

	gpio, ok := r.Watchdog()
	require.True(t, ok)
	require.Equal(t, uint(18), gpio)
	require.False(t, r.KeepAlive())

	_, ok = Report{Flags: notifyFlagAlive}.Watchdog()
	require.False(t, ok)
	require.True(t, Report{Flags: notifyFlagAlive}.KeepAlive())
	require.True(t, Report{Flags: notifyFlagEvent}.Event())
}

func TestEdgeMatches(t *testing.T) {
	for _, tc := range []struct {
		edge  Edge
		level Level
		match bool
	}{
		{RisingEdge, High, true},
		{RisingEdge, Low, false},
		{FallingEdge, High, false},
		{FallingEdge, Low, true},
		{EitherEdge, High, true},
		{EitherEdge, Low, true},
	} {
		t.Run(tc.edge.String()+"/"+tc.level.String(), func(t *testing.T) {
			require.Equal(t, tc.match, tc.edge.Matches(tc.level))
		})
	}
}

func TestParseNames(t *testing.T) {
	m, err := ParseMode("OUTPUT")
	require.NoError(t, err)
	require.Equal(t, ModeOutput, m)
	m, err = ParseMode("alt4")
	require.NoError(t, err)
	require.Equal(t, ModeAlt4, m)
	_, err = ParseMode("pwm")
	require.EqualError(t, err, `unknown mode "pwm"`)

	p, err := ParsePull("up")
	require.NoError(t, err)
	require.Equal(t, PullUp, p)
	_, err = ParsePull("sideways")
	require.Error(t, err)

	e, err := ParseEdge("both")
	require.NoError(t, err)
	require.Equal(t, EitherEdge, e)

	l, err := ParseLevel("on")
	require.NoError(t, err)
	require.Equal(t, High, l)
	_, err = ParseLevel("2")
	require.Error(t, err)

	require.Equal(t, "WRITE", CommandWRITE.String())
	require.Equal(t, "CMD(200)", Command(200).String())
	require.Equal(t, "unknown error -999", ErrorCode(-999).Error())
}
