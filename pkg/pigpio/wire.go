package pigpio

import (
	"encoding/binary"
	"fmt"
)

const (
	requestLen  = 16
	responseLen = 16
	reportLen   = 12
)

// request is a command frame as sent on the control socket.
type request struct {
	cmd    Command
	p1, p2 uint32
	ext    []byte
}

func (r request) Marshal() []byte {
	result := make([]byte, requestLen, requestLen+len(r.ext))
	binary.LittleEndian.PutUint32(result[0:], uint32(r.cmd))
	binary.LittleEndian.PutUint32(result[4:], r.p1)
	binary.LittleEndian.PutUint32(result[8:], r.p2)
	binary.LittleEndian.PutUint32(result[12:], uint32(len(r.ext)))
	return append(result, r.ext...)
}

type response struct {
	cmd    Command
	p1, p2 uint32
	res    uint32
}

func parseResponse(data []byte) (response, error) {
	if len(data) != responseLen {
		return response{}, fmt.Errorf("invalid response length %d", len(data))
	}
	return response{
		cmd: Command(binary.LittleEndian.Uint32(data[0:])),
		p1:  binary.LittleEndian.Uint32(data[4:]),
		p2:  binary.LittleEndian.Uint32(data[8:]),
		res: binary.LittleEndian.Uint32(data[12:]),
	}, nil
}

// status interprets res as the signed status most commands return.
func (r response) status() int32 {
	return int32(r.res)
}

// Report is one entry of the notification stream.
type Report struct {
	Seqno uint16
	Flags uint16
	Tick  uint32
	Level uint32
}

func parseReport(data []byte) Report {
	return Report{
		Seqno: binary.LittleEndian.Uint16(data[0:]),
		Flags: binary.LittleEndian.Uint16(data[2:]),
		Tick:  binary.LittleEndian.Uint32(data[4:]),
		Level: binary.LittleEndian.Uint32(data[8:]),
	}
}

func (r Report) Marshal() []byte {
	result := make([]byte, reportLen)
	binary.LittleEndian.PutUint16(result[0:], r.Seqno)
	binary.LittleEndian.PutUint16(result[2:], r.Flags)
	binary.LittleEndian.PutUint32(result[4:], r.Tick)
	binary.LittleEndian.PutUint32(result[8:], r.Level)
	return result
}

func (r Report) Watchdog() (gpio uint, ok bool) {
	if r.Flags&notifyFlagWatchdog == 0 {
		return 0, false
	}
	return uint(r.Flags & notifyFlagGPIOMask), true
}

func (r Report) KeepAlive() bool {
	return r.Flags&notifyFlagAlive != 0
}

func (r Report) Event() bool {
	return r.Flags&notifyFlagEvent != 0
}
