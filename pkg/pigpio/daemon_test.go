package pigpio

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeDaemon speaks enough of the pigpiod socket protocol for the client
// tests. It keeps pin state in memory.
type fakeDaemon struct {
	t  *testing.T
	ln net.Listener

	mutex     sync.Mutex
	requests  []request
	modes     map[uint32]uint32
	levels    uint32
	monitored uint32
	failures  map[Command]int32
	stall     map[Command]bool
	control   []net.Conn
	notify    net.Conn
	handleID  uint32

	notifyOpened chan struct{}
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d := &fakeDaemon{
		t:            t,
		ln:           ln,
		modes:        map[uint32]uint32{},
		failures:     map[Command]int32{},
		stall:        map[Command]bool{},
		handleID:     3,
		notifyOpened: make(chan struct{}),
	}
	go d.accept()
	t.Cleanup(d.close)
	return d
}

func (d *fakeDaemon) Addr() string {
	return d.ln.Addr().String()
}

func (d *fakeDaemon) accept() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go d.serve(conn)
	}
}

func (d *fakeDaemon) serve(conn net.Conn) {
	d.mutex.Lock()
	d.control = append(d.control, conn)
	d.mutex.Unlock()

	buf := make([]byte, requestLen)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		req := request{
			cmd: Command(binary.LittleEndian.Uint32(buf[0:])),
			p1:  binary.LittleEndian.Uint32(buf[4:]),
			p2:  binary.LittleEndian.Uint32(buf[8:]),
		}
		if extLen := binary.LittleEndian.Uint32(buf[12:]); extLen > 0 {
			req.ext = make([]byte, extLen)
			if _, err := io.ReadFull(conn, req.ext); err != nil {
				return
			}
		}

		res, stall := d.handle(conn, req)
		if stall {
			continue
		}
		out := make([]byte, responseLen)
		copy(out, buf[:12])
		binary.LittleEndian.PutUint32(out[12:], uint32(res))
		if _, err := conn.Write(out); err != nil {
			return
		}
		if req.cmd == CommandNOIB {
			// the socket now only carries reports
			close(d.notifyOpened)
			return
		}
	}
}

func (d *fakeDaemon) handle(conn net.Conn, req request) (int32, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.requests = append(d.requests, req)

	if d.stall[req.cmd] {
		return 0, true
	}
	if code, ok := d.failures[req.cmd]; ok {
		return code, false
	}
	switch req.cmd {
	case CommandMODES:
		d.modes[req.p1] = req.p2
	case CommandMODEG:
		return int32(d.modes[req.p1]), false
	case CommandREAD:
		return int32((d.levels >> req.p1) & 1), false
	case CommandWRITE:
		if req.p2 == 1 {
			d.levels |= 1 << req.p1
		} else {
			d.levels &^= 1 << req.p1
		}
	case CommandBR1:
		return int32(d.levels), false
	case CommandTICK:
		return 123456, false
	case CommandHWVER:
		return 0xa02082, false
	case CommandPIGPV:
		return 79, false
	case CommandGDC:
		return 128, false
	case CommandPRS, CommandPFS:
		return int32(req.p2), false
	case CommandNOIB:
		d.notify = conn
		return int32(d.handleID), false
	case CommandNB:
		if req.p1 != d.handleID {
			return int32(ErrBadHandle), false
		}
		d.monitored = req.p2
	case CommandNC:
		if d.notify != nil {
			_ = d.notify.Close()
		}
	}
	return 0, false
}

// send pushes a report on the notification socket.
func (d *fakeDaemon) send(r Report) {
	select {
	case <-d.notifyOpened:
	case <-time.After(time.Second):
		d.t.Fatal("notification socket not opened")
	}
	d.mutex.Lock()
	conn := d.notify
	d.mutex.Unlock()
	_, err := conn.Write(r.Marshal())
	require.NoError(d.t, err)
}

func (d *fakeDaemon) setLevels(levels uint32) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.levels = levels
}

func (d *fakeDaemon) fail(cmd Command, code ErrorCode) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.failures[cmd] = int32(code)
}

func (d *fakeDaemon) stallOn(cmd Command) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.stall[cmd] = true
}

func (d *fakeDaemon) commands() []Command {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	var cmds []Command
	for _, r := range d.requests {
		cmds = append(cmds, r.cmd)
	}
	return cmds
}

func (d *fakeDaemon) lastRequest() request {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.requests[len(d.requests)-1]
}

func (d *fakeDaemon) monitoredBits() uint32 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.monitored
}

// dropConnections simulates the daemon going away.
func (d *fakeDaemon) dropConnections() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, c := range d.control {
		_ = c.Close()
	}
}

func (d *fakeDaemon) close() {
	_ = d.ln.Close()
	d.dropConnections()
}
