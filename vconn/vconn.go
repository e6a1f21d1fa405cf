// Package vconn defines the network vconnection abstraction the session
// pool and session manager depend on, plus a reference implementation
// wrapping a net.Conn. The real network vconnection (the ATS
// NetVConnection, backed by epoll) is an external collaborator; this
// package supplies the narrow interface the pool and manager need from it,
// plus a goroutine-based implementation adapted from
// github.com/One-com/gone/netutil/reaper's activity-tracking idiom, good
// enough to exercise the acquire/release/migrate protocol end to end in
// tests and in the demo command.
package vconn

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mattyw/trafficserver/netutil/reaper"
	"github.com/mattyw/trafficserver/reactor"
)

// EventCode enumerates the asynchronous I/O events the reactor delivers to
// whichever EventTarget currently owns a vconnection's registration.
type EventCode int

const (
	// ReadReady fires when unsolicited bytes arrive.
	ReadReady EventCode = iota
	// EOS fires when the peer closes its write side.
	EOS
	// Error fires on any I/O error other than a clean close.
	Error
	// InactivityTimeout fires when no I/O has happened within the
	// connection's configured inactivity window.
	InactivityTimeout
	// ActiveTimeout fires when an absolute (not idle) timer expires.
	ActiveTimeout
)

func (e EventCode) String() string {
	switch e {
	case ReadReady:
		return "READ_READY"
	case EOS:
		return "EOS"
	case Error:
		return "ERROR"
	case InactivityTimeout:
		return "INACTIVITY_TIMEOUT"
	case ActiveTimeout:
		return "ACTIVE_TIMEOUT"
	}
	return "UNKNOWN"
}

// EventTarget receives asynchronous events for a vconnection it is
// currently registered against (do_io_read/do_io_write's "target"
// argument). The session pool implements this while a session is pooled;
// the SM effectively takes over once a session is acquired.
type EventTarget interface {
	HandleEvent(event EventCode, vc NetVConnection)
}

// NetVConnection is the external network-connection interface the session
// pool and session manager consume.
type NetVConnection interface {
	RemoteAddr() net.Addr
	SNIServername() string
	ClientCertName() string
	Thread() *reactor.Thread

	InactivityTimeout() time.Duration
	SetInactivityTimeout(time.Duration)
	CancelActiveTimeout()

	DoIORead(target EventTarget, nbytes int64)
	DoIOWrite(target EventTarget, nbytes int64)

	Close() error

	// MigrateToCurrentThread moves the vconnection's registration onto
	// thread. It returns the vconnection to keep using (which may be the
	// same value, or a replacement) and true on success, or (nil, false)
	// if migration failed and the session must be closed.
	MigrateToCurrentThread(thread *reactor.Thread) (NetVConnection, bool)
}

// TCPVConn is the reference NetVConnection implementation, backed by a real
// net.Conn and an inactivity reaper.
type TCPVConn struct {
	reaper.ActivityCounter

	conn           net.Conn
	sni            string
	clientCertName string

	mu                sync.Mutex
	thread            *reactor.Thread
	inactivityTimeout time.Duration
	activeDeadline    time.Time
	activeArmed       bool
	target            EventTarget
	closed            bool
	rp                *reaper.Reaper

	// Migrator overrides MigrateToCurrentThread's behavior; tests use this
	// to simulate migration failure or replacement without needing a real
	// second network stack. A nil Migrator means "always succeed by
	// reassigning thread and keeping the same vconnection", which is what
	// a single-process Go implementation can genuinely do since goroutines
	// aren't pinned to OS threads.
	Migrator func(current NetVConnection, thread *reactor.Thread) (NetVConnection, bool)
}

// New wraps conn as a NetVConnection owned by thread, polled for inactivity
// by rp (pass nil to disable inactivity polling, e.g. in unit tests that
// drive timeouts manually).
func New(conn net.Conn, thread *reactor.Thread, sni, clientCertName string, rp *reaper.Reaper) *TCPVConn {
	return &TCPVConn{
		conn:           conn,
		sni:            sni,
		clientCertName: clientCertName,
		thread:         thread,
		rp:             rp,
	}
}

// RemoteAddr implements NetVConnection.
func (v *TCPVConn) RemoteAddr() net.Addr { return v.conn.RemoteAddr() }

// SNIServername implements NetVConnection.
func (v *TCPVConn) SNIServername() string { return v.sni }

// ClientCertName implements NetVConnection.
func (v *TCPVConn) ClientCertName() string { return v.clientCertName }

// Thread implements NetVConnection.
func (v *TCPVConn) Thread() *reactor.Thread {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.thread
}

// InactivityTimeout implements NetVConnection.
func (v *TCPVConn) InactivityTimeout() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inactivityTimeout
}

// SetInactivityTimeout implements NetVConnection. Re-arming with the same
// (or any) duration also resets the deadline, matching the original's
// pattern of calling set_inactivity_timeout(get_inactivity_timeout()) purely
// to restart the clock.
func (v *TCPVConn) SetInactivityTimeout(d time.Duration) {
	v.mu.Lock()
	v.inactivityTimeout = d
	if d > 0 {
		v.activeDeadline = time.Now().Add(d)
		v.activeArmed = true
	} else {
		v.activeArmed = false
	}
	rp := v.rp
	v.mu.Unlock()
	if rp != nil {
		rp.Watch(v)
	}
}

// CancelActiveTimeout implements NetVConnection. TCPVConn arms no absolute
// (active) timer of its own, so there is nothing to cancel; the inactivity
// deadline set by SetInactivityTimeout stays armed.
func (v *TCPVConn) CancelActiveTimeout() {}

// ActivityCount implements reaper.Watched.
func (v *TCPVConn) ActivityCount() uint64 { return v.Load() }

// Deadline implements reaper.Watched.
func (v *TCPVConn) Deadline() (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.activeDeadline, v.activeArmed
}

// OnReaperTimeout implements reaper.Watched, translating an expired
// deadline into an INACTIVITY_TIMEOUT event for whichever target currently
// owns this connection.
func (v *TCPVConn) OnReaperTimeout() {
	v.deliver(InactivityTimeout)
}

// DoIORead implements NetVConnection. nbytes is accepted for interface
// parity with the original's do_io_read(cont, nbytes, buf) but this
// reference implementation only needs to know who to notify: it makes target
// the recipient of events and starts a new goroutine blocked on Read,
// translating the result into READ_READY, EOS or ERROR for whichever target
// is registered when the read completes.
func (v *TCPVConn) DoIORead(target EventTarget, nbytes int64) {
	v.mu.Lock()
	v.target = target
	already := v.closed
	v.mu.Unlock()
	if already {
		return
	}
	go v.readLoop()
}

// DoIOWrite implements NetVConnection. With nbytes == 0, the only case the
// pool itself ever issues on a session release, this simply retargets event
// delivery without generating traffic.
func (v *TCPVConn) DoIOWrite(target EventTarget, nbytes int64) {
	v.mu.Lock()
	v.target = target
	v.mu.Unlock()
}

func (v *TCPVConn) readLoop() {
	buf := make([]byte, 1)
	n, err := v.conn.Read(buf)
	v.Bump()
	if err != nil {
		if errors.Is(err, io.EOF) {
			v.deliver(EOS)
		} else {
			v.deliver(Error)
		}
		return
	}
	if n > 0 {
		v.deliver(ReadReady)
	}
}

func (v *TCPVConn) deliver(event EventCode) {
	v.mu.Lock()
	target := v.target
	v.mu.Unlock()
	if target != nil {
		target.HandleEvent(event, v)
	}
}

// Close implements NetVConnection.
func (v *TCPVConn) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	rp := v.rp
	v.mu.Unlock()
	if rp != nil {
		rp.Forget(v)
	}
	return v.conn.Close()
}

// MigrateToCurrentThread implements NetVConnection.
func (v *TCPVConn) MigrateToCurrentThread(thread *reactor.Thread) (NetVConnection, bool) {
	if v.Migrator != nil {
		return v.Migrator(v, thread)
	}
	v.mu.Lock()
	v.thread = thread
	v.mu.Unlock()
	return v, true
}
