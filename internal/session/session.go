// Package session implements the scrcpy session engine: lifecycle
// management of a pushed-jar server process on the device, the
// forward-tunnel handshake, device/codec metadata framing, the control
// socket write queue, and the clipboard reply demux. This is the hardest
// subsystem in the bridge (spec.md §4.D).
package session

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JuanCF/scrcpy-mcp/internal/adbexec"
	"github.com/JuanCF/scrcpy-mcp/internal/codec"
	"github.com/JuanCF/scrcpy-mcp/internal/config"
	"github.com/JuanCF/scrcpy-mcp/internal/errkind"
	"github.com/JuanCF/scrcpy-mcp/internal/wire"
)

// State is one of the four session lifecycle states spec.md §4.D names.
type State int32

const (
	StateAbsent State = iota
	StateConnecting
	StateReady
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Metadata is the 76-byte device metadata frame (spec.md §3, §6).
type Metadata struct {
	DeviceName string
	CodecID    uint32
	Width      uint32
	Height     uint32
}

// Observer receives session lifecycle notifications. Implemented by the
// events package; nil-safe (Manager tolerates a nil Observer).
type Observer interface {
	SessionStateChanged(serial string, state State)
}

type writeRequest struct {
	payload []byte
	errCh   chan error
}

type clipboardWaiter struct {
	resultCh chan codec.ClipboardReply
	errCh    chan error
}

// Session is the per-serial, process-lifetime scrcpy connection.
type Session struct {
	Serial        string
	SCID          uint32 // 31-bit, rendered as 8 lowercase hex digits
	ServerVersion string

	videoConn   net.Conn
	controlConn net.Conn
	localPort   int

	metadataMu sync.RWMutex
	metadata   Metadata
	overflow   []byte // bytes spilled past byte 76 on the video socket

	clipboardSeq atomic.Uint64

	writeCh chan writeRequest

	waitersMu sync.Mutex
	waiters   []*clipboardWaiter

	state     atomic.Int32
	closeOnce sync.Once
	done      chan struct{}

	manager *Manager
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Metadata returns the device metadata captured at handshake time.
func (s *Session) Metadata() Metadata {
	s.metadataMu.RLock()
	defer s.metadataMu.RUnlock()
	return s.metadata
}

// SocketName renders the abstract socket name scrcpy_<scid> for this
// session, matching spec.md's "scrcpy_<scid>" naming scheme exactly.
func (s *Session) SocketName() string {
	return fmt.Sprintf("%s%08x", wire.AbstractSocketPrefix, s.SCID)
}

// Write enqueues a pre-encoded control message. Writes for one session are
// globally ordered: a single goroutine drains writeCh in FIFO order, so
// concurrent callers never interleave partial messages.
func (s *Session) Write(ctx context.Context, payload []byte) error {
	if s.State() != StateReady {
		return errkind.New(errkind.TransportBroken, "session %s is not ready", s.Serial)
	}
	req := writeRequest{payload: payload, errCh: make(chan error, 1)}
	select {
	case s.writeCh <- req:
	case <-s.done:
		return errkind.New(errkind.TransportBroken, "session %s closed while enqueueing write", s.Serial)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.errCh:
		return err
	case <-s.done:
		return errkind.New(errkind.TransportBroken, "session %s closed before write completed", s.Serial)
	}
}

// NextClipboardSequence returns the next value of the monotonically
// increasing clipboard-set sequence counter, starting at 1.
func (s *Session) NextClipboardSequence() uint64 {
	return s.clipboardSeq.Add(1)
}

// RequestClipboard sends GET_CLIPBOARD and waits for the oldest unresolved
// clipboard reply to arrive, FIFO with every other concurrent request on
// this session. Times out after 2s per spec.md §4.D.
func (s *Session) RequestClipboard(ctx context.Context, copyKey int) (string, error) {
	waiter := &clipboardWaiter{
		resultCh: make(chan codec.ClipboardReply, 1),
		errCh:    make(chan error, 1),
	}

	s.waitersMu.Lock()
	s.waiters = append(s.waiters, waiter)
	s.waitersMu.Unlock()

	if err := s.Write(ctx, codec.GetClipboard(copyKey)); err != nil {
		s.removeWaiter(waiter)
		return "", err
	}

	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()

	select {
	case reply := <-waiter.resultCh:
		return reply.Text, nil
	case err := <-waiter.errCh:
		return "", err
	case <-timer.C:
		s.removeWaiter(waiter)
		return "", errkind.New(errkind.ClipboardTimeout, "clipboard reply not received within 2s")
	case <-s.done:
		return "", errkind.New(errkind.TransportBroken, "session %s closed while awaiting clipboard reply", s.Serial)
	case <-ctx.Done():
		s.removeWaiter(waiter)
		return "", ctx.Err()
	}
}

func (s *Session) removeWaiter(target *clipboardWaiter) {
	s.waitersMu.Lock()
	defer s.waitersMu.Unlock()
	for i, w := range s.waiters {
		if w == target {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}

// popWaiter removes and returns the oldest pending clipboard waiter, or nil.
func (s *Session) popWaiter() *clipboardWaiter {
	s.waitersMu.Lock()
	defer s.waitersMu.Unlock()
	if len(s.waiters) == 0 {
		return nil
	}
	w := s.waiters[0]
	s.waiters = s.waiters[1:]
	return w
}

// writerLoop is the single writer for the control socket: it owns write
// ordering for the whole session lifetime.
func (s *Session) writerLoop() {
	for {
		select {
		case req := <-s.writeCh:
			_, err := s.controlConn.Write(req.payload)
			req.errCh <- err
			if err != nil {
				s.teardown(errkind.Wrap(errkind.TransportBroken, err, "control socket write failed"))
				return
			}
		case <-s.done:
			return
		}
	}
}

// readerLoop demultiplexes device->host messages off the control socket.
// Only the clipboard reply (type 0) is currently consumed.
func (s *Session) readerLoop() {
	header := make([]byte, 1)
	for {
		if _, err := io.ReadFull(s.controlConn, header); err != nil {
			s.teardown(errkind.Wrap(errkind.TransportBroken, err, "control socket read failed"))
			return
		}

		switch header[0] {
		case wire.DeviceMsgClipboard:
			lenBuf := make([]byte, 4)
			if _, err := io.ReadFull(s.controlConn, lenBuf); err != nil {
				s.teardown(errkind.Wrap(errkind.TransportBroken, err, "reading clipboard reply length"))
				return
			}
			n := beUint32(lenBuf)
			if n > wire.MaxClipboardBytes {
				s.failAllWaiters(errkind.New(errkind.OversizeClipboardReply, "device reported %d bytes, max %d", n, wire.MaxClipboardBytes))
				s.teardown(errkind.New(errkind.OversizeClipboardReply, "device reported %d bytes, max %d", n, wire.MaxClipboardBytes))
				return
			}
			body := make([]byte, n)
			if _, err := io.ReadFull(s.controlConn, body); err != nil {
				s.teardown(errkind.Wrap(errkind.TransportBroken, err, "reading clipboard reply body"))
				return
			}
			reply := codec.ClipboardReply{Text: string(body)}
			if w := s.popWaiter(); w != nil {
				w.resultCh <- reply
			}
		default:
			// Unknown device message types are out of scope (video/audio
			// framing); skip nothing because we cannot know their length,
			// so treat as a protocol desync and tear the session down.
			s.teardown(errkind.New(errkind.TransportBroken, "unexpected device message type %d", header[0]))
			return
		}
	}
}

func (s *Session) failAllWaiters(err error) {
	s.waitersMu.Lock()
	defer s.waitersMu.Unlock()
	for _, w := range s.waiters {
		w.errCh <- err
	}
	s.waiters = nil
}

// teardown transitions the session to Closing, closes sockets, fails
// pending waiters, and drains the table entry. Safe to call multiple times
// and from multiple goroutines.
func (s *Session) teardown(cause error) {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		close(s.done)
		s.failAllWaiters(cause)
		if s.videoConn != nil {
			s.videoConn.Close()
		}
		if s.controlConn != nil {
			s.controlConn.Close()
		}
		if s.manager != nil {
			s.manager.remove(s.Serial, s)
		}
		s.setState(StateAbsent)
	})
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	if s.manager != nil && s.manager.observer != nil {
		s.manager.observer.SessionStateChanged(s.Serial, st)
	}
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// newSCID returns a uniformly random 31-bit session-connection-id.
func newSCID() uint32 {
	return rand.Uint32() & 0x7FFFFFFF
}

// ADBClient is the subset of adbexec.Client the session engine needs,
// declared here so tests can substitute a fake.
type ADBClient interface {
	ResolveSerial(ctx context.Context, serial string) (string, error)
	Push(ctx context.Context, serial, localPath, remotePath string, timeout time.Duration) error
	Forward(ctx context.Context, serial string, localPort int, remoteSocket string) error
	RemoveForward(ctx context.Context, serial string, localPort int) error
	StartBackground(serial string, args []string) error
	Shell(ctx context.Context, serial, command string, timeout time.Duration) (string, error)
}

var _ ADBClient = (*adbexec.Client)(nil)
var _ = config.Config{} // config.Config is consumed by Manager in manager.go
