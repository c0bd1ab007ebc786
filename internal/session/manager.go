package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/JuanCF/scrcpy-mcp/internal/adbexec"
	"github.com/JuanCF/scrcpy-mcp/internal/config"
	"github.com/JuanCF/scrcpy-mcp/internal/errkind"
	"github.com/JuanCF/scrcpy-mcp/internal/wire"
)

// metadataFrameSize is the fixed 64-byte device name + 4-byte codec id +
// 4-byte width + 4-byte height the server writes on the video socket
// before any frame data.
const metadataFrameSize = 76

const dummyByteBudget = 10 * time.Second
const metadataTimeout = 5 * time.Second

// Manager owns every live Session, keyed by device serial.
type Manager struct {
	adb      ADBClient
	cfg      *config.Config
	observer Observer

	mu       sync.Mutex
	sessions map[string]*Session

	listenPort func() (net.Listener, int, error)
}

// NewManager builds a Manager over the given ADB client and config. obs may
// be nil (e.g. before the events hub is wired up).
func NewManager(adb ADBClient, cfg *config.Config, obs Observer) *Manager {
	return &Manager{
		adb:        adb,
		cfg:        cfg,
		observer:   obs,
		sessions:   make(map[string]*Session),
		listenPort: listenEphemeral,
	}
}

// Get returns the current session for serial, if one is registered
// (regardless of its state).
func (m *Manager) Get(serial string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[serial]
	return s, ok
}

// All returns a snapshot of every tracked session.
func (m *Manager) All() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) remove(serial string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[serial]; ok && cur == s {
		delete(m.sessions, serial)
	}
}

// Start brings up (or returns the existing) session for serial, following
// spec.md §4.D's start-session protocol: locate the server jar, push it,
// generate a scid, forward an ephemeral port, spawn the server, verify the
// dummy byte on both sockets, then parse the 76-byte metadata frame.
func (m *Manager) Start(ctx context.Context, serial string) (*Session, error) {
	resolved, err := m.adb.ResolveSerial(ctx, serial)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[resolved]; ok && existing.State() == StateReady {
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	jarPath, err := locateServerJar(m.cfg.ServerJarSearchPath)
	if err != nil {
		return nil, err
	}

	if err := m.adb.Push(ctx, resolved, jarPath, wire.RemoteServerPath, adbexec.DefaultTimeout); err != nil {
		return nil, fmt.Errorf("pushing scrcpy server jar: %w", err)
	}

	scid := newSCID()
	sess := &Session{
		Serial:        resolved,
		SCID:          scid,
		ServerVersion: m.cfg.ServerVersion,
		writeCh:       make(chan writeRequest),
		done:          make(chan struct{}),
		manager:       m,
	}
	sess.setState(StateConnecting)

	m.mu.Lock()
	m.sessions[resolved] = sess
	m.mu.Unlock()

	if err := m.connect(ctx, sess); err != nil {
		sess.teardown(err)
		return nil, err
	}

	sess.setState(StateReady)
	go sess.writerLoop()
	go sess.readerLoop()

	return sess, nil
}

// connect performs the forward tunnel, server spawn, dual-socket accept,
// dummy-byte verification, and metadata parse for a freshly allocated
// Session. On any failure it cleans up the port forward it installed.
func (m *Manager) connect(ctx context.Context, sess *Session) error {
	listener, port, err := m.listenPort()
	if err != nil {
		return fmt.Errorf("allocating local port: %w", err)
	}
	defer listener.Close()
	sess.localPort = port

	socketName := sess.SocketName()
	if err := m.adb.Forward(ctx, sess.Serial, port, socketName); err != nil {
		return fmt.Errorf("installing adb forward: %w", err)
	}
	cleanupForward := true
	defer func() {
		if cleanupForward {
			_ = m.adb.RemoveForward(ctx, sess.Serial, port)
		}
	}()

	args := wire.ServerArgs(sess.ServerVersion, fmt.Sprintf("%08x", sess.SCID), m.cfg.DefaultMaxSize, m.cfg.DefaultMaxFPS, m.cfg.DefaultVideoBitRate)
	if err := m.adb.StartBackground(sess.Serial, args); err != nil {
		return fmt.Errorf("spawning scrcpy server: %w", err)
	}

	// scrcpy connects video first, then control, on the same forwarded port.
	videoConn, err := acceptWithin(listener, dummyByteBudget)
	if err != nil {
		return errkind.Wrap(errkind.DummyByteMissing, err, "accepting video socket")
	}
	if err := readDummyByte(videoConn, dummyByteBudget); err != nil {
		videoConn.Close()
		return err
	}

	controlConn, err := acceptWithin(listener, dummyByteBudget)
	if err != nil {
		videoConn.Close()
		return errkind.Wrap(errkind.DummyByteMissing, err, "accepting control socket")
	}
	if err := readDummyByte(controlConn, dummyByteBudget); err != nil {
		videoConn.Close()
		controlConn.Close()
		return err
	}

	meta, overflow, err := readMetadata(videoConn, metadataTimeout)
	if err != nil {
		videoConn.Close()
		controlConn.Close()
		return err
	}

	sess.videoConn = videoConn
	sess.controlConn = controlConn
	sess.metadataMu.Lock()
	sess.metadata = meta
	sess.overflow = overflow
	sess.metadataMu.Unlock()

	cleanupForward = false // hand off to teardown, which removes it on stop
	return nil
}

// Stop tears an existing session down: closes sockets, removes the port
// forward, and best-effort kills the device-side server process. Idempotent.
func (m *Manager) Stop(ctx context.Context, serial string) error {
	m.mu.Lock()
	sess, ok := m.sessions[serial]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	sess.teardown(errkind.New(errkind.TransportBroken, "session stopped"))

	if sess.localPort != 0 {
		_ = m.adb.RemoveForward(ctx, serial, sess.localPort)
	}
	_, _ = m.adb.Shell(ctx, serial, "pkill -f scrcpy-server", 5*time.Second)
	return nil
}

// NewTestSession registers a Ready session wired to controlConn, bypassing
// the jar-push/forward/spawn handshake entirely. It exists so router
// fallback behavior (spec.md §7: scrcpy rung fails, ADB rung completes the
// operation) can be exercised against a real Session without a device or
// scrcpy-server attached.
func (m *Manager) NewTestSession(serial string, controlConn net.Conn) *Session {
	sess := &Session{
		Serial:      serial,
		SCID:        newSCID(),
		controlConn: controlConn,
		writeCh:     make(chan writeRequest),
		done:        make(chan struct{}),
		manager:     m,
	}
	m.mu.Lock()
	m.sessions[serial] = sess
	m.mu.Unlock()
	sess.setState(StateReady)
	go sess.writerLoop()
	go sess.readerLoop()
	return sess
}

func acceptWithin(l net.Listener, budget time.Duration) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-time.After(budget):
		return nil, fmt.Errorf("no connection within %s", budget)
	}
}

// readDummyByte reads and discards scrcpy's single dummy verification byte
// written immediately after connecting, within budget.
func readDummyByte(conn net.Conn, budget time.Duration) error {
	conn.SetReadDeadline(time.Now().Add(budget))
	defer conn.SetReadDeadline(time.Time{})

	b := make([]byte, 1)
	if _, err := io.ReadFull(conn, b); err != nil {
		return errkind.Wrap(errkind.DummyByteMissing, err, "reading dummy byte")
	}
	return nil
}

// readMetadata reads the fixed 76-byte device metadata frame from the
// video socket: 64-byte NUL-padded device name, 4-byte codec id, 4-byte
// width, 4-byte height, all big-endian. A single TCP Read is not bounded
// to the frame size, so any bytes the kernel hands back past byte 76 in
// the same chunk are the start of the first video access unit; they are
// returned as overflow rather than discarded, per spec.md §4.D/§9.
func readMetadata(conn net.Conn, budget time.Duration) (Metadata, []byte, error) {
	conn.SetReadDeadline(time.Now().Add(budget))
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 0, metadataFrameSize)
	chunk := make([]byte, 4096)
	for len(buf) < metadataFrameSize {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if len(buf) >= metadataFrameSize {
				break
			}
			return Metadata{}, nil, errkind.Wrap(errkind.MetadataTimeout, err, "reading device metadata frame")
		}
	}

	frame := buf[:metadataFrameSize]
	var overflow []byte
	if len(buf) > metadataFrameSize {
		overflow = buf[metadataFrameSize:]
	}

	name := frame[:64]
	nameLen := 0
	for nameLen < len(name) && name[nameLen] != 0 {
		nameLen++
	}

	meta := Metadata{
		DeviceName: string(name[:nameLen]),
		CodecID:    beUint32(frame[64:68]),
		Width:      beUint32(frame[68:72]),
		Height:     beUint32(frame[72:76]),
	}
	return meta, overflow, nil
}

func listenEphemeral() (net.Listener, int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	return l, port, nil
}
