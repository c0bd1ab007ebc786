package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/JuanCF/scrcpy-mcp/internal/config"
	"github.com/JuanCF/scrcpy-mcp/internal/wire"
)

func TestLocateServerJar(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "scrcpy-server.jar")
	if err := os.WriteFile(jar, []byte("stub"), 0o644); err != nil {
		t.Fatalf("writing stub jar: %v", err)
	}

	got, err := locateServerJar([]string{filepath.Join(dir, "missing.jar"), jar})
	if err != nil {
		t.Fatalf("locateServerJar returned error: %v", err)
	}
	if got != jar {
		t.Errorf("locateServerJar = %q, want %q", got, jar)
	}
}

func TestLocateServerJarNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := locateServerJar([]string{filepath.Join(dir, "nope.jar")})
	if err == nil {
		t.Fatal("expected error when no jar exists in any search path")
	}
}

func TestReadMetadata(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	frame := make([]byte, metadataFrameSize)
	copy(frame, []byte("Pixel 7 Pro"))
	frame[64] = 0x00
	frame[65] = 0x00
	frame[66] = 0x00
	frame[67] = 0x04 // codec id 4 (h264)
	frame[68], frame[69], frame[70], frame[71] = 0x00, 0x00, 0x04, 0x38 // width 1080
	frame[72], frame[73], frame[74], frame[75] = 0x00, 0x00, 0x08, 0x70 // height 2160

	go func() {
		client.Write(frame)
	}()

	meta, overflow, err := readMetadata(server, time.Second)
	if err != nil {
		t.Fatalf("readMetadata returned error: %v", err)
	}
	if meta.DeviceName != "Pixel 7 Pro" {
		t.Errorf("DeviceName = %q, want %q", meta.DeviceName, "Pixel 7 Pro")
	}
	if meta.CodecID != 4 {
		t.Errorf("CodecID = %d, want 4", meta.CodecID)
	}
	if meta.Width != 1080 {
		t.Errorf("Width = %d, want 1080", meta.Width)
	}
	if meta.Height != 2160 {
		t.Errorf("Height = %d, want 2160", meta.Height)
	}
	if len(overflow) != 0 {
		t.Errorf("overflow = %d bytes, want 0", len(overflow))
	}
}

func TestReadMetadataCapturesOverflow(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	frame := make([]byte, metadataFrameSize)
	copy(frame, []byte("Pixel 7 Pro"))
	frame[67] = 0x04
	videoChunk := []byte{0xAA, 0xBB, 0xCC}

	go func() {
		client.Write(append(frame, videoChunk...))
	}()

	meta, overflow, err := readMetadata(server, time.Second)
	if err != nil {
		t.Fatalf("readMetadata returned error: %v", err)
	}
	if meta.CodecID != 4 {
		t.Errorf("CodecID = %d, want 4", meta.CodecID)
	}
	if string(overflow) != string(videoChunk) {
		t.Errorf("overflow = %v, want %v", overflow, videoChunk)
	}
}

func TestSessionSocketName(t *testing.T) {
	s := &Session{SCID: 0x1a2b3c4d}
	if got, want := s.SocketName(), "scrcpy_1a2b3c4d"; got != want {
		t.Errorf("SocketName() = %q, want %q", got, want)
	}
}

func TestNewSCIDIs31Bit(t *testing.T) {
	for i := 0; i < 100; i++ {
		scid := newSCID()
		if scid&0x80000000 != 0 {
			t.Fatalf("newSCID() = %#x, has bit 31 set", scid)
		}
	}
}

// fakeADB is a minimal ADBClient that captures the forwarded port and, once
// the server is "started", dials back into the Manager's listener playing
// the scrcpy-server role: video socket first, then control socket, both
// preceded by the one-byte dummy verification scrcpy writes on connect.
type fakeADB struct {
	mu   sync.Mutex
	port int

	// serveClipboard, if true, makes the control connection also answer one
	// GET_CLIPBOARD request with a single reply frame after the dummy byte.
	serveClipboard bool

	done chan error
}

func newFakeADB(serveClipboard bool) *fakeADB {
	return &fakeADB{done: make(chan error, 1), serveClipboard: serveClipboard}
}

func (f *fakeADB) ResolveSerial(ctx context.Context, serial string) (string, error) {
	return serial, nil
}

func (f *fakeADB) Push(ctx context.Context, serial, localPath, remotePath string, timeout time.Duration) error {
	return nil
}

func (f *fakeADB) Forward(ctx context.Context, serial string, localPort int, remoteSocket string) error {
	f.mu.Lock()
	f.port = localPort
	f.mu.Unlock()
	return nil
}

func (f *fakeADB) RemoveForward(ctx context.Context, serial string, localPort int) error { return nil }

func (f *fakeADB) StartBackground(serial string, args []string) error {
	f.mu.Lock()
	port := f.port
	f.mu.Unlock()
	go func() { f.done <- f.playScrcpyServer(port) }()
	return nil
}

func (f *fakeADB) Shell(ctx context.Context, serial, command string, timeout time.Duration) (string, error) {
	return "", nil
}

func (f *fakeADB) playScrcpyServer(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	videoConn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing video socket: %w", err)
	}
	defer videoConn.Close()
	if _, err := videoConn.Write([]byte{0x00}); err != nil {
		return fmt.Errorf("writing video dummy byte: %w", err)
	}

	frame := make([]byte, metadataFrameSize)
	copy(frame, []byte("Pixel 7 Pro"))
	frame[67] = 0x04                                                     // codec id 4 (h264)
	frame[68], frame[69], frame[70], frame[71] = 0x00, 0x00, 0x04, 0x38 // width 1080
	frame[72], frame[73], frame[74], frame[75] = 0x00, 0x00, 0x08, 0x70 // height 2160
	if _, err := videoConn.Write(frame); err != nil {
		return fmt.Errorf("writing metadata frame: %w", err)
	}

	controlConn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing control socket: %w", err)
	}
	defer controlConn.Close()
	if _, err := controlConn.Write([]byte{0x00}); err != nil {
		return fmt.Errorf("writing control dummy byte: %w", err)
	}

	if !f.serveClipboard {
		<-time.After(200 * time.Millisecond)
		return nil
	}

	req := make([]byte, 2)
	if _, err := io.ReadFull(controlConn, req); err != nil {
		return fmt.Errorf("reading GET_CLIPBOARD request: %w", err)
	}
	reply := append([]byte{0, 0, 0, 0, 5}, []byte("hello")...)
	if _, err := controlConn.Write(reply); err != nil {
		return fmt.Errorf("writing clipboard reply: %w", err)
	}
	return nil
}

// TestManagerConnectSessionStartProtocol drives Manager.connect against a
// real TCP listener with a fake ADB client that plays the scrcpy-server
// role: it dials the video socket, writes the dummy byte and metadata
// frame, then dials the control socket and writes its own dummy byte. This
// is a regression test for the dummy-byte verification on the control
// socket: if that read is ever skipped again, the leftover dummy byte
// becomes the first byte readerLoop consumes and the clipboard round trip
// below fails or the session is torn down.
func TestManagerConnectSessionStartProtocol(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "scrcpy-server.jar")
	if err := os.WriteFile(jar, []byte("stub"), 0o644); err != nil {
		t.Fatalf("writing stub jar: %v", err)
	}

	adb := newFakeADB(true)
	cfg := &config.Config{ServerVersion: "3.3.4", ServerJarSearchPath: []string{jar}}
	m := NewManager(adb, cfg, nil)

	sess, err := m.Start(context.Background(), "emulator-5554")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer sess.teardown(fmt.Errorf("test cleanup"))

	if sess.State() != StateReady {
		t.Fatalf("session state = %s, want ready", sess.State())
	}

	meta := sess.Metadata()
	if meta.DeviceName != "Pixel 7 Pro" {
		t.Errorf("DeviceName = %q, want %q", meta.DeviceName, "Pixel 7 Pro")
	}
	if meta.CodecID != 4 || meta.Width != 1080 || meta.Height != 2160 {
		t.Errorf("metadata = %+v, want codec 4, 1080x2160", meta)
	}

	text, err := sess.RequestClipboard(context.Background(), wire.CopyKeyNone)
	if err != nil {
		t.Fatalf("RequestClipboard returned error: %v", err)
	}
	if text != "hello" {
		t.Errorf("RequestClipboard = %q, want %q (control socket dummy byte leaked into the reader?)", text, "hello")
	}

	select {
	case err := <-adb.done:
		if err != nil {
			t.Errorf("fake scrcpy server reported error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fake scrcpy server never finished")
	}
}

// TestReadDummyByteTimesOutWhenAbsent verifies readDummyByte fails rather
// than treating a socket as ready when the peer never writes its dummy
// byte, per spec.md §4.D step 8 (an accepted-but-silent tunnel must not be
// mistaken for a verified connection).
func TestReadDummyByteTimesOutWhenAbsent(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	err := readDummyByte(server, 20*time.Millisecond)
	if err == nil {
		t.Fatal("readDummyByte should fail when no byte is ever written")
	}
}

// TestRequestClipboardConcurrentFIFO issues two concurrent RequestClipboard
// calls against a NewTestSession-backed session and verifies replies are
// demultiplexed in enqueue order: the first waiter gets the first device
// reply, the second waiter gets the second, per spec.md's FIFO clipboard
// demux property.
func TestRequestClipboardConcurrentFIFO(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	m := NewManager(nil, &config.Config{}, nil)
	sess := m.NewTestSession("emulator-5554", clientConn)
	defer sess.teardown(fmt.Errorf("test cleanup"))

	deviceDone := make(chan error, 1)
	go func() {
		req := make([]byte, 2)
		for i := 0; i < 2; i++ {
			if _, err := io.ReadFull(serverConn, req); err != nil {
				deviceDone <- fmt.Errorf("reading request %d: %w", i, err)
				return
			}
		}
		reply1 := append([]byte{0, 0, 0, 0, 5}, []byte("first")...)
		if _, err := serverConn.Write(reply1); err != nil {
			deviceDone <- fmt.Errorf("writing first reply: %w", err)
			return
		}
		reply2 := append([]byte{0, 0, 0, 0, 6}, []byte("second")...)
		if _, err := serverConn.Write(reply2); err != nil {
			deviceDone <- fmt.Errorf("writing second reply: %w", err)
			return
		}
		deviceDone <- nil
	}()

	type outcome struct {
		text string
		err  error
	}
	first := make(chan outcome, 1)
	second := make(chan outcome, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		text, err := sess.RequestClipboard(context.Background(), wire.CopyKeyNone)
		first <- outcome{text, err}
	}()

	// Give the first request time to enqueue its waiter and reach the
	// device before the second one is issued, so enqueue order is
	// deterministic.
	time.Sleep(50 * time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		text, err := sess.RequestClipboard(context.Background(), wire.CopyKeyNone)
		second <- outcome{text, err}
	}()

	wg.Wait()

	select {
	case err := <-deviceDone:
		if err != nil {
			t.Fatalf("fake device reported error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fake device never finished")
	}

	r1 := <-first
	if r1.err != nil || r1.text != "first" {
		t.Errorf("first waiter got (%q, %v), want (\"first\", nil)", r1.text, r1.err)
	}
	r2 := <-second
	if r2.err != nil || r2.text != "second" {
		t.Errorf("second waiter got (%q, %v), want (\"second\", nil)", r2.text, r2.err)
	}
}
