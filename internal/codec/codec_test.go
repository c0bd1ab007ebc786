package codec

import (
	"bytes"
	"testing"

	"github.com/JuanCF/scrcpy-mcp/internal/errkind"
	"github.com/JuanCF/scrcpy-mcp/internal/wire"
)

func TestInjectKeycode(t *testing.T) {
	got := InjectKeycode(wire.ActionDown, 66, 0, 0)
	want := []byte{0, 0, 0, 0, 0, 66, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("InjectKeycode = % x, want % x", got, want)
	}
}

func TestInjectText(t *testing.T) {
	got, err := InjectText("AB")
	if err != nil {
		t.Fatalf("InjectText returned error: %v", err)
	}
	want := []byte{1, 0, 0, 0, 2, 'A', 'B'}
	if !bytes.Equal(got, want) {
		t.Errorf("InjectText(AB) = % x, want % x", got, want)
	}

	got, err = InjectText("é")
	if err != nil {
		t.Fatalf("InjectText(é) returned error: %v", err)
	}
	if len(got) != 7 {
		t.Errorf("InjectText(é) length = %d, want 7", len(got))
	}
}

func TestInjectTextSizeBounds(t *testing.T) {
	ok := make([]byte, 300)
	buf, err := InjectText(string(ok))
	if err != nil {
		t.Fatalf("300-byte text should succeed: %v", err)
	}
	if len(buf) != 305 {
		t.Errorf("300-byte text encoded length = %d, want 305", len(buf))
	}

	tooLong := make([]byte, 301)
	_, err = InjectText(string(tooLong))
	if !isKind(err, errkind.TextTooLong) {
		t.Errorf("301-byte text should fail TextTooLong, got %v", err)
	}
}

func isKind(err error, k errkind.Kind) bool {
	e, ok := err.(*errkind.Error)
	return ok && e.Kind == k
}

func TestInjectTouch(t *testing.T) {
	ev := TouchEvent{
		Action:    wire.ActionDown,
		PointerID: 0xFFFFFFFFFFFFFFFF,
		X:         540, Y: 1200,
		Width: 1080, Height: 2400,
		Pressure: 1.0,
	}
	got := InjectTouch(ev)
	if len(got) != 32 {
		t.Fatalf("InjectTouch length = %d, want 32", len(got))
	}
	if got[0] != 2 {
		t.Errorf("InjectTouch type byte = %d, want 2", got[0])
	}
	if got[22] != 0xFF || got[23] != 0xFF {
		t.Errorf("pressure=1.0 bytes = %x %x, want FF FF", got[22], got[23])
	}

	ev.Pressure = 0.0
	got = InjectTouch(ev)
	if got[22] != 0x00 || got[23] != 0x00 {
		t.Errorf("pressure=0.0 bytes = %x %x, want 00 00", got[22], got[23])
	}

	ev.Pressure = 2.0
	got = InjectTouch(ev)
	if got[22] != 0xFF || got[23] != 0xFF {
		t.Errorf("pressure=2.0 should clamp to FF FF, got %x %x", got[22], got[23])
	}
}

func TestInjectScroll(t *testing.T) {
	got := InjectScroll(ScrollEvent{VScroll: 16})
	if got[15] != 0x7F || got[16] != 0xFF {
		t.Errorf("vScroll=+16 bytes 15..16 = %x %x, want 7F FF", got[15], got[16])
	}

	got = InjectScroll(ScrollEvent{VScroll: -16})
	if got[15] != 0x80 || got[16] != 0x00 {
		t.Errorf("vScroll=-16 bytes 15..16 = %x %x, want 80 00", got[15], got[16])
	}
}

func TestSetDisplayPower(t *testing.T) {
	if got := SetDisplayPower(true); !bytes.Equal(got, []byte{0x0A, 0x01}) {
		t.Errorf("SetDisplayPower(true) = % x, want 0A 01", got)
	}
	if got := SetDisplayPower(false); !bytes.Equal(got, []byte{0x0A, 0x00}) {
		t.Errorf("SetDisplayPower(false) = % x, want 0A 00", got)
	}
}

func TestSetClipboard(t *testing.T) {
	got := SetClipboard("", true, 42)
	if len(got) != 14 {
		t.Fatalf("SetClipboard length = %d, want 14", len(got))
	}
	wantSeq := []byte{0, 0, 0, 0, 0, 0, 0, 0x2A}
	if !bytes.Equal(got[1:9], wantSeq) {
		t.Errorf("sequence bytes = % x, want % x", got[1:9], wantSeq)
	}
	if got[9] != 1 {
		t.Errorf("paste byte = %d, want 1", got[9])
	}
}

func TestStartApp(t *testing.T) {
	got, err := StartApp("com.example.app")
	if err != nil {
		t.Fatalf("StartApp returned error: %v", err)
	}
	want := append([]byte{16, 0x0F}, []byte("com.example.app")...)
	if !bytes.Equal(got, want) {
		t.Errorf("StartApp = % x, want % x", got, want)
	}
}

func TestStartAppSizeBounds(t *testing.T) {
	ok := make([]byte, 255)
	for i := range ok {
		ok[i] = 'a'
	}
	if _, err := StartApp(string(ok)); err != nil {
		t.Errorf("255-byte package name should succeed: %v", err)
	}

	tooLong := make([]byte, 256)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	if _, err := StartApp(string(tooLong)); !isKind(err, errkind.PackageNameTooLong) {
		t.Errorf("256-byte package name should fail PackageNameTooLong, got %v", err)
	}
}

func TestDecodeClipboardReply(t *testing.T) {
	payload := append([]byte{0, 0, 0, 5}, []byte("hello")...)
	reply, err := DecodeClipboardReply(payload)
	if err != nil {
		t.Fatalf("DecodeClipboardReply returned error: %v", err)
	}
	if reply.Text != "hello" {
		t.Errorf("reply.Text = %q, want %q", reply.Text, "hello")
	}
}

func TestDecodeClipboardReplyOversize(t *testing.T) {
	payload := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	_, err := DecodeClipboardReply(payload)
	if !isKind(err, errkind.OversizeClipboardReply) {
		t.Errorf("expected OversizeClipboardReply, got %v", err)
	}
}
