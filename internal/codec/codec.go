// Package codec implements the scrcpy control-message wire format:
// pure, allocation-light encoders for host->device messages and a decoder
// for the one device->host message this bridge consumes (clipboard reply).
//
// Every encoder here produces byte-for-byte the fixed scrcpy control-message
// layout; the device-side server does strict equality checks against these
// bytes, so values must not be re-derived from any other source.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/JuanCF/scrcpy-mcp/internal/errkind"
	"github.com/JuanCF/scrcpy-mcp/internal/wire"
)

// InjectKeycode encodes [type][action:u8][keycode:i32][repeat:i32][meta:i32] = 14 bytes.
func InjectKeycode(action int, keycode, repeat, metaState int32) []byte {
	buf := make([]byte, 14)
	buf[0] = wire.TypeInjectKeycode
	buf[1] = byte(action)
	binary.BigEndian.PutUint32(buf[2:6], uint32(keycode))
	binary.BigEndian.PutUint32(buf[6:10], uint32(repeat))
	binary.BigEndian.PutUint32(buf[10:14], uint32(metaState))
	return buf
}

// InjectText encodes [type][len:u32][utf8 bytes] = 5+N bytes, N <= 300.
func InjectText(text string) ([]byte, error) {
	b := []byte(text)
	if len(b) > wire.MaxInjectTextBytes {
		return nil, errkind.New(errkind.TextTooLong, "text is %d UTF-8 bytes, max %d", len(b), wire.MaxInjectTextBytes)
	}
	buf := make([]byte, 5+len(b))
	buf[0] = wire.TypeInjectText
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(b)))
	copy(buf[5:], b)
	return buf, nil
}

// TouchEvent carries the parameters for InjectTouch.
type TouchEvent struct {
	Action       int
	PointerID    uint64
	X, Y         int32
	Width, Height uint16
	Pressure     float32 // [0,1], clamped
	ActionButton uint32
	Buttons      uint32
}

// InjectTouch encodes the 32-byte touch-injection message.
// [type][action:u8][pointerId:u64][x:i32][y:i32][w:u16][h:u16][pressure:u16][actionBtn:u32][btns:u32]
func InjectTouch(ev TouchEvent) []byte {
	buf := make([]byte, 32)
	buf[0] = wire.TypeInjectTouchEvent
	buf[1] = byte(ev.Action)
	binary.BigEndian.PutUint64(buf[2:10], ev.PointerID)
	binary.BigEndian.PutUint32(buf[10:14], uint32(ev.X))
	binary.BigEndian.PutUint32(buf[14:18], uint32(ev.Y))
	binary.BigEndian.PutUint16(buf[18:20], ev.Width)
	binary.BigEndian.PutUint16(buf[20:22], ev.Height)
	binary.BigEndian.PutUint16(buf[22:24], encodePressure(ev.Pressure))
	binary.BigEndian.PutUint32(buf[24:28], ev.ActionButton)
	binary.BigEndian.PutUint32(buf[28:32], ev.Buttons)
	return buf
}

// encodePressure clamps to [0,1] then maps to [0x0000, 0xFFFF].
func encodePressure(p float32) uint16 {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return uint16(math.Round(float64(p) * 0xFFFF))
}

// ScrollEvent carries the parameters for InjectScroll.
type ScrollEvent struct {
	X, Y          int32
	Width, Height uint16
	HScroll       float32 // [-1,1], clamped
	VScroll       float32 // [-1,1], clamped
	Buttons       uint32
}

// InjectScroll encodes the 21-byte scroll-injection message.
// [type][x:i32][y:i32][w:u16][h:u16][hScroll:i16][vScroll:i16][btns:u32]
func InjectScroll(ev ScrollEvent) []byte {
	buf := make([]byte, 21)
	buf[0] = wire.TypeInjectScrollEvent
	binary.BigEndian.PutUint32(buf[1:5], uint32(ev.X))
	binary.BigEndian.PutUint32(buf[5:9], uint32(ev.Y))
	binary.BigEndian.PutUint16(buf[9:11], ev.Width)
	binary.BigEndian.PutUint16(buf[11:13], ev.Height)
	binary.BigEndian.PutUint16(buf[13:15], uint16(encodeScrollAxis(ev.HScroll)))
	binary.BigEndian.PutUint16(buf[15:17], uint16(encodeScrollAxis(ev.VScroll)))
	binary.BigEndian.PutUint32(buf[17:21], ev.Buttons)
	return buf
}

// encodeScrollAxis clamps to [-1,1] then scales -1 -> -0x8000, +1 -> 0x7FFF.
func encodeScrollAxis(v float32) int16 {
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	if v < 0 {
		return int16(math.Round(float64(v) * 0x8000))
	}
	return int16(math.Round(float64(v) * 0x7FFF))
}

// SetDisplayPower encodes [type][on:u8] = 2 bytes.
func SetDisplayPower(on bool) []byte {
	buf := make([]byte, 2)
	buf[0] = wire.TypeSetDisplayPower
	if on {
		buf[1] = 1
	}
	return buf
}

// ExpandNotifications encodes the 1-byte "expand notifications" message.
func ExpandNotifications() []byte { return []byte{wire.TypeExpandNotifications} }

// ExpandSettings encodes the 1-byte "expand settings" message.
func ExpandSettings() []byte { return []byte{wire.TypeExpandSettings} }

// CollapsePanels encodes the 1-byte "collapse panels" message.
func CollapsePanels() []byte { return []byte{wire.TypeCollapsePanels} }

// RotateDevice encodes the 1-byte "rotate device" message.
func RotateDevice() []byte { return []byte{wire.TypeRotateDevice} }

// GetClipboard encodes [type][copyKey:u8] = 2 bytes.
func GetClipboard(copyKey int) []byte {
	return []byte{wire.TypeGetClipboard, byte(copyKey)}
}

// SetClipboard encodes [type][seq:u64][paste:u8][len:u32][utf8 bytes] = 14+N bytes.
func SetClipboard(text string, paste bool, sequence uint64) []byte {
	b := []byte(text)
	buf := make([]byte, 14+len(b))
	buf[0] = wire.TypeSetClipboard
	binary.BigEndian.PutUint64(buf[1:9], sequence)
	if paste {
		buf[9] = 1
	}
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(b)))
	copy(buf[14:], b)
	return buf
}

// StartApp encodes [type][len:u8][utf8 bytes] = 2+N bytes, N <= 255.
func StartApp(packageName string) ([]byte, error) {
	b := []byte(packageName)
	if len(b) > wire.MaxPackageNameBytes {
		return nil, errkind.New(errkind.PackageNameTooLong, "package name is %d UTF-8 bytes, max %d", len(b), wire.MaxPackageNameBytes)
	}
	buf := make([]byte, 2+len(b))
	buf[0] = wire.TypeStartApp
	buf[1] = byte(len(b))
	copy(buf[2:], b)
	return buf, nil
}

// ClipboardReply is the decoded device->host clipboard message.
type ClipboardReply struct {
	Text string
}

// DecodeClipboardReply decodes [0][len:u32][utf8 bytes]. payload must not
// include the leading type byte. Returns errkind.OversizeClipboardReply if
// the declared length exceeds wire.MaxClipboardBytes, or a generic error if
// the buffer is short of the declared length.
func DecodeClipboardReply(payload []byte) (ClipboardReply, error) {
	if len(payload) < 4 {
		return ClipboardReply{}, fmt.Errorf("clipboard reply too short: %d bytes", len(payload))
	}
	n := binary.BigEndian.Uint32(payload[:4])
	if n > wire.MaxClipboardBytes {
		return ClipboardReply{}, errkind.New(errkind.OversizeClipboardReply, "device reported %d bytes, max %d", n, wire.MaxClipboardBytes)
	}
	if uint32(len(payload)-4) < n {
		return ClipboardReply{}, fmt.Errorf("clipboard reply truncated: want %d bytes, have %d", n, len(payload)-4)
	}
	return ClipboardReply{Text: string(payload[4 : 4+n])}, nil
}
