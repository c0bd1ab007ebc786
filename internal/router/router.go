// Package router implements the two-rung operation dispatch: prefer an
// active scrcpy control session, fall back to an ADB shell command on any
// transport failure. This is the component every tool in internal/tools
// calls into.
package router

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/JuanCF/scrcpy-mcp/internal/adbexec"
	"github.com/JuanCF/scrcpy-mcp/internal/codec"
	"github.com/JuanCF/scrcpy-mcp/internal/session"
	"github.com/JuanCF/scrcpy-mcp/internal/wire"
)

// Router holds the two transports every operation chooses between.
type Router struct {
	Sessions *session.Manager
	ADB      *adbexec.Client
}

// New builds a Router over the given session manager and ADB client.
func New(sessions *session.Manager, adb *adbexec.Client) *Router {
	return &Router{Sessions: sessions, ADB: adb}
}

// readySession returns the Ready session for serial, or nil if none exists
// or it isn't in the Ready state.
func (r *Router) readySession(serial string) *session.Session {
	s, ok := r.Sessions.Get(serial)
	if !ok || s.State() != session.StateReady {
		return nil
	}
	return s
}

// logFallback records that the scrcpy rung failed and the router is
// dropping to the ADB-shell rung: caught and logged, never surfaced to
// the caller.
func logFallback(serial, op string, err error) {
	log.Printf("router: %s on %s: scrcpy path failed (%v), falling back to adb", op, serial, err)
}

// Tap performs a single DOWN/UP touch at (x, y). Touch injection through
// the scrcpy control channel was observed unreliable upstream (the
// device-side PositionMapper may not be initialized until the encoder's
// first frame callback runs), so taps are always routed through the ADB
// shell fallback regardless of session state; see DESIGN.md.
func (r *Router) Tap(ctx context.Context, serial string, x, y int) error {
	_, err := r.ADB.Shell(ctx, serial, fmt.Sprintf("input tap %d %d", x, y), adbexec.DefaultTimeout)
	return err
}

// Swipe drags from (x1,y1) to (x2,y2) over durationMs. Routed through ADB
// for the same reason as Tap.
func (r *Router) Swipe(ctx context.Context, serial string, x1, y1, x2, y2, durationMs int) error {
	cmd := fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs)
	_, err := r.ADB.Shell(ctx, serial, cmd, adbexec.DefaultTimeout)
	return err
}

// LongPress holds a touch at (x, y) for durationMs. Routed through ADB,
// same rationale as Tap: `input swipe x y x y ms` is the long-press idiom.
func (r *Router) LongPress(ctx context.Context, serial string, x, y, durationMs int) error {
	cmd := fmt.Sprintf("input swipe %d %d %d %d %d", x, y, x, y, durationMs)
	_, err := r.ADB.Shell(ctx, serial, cmd, adbexec.DefaultTimeout)
	return err
}

// DragDrop drags from (x1,y1) to (x2,y2). Uses `input draganddrop` on SDK
// 26+, `input swipe` otherwise.
func (r *Router) DragDrop(ctx context.Context, serial string, x1, y1, x2, y2, durationMs int) error {
	sdk, err := r.sdkVersion(ctx, serial)
	if err == nil && sdk >= 26 {
		cmd := fmt.Sprintf("input draganddrop %d %d %d %d %d", x1, y1, x2, y2, durationMs)
		_, err := r.ADB.Shell(ctx, serial, cmd, adbexec.DefaultTimeout)
		return err
	}
	cmd := fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs)
	_, err = r.ADB.Shell(ctx, serial, cmd, adbexec.DefaultTimeout)
	return err
}

// Scroll sends a scroll gesture originating at (x, y) with delta (dx, dy).
func (r *Router) Scroll(ctx context.Context, serial string, x, y, dx, dy int) error {
	if s := r.readySession(serial); s != nil {
		ev := codec.ScrollEvent{
			X: int32(x), Y: int32(y),
			Width: uint16(s.Metadata().Width), Height: uint16(s.Metadata().Height),
			HScroll: float32(dx) * 16, VScroll: float32(dy) * 16,
		}
		if err := s.Write(ctx, codec.InjectScroll(ev)); err == nil {
			return nil
		} else {
			logFallback(serial, "scroll", err)
		}
	}
	cmd := fmt.Sprintf("input swipe %d %d %d %d 300", x, y, x+dx*100, y+dy*100)
	_, err := r.ADB.Shell(ctx, serial, cmd, adbexec.DefaultTimeout)
	return err
}

// InputText types the given string. Tries scrcpy inject-text first (the
// caller is responsible for chunking strings over 300 UTF-8 bytes), then
// falls back to `input text` with shell-metacharacter escaping.
func (r *Router) InputText(ctx context.Context, serial, text string) error {
	if s := r.readySession(serial); s != nil {
		if payload, err := codec.InjectText(text); err == nil {
			if err := s.Write(ctx, payload); err == nil {
				return nil
			} else {
				logFallback(serial, "input-text", err)
			}
		}
	}
	cmd := fmt.Sprintf("input text %s", escapeShellText(text))
	_, err := r.ADB.Shell(ctx, serial, cmd, adbexec.DefaultTimeout)
	return err
}

// KeyEvent injects a single key DOWN/UP by name or decimal keycode.
func (r *Router) KeyEvent(ctx context.Context, serial, nameOrCode string) error {
	code, err := ResolveKeycode(nameOrCode)
	if err != nil {
		return err
	}

	if s := r.readySession(serial); s != nil {
		err := s.Write(ctx, codec.InjectKeycode(wire.ActionDown, int32(code), 0, 0))
		if err == nil {
			time.Sleep(10 * time.Millisecond)
			err = s.Write(ctx, codec.InjectKeycode(wire.ActionUp, int32(code), 0, 0))
		}
		if err == nil {
			return nil
		}
		logFallback(serial, "key-event", err)
	}
	_, err = r.ADB.Shell(ctx, serial, fmt.Sprintf("input keyevent %d", code), adbexec.DefaultTimeout)
	return err
}

// SetDisplayPower turns the device display on or off.
func (r *Router) SetDisplayPower(ctx context.Context, serial string, on bool) error {
	if s := r.readySession(serial); s != nil {
		if err := s.Write(ctx, codec.SetDisplayPower(on)); err == nil {
			return nil
		} else {
			logFallback(serial, "set-display-power", err)
		}
	}
	state := "0"
	if on {
		state = "1"
	}
	_, err := r.ADB.Shell(ctx, serial, "input keyevent KEYCODE_POWER && svc power stayon "+state, adbexec.DefaultTimeout)
	return err
}

// RotateDevice requests a device rotation.
func (r *Router) RotateDevice(ctx context.Context, serial string) error {
	if s := r.readySession(serial); s != nil {
		if err := s.Write(ctx, codec.RotateDevice()); err == nil {
			return nil
		} else {
			logFallback(serial, "rotate", err)
		}
	}
	_, err := r.ADB.Shell(ctx, serial, "settings put system accelerometer_rotation 1", adbexec.DefaultTimeout)
	return err
}

// ExpandNotifications pulls down the notification shade.
func (r *Router) ExpandNotifications(ctx context.Context, serial string) error {
	if s := r.readySession(serial); s != nil {
		if err := s.Write(ctx, codec.ExpandNotifications()); err == nil {
			return nil
		} else {
			logFallback(serial, "expand-notifications", err)
		}
	}
	_, err := r.ADB.Shell(ctx, serial, "cmd statusbar expand-notifications", adbexec.DefaultTimeout)
	return err
}

// ExpandSettings pulls down quick settings.
func (r *Router) ExpandSettings(ctx context.Context, serial string) error {
	if s := r.readySession(serial); s != nil {
		if err := s.Write(ctx, codec.ExpandSettings()); err == nil {
			return nil
		} else {
			logFallback(serial, "expand-settings", err)
		}
	}
	_, err := r.ADB.Shell(ctx, serial, "cmd statusbar expand-settings", adbexec.DefaultTimeout)
	return err
}

// CollapsePanels closes any open shade or settings panel.
func (r *Router) CollapsePanels(ctx context.Context, serial string) error {
	if s := r.readySession(serial); s != nil {
		if err := s.Write(ctx, codec.CollapsePanels()); err == nil {
			return nil
		} else {
			logFallback(serial, "collapse-panels", err)
		}
	}
	_, err := r.ADB.Shell(ctx, serial, "cmd statusbar collapse", adbexec.DefaultTimeout)
	return err
}

// StartApp launches an app by package name.
func (r *Router) StartApp(ctx context.Context, serial, packageName string) error {
	if err := ValidatePackageName(packageName); err != nil {
		return err
	}

	if s := r.readySession(serial); s != nil {
		if payload, err := codec.StartApp(packageName); err == nil {
			if err := s.Write(ctx, payload); err == nil {
				return nil
			} else {
				logFallback(serial, "start-app", err)
			}
		}
	}
	_, err := r.ADB.Shell(ctx, serial, fmt.Sprintf("monkey -p %s 1", packageName), adbexec.DefaultTimeout)
	return err
}

func (r *Router) sdkVersion(ctx context.Context, serial string) (int, error) {
	v, err := r.ADB.GetDeviceProperty(ctx, serial, "ro.build.version.sdk")
	if err != nil {
		return 0, err
	}
	var sdk int
	if _, err := fmt.Sscanf(v, "%d", &sdk); err != nil {
		return 0, err
	}
	return sdk, nil
}
