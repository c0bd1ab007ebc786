// Package tools is the thin validation-and-dispatch layer between a named,
// typed operation request and the router: it validates parameters, calls
// into internal/router and internal/parser, and returns a structured
// result ready for JSON serialization. No additional semantics live here.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JuanCF/scrcpy-mcp/internal/adbexec"
	"github.com/JuanCF/scrcpy-mcp/internal/parser"
	"github.com/JuanCF/scrcpy-mcp/internal/router"
	"github.com/JuanCF/scrcpy-mcp/internal/session"
	"github.com/JuanCF/scrcpy-mcp/internal/store"
)

// Result is the uniform shape every tool call returns. Error is true only
// on failure; Data carries operation-specific fields on success.
// CorrelationID is a fresh random id generated for each call; it is not
// written to the audit_log row, which carries its own id.
type Result struct {
	Error         bool                   `json:"error"`
	Message       string                 `json:"message,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	CorrelationID string                 `json:"correlation_id"`
}

func ok(data map[string]interface{}) Result {
	return Result{Data: data, CorrelationID: uuid.NewString()}
}

func fail(err error) Result {
	return Result{Error: true, Message: err.Error(), CorrelationID: uuid.NewString()}
}

// Surface wires the router, ADB client, and session manager together and
// records every dispatched call to the audit store (if present); calls
// rejected by serial resolution or parameter validation are not recorded.
type Surface struct {
	Router   *router.Router
	ADB      *adbexec.Client
	Sessions *session.Manager
	Audit    *store.Store // nil disables audit logging
}

func New(r *router.Router, adb *adbexec.Client, sessions *session.Manager, audit *store.Store) *Surface {
	return &Surface{Router: r, ADB: adb, Sessions: sessions, Audit: audit}
}

func (s *Surface) resolveSerial(ctx context.Context, serial string) (string, error) {
	return s.ADB.ResolveSerial(ctx, serial)
}

func (s *Surface) record(op, serial string, ok bool, detail string) {
	if s.Audit == nil {
		return
	}
	s.Audit.Record(op, serial, ok, detail)
}

// Tap performs a single tap at (x, y).
func (s *Surface) Tap(ctx context.Context, serial string, x, y int) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	if x < 0 || y < 0 {
		return fail(fmt.Errorf("x and y must be non-negative"))
	}
	err = s.Router.Tap(ctx, serial, x, y)
	s.record("tap", serial, err == nil, fmt.Sprintf("x=%d y=%d", x, y))
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial, "x": x, "y": y})
}

// Swipe drags from (x1,y1) to (x2,y2) over durationMs.
func (s *Surface) Swipe(ctx context.Context, serial string, x1, y1, x2, y2, durationMs int) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	if durationMs < 0 {
		return fail(fmt.Errorf("duration_ms must be non-negative"))
	}
	err = s.Router.Swipe(ctx, serial, x1, y1, x2, y2, durationMs)
	s.record("swipe", serial, err == nil, fmt.Sprintf("(%d,%d)->(%d,%d) %dms", x1, y1, x2, y2, durationMs))
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}

// LongPress holds a touch at (x, y) for durationMs.
func (s *Surface) LongPress(ctx context.Context, serial string, x, y, durationMs int) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	if durationMs < 0 {
		return fail(fmt.Errorf("duration_ms must be non-negative"))
	}
	err = s.Router.LongPress(ctx, serial, x, y, durationMs)
	s.record("long-press", serial, err == nil, fmt.Sprintf("(%d,%d) %dms", x, y, durationMs))
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}

// DragDrop drags from (x1,y1) to (x2,y2).
func (s *Surface) DragDrop(ctx context.Context, serial string, x1, y1, x2, y2, durationMs int) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.DragDrop(ctx, serial, x1, y1, x2, y2, durationMs)
	s.record("drag-drop", serial, err == nil, "")
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}

// Scroll issues a scroll gesture at (x, y) with delta (dx, dy).
func (s *Surface) Scroll(ctx context.Context, serial string, x, y, dx, dy int) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.Scroll(ctx, serial, x, y, dx, dy)
	s.record("scroll", serial, err == nil, "")
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}

// InputText types text. Callers are responsible for chunking past 300
// UTF-8 bytes; this surface does not silently split long strings.
func (s *Surface) InputText(ctx context.Context, serial, text string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.InputText(ctx, serial, text)
	s.record("input-text", serial, err == nil, fmt.Sprintf("%d bytes", len(text)))
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}

// KeyEvent injects a single key by name or decimal code.
func (s *Surface) KeyEvent(ctx context.Context, serial, nameOrCode string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.KeyEvent(ctx, serial, nameOrCode)
	s.record("key-event", serial, err == nil, nameOrCode)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial, "key": nameOrCode})
}

// ClipboardGet reads the device clipboard.
func (s *Surface) ClipboardGet(ctx context.Context, serial string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	text, err := s.Router.ClipboardGet(ctx, serial)
	s.record("clipboard-get", serial, err == nil, "")
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial, "text": text})
}

// ClipboardSet writes text to the device clipboard.
func (s *Surface) ClipboardSet(ctx context.Context, serial, text string, paste bool) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.ClipboardSet(ctx, serial, text, paste)
	s.record("clipboard-set", serial, err == nil, fmt.Sprintf("%d bytes paste=%v", len(text), paste))
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}

// SetDisplayPower turns the display on or off.
func (s *Surface) SetDisplayPower(ctx context.Context, serial string, on bool) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.SetDisplayPower(ctx, serial, on)
	s.record("set-display-power", serial, err == nil, fmt.Sprintf("on=%v", on))
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial, "on": on})
}

// RotateDevice requests a device rotation.
func (s *Surface) RotateDevice(ctx context.Context, serial string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.RotateDevice(ctx, serial)
	s.record("rotate-device", serial, err == nil, "")
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}

// ExpandNotifications pulls down the notification shade.
func (s *Surface) ExpandNotifications(ctx context.Context, serial string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.ExpandNotifications(ctx, serial)
	s.record("expand-notifications", serial, err == nil, "")
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}

// ExpandSettings pulls down quick settings.
func (s *Surface) ExpandSettings(ctx context.Context, serial string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.ExpandSettings(ctx, serial)
	s.record("expand-settings", serial, err == nil, "")
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}

// CollapsePanels closes any open shade or settings panel.
func (s *Surface) CollapsePanels(ctx context.Context, serial string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.CollapsePanels(ctx, serial)
	s.record("collapse-panels", serial, err == nil, "")
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}

// StartApp launches an app by package name.
func (s *Surface) StartApp(ctx context.Context, serial, packageName string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.Router.StartApp(ctx, serial, packageName)
	s.record("start-app", serial, err == nil, packageName)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial, "package": packageName})
}

// UninstallApp removes an installed package and classifies the result.
func (s *Surface) UninstallApp(ctx context.Context, serial, packageName string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	if err := router.ValidatePackageName(packageName); err != nil {
		return fail(err)
	}
	out, err := s.ADB.Shell(ctx, serial, "pm uninstall "+packageName, 60*time.Second)
	success := err == nil && router.ClassifyUninstallOutput(out)
	s.record("uninstall-app", serial, success, packageName)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial, "package": packageName, "success": success, "raw": out})
}

// InstallApp pushes a local APK and installs it.
func (s *Surface) InstallApp(ctx context.Context, serial, localPath string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	res, err := s.ADB.Exec(ctx, []string{"-s", serial, "install", "-r", localPath}, 120*time.Second)
	s.record("install-app", serial, err == nil, localPath)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial, "output": res.Stdout})
}

// PushFile copies a local file to the device.
func (s *Surface) PushFile(ctx context.Context, serial, localPath, remotePath string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	err = s.ADB.Push(ctx, serial, localPath, remotePath, 60*time.Second)
	s.record("push-file", serial, err == nil, remotePath)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial, "remote_path": remotePath})
}

// ListFiles runs `ls -la` on a remote directory and returns parsed entries.
func (s *Surface) ListFiles(ctx context.Context, serial, remotePath string) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	out, err := s.ADB.ShellArgs(ctx, serial, []string{"ls", "-la", remotePath}, adbexec.DefaultTimeout)
	s.record("list-files", serial, err == nil, remotePath)
	if err != nil {
		return fail(err)
	}
	entries := parser.ParseLongListing(out)
	return ok(map[string]interface{}{"serial": serial, "path": remotePath, "entries": entries})
}

// DumpUI captures the current UI hierarchy, optionally filtered.
func (s *Surface) DumpUI(ctx context.Context, serial string, filter parser.NodeFilter) Result {
	serial, err := s.resolveSerial(ctx, serial)
	if err != nil {
		return fail(err)
	}
	const remoteDump = "/data/local/tmp/ui-dump.xml"
	if _, err := s.ADB.ShellArgs(ctx, serial, []string{"uiautomator", "dump", remoteDump}, adbexec.DefaultTimeout); err != nil {
		s.record("dump-ui", serial, false, "")
		return fail(err)
	}
	xml, err := s.ADB.ShellArgs(ctx, serial, []string{"cat", remoteDump}, adbexec.DefaultTimeout)
	s.record("dump-ui", serial, err == nil, "")
	if err != nil {
		return fail(err)
	}
	nodes := parser.ParseUIHierarchy(xml)
	if filter != (parser.NodeFilter{}) {
		nodes = parser.FilterNodes(nodes, filter)
	}
	return ok(map[string]interface{}{"serial": serial, "nodes": nodes})
}

// StartSession brings up a scrcpy session for serial.
func (s *Surface) StartSession(ctx context.Context, serial string) Result {
	sess, err := s.Sessions.Start(ctx, serial)
	s.record("start-session", serial, err == nil, "")
	if err != nil {
		return fail(err)
	}
	meta := sess.Metadata()
	return ok(map[string]interface{}{
		"serial":      sess.Serial,
		"scid":        sess.SocketName(),
		"device_name": meta.DeviceName,
		"width":       meta.Width,
		"height":      meta.Height,
	})
}

// ReadHistoryResource serves the history://recent MCP resource: the most
// recent audit_log rows, newest first. Returns an empty array (not an
// error) when audit logging is disabled, since the absence of a store is
// an operator choice, not a read failure.
func (s *Surface) ReadHistoryResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	var rows []store.AuditRow
	if s.Audit != nil {
		var err error
		rows, err = s.Audit.Recent(100)
		if err != nil {
			return nil, fmt.Errorf("reading audit history: %w", err)
		}
	}
	if rows == nil {
		rows = []store.AuditRow{}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshaling audit history: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(payload),
		},
	}, nil
}

// StopSession tears down the scrcpy session for serial, if any.
func (s *Surface) StopSession(ctx context.Context, serial string) Result {
	err := s.Sessions.Stop(ctx, serial)
	s.record("stop-session", serial, err == nil, "")
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"serial": serial})
}
