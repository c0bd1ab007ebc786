package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/JuanCF/scrcpy-mcp/internal/parser"
	"github.com/JuanCF/scrcpy-mcp/internal/tools"
)

const mcpServerVersion = "1.0.0"

// newMCPServer registers every internal/tools.Surface operation (spec.md
// §4.G) as an MCP tool. This is the concrete, minimal instance of the
// "external tool-invocation RPC framing" spec.md §1 names as an outside
// collaborator: argument schema and naming live here, the operation
// semantics live entirely in internal/tools and what it calls into.
func newMCPServer(surface *tools.Surface) *server.MCPServer {
	s := server.NewMCPServer(
		"scrcpy-mcp",
		mcpServerVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.AddTool(mcp.NewTool("tap",
		mcp.WithDescription("Tap the screen at (x, y)"),
		mcp.WithString("serial", mcp.Description("device serial; omit to auto-resolve the single attached device")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("x coordinate in device pixels")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("y coordinate in device pixels")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.Tap(ctx, r.GetString("serial", ""), int(r.GetFloat("x", 0)), int(r.GetFloat("y", 0)))
	}))

	s.AddTool(mcp.NewTool("swipe",
		mcp.WithDescription("Swipe from (x1, y1) to (x2, y2) over duration_ms"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithNumber("x1", mcp.Required()),
		mcp.WithNumber("y1", mcp.Required()),
		mcp.WithNumber("x2", mcp.Required()),
		mcp.WithNumber("y2", mcp.Required()),
		mcp.WithNumber("duration_ms", mcp.Description("swipe duration in ms, default 300")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.Swipe(ctx, r.GetString("serial", ""),
			int(r.GetFloat("x1", 0)), int(r.GetFloat("y1", 0)),
			int(r.GetFloat("x2", 0)), int(r.GetFloat("y2", 0)),
			int(r.GetFloat("duration_ms", 300)))
	}))

	s.AddTool(mcp.NewTool("long_press",
		mcp.WithDescription("Hold a touch at (x, y) for duration_ms"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithNumber("x", mcp.Required()),
		mcp.WithNumber("y", mcp.Required()),
		mcp.WithNumber("duration_ms", mcp.Description("hold duration in ms, default 500")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.LongPress(ctx, r.GetString("serial", ""),
			int(r.GetFloat("x", 0)), int(r.GetFloat("y", 0)), int(r.GetFloat("duration_ms", 500)))
	}))

	s.AddTool(mcp.NewTool("drag_drop",
		mcp.WithDescription("Drag from (x1, y1) and drop at (x2, y2)"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithNumber("x1", mcp.Required()),
		mcp.WithNumber("y1", mcp.Required()),
		mcp.WithNumber("x2", mcp.Required()),
		mcp.WithNumber("y2", mcp.Required()),
		mcp.WithNumber("duration_ms", mcp.Description("drag duration in ms, default 500")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.DragDrop(ctx, r.GetString("serial", ""),
			int(r.GetFloat("x1", 0)), int(r.GetFloat("y1", 0)),
			int(r.GetFloat("x2", 0)), int(r.GetFloat("y2", 0)),
			int(r.GetFloat("duration_ms", 500)))
	}))

	s.AddTool(mcp.NewTool("scroll",
		mcp.WithDescription("Scroll at (x, y) by delta (dx, dy)"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithNumber("x", mcp.Required()),
		mcp.WithNumber("y", mcp.Required()),
		mcp.WithNumber("dx", mcp.Required()),
		mcp.WithNumber("dy", mcp.Required()),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.Scroll(ctx, r.GetString("serial", ""),
			int(r.GetFloat("x", 0)), int(r.GetFloat("y", 0)),
			int(r.GetFloat("dx", 0)), int(r.GetFloat("dy", 0)))
	}))

	s.AddTool(mcp.NewTool("input_text",
		mcp.WithDescription("Type text into the focused field (caller chunks strings over 300 UTF-8 bytes)"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithString("text", mcp.Required()),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.InputText(ctx, r.GetString("serial", ""), r.GetString("text", ""))
	}))

	s.AddTool(mcp.NewTool("key_event",
		mcp.WithDescription("Inject a single key event by name (HOME, BACK, ...) or decimal keycode"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithString("key", mcp.Required(), mcp.Description("key name or decimal Android keycode")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.KeyEvent(ctx, r.GetString("serial", ""), r.GetString("key", ""))
	}))

	s.AddTool(mcp.NewTool("clipboard_get",
		mcp.WithDescription("Read the device clipboard"),
		mcp.WithString("serial", mcp.Description("device serial")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.ClipboardGet(ctx, r.GetString("serial", ""))
	}))

	s.AddTool(mcp.NewTool("clipboard_set",
		mcp.WithDescription("Write text to the device clipboard"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithString("text", mcp.Required()),
		mcp.WithBoolean("paste", mcp.Description("also trigger paste in the focused field (scrcpy transport only)")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.ClipboardSet(ctx, r.GetString("serial", ""), r.GetString("text", ""), r.GetBool("paste", false))
	}))

	s.AddTool(mcp.NewTool("set_display_power",
		mcp.WithDescription("Turn the device display on or off"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithBoolean("on", mcp.Required()),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.SetDisplayPower(ctx, r.GetString("serial", ""), r.GetBool("on", false))
	}))

	s.AddTool(mcp.NewTool("rotate_device",
		mcp.WithDescription("Request a device rotation"),
		mcp.WithString("serial", mcp.Description("device serial")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.RotateDevice(ctx, r.GetString("serial", ""))
	}))

	s.AddTool(mcp.NewTool("expand_notifications",
		mcp.WithDescription("Pull down the notification shade"),
		mcp.WithString("serial", mcp.Description("device serial")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.ExpandNotifications(ctx, r.GetString("serial", ""))
	}))

	s.AddTool(mcp.NewTool("expand_settings",
		mcp.WithDescription("Pull down quick settings"),
		mcp.WithString("serial", mcp.Description("device serial")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.ExpandSettings(ctx, r.GetString("serial", ""))
	}))

	s.AddTool(mcp.NewTool("collapse_panels",
		mcp.WithDescription("Close any open shade or settings panel"),
		mcp.WithString("serial", mcp.Description("device serial")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.CollapsePanels(ctx, r.GetString("serial", ""))
	}))

	s.AddTool(mcp.NewTool("start_app",
		mcp.WithDescription("Launch an app by package name"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithString("package", mcp.Required()),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.StartApp(ctx, r.GetString("serial", ""), r.GetString("package", ""))
	}))

	s.AddTool(mcp.NewTool("uninstall_app",
		mcp.WithDescription("Uninstall an app by package name"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithString("package", mcp.Required()),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.UninstallApp(ctx, r.GetString("serial", ""), r.GetString("package", ""))
	}))

	s.AddTool(mcp.NewTool("install_app",
		mcp.WithDescription("Push and install a local APK"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithString("local_path", mcp.Required()),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.InstallApp(ctx, r.GetString("serial", ""), r.GetString("local_path", ""))
	}))

	s.AddTool(mcp.NewTool("push_file",
		mcp.WithDescription("Copy a local file to the device"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithString("local_path", mcp.Required()),
		mcp.WithString("remote_path", mcp.Required()),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.PushFile(ctx, r.GetString("serial", ""), r.GetString("local_path", ""), r.GetString("remote_path", ""))
	}))

	s.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List a remote directory (parsed long listing)"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithString("path", mcp.Required()),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.ListFiles(ctx, r.GetString("serial", ""), r.GetString("path", ""))
	}))

	s.AddTool(mcp.NewTool("dump_ui",
		mcp.WithDescription("Capture the current UI hierarchy, optionally filtered by text/content-desc/resource-id/class"),
		mcp.WithString("serial", mcp.Description("device serial")),
		mcp.WithString("text", mcp.Description("case-insensitive substring match on node text")),
		mcp.WithString("content_desc", mcp.Description("case-insensitive substring match on content description")),
		mcp.WithString("resource_id", mcp.Description("exact match on resource id")),
		mcp.WithString("class", mcp.Description("exact match on class name")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		filter := parser.NodeFilter{
			Text:        r.GetString("text", ""),
			ContentDesc: r.GetString("content_desc", ""),
			ResourceID:  r.GetString("resource_id", ""),
			Class:       r.GetString("class", ""),
		}
		return surface.DumpUI(ctx, r.GetString("serial", ""), filter)
	}))

	s.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Bring up a scrcpy control session for lower-latency input and clipboard access"),
		mcp.WithString("serial", mcp.Description("device serial")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.StartSession(ctx, r.GetString("serial", ""))
	}))

	s.AddTool(mcp.NewTool("stop_session",
		mcp.WithDescription("Tear down the scrcpy control session for a device, if any"),
		mcp.WithString("serial", mcp.Description("device serial")),
	), toolHandler(func(ctx context.Context, r mcp.CallToolRequest) tools.Result {
		return surface.StopSession(ctx, r.GetString("serial", ""))
	}))

	s.AddResource(mcp.NewResource(
		"history://recent",
		"Recent tool-call audit log entries",
		mcp.WithMIMEType("application/json"),
	), surface.ReadHistoryResource)

	return s
}

// toolHandler adapts a function returning tools.Result into the
// (context, mcp.CallToolRequest) -> (*mcp.CallToolResult, error) shape
// mcp-go expects. Every tools.Result already encodes success/failure in
// its Error field (spec.md §4.G), so no exception ever leaks to the MCP
// framework: handler errors here are only JSON-marshaling failures.
func toolHandler(fn func(context.Context, mcp.CallToolRequest) tools.Result) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := fn(ctx, request)
		payload, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("marshaling tool result", err), nil
		}
		if result.Error {
			return mcp.NewToolResultError(string(payload)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// serveMCPStdio runs the MCP server over stdin/stdout until ctx is
// cancelled or the transport closes, mirroring the nicetooo-adbGUI
// mcp-server.go's NewStdioServer+Listen shape rather than a bare
// one-shot ServeStdio helper, so a future caller can wire SIGINT/SIGTERM
// into ctx for graceful shutdown.
func serveMCPStdio(ctx context.Context, s *server.MCPServer) error {
	stdio := server.NewStdioServer(s)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
