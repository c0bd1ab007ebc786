package router_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JuanCF/scrcpy-mcp/internal/adbexec"
	"github.com/JuanCF/scrcpy-mcp/internal/config"
	"github.com/JuanCF/scrcpy-mcp/internal/router"
	"github.com/JuanCF/scrcpy-mcp/internal/session"
)

// writeFakeADB drops a shell script standing in for the adb binary: it
// appends its argv to logPath and exits 0, so a test can assert on the
// command a fallback path actually ran without a real device attached.
func writeFakeADB(t *testing.T, logPath string) string {
	t.Helper()
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "adb")
	script := "#!/bin/sh\necho \"$@\" >> " + logPath + "\necho ok\n"
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o755))
	return scriptPath
}

func readLog(t *testing.T, logPath string) string {
	t.Helper()
	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	return string(b)
}

// newBrokenReadySession returns a Router whose session for serial reports
// Ready but whose control socket is already closed, forcing every scrcpy
// write to fail and the router to drop to its ADB rung.
func newBrokenReadySession(t *testing.T, serial string) (*router.Router, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "adb-calls.log")
	adbPath := writeFakeADB(t, logPath)
	adb := &adbexec.Client{Path: adbPath}

	sessions := session.NewManager(adb, &config.Config{}, nil)
	clientConn, serverConn := net.Pipe()
	clientConn.Close() // already closed: every Write on it errors immediately
	serverConn.Close()
	sessions.NewTestSession(serial, clientConn)

	return router.New(sessions, adb), logPath
}

func TestRouterFallsBackToADBWhenScrcpySessionBroken(t *testing.T) {
	const serial = "emulator-5554"
	ctx := context.Background()

	t.Run("set-display-power", func(t *testing.T) {
		r, logPath := newBrokenReadySession(t, serial)
		err := r.SetDisplayPower(ctx, serial, true)
		require.NoError(t, err)
		require.Contains(t, readLog(t, logPath), "input keyevent KEYCODE_POWER")
	})

	t.Run("rotate-device", func(t *testing.T) {
		r, logPath := newBrokenReadySession(t, serial)
		err := r.RotateDevice(ctx, serial)
		require.NoError(t, err)
		require.Contains(t, readLog(t, logPath), "accelerometer_rotation")
	})

	t.Run("expand-notifications", func(t *testing.T) {
		r, logPath := newBrokenReadySession(t, serial)
		err := r.ExpandNotifications(ctx, serial)
		require.NoError(t, err)
		require.Contains(t, readLog(t, logPath), "expand-notifications")
	})

	t.Run("collapse-panels", func(t *testing.T) {
		r, logPath := newBrokenReadySession(t, serial)
		err := r.CollapsePanels(ctx, serial)
		require.NoError(t, err)
		require.Contains(t, readLog(t, logPath), "statusbar collapse")
	})

	t.Run("key-event", func(t *testing.T) {
		r, logPath := newBrokenReadySession(t, serial)
		err := r.KeyEvent(ctx, serial, "HOME")
		require.NoError(t, err)
		require.Contains(t, readLog(t, logPath), "input keyevent")
	})

	t.Run("input-text", func(t *testing.T) {
		r, logPath := newBrokenReadySession(t, serial)
		err := r.InputText(ctx, serial, "hi")
		require.NoError(t, err)
		require.Contains(t, readLog(t, logPath), "input text")
	})

	t.Run("start-app", func(t *testing.T) {
		r, logPath := newBrokenReadySession(t, serial)
		err := r.StartApp(ctx, serial, "com.example.app")
		require.NoError(t, err)
		require.Contains(t, readLog(t, logPath), "monkey -p com.example.app")
	})
}
