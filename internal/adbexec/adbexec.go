// Package adbexec is the sole place this module spawns subprocesses against
// the ADB command-line binary. It treats adb as an opaque executable: every
// operation here is "run adb with these args and interpret the exit code",
// nothing more.
package adbexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/JuanCF/scrcpy-mcp/internal/errkind"
)

// DefaultTimeout is the subprocess time budget spec.md §4.B pins.
const DefaultTimeout = 30 * time.Second

// Result is the outcome of a completed ADB invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Client runs the adb binary as a child process.
type Client struct {
	// Path is the adb executable to invoke, resolved once at construction
	// time from ADB_PATH (default "adb").
	Path string
}

// New builds a Client reading ADB_PATH with a fallback of "adb" (found via
// PATH at exec time).
func New() *Client {
	path := os.Getenv("ADB_PATH")
	if path == "" {
		path = "adb"
	}
	return &Client{Path: path}
}

// Exec runs `adb <args...>` with the given timeout (0 uses DefaultTimeout)
// and returns stdout/stderr/exit code, or an error describing whether the
// failure was a spawn error, a non-zero exit, or a timeout.
func (c *Client) Exec(ctx context.Context, args []string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, errkind.Wrap(errkind.AdbTimeout, ctx.Err(), "adb %s timed out after %s", strings.Join(args, " "), timeout)
	}
	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
			return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode},
				errkind.Wrap(errkind.AdbInvocationFailed, err, "adb %s exited %d: %s", strings.Join(args, " "), exitCode, stderr.String())
		}
		return Result{}, fmt.Errorf("spawning adb %s: %w", strings.Join(args, " "), err)
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: 0}, nil
}

// Shell runs `adb -s <serial> shell <command>` and returns trimmed stdout.
func (c *Client) Shell(ctx context.Context, serial, command string, timeout time.Duration) (string, error) {
	res, err := c.Exec(ctx, []string{"-s", serial, "shell", command}, timeout)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(res.Stdout, "\n"), nil
}

// ShellArgs is like Shell but passes the shell command as discrete argv
// entries (no quoting ambiguity), used for multi-token commands built from
// validated parameters rather than free-form strings.
func (c *Client) ShellArgs(ctx context.Context, serial string, args []string, timeout time.Duration) (string, error) {
	full := append([]string{"-s", serial, "shell"}, args...)
	res, err := c.Exec(ctx, full, timeout)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(res.Stdout, "\n"), nil
}

// ResolveSerial returns serial unchanged if non-empty, otherwise lists
// attached devices and returns the single attached serial.
func (c *Client) ResolveSerial(ctx context.Context, serial string) (string, error) {
	if serial != "" {
		return serial, nil
	}

	res, err := c.Exec(ctx, []string{"devices"}, DefaultTimeout)
	if err != nil {
		return "", err
	}

	var attached []string
	for i, line := range strings.Split(res.Stdout, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header line / blank
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[1] == "device" {
			attached = append(attached, fields[0])
		}
	}

	switch len(attached) {
	case 0:
		return "", errkind.New(errkind.NoDeviceAttached, "no attached device and none specified")
	case 1:
		return attached[0], nil
	default:
		return "", errkind.New(errkind.AmbiguousDevice, "%d devices attached (%s); specify a serial", len(attached), strings.Join(attached, ", "))
	}
}

// GetDeviceProperty returns the trimmed value of `getprop <key>`.
func (c *Client) GetDeviceProperty(ctx context.Context, serial, key string) (string, error) {
	out, err := c.Shell(ctx, serial, "getprop "+key, DefaultTimeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Push copies a local file to the device via `adb push`.
func (c *Client) Push(ctx context.Context, serial, localPath, remotePath string, timeout time.Duration) error {
	_, err := c.Exec(ctx, []string{"-s", serial, "push", localPath, remotePath}, timeout)
	return err
}

// Forward installs `adb forward tcp:<localPort> localabstract:<remoteSocket>`.
func (c *Client) Forward(ctx context.Context, serial string, localPort int, remoteSocket string) error {
	_, err := c.Exec(ctx, []string{"-s", serial, "forward", fmt.Sprintf("tcp:%d", localPort), "localabstract:" + remoteSocket}, DefaultTimeout)
	return err
}

// RemoveForward removes a previously installed forward. Best-effort: errors
// are returned to the caller to log, not to propagate as fatal.
func (c *Client) RemoveForward(ctx context.Context, serial string, localPort int) error {
	_, err := c.Exec(ctx, []string{"-s", serial, "forward", "--remove", fmt.Sprintf("tcp:%d", localPort)}, DefaultTimeout)
	return err
}

// StartBackground spawns `adb -s <serial> shell <args...>` detached: the
// host does not wait for it and holds no pipe to its stdout. Used for the
// scrcpy server process, which is reaped only via a best-effort `pkill` on
// the device during teardown.
func (c *Client) StartBackground(serial string, args []string) error {
	full := append([]string{"-s", serial, "shell"}, args...)
	cmd := exec.Command(c.Path, full...)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting background adb shell: %w", err)
	}
	// Fire-and-forget: wait in the background so the exited child is reaped
	// without blocking the caller.
	go cmd.Wait()
	return nil
}

// ListAttachedSerials returns every serial currently reporting state
// "device" (online), used by the doctor diagnostic.
func (c *Client) ListAttachedSerials(ctx context.Context) ([]string, error) {
	res, err := c.Exec(ctx, []string{"devices", "-l"}, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	var out []string
	for i, line := range strings.Split(res.Stdout, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			out = append(out, fields[0])
		}
	}
	return out, nil
}
