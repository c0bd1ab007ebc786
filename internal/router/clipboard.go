package router

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JuanCF/scrcpy-mcp/internal/adbexec"
	"github.com/JuanCF/scrcpy-mcp/internal/codec"
	"github.com/JuanCF/scrcpy-mcp/internal/wire"
)

// ClipboardGet reads the device clipboard, preferring the scrcpy control
// channel over the ADB shell service-dump fallback.
func (r *Router) ClipboardGet(ctx context.Context, serial string) (string, error) {
	if s := r.readySession(serial); s != nil {
		text, err := s.RequestClipboard(ctx, wire.CopyKeyNone)
		if err == nil {
			return text, nil
		}
		logFallback(serial, "clipboard-get", err)
	}

	sdk, _ := r.sdkVersion(ctx, serial)
	if sdk >= 31 {
		out, err := r.ADB.Shell(ctx, serial, "cmd clipboard get", adbexec.DefaultTimeout)
		if err != nil {
			return "", err
		}
		return decodeOctalEscapes(out), nil
	}

	out, err := r.ADB.Shell(ctx, serial, "service call clipboard 2", adbexec.DefaultTimeout)
	if err != nil {
		return "", err
	}
	return decodeOctalEscapes(parseClipboardServiceDump(out)), nil
}

// ClipboardSet writes text to the device clipboard. paste is honored only
// via the scrcpy path; the ADB fallback has no equivalent.
func (r *Router) ClipboardSet(ctx context.Context, serial, text string, paste bool) error {
	if s := r.readySession(serial); s != nil {
		seq := s.NextClipboardSequence()
		if err := s.Write(ctx, codec.SetClipboard(text, paste, seq)); err == nil {
			return nil
		} else {
			logFallback(serial, "clipboard-set", err)
		}
	}

	b64 := base64.StdEncoding.EncodeToString([]byte(text))
	sdk, _ := r.sdkVersion(ctx, serial)
	var cmd string
	if sdk >= 29 {
		cmd = fmt.Sprintf("echo %s | base64 -d | cmd clipboard set", b64)
	} else {
		cmd = fmt.Sprintf(`echo %s | base64 -d | xargs -0 am broadcast -a clipper.set -e text`, b64)
	}
	_, err := r.ADB.Shell(ctx, serial, cmd, adbexec.DefaultTimeout)
	return err
}

var (
	resultLineRe  = regexp.MustCompile(`(?i)result=0[^)]*\)\s*(.+)`)
	quotedRe      = regexp.MustCompile(`"([^"]*)"`)
	hexRunRe      = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	octalEscapeRe = regexp.MustCompile(`\\([0-3][0-7]{2})`)
)

// parseClipboardServiceDump extracts the clipboard text from
// `service call clipboard 2` output using three strategies in order:
// a `result=0 ... )` trailer, the first double-quoted substring, or a
// hex byte run decoded as UTF-8.
func parseClipboardServiceDump(dump string) string {
	if m := resultLineRe.FindStringSubmatch(dump); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := quotedRe.FindStringSubmatch(dump); m != nil {
		return m[1]
	}
	if m := hexRunRe.FindString(dump); m != "" {
		if b, err := hex.DecodeString(strings.TrimPrefix(m, "0x")); err == nil {
			return string(b)
		}
	}
	return ""
}

// decodeOctalEscapes replaces \ddd octal escapes with their decoded byte,
// as the final extraction step after any of the three dump strategies.
func decodeOctalEscapes(s string) string {
	return octalEscapeRe.ReplaceAllStringFunc(s, func(m string) string {
		digits := m[1:]
		n, err := strconv.ParseInt(digits, 8, 32)
		if err != nil {
			return m
		}
		return string(rune(n))
	})
}
