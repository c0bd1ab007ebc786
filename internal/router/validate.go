package router

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JuanCF/scrcpy-mcp/internal/errkind"
	"github.com/JuanCF/scrcpy-mcp/internal/wire"
)

// ResolveKeycode looks nameOrCode up in the fixed name table, falling back
// to parsing it as a decimal integer.
func ResolveKeycode(nameOrCode string) (int, error) {
	if code, ok := wire.KeycodeByName[strings.ToUpper(nameOrCode)]; ok {
		return code, nil
	}
	if n, err := strconv.Atoi(nameOrCode); err == nil {
		return n, nil
	}
	return 0, errkind.New(errkind.UnknownKeycode, "unknown key name or code: %q", nameOrCode)
}

var packageSegmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidatePackageName enforces the reverse-DNS shape a package name must
// have: at least two dot-separated segments, each a valid Java identifier,
// and no shell metacharacters.
func ValidatePackageName(name string) error {
	if strings.ContainsAny(name, ";|&$`(){}[]<>*?!\\'\" \t\n") {
		return errkind.New(errkind.InvalidPackageName, "package name contains unsafe characters: %q", name)
	}

	segments := strings.Split(name, ".")
	if len(segments) < 2 {
		return errkind.New(errkind.InvalidPackageName, "package name needs at least one dot: %q", name)
	}
	for _, seg := range segments {
		if !packageSegmentRe.MatchString(seg) {
			return errkind.New(errkind.InvalidPackageName, "invalid segment %q in package name %q", seg, name)
		}
	}
	return nil
}

// shellEscapeReplacer performs the exact character-for-character
// substitution required for the `input text` ADB fallback: the ADB shell
// passes through an unknown remote shell, so this must not be "improved"
// beyond the literal substitution list.
var shellEscapeReplacer = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`'`, `\'`,
	" ", "%s",
	"(", `\(`,
	")", `\)`,
	"[", `\[`,
	"]", `\]`,
	"{", `\{`,
	"}", `\}`,
	"|", `\|`,
	";", `\;`,
	"<", `\<`,
	">", `\>`,
	"&", `\&`,
	"*", `\*`,
	"?", `\?`,
	"$", `\$`,
	"`", "\\`",
	"!", `\!`,
)

func escapeShellText(s string) string {
	return `"` + shellEscapeReplacer.Replace(s) + `"`
}

// ClassifyUninstallOutput interprets the stdout of `adb uninstall` /
// `pm uninstall`: empty output and literal "Success" mean success;
// anything starting with "Failure" or containing DELETE_FAILED means
// failure.
func ClassifyUninstallOutput(output string) bool {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" || trimmed == "Success" {
		return true
	}
	if strings.HasPrefix(trimmed, "Failure") {
		return false
	}
	if strings.Contains(trimmed, "DELETE_FAILED") {
		return false
	}
	return true
}
