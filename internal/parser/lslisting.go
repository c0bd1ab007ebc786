// Package parser turns raw ADB shell text output into structured results:
// toybox `ls -la` long listings and uiautomator UI-hierarchy XML dumps.
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// FileEntry is one parsed line of a long-listing.
type FileEntry struct {
	Name        string
	Permissions string
	Owner       string
	Group       string
	Size        int64
	Date        string
	IsDir       bool
}

// lsLineRe matches a toybox `ls -la` line: permissions, link count, owner,
// group, size, date (YYYY-MM-DD HH:MM), and the remainder (name, possibly
// with a " -> target" symlink suffix).
var lsLineRe = regexp.MustCompile(
	`^([dlbcsp-][rwxst-]{9}[.+]?)\s+(\d+)\s+(\S+)\s+(\S+)\s+(\d+)\s+(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2})\s+(.+)$`,
)

// ParseLongListing parses toybox `ls -la` output into FileEntry values.
// Blank lines, `total N` lines, and lines that don't match the expected
// shape are skipped silently.
func ParseLongListing(output string) []FileEntry {
	var entries []FileEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "total ") {
			continue
		}

		m := lsLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		size, err := strconv.ParseInt(m[5], 10, 64)
		if err != nil {
			continue
		}

		name := m[7]
		if idx := strings.Index(name, " -> "); idx >= 0 {
			name = name[:idx]
		}
		name = strings.TrimSpace(name)

		entries = append(entries, FileEntry{
			Name:        name,
			Permissions: m[1],
			Owner:       m[3],
			Group:       m[4],
			Size:        size,
			Date:        m[6],
			IsDir:       m[1][0] == 'd',
		})
	}
	return entries
}
