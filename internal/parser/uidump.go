package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// UINode is one flattened node from a uiautomator hierarchy dump.
type UINode struct {
	Text            string
	ResourceID      string
	Class           string
	ContentDesc     string
	Clickable       bool
	Bounds          [4]int // x1, y1, x2, y2
	TapCenterX      int
	TapCenterY      int
}

var (
	nodeRe      = regexp.MustCompile(`<node\b[^>]*/?>`)
	attrRe      = regexp.MustCompile(`(\S+)="([^"]*)"`)
	boundsRe    = regexp.MustCompile(`^\[(\d+),(\d+)\]\[(\d+),(\d+)\]$`)
)

// ParseUIHierarchy extracts every <node> element from uiautomator dump XML
// into a flat, document-order list. Hierarchy nesting is not preserved;
// nodes whose bounds attribute doesn't match the expected shape are dropped.
func ParseUIHierarchy(xml string) []UINode {
	var nodes []UINode
	for _, tag := range nodeRe.FindAllString(xml, -1) {
		attrs := make(map[string]string)
		for _, m := range attrRe.FindAllStringSubmatch(tag, -1) {
			attrs[m[1]] = unescapeXML(m[2])
		}

		bm := boundsRe.FindStringSubmatch(attrs["bounds"])
		if bm == nil {
			continue
		}
		x1, _ := strconv.Atoi(bm[1])
		y1, _ := strconv.Atoi(bm[2])
		x2, _ := strconv.Atoi(bm[3])
		y2, _ := strconv.Atoi(bm[4])

		nodes = append(nodes, UINode{
			Text:        attrs["text"],
			ResourceID:  attrs["resource-id"],
			Class:       attrs["class"],
			ContentDesc: attrs["content-desc"],
			Clickable:   attrs["clickable"] == "true",
			Bounds:      [4]int{x1, y1, x2, y2},
			TapCenterX:  (x1 + x2) / 2,
			TapCenterY:  (y1 + y2) / 2,
		})
	}
	return nodes
}

// NodeFilter selects nodes by zero or more AND-combined criteria. Text and
// ContentDesc are case-insensitive substring matches; ResourceID and Class
// are exact matches. A zero value field is not applied as a filter.
type NodeFilter struct {
	Text        string
	ContentDesc string
	ResourceID  string
	Class       string
}

// Matches reports whether n satisfies every non-empty field of f.
func (f NodeFilter) Matches(n UINode) bool {
	if f.Text != "" && !strings.Contains(strings.ToLower(n.Text), strings.ToLower(f.Text)) {
		return false
	}
	if f.ContentDesc != "" && !strings.Contains(strings.ToLower(n.ContentDesc), strings.ToLower(f.ContentDesc)) {
		return false
	}
	if f.ResourceID != "" && n.ResourceID != f.ResourceID {
		return false
	}
	if f.Class != "" && n.Class != f.Class {
		return false
	}
	return true
}

// FilterNodes returns every node in nodes matching f, in document order.
func FilterNodes(nodes []UINode, f NodeFilter) []UINode {
	var out []UINode
	for _, n := range nodes {
		if f.Matches(n) {
			out = append(out, n)
		}
	}
	return out
}

var xmlEscapes = map[string]string{
	"&lt;":   "<",
	"&gt;":   ">",
	"&amp;":  "&",
	"&quot;": `"`,
	"&apos;": "'",
}

func unescapeXML(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	for esc, lit := range xmlEscapes {
		s = strings.ReplaceAll(s, esc, lit)
	}
	return s
}
