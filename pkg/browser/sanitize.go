package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// DefaultSnapshotBytes caps sanitized page dumps so failure artifacts
// stay reviewable.
const DefaultSnapshotBytes = 256 * 1024

// Snapshot is a reduced rendering of a page: scripts and styling
// stripped, structure and selector-relevant attributes kept.
type Snapshot struct {
	Title     string
	Body      string
	Truncated bool
}

// SanitizeHTML condenses raw page source into a Snapshot. Elements
// that carry no visible content are dropped, attributes are pruned to
// the ones useful for locating elements, and output is truncated at
// maxBytes (DefaultSnapshotBytes when maxBytes is not positive).
func SanitizeHTML(raw string, maxBytes int) (Snapshot, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultSnapshotBytes
	}

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return Snapshot{}, fmt.Errorf("html parse failed: %w", err)
	}

	s := &sanitizer{limit: maxBytes}
	s.walk(doc)

	return Snapshot{
		Title:     s.title,
		Body:      strings.TrimSpace(s.out.String()),
		Truncated: s.truncated,
	}, nil
}

type sanitizer struct {
	out       strings.Builder
	title     string
	limit     int
	truncated bool
}

// skippedElements never contribute to a snapshot.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"embed":    true,
	"object":   true,
	"svg":      true,
	"head":     true,
	"link":     true,
	"meta":     true,
}

// voidElements have no closing tag.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// keptAttributes are the ones selectors and form debugging depend on.
var keptAttributes = map[string]bool{
	"id":          true,
	"class":       true,
	"name":        true,
	"type":        true,
	"value":       true,
	"href":        true,
	"action":      true,
	"placeholder": true,
}

func (s *sanitizer) walk(n *html.Node) {
	if s.truncated {
		return
	}

	switch n.Type {
	case html.TextNode:
		s.writeText(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if tag == "title" {
			s.captureTitle(n)
			return
		}
		if tag == "head" {
			// The head is dropped wholesale, but the title inside it
			// is still worth keeping.
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && strings.ToLower(c.Data) == "title" {
					s.captureTitle(c)
				}
			}
			return
		}
		if skippedElements[tag] {
			return
		}
		s.writeString(s.openTag(tag, n.Attr))
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			s.walk(c)
		}
		if !voidElements[tag] {
			s.writeString("</" + tag + ">")
		}
		if isBlockElement(tag) {
			s.writeString("\n")
		}
		return
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			s.walk(c)
		}
		return
	default:
		// Comments and doctypes carry nothing useful.
		return
	}
}

func (s *sanitizer) openTag(tag string, attrs []html.Attribute) string {
	var b strings.Builder
	b.WriteString("<" + tag)
	for _, a := range attrs {
		if !keptAttributes[strings.ToLower(a.Key)] {
			continue
		}
		b.WriteString(" " + a.Key + `="` + html.EscapeString(a.Val) + `"`)
	}
	b.WriteString(">")
	return b.String()
}

func (s *sanitizer) captureTitle(n *html.Node) {
	if s.title != "" {
		return
	}
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			parts = append(parts, c.Data)
		}
	}
	s.title = strings.TrimSpace(strings.Join(parts, " "))
}

func (s *sanitizer) writeText(text string) {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return
	}
	s.writeString(collapsed)
}

func (s *sanitizer) writeString(text string) {
	if s.truncated {
		return
	}
	remaining := s.limit - s.out.Len()
	if remaining <= 0 {
		s.truncated = true
		return
	}
	if len(text) > remaining {
		s.out.WriteString(text[:remaining])
		s.truncated = true
		return
	}
	s.out.WriteString(text)
}

func isBlockElement(tag string) bool {
	switch tag {
	case "div", "p", "form", "table", "tbody", "tr", "ul", "ol", "li",
		"section", "article", "header", "footer", "nav",
		"h1", "h2", "h3", "h4", "h5", "h6", "br":
		return true
	}
	return false
}
