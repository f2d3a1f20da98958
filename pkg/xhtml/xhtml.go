// Package xhtml holds small helpers for inspecting HTML documents, used to
// diagnose block pages that upstream sites return in place of media bytes.
package xhtml

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// LooksLikeHTML reports whether b plausibly starts an HTML document.
func LooksLikeHTML(b []byte) bool {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	if len(trimmed) == 0 {
		return false
	}
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<html")) || bytes.HasPrefix(lower, []byte("<!doctype"))
}

// PageTitle parses b as (possibly truncated) HTML and returns the text of the
// first title element, or "" when none is found. The parser tolerates
// truncated input, which is all we ever have when sniffing a stream head.
func PageTitle(b []byte) string {
	doc, err := html.Parse(bytes.NewReader(b))
	if err != nil {
		return ""
	}
	title := FindElementByTag(doc, "title")
	if title == nil {
		return ""
	}
	return strings.TrimSpace(Text(title))
}

// FindElementByTag recursively searches for an element with the specified tag name. Returns the first matching element found.
func FindElementByTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := FindElementByTag(c, tag); result != nil {
			return result
		}
	}

	return nil
}

// Text returns the concatenated text content of a node's subtree.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
