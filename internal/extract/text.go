// Package extract holds the regex and HTML heuristics used to pull postings out
// of semi-structured pages. Nothing in here performs network I/O.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// PlainText strips markup from an HTML fragment and collapses whitespace.
// Text nodes are joined with a single space so adjacent block elements do not
// run together.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return selectionText(doc.Selection)
}

// selectionText joins the trimmed text nodes under s with single spaces.
func selectionText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		parts = appendStrings(parts, n)
	}
	return collapse(strings.Join(parts, " "))
}

func appendStrings(parts []string, n *html.Node) []string {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			parts = append(parts, t)
		}
		return parts
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return parts
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = appendStrings(parts, c)
	}
	return parts
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
