// Package htmldoc decodes HTML documents into plain structures: tables as
// rows of cell text, and text snippets selected by tag and class.
package htmldoc

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// Table is one decoded <table>. Header holds the <th> texts, or the first
// row's cells when the table has no <th>. Rows excludes the first row.
type Table struct {
	Header []string
	Rows   [][]string
}

// HeaderContains reports whether any header cell contains one of the words.
func (t Table) HeaderContains(words ...string) bool {
	for _, h := range t.Header {
		for _, w := range words {
			if strings.Contains(h, w) {
				return true
			}
		}
	}
	return false
}

// Parse parses an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, eris.Wrap(err, "htmldoc: parse")
	}
	return doc, nil
}

// Tables decodes every table in the document, nested tables included.
func Tables(r io.Reader) ([]Table, error) {
	doc, err := Parse(r)
	if err != nil {
		return nil, err
	}

	var out []Table
	walk(doc, func(n *html.Node) bool {
		if isElement(n, "table") {
			out = append(out, decodeTable(n))
		}
		return true
	})
	return out, nil
}

func decodeTable(table *html.Node) Table {
	var (
		rows    []*html.Node
		headers []string
	)
	walkOwn(table, table, func(n *html.Node) {
		switch {
		case isElement(n, "tr"):
			rows = append(rows, n)
		case isElement(n, "th"):
			headers = append(headers, Text(n))
		}
	})

	var t Table
	if len(rows) == 0 {
		t.Header = headers
		return t
	}
	if len(headers) == 0 {
		headers = cells(rows[0])
	}
	t.Header = headers
	for _, tr := range rows[1:] {
		t.Rows = append(t.Rows, cells(tr))
	}
	return t
}

func cells(tr *html.Node) []string {
	var out []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "td") || isElement(c, "th") {
			out = append(out, Text(c))
		}
	}
	return out
}

// walkOwn visits descendants of n that belong to table and not to a nested
// table.
func walkOwn(table, n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "table") && c != table {
			continue
		}
		fn(c)
		walkOwn(table, c, fn)
	}
}

// Selector matches an element by tag and class. Empty fields match anything.
type Selector struct {
	Tag   string
	Class string
}

func (s Selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.Tag != "" && n.Data != s.Tag {
		return false
	}
	if s.Class == "" {
		return true
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == s.Class {
				return true
			}
		}
	}
	return false
}

// Snippets returns the text of elements matching any selector, in document
// order, up to limit (0 means no limit). Matches nested inside an earlier
// match are not reported again.
func Snippets(r io.Reader, selectors []Selector, limit int) ([]string, error) {
	doc, err := Parse(r)
	if err != nil {
		return nil, err
	}

	var out []string
	walk(doc, func(n *html.Node) bool {
		if limit > 0 && len(out) >= limit {
			return false
		}
		for _, s := range selectors {
			if s.matches(n) {
				if txt := Text(n); txt != "" {
					out = append(out, txt)
				}
				return false
			}
		}
		return true
	})
	return out, nil
}

// DocumentText returns the visible text of a whole document.
func DocumentText(r io.Reader) (string, error) {
	doc, err := Parse(r)
	if err != nil {
		return "", err
	}
	return Text(doc), nil
}

// Text returns the whitespace-collapsed text content of n, skipping script
// and style elements.
func Text(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if isElement(n, "script") || isElement(n, "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}
