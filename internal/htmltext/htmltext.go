// Package htmltext renders the HTML produced by the content API as plain
// terminal text.
package htmltext

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Text converts an HTML fragment to plain text. Paragraph-level elements are
// separated by blank lines, list items become bullets and scripts are dropped.
func Text(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	var w textWriter
	w.walk(doc)
	return w.b.String()
}

// Inline converts an HTML fragment to a single line of text, as used for
// rendered titles.
func Inline(s string) string {
	return strings.Join(strings.Fields(Text(s)), " ")
}

type textWriter struct {
	b      strings.Builder
	space  bool // collapsed whitespace pending
	breaks int  // newlines pending
	pre    int  // depth of <pre> nesting
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Head, atom.Template, atom.Noscript:
			return
		case atom.Br:
			if w.breaks < 2 {
				w.breaks++
			}
			return
		case atom.Hr:
			w.brk(2)
			w.literal("---")
			w.brk(2)
			return
		case atom.Img:
			if alt := attr(n, "alt"); alt != "" {
				w.text("[" + alt + "]")
			}
			return
		}
	}

	gap := blockGap(n)
	w.brk(gap)
	switch n.DataAtom {
	case atom.Li:
		w.literal("• ")
	case atom.Td, atom.Th:
		w.space = true
	case atom.Pre:
		w.pre++
		defer func() { w.pre-- }()
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	w.brk(gap)
}

func (w *textWriter) text(s string) {
	if w.pre > 0 {
		w.flush()
		w.b.WriteString(s)
		return
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			w.space = true
			continue
		}
		w.flush()
		w.b.WriteRune(r)
	}
}

func (w *textWriter) literal(s string) {
	w.flush()
	w.b.WriteString(s)
	w.space = false
}

// flush writes pending separators. Nothing is written before the first
// visible character.
func (w *textWriter) flush() {
	if w.b.Len() == 0 {
		w.breaks = 0
		w.space = false
		return
	}
	if w.breaks > 0 {
		w.b.WriteString(strings.Repeat("\n", w.breaks))
		w.breaks = 0
		w.space = false
		return
	}
	if w.space {
		w.b.WriteByte(' ')
		w.space = false
	}
}

func (w *textWriter) brk(n int) {
	if n > w.breaks {
		w.breaks = n
	}
}

func blockGap(n *html.Node) int {
	if n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Pre, atom.Ul, atom.Ol, atom.Table, atom.Figure:
		return 2
	case atom.Div, atom.Li, atom.Tr, atom.Section, atom.Article,
		atom.Header, atom.Footer, atom.Figcaption, atom.Details, atom.Summary:
		return 1
	}
	return 0
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
