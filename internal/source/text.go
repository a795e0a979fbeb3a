package source

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// walk visits n and its descendants in document order until fn returns
// false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// textContent concatenates every text node under n, like the DOM property
// of the same name.
func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

var blockAtoms = map[atom.Atom]bool{
	atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true, atom.Tr: true,
	atom.Section: true, atom.Article: true,
}

// paragraphAtoms are blocks set off by a blank line.
var paragraphAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Pre: true, atom.Blockquote: true, atom.Table: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

var skipAtoms = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Svg: true, atom.Button: true, atom.Noscript: true,
}

// blockText renders n as plain text, breaking lines around block elements
// and keeping whitespace inside <pre>.
func blockText(n *html.Node) string {
	var b strings.Builder
	ends := func(suffix string) bool { return strings.HasSuffix(b.String(), suffix) }
	lineBreak := func() {
		if b.Len() > 0 && !ends("\n") {
			b.WriteByte('\n')
		}
	}
	blankLine := func() {
		lineBreak()
		if b.Len() > 0 && !ends("\n\n") {
			b.WriteByte('\n')
		}
	}

	var render func(n *html.Node, pre bool)
	render = func(n *html.Node, pre bool) {
		switch n.Type {
		case html.TextNode:
			if pre {
				b.WriteString(n.Data)
				return
			}
			if n.Data == "" {
				return
			}
			words := strings.Fields(n.Data)
			lead := isSpace(n.Data[0])
			trail := isSpace(n.Data[len(n.Data)-1])
			if (lead || len(words) == 0) && b.Len() > 0 && !ends("\n") && !ends(" ") {
				b.WriteByte(' ')
			}
			b.WriteString(strings.Join(words, " "))
			if trail && len(words) > 0 {
				b.WriteByte(' ')
			}
			return
		case html.ElementNode:
			if skipAtoms[n.DataAtom] || isScreenReaderOnly(n) {
				return
			}
			if n.DataAtom == atom.Br {
				b.WriteByte('\n')
				return
			}
		}

		para := n.Type == html.ElementNode && paragraphAtoms[n.DataAtom]
		block := n.Type == html.ElementNode && blockAtoms[n.DataAtom]
		switch {
		case para:
			blankLine()
		case block:
			lineBreak()
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Li {
			b.WriteString("• ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			render(c, pre || n.DataAtom == atom.Pre)
		}
		switch {
		case para:
			blankLine()
		case block:
			lineBreak()
		}
	}
	render(n, false)
	return tidyLines(b.String())
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// tidyLines trims trailing space and collapses runs of blank lines.
func tidyLines(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if len(out) > 0 && !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func isScreenReaderOnly(n *html.Node) bool { return hasClass(n, "sr-only") }

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}
