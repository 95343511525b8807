package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Stripper returns the text content of an HTML document. Parsing is inert:
// scripts never run and no external resource is fetched.
type Stripper struct{}

func NewStripper() *Stripper {
	return &Stripper{}
}

// Strip concatenates text nodes in document order. Whitespace is kept as
// written; script, style, noscript and template bodies are skipped.
func (s *Stripper) Strip(markup string) string {
	if markup == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	collectText(doc, &sb)
	return sb.String()
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
