package formatter

import (
	"bytes"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	nethtml "golang.org/x/net/html"
)

// ToHTML converts a Markdown string to an HTML string.
func ToHTML(md []byte) []byte {
	// create markdown parser with extensions
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse(md)

	// create HTML renderer with extensions
	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	opts := html.RendererOptions{Flags: htmlFlags}
	renderer := html.NewRenderer(opts)

	return markdown.Render(doc, renderer)
}

// ToText renders an HTML email body as plain text for clients that do not
// display HTML. Links keep their target in brackets.
func ToText(htmlStr string) (string, error) {
	doc, err := nethtml.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	newline := func() {
		if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
			buf.WriteString("\n")
		}
	}

	var traverse func(*nethtml.Node)
	traverse = func(n *nethtml.Node) {
		if n.Type == nethtml.TextNode {
			buf.WriteString(n.Data)
		}

		if n.Type == nethtml.ElementNode {
			switch n.Data {
			case "script", "style", "head":
				return
			case "br":
				buf.WriteString("\n")
			case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				newline()
			case "li":
				newline()
				buf.WriteString("- ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}

		if n.Type == nethtml.ElementNode {
			switch n.Data {
			case "a":
				for _, a := range n.Attr {
					if a.Key == "href" && a.Val != "" {
						buf.WriteString(" [" + a.Val + "]")
						break
					}
				}
			case "p", "h1", "h2", "h3", "h4", "h5", "h6":
				newline()
				buf.WriteString("\n")
			}
		}
	}

	traverse(doc)
	return strings.TrimSpace(buf.String()), nil
}
