package processor

import "github.com/hallpass-app/hallpass/internal/formatter"

// MarkdownToHTMLProcessor converts a Markdown email body to HTML.
type MarkdownToHTMLProcessor struct{}

// NewMarkdownToHTMLProcessor creates a new MarkdownToHTMLProcessor.
func NewMarkdownToHTMLProcessor() *MarkdownToHTMLProcessor {
	return &MarkdownToHTMLProcessor{}
}

// Process converts Markdown to HTML.
func (p *MarkdownToHTMLProcessor) Process(content string, _ map[string]any) (string, error) {
	return string(formatter.ToHTML([]byte(content))), nil
}
