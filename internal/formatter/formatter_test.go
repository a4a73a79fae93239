package formatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHTML(t *testing.T) {
	tests := []struct {
		name     string
		markdown []byte
		expected []byte
	}{
		{
			name:     "headings",
			markdown: []byte("# Hello"),
			expected: []byte("<h1 id=\"hello\">Hello</h1>\n"),
		},
		{
			name:     "link",
			markdown: []byte("[link](https://example.com)"),
			expected: []byte("<p><a href=\"https://example.com\" target=\"_blank\">link</a></p>\n"),
		},
		{
			name:     "list",
			markdown: []byte("- one\n- two"),
			expected: []byte("<ul>\n<li>one</li>\n<li>two</li>\n</ul>\n"),
		},
		{
			name:     "paragraph",
			markdown: []byte("some text"),
			expected: []byte("<p>some text</p>\n"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, string(tt.expected), string(ToHTML(tt.markdown)))
		})
	}
}

func TestToText(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{"paragraph", "<p>Hello <strong>World</strong></p>", "Hello World"},
		{"link", `<p><a href="https://example.com">link</a></p>`, "link [https://example.com]"},
		{"list", "<ul>\n<li>one</li>\n<li>two</li>\n</ul>\n", "- one\n- two"},
		{"heading and paragraph", "<h1>Title</h1><p>Body</p>", "Title\n\nBody"},
		{"line break", "first<br>second", "first\nsecond"},
		{"style is dropped", "<style>p { color: red; }</style><p>x</p>", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToText(tt.html)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestToTextFromMarkdown(t *testing.T) {
	got, err := ToText(string(ToHTML([]byte("**Field trip** on [Friday](https://school.example/trip)"))))
	assert.NoError(t, err)
	assert.Equal(t, "Field trip on Friday [https://school.example/trip]", got)
}
