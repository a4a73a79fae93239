package processor

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// funcMap is sprig's text function map without the functions that read the
// process environment or touch the network. Bodies come from manifest
// authors, who must not be able to read provider credentials.
func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	for _, name := range []string{"env", "expandenv", "getHostByName"} {
		delete(fm, name)
	}
	return fm
}

// TemplateProcessor renders a Go template string with the sprig function map.
type TemplateProcessor struct{}

// NewTemplateProcessor creates a new TemplateProcessor.
func NewTemplateProcessor() *TemplateProcessor {
	return &TemplateProcessor{}
}

// Process renders a template string. Content without actions is returned untouched.
func (p *TemplateProcessor) Process(content string, data map[string]any) (string, error) {
	if !strings.Contains(content, "{{") {
		return content, nil
	}

	t, err := template.New("body").Funcs(funcMap()).Parse(content)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
