package processor

import (
	"fmt"
	"time"

	"github.com/hallpass-app/hallpass/internal/model"
)

// Processor is the interface that all processors must implement.
type Processor interface {
	Process(content string, data map[string]any) (string, error)
}

// ProcessorStack is a slice of processors that are applied in sequence.
type ProcessorStack []Processor

// Process applies all the processors in the stack to the content.
func (s ProcessorStack) Process(content string, data map[string]any) (string, error) {
	var err error
	for _, p := range s {
		content, err = p.Process(content, data)
		if err != nil {
			return "", err
		}
	}
	return content, nil
}

// Rendered is a message's subject and body ready to hand to a transport.
type Rendered struct {
	Subject string
	Body    string
	HTML    bool
}

// Render runs the subject and body of m through the stacks for its kind and format.
// Markdown bodies become HTML for email; SMS bodies are only templated.
func Render(m *model.ScheduledMessage, now time.Time) (*Rendered, error) {
	data := map[string]any{
		"Now":     now,
		"Weekday": string(model.WeekdayOf(now.Weekday())),
		"Kind":    string(m.Kind),
		"To":      m.To,
	}

	subjectStack := ProcessorStack{NewTemplateProcessor()}
	bodyStack := ProcessorStack{NewTemplateProcessor()}
	html := m.Format == model.FormatHTML
	if m.Kind == model.KindEmail && m.Format == model.FormatMarkdown {
		bodyStack = append(bodyStack, NewMarkdownToHTMLProcessor())
		html = true
	}

	subject, err := subjectStack.Process(m.Subject, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	body, err := bodyStack.Process(m.Body, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}

	return &Rendered{Subject: subject, Body: body, HTML: html && m.Kind == model.KindEmail}, nil
}
