// Package prompts renders the fixed instruction templates sent to the
// generation providers.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// Mode selects a prompt template
type Mode string

const (
	ModeSentence Mode = "sentence"
	ModeBehavior Mode = "behavior"
	ModeInsight  Mode = "insight"
)

// OutputField is the JSON field each mode must answer with
var OutputField = map[Mode]string{
	ModeSentence: "generatedSentence",
	ModeBehavior: "analysis",
	ModeInsight:  "interpretation",
}

//go:embed templates/*.tmpl
var templateFS embed.FS

// ImageLabel describes one selected picture in order
type ImageLabel struct {
	Position    int
	Description string
	Hint        string
}

// TemplateData is passed to every template
type TemplateData struct {
	Images      []ImageLabel
	Description string
}

// Builder holds the parsed templates
type Builder struct {
	templates map[Mode]*template.Template
}

// NewBuilder parses the embedded templates
func NewBuilder() (*Builder, error) {
	parsed := make(map[Mode]*template.Template, len(OutputField))
	for mode := range OutputField {
		name := string(mode) + ".tmpl"
		content, err := templateFS.ReadFile("templates/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt template %s: %w", name, err)
		}
		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt template %s: %w", name, err)
		}
		parsed[mode] = tmpl
	}
	return &Builder{templates: parsed}, nil
}

// MustNewBuilder is NewBuilder for package initialization and tests
func MustNewBuilder() *Builder {
	b, err := NewBuilder()
	if err != nil {
		panic(err)
	}
	return b
}

// Build renders the template for mode
func (b *Builder) Build(mode Mode, data TemplateData) (string, error) {
	tmpl, ok := b.templates[mode]
	if !ok {
		return "", fmt.Errorf("unknown prompt mode: %q", mode)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return sb.String(), nil
}
