// Package prompt holds the analyst prompts. Built-in templates can be
// replaced at runtime from a directory of JSON or Hjson files.
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
)

// ErrUnknownPrompt is returned for an ID that was never registered.
var ErrUnknownPrompt = errors.New("unknown prompt")

// Template is one system prompt plus a text/template for the user turn.
type Template struct {
	ID       string   `json:"id"`
	System   string   `json:"system_prompt"`
	User     string   `json:"user_prompt_template"`
	Required []string `json:"required,omitempty"` // variables that must be set
	Version  string   `json:"version,omitempty"`

	compiled *template.Template
}

// compile parses the user template. Missing keys fail at render time instead
// of producing "<no value>".
func (t *Template) compile() error {
	if t.ID == "" {
		return errors.New("prompt ID cannot be empty")
	}
	if t.User == "" {
		t.compiled = nil
		return nil
	}
	tmpl, err := template.New(t.ID).Option("missingkey=error").Parse(t.User)
	if err != nil {
		return fmt.Errorf("prompt %s: %w", t.ID, err)
	}
	t.compiled = tmpl
	return nil
}

func (t *Template) render(vars Vars) (string, error) {
	for _, name := range t.Required {
		if _, ok := vars[name]; !ok {
			return "", fmt.Errorf("prompt %s: missing variable %s", t.ID, name)
		}
	}
	if t.compiled == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := t.compiled.Execute(&buf, map[string]any(vars)); err != nil {
		return "", fmt.Errorf("prompt %s: %w", t.ID, err)
	}
	return buf.String(), nil
}

// Vars are the values substituted into a user template.
type Vars map[string]any

// Set adds a variable and returns v for chaining.
func (v Vars) Set(key string, value any) Vars {
	v[key] = value
	return v
}
