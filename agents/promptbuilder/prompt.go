/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"maps"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Prompt is a template whose {{name}} placeholders are filled in by
// successive Bind calls. Binding is immutable: each Bind returns a new
// Prompt, so a parsed template can be shared across tasks and bound
// per-request.
type Prompt struct {
	template string
	bindings map[string]binding
}

// New parses a template and registers a binding slot for every
// {{placeholder}} it contains. Placeholder names must be identifiers
// (a letter followed by letters, digits, or underscores).
func New(template string) (*Prompt, error) {
	bindings := make(map[string]binding)
	if _, err := walk(template, func(name string) (string, error) {
		if _, ok := bindings[name]; !ok {
			bindings[name] = unbound{name: name}
		}
		return "", nil
	}); err != nil {
		return nil, err
	}
	return &Prompt{template: template, bindings: bindings}, nil
}

// MustNew is New for templates declared as package-level variables.
// It panics on parse errors.
func MustNew(template string) *Prompt {
	p, err := New(template)
	if err != nil {
		panic(err)
	}
	return p
}

// Placeholders returns the set of placeholder names in the template.
func (p *Prompt) Placeholders() map[string]struct{} {
	names := make(map[string]struct{}, len(p.bindings))
	for name := range p.bindings {
		names[name] = struct{}{}
	}
	return names
}

// Bind binds a plain string value to a placeholder.
func (p *Prompt) Bind(name, value string) (*Prompt, error) {
	return p.bind(name, literal(value))
}

// BindJSON binds structured data to a placeholder, rendered as
// indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	return p.bind(name, marshaled{data: data, marshal: func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}})
}

// BindXML binds structured data to a placeholder, rendered as
// indented XML.
func (p *Prompt) BindXML(name string, data any) (*Prompt, error) {
	return p.bind(name, marshaled{data: data, marshal: func(v any) ([]byte, error) {
		return xml.MarshalIndent(v, "", "  ")
	}})
}

// BindYAML binds structured data to a placeholder, rendered as YAML.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	return p.bind(name, marshaled{data: data, marshal: yaml.Marshal})
}

func (p *Prompt) bind(name string, b binding) (*Prompt, error) {
	existing, ok := p.bindings[name]
	if !ok {
		return nil, fmt.Errorf("placeholder %q not found in template", name)
	}
	if _, isUnbound := existing.(unbound); !isUnbound {
		return nil, fmt.Errorf("placeholder %q already bound", name)
	}
	next := &Prompt{template: p.template, bindings: maps.Clone(p.bindings)}
	next.bindings[name] = b
	return next, nil
}

// Build renders the prompt, failing if any placeholder is still unbound.
func (p *Prompt) Build() (string, error) {
	values := make(map[string]string, len(p.bindings))
	for name, b := range p.bindings {
		v, err := b.value()
		if err != nil {
			return "", err
		}
		values[name] = v
	}
	return walk(p.template, func(name string) (string, error) {
		return values[name], nil
	})
}

type binding interface {
	value() (string, error)
}

type unbound struct{ name string }

func (u unbound) value() (string, error) {
	return "", fmt.Errorf("unbound placeholder: %s", u.name)
}

type literal string

func (l literal) value() (string, error) { return string(l), nil }

type marshaled struct {
	data    any
	marshal func(any) ([]byte, error)
}

func (m marshaled) value() (string, error) {
	b, err := m.marshal(m.data)
	if err != nil {
		return "", fmt.Errorf("marshaling binding: %w", err)
	}
	return string(b), nil
}

// walk scans the template and substitutes every {{name}} placeholder
// with the value returned by resolve.
func walk(template string, resolve func(name string) (string, error)) (string, error) {
	var out strings.Builder
	for len(template) > 0 {
		start := strings.Index(template, "{{")
		if start == -1 {
			out.WriteString(template)
			break
		}
		out.WriteString(template[:start])

		end := strings.Index(template[start:], "}}")
		if end == -1 {
			return "", errors.New("unclosed placeholder: missing '}}'")
		}
		end += start + 2

		name := strings.TrimSpace(template[start+2 : end-2])
		if !isIdentifier(name) {
			return "", fmt.Errorf("invalid placeholder name %q", name)
		}
		replacement, err := resolve(name)
		if err != nil {
			return "", err
		}
		out.WriteString(replacement)
		template = template[end:]
	}
	return out.String(), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
