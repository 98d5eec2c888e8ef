package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// RenderPrompt replaces template variables in a prompt using Go's
// text/template package, with slot values as the data context. This lives in
// internal to avoid committing to public API stability prematurely.
func RenderPrompt(text string, slots map[string]string) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := template.New("prompt").Option("missingkey=zero").Funcs(template.FuncMap{
		// val is any so a missing key's zero value falls back cleanly.
		"default": func(defaultVal string, val any) string {
			if s, ok := val.(string); ok && s != "" {
				return s
			}
			return defaultVal
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": func(s string) string {
			if len(s) == 0 {
				return s
			}
			return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
		},
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
	}).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, slots); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}

	return buf.String(), nil
}
