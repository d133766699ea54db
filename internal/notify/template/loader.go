// Package template holds the HTML bodies used by the email channel.
package template

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed email/*.html
var emailFS embed.FS

// Address is the template used for first-seen and changed messages
const Address = "address"

// Set is the embedded email templates plus any file overrides
type Set struct {
	logger    *zap.Logger
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewSet parses the embedded templates, named after their file without extension
func NewSet(logger *zap.Logger) (*Set, error) {
	entries, err := emailFS.ReadDir("email")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}

	s := &Set{
		logger:    logger,
		templates: make(map[string]*template.Template, len(entries)),
	}
	for _, e := range entries {
		content, err := emailFS.ReadFile(path.Join("email", e.Name()))
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		if err := s.Set(name, string(content)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Set parses content and stores it under name, replacing any previous template
func (s *Set) Set(name, content string) error {
	tmpl, err := template.New(name).Funcs(funcs).Parse(content)
	if err != nil {
		return fmt.Errorf("invalid template %s: %w", name, err)
	}

	s.mu.Lock()
	s.templates[name] = tmpl
	s.mu.Unlock()
	return nil
}

// Override replaces templates with files from disk, keyed by template name
func (s *Set) Override(files map[string]string) error {
	for name, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", file, err)
		}
		if err := s.Set(name, string(content)); err != nil {
			return err
		}
		s.logger.Info("Using custom email template",
			zap.String("name", name),
			zap.String("file", file))
	}
	return nil
}

// Has reports whether name is defined
func (s *Set) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.templates[name]
	return ok
}

// Render executes the named template with data
func (s *Set) Render(name string, data any) (string, error) {
	s.mu.RLock()
	tmpl, ok := s.templates[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

var funcs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
	// Casers are stateful, so each call gets its own
	"upper": func(s string) string { return cases.Upper(language.Und).String(s) },
	"title": func(s string) string { return cases.Title(language.English).String(s) },
}
