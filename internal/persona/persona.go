// Package persona holds the robot's character text and assembles the system
// prompt sent with every language-model call.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rcliao/robot-brain/internal/actions"
)

//go:embed default.md
var defaultText string

// Default returns the built-in persona.
func Default() string { return strings.TrimSpace(defaultText) }

// Persona is the current persona text. It can be reloaded from disk while
// the robot runs.
type Persona struct {
	mu       sync.RWMutex
	path     string
	text     string
	registry *actions.Registry
}

// New returns a persona backed by the file at path, or the built-in text when
// path is empty. The action catalog of reg is appended to the prompt.
func New(path string, reg *actions.Registry) (*Persona, error) {
	p := &Persona{path: path, text: Default(), registry: reg}
	if path == "" {
		return p, nil
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns the backing file, if any.
func (p *Persona) Path() string { return p.path }

// Reload rereads the backing file. An empty file is rejected and the old
// text kept.
func (p *Persona) Reload() error {
	if p.path == "" {
		return nil
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read persona: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Errorf("persona file %s is empty", p.path)
	}
	p.mu.Lock()
	p.text = text
	p.mu.Unlock()
	return nil
}

// Text returns the persona text.
func (p *Persona) Text() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.text
}

// SystemPrompt joins the persona, the action catalog and the memory digest.
// An empty digest is left out entirely.
func (p *Persona) SystemPrompt(digest string) string {
	parts := []string{p.Text()}
	if p.registry != nil {
		parts = append(parts, Catalog(p.registry))
	}
	if d := strings.TrimSpace(digest); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, "\n\n")
}

// Catalog lists the available actions for the prompt.
func Catalog(reg *actions.Registry) string {
	var b strings.Builder
	b.WriteString("RÖRELSER")
	for _, section := range []struct {
		title string
		cat   actions.Category
	}{{"Kropp (inte på bord eller vid manuell körning)", actions.Body}, {"Huvud (alltid tillåtet)", actions.Head}} {
		fmt.Fprintf(&b, "\n%s:", section.title)
		for _, a := range reg.All() {
			if a.Category == section.cat {
				fmt.Fprintf(&b, "\n- %s: %s", a.Name, a.Description)
			}
		}
	}
	return b.String()
}
