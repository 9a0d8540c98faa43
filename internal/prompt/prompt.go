// Package prompt renders the texts sent to the completion endpoint.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/rs/zerolog/log"

	"portfolio/internal/profile"
)

//go:embed system.tmpl
var defaultSystemTemplate string

type systemData struct {
	Name        string
	FirstName   string
	ProfileJSON string
}

// Builder holds the rendered system instruction. The instruction only
// changes through Reload; widgets copy it at construction.
type Builder struct {
	profile profile.Profile

	mu          sync.RWMutex
	instruction string
}

func NewBuilder(p profile.Profile, tmplText string) (*Builder, error) {
	b := &Builder{profile: p}
	if err := b.Reload(tmplText); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload re-renders the instruction from tmplText; empty text means the
// built-in template. On error the previous instruction is kept.
func (b *Builder) Reload(tmplText string) error {
	if strings.TrimSpace(tmplText) == "" {
		tmplText = defaultSystemTemplate
	}
	tmpl, err := template.New("system").Option("missingkey=error").Parse(tmplText)
	if err != nil {
		return fmt.Errorf("parse system prompt template: %w", err)
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, systemData{
		Name:        b.profile.Name,
		FirstName:   b.profile.FirstName(),
		ProfileJSON: b.profile.JSON(),
	})
	if err != nil {
		return fmt.Errorf("render system prompt: %w", err)
	}
	b.mu.Lock()
	b.instruction = buf.String()
	b.mu.Unlock()
	return nil
}

// ReadTemplate loads a template override. A missing file falls back to the
// built-in template.
func ReadTemplate(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("system prompt file not found or unreadable, using built-in")
		return ""
	}
	return string(data)
}

func (b *Builder) SystemInstruction() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.instruction
}

func (b *Builder) Greeting() string {
	return fmt.Sprintf("Hi! I'm %s's AI Assistant. Ask me anything about their skills, projects, or experience!", b.profile.FirstName())
}

// FeatureIdea builds the one-shot prompt behind a project's suggestion button.
func FeatureIdea(p profile.Project) string {
	return fmt.Sprintf(`Based on this project: "%s: %s" using tech stack [%s], suggest ONE creative, advanced feature I could add to version 2.0. Keep it short (1 sentence) and exciting. Start with "Feature Idea:".`,
		p.Title, p.Description, strings.Join(p.Tags, ", "))
}
