// Package suggest backs the "suggest a feature" button on each project
// card. Every project runs its own idle/awaiting gate and keeps the first
// result it gets; later requests are served from that result.
package suggest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"portfolio/internal/chat"
	"portfolio/internal/llm"
	"portfolio/internal/profile"
	"portfolio/internal/prompt"
)

var ErrUnknownProject = errors.New("unknown project")

type Suggestion struct {
	ProjectIndex int         `json:"project_index"`
	Project      string      `json:"project"`
	Text         string      `json:"text"`
	Outcome      llm.Outcome `json:"outcome"`
}

type Snapshot struct {
	Suggestions []Suggestion `json:"suggestions"`
	Pending     []int        `json:"pending"`
}

type Board struct {
	completer llm.Completer
	profile   profile.Profile

	mu      sync.Mutex
	results map[int]Suggestion
	pending map[int]bool
}

func NewBoard(completer llm.Completer, p profile.Profile) *Board {
	return &Board{
		completer: completer,
		profile:   p,
		results:   make(map[int]Suggestion),
		pending:   make(map[int]bool),
	}
}

// Suggest returns the cached suggestion for idx, or asks the endpoint once.
// A fallback text is cached like any other result.
func (b *Board) Suggest(ctx context.Context, idx int) (Suggestion, error) {
	p, ok := b.profile.Project(idx)
	if !ok {
		return Suggestion{}, ErrUnknownProject
	}

	b.mu.Lock()
	if s, ok := b.results[idx]; ok {
		b.mu.Unlock()
		return s, nil
	}
	if b.pending[idx] {
		b.mu.Unlock()
		return Suggestion{}, chat.ErrBusy
	}
	b.pending[idx] = true
	b.mu.Unlock()

	text, outcome := llm.Answer(context.WithoutCancel(ctx), b.completer, llm.Request{Prompt: prompt.FeatureIdea(p)})
	s := Suggestion{ProjectIndex: idx, Project: p.Title, Text: text, Outcome: outcome}

	b.mu.Lock()
	b.results[idx] = s
	delete(b.pending, idx)
	b.mu.Unlock()
	return s, nil
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		Suggestions: make([]Suggestion, 0, len(b.results)),
		Pending:     make([]int, 0, len(b.pending)),
	}
	for _, s := range b.results {
		snap.Suggestions = append(snap.Suggestions, s)
	}
	for idx := range b.pending {
		snap.Pending = append(snap.Pending, idx)
	}
	sort.Slice(snap.Suggestions, func(i, j int) bool {
		return snap.Suggestions[i].ProjectIndex < snap.Suggestions[j].ProjectIndex
	})
	sort.Ints(snap.Pending)
	return snap
}
