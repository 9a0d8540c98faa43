package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"portfolio/internal/chat"
	"portfolio/internal/profile"
	"portfolio/internal/suggest"
)

type GetProfileParams struct{}

type AskParams struct {
	Question string `json:"question"`
}

type SuggestParams struct {
	ProjectIndex int `json:"project_index"`
}

// PortfolioTools backs the MCP tools. One MCP process is one visitor, so
// all questions share a single widget.
type PortfolioTools struct {
	profile profile.Profile
	widget  *chat.Widget
	board   *suggest.Board
}

func NewPortfolioTools(p profile.Profile, w *chat.Widget, b *suggest.Board) *PortfolioTools {
	return &PortfolioTools{profile: p, widget: w, board: b}
}

func textResult(text string, isErr bool) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: isErr,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func (t *PortfolioTools) GetProfile(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[GetProfileParams]) (*mcp.CallToolResultFor[any], error) {
	return textResult(t.profile.JSON(), false), nil
}

func (t *PortfolioTools) Ask(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[AskParams]) (*mcp.CallToolResultFor[any], error) {
	reply, err := t.widget.Submit(ctx, params.Arguments.Question)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return textResult("question is required", true), nil
	case errors.Is(err, chat.ErrBusy):
		return textResult("the assistant is still answering the previous question", true), nil
	case err != nil:
		return nil, err
	}
	return textResult(reply.Text, false), nil
}

func (t *PortfolioTools) SuggestFeature(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[SuggestParams]) (*mcp.CallToolResultFor[any], error) {
	s, err := t.board.Suggest(ctx, params.Arguments.ProjectIndex)
	switch {
	case errors.Is(err, suggest.ErrUnknownProject):
		return textResult(fmt.Sprintf("no project at index %d (have %d)", params.Arguments.ProjectIndex, len(t.profile.Projects)), true), nil
	case errors.Is(err, chat.ErrBusy):
		return textResult("a suggestion for this project is already being generated", true), nil
	case err != nil:
		return nil, err
	}
	return textResult(fmt.Sprintf("%s: %s", s.Project, s.Text), false), nil
}
