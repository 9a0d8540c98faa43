package llm

import "context"

// Request is a single-turn completion: the user's prompt plus an optional
// system instruction.
type Request struct {
	Prompt            string
	SystemInstruction string
}

// Response carries the generated text. An empty Content means the endpoint
// answered successfully but produced no usable text.
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
