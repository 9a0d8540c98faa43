package llm

import (
	"context"

	"github.com/rs/zerolog/log"
)

const (
	// FailureText replaces the reply when the endpoint could not be reached
	// or answered with an error.
	FailureText = "Sorry, I'm having trouble connecting to my brain right now. Please try again later."
	// NoAnswerText replaces the reply when the endpoint answered without text.
	NoAnswerText = "I couldn't generate a response at this time."
)

type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeNoAnswer Outcome = "no_answer"
	OutcomeFailed   Outcome = "failed"
)

// Answer performs one completion and always yields user-visible text.
// There is no retry: a failure maps to FailureText, an empty reply to
// NoAnswerText.
func Answer(ctx context.Context, c Completer, req Request) (string, Outcome) {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("completion call failed")
		return FailureText, OutcomeFailed
	}
	if resp.Content == "" {
		log.Debug().Str("model", resp.Model).Msg("completion returned no text")
		return NoAnswerText, OutcomeNoAnswer
	}
	log.Debug().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.PromptTokens).
		Int("completion_tokens", resp.CompletionTokens).
		Int("total_tokens", resp.TotalTokens).
		Msg("completion answered")
	return resp.Content, OutcomeAnswered
}
