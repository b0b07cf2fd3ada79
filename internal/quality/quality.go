// Package quality implements the LLM-backed acceptance filter combining
// relevance and price judgment.
package quality

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// verdictDelimiter separates the model's reasoning from its boolean verdict.
const verdictDelimiter = "|| "

// CompletionClient is the interface for single-turn completion calls.
// *openai.Client satisfies it.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Input carries everything the model needs to judge one listing.
type Input struct {
	Title       string
	Terms       []string
	TargetPrice string
	Price       float64
	Description string
	Context     string
}

// Verdict is the parsed model response.
type Verdict struct {
	Passed bool
	Trace  string
}

// Validator judges listings with a generative model.
type Validator struct {
	client CompletionClient
	model  string
}

// New creates a Validator using the given completion client and model name.
func New(client CompletionClient, model string) *Validator {
	return &Validator{client: client, model: model}
}

// Check asks the model whether a listing matches the search intent and is
// fairly priced. Transport and API errors propagate to the caller; the engine
// treats them as fatal for that single listing only.
func (v *Validator) Check(ctx context.Context, in Input) (Verdict, error) {
	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(in),
			},
		},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("completion call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, fmt.Errorf("completion returned no choices")
	}

	return ParseVerdict(resp.Choices[0].Message.Content), nil
}

// buildPrompt renders the fixed instruction template. The price ceiling is a
// soft signal: an over-budget listing may still pass as an exceptional deal,
// but only for genuinely matching items.
func buildPrompt(in Input) string {
	targetPrice := in.TargetPrice
	if targetPrice == "" {
		targetPrice = "(no max price)"
	}

	return fmt.Sprintf(`Think it through shortly, then answer with || and 'True' or 'False'. If and once you determine false, stop the thought process and return false.

Example: "<your thoughts> || True"

I am searching for '%s', for a rough max price of %s (can be slightly higher).
Additional Context: '%s'.

Here is the listing:
`+"```"+`
%s
%s
`+"```"+`
Is the listing what I'm looking for, and is %v a good price for it?
If the listing is above the max price but is a very good deal anyway, respond True; only do this if the listing is actually what is being looked for.`,
		strings.Join(in.Terms, ", "), targetPrice, in.Context, in.Title, in.Description, in.Price)
}

// ParseVerdict splits a model response on the verdict delimiter. The text
// before the final delimiter is the reasoning trace; the listing passes only
// when the trailing segment is "true" (case-insensitive). A missing delimiter
// or any other trailing token is a rejection.
func ParseVerdict(text string) Verdict {
	parts := strings.Split(text, verdictDelimiter)
	trace := strings.TrimSpace(parts[0])
	passed := len(parts) > 1 && strings.EqualFold(strings.TrimSpace(parts[len(parts)-1]), "true")
	return Verdict{Passed: passed, Trace: trace}
}
