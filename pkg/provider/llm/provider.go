// Package llm is the boundary between the advisor and whatever model answers
// its questions.
//
// The deck only ever needs whole replies: a question goes out with the
// persona prompt and some trimmed history, a single answer comes back and is
// narrated. Providers therefore expose a blocking [Provider.Complete] plus the
// two pieces of metadata the advisor uses to size its requests.
package llm

import "context"

// Usage is the token accounting reported with a reply. Counts are in the
// provider's own unit.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest is one question to the model.
type CompletionRequest struct {
	// SystemPrompt carries the persona. Providers without a dedicated field
	// send it as a leading system message.
	SystemPrompt string

	// Messages is the trimmed conversation ending with the user's question.
	Messages []Message

	// Temperature in [0, 2]. Zero is sent as-is.
	Temperature float64

	// MaxTokens caps the reply. Zero leaves the provider default.
	MaxTokens int
}

// CompletionResponse is a finished reply.
type CompletionResponse struct {
	// Content may be empty; the advisor substitutes its own fallback text.
	Content string
	Usage   Usage
}

// Provider answers completion requests. Implementations must be safe for
// concurrent use and return promptly once ctx is done.
type Provider interface {
	// Complete sends req and waits for the whole reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the context cost of messages. It may approximate
	// but should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities reports the model's limits. Zero fields mean unknown.
	Capabilities() ModelCapabilities
}
