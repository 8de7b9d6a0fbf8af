package llm

import "unicode/utf8"

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    string
	Content string

	// Name is an optional participant name.
	Name string
}

// ModelCapabilities are the limits the advisor sizes its requests against.
type ModelCapabilities struct {
	// ContextWindow is the input plus output token limit.
	ContextWindow int

	// MaxOutputTokens is the longest reply the model produces.
	MaxOutputTokens int
}

// messageOverhead approximates the role and framing tokens around each
// message.
const messageOverhead = 4

// EstimateTokens approximates the token cost of messages at roughly four
// characters per token, rounding up, plus a fixed per-message overhead.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		chars := utf8.RuneCountInString(m.Role) + utf8.RuneCountInString(m.Content) + utf8.RuneCountInString(m.Name)
		total += (chars+3)/4 + messageOverhead
	}
	return total
}
