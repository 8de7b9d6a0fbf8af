// Package anyllm routes advisor questions through
// github.com/mozilla-ai/any-llm-go, which fronts Gemini, Anthropic, Ollama
// and several other backends behind a single completion API.
//
// Gemini is the advisor's default:
//
//	p, err := anyllm.NewGemini(anyllm.DefaultGeminiModel, anyllmlib.WithAPIKey(key))
//	p, err := anyllm.New("ollama", "llama3.2")
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/missiongenesis/pkg/provider/llm"
)

// DefaultGeminiModel is the model the advisor persona was tuned against.
const DefaultGeminiModel = "gemini-3-flash-preview"

var _ llm.Provider = (*Provider)(nil)

// Provider is an [llm.Provider] over one any-llm-go backend and model.
type Provider struct {
	backend anyllmlib.Provider
	model   string
	caps    llm.ModelCapabilities
}

type backendFunc func(...anyllmlib.Option) (anyllmlib.Provider, error)

func wrap[P anyllmlib.Provider](fn func(...anyllmlib.Option) (P, error)) backendFunc {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return fn(opts...)
	}
}

var backends = map[string]backendFunc{
	"gemini":    wrap(gemini.New),
	"openai":    wrap(anyllmoai.New),
	"anthropic": wrap(anthropic.New),
	"ollama":    wrap(ollama.New),
	"deepseek":  wrap(deepseek.New),
	"mistral":   wrap(mistral.New),
	"groq":      wrap(groq.New),
	"llamacpp":  wrap(llamacpp.New),
	"llamafile": wrap(llamafile.New),
}

// Backends lists the backend names accepted by [New].
func Backends() []string {
	return slices.Sorted(maps.Keys(backends))
}

// New returns a provider for model on the named backend. Without an
// anyllmlib.WithAPIKey option the backend reads its usual environment
// variable (GEMINI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(backend, model string, opts ...anyllmlib.Option) (*Provider, error) {
	switch {
	case backend == "":
		return nil, errors.New("anyllm: backend must not be empty")
	case model == "":
		return nil, errors.New("anyllm: model must not be empty")
	}
	create, ok := backends[strings.ToLower(backend)]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend %q (have %s)", backend, strings.Join(Backends(), ", "))
	}
	b, err := create(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", backend, err)
	}
	return &Provider{backend: b, model: model, caps: limitsFor(model)}, nil
}

// NewGemini is [New] for Gemini, defaulting to [DefaultGeminiModel].
func NewGemini(model string, opts ...anyllmlib.Option) (*Provider, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	return New("gemini", model, opts...)
}

// Complete implements [llm.Provider].
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.params(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("anyllm: response has no choices")
	}

	out := &llm.CompletionResponse{Content: resp.Choices[0].Message.ContentString()}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// CountTokens implements [llm.Provider] with [llm.EstimateTokens].
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.EstimateTokens(messages), nil
}

// Capabilities implements [llm.Provider].
func (p *Provider) Capabilities() llm.ModelCapabilities { return p.caps }

// params maps req onto any-llm-go. The system prompt becomes a leading
// system message.
func (p *Provider) params(req llm.CompletionRequest) anyllmlib.CompletionParams {
	msgs := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, anyllmlib.Message{Role: m.Role, Content: m.Content, Name: m.Name})
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: msgs}
	if t := req.Temperature; t != 0 {
		params.Temperature = &t
	}
	if n := req.MaxTokens; n > 0 {
		params.MaxTokens = &n
	}
	return params
}

// modelLimits is matched in order against the lower-cased model name.
var modelLimits = []struct {
	match  func(model string) bool
	window int
	output int
}{
	{contains("gemini-3", "gemini-2.5"), 1_048_576, 65_536},
	{contains("gemini-2.0-flash", "gemini-1.5-flash"), 1_048_576, 8_192},
	{contains("gemini-1.5-pro"), 2_097_152, 8_192},
	{prefix("gemini"), 128_000, 8_192},
	{prefix("gpt-4o"), 128_000, 16_384},
	{prefix("gpt-4"), 8_192, 4_096},
	{prefix("o1", "o3"), 200_000, 100_000},
	{prefix("claude"), 200_000, 8_192},
}

func contains(subs ...string) func(string) bool {
	return func(model string) bool {
		return slices.ContainsFunc(subs, func(s string) bool { return strings.Contains(model, s) })
	}
}

func prefix(prefixes ...string) func(string) bool {
	return func(model string) bool {
		return slices.ContainsFunc(prefixes, func(s string) bool { return strings.HasPrefix(model, s) })
	}
}

// limitsFor returns the limits of a known model. Unknown models, typically
// local ones, get conservative defaults.
func limitsFor(model string) llm.ModelCapabilities {
	lower := strings.ToLower(model)
	for _, l := range modelLimits {
		if l.match(lower) {
			return llm.ModelCapabilities{ContextWindow: l.window, MaxOutputTokens: l.output}
		}
	}
	return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}
}
