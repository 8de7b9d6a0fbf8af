// Package openai answers advisor questions through the OpenAI chat
// completions API or any server that speaks it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/missiongenesis/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// Provider is an [llm.Provider] for one chat model.
type Provider struct {
	client oai.Client
	model  string
	caps   llm.ModelCapabilities
}

type settings struct {
	requestOpts []option.RequestOption
}

// Option configures a [Provider].
type Option func(*settings)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithBaseURL(url)) }
}

// WithOrganization sends the organization header on every request.
func WithOrganization(org string) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithOrganization(org)) }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.requestOpts = append(s.requestOpts, option.WithHTTPClient(&http.Client{Timeout: d}))
	}
}

// WithMaxRetries overrides the SDK's retry count.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithMaxRetries(n)) }
}

// New returns a provider for model authenticated with apiKey.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	switch {
	case apiKey == "":
		return nil, errors.New("openai: apiKey must not be empty")
	case model == "":
		return nil, errors.New("openai: model must not be empty")
	}

	s := settings{requestOpts: []option.RequestOption{option.WithAPIKey(apiKey)}}
	for _, o := range opts {
		o(&s)
	}
	return &Provider{
		client: oai.NewClient(s.requestOpts...),
		model:  model,
		caps:   limitsFor(model),
	}, nil
}

// Complete implements [llm.Provider].
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}
	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// CountTokens implements [llm.Provider] with [llm.EstimateTokens].
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.EstimateTokens(messages), nil
}

// Capabilities implements [llm.Provider].
func (p *Provider) Capabilities() llm.ModelCapabilities { return p.caps }

// modelLimits maps model name prefixes to their limits. More specific
// prefixes come first.
var modelLimits = []struct {
	prefix string
	caps   llm.ModelCapabilities
}{
	{"gpt-4.1", llm.ModelCapabilities{ContextWindow: 1_047_576, MaxOutputTokens: 32_768}},
	{"gpt-4o", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}},
	{"gpt-4-turbo", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}},
	{"gpt-4", llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}},
	{"gpt-3.5-turbo", llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}},
	{"o1", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}},
	{"o3", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}},
	{"o4", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}},
}

// limitsFor returns the limits of a known model, or conservative defaults
// for compatible servers with unknown model names.
func limitsFor(model string) llm.ModelCapabilities {
	lower := strings.ToLower(model)
	for _, l := range modelLimits {
		if strings.HasPrefix(lower, l.prefix) {
			return l.caps
		}
	}
	return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}
}

func (p *Provider) params(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := toParam(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		msgs = append(msgs, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: msgs,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params, nil
}

func toParam(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return oai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	}
	return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
}
