// Package openai provides a TTS provider backed by the OpenAI audio speech API.
//
// Speech is requested in the "pcm" response format, which OpenAI documents as
// raw 24 kHz, 16-bit signed little-endian, mono samples without a header.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
)

const (
	defaultModel = "gpt-4o-mini-tts"
	defaultVoice = "alloy"

	// pcmRate is the fixed rate of the "pcm" response format.
	pcmRate = 24000
)

var voices = []string{"alloy", "ash", "ballad", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

// Provider implements tts.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	voice  string
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

type config struct {
	baseURL    string
	model      string
	voice      string
	timeout    time.Duration
	maxRetries int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the speech model (e.g. "tts-1", "gpt-4o-mini-tts").
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDefaultVoice sets the voice used when a request names none.
func WithDefaultVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxRetries sets how often the SDK retries failed requests.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// New constructs an OpenAI TTS Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	cfg := &config{model: defaultModel, voice: defaultVoice, maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		voice:  cfg.voice,
	}, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Speech, error) {
	req = req.WithDefaults()
	voice := req.Voice.ID
	if voice == "" {
		voice = p.voice
	}

	params := oai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if req.Voice.SpeedFactor > 0 {
		params.Speed = param.NewOpt(req.Voice.SpeedFactor)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: speech: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read speech body: %w", err)
	}

	return tts.NewSpeech(pcm, pcmRate, 1), nil
}

// ListVoices returns OpenAI's built-in voices.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	out := make([]tts.VoiceProfile, 0, len(voices))
	for _, v := range voices {
		out = append(out, tts.VoiceProfile{
			ID:       v,
			Name:     v,
			Provider: "openai",
			Metadata: map[string]string{"model": p.model},
		})
	}
	return out, nil
}
