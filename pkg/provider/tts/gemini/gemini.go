// Package gemini provides a TTS provider backed by Gemini's native speech
// generation models through the google.golang.org/genai SDK.
//
// Gemini TTS answers a GenerateContent call with AUDIO response modality with
// a single inline blob of raw 16-bit PCM, mono, at the rate announced in the
// blob's MIME type ("audio/L16;codec=pcm;rate=24000").
package gemini

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strconv"

	"google.golang.org/genai"

	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
)

const (
	defaultModel = "gemini-2.5-flash-preview-tts"
	defaultVoice = "Kore"

	// nativeRate is used when the blob's MIME type carries no rate parameter.
	nativeRate = 24000
)

// prebuiltVoices are the voice names accepted by PrebuiltVoiceConfig.
var prebuiltVoices = []string{
	"Kore", "Puck", "Charon", "Fenrir", "Aoede", "Zephyr", "Leda", "Orus",
}

// generator is the subset of *genai.Models used by the provider.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini TTS model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithDefaultVoice sets the prebuilt voice used when a request names none.
func WithDefaultVoice(name string) Option {
	return func(p *Provider) { p.voice = name }
}

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements tts.Provider using Gemini speech generation.
type Provider struct {
	models  generator
	model   string
	voice   string
	baseURL string
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// New creates a Gemini TTS provider. apiKey must be non-empty.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel, voice: defaultVoice}
	for _, o := range opts {
		o(p)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	p.models = client.Models
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Speech, error) {
	req = req.WithDefaults()
	voice := req.Voice.ID
	if voice == "" {
		voice = p.voice
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(req.Text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate speech: %w", err)
	}

	pcm, rate := extractAudio(resp)
	return tts.NewSpeech(pcm, rate, 1), nil
}

// extractAudio concatenates every inline audio blob in the first candidate.
func extractAudio(resp *genai.GenerateContentResponse) ([]byte, int) {
	rate := nativeRate
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, rate
	}
	var pcm []byte
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil {
			continue
		}
		if r := rateFromMIME(part.InlineData.MIMEType); r > 0 {
			rate = r
		}
		pcm = append(pcm, part.InlineData.Data...)
	}
	return pcm, rate
}

// rateFromMIME parses the rate parameter of an "audio/L16" MIME type.
func rateFromMIME(mt string) int {
	_, params, err := mime.ParseMediaType(mt)
	if err != nil {
		return 0
	}
	r, err := strconv.Atoi(params["rate"])
	if err != nil {
		return 0
	}
	return r
}

// ListVoices returns Gemini's prebuilt voices.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	out := make([]tts.VoiceProfile, 0, len(prebuiltVoices))
	for _, v := range prebuiltVoices {
		out = append(out, tts.VoiceProfile{
			ID:       v,
			Name:     v,
			Provider: "gemini",
			Metadata: map[string]string{"model": p.model},
		})
	}
	return out, nil
}
