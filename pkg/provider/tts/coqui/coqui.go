// Package coqui narrates through a self-hosted Coqui TTS server, for decks
// presented offline or without a cloud key.
//
// Two server flavours are supported. [APIModeStandard] is the stock
// tts-server (GET /api/tts, voices from GET /details). [APIModeXTTS] is the
// XTTS v2 API server (POST /tts_to_audio/, voices from GET /studio_speakers)
// and always needs a speaker. Both answer with WAV; the provider returns its
// PCM at the file's own rate.
//
//	p, err := coqui.New("http://localhost:5002", coqui.WithLanguage("en"))
package coqui

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// APIMode selects the server flavour.
type APIMode string

const (
	APIModeStandard APIMode = "standard"
	APIModeXTTS     APIMode = "xtts"
)

// Server paths.
const (
	pathStandardTTS = "/api/tts"
	pathDetails     = "/details"
	pathXTTS        = "/tts_to_audio/"
	pathSpeakers    = "/studio_speakers"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
)

// Provider is a [tts.Provider] for one Coqui server. Safe for concurrent use.
type Provider struct {
	base   string
	lang   string
	mode   APIMode
	client *http.Client
}

// Option configures a [Provider].
type Option func(*Provider)

// WithLanguage sets the language sent with each request. Defaults to "en".
func WithLanguage(lang string) Option { return func(p *Provider) { p.lang = lang } }

// WithAPIMode selects the server flavour. Defaults to [APIModeStandard].
func WithAPIMode(m APIMode) Option { return func(p *Provider) { p.mode = m } }

// WithTimeout bounds each HTTP request. Defaults to 30s.
func WithTimeout(d time.Duration) Option { return func(p *Provider) { p.client.Timeout = d } }

// WithHTTPClient replaces the HTTP client, including its timeout.
func WithHTTPClient(c *http.Client) Option { return func(p *Provider) { p.client = c } }

// New returns a provider for the server at baseURL, e.g.
// "http://localhost:5002".
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("coqui: base URL must not be empty")
	}
	p := &Provider{
		base:   strings.TrimRight(baseURL, "/"),
		lang:   defaultLanguage,
		mode:   APIModeStandard,
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	switch p.mode {
	case APIModeStandard, APIModeXTTS:
	default:
		return nil, fmt.Errorf("coqui: unknown api mode %q", p.mode)
	}
	return p, nil
}

// Synthesize implements [tts.Provider]. The requested sample rate is ignored;
// the speech carries the WAV's own layout.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Speech, error) {
	var (
		httpReq *http.Request
		err     error
	)
	if p.mode == APIModeXTTS {
		httpReq, err = p.xttsRequest(ctx, req)
	} else {
		httpReq, err = p.standardRequest(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "audio/wav")

	body, err := p.fetch(httpReq)
	if err != nil {
		return nil, err
	}
	wav, err := decodeWAV(body)
	if err != nil {
		return nil, err
	}
	return tts.NewSpeech(wav.PCM, wav.SampleRate, wav.Channels), nil
}

func (p *Provider) standardRequest(ctx context.Context, req tts.Request) (*http.Request, error) {
	q := url.Values{"text": {req.Text}}
	if req.Voice.ID != "" {
		q.Set("speaker_id", req.Voice.ID)
	}
	if p.lang != "" {
		q.Set("language_id", p.lang)
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+pathStandardTTS+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	return r, nil
}

// xttsBody is the POST /tts_to_audio/ payload.
type xttsBody struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

func (p *Provider) xttsRequest(ctx context.Context, req tts.Request) (*http.Request, error) {
	if req.Voice.ID == "" {
		return nil, errors.New("coqui: xtts mode needs a voice id")
	}
	data, err := json.Marshal(xttsBody{Text: req.Text, SpeakerWav: req.Voice.ID, Language: p.lang})
	if err != nil {
		return nil, fmt.Errorf("coqui: encode request: %w", err)
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+pathXTTS, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	r.Header.Set("Content-Type", "application/json")
	return r, nil
}

// fetch performs r and returns the body of a 200 response.
func (p *Provider) fetch(r *http.Request) ([]byte, error) {
	resp, err := p.client.Do(r)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", r.Method, r.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s: status %d", r.Method, r.URL.Path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read %s: %w", r.URL.Path, err)
	}
	return body, nil
}

func (p *Provider) getJSON(ctx context.Context, path string, v any) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+path, nil)
	if err != nil {
		return fmt.Errorf("coqui: build request: %w", err)
	}
	r.Header.Set("Accept", "application/json")
	body, err := p.fetch(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("coqui: decode %s: %w", path, err)
	}
	return nil
}

// serverDetails is the GET /details payload. Speakers is empty for
// single-speaker models.
type serverDetails struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// ListVoices implements [tts.Provider]. Voices are sorted by id. A
// single-speaker standard server yields one voice named after its model.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	if p.mode == APIModeXTTS {
		var speakers map[string]json.RawMessage
		if err := p.getJSON(ctx, pathSpeakers, &speakers); err != nil {
			return nil, err
		}
		return voices(slices.Sorted(maps.Keys(speakers)), map[string]string{"type": "studio"}), nil
	}

	var d serverDetails
	if err := p.getJSON(ctx, pathDetails, &d); err != nil {
		return nil, err
	}
	if len(d.Speakers) > 0 {
		return voices(slices.Sorted(slices.Values(d.Speakers)),
			map[string]string{"type": "speaker", "model_name": d.ModelName}), nil
	}
	name := cmp.Or(d.ModelName, "default")
	return voices([]string{name}, map[string]string{"type": "single-speaker", "model_name": name}), nil
}

func voices(ids []string, meta map[string]string) []tts.VoiceProfile {
	out := make([]tts.VoiceProfile, 0, len(ids))
	for _, id := range ids {
		out = append(out, tts.VoiceProfile{ID: id, Name: id, Provider: "coqui", Metadata: maps.Clone(meta)})
	}
	return out
}
