// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs streaming WebSocket API. It implements the tts.Provider interface.
//
// Each Synthesize call opens one socket, sends the whole utterance, flushes,
// and collects the streamed PCM chunks until ElevenLabs marks the stream final.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
)

const (
	defaultWSBase   = "wss://api.elevenlabs.io"
	defaultHTTPBase = "https://api.elevenlabs.io"
	defaultModel    = "eleven_flash_v2_5"

	// defaultVoiceID is ElevenLabs' premade "Rachel" voice.
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

// supportedRates are the PCM output rates ElevenLabs can stream natively.
var supportedRates = []int{16000, 22050, 24000, 44100}

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithDefaultVoice sets the voice used when a request carries no voice ID.
func WithDefaultVoice(id string) Option {
	return func(p *Provider) {
		p.defaultVoice = id
	}
}

// WithBaseURLs overrides the WebSocket and REST endpoints. Intended for tests
// and self-hosted proxies.
func WithBaseURLs(wsBase, httpBase string) Option {
	return func(p *Provider) {
		p.wsBase = strings.TrimRight(wsBase, "/")
		p.httpBase = strings.TrimRight(httpBase, "/")
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	defaultVoice string
	wsBase       string
	httpBase     string
	httpClient   *http.Client
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		defaultVoice: defaultVoiceID,
		wsBase:       defaultWSBase,
		httpBase:     defaultHTTPBase,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
// An empty Text is the end-of-stream marker.
type textMessage struct {
	Text                 string         `json:"text"`
	VoiceSettings        *voiceSettings `json:"voice_settings,omitempty"`
	TryTriggerGeneration bool           `json:"try_trigger_generation,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// boiMessage is the "beginning of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// audioResponse is one JSON message received over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Synthesize streams req.Text through ElevenLabs and returns the collected PCM.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Speech, error) {
	req = req.WithDefaults()
	voiceID := req.Voice.ID
	if voiceID == "" {
		voiceID = p.defaultVoice
	}
	rate := nativeRate(req.SampleRate)

	conn, _, err := websocket.Dial(ctx, p.streamURL(voiceID, rate), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(4 << 20)

	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if req.Voice.SpeedFactor > 0 {
		vs.Speed = req.Voice.SpeedFactor
	}
	msgs := []any{
		// ElevenLabs requires a single space as the first text value.
		boiMessage{Text: " ", VoiceSettings: vs, XiAPIKey: p.apiKey},
		textMessage{Text: req.Text + " ", TryTriggerGeneration: true},
		textMessage{Text: ""},
	}
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: marshal message: %w", err)
		}
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			return nil, fmt.Errorf("elevenlabs: write: %w", err)
		}
	}

	pcm, err := collectAudio(ctx, conn)
	if err != nil {
		return nil, err
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	return tts.NewSpeech(pcm, rate, 1), nil
}

// collectAudio reads messages until the final marker or a normal close and
// returns the concatenated PCM.
func collectAudio(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var pcm []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return pcm, nil
			}
			return nil, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("elevenlabs: server error: %s: %s", resp.Error, resp.Message)
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio chunk: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if resp.IsFinal {
			return pcm, nil
		}
	}
}

// nativeRate picks the rate to request from ElevenLabs: the wanted rate if it
// is supported, otherwise 24 kHz, converted locally afterwards.
func nativeRate(want int) int {
	if slices.Contains(supportedRates, want) {
		return want
	}
	return tts.DefaultSampleRate
}

// streamURL constructs the WebSocket URL for a voice, model and PCM rate.
func (p *Provider) streamURL(voiceID string, rate int) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", fmt.Sprintf("pcm_%d", rate))
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", p.wsBase, url.PathEscape(voiceID), q.Encode())
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available from ElevenLabs for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.httpBase+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return toProfiles(vr), nil
}

func toProfiles(vr voicesResponse) []tts.VoiceProfile {
	profiles := make([]tts.VoiceProfile, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		profiles = append(profiles, tts.VoiceProfile{
			ID:       v.VoiceID,
			Name:     v.Name,
			Provider: "elevenlabs",
			Metadata: meta,
		})
	}
	return profiles
}
