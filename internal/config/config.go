// Package config provides the configuration schema, loader, provider registry
// and file watcher for the Mission Genesis deck.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to its slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader]; every section is optional.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Assistant AssistantConfig `yaml:"assistant"`
	Narration NarrationConfig `yaml:"narration"`
	Audio     AudioConfig     `yaml:"audio"`
	Deck      DeckConfig      `yaml:"deck"`
	Vision    VisionConfig    `yaml:"vision"`
}

// ServerConfig holds logging and the optional operator HTTP endpoint.
type ServerConfig struct {
	// ListenAddr enables /healthz, /readyz and /metrics when non-empty
	// (e.g. "127.0.0.1:9090").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile receives the structured log while the terminal UI owns the
	// screen. Default: missiongenesis.log.
	LogFile string `yaml:"log_file"`
}

// ProvidersConfig selects the text, speech and video backends. The fallback
// lists are tried in order when the primary fails.
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	TTS ProviderEntry `yaml:"tts"`

	// Video renders the simulation slide. A name of "none" disables it.
	Video ProviderEntry `yaml:"video"`

	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all providers.
// Name selects the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "gemini", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider. When empty it is read from
	// the provider's conventional environment variable (see [APIKeyEnv]).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// AssistantConfig configures the advisor persona and its model calls.
type AssistantConfig struct {
	// Persona is the system instruction. Empty selects the built-in Dawn
	// persona.
	Persona string `yaml:"persona"`

	// Greeting is narrated when the chat panel first opens.
	Greeting string `yaml:"greeting"`

	// FallbackError replaces the reply when the model call fails.
	FallbackError string `yaml:"fallback_error"`

	// FallbackEmpty replaces the reply when the model answers with nothing.
	FallbackEmpty string `yaml:"fallback_empty"`

	// Temperature is the sampling temperature in [0, 2]. Default: 0.7.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps reply length; 0 leaves it to the provider.
	MaxTokens int `yaml:"max_tokens"`

	// HistoryTokens resends earlier turns up to this token budget; 0 sends
	// each question on its own.
	HistoryTokens int `yaml:"history_tokens"`

	// Timeout bounds one model call. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	// Voice is the narration voice.
	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig specifies the TTS voice.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier (e.g. "Kore").
	VoiceID string `yaml:"voice_id"`

	// SpeedFactor adjusts speaking rate in [0.5, 2.0]. 0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// NarrationConfig controls text preparation and the PCM format.
type NarrationConfig struct {
	// MaxChars is the rune limit for one narration. Default: 1000.
	MaxChars int `yaml:"max_chars"`

	// SampleRate of the requested PCM. Default: 24000.
	SampleRate int `yaml:"sample_rate"`

	// Channels of the requested PCM, 1 or 2. Default: 1.
	Channels int `yaml:"channels"`

	// Phonetics maps written terms to the spelling the voice should read.
	// Nil selects the built-in map (S.C.A.A.M → Scam).
	Phonetics map[string]string `yaml:"phonetics"`

	// Timeout bounds one synthesis round trip. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`
}

// AudioConfig is the initial output state.
type AudioConfig struct {
	Muted bool `yaml:"muted"`

	// Volume is the linear gain in [0, 1]. Nil means full volume.
	Volume *float64 `yaml:"volume"`

	// TickInterval is the playback progress refresh period. Default: 50ms.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// Level returns the configured volume or 1.
func (a AudioConfig) Level() float64 {
	if a.Volume == nil {
		return 1
	}
	return *a.Volume
}

// DeckConfig controls the presentation.
type DeckConfig struct {
	// StartSlide is the zero-based slide shown at launch.
	StartSlide int `yaml:"start_slide"`
}

// VisionConfig controls the video simulation.
type VisionConfig struct {
	// Prompt describes the clip. Empty selects the built-in classroom scene.
	Prompt string `yaml:"prompt"`

	// OutputPath receives the rendered clip. Default: mission-genesis-vision.mp4.
	OutputPath string `yaml:"output_path"`

	// AspectRatio is "16:9" or "9:16". Default: 16:9.
	AspectRatio string `yaml:"aspect_ratio"`

	// Resolution is "720p" or "1080p". Default: 720p.
	Resolution string `yaml:"resolution"`

	// PollInterval is the wait between job status checks. Default: 5s.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds one run. Default: 10m.
	Timeout time.Duration `yaml:"timeout"`
}
