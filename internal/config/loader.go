package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultLogFile      = "missiongenesis.log"
	DefaultLLMProvider  = "gemini"
	DefaultLLMModel     = "gemini-3-flash-preview"
	DefaultTTSProvider  = "gemini"
	DefaultTemperature  = 0.7
	DefaultMaxChars     = 1000
	DefaultSampleRate   = 24000
	DefaultChannels     = 1
	DefaultTimeout      = 30 * time.Second
	DefaultTickInterval = 50 * time.Millisecond

	DefaultVideoProvider      = "gemini"
	DefaultVisionOutputPath   = "mission-genesis-vision.mp4"
	DefaultVisionAspectRatio  = "16:9"
	DefaultVisionResolution   = "720p"
	DefaultVisionPollInterval = 5 * time.Second
	DefaultVisionTimeout      = 10 * time.Minute

	// VideoDisabled as providers.video.name turns the simulation off.
	VideoDisabled = "none"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":   {"gemini", "openai", "elevenlabs", "coqui"},
	"video": {"gemini", VideoDisabled},
}

// APIKeyEnv maps provider names to the environment variables consulted when
// a provider entry has no api_key. The first variable that is set wins.
var APIKeyEnv = map[string][]string{
	"gemini":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"deepseek":   {"DEEPSEEK_API_KEY"},
	"mistral":    {"MISTRAL_API_KEY"},
	"groq":       {"GROQ_API_KEY"},
	"elevenlabs": {"ELEVENLABS_API_KEY"},
}

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// Load reads the YAML configuration file at path and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults and API keys
// from the environment, and validates the result. An empty document yields
// the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	return cfg
}

// ApplyDefaults fills zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFile == "" {
		cfg.Server.LogFile = DefaultLogFile
	}
	if cfg.Providers.LLM.Name == "" {
		cfg.Providers.LLM.Name = DefaultLLMProvider
	}
	if cfg.Providers.LLM.Name == DefaultLLMProvider && cfg.Providers.LLM.Model == "" {
		cfg.Providers.LLM.Model = DefaultLLMModel
	}
	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS.Name = DefaultTTSProvider
	}
	if cfg.Assistant.Temperature == 0 {
		cfg.Assistant.Temperature = DefaultTemperature
	}
	if cfg.Assistant.Timeout == 0 {
		cfg.Assistant.Timeout = DefaultTimeout
	}
	if cfg.Narration.MaxChars == 0 {
		cfg.Narration.MaxChars = DefaultMaxChars
	}
	if cfg.Narration.SampleRate == 0 {
		cfg.Narration.SampleRate = DefaultSampleRate
	}
	if cfg.Narration.Channels == 0 {
		cfg.Narration.Channels = DefaultChannels
	}
	if cfg.Narration.Timeout == 0 {
		cfg.Narration.Timeout = DefaultTimeout
	}
	if cfg.Audio.TickInterval == 0 {
		cfg.Audio.TickInterval = DefaultTickInterval
	}

	if cfg.Providers.Video.Name == "" {
		cfg.Providers.Video.Name = DefaultVideoProvider
	}
	v := &cfg.Vision
	if v.OutputPath == "" {
		v.OutputPath = DefaultVisionOutputPath
	}
	if v.AspectRatio == "" {
		v.AspectRatio = DefaultVisionAspectRatio
	}
	if v.Resolution == "" {
		v.Resolution = DefaultVisionResolution
	}
	if v.PollInterval == 0 {
		v.PollInterval = DefaultVisionPollInterval
	}
	if v.Timeout == 0 {
		v.Timeout = DefaultVisionTimeout
	}
}

// ApplyEnv fills empty API keys of every provider entry from [APIKeyEnv].
func ApplyEnv(cfg *Config) {
	fill := func(e *ProviderEntry) {
		if e.APIKey != "" {
			return
		}
		for _, name := range APIKeyEnv[e.Name] {
			if v, ok := lookupEnv(name); ok && v != "" {
				e.APIKey = v
				return
			}
		}
	}
	fill(&cfg.Providers.LLM)
	fill(&cfg.Providers.TTS)
	fill(&cfg.Providers.Video)
	for i := range cfg.Providers.LLMFallbacks {
		fill(&cfg.Providers.LLMFallbacks[i])
	}
	for i := range cfg.Providers.TTSFallbacks {
		fill(&cfg.Providers.TTSFallbacks[i])
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	errs = append(errs, validateEntry("providers.llm", "llm", cfg.Providers.LLM)...)
	errs = append(errs, validateEntry("providers.tts", "tts", cfg.Providers.TTS)...)
	if cfg.Providers.Video.Name != VideoDisabled {
		errs = append(errs, validateEntry("providers.video", "video", cfg.Providers.Video)...)
	}
	for i, e := range cfg.Providers.LLMFallbacks {
		errs = append(errs, validateEntry(fmt.Sprintf("providers.llm_fallbacks[%d]", i), "llm", e)...)
	}
	for i, e := range cfg.Providers.TTSFallbacks {
		errs = append(errs, validateEntry(fmt.Sprintf("providers.tts_fallbacks[%d]", i), "tts", e)...)
	}

	a := cfg.Assistant
	if a.Temperature < 0 || a.Temperature > 2 {
		errs = append(errs, fmt.Errorf("assistant.temperature %.2f is out of range [0, 2]", a.Temperature))
	}
	if a.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("assistant.max_tokens %d must not be negative", a.MaxTokens))
	}
	if a.HistoryTokens < 0 {
		errs = append(errs, fmt.Errorf("assistant.history_tokens %d must not be negative", a.HistoryTokens))
	}
	if a.Timeout < 0 {
		errs = append(errs, fmt.Errorf("assistant.timeout %s must not be negative", a.Timeout))
	}
	if s := a.Voice.SpeedFactor; s != 0 && (s < 0.5 || s > 2.0) {
		errs = append(errs, fmt.Errorf("assistant.voice.speed_factor %.2f is out of range [0.5, 2.0]", s))
	}

	n := cfg.Narration
	if n.MaxChars < 0 {
		errs = append(errs, fmt.Errorf("narration.max_chars %d must not be negative", n.MaxChars))
	}
	if n.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("narration.sample_rate %d must not be negative", n.SampleRate))
	}
	if n.Channels < 0 || n.Channels > 2 {
		errs = append(errs, fmt.Errorf("narration.channels %d is invalid; valid values: 1, 2", n.Channels))
	}
	for term := range n.Phonetics {
		if term == "" {
			errs = append(errs, errors.New("narration.phonetics has an empty term"))
		}
	}

	if v := cfg.Audio.Volume; v != nil && (*v < 0 || *v > 1) {
		errs = append(errs, fmt.Errorf("audio.volume %.2f is out of range [0, 1]", *v))
	}
	if cfg.Audio.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("audio.tick_interval %s must not be negative", cfg.Audio.TickInterval))
	}

	v := cfg.Vision
	if v.AspectRatio != "" && v.AspectRatio != "16:9" && v.AspectRatio != "9:16" {
		errs = append(errs, fmt.Errorf("vision.aspect_ratio %q is invalid; valid values: 16:9, 9:16", v.AspectRatio))
	}
	if v.Resolution != "" && v.Resolution != "720p" && v.Resolution != "1080p" {
		errs = append(errs, fmt.Errorf("vision.resolution %q is invalid; valid values: 720p, 1080p", v.Resolution))
	}
	if v.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("vision.poll_interval %s must not be negative", v.PollInterval))
	}
	if v.Timeout < 0 {
		errs = append(errs, fmt.Errorf("vision.timeout %s must not be negative", v.Timeout))
	}

	if cfg.Deck.StartSlide < 0 {
		errs = append(errs, fmt.Errorf("deck.start_slide %d must not be negative", cfg.Deck.StartSlide))
	}

	return errors.Join(errs...)
}

func validateEntry(path, kind string, e ProviderEntry) []error {
	if e.Name == "" {
		return []error{fmt.Errorf("%s.name is required", path)}
	}
	validateProviderName(kind, e.Name)
	if e.APIKey == "" && len(APIKeyEnv[e.Name]) > 0 {
		slog.Warn("provider has no API key; set api_key or the environment variable",
			"provider", path, "name", e.Name, "env", APIKeyEnv[e.Name])
	}
	return nil
}

// validateProviderName logs a warning if name is not in [ValidProviderNames].
func validateProviderName(kind, name string) {
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a provider registered at build time",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
