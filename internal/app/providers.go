package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/missiongenesis/internal/config"
	"github.com/MrWong99/missiongenesis/internal/observe"
	"github.com/MrWong99/missiongenesis/internal/resilience"
	"github.com/MrWong99/missiongenesis/pkg/provider/llm"
	"github.com/MrWong99/missiongenesis/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/missiongenesis/pkg/provider/llm/openai"
	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
	"github.com/MrWong99/missiongenesis/pkg/provider/tts/coqui"
	"github.com/MrWong99/missiongenesis/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/missiongenesis/pkg/provider/tts/gemini"
	oaitts "github.com/MrWong99/missiongenesis/pkg/provider/tts/openai"
	"github.com/MrWong99/missiongenesis/pkg/provider/video"
	veo "github.com/MrWong99/missiongenesis/pkg/provider/video/gemini"
)

// defaultOpenAIModel is used by the native OpenAI client when no model is
// configured.
const defaultOpenAIModel = "gpt-4o-mini"

// Providers holds the backends the deck talks to. LLM and TTS are usually
// fallback groups built by [BuildProviders]. Video is nil when the
// simulation is disabled or its backend could not be created.
type Providers struct {
	LLM   llm.Provider
	TTS   tts.Provider
	Video video.Provider
}

// RegisterBuiltins wires every provider implementation that ships with the
// deck into reg. ctx is handed to constructors that dial eagerly.
func RegisterBuiltins(ctx context.Context, reg *config.Registry) {
	// The any-llm backends share one shape: optional key, optional base URL.
	for _, name := range []string{
		"gemini", "anthropic", "ollama", "deepseek",
		"mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			if name == "gemini" {
				return anyllm.NewGemini(entry.Model, opts...)
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		model := entry.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oaillm.WithTimeout(d))
		}
		return oaillm.New(entry.APIKey, model, opts...)
	})

	reg.RegisterTTS("gemini", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []gemini.Option
		if entry.Model != "" {
			opts = append(opts, gemini.WithModel(entry.Model))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, gemini.WithDefaultVoice(voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(entry.BaseURL))
		}
		return gemini.New(ctx, entry.APIKey, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, oaitts.WithModel(entry.Model))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, oaitts.WithDefaultVoice(voice))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oaitts.WithTimeout(d))
		}
		return oaitts.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, coqui.WithTimeout(d))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterVideo("gemini", func(entry config.ProviderEntry) (video.Provider, error) {
		var opts []veo.Option
		if entry.Model != "" {
			opts = append(opts, veo.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, veo.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "poll_interval"); d > 0 {
			opts = append(opts, veo.WithPollInterval(d))
		}
		return veo.New(ctx, entry.APIKey, opts...)
	})

	slog.Debug("registered providers",
		"llm", reg.LLMNames(), "tts", reg.TTSNames(), "video", reg.VideoNames())
}

// BuildProviders instantiates the configured primaries and their fallbacks.
// A primary that cannot be built is fatal; a fallback or video backend that
// cannot be built is logged and skipped.
func BuildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*Providers, error) {
	pc := cfg.Providers

	primaryLLM, err := reg.CreateLLM(pc.LLM)
	if err != nil {
		return nil, fmt.Errorf("app: create llm provider %q: %w", pc.LLM.Name, err)
	}
	llmGroup := resilience.NewLLMFallback(primaryLLM, pc.LLM.Name, resilience.FallbackConfig{Metrics: metrics})
	for i, entry := range pc.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			slog.Warn("skipping llm fallback", "index", i, "name", entry.Name, "err", err)
			continue
		}
		llmGroup.AddFallback(entry.Name, p)
	}

	primaryTTS, err := reg.CreateTTS(pc.TTS)
	if err != nil {
		return nil, fmt.Errorf("app: create tts provider %q: %w", pc.TTS.Name, err)
	}
	ttsGroup := resilience.NewTTSFallback(primaryTTS, pc.TTS.Name, resilience.FallbackConfig{Metrics: metrics})
	for i, entry := range pc.TTSFallbacks {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			slog.Warn("skipping tts fallback", "index", i, "name", entry.Name, "err", err)
			continue
		}
		ttsGroup.AddFallback(entry.Name, p)
	}

	ps := &Providers{LLM: llmGroup, TTS: ttsGroup, Video: buildVideo(cfg, reg)}

	slog.Info("providers created",
		"llm", pc.LLM.Name, "llm_fallbacks", len(pc.LLMFallbacks),
		"tts", pc.TTS.Name, "tts_fallbacks", len(pc.TTSFallbacks),
		"video", ps.Video != nil,
	)
	return ps, nil
}

// buildVideo creates the simulation backend. The vision poll interval is
// passed down as the "poll_interval" option unless the entry sets its own.
func buildVideo(cfg *config.Config, reg *config.Registry) video.Provider {
	entry := cfg.Providers.Video
	if entry.Name == "" || entry.Name == config.VideoDisabled {
		return nil
	}
	if d := cfg.Vision.PollInterval; d > 0 && optString(entry.Options, "poll_interval") == "" {
		entry.Options = maps.Clone(entry.Options)
		if entry.Options == nil {
			entry.Options = make(map[string]any, 1)
		}
		entry.Options["poll_interval"] = d.String()
	}
	p, err := reg.CreateVideo(entry)
	if err != nil {
		slog.Warn("video simulation offline", "name", entry.Name, "err", err)
		return nil
	}
	return p
}

// stateReporter is implemented by the resilience fallback groups.
type stateReporter interface {
	States() []resilience.EntryState
}

// errAllOpen is reported by readiness checks when every breaker of a
// provider group is open.
var errAllOpen = errors.New("all providers unavailable")

// breakerCheck fails while every provider behind p has an open breaker.
// Providers that do not report state are always considered ready.
func breakerCheck(p any) func(context.Context) error {
	sr, ok := p.(stateReporter)
	return func(context.Context) error {
		if !ok {
			return nil
		}
		states := sr.States()
		for _, s := range states {
			if s.State != resilience.StateOpen {
				return nil
			}
		}
		if len(states) == 0 {
			return nil
		}
		return fmt.Errorf("%w (%d open)", errAllOpen, len(states))
	}
}

// optString extracts a string value from a provider options map.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, _ := opts[key].(string)
	return v
}

// optDuration reads a duration option written as a Go duration string
// ("10s"). Malformed values are ignored.
func optDuration(opts map[string]any, key string) time.Duration {
	s := optString(opts, key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("ignoring malformed duration option", "key", key, "value", s)
		return 0
	}
	return d
}
