package resilience

import (
	"context"

	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with failover across several TTS
// backends.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	if cfg.Kind == "" {
		cfg.Kind = "tts"
	}
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// States reports each backend's breaker state, primary first.
func (f *TTSFallback) States() []EntryState { return f.group.States() }

// Synthesize asks the first healthy provider for speech. An empty result is a
// success and is not retried elsewhere.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.Request) (*tts.Speech, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) (*tts.Speech, error) {
		return p.Synthesize(ctx, req)
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
