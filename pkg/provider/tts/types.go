package tts

import "encoding/base64"

const (
	// DefaultSampleRate is the rate narration requests PCM at.
	DefaultSampleRate = 24000

	// DefaultChannels is the channel count narration requests PCM at.
	DefaultChannels = 1
)

// VoiceProfile describes a TTS voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default). Providers
	// that cannot change the rate ignore it.
	SpeedFactor float64

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}

// Request is a single synthesis call.
type Request struct {
	// Text is the utterance, already sanitised and length-limited by the caller.
	Text string

	// Voice selects the voice. A zero value means the provider default.
	Voice VoiceProfile

	// SampleRate and Channels are the preferred PCM layout. Providers that
	// can choose their output rate honour it; others return their native
	// layout and say so in [Speech]. Zero means [DefaultSampleRate] and
	// [DefaultChannels].
	SampleRate int
	Channels   int
}

// WithDefaults returns r with zero SampleRate and Channels filled in.
func (r Request) WithDefaults() Request {
	if r.SampleRate <= 0 {
		r.SampleRate = DefaultSampleRate
	}
	if r.Channels <= 0 {
		r.Channels = DefaultChannels
	}
	return r
}

// Speech is the result of a synthesis call.
type Speech struct {
	// Audio is base64-encoded (standard encoding) signed 16-bit little-endian PCM.
	Audio string

	SampleRate int
	Channels   int
}

// NewSpeech encodes raw PCM16 at the given layout. It returns nil when pcm
// holds no complete sample; a dangling odd byte is dropped.
func NewSpeech(pcm []byte, sampleRate, channels int) *Speech {
	pcm = pcm[:len(pcm)&^1]
	if len(pcm) == 0 {
		return nil
	}
	return &Speech{
		Audio:      base64.StdEncoding.EncodeToString(pcm),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Empty reports whether s carries no audio.
func (s *Speech) Empty() bool {
	return s == nil || s.Audio == ""
}
