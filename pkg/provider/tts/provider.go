// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Gemini, OpenAI,
// ElevenLabs, or a local Coqui server) and presents a single request/response
// call: one utterance of text in, one payload of base64-encoded PCM16 out.
// Narration never streams partial audio; a reply is short enough to be
// synthesised in one round trip and played as one buffer.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. A superseded narration may
// still be in flight while a newer one starts, so requests can overlap.
type Provider interface {
	// Synthesize converts req.Text to speech.
	//
	// On success the returned Speech holds base64-encoded signed 16-bit
	// little-endian PCM at Speech.SampleRate / Speech.Channels.
	// req.SampleRate and req.Channels are a preference: a backend that cannot
	// emit them reports the layout it actually produced.
	//
	// A nil Speech (or one with empty Audio) and a nil error means the backend
	// produced no audio; callers treat this as silence, not as a failure.
	//
	// Returns an error if the request fails or ctx is cancelled first.
	Synthesize(ctx context.Context, req Request) (*Speech, error)

	// ListVoices returns all voice profiles available from this provider.
	//
	// Returns an error if the provider cannot be reached or if ctx is
	// cancelled before the list is retrieved.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
