// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled speech payloads to the narrator and to
// verify which text (after sanitisation) reached the TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeResult: &tts.Speech{Audio: b64, SampleRate: 24000, Channels: 1},
//	}
//	speech, _ := p.Synthesize(ctx, tts.Request{Text: "hello"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Req is the Request passed to Synthesize.
	Req tts.Request
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SynthesizeResult is returned by Synthesize. May be nil (no audio).
	SynthesizeResult *tts.Speech

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// SynthesizeFunc, if set, overrides SynthesizeResult and SynthesizeErr.
	// It is called without the mock's lock held, so it may block.
	SynthesizeFunc func(ctx context.Context, req tts.Request) (*tts.Speech, error)

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// --- Call records (read after test) ---

	synthesizeCalls []SynthesizeCall

	// CallCountListVoices is the number of times ListVoices was called.
	CallCountListVoices int
}

// Synthesize records the call and returns the configured result.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Speech, error) {
	p.mu.Lock()
	p.synthesizeCalls = append(p.synthesizeCalls, SynthesizeCall{Ctx: ctx, Req: req})
	fn := p.SynthesizeFunc
	result, err := p.SynthesizeResult, p.SynthesizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return result, err
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountListVoices++
	return p.ListVoicesResult, p.ListVoicesErr
}

// SynthesizeCalls returns a copy of all recorded Synthesize calls.
func (p *Provider) SynthesizeCalls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.synthesizeCalls))
	copy(out, p.synthesizeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthesizeCalls = nil
	p.CallCountListVoices = 0
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
