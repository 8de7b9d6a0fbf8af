// Package narration turns assistant text into speech on the shared player.
//
// A [Narrator] accepts fire-and-forget requests tagged with a playback id.
// Each request sanitises the text, synthesises it through a [tts.Provider],
// decodes the PCM payload and hands it to an [audio.Player]. Only the most
// recently requested id may reach the player: a newer request cancels the
// synthesis of the older one, and a result that arrives after it was
// superseded is discarded. Every failure degrades to silence.
package narration

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/missiongenesis/internal/observe"
	"github.com/MrWong99/missiongenesis/pkg/audio"
	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
)

// DefaultSynthesisTimeout bounds one synthesis round trip.
const DefaultSynthesisTimeout = 30 * time.Second

// Option configures a [Narrator].
type Option func(*Narrator)

// WithVoice sets the voice every request is synthesised with.
func WithVoice(v tts.VoiceProfile) Option {
	return func(n *Narrator) { n.voice = v }
}

// WithFormat sets the PCM format requested from the provider.
func WithFormat(sampleRate, channels int) Option {
	return func(n *Narrator) {
		if sampleRate > 0 {
			n.sampleRate = sampleRate
		}
		if channels > 0 {
			n.channels = channels
		}
	}
}

// WithSanitizer replaces the default [Sanitizer].
func WithSanitizer(s *Sanitizer) Option {
	return func(n *Narrator) {
		if s != nil {
			n.sanitizer = s
		}
	}
}

// WithTimeout sets the per-request synthesis timeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Narrator) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(n *Narrator) { n.metrics = m }
}

// Narrator serialises narration requests onto one player.
type Narrator struct {
	tts     tts.Provider
	player  audio.Player
	timeout time.Duration
	metrics *observe.Metrics

	sampleRate int
	channels   int

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	voice     tts.VoiceProfile
	sanitizer *Sanitizer
	gen       uint64
	pending   audio.PlaybackID
	cancel    context.CancelFunc
	closed    bool
}

// New creates a Narrator that synthesises with provider and plays on player.
func New(provider tts.Provider, player audio.Player, opts ...Option) *Narrator {
	n := &Narrator{
		tts:        provider,
		player:     player,
		sanitizer:  defaultSanitizer,
		timeout:    DefaultSynthesisTimeout,
		sampleRate: tts.DefaultSampleRate,
		channels:   tts.DefaultChannels,
	}
	for _, o := range opts {
		o(n)
	}
	if n.metrics == nil {
		n.metrics = observe.DefaultMetrics()
	}
	n.baseCtx, n.baseCancel = context.WithCancel(context.Background())
	return n
}

// Narrate speaks text under id without blocking. Blank text is ignored.
// The request supersedes any earlier one that has not started playing.
func (n *Narrator) Narrate(text string, id audio.PlaybackID) {
	if strings.TrimSpace(text) == "" {
		return
	}
	n.mu.Lock()
	sanitizer, voice := n.sanitizer, n.voice
	n.mu.Unlock()
	clean := sanitizer.Sanitize(text)
	if clean == "" {
		return
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	if n.cancel != nil {
		n.cancel()
	}
	n.gen++
	gen := n.gen
	n.pending = id
	ctx, cancel := context.WithTimeout(n.baseCtx, n.timeout)
	n.cancel = cancel
	n.wg.Add(1)
	n.mu.Unlock()

	go n.run(ctx, cancel, gen, id, clean, voice)
}

// SetVoice changes the voice of later requests.
func (n *Narrator) SetVoice(v tts.VoiceProfile) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.voice = v
}

// SetSanitizer replaces the text preparation of later requests. Nil is
// ignored.
func (n *Narrator) SetSanitizer(s *Sanitizer) {
	if s == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sanitizer = s
}

func (n *Narrator) run(ctx context.Context, cancel context.CancelFunc, gen uint64, id audio.PlaybackID, text string, voice tts.VoiceProfile) {
	defer n.wg.Done()
	defer n.settle(gen)
	defer cancel()

	ctx, span := observe.StartSpan(ctx, "narration.narrate")
	defer span.End()
	span.SetAttributes(
		attribute.String("playback_id", string(id)),
		attribute.Int("chars", len(text)),
	)
	log := observe.Logger(ctx).With("playback_id", id)

	req := tts.Request{
		Text:       text,
		Voice:      voice,
		SampleRate: n.sampleRate,
		Channels:   n.channels,
	}
	start := time.Now()
	speech, err := n.tts.Synthesize(ctx, req)
	n.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())

	if n.stale(gen) {
		log.Debug("narration: superseded before playback")
		n.metrics.RecordNarration(ctx, observe.NarrationDropped)
		return
	}
	if err != nil {
		log.Warn("narration: synthesis failed", "err", err)
		span.SetStatus(codes.Error, err.Error())
		n.metrics.RecordNarration(ctx, observe.NarrationFailed)
		n.stopIfDesired(gen)
		return
	}
	if speech.Empty() {
		n.metrics.RecordNarration(ctx, observe.NarrationEmpty)
		n.stopIfDesired(gen)
		return
	}

	rate, channels := speech.SampleRate, speech.Channels
	if rate <= 0 {
		rate = req.SampleRate
	}
	if channels <= 0 {
		channels = req.Channels
	}
	buf, err := audio.DecodeBase64PCM16(speech.Audio, rate, channels)
	if err != nil {
		log.Warn("narration: decode failed", "err", err)
		span.SetStatus(codes.Error, err.Error())
		n.metrics.RecordNarration(ctx, observe.NarrationFailed)
		n.stopIfDesired(gen)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		n.metrics.RecordNarration(ctx, observe.NarrationDropped)
		return
	}
	if err := n.player.Play(buf, id); err != nil {
		log.Warn("narration: playback failed", "err", err)
		span.SetStatus(codes.Error, err.Error())
		n.metrics.RecordNarration(ctx, observe.NarrationFailed)
		return
	}
	n.metrics.RecordNarration(ctx, observe.NarrationPlayed)
}

// settle clears the pending id once the latest request has resolved.
func (n *Narrator) settle(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if gen == n.gen {
		n.pending = ""
	}
}

func (n *Narrator) stale(gen uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return gen != n.gen
}

// stopIfDesired silences the player when gen is still the latest request.
func (n *Narrator) stopIfDesired(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if gen == n.gen {
		n.player.Stop()
	}
}

// Stop cancels pending synthesis and stops whatever is playing.
func (n *Narrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *Narrator) stopLocked() {
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.gen++
	n.pending = ""
	n.player.Stop()
}

// Speaking returns the id of the narration currently audible, or "".
func (n *Narrator) Speaking() audio.PlaybackID {
	return n.player.Active()
}

// Pending returns the id of the latest request while it is still being
// synthesised, or "".
func (n *Narrator) Pending() audio.PlaybackID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending
}

// Wait blocks until every spawned request has finished.
func (n *Narrator) Wait() {
	n.wg.Wait()
}

// Close stops playback, rejects further requests and waits for in-flight
// ones to return. It is safe to call more than once.
func (n *Narrator) Close() error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		n.stopLocked()
		n.baseCancel()
	}
	n.mu.Unlock()
	n.wg.Wait()
	return nil
}
