// Package player implements the playback controller behind narration.
//
// A [Controller] owns a single audio output that is opened lazily on the first
// [Controller.Play] and kept for the lifetime of the process. All sessions
// share one gain setting; changing it with [Controller.SetVolume] is audible
// on the session that is playing right now.
//
// Playback is never queued. Every Play stops and disconnects the previous
// source before connecting the new one, so at most one source is connected to
// the output at any instant. Progress is derived from wall-clock time since
// the session started and reported on a ticker until the source drains.
package player

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/MrWong99/missiongenesis/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Player = (*Controller)(nil)

const (
	// DefaultTickInterval is how often progress is recomputed while playing.
	DefaultTickInterval = 50 * time.Millisecond

	// defaultDrainGrace bounds how long a session may stay active after its
	// wall-clock duration elapsed without the device reporting the drain.
	defaultDrainGrace = 500 * time.Millisecond

	// resampleQuality is passed to beep.Resample when a buffer's rate differs
	// from the rate the output was opened with.
	resampleQuality = 4
)

// Option configures a [Controller] during construction.
type Option func(*Controller)

// WithTickInterval sets the progress reporting interval.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithDrainGrace sets how long a session may outlive its nominal duration
// while waiting for the device to drain it.
func WithDrainGrace(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.grace = d
		}
	}
}

// WithClock replaces time.Now for progress computation.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithVolume sets the initial gain state.
func WithVolume(v audio.Volume) Option {
	return func(c *Controller) { c.volume = v.Clamped() }
}

// OnProgress registers fn to receive progress updates in percent [0, 100].
// A final update of 0 with an empty id is sent when a session ends.
func OnProgress(fn func(id audio.PlaybackID, percent float64)) Option {
	return func(c *Controller) { c.onProgress = fn }
}

// OnStateChange registers fn to be called whenever the active id changes.
// An empty id means playback went idle.
func OnStateChange(fn func(id audio.PlaybackID)) Option {
	return func(c *Controller) { c.onState = fn }
}

// Controller is the concrete [audio.Player].
//
// All exported methods are safe for concurrent use. Callbacks are delivered
// one at a time and always describe the state the Controller is in when they
// run, so the last id reported matches [Controller.Active]. They may query the
// Controller but must not call Play, Stop or Close.
type Controller struct {
	out   Output
	tick  time.Duration
	grace time.Duration
	now   func() time.Time

	onProgress func(audio.PlaybackID, float64)
	onState    func(audio.PlaybackID)

	mu       sync.Mutex
	rate     beep.SampleRate // 0 until the output is open
	volume   audio.Volume
	active   *session
	progress float64
	closed   bool

	// notifyMu serialises callbacks. idle is true once idle was announced.
	notifyMu sync.Mutex
	idle     bool

	warnUnavailable sync.Once
}

// New returns a Controller that plays through out. The output is not opened
// until the first call to [Controller.Play].
func New(out Output, opts ...Option) *Controller {
	c := &Controller{
		out:    out,
		tick:   DefaultTickInterval,
		grace:  defaultDrainGrace,
		now:    time.Now,
		volume: audio.Volume{Level: 1},
		idle:   true,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// session is one connected source. finished is closed by the device callback
// when the source drains; stopped is closed when the session is superseded,
// stopped, or finalised.
type session struct {
	id       audio.PlaybackID
	start    time.Time
	duration time.Duration
	ctrl     *beep.Ctrl
	gain     *effects.Volume

	finished   chan struct{}
	stopped    chan struct{}
	finishOnce sync.Once
	stopOnce   sync.Once
}

func (s *session) markFinished() { s.finishOnce.Do(func() { close(s.finished) }) }
func (s *session) markStopped()  { s.stopOnce.Do(func() { close(s.stopped) }) }

// progressAt returns min(elapsed/duration, 1) * 100.
func (s *session) progressAt(now time.Time) float64 {
	if s.duration <= 0 {
		return 100
	}
	p := float64(now.Sub(s.start)) / float64(s.duration)
	return min(max(p, 0), 1) * 100
}

// Play implements [audio.Player]. It opens the output on first use; when that
// fails it returns an error matching [ErrAudioUnavailable] and the next call
// tries again. An empty buffer only stops the current session.
func (c *Controller) Play(buf *audio.Buffer, id audio.PlaybackID) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if buf.Frames() == 0 {
		prev := c.stopLocked()
		c.mu.Unlock()
		if prev != nil {
			c.notifyIdle()
		}
		return nil
	}
	if err := c.ensureOutputLocked(buf.SampleRate); err != nil {
		c.mu.Unlock()
		return err
	}

	c.stopLocked()

	var src beep.Streamer = newBufferStreamer(buf)
	if sr := beep.SampleRate(buf.SampleRate); sr != c.rate {
		src = beep.Resample(resampleQuality, sr, c.rate, src)
	}
	s := &session{
		id:       id,
		start:    c.now(),
		duration: buf.Duration(),
		gain:     &effects.Volume{Streamer: src, Base: gainBase},
		finished: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	applyVolume(s.gain, c.volume)
	s.ctrl = &beep.Ctrl{Streamer: beep.Seq(s.gain, beep.Callback(s.markFinished))}

	c.active = s
	c.progress = 0
	c.out.Play(s.ctrl)
	c.mu.Unlock()

	c.notifyStarted(s)
	go c.track(s)
	return nil
}

// Stop implements [audio.Player].
func (c *Controller) Stop() {
	c.mu.Lock()
	prev := c.stopLocked()
	c.mu.Unlock()
	if prev != nil {
		c.notifyIdle()
	}
}

// Active implements [audio.Player].
func (c *Controller) Active() audio.PlaybackID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.id
}

// Progress returns the progress of the active session in percent, or 0 when
// idle.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// SetVolume implements [audio.Player].
func (c *Controller) SetVolume(muted bool, level float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = audio.Volume{Muted: muted, Level: level}.Clamped()
	if c.active == nil {
		return
	}
	c.out.Lock()
	applyVolume(c.active.gain, c.volume)
	c.out.Unlock()
}

// Volume implements [audio.Player].
func (c *Controller) Volume() audio.Volume {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// Close stops playback and releases the output. It is safe to call more than
// once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	prev := c.stopLocked()
	opened := c.rate != 0
	c.mu.Unlock()

	if prev != nil {
		c.notifyIdle()
	}
	if opened {
		c.out.Close()
	}
	return nil
}

// ensureOutputLocked opens the output at rate if it is not open yet.
// The caller must hold c.mu.
func (c *Controller) ensureOutputLocked(rate int) error {
	if c.rate != 0 {
		return nil
	}
	if err := c.out.Init(beep.SampleRate(rate)); err != nil {
		c.warnUnavailable.Do(func() {
			slog.Warn("audio output unavailable, narration will be silent", "sampleRate", rate, "err", err)
		})
		return &AudioUnavailableError{SampleRate: rate, Err: err}
	}
	c.rate = beep.SampleRate(rate)
	slog.Debug("audio output opened", "sampleRate", rate)
	return nil
}

// stopLocked disconnects the active source and returns it, or nil when idle.
// Disconnecting a source the device already dropped is harmless.
// The caller must hold c.mu.
func (c *Controller) stopLocked() *session {
	s := c.active
	if s == nil {
		return nil
	}
	c.active = nil
	c.progress = 0

	c.out.Lock()
	s.ctrl.Streamer = nil
	c.out.Unlock()

	s.markStopped()
	return s
}

// track reports progress for s until it drains, is stopped, or overstays its
// duration by the drain grace.
func (c *Controller) track(s *session) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	var overdue <-chan time.Time
	for {
		select {
		case <-s.stopped:
			return
		case <-s.finished:
			c.finish(s)
			return
		case <-overdue:
			c.finish(s)
			return
		case <-ticker.C:
			pct := s.progressAt(c.now())
			if !c.notifyProgress(s, pct) {
				return
			}
			if pct >= 100 && overdue == nil {
				t := time.NewTimer(c.grace)
				defer t.Stop()
				overdue = t.C
			}
		}
	}
}

// finish ends s if it is still the active session.
func (c *Controller) finish(s *session) {
	c.mu.Lock()
	if c.active != s {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.mu.Unlock()
	c.notifyIdle()
}

// isActive reports whether s is the connected session.
func (c *Controller) isActive(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active == s
}

// notifyStarted announces s unless it was already superseded or stopped, in
// which case whoever replaced it announces the newer state.
func (c *Controller) notifyStarted(s *session) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if !c.isActive(s) {
		return
	}
	c.idle = false
	if c.onState != nil {
		c.onState(s.id)
	}
}

// notifyProgress records and reports pct for s. It returns false once s is no
// longer active.
func (c *Controller) notifyProgress(s *session, pct float64) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.mu.Lock()
	if c.active != s {
		c.mu.Unlock()
		return false
	}
	c.progress = pct
	c.mu.Unlock()

	if c.onProgress != nil {
		c.onProgress(s.id, pct)
	}
	return true
}

// notifyIdle announces the idle transition if the Controller is still idle
// and the transition was not announced already.
func (c *Controller) notifyIdle() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if c.idle || !c.isActive(nil) {
		return
	}
	c.idle = true
	if c.onProgress != nil {
		c.onProgress("", 0)
	}
	if c.onState != nil {
		c.onState("")
	}
}
