// Package vision runs the deck's video simulation: one text-to-video job
// whose progress is shown on the simulation slide and whose clip is saved to
// disk for playback in an external viewer.
package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/missiongenesis/internal/observe"
	"github.com/MrWong99/missiongenesis/pkg/provider/video"
)

// Defaults for [Simulator].
const (
	DefaultOutputPath  = "mission-genesis-vision.mp4"
	DefaultAspectRatio = "16:9"
	DefaultResolution  = "720p"
	DefaultTimeout     = 10 * time.Minute
)

// DefaultPrompt describes the classroom of the future the simulation renders.
const DefaultPrompt = "Cinematic wide shot of a futuristic classroom in Yaoundé, Cameroon. " +
	"Teenage students collaborating around a floating holographic map of the city, using futuristic touch interfaces. " +
	"The environment is vibrant with deep blue, amber, and purple neon lighting, blending traditional Cameroonian " +
	"textile patterns into the tech aesthetics. High-end sci-fi look, ultra-realistic textures, 4k, peaceful and " +
	"inspiring innovation hub."

// Status lines shown while a run progresses.
const (
	msgIdle        = "Standing by to execute the simulation."
	msgOffline     = "Video engine offline: no video provider configured."
	msgSubmitting  = "Initializing Neural Sim..."
	msgLandscape   = "Synthesizing Future Educational Landscape..."
	msgEncoding    = "Encoding reality frames... %ds elapsed."
	msgDownloading = "Receiving simulation feed..."
	msgSaved       = "Simulation saved to %s"
	msgAborted     = "Simulation aborted."
	msgFailed      = "SYNC FAILED: Link Refused. Check Billing Docs."
)

// State is the phase of the simulator.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateReady
	StateFailed
	StateOffline
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the simulator.
type Status struct {
	State   State
	Message string
	// Path is where the last clip was written; set in StateReady.
	Path string
	// Err is the cause of StateFailed.
	Err error
}

// Option configures a [Simulator].
type Option func(*Simulator)

// WithPrompt replaces [DefaultPrompt].
func WithPrompt(p string) Option {
	return func(s *Simulator) {
		if p != "" {
			s.req.Prompt = p
		}
	}
}

// WithOutputPath sets where the clip is written.
func WithOutputPath(path string) Option {
	return func(s *Simulator) {
		if path != "" {
			s.path = path
		}
	}
}

// WithFormat sets the aspect ratio and resolution. Empty values keep the
// defaults.
func WithFormat(aspectRatio, resolution string) Option {
	return func(s *Simulator) {
		if aspectRatio != "" {
			s.req.AspectRatio = aspectRatio
		}
		if resolution != "" {
			s.req.Resolution = resolution
		}
	}
}

// WithTimeout bounds one run.
func WithTimeout(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// Simulator runs at most one video job at a time.
type Simulator struct {
	provider video.Provider
	req      video.Request
	path     string
	timeout  time.Duration
	metrics  *observe.Metrics

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	status   Status
	run      uint64
	cancel   context.CancelFunc
	closed   bool
	onChange []func()
}

// New creates a Simulator. A nil provider yields a simulator that stays in
// [StateOffline].
func New(provider video.Provider, opts ...Option) *Simulator {
	s := &Simulator{
		provider: provider,
		req: video.Request{
			Prompt:      DefaultPrompt,
			AspectRatio: DefaultAspectRatio,
			Resolution:  DefaultResolution,
		},
		path:    DefaultOutputPath,
		timeout: DefaultTimeout,
		status:  Status{State: StateIdle, Message: msgIdle},
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if provider == nil {
		s.status = Status{State: StateOffline, Message: msgOffline}
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	return s
}

// OnChange registers fn to run after every status change, without the
// simulator's lock held.
func (s *Simulator) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Status returns the current snapshot.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start launches a run in the background. It reports false when the
// simulator is offline, closed, or already running.
func (s *Simulator) Start() bool {
	s.mu.Lock()
	if s.closed || s.status.State == StateOffline || s.status.State == StateRunning {
		s.mu.Unlock()
		return false
	}
	s.run++
	run := s.run
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	s.cancel = cancel
	s.status = Status{State: StateRunning, Message: msgSubmitting}
	s.wg.Add(1)
	s.mu.Unlock()

	s.notify()
	go s.simulate(ctx, cancel, run)
	return true
}

// Cancel aborts the running job. It reports whether one was running.
func (s *Simulator) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State != StateRunning || s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Wait blocks until the background run, if any, has returned.
func (s *Simulator) Wait() {
	s.wg.Wait()
}

// Close aborts any run and waits for it. It is safe to call more than once.
func (s *Simulator) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.baseCancel()
	s.wg.Wait()
	return nil
}

func (s *Simulator) simulate(ctx context.Context, cancel context.CancelFunc, run uint64) {
	defer s.wg.Done()
	defer cancel()

	ctx, span := observe.StartSpan(ctx, "vision.simulate")
	defer span.End()
	span.SetAttributes(attribute.String("output", s.path))
	log := observe.Logger(ctx).With("output", s.path)

	req := s.req
	req.OnProgress = func(p video.Progress) { s.setRunning(run, progressMessage(p)) }

	clip, err := s.provider.Generate(ctx, req)
	if err == nil {
		err = save(s.path, clip)
	}
	switch {
	case err == nil:
		log.Info("vision: simulation saved", "bytes", len(clip.Data), "mime", clip.MIMEType)
		s.metrics.RecordSimulation(ctx, observe.SimulationSaved)
		s.finish(run, Status{State: StateReady, Message: fmt.Sprintf(msgSaved, s.path), Path: s.path})
	case errors.Is(err, context.Canceled):
		log.Info("vision: simulation aborted")
		s.metrics.RecordSimulation(ctx, observe.SimulationCancelled)
		s.finish(run, Status{State: StateIdle, Message: msgAborted})
	default:
		log.Warn("vision: simulation failed", "err", err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordSimulation(ctx, observe.SimulationFailed)
		s.finish(run, Status{State: StateFailed, Message: msgFailed, Err: err})
	}
}

// progressMessage renders the status line for p.
func progressMessage(p video.Progress) string {
	switch {
	case p.Stage == video.StageSubmitting:
		return msgSubmitting
	case p.Stage == video.StageDownloading:
		return msgDownloading
	case p.Polls == 0:
		return msgLandscape
	default:
		return fmt.Sprintf(msgEncoding, int(p.Elapsed.Seconds()))
	}
}

// setRunning updates the message of run while it is still the current one.
func (s *Simulator) setRunning(run uint64, msg string) {
	s.mu.Lock()
	if run != s.run || s.status.State != StateRunning {
		s.mu.Unlock()
		return
	}
	s.status.Message = msg
	s.mu.Unlock()
	s.notify()
}

func (s *Simulator) finish(run uint64, st Status) {
	s.mu.Lock()
	if run != s.run {
		s.mu.Unlock()
		return
	}
	s.status = st
	s.cancel = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Simulator) notify() {
	s.mu.Lock()
	obs := append([]func(){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

// save writes clip to path through a temporary file in the same directory so
// a viewer never sees a partial clip.
func save(path string, clip *video.Clip) error {
	if clip == nil || len(clip.Data) == 0 {
		return errors.New("vision: provider returned no clip")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vision: create %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".sim-*.part")
	if err != nil {
		return fmt.Errorf("vision: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("vision: chmod %q: %w", tmp.Name(), err)
	}
	if _, err := tmp.Write(clip.Data); err != nil {
		tmp.Close()
		return fmt.Errorf("vision: write %q: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vision: close %q: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("vision: rename to %q: %w", path, err)
	}
	return nil
}
