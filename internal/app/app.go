// Package app wires the Mission Genesis subsystems into a running deck.
//
// The App struct owns the full lifecycle: New creates and connects the
// player, narrator, assistant, video simulator, navigator and terminal UI,
// Run drives the UI
// (and the optional operator HTTP endpoint) until the user quits, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithOutput,
// WithFrontend, WithTelemetry, ...). When an option is not provided, New
// creates the real implementation.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/missiongenesis/internal/assistant"
	"github.com/MrWong99/missiongenesis/internal/config"
	"github.com/MrWong99/missiongenesis/internal/deck"
	"github.com/MrWong99/missiongenesis/internal/health"
	"github.com/MrWong99/missiongenesis/internal/narration"
	"github.com/MrWong99/missiongenesis/internal/observe"
	"github.com/MrWong99/missiongenesis/internal/tui"
	"github.com/MrWong99/missiongenesis/internal/vision"
	"github.com/MrWong99/missiongenesis/pkg/audio"
	"github.com/MrWong99/missiongenesis/pkg/audio/player"
	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
)

// Version is reported as the telemetry service version.
var Version = "dev"

const (
	serverShutdownTimeout = 5 * time.Second
	readHeaderTimeout     = 5 * time.Second
)

// Frontend is the interactive surface driven by the App.
type Frontend interface {
	// Run blocks until the user quits or ctx is cancelled.
	Run(ctx context.Context) error

	// SetPlayback reports the audible narration and its progress.
	SetPlayback(id audio.PlaybackID, percent float64)
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Injected or defaulted in New.
	output      player.Output
	telemetry   *observe.Telemetry
	levelVar    *slog.LevelVar
	slides      []deck.Slide
	newFrontend func(tui.Config) Frontend

	player    *player.Controller
	narrator  *narration.Narrator
	assistant *assistant.Manager
	simulator *vision.Simulator
	navigator *deck.Navigator
	frontend  Frontend
	handler   http.Handler
	server    *http.Server
	metrics   *observe.Metrics

	playMu  sync.Mutex
	playing bool

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithOutput plays through out instead of the system speaker.
func WithOutput(out player.Output) Option {
	return func(a *App) { a.output = out }
}

// WithTelemetry uses t instead of initialising the global OTel providers.
// The caller keeps ownership and must shut t down.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) { a.telemetry = t }
}

// WithLevelVar lets config reloads change the log level through v.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = v }
}

// WithSlides replaces the built-in deck.
func WithSlides(s []deck.Slide) Option {
	return func(a *App) { a.slides = s }
}

// WithFrontend replaces the terminal UI constructor.
func WithFrontend(fn func(tui.Config) Frontend) Option {
	return func(a *App) { a.newFrontend = fn }
}

// New creates an App by wiring all subsystems together. providers comes from
// [BuildProviders]; cfg should already be validated.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil || providers.TTS == nil {
		return nil, errors.New("app: llm and tts providers are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	var telemetryCloser func(context.Context) error
	if a.telemetry == nil {
		t, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "missiongenesis",
			ServiceVersion: Version,
		})
		if err != nil {
			return nil, fmt.Errorf("app: init telemetry: %w", err)
		}
		a.telemetry = t
		telemetryCloser = t.Shutdown
	}
	a.metrics = a.telemetry.Metrics

	if a.output == nil {
		a.output = &player.Speaker{}
	}
	a.player = player.New(a.output,
		player.WithTickInterval(cfg.Audio.TickInterval),
		player.WithVolume(audio.Volume{Muted: cfg.Audio.Muted, Level: cfg.Audio.Level()}),
		player.OnProgress(a.playbackProgress),
		player.OnStateChange(a.playbackState),
	)

	a.narrator = narration.New(providers.TTS, a.player,
		narration.WithVoice(voiceProfile(cfg)),
		narration.WithFormat(cfg.Narration.SampleRate, cfg.Narration.Channels),
		narration.WithSanitizer(sanitizer(cfg)),
		narration.WithTimeout(cfg.Narration.Timeout),
		narration.WithMetrics(a.metrics),
	)

	a.assistant = assistant.New(providers.LLM, a.narrator, persona(cfg),
		assistant.WithMetrics(a.metrics),
		assistant.WithTimeout(cfg.Assistant.Timeout),
		assistant.WithMaxTokens(cfg.Assistant.MaxTokens),
		assistant.WithHistoryBudget(cfg.Assistant.HistoryTokens),
	)

	vc := cfg.Vision
	a.simulator = vision.New(providers.Video,
		vision.WithPrompt(vc.Prompt),
		vision.WithOutputPath(vc.OutputPath),
		vision.WithFormat(vc.AspectRatio, vc.Resolution),
		vision.WithTimeout(vc.Timeout),
		vision.WithMetrics(a.metrics),
	)

	if a.slides == nil {
		a.slides = deck.MissionGenesis()
	}
	nav, err := deck.NewNavigator(a.slides)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if start := cfg.Deck.StartSlide; start > 0 {
		if err := nav.GoTo(start); err != nil {
			return nil, fmt.Errorf("app: deck.start_slide: %w", err)
		}
	}
	a.navigator = nav

	if a.newFrontend == nil {
		a.newFrontend = func(c tui.Config) Frontend { return tui.New(c) }
	}
	a.frontend = a.newFrontend(tui.Config{
		Navigator:  a.navigator,
		Assistant:  a.assistant,
		Narration:  a.narrator,
		Player:     a.player,
		Simulation: a.simulator,
		Metrics:    a.metrics,
	})

	a.initHTTP()

	// Narration first so nothing reaches the player once it is closed.
	a.closers = append(a.closers,
		func(context.Context) error { return a.simulator.Close() },
		func(context.Context) error { return a.narrator.Close() },
		func(context.Context) error { return a.player.Close() },
	)
	if telemetryCloser != nil {
		a.closers = append(a.closers, telemetryCloser)
	}

	slog.Info("deck ready",
		"slides", a.navigator.Count(),
		"start", a.navigator.Current().Name,
		"llm", cfg.Providers.LLM.Name,
		"tts", cfg.Providers.TTS.Name,
		"video", a.simulator.Status().State,
	)
	return a, nil
}

// initHTTP builds the operator handler and, when a listen address is
// configured, the server that exposes it.
func (a *App) initHTTP() {
	checks := health.New(
		health.Checker{Name: "llm", Check: breakerCheck(a.providers.LLM)},
		health.Checker{Name: "tts", Check: breakerCheck(a.providers.TTS), Optional: true},
	)
	mux := http.NewServeMux()
	checks.Register(mux)
	mux.Handle("GET /metrics", a.telemetry.Handler())
	a.handler = observe.Middleware(a.metrics)(mux)

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		a.server = &http.Server{
			Addr:              addr,
			Handler:           a.handler,
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}
}

// Handler serves /healthz, /readyz and /metrics.
func (a *App) Handler() http.Handler { return a.handler }

// Navigator returns the slide navigator.
func (a *App) Navigator() *deck.Navigator { return a.navigator }

// Assistant returns the conversation manager.
func (a *App) Assistant() *assistant.Manager { return a.assistant }

// Player returns the playback controller.
func (a *App) Player() *player.Controller { return a.player }

// Simulator returns the video simulation runner.
func (a *App) Simulator() *vision.Simulator { return a.simulator }

// Run drives the frontend and the operator endpoint until the user quits or
// ctx is cancelled. Quitting the frontend stops the endpoint.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return a.frontend.Run(gctx)
	})

	if a.server != nil {
		g.Go(func() error {
			slog.Info("operator endpoint listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			defer scancel()
			return a.server.Shutdown(sctx)
		})
	}

	return g.Wait()
}

// ApplyConfig hot-applies the parts of next that can change at runtime and
// logs the ones that need a restart. It is meant as a [config.Watcher]
// callback.
func (a *App) ApplyConfig(prev, next *config.Config) {
	d := config.Diff(prev, next)
	if d.Empty() {
		return
	}

	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PersonaChanged {
		a.assistant.SetPersona(persona(next))
		slog.Info("assistant persona updated")
	}
	if d.VoiceChanged {
		a.narrator.SetVoice(voiceProfile(next))
		slog.Info("narration voice updated", "voice", next.Assistant.Voice.VoiceID)
	}
	if d.NarrationChanged {
		a.narrator.SetSanitizer(sanitizer(next))
		slog.Info("narration text rules updated")
	}
	if d.AudioChanged {
		a.player.SetVolume(next.Audio.Muted, next.Audio.Level())
		slog.Info("audio volume updated", "muted", next.Audio.Muted, "level", next.Audio.Level())
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after a restart", "sections", d.RestartRequired)
	}
	a.cfg = next
}

// Shutdown stops narration and playback and flushes telemetry. It respects
// the context deadline: once ctx expires, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// playbackProgress forwards ticks to the frontend.
func (a *App) playbackProgress(id audio.PlaybackID, pct float64) {
	a.frontend.SetPlayback(id, pct)
}

// playbackState keeps the playback metrics in step with the player. An
// interrupt reports the new id without an idle transition in between.
func (a *App) playbackState(id audio.PlaybackID) {
	ctx := context.Background()
	a.playMu.Lock()
	switch {
	case id == "":
		if a.playing {
			a.playing = false
			a.metrics.PlaybackEnded(ctx)
		}
	case a.playing:
		a.metrics.PlaybackSessions.Add(ctx, 1)
	default:
		a.playing = true
		a.metrics.PlaybackStarted(ctx)
	}
	a.playMu.Unlock()

	if id != "" {
		a.frontend.SetPlayback(id, 0)
	}
}

func persona(cfg *config.Config) assistant.Persona {
	ac := cfg.Assistant
	return assistant.Persona{
		SystemPrompt:  ac.Persona,
		Greeting:      ac.Greeting,
		FallbackError: ac.FallbackError,
		FallbackEmpty: ac.FallbackEmpty,
		Temperature:   ac.Temperature,
	}
}

func voiceProfile(cfg *config.Config) tts.VoiceProfile {
	v := cfg.Assistant.Voice
	return tts.VoiceProfile{
		ID:          v.VoiceID,
		Provider:    cfg.Providers.TTS.Name,
		SpeedFactor: v.SpeedFactor,
	}
}

func sanitizer(cfg *config.Config) *narration.Sanitizer {
	return narration.NewSanitizer(cfg.Narration.MaxChars, cfg.Narration.Phonetics)
}
