package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/missiongenesis/internal/config"
	"github.com/MrWong99/missiongenesis/internal/deck"
	"github.com/MrWong99/missiongenesis/internal/observe"
	"github.com/MrWong99/missiongenesis/internal/resilience"
	"github.com/MrWong99/missiongenesis/internal/tui"
	"github.com/MrWong99/missiongenesis/internal/vision"
	"github.com/MrWong99/missiongenesis/pkg/audio"
	"github.com/MrWong99/missiongenesis/pkg/provider/llm"
	llmmock "github.com/MrWong99/missiongenesis/pkg/provider/llm/mock"
	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
	ttsmock "github.com/MrWong99/missiongenesis/pkg/provider/tts/mock"
	"github.com/MrWong99/missiongenesis/pkg/provider/video"
	videomock "github.com/MrWong99/missiongenesis/pkg/provider/video/mock"
)

// ─── Test doubles ────────────────────────────────────────────────────────────

type nullOutput struct {
	mu     sync.Mutex
	played int
	closed bool
}

func (o *nullOutput) Init(beep.SampleRate) error { return nil }
func (o *nullOutput) Play(beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.played++
}
func (o *nullOutput) Lock()   {}
func (o *nullOutput) Unlock() {}
func (o *nullOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

type playback struct {
	id  audio.PlaybackID
	pct float64
}

type fakeFrontend struct {
	runErr error
	block  bool

	mu       sync.Mutex
	cfg      tui.Config
	playback []playback
}

func (f *fakeFrontend) Run(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
	}
	return f.runErr
}

func (f *fakeFrontend) SetPlayback(id audio.PlaybackID, pct float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playback = append(f.playback, playback{id, pct})
}

func (f *fakeFrontend) calls() []playback {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]playback, len(f.playback))
	copy(out, f.playback)
	return out
}

type fixture struct {
	app      *App
	llm      *llmmock.Provider
	tts      *ttsmock.Provider
	video    *videomock.Provider
	frontend *fakeFrontend
	output   *nullOutput
}

func newFixture(t *testing.T, cfg *config.Config, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		llm:      &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Four revenue streams."}},
		tts:      &ttsmock.Provider{},
		video:    &videomock.Provider{Clip: &video.Clip{Data: []byte("mp4"), MIMEType: "video/mp4"}},
		frontend: &fakeFrontend{},
		output:   &nullOutput{},
	}

	tel, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	ps := &Providers{
		LLM: resilience.NewLLMFallback(f.llm, "mock", resilience.FallbackConfig{
			Metrics:        tel.Metrics,
			CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 1},
		}),
		TTS:   resilience.NewTTSFallback(f.tts, "mock", resilience.FallbackConfig{Metrics: tel.Metrics}),
		Video: f.video,
	}
	base := []Option{
		WithOutput(f.output),
		WithTelemetry(tel),
		WithFrontend(func(c tui.Config) Frontend {
			f.frontend.cfg = c
			return f.frontend
		}),
	}
	a, err := New(context.Background(), cfg, ps, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	f.app = a
	return f
}

// ─── Tests ───────────────────────────────────────────────────────────────────

func TestNew_RequiresProviders(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), config.Default(), nil); err == nil {
		t.Error("expected error for nil providers")
	}
	if _, err := New(context.Background(), config.Default(), &Providers{LLM: &llmmock.Provider{}}); err == nil {
		t.Error("expected error for missing tts provider")
	}
}

func TestNew_WiresFrontend(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.Default())
	c := f.frontend.cfg
	if c.Navigator != f.app.Navigator() || c.Assistant != f.app.Assistant() {
		t.Error("frontend not wired to the app's navigator and assistant")
	}
	if c.Player != f.app.Player() {
		t.Error("frontend not wired to the app's player")
	}
	if got := f.app.Navigator().Count(); got != len(deck.MissionGenesis()) {
		t.Errorf("Count = %d, want the built-in deck", got)
	}
}

func TestSimulator_WritesConfiguredPath(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Vision.OutputPath = filepath.Join(t.TempDir(), "sim", "genesis.mp4")
	cfg.Vision.Prompt = "A classroom in Douala."
	cfg.Vision.AspectRatio = "9:16"
	f := newFixture(t, cfg)

	if f.frontend.cfg.Simulation != f.app.Simulator() {
		t.Fatal("frontend not wired to the simulator")
	}
	if !f.app.Simulator().Start() {
		t.Fatal("Start = false")
	}
	f.app.Simulator().Wait()

	st := f.app.Simulator().Status()
	if st.State != vision.StateReady || st.Path != cfg.Vision.OutputPath {
		t.Fatalf("Status = %+v, want ready at %s", st, cfg.Vision.OutputPath)
	}
	data, err := os.ReadFile(cfg.Vision.OutputPath)
	if err != nil || string(data) != "mp4" {
		t.Errorf("clip = %q, %v", data, err)
	}
	reqs := f.video.Requests()
	if len(reqs) != 1 || reqs[0].Prompt != "A classroom in Douala." || reqs[0].AspectRatio != "9:16" {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestSimulator_OfflineWithoutVideo(t *testing.T) {
	t.Parallel()

	tel, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	defer tel.Shutdown(context.Background())

	a, err := New(context.Background(), config.Default(),
		&Providers{LLM: &llmmock.Provider{}, TTS: &ttsmock.Provider{}},
		WithOutput(&nullOutput{}),
		WithTelemetry(tel),
		WithFrontend(func(tui.Config) Frontend { return &fakeFrontend{} }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if st := a.Simulator().Status().State; st != vision.StateOffline {
		t.Errorf("State = %v, want offline", st)
	}
	if a.Simulator().Start() {
		t.Error("Start succeeded without a video provider")
	}
}

func TestNew_StartSlide(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Deck.StartSlide = 3
	f := newFixture(t, cfg)
	if got := f.app.Navigator().Index(); got != 3 {
		t.Errorf("Index = %d, want 3", got)
	}
}

func TestNew_StartSlideOutOfRange(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Deck.StartSlide = 2
	ps := &Providers{LLM: &llmmock.Provider{}, TTS: &ttsmock.Provider{}}
	tel, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	defer tel.Shutdown(context.Background())

	_, err = New(context.Background(), cfg, ps,
		WithOutput(&nullOutput{}),
		WithTelemetry(tel),
		WithSlides([]deck.Slide{{Name: "Only", Title: "Only"}, {Name: "Two", Title: "Two"}}),
		WithFrontend(func(tui.Config) Frontend { return &fakeFrontend{} }),
	)
	if err == nil {
		t.Fatal("expected error for start slide past the end")
	}
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.Default())
	srv := httptest.NewServer(f.app.Handler())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestHandler_ReadyzFailsWhenLLMBreakersOpen(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.Default())
	f.llm.CompleteErr = errors.New("quota exceeded")

	// One failure opens the single breaker.
	_ = f.app.Assistant().Ask(context.Background(), "What is the TAM?")

	srv := httptest.NewServer(f.app.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"llm":"fail:`) {
		t.Errorf("body = %s, want failing llm check", body)
	}
}

func TestHandler_MetricsExposeAssistantTurns(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.Default())
	_ = f.app.Assistant().Ask(context.Background(), "Revenue model?")

	srv := httptest.NewServer(f.app.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "missiongenesis_assistant_turns") {
		t.Errorf("metrics output lacks assistant turns:\n%s", body)
	}
}

func TestAsk_NarratesThroughPlayer(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.Default())
	// Two mono frames of PCM16.
	f.tts.SynthesizeResult = &tts.Speech{Audio: "AAAAQA==", SampleRate: 24000, Channels: 1}

	entry := f.app.Assistant().Ask(context.Background(), "Who leads the team?")
	f.app.narrator.Wait()

	if entry.PlaybackID == "" {
		t.Fatal("reply has no playback id")
	}
	calls := f.frontend.calls()
	if len(calls) == 0 || calls[0].id != entry.PlaybackID {
		t.Fatalf("frontend playback = %+v, want start of %q", calls, entry.PlaybackID)
	}
	f.output.mu.Lock()
	played := f.output.played
	f.output.mu.Unlock()
	if played != 1 {
		t.Errorf("output played %d streams, want 1", played)
	}

	reqs := f.tts.SynthesizeCalls()
	if len(reqs) != 1 || reqs[0].Req.SampleRate != config.DefaultSampleRate {
		t.Errorf("synthesis requests = %+v", reqs)
	}
}

func TestApplyConfig(t *testing.T) {
	t.Parallel()

	var level slog.LevelVar
	f := newFixture(t, config.Default(), WithLevelVar(&level))

	prev := config.Default()
	next := config.Default()
	half := 0.5
	next.Audio.Volume = &half
	next.Audio.Muted = true
	next.Assistant.Persona = "You are Dusk."
	next.Server.LogLevel = config.LogDebug
	next.Providers.TTS.Model = "other"

	f.app.ApplyConfig(prev, next)

	if got := f.app.Player().Volume(); !got.Muted || got.Level != 0.5 {
		t.Errorf("Volume = %+v, want muted at 0.5", got)
	}
	if got := f.app.Assistant().Persona().SystemPrompt; got != "You are Dusk." {
		t.Errorf("SystemPrompt = %q", got)
	}
	if level.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level.Level())
	}
}

func TestRun_FrontendQuitStopsServer(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	f := newFixture(t, cfg)

	done := make(chan error, 1)
	go func() { done <- f.app.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the frontend quit")
	}
}

func TestRun_ContextCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.Default())
	f.frontend.block = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.app.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_FrontendError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.Default())
	f.frontend.runErr = errors.New("tui: no terminal")

	if err := f.app.Run(context.Background()); err == nil {
		t.Fatal("expected frontend error")
	}
}

func TestShutdown_ClosesOutputOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.Default())
	f.tts.SynthesizeResult = &tts.Speech{Audio: "AAAAQA==", SampleRate: 24000, Channels: 1}
	f.app.Assistant().Ask(context.Background(), "Impact?")
	f.app.narrator.Wait()

	if err := f.app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := f.app.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	f.output.mu.Lock()
	defer f.output.mu.Unlock()
	if !f.output.closed {
		t.Error("output not closed")
	}
}

func TestShutdown_ExpiredContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.app.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown = %v, want context.Canceled", err)
	}
}

func TestPlaybackState_Metrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	fe := &fakeFrontend{}
	a := &App{metrics: m, frontend: fe}

	// Start, interrupt, then finish.
	a.playbackState("a")
	a.playbackState("b")
	a.playbackState("")
	a.playbackState("")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			if sum, ok := mt.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					got[mt.Name] += dp.Value
				}
			}
		}
	}
	if got["missiongenesis.playback.sessions"] != 2 {
		t.Errorf("sessions = %d, want 2", got["missiongenesis.playback.sessions"])
	}
	if got["missiongenesis.playback.active"] != 0 {
		t.Errorf("active = %d, want 0", got["missiongenesis.playback.active"])
	}
	if calls := fe.calls(); len(calls) != 2 {
		t.Errorf("frontend calls = %+v, want one per started session", calls)
	}
}
