package narration_test

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/missiongenesis/internal/narration"
	"github.com/MrWong99/missiongenesis/internal/observe"
	"github.com/MrWong99/missiongenesis/pkg/audio"
	audiomock "github.com/MrWong99/missiongenesis/pkg/audio/mock"
	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
	ttsmock "github.com/MrWong99/missiongenesis/pkg/provider/tts/mock"
)

// speech returns a 24 kHz mono payload of n samples.
func speech(n int) *tts.Speech {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.25
	}
	return &tts.Speech{
		Audio:      base64.StdEncoding.EncodeToString(audio.EncodePCM16(samples)),
		SampleRate: 24000,
		Channels:   1,
	}
}

func newMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// outcomes returns narration counts keyed by outcome.
func outcomes(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "missiongenesis.narration.requests" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				v, _ := dp.Attributes.Value("outcome")
				out[v.AsString()] = dp.Value
			}
		}
	}
	return out
}

func TestNarrate_PlaysSanitisedSpeech(t *testing.T) {
	t.Parallel()

	m, reader := newMetrics(t)
	provider := &ttsmock.Provider{SynthesizeResult: speech(480)}
	player := &audiomock.Player{}
	voice := tts.VoiceProfile{ID: "Kore", Provider: "gemini"}
	n := narration.New(provider, player, narration.WithVoice(voice), narration.WithMetrics(m))
	defer n.Close()

	n.Narrate("I am the Strategic Advisor for **S.C.A.A.M**.", "turn-1")
	n.Wait()

	calls := provider.SynthesizeCalls()
	if len(calls) != 1 {
		t.Fatalf("Synthesize called %d times, want 1", len(calls))
	}
	req := calls[0].Req
	if req.Text != "I am the Strategic Advisor for Scam." {
		t.Errorf("synthesised text = %q", req.Text)
	}
	if req.SampleRate != 24000 || req.Channels != 1 {
		t.Errorf("format = %d Hz x %d, want 24000 x 1", req.SampleRate, req.Channels)
	}
	if req.Voice.ID != "Kore" {
		t.Errorf("voice = %q, want Kore", req.Voice.ID)
	}

	plays := player.PlayCalls()
	if len(plays) != 1 {
		t.Fatalf("Play called %d times, want 1", len(plays))
	}
	if plays[0].ID != "turn-1" {
		t.Errorf("played id = %q, want turn-1", plays[0].ID)
	}
	if got := plays[0].Buffer.Frames(); got != 480 {
		t.Errorf("frames = %d, want 480", got)
	}
	if n.Speaking() != "turn-1" {
		t.Errorf("Speaking() = %q, want turn-1", n.Speaking())
	}
	if n.Pending() != "" {
		t.Errorf("Pending() = %q after playback started", n.Pending())
	}
	if got := outcomes(t, reader)[observe.NarrationPlayed]; got != 1 {
		t.Errorf("played outcome = %d, want 1", got)
	}
}

func TestNarrate_BlankIsNoop(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{SynthesizeResult: speech(10)}
	player := &audiomock.Player{}
	n := narration.New(provider, player)
	defer n.Close()

	for _, text := range []string{"", "   \n\t", "***"} {
		n.Narrate(text, "blank")
	}
	n.Wait()

	if len(provider.SynthesizeCalls()) != 0 {
		t.Error("blank text reached the provider")
	}
	if player.CallCountStop != 0 {
		t.Error("blank text stopped playback")
	}
}

func TestNarrate_StaleResultIsDropped(t *testing.T) {
	t.Parallel()

	m, reader := newMetrics(t)
	release := make(chan struct{})
	firstStarted := make(chan struct{})
	var (
		mu          sync.Mutex
		firstCtxErr error
	)
	provider := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) (*tts.Speech, error) {
			if req.Text == "first answer" {
				close(firstStarted)
				<-release
				mu.Lock()
				firstCtxErr = ctx.Err()
				mu.Unlock()
				return speech(100), nil
			}
			return speech(200), nil
		},
	}
	player := &audiomock.Player{}
	n := narration.New(provider, player, narration.WithMetrics(m))
	defer n.Close()

	n.Narrate("first answer", "a")
	<-firstStarted
	n.Narrate("second answer", "b")

	deadline := time.After(2 * time.Second)
	for len(player.PlayCalls()) == 0 {
		select {
		case <-deadline:
			t.Fatal("second narration never played")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(release)
	n.Wait()

	plays := player.PlayCalls()
	if len(plays) != 1 || plays[0].ID != "b" {
		t.Fatalf("plays = %+v, want only b", plays)
	}
	if player.Active() != "b" {
		t.Errorf("Active() = %q, want b", player.Active())
	}
	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(firstCtxErr, context.Canceled) {
		t.Errorf("superseded context err = %v, want context.Canceled", firstCtxErr)
	}
	got := outcomes(t, reader)
	if got[observe.NarrationDropped] != 1 || got[observe.NarrationPlayed] != 1 {
		t.Errorf("outcomes = %v, want 1 dropped and 1 played", got)
	}
}

func TestNarrate_EmptyPayloadStopsCurrent(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{}
	player := &audiomock.Player{}
	n := narration.New(provider, player)
	defer n.Close()

	_ = player.Play(&audio.Buffer{}, "previous")
	n.Narrate("Nothing to say.", "quiet")
	n.Wait()

	if len(player.PlayCalls()) != 1 {
		t.Errorf("empty payload was played")
	}
	if player.Active() != "" {
		t.Errorf("Active() = %q, want empty", player.Active())
	}
}

func TestNarrate_EmptyPayloadForSupersededRequestKeepsPlaying(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	provider := &ttsmock.Provider{
		SynthesizeFunc: func(_ context.Context, req tts.Request) (*tts.Speech, error) {
			if req.Text == "slow" {
				close(started)
				<-release
				return &tts.Speech{}, nil
			}
			return speech(50), nil
		},
	}
	player := &audiomock.Player{}
	n := narration.New(provider, player)
	defer n.Close()

	n.Narrate("slow", "old")
	<-started
	n.Narrate("fast", "new")
	for player.Active() != "new" {
		time.Sleep(time.Millisecond)
	}
	close(release)
	n.Wait()

	if player.Active() != "new" {
		t.Errorf("Active() = %q, want new", player.Active())
	}
	if player.CallCountStop != 0 {
		t.Errorf("Stop called %d times by a superseded request", player.CallCountStop)
	}
}

func TestNarrate_FailuresDegradeToSilence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider *ttsmock.Provider
		playErr  error
	}{
		{"synthesis error", &ttsmock.Provider{SynthesizeErr: errors.New("quota exceeded")}, nil},
		{"malformed audio", &ttsmock.Provider{SynthesizeResult: &tts.Speech{Audio: "!!not base64!!"}}, nil},
		{"playback error", &ttsmock.Provider{SynthesizeResult: speech(10)}, errors.New("no device")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, reader := newMetrics(t)
			player := &audiomock.Player{PlayErr: tc.playErr}
			n := narration.New(tc.provider, player, narration.WithMetrics(m))
			defer n.Close()

			n.Narrate("Revenue tiers are $0, $7 and $15.", "turn")
			n.Wait()

			if player.Active() != "" {
				t.Errorf("Active() = %q, want silence", player.Active())
			}
			if n.Pending() != "" {
				t.Errorf("Pending() = %q, want cleared", n.Pending())
			}
			if got := outcomes(t, reader)[observe.NarrationFailed]; got != 1 {
				t.Errorf("failed outcome = %d, want 1", got)
			}
		})
	}
}

func TestNarrator_StopCancelsPending(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	provider := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, _ tts.Request) (*tts.Speech, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	player := &audiomock.Player{}
	n := narration.New(provider, player)
	defer n.Close()

	n.Narrate("Long answer", "x")
	<-started
	if n.Pending() != "x" {
		t.Errorf("Pending() = %q, want x", n.Pending())
	}
	n.Stop()
	n.Wait()

	if len(player.PlayCalls()) != 0 {
		t.Error("stopped narration was played")
	}
	if n.Pending() != "" {
		t.Errorf("Pending() = %q after Stop", n.Pending())
	}
}

func TestNarrator_CloseRejectsNewRequests(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{SynthesizeResult: speech(10)}
	player := &audiomock.Player{}
	n := narration.New(provider, player)

	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	n.Narrate("After close", "late")
	n.Wait()

	if len(provider.SynthesizeCalls()) != 0 {
		t.Error("closed narrator still synthesised")
	}
}

func TestNarrate_TimeoutDegrades(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, _ tts.Request) (*tts.Speech, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	player := &audiomock.Player{}
	n := narration.New(provider, player, narration.WithTimeout(20*time.Millisecond))
	defer n.Close()

	n.Narrate("Slow voice", "slow")
	n.Wait()

	if len(player.PlayCalls()) != 0 {
		t.Error("timed-out narration was played")
	}
	if player.CallCountStop != 1 {
		t.Errorf("Stop called %d times, want 1", player.CallCountStop)
	}
}
