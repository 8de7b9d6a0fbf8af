package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/missiongenesis/pkg/provider/llm"
	llmmock "github.com/MrWong99/missiongenesis/pkg/provider/llm/mock"
	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
	ttsmock "github.com/MrWong99/missiongenesis/pkg/provider/tts/mock"
)

func TestLLMFallback_Complete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		primaryErr  error
		want        string
		wantErr     error
		secondCalls int
	}{
		{name: "primary answers", want: "from primary", secondCalls: 0},
		{name: "failover", primaryErr: errors.New("quota"), want: "from secondary", secondCalls: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, _ := testMetrics(t)
			primary := &llmmock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: "from primary"},
				CompleteErr:      tc.primaryErr,
			}
			secondary := &llmmock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: "from secondary"},
			}
			fb := NewLLMFallback(primary, "gemini", FallbackConfig{Metrics: m})
			fb.AddFallback("openai", secondary)

			resp, err := fb.Complete(context.Background(), llm.CompletionRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "Budget?"}},
			})
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if resp.Content != tc.want {
				t.Errorf("Content = %q, want %q", resp.Content, tc.want)
			}
			if n := len(secondary.CompleteCalls()); n != tc.secondCalls {
				t.Errorf("secondary called %d times, want %d", n, tc.secondCalls)
			}
		})
	}
}

func TestLLMFallback_CountTokensUsesPrimary(t *testing.T) {
	t.Parallel()

	m, _ := testMetrics(t)
	primary := &llmmock.Provider{TokenCount: 12, ModelCapabilities: llm.ModelCapabilities{ContextWindow: 1_000_000}}
	secondary := &llmmock.Provider{TokenCount: 99}
	fb := NewLLMFallback(primary, "gemini", FallbackConfig{Metrics: m})
	fb.AddFallback("openai", secondary)

	n, err := fb.CountTokens([]llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err != nil || n != 12 {
		t.Errorf("CountTokens = %d, %v; want 12, nil", n, err)
	}
	if got := fb.Capabilities().ContextWindow; got != 1_000_000 {
		t.Errorf("ContextWindow = %d", got)
	}
}

func TestTTSFallback_Synthesize(t *testing.T) {
	t.Parallel()

	m, _ := testMetrics(t)
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("503")}
	secondary := &ttsmock.Provider{SynthesizeResult: &tts.Speech{Audio: "AAAA", SampleRate: 24000, Channels: 1}}
	fb := NewTTSFallback(primary, "gemini", FallbackConfig{Metrics: m})
	fb.AddFallback("elevenlabs", secondary)

	sp, err := fb.Synthesize(context.Background(), tts.Request{Text: "Welcome."})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if sp.Audio != "AAAA" {
		t.Errorf("Audio = %q", sp.Audio)
	}
	calls := secondary.SynthesizeCalls()
	if len(calls) != 1 || calls[0].Req.Text != "Welcome." {
		t.Errorf("secondary calls = %+v", calls)
	}
}

func TestTTSFallback_EmptyIsNotRetried(t *testing.T) {
	t.Parallel()

	m, _ := testMetrics(t)
	primary := &ttsmock.Provider{}
	secondary := &ttsmock.Provider{SynthesizeResult: &tts.Speech{Audio: "AAAA"}}
	fb := NewTTSFallback(primary, "gemini", FallbackConfig{Metrics: m})
	fb.AddFallback("openai", secondary)

	sp, err := fb.Synthesize(context.Background(), tts.Request{Text: "x"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !sp.Empty() {
		t.Errorf("expected empty speech, got %+v", sp)
	}
	if n := len(secondary.SynthesizeCalls()); n != 0 {
		t.Errorf("secondary called %d times", n)
	}
}
