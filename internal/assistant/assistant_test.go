package assistant_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/missiongenesis/internal/assistant"
	"github.com/MrWong99/missiongenesis/internal/assistant/mock"
	"github.com/MrWong99/missiongenesis/pkg/audio"
	"github.com/MrWong99/missiongenesis/pkg/provider/llm"
	llmmock "github.com/MrWong99/missiongenesis/pkg/provider/llm/mock"
)

func TestAsk_AppendsQuestionThenReply(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Freemium, Standard at $7 and Premium at $15."},
	}
	narr := &mock.Narrator{}
	m := assistant.New(provider, narr, assistant.Persona{})

	entry := m.Ask(context.Background(), "  What is the revenue model?  ")

	got := m.Transcript()
	if len(got) != 2 {
		t.Fatalf("transcript has %d entries, want 2", len(got))
	}
	if got[0].Role != assistant.RoleUser || got[0].Text != "What is the revenue model?" {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].Role != assistant.RoleAssistant || got[1].Text != "Freemium, Standard at $7 and Premium at $15." {
		t.Errorf("entry 1 = %+v", got[1])
	}
	if got[1] != entry {
		t.Errorf("returned entry %+v differs from transcript %+v", entry, got[1])
	}
	if _, err := uuid.Parse(string(entry.PlaybackID)); err != nil {
		t.Errorf("playback id %q is not a UUID: %v", entry.PlaybackID, err)
	}

	calls := narr.Calls()
	if len(calls) != 1 || calls[0].Text != entry.Text || calls[0].ID != entry.PlaybackID {
		t.Errorf("narrations = %+v, want the reply under its id", calls)
	}

	reqs := provider.CompleteCalls()
	if len(reqs) != 1 {
		t.Fatalf("Complete called %d times", len(reqs))
	}
	req := reqs[0].Req
	if req.SystemPrompt != assistant.DefaultSystemPrompt {
		t.Error("system prompt is not the default persona")
	}
	if req.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "What is the revenue model?" {
		t.Errorf("messages = %+v, want just the question", req.Messages)
	}
}

func TestAsk_BlankIsNoop(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{}
	narr := &mock.Narrator{}
	m := assistant.New(provider, narr, assistant.Persona{})

	if e := m.Ask(context.Background(), " \n "); e != (assistant.Entry{}) {
		t.Errorf("Ask(blank) = %+v, want zero", e)
	}
	if len(m.Transcript()) != 0 || len(provider.CompleteCalls()) != 0 || len(narr.Calls()) != 0 {
		t.Error("blank question had side effects")
	}
}

func TestAsk_Fallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider *llmmock.Provider
		persona  assistant.Persona
		want     string
	}{
		{
			name:     "error",
			provider: &llmmock.Provider{CompleteErr: errors.New("503 overloaded")},
			want:     assistant.DefaultFallbackError,
		},
		{
			name:     "nil response",
			provider: &llmmock.Provider{},
			want:     assistant.DefaultFallbackEmpty,
		},
		{
			name:     "blank content",
			provider: &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  "}},
			want:     assistant.DefaultFallbackEmpty,
		},
		{
			name:     "custom error text",
			provider: &llmmock.Provider{CompleteErr: errors.New("down")},
			persona:  assistant.Persona{FallbackError: "Comms offline."},
			want:     "Comms offline.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			narr := &mock.Narrator{}
			m := assistant.New(tc.provider, narr, tc.persona)
			m.Ask(context.Background(), "Who leads the team?")

			got := m.Transcript()
			if len(got) != 2 || got[1].Text != tc.want {
				t.Fatalf("transcript = %+v, want fallback %q", got, tc.want)
			}
			if m.Typing() {
				t.Error("typing still set after fallback")
			}
			if calls := narr.Calls(); len(calls) != 1 || calls[0].Text != tc.want {
				t.Errorf("narrations = %+v, want the fallback", calls)
			}
		})
	}
}

func TestAsk_TypingDuringCall(t *testing.T) {
	t.Parallel()

	var m *assistant.Manager
	var typingSeen atomic.Bool
	provider := &llmmock.Provider{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			typingSeen.Store(m.Typing())
			return &llm.CompletionResponse{Content: "Five architects."}, nil
		},
	}
	m = assistant.New(provider, &mock.Narrator{}, assistant.Persona{})

	var changes atomic.Int32
	m.OnChange(func() { changes.Add(1) })
	m.Ask(context.Background(), "Team size?")

	if !typingSeen.Load() {
		t.Error("Typing() was false while the model was answering")
	}
	if m.Typing() {
		t.Error("Typing() still true after the reply")
	}
	if got := changes.Load(); got != 2 {
		t.Errorf("observer called %d times, want 2", got)
	}
}

func TestAsk_ConcurrentQuestionsStayPaired(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			q := req.Messages[len(req.Messages)-1].Content
			return &llm.CompletionResponse{Content: "answer to " + q}, nil
		},
	}
	m := assistant.New(provider, &mock.Narrator{}, assistant.Persona{})

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Ask(context.Background(), fmt.Sprintf("q%d", i))
		}()
	}
	wg.Wait()

	got := m.Transcript()
	if len(got) != 2*n {
		t.Fatalf("transcript has %d entries, want %d", len(got), 2*n)
	}
	for i := 0; i < len(got); i += 2 {
		q, a := got[i], got[i+1]
		if q.Role != assistant.RoleUser || a.Role != assistant.RoleAssistant {
			t.Fatalf("entries %d/%d roles = %s/%s", i, i+1, q.Role, a.Role)
		}
		if a.Text != "answer to "+q.Text {
			t.Errorf("entry %d answers %q, want answer to %q", i+1, a.Text, q.Text)
		}
	}
}

func TestAsk_HistoryBudget(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Noted."},
		// One token per message keeps the arithmetic obvious.
		TokenCountFunc: func(msgs []llm.Message) int { return len(msgs) },
	}
	m := assistant.New(provider, &mock.Narrator{}, assistant.Persona{}, assistant.WithHistoryBudget(4))

	for _, q := range []string{"one", "two", "three"} {
		m.Ask(context.Background(), q)
	}

	calls := provider.CompleteCalls()
	last := calls[len(calls)-1].Req.Messages
	// History is one/Noted/two/Noted + three: trimmed to 4, then the leading
	// advisor turn is dropped.
	var contents []string
	for _, msg := range last {
		contents = append(contents, msg.Role+":"+msg.Content)
	}
	want := "user:two assistant:Noted. user:three"
	if got := strings.Join(contents, " "); got != want {
		t.Errorf("messages = %q, want %q", got, want)
	}
}

func TestAsk_ModelLimits(t *testing.T) {
	t.Parallel()

	// A window of 5 leaves 3 history tokens once 2 are reserved.
	provider := &llmmock.Provider{
		CompleteResponse:  &llm.CompletionResponse{Content: "Noted."},
		TokenCountFunc:    func(msgs []llm.Message) int { return len(msgs) },
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 5, MaxOutputTokens: 2},
	}
	m := assistant.New(provider, &mock.Narrator{}, assistant.Persona{},
		assistant.WithHistoryBudget(100),
		assistant.WithMaxTokens(500),
	)
	for _, q := range []string{"one", "two", "three"} {
		m.Ask(context.Background(), q)
	}

	calls := provider.CompleteCalls()
	req := calls[len(calls)-1].Req
	if req.MaxTokens != 2 {
		t.Errorf("MaxTokens = %d, want the model's 2", req.MaxTokens)
	}
	if n := len(req.Messages); n != 3 {
		t.Errorf("sent %d messages, want 3", n)
	}
	if req.Messages[0].Role != llm.RoleUser {
		t.Errorf("first message role = %q, want user", req.Messages[0].Role)
	}
}

func TestAsk_HistoryCountErrorSendsQuestionOnly(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Noted."},
		CountTokensErr:   errors.New("tokenizer unavailable"),
	}
	m := assistant.New(provider, &mock.Narrator{}, assistant.Persona{}, assistant.WithHistoryBudget(100))
	m.Ask(context.Background(), "one")
	m.Ask(context.Background(), "two")

	calls := provider.CompleteCalls()
	if msgs := calls[1].Req.Messages; len(msgs) != 1 || msgs[0].Content != "two" {
		t.Errorf("messages = %+v, want just the question", msgs)
	}
}

func TestOpenPanel_GreetsOnce(t *testing.T) {
	t.Parallel()

	narr := &mock.Narrator{}
	m := assistant.New(&llmmock.Provider{}, narr, assistant.Persona{})

	if m.PanelOpen() {
		t.Fatal("panel open before OpenPanel")
	}
	m.OpenPanel()
	m.ClosePanel()
	m.TogglePanel()
	m.OpenPanel()

	if !m.PanelOpen() {
		t.Error("panel closed after reopening")
	}
	calls := narr.Calls()
	if len(calls) != 1 {
		t.Fatalf("greeting narrated %d times, want 1", len(calls))
	}
	if calls[0].ID != assistant.GreetingID || calls[0].Text != assistant.DefaultGreeting {
		t.Errorf("greeting call = %+v", calls[0])
	}
	if len(m.Transcript()) != 0 {
		t.Error("greeting must not be appended to the transcript")
	}
	if m.Greeting() != assistant.DefaultGreeting {
		t.Errorf("Greeting() = %q", m.Greeting())
	}
}

func TestSetPersona(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	ids := []audio.PlaybackID{"a", "b"}
	var next int
	m := assistant.New(provider, &mock.Narrator{}, assistant.Persona{},
		assistant.WithIDGenerator(func() audio.PlaybackID { id := ids[next]; next++; return id }),
	)

	m.Ask(context.Background(), "first")
	m.SetPersona(assistant.Persona{SystemPrompt: "Be brief.", Temperature: 0.2})
	e := m.Ask(context.Background(), "second")

	if e.PlaybackID != "b" {
		t.Errorf("PlaybackID = %q, want b", e.PlaybackID)
	}
	req := provider.CompleteCalls()[1].Req
	if req.SystemPrompt != "Be brief." || req.Temperature != 0.2 {
		t.Errorf("request used %q at %v", req.SystemPrompt, req.Temperature)
	}
	if m.Persona().Greeting != assistant.DefaultGreeting {
		t.Error("SetPersona did not fill defaults")
	}
}
