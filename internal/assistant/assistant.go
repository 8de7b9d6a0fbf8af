// Package assistant manages the advisor chat beside the deck.
//
// A [Manager] owns the append-only transcript, asks the LLM one question at
// a time, substitutes fallback text when the model fails or stays silent,
// and hands every advisor reply to a [Narrator] under a fresh playback id.
// The panel greeting is narrated exactly once per process.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/missiongenesis/internal/observe"
	"github.com/MrWong99/missiongenesis/pkg/audio"
	"github.com/MrWong99/missiongenesis/pkg/provider/llm"
)

// GreetingID is the playback id reserved for the panel greeting.
const GreetingID audio.PlaybackID = "intro"

// Transcript roles.
const (
	RoleUser      = llm.RoleUser
	RoleAssistant = llm.RoleAssistant
)

// Entry is one transcript line. Entries are never modified once appended.
type Entry struct {
	Role string
	Text string

	// PlaybackID is the id the entry was narrated under. Empty for user
	// entries.
	PlaybackID audio.PlaybackID
}

// Narrator speaks text without blocking.
type Narrator interface {
	Narrate(text string, id audio.PlaybackID)
}

// Option configures a [Manager].
type Option func(*Manager)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(mg *Manager) { mg.metrics = m }
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(mg *Manager) { mg.timeout = d }
}

// WithMaxTokens caps the reply length requested from the model.
func WithMaxTokens(n int) Option {
	return func(mg *Manager) { mg.maxTokens = n }
}

// WithHistoryBudget resends earlier turns with each question, dropping the
// oldest until the messages fit within tokens as counted by the provider.
// Zero (the default) sends only the new question.
func WithHistoryBudget(tokens int) Option {
	return func(mg *Manager) { mg.historyBudget = tokens }
}

// WithIDGenerator replaces the UUID playback id source.
func WithIDGenerator(fn func() audio.PlaybackID) Option {
	return func(mg *Manager) { mg.newID = fn }
}

// Manager is the assistant conversation state. It is safe for concurrent use.
type Manager struct {
	llm           llm.Provider
	narr          Narrator
	metrics       *observe.Metrics
	timeout       time.Duration
	maxTokens     int
	historyBudget int
	newID         func() audio.PlaybackID

	// askMu serialises Ask so transcript order matches question order.
	askMu sync.Mutex

	greetOnce sync.Once

	mu         sync.Mutex
	persona    Persona
	transcript []Entry
	typing     bool
	panelOpen  bool
	observers  []func()
}

// New creates a Manager answering through provider and narrating through narr.
func New(provider llm.Provider, narr Narrator, persona Persona, opts ...Option) *Manager {
	m := &Manager{
		llm:     provider,
		narr:    narr,
		persona: persona.WithDefaults(),
		newID:   func() audio.PlaybackID { return audio.PlaybackID(uuid.NewString()) },
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Ask appends question to the transcript, asks the model and appends the
// reply, or a fallback when the call fails or comes back blank. The reply is
// narrated under a fresh id and returned. Blank questions are ignored and
// yield the zero Entry.
func (m *Manager) Ask(ctx context.Context, question string) Entry {
	question = strings.TrimSpace(question)
	if question == "" {
		return Entry{}
	}

	m.askMu.Lock()
	defer m.askMu.Unlock()

	ctx, span := observe.StartSpan(ctx, "assistant.ask")
	defer span.End()

	m.mu.Lock()
	persona := m.persona
	history := append([]Entry(nil), m.transcript...)
	m.transcript = append(m.transcript, Entry{Role: RoleUser, Text: question})
	m.typing = true
	m.mu.Unlock()
	m.notify()

	caps := m.llm.Capabilities()
	maxTokens := m.maxTokens
	if caps.MaxOutputTokens > 0 && maxTokens > caps.MaxOutputTokens {
		maxTokens = caps.MaxOutputTokens
	}
	req := llm.CompletionRequest{
		SystemPrompt: persona.SystemPrompt,
		Temperature:  persona.Temperature,
		MaxTokens:    maxTokens,
		Messages:     m.messages(history, question, historyBudget(m.historyBudget, maxTokens, caps)),
	}

	callCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := m.llm.Complete(callCtx, req)
	m.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())

	var reply, status string
	switch {
	case err != nil:
		observe.Logger(ctx).Warn("assistant: completion failed", "err", err)
		span.SetStatus(codes.Error, err.Error())
		reply, status = persona.FallbackError, "error"
	case resp == nil || strings.TrimSpace(resp.Content) == "":
		reply, status = persona.FallbackEmpty, "empty"
	default:
		reply, status = strings.TrimSpace(resp.Content), "ok"
	}
	m.metrics.RecordAssistantTurn(ctx, status)
	span.SetAttributes(attribute.String("status", status))

	entry := Entry{Role: RoleAssistant, Text: reply, PlaybackID: m.newID()}
	m.mu.Lock()
	m.transcript = append(m.transcript, entry)
	m.typing = false
	m.mu.Unlock()
	m.notify()

	m.narr.Narrate(entry.Text, entry.PlaybackID)
	return entry
}

// historyBudget limits the configured budget to what the model's context
// window leaves after the reply.
func historyBudget(budget, maxTokens int, caps llm.ModelCapabilities) int {
	if budget <= 0 || caps.ContextWindow <= 0 {
		return budget
	}
	reserve := maxTokens
	if reserve <= 0 {
		reserve = caps.MaxOutputTokens
	}
	return max(min(budget, caps.ContextWindow-reserve), 0)
}

// messages builds the request messages: the question, preceded by as much
// earlier conversation as fits budget.
func (m *Manager) messages(history []Entry, question string, budget int) []llm.Message {
	q := llm.Message{Role: llm.RoleUser, Content: question}
	if budget <= 0 || len(history) == 0 {
		return []llm.Message{q}
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	for _, e := range history {
		msgs = append(msgs, llm.Message{Role: e.Role, Content: e.Text})
	}
	msgs = append(msgs, q)

	for len(msgs) > 1 {
		n, err := m.llm.CountTokens(msgs)
		if err != nil {
			slog.Warn("assistant: count tokens failed, sending question only", "err", err)
			return []llm.Message{q}
		}
		if n <= budget {
			break
		}
		msgs = msgs[1:]
	}
	// A conversation must not open with an advisor turn.
	for len(msgs) > 1 && msgs[0].Role == llm.RoleAssistant {
		msgs = msgs[1:]
	}
	return msgs
}

// OpenPanel shows the chat panel. The first call narrates the greeting under
// [GreetingID]; later calls never narrate it again.
func (m *Manager) OpenPanel() {
	m.mu.Lock()
	m.panelOpen = true
	greeting := m.persona.Greeting
	m.mu.Unlock()
	m.notify()

	m.greetOnce.Do(func() {
		m.narr.Narrate(greeting, GreetingID)
	})
}

// ClosePanel hides the chat panel.
func (m *Manager) ClosePanel() {
	m.mu.Lock()
	m.panelOpen = false
	m.mu.Unlock()
	m.notify()
}

// TogglePanel opens the panel when closed and closes it when open.
func (m *Manager) TogglePanel() {
	if m.PanelOpen() {
		m.ClosePanel()
		return
	}
	m.OpenPanel()
}

// PanelOpen reports whether the chat panel is visible.
func (m *Manager) PanelOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panelOpen
}

// Transcript returns a copy of the conversation so far.
func (m *Manager) Transcript() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.transcript))
	copy(out, m.transcript)
	return out
}

// Typing reports whether a reply is being generated.
func (m *Manager) Typing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.typing
}

// Greeting returns the persona greeting.
func (m *Manager) Greeting() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persona.Greeting
}

// Persona returns the active persona.
func (m *Manager) Persona() Persona {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persona
}

// SetPersona replaces the persona for subsequent questions.
func (m *Manager) SetPersona(p Persona) {
	m.mu.Lock()
	m.persona = p.WithDefaults()
	m.mu.Unlock()
	m.notify()
}

// OnChange registers fn to run after every transcript, typing or panel
// change. fn runs on the goroutine that made the change, without locks held.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Manager) notify() {
	m.mu.Lock()
	obs := append(([]func())(nil), m.observers...)
	m.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}
