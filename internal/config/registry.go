package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/missiongenesis/pkg/provider/llm"
	"github.com/MrWong99/missiongenesis/pkg/provider/tts"
	"github.com/MrWong99/missiongenesis/pkg/provider/video"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// factories maps provider names to constructors of one provider kind.
type factories[T any] map[string]func(ProviderEntry) (T, error)

func (f factories[T]) create(kind string, entry ProviderEntry) (T, error) {
	factory, ok := f[entry.Name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

func (f factories[T]) names() []string {
	out := make([]string, 0, len(f))
	for name := range f {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Registry maps provider names to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm   factories[llm.Provider]
	tts   factories[tts.Provider]
	video factories[video.Provider]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:   make(factories[llm.Provider]),
		tts:   make(factories[tts.Provider]),
		video: make(factories[video.Provider]),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterVideo registers a video provider factory under name.
func (r *Registry) RegisterVideo(name string, factory func(ProviderEntry) (video.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.video[name] = factory
}

// CreateLLM instantiates the LLM provider registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create("llm", entry)
}

// CreateTTS instantiates the TTS provider registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.create("tts", entry)
}

// CreateVideo instantiates the video provider registered under entry.Name.
func (r *Registry) CreateVideo(entry ProviderEntry) (video.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.video.create("video", entry)
}

// LLMNames returns the registered LLM provider names, sorted.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.names()
}

// TTSNames returns the registered TTS provider names, sorted.
func (r *Registry) TTSNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.names()
}

// VideoNames returns the registered video provider names, sorted.
func (r *Registry) VideoNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.video.names()
}
