// Package mock provides a recording implementation of assistant.Narrator.
package mock

import (
	"sync"

	"github.com/MrWong99/missiongenesis/internal/assistant"
	"github.com/MrWong99/missiongenesis/pkg/audio"
)

var _ assistant.Narrator = (*Narrator)(nil)

// NarrateCall records a single invocation of Narrate.
type NarrateCall struct {
	Text string
	ID   audio.PlaybackID
}

// Narrator records Narrate calls. It is safe for concurrent use.
type Narrator struct {
	mu    sync.Mutex
	calls []NarrateCall
}

// Narrate implements assistant.Narrator.
func (n *Narrator) Narrate(text string, id audio.PlaybackID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, NarrateCall{Text: text, ID: id})
}

// Calls returns a copy of all recorded calls.
func (n *Narrator) Calls() []NarrateCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NarrateCall, len(n.calls))
	copy(out, n.calls)
	return out
}

// Reset clears recorded calls.
func (n *Narrator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = nil
}
