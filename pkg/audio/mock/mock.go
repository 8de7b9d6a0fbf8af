// Package mock provides an in-memory implementation of [audio.Player] for use
// in unit tests.
//
// The mock is safe for concurrent use. It records every Play call so that
// tests can assert on ids and decoded buffers, and it exposes exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	p := &mock.Player{}
//	narrator := narration.New(ttsProvider, p)
//	narrator.Narrate("hello", "turn-1")
//	narrator.Wait()
//	calls := p.PlayCalls()
package mock

import (
	"sync"

	"github.com/MrWong99/missiongenesis/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Player = (*Player)(nil)

// PlayCall records a single invocation of [Player.Play].
type PlayCall struct {
	Buffer *audio.Buffer
	ID     audio.PlaybackID
}

// Player is a mock implementation of [audio.Player]. Play marks the id as
// active immediately; it stays active until Stop, another Play, or Finish.
type Player struct {
	mu sync.Mutex

	// PlayErr is returned by [Player.Play] when non-nil. A failed Play does not
	// change the active id.
	PlayErr error

	active    audio.PlaybackID
	volume    audio.Volume
	playCalls []PlayCall

	// CallCountStop records how many times Stop was called.
	CallCountStop int
}

// Play implements [audio.Player].
func (p *Player) Play(buf *audio.Buffer, id audio.PlaybackID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playCalls = append(p.playCalls, PlayCall{Buffer: buf, ID: id})
	if p.PlayErr != nil {
		return p.PlayErr
	}
	p.active = id
	return nil
}

// Stop implements [audio.Player].
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountStop++
	p.active = ""
}

// Active implements [audio.Player].
func (p *Player) Active() audio.PlaybackID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// SetVolume implements [audio.Player].
func (p *Player) SetVolume(muted bool, level float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = audio.Volume{Muted: muted, Level: level}.Clamped()
}

// Volume implements [audio.Player].
func (p *Player) Volume() audio.Volume {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Finish simulates the active session draining naturally.
func (p *Player) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = ""
}

// PlayCalls returns a copy of all recorded Play calls.
func (p *Player) PlayCalls() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlayCall, len(p.playCalls))
	copy(out, p.playCalls)
	return out
}

// Reset clears recorded calls and the active id.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playCalls = nil
	p.active = ""
	p.CallCountStop = 0
}
