package audio

// Volume is the process-wide output gain state. Level is linear in [0, 1].
type Volume struct {
	Muted bool
	Level float64
}

// Clamped returns v with Level limited to [0, 1].
func (v Volume) Clamped() Volume {
	v.Level = min(max(v.Level, 0), 1)
	return v
}

// Player plays decoded buffers on a shared output with interrupt-and-replace
// semantics: starting a new buffer always stops the one currently playing.
//
// Implementations must be safe for concurrent use.
type Player interface {
	// Play stops whatever is playing and starts buf under id. Play returns
	// once the source is connected; completion is observed through Active.
	Play(buf *Buffer, id PlaybackID) error

	// Stop stops the active source, if any. Stopping when nothing is playing
	// (or when the source already finished) is a no-op.
	Stop()

	// Active returns the id of the session currently playing, or "".
	Active() PlaybackID

	// SetVolume updates the shared gain. It applies to the in-flight session
	// immediately and to every later one.
	SetVolume(muted bool, level float64)

	// Volume returns the current gain state.
	Volume() Volume
}
