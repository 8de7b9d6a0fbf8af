package audio

import (
	"errors"
	"fmt"
)

// ErrMalformedAudio is matched by every [*MalformedAudioError] via errors.Is.
var ErrMalformedAudio = errors.New("audio: malformed audio")

// MalformedAudioError reports a PCM payload whose structure does not fit the
// requested sample width and channel layout.
type MalformedAudioError struct {
	Reason   string
	Bytes    int
	Channels int
	Err      error
}

func (e *MalformedAudioError) Error() string {
	msg := fmt.Sprintf("audio: malformed audio: %s (bytes=%d channels=%d)", e.Reason, e.Bytes, e.Channels)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *MalformedAudioError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrMalformedAudio].
func (e *MalformedAudioError) Is(target error) bool { return target == ErrMalformedAudio }
