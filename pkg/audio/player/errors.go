package player

import (
	"errors"
	"fmt"
)

var (
	// ErrAudioUnavailable is matched by every [*AudioUnavailableError].
	ErrAudioUnavailable = errors.New("player: audio output unavailable")

	// ErrClosed is returned by Play after Close.
	ErrClosed = errors.New("player: closed")
)

// AudioUnavailableError reports that no output device could be opened.
type AudioUnavailableError struct {
	SampleRate int
	Err        error
}

func (e *AudioUnavailableError) Error() string {
	return fmt.Sprintf("player: audio output unavailable at %dHz: %v", e.SampleRate, e.Err)
}

// Unwrap returns the device error.
func (e *AudioUnavailableError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrAudioUnavailable].
func (e *AudioUnavailableError) Is(target error) bool { return target == ErrAudioUnavailable }
