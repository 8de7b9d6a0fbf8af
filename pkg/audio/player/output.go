package player

import (
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// defaultSpeakerBuffer is the latency of the speaker's internal buffer.
const defaultSpeakerBuffer = 100 * time.Millisecond

// Output is the audio device behind a [Controller]. Lock and Unlock guard
// mutations of streamers that the device is currently pulling samples from.
type Output interface {
	// Init opens the device at the given sample rate.
	Init(sr beep.SampleRate) error

	// Play connects s to the device. The device drops s once it is drained.
	Play(s beep.Streamer)

	Lock()
	Unlock()

	// Close releases the device.
	Close()
}

// Speaker is an [Output] backed by the process-wide beep speaker.
type Speaker struct {
	// BufferDuration sets the device buffer size. Zero means 100ms.
	BufferDuration time.Duration
}

// Compile-time interface assertion.
var _ Output = (*Speaker)(nil)

// Init initialises the beep speaker.
func (s *Speaker) Init(sr beep.SampleRate) error {
	d := s.BufferDuration
	if d <= 0 {
		d = defaultSpeakerBuffer
	}
	return speaker.Init(sr, sr.N(d))
}

// Play hands st to the speaker mixer.
func (s *Speaker) Play(st beep.Streamer) { speaker.Play(st) }

// Lock locks the speaker mixer.
func (s *Speaker) Lock() { speaker.Lock() }

// Unlock unlocks the speaker mixer.
func (s *Speaker) Unlock() { speaker.Unlock() }

// Close closes the speaker.
func (s *Speaker) Close() { speaker.Close() }
