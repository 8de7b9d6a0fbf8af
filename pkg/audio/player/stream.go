package player

import (
	"math"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/MrWong99/missiongenesis/pkg/audio"
)

// gainBase is the exponent base used with effects.Volume; a linear level L
// maps to Volume = log2(L).
const gainBase = 2

// bufferStreamer streams an [audio.Buffer] as stereo frames. Mono buffers are
// duplicated onto both speaker channels; channels past the second are ignored.
type bufferStreamer struct {
	buf *audio.Buffer
	pos int
}

var _ beep.StreamSeeker = (*bufferStreamer)(nil)

func newBufferStreamer(buf *audio.Buffer) *bufferStreamer {
	return &bufferStreamer{buf: buf}
}

func (s *bufferStreamer) Stream(samples [][2]float64) (int, bool) {
	frames := s.buf.Frames()
	if s.pos >= frames {
		return 0, false
	}
	left := s.buf.Channels[0]
	right := left
	if len(s.buf.Channels) > 1 {
		right = s.buf.Channels[1]
	}
	n := min(len(samples), frames-s.pos)
	for i := range n {
		samples[i][0] = float64(left[s.pos+i])
		samples[i][1] = float64(right[s.pos+i])
	}
	s.pos += n
	return n, true
}

func (s *bufferStreamer) Err() error { return nil }

func (s *bufferStreamer) Len() int { return s.buf.Frames() }

func (s *bufferStreamer) Position() int { return s.pos }

func (s *bufferStreamer) Seek(p int) error {
	s.pos = min(max(p, 0), s.buf.Frames())
	return nil
}

// applyVolume copies v onto g. The caller must hold the output lock when g
// is connected to a device.
func applyVolume(g *effects.Volume, v audio.Volume) {
	v = v.Clamped()
	g.Base = gainBase
	if v.Muted || v.Level == 0 {
		g.Silent = true
		g.Volume = 0
		return
	}
	g.Silent = false
	g.Volume = math.Log2(v.Level)
}
