package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"time"
)

// pcm16Scale maps the signed 16-bit range onto [-1.0, 1.0).
const pcm16Scale = 32768.0

// PlaybackID correlates a narration with the transcript entry or greeting it
// voices. The zero value means "nothing is playing".
type PlaybackID string

// Buffer is decoded, playable audio. Samples are stored per channel so that
// Channels[c][i] is frame i of channel c.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of frames (samples per channel) in b.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// NumChannels returns the channel count of b.
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// Duration returns the playback length of b at its sample rate.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// DecodePCM16 decodes interleaved signed 16-bit little-endian PCM into a
// [Buffer]. Each sample is divided by 32768 so values lie in [-1.0, 1.0).
//
// A trailing partial frame is dropped: the frame count is
// len(pcm)/2/channels using integer division. Empty input yields an empty
// buffer. A non-empty input too short to hold one whole frame, or a
// non-positive sampleRate or channels, yields a [*MalformedAudioError].
func DecodePCM16(pcm []byte, sampleRate, channels int) (*Buffer, error) {
	if channels < 1 {
		return nil, &MalformedAudioError{Reason: "channel count must be positive", Bytes: len(pcm), Channels: channels}
	}
	if sampleRate < 1 {
		return nil, &MalformedAudioError{Reason: "sample rate must be positive", Bytes: len(pcm), Channels: channels}
	}

	frames := len(pcm) / 2 / channels
	if frames == 0 && len(pcm) > 0 {
		return nil, &MalformedAudioError{Reason: "payload shorter than one frame", Bytes: len(pcm), Channels: channels}
	}

	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for c := range channels {
		buf.Channels[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			off := (i*channels + c) * 2
			s := int16(binary.LittleEndian.Uint16(pcm[off:]))
			buf.Channels[c][i] = float32(float64(s) / pcm16Scale)
		}
	}
	return buf, nil
}

// DecodeBase64PCM16 base64-decodes (standard encoding) b64 and passes the
// result to [DecodePCM16]. Invalid base64 is reported as a
// [*MalformedAudioError].
func DecodeBase64PCM16(b64 string, sampleRate, channels int) (*Buffer, error) {
	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, &MalformedAudioError{Reason: "invalid base64 payload", Channels: channels, Err: err}
	}
	return DecodePCM16(pcm, sampleRate, channels)
}

// EncodePCM16 converts normalised samples back into signed 16-bit
// little-endian PCM. Values outside [-1.0, 1.0) are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		v := math.Round(float64(f) * pcm16Scale)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
