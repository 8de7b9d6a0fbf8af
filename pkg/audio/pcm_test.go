package audio_test

import (
	"encoding/base64"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/missiongenesis/pkg/audio"
)

func TestDecodePCM16_FrameCountAndRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		samples  []int16
		channels int
		frames   int
	}{
		{name: "mono", samples: []int16{0, 1, -1, 32767, -32768}, channels: 1, frames: 5},
		{name: "stereo", samples: []int16{100, -100, 200, -200}, channels: 2, frames: 2},
		{name: "three channels", samples: []int16{1, 2, 3, 4, 5, 6}, channels: 3, frames: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf, err := audio.DecodePCM16(samplesToBytes(tt.samples), 24000, tt.channels)
			if err != nil {
				t.Fatalf("DecodePCM16: %v", err)
			}
			if buf.NumChannels() != tt.channels {
				t.Fatalf("channels = %d, want %d", buf.NumChannels(), tt.channels)
			}
			for c, ch := range buf.Channels {
				if len(ch) != tt.frames {
					t.Errorf("channel %d frames = %d, want %d", c, len(ch), tt.frames)
				}
				for i, v := range ch {
					if v < -1.0 || v >= 1.0 {
						t.Errorf("channel %d sample %d = %v, outside [-1, 1)", c, i, v)
					}
				}
			}
		})
	}
}

func TestDecodePCM16_InterleavedOrder(t *testing.T) {
	t.Parallel()

	// frame 0: L=16384 R=-16384, frame 1: L=8192 R=-8192
	buf, err := audio.DecodePCM16(samplesToBytes([]int16{16384, -16384, 8192, -8192}), 24000, 2)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	want := [][]float32{{0.5, 0.25}, {-0.5, -0.25}}
	for c := range want {
		for i := range want[c] {
			if got := buf.Channels[c][i]; got != want[c][i] {
				t.Errorf("Channels[%d][%d] = %v, want %v", c, i, got, want[c][i])
			}
		}
	}
}

func TestDecodePCM16_RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.5, -0.5, 0.123, -0.999, 0.75, -1}
	buf, err := audio.DecodePCM16(audio.EncodePCM16(in), 24000, 1)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	for i, want := range in {
		got := buf.Channels[0][i]
		if math.Abs(float64(got-want)) > 1.0/32768 {
			t.Errorf("sample %d = %v, want %v (±1/32768)", i, got, want)
		}
	}
}

func TestDecodePCM16_TruncatesPartialFrame(t *testing.T) {
	t.Parallel()

	// 3 whole stereo frames plus a dangling left sample and an odd byte.
	pcm := append(samplesToBytes([]int16{1, 2, 3, 4, 5, 6, 7}), 0xFF)
	buf, err := audio.DecodePCM16(pcm, 24000, 2)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if got := buf.Frames(); got != 3 {
		t.Errorf("Frames() = %d, want 3", got)
	}
}

func TestDecodePCM16_Empty(t *testing.T) {
	t.Parallel()

	buf, err := audio.DecodePCM16(nil, 24000, 1)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if buf.Frames() != 0 || buf.Duration() != 0 {
		t.Errorf("expected empty buffer, got %d frames / %v", buf.Frames(), buf.Duration())
	}
}

func TestDecodePCM16_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pcm        []byte
		sampleRate int
		channels   int
	}{
		{name: "zero channels", pcm: []byte{0, 0}, sampleRate: 24000, channels: 0},
		{name: "zero sample rate", pcm: []byte{0, 0}, sampleRate: 0, channels: 1},
		{name: "shorter than a frame", pcm: []byte{0, 0, 0}, sampleRate: 24000, channels: 2},
		{name: "single byte", pcm: []byte{7}, sampleRate: 24000, channels: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := audio.DecodePCM16(tt.pcm, tt.sampleRate, tt.channels)
			if !errors.Is(err, audio.ErrMalformedAudio) {
				t.Fatalf("err = %v, want ErrMalformedAudio", err)
			}
			var mae *audio.MalformedAudioError
			if !errors.As(err, &mae) {
				t.Fatalf("expected *MalformedAudioError, got %T", err)
			}
		})
	}
}

func TestDecodeBase64PCM16(t *testing.T) {
	t.Parallel()

	pcm := samplesToBytes(make([]int16, 24000))
	buf, err := audio.DecodeBase64PCM16(base64.StdEncoding.EncodeToString(pcm), 24000, 1)
	if err != nil {
		t.Fatalf("DecodeBase64PCM16: %v", err)
	}
	if got := buf.Duration(); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}

	_, err = audio.DecodeBase64PCM16("not base64!!", 24000, 1)
	if !errors.Is(err, audio.ErrMalformedAudio) {
		t.Errorf("err = %v, want ErrMalformedAudio", err)
	}
}

func TestEncodePCM16_Clamps(t *testing.T) {
	t.Parallel()

	got := bytesToSamples(audio.EncodePCM16([]float32{2, -2}))
	if got[0] != 32767 || got[1] != -32768 {
		t.Errorf("got %v, want [32767 -32768]", got)
	}
}
