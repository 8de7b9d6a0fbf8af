package coqui

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Coqui's VITS models render at this rate; used when a WAV has no fmt chunk.
const vitsSampleRate = 22050

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

type riffHeader struct {
	ID     [4]byte
	Size   uint32
	Format [4]byte
}

type chunkHeader struct {
	ID   [4]byte
	Size uint32
}

// fmtChunk is the fixed 16-byte prefix of a "fmt " chunk.
type fmtChunk struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// wavAudio is the PCM16 payload of a WAV response.
type wavAudio struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// decodeWAV extracts 16-bit PCM from a RIFF/WAVE file. Chunks other than
// "fmt " and "data" are skipped. A data size running past the end of the
// file, as written by streaming servers, is clamped.
func decodeWAV(b []byte) (wavAudio, error) {
	r := bytes.NewReader(b)
	var riff riffHeader
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return wavAudio{}, fmt.Errorf("coqui: wav header: %w", err)
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Format[:]) != "WAVE" {
		return wavAudio{}, errors.New("coqui: response is not a RIFF/WAVE file")
	}

	out := wavAudio{SampleRate: vitsSampleRate, Channels: 1}
	for {
		var ch chunkHeader
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			return wavAudio{}, errors.New("coqui: wav has no data chunk")
		}
		start := len(b) - r.Len()

		switch string(ch.ID[:]) {
		case "fmt ":
			var f fmtChunk
			if ch.Size < 16 || binary.Read(r, binary.LittleEndian, &f) != nil {
				return wavAudio{}, errors.New("coqui: wav fmt chunk truncated")
			}
			if f.AudioFormat != wavFormatPCM && f.AudioFormat != wavFormatExtensible {
				return wavAudio{}, fmt.Errorf("coqui: wav format %#x is not PCM", f.AudioFormat)
			}
			if f.BitsPerSample != 16 {
				return wavAudio{}, fmt.Errorf("coqui: wav has %d-bit samples, want 16", f.BitsPerSample)
			}
			out.SampleRate, out.Channels = int(f.SampleRate), int(f.Channels)
		case "data":
			end := min(start+int(ch.Size), len(b))
			out.PCM = b[start:end]
			return out, nil
		}

		// Chunks are padded to an even size.
		next := int64(start) + int64(ch.Size) + int64(ch.Size&1)
		if _, err := r.Seek(next, io.SeekStart); err != nil {
			return wavAudio{}, fmt.Errorf("coqui: wav chunk %q: %w", ch.ID[:], err)
		}
	}
}
