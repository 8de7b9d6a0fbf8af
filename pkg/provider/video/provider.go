// Package video defines the Provider interface for text-to-video backends.
//
// Video generation is a long-running job: the backend accepts a prompt,
// renders for tens of seconds to minutes, and hands back one encoded clip.
// Providers block for the whole job and report their progress through the
// callback in [Request].
package video

import (
	"context"
	"errors"
	"time"
)

// ErrFiltered is returned when the backend finished the job but withheld
// every clip, typically for content-policy reasons.
var ErrFiltered = errors.New("video: all clips were filtered")

// Stage is a coarse step of a generation job.
type Stage int

const (
	// StageSubmitting is reported once before the job is sent.
	StageSubmitting Stage = iota
	// StageRendering is reported before every poll while the job runs.
	StageRendering
	// StageDownloading is reported when the finished clip is fetched.
	StageDownloading
)

// String returns the lower-case stage name.
func (s Stage) String() string {
	switch s {
	case StageSubmitting:
		return "submitting"
	case StageRendering:
		return "rendering"
	case StageDownloading:
		return "downloading"
	default:
		return "unknown"
	}
}

// Progress describes a running job.
type Progress struct {
	Stage Stage
	// Elapsed is the time since the job was submitted.
	Elapsed time.Duration
	// Polls counts status checks made so far.
	Polls int
}

// Request describes one clip to render.
type Request struct {
	Prompt         string
	NegativePrompt string

	// AspectRatio is "16:9" or "9:16". Empty leaves it to the backend.
	AspectRatio string

	// Resolution is "720p" or "1080p". Empty leaves it to the backend.
	Resolution string

	// OnProgress, when set, is called synchronously from Generate.
	OnProgress func(Progress)
}

// Report calls r.OnProgress if it is set.
func (r Request) Report(p Progress) {
	if r.OnProgress != nil {
		r.OnProgress(p)
	}
}

// Clip is an encoded video.
type Clip struct {
	Data     []byte
	MIMEType string
}

// Provider is the abstraction over any text-to-video backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Generate renders req and blocks until the clip is available, the job
	// fails, or ctx is cancelled.
	Generate(ctx context.Context, req Request) (*Clip, error)
}
