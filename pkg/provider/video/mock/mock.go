// Package mock provides a test double for the video.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/missiongenesis/pkg/provider/video"
)

// Provider is a mock implementation of video.Provider.
type Provider struct {
	mu sync.Mutex

	// Clip is returned by Generate when GenerateFunc is nil.
	Clip *video.Clip

	// Err, if non-nil, is returned by Generate when GenerateFunc is nil.
	Err error

	// Progress is reported through the request callback, in order, before
	// Generate returns.
	Progress []video.Progress

	// GenerateFunc, if set, overrides every field above. It is called
	// without the mock's lock held, so it may block.
	GenerateFunc func(ctx context.Context, req video.Request) (*video.Clip, error)

	requests []video.Request
}

var _ video.Provider = (*Provider)(nil)

// Generate records the call and returns the configured result.
func (p *Provider) Generate(ctx context.Context, req video.Request) (*video.Clip, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	fn, clip, err, progress := p.GenerateFunc, p.Clip, p.Err, p.Progress
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	for _, pr := range progress {
		req.Report(pr)
	}
	return clip, err
}

// Requests returns a copy of every request passed to Generate.
func (p *Provider) Requests() []video.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]video.Request, len(p.requests))
	copy(out, p.requests)
	return out
}
