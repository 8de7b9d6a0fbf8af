// Package gemini provides a text-to-video provider backed by Google's Veo
// models through the google.golang.org/genai SDK.
//
// A Veo job is a long-running operation: GenerateVideos returns immediately
// and the operation is polled until it reports done. Clips produced by the
// Gemini Developer API are referenced by URI and fetched through the Files
// service.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/MrWong99/missiongenesis/pkg/provider/video"
)

const (
	// DefaultModel is the Veo model used when none is configured.
	DefaultModel = "veo-3.1-fast-generate-preview"

	// DefaultPollInterval is the wait between operation status checks.
	DefaultPollInterval = 5 * time.Second

	defaultMIMEType = "video/mp4"
)

// videoModels is the subset of *genai.Models used by the provider.
type videoModels interface {
	GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

// operations is the subset of *genai.Operations used by the provider.
type operations interface {
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

// downloader is the subset of *genai.Files used by the provider.
type downloader interface {
	Download(ctx context.Context, uri genai.DownloadURI, config *genai.DownloadFileConfig) ([]byte, error)
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Veo model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithPollInterval sets the wait between status checks.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.poll = d
		}
	}
}

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements video.Provider using Veo.
type Provider struct {
	models  videoModels
	ops     operations
	files   downloader
	model   string
	poll    time.Duration
	baseURL string
	now     func() time.Time
}

var _ video.Provider = (*Provider)(nil)

// New creates a Veo provider. apiKey must be non-empty.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: apiKey must not be empty")
	}
	p := newProvider(opts...)

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	p.models, p.ops, p.files = client.Models, client.Operations, client.Files
	return p, nil
}

func newProvider(opts ...Option) *Provider {
	p := &Provider{model: DefaultModel, poll: DefaultPollInterval, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Model returns the configured Veo model.
func (p *Provider) Model() string { return p.model }

// Generate implements video.Provider. It renders a single clip.
func (p *Provider) Generate(ctx context.Context, req video.Request) (*video.Clip, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("gemini: prompt must not be empty")
	}
	start := p.now()
	req.Report(video.Progress{Stage: video.StageSubmitting})

	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    req.AspectRatio,
		Resolution:     req.Resolution,
		NegativePrompt: req.NegativePrompt,
	}
	op, err := p.models.GenerateVideos(ctx, p.model, req.Prompt, nil, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate videos: %w", err)
	}

	polls := 0
	for op != nil && !op.Done {
		req.Report(video.Progress{Stage: video.StageRendering, Elapsed: p.now().Sub(start), Polls: polls})
		if err := sleep(ctx, p.poll); err != nil {
			return nil, fmt.Errorf("gemini: wait for %s: %w", op.Name, err)
		}
		polls++
		if op, err = p.ops.GetVideosOperation(ctx, op, nil); err != nil {
			return nil, fmt.Errorf("gemini: poll operation: %w", err)
		}
	}
	if op == nil {
		return nil, errors.New("gemini: operation vanished")
	}
	if len(op.Error) > 0 {
		return nil, fmt.Errorf("gemini: operation %s failed: %s", op.Name, operationError(op.Error))
	}

	generated, err := firstVideo(op.Response)
	if err != nil {
		return nil, err
	}
	clip := &video.Clip{
		Data:     generated.Video.VideoBytes,
		MIMEType: generated.Video.MIMEType,
	}
	if clip.MIMEType == "" {
		clip.MIMEType = defaultMIMEType
	}
	if len(clip.Data) > 0 {
		return clip, nil
	}

	req.Report(video.Progress{Stage: video.StageDownloading, Elapsed: p.now().Sub(start), Polls: polls})
	if clip.Data, err = p.files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(generated), nil); err != nil {
		return nil, fmt.Errorf("gemini: download %s: %w", generated.Video.URI, err)
	}
	if len(clip.Data) == 0 {
		return nil, errors.New("gemini: downloaded clip is empty")
	}
	return clip, nil
}

// firstVideo returns the first usable clip of resp.
func firstVideo(resp *genai.GenerateVideosResponse) (*genai.GeneratedVideo, error) {
	if resp == nil {
		return nil, errors.New("gemini: operation finished without a response")
	}
	for _, v := range resp.GeneratedVideos {
		if v != nil && v.Video != nil && (len(v.Video.VideoBytes) > 0 || v.Video.URI != "") {
			return v, nil
		}
	}
	if resp.RAIMediaFilteredCount > 0 {
		return nil, fmt.Errorf("%w: %s", video.ErrFiltered, strings.Join(resp.RAIMediaFilteredReasons, "; "))
	}
	return nil, errors.New("gemini: operation returned no videos")
}

// operationError extracts the message of a google.rpc.Status map.
func operationError(e map[string]any) string {
	if msg, ok := e["message"].(string); ok && msg != "" {
		return msg
	}
	return fmt.Sprint(e)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
