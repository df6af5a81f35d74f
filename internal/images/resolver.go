package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/talkmate-aac/talkmate/internal/config"
	"github.com/talkmate-aac/talkmate/internal/models"
	"github.com/talkmate-aac/talkmate/internal/outcome"
	"github.com/talkmate-aac/talkmate/internal/telemetry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Resolver turns picture image sources into self-contained payloads
type Resolver struct {
	HTTPClient       *http.Client
	MaxBytes         int64
	DefaultMediaType string

	cache   *cache.Cache
	limiter *rate.Limiter
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewResolver creates a resolver from the images configuration
func NewResolver(cfg config.ImagesConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Resolver {
	r := &Resolver{
		HTTPClient: &http.Client{
			Timeout: time.Duration(cfg.FetchTimeoutMS) * time.Millisecond,
		},
		MaxBytes:         cfg.MaxBytes,
		DefaultMediaType: cfg.DefaultMediaType,
		limiter:          rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		metrics:          metrics,
		logger:           logger.With(slog.String("component", "image-resolver")),
	}
	if cfg.CacheTTLSeconds > 0 {
		ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
		r.cache = cache.New(ttl, 2*ttl)
	}
	return r
}

// ResolveAll resolves every entry concurrently and returns payloads in the
// same order. If any entry fails the whole call fails.
func (r *Resolver) ResolveAll(ctx context.Context, entries []models.PictureEntry) ([]models.ImagePayload, error) {
	payloads := make([]models.ImagePayload, len(entries))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		eg.Go(func() error {
			payload, err := r.Resolve(egCtx, entry)
			if err != nil {
				return err
			}
			payloads[i] = payload
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// Resolve passes embedded sources through and fetches remote ones
func (r *Resolver) Resolve(ctx context.Context, entry models.PictureEntry) (models.ImagePayload, error) {
	if entry.Embedded() {
		payload, err := models.ParseDataURI(entry.ImageSource)
		if err != nil {
			return models.ImagePayload{}, &outcome.FetchError{Source: entry.ID, Err: err}
		}
		return payload, nil
	}

	if r.cache != nil {
		if cached, ok := r.cache.Get(entry.ImageSource); ok {
			r.metrics.RecordFetch(ctx, "cached")
			return cached.(models.ImagePayload), nil
		}
	}

	payload, err := r.fetch(ctx, entry.ImageSource)
	if err != nil {
		r.metrics.RecordFetch(ctx, "error")
		r.logger.Warn("Failed to fetch image", "id", entry.ID, "url", entry.ImageSource, "error", err)
		return models.ImagePayload{}, &outcome.FetchError{Source: entry.ImageSource, Err: err}
	}
	r.metrics.RecordFetch(ctx, "ok")

	if r.cache != nil {
		r.cache.Set(entry.ImageSource, payload, cache.DefaultExpiration)
	}
	return payload, nil
}

func (r *Resolver) fetch(ctx context.Context, imageURL string) (models.ImagePayload, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return models.ImagePayload{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return models.ImagePayload{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return models.ImagePayload{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ImagePayload{}, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.MaxBytes+1))
	if err != nil {
		return models.ImagePayload{}, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > r.MaxBytes {
		return models.ImagePayload{}, fmt.Errorf("image too large (max %d bytes)", r.MaxBytes)
	}

	return models.ImagePayload{
		MediaType: r.mediaType(resp.Header.Get("Content-Type")),
		Data:      data,
	}, nil
}

func (r *Resolver) mediaType(contentType string) string {
	if contentType == "" {
		return r.DefaultMediaType
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		return r.DefaultMediaType
	}
	return mediaType
}
