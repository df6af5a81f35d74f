// Package composition turns an ordered selection of pictures into a single
// generated sentence.
package composition

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/talkmate-aac/talkmate/internal/config"
	"github.com/talkmate-aac/talkmate/internal/models"
	"github.com/talkmate-aac/talkmate/internal/outcome"
	"github.com/talkmate-aac/talkmate/internal/prompts"
	"github.com/talkmate-aac/talkmate/internal/providers"
	"github.com/talkmate-aac/talkmate/internal/telemetry"
)

const (
	// NoImagesMessage is returned for an empty selection
	NoImagesMessage = "No images selected."
	// FailureMessage is shown for every fetch or generation failure
	FailureMessage = "Failed to generate sentence. Please try again."
)

// ImageResolver resolves entries into payloads in order, all or nothing
type ImageResolver interface {
	ResolveAll(ctx context.Context, entries []models.PictureEntry) ([]models.ImagePayload, error)
}

type Service struct {
	provider    providers.Provider
	resolver    ImageResolver
	prompts     *prompts.Builder
	model       string
	temperature float64
	timeout     time.Duration
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

func NewService(provider providers.Provider, resolver ImageResolver, builder *prompts.Builder, cfg config.GenerationConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Service {
	return &Service{
		provider:    provider,
		resolver:    resolver,
		prompts:     builder,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     time.Duration(cfg.TimeoutMS) * time.Millisecond,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "composition")),
	}
}

// Compose generates one sentence describing entries in order. Failures are
// returned as a Result; causes are logged, never shown.
func (s *Service) Compose(ctx context.Context, entries []models.PictureEntry) outcome.Result {
	start := time.Now()
	sentence, err := s.compose(ctx, entries)
	if err != nil {
		result := outcome.FromError(err, FailureMessage)
		s.metrics.RecordRequest(ctx, "compose", string(result.Error.Category), time.Since(start))
		if result.Error.Category != outcome.CategoryValidation {
			s.logger.Error("An error occurred during sentence generation", "images", len(entries), "error", err)
		}
		return result
	}

	s.metrics.RecordRequest(ctx, "compose", "ok", time.Since(start))
	s.logger.Info("Generated sentence", "images", len(entries), "length", len(sentence))
	return outcome.Success(sentence)
}

func (s *Service) compose(ctx context.Context, entries []models.PictureEntry) (string, error) {
	if len(entries) == 0 {
		return "", &outcome.ValidationError{Message: NoImagesMessage}
	}

	payloads, err := s.resolver.ResolveAll(ctx, entries)
	if err != nil {
		var fetchErr *outcome.FetchError
		if !errors.As(err, &fetchErr) {
			err = &outcome.FetchError{Source: "selection", Err: err}
		}
		return "", err
	}

	labels := make([]prompts.ImageLabel, len(entries))
	for i, entry := range entries {
		labels[i] = prompts.ImageLabel{Position: i + 1, Description: entry.Description, Hint: entry.ImageHint}
	}
	prompt, err := s.prompts.Build(prompts.ModeSentence, prompts.TemplateData{Images: labels})
	if err != nil {
		return "", &outcome.GenerationError{Err: err}
	}

	field := prompts.OutputField[prompts.ModeSentence]
	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	raw, err := s.provider.GenerateText(genCtx, providers.Config{
		Model:       s.model,
		Temperature: s.temperature,
		Prompt:      prompt,
		Images:      payloads,
		OutputField: field,
	})
	if err != nil {
		return "", &outcome.GenerationError{Err: err}
	}

	sentence, err := providers.ExtractField(raw, field)
	if err != nil {
		return "", &outcome.GenerationError{Err: err}
	}
	return sentence, nil
}
