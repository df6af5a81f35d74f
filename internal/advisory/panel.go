// Package advisory implements the free-text panels that ask the generation
// provider for a behavior analysis or an interpretation of a child's actions.
package advisory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/talkmate-aac/talkmate/internal/config"
	"github.com/talkmate-aac/talkmate/internal/models"
	"github.com/talkmate-aac/talkmate/internal/outcome"
	"github.com/talkmate-aac/talkmate/internal/prompts"
	"github.com/talkmate-aac/talkmate/internal/providers"
	"github.com/talkmate-aac/talkmate/internal/telemetry"
)

// Kind describes one panel flavor
type Kind struct {
	Mode           prompts.Mode
	BlankMessage   string
	FailureMessage string
}

var (
	Behavior = Kind{
		Mode:           prompts.ModeBehavior,
		BlankMessage:   "Please describe the video of your child's actions.",
		FailureMessage: "Failed to analyze behavior. Please try again.",
	}
	Insight = Kind{
		Mode:           prompts.ModeInsight,
		BlankMessage:   "Please describe your child's actions.",
		FailureMessage: "Failed to interpret actions. Please try again.",
	}
)

// Panel runs one submission at a time and keeps the last outcome for display
type Panel struct {
	kind        Kind
	provider    providers.Provider
	prompts     *prompts.Builder
	model       string
	temperature float64
	timeout     time.Duration
	metrics     *telemetry.Metrics
	logger      *slog.Logger

	mu         sync.Mutex
	submitting bool
	last       outcome.Result
}

func NewPanel(kind Kind, provider providers.Provider, builder *prompts.Builder, cfg config.GenerationConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Panel {
	return &Panel{
		kind:        kind,
		provider:    provider,
		prompts:     builder,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     time.Duration(cfg.TimeoutMS) * time.Millisecond,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "advisory"), slog.String("panel", string(kind.Mode))),
	}
}

// Submit asks for advice about description. The error is non-nil only when a
// submission is already in flight (outcome.ErrBusy); every other failure is
// carried by the Result.
func (p *Panel) Submit(ctx context.Context, description string) (outcome.Result, error) {
	description = strings.TrimSpace(description)

	p.mu.Lock()
	if p.submitting {
		p.mu.Unlock()
		return outcome.Result{}, outcome.ErrBusy
	}
	if description == "" {
		p.last = outcome.Result{Error: &outcome.Failure{Category: outcome.CategoryValidation, Message: p.kind.BlankMessage}}
		result := p.last
		p.mu.Unlock()
		return result, nil
	}
	p.submitting = true
	p.last = outcome.Result{}
	p.mu.Unlock()

	start := time.Now()
	text, err := p.generate(ctx, description)
	var result outcome.Result
	if err != nil {
		result = outcome.FromError(err, p.kind.FailureMessage)
		p.logger.Error("Advisory generation failed", "error", err)
		p.metrics.RecordRequest(ctx, string(p.kind.Mode), string(result.Error.Category), time.Since(start))
	} else {
		result = outcome.Success(text)
		p.metrics.RecordRequest(ctx, string(p.kind.Mode), "ok", time.Since(start))
	}

	p.mu.Lock()
	p.submitting = false
	p.last = result
	p.mu.Unlock()
	return result, nil
}

func (p *Panel) generate(ctx context.Context, description string) (string, error) {
	prompt, err := p.prompts.Build(p.kind.Mode, prompts.TemplateData{Description: description})
	if err != nil {
		return "", &outcome.GenerationError{Err: err}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	field := prompts.OutputField[p.kind.Mode]
	raw, err := p.provider.GenerateText(ctx, providers.Config{
		Model:       p.model,
		Temperature: p.temperature,
		Prompt:      prompt,
		OutputField: field,
	})
	if err != nil {
		return "", &outcome.GenerationError{Err: err}
	}

	text, err := providers.ExtractField(raw, field)
	if err != nil {
		return "", &outcome.GenerationError{Err: err}
	}
	return text, nil
}

// Busy reports whether a submission is in flight
func (p *Panel) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitting
}

// View returns a snapshot of the panel state
func (p *Panel) View() models.PanelView {
	p.mu.Lock()
	defer p.mu.Unlock()
	view := models.PanelView{Submitting: p.submitting, Result: p.last.Value}
	if p.last.Error != nil {
		view.Error = p.last.Error.Message
	}
	return view
}
