package providers

import (
	"context"

	"github.com/talkmate-aac/talkmate/internal/models"
)

// Config represents the configuration for an LLM provider call
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	// Images are sent after the prompt, in order
	Images []models.ImagePayload
	// OutputField names the single string field of the JSON object the
	// model must answer with. Empty means free text.
	OutputField string
}

// Provider defines the interface for an LLM provider
type Provider interface {
	GenerateText(ctx context.Context, config Config) (string, error)
}
