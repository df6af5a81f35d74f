package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/talkmate-aac/talkmate/internal/advisory"
	"github.com/talkmate-aac/talkmate/internal/composition"
	"github.com/talkmate-aac/talkmate/internal/config"
	"github.com/talkmate-aac/talkmate/internal/gemini"
	"github.com/talkmate-aac/talkmate/internal/images"
	"github.com/talkmate-aac/talkmate/internal/narration"
	"github.com/talkmate-aac/talkmate/internal/ollama"
	"github.com/talkmate-aac/talkmate/internal/openai"
	"github.com/talkmate-aac/talkmate/internal/prompts"
	"github.com/talkmate-aac/talkmate/internal/providers"
	"github.com/talkmate-aac/talkmate/internal/telemetry"
)

// loadConfig reads the --config file. The default path may be absent.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path, cmd.Flags().Changed("config"))
}

func newLogger(cfg config.Config) *slog.Logger {
	logger := telemetry.NewLogger(cfg.Telemetry, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// defaultModel mirrors the per-provider model environment variables
func defaultModel(provider string) string {
	switch provider {
	case "openai":
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			return model
		}
		return "gpt-4o"
	case "ollama":
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			return model
		}
		return "mistral-small3.2:24b"
	case "gemini":
		if model := os.Getenv("GEMINI_MODEL"); model != "" {
			return model
		}
		return "gemini-2.5-flash"
	default:
		return ""
	}
}

// newProvider builds the generation provider and fills in the default model
func newProvider(cfg *config.GenerationConfig) (providers.Provider, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModel(cfg.Provider)
	}
	switch cfg.Provider {
	case "gemini":
		return gemini.New(), nil
	case "openai":
		return openai.New(), nil
	case "ollama":
		return ollama.New(), nil
	case "mock":
		return providers.NewMock(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// newPlatform builds the speech platform. The returned closer releases any
// connection the platform holds.
func newPlatform(cfg config.NarrationConfig, logger *slog.Logger) (narration.Platform, func(), error) {
	voices := make([]narration.Voice, len(cfg.Voices))
	for i, v := range cfg.Voices {
		voices[i] = narration.Voice{Lang: v.Lang, Name: v.Name}
	}

	switch cfg.Mode {
	case "exec":
		platform, err := narration.NewExec(cfg.Command, voices)
		if err != nil {
			return nil, nil, err
		}
		return platform, func() {}, nil
	case "nats":
		platform, err := narration.ConnectNATS(cfg.NATS, logger)
		if err != nil {
			return nil, nil, err
		}
		return platform, platform.Close, nil
	case "mock":
		return narration.NewMock(voices), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported narration mode: %s", cfg.Mode)
	}
}

// startNarration connects the platform and starts the engine
func startNarration(ctx context.Context, cfg config.NarrationConfig, metrics *telemetry.Metrics, logger *slog.Logger) (*narration.Engine, func(), error) {
	platform, closePlatform, err := newPlatform(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	engine := narration.NewEngine(platform, cfg, metrics, logger)
	if err := engine.Start(ctx); err != nil {
		closePlatform()
		return nil, nil, fmt.Errorf("start narration: %w", err)
	}
	return engine, func() {
		engine.Close()
		closePlatform()
	}, nil
}

// generationStack is what the compose and advise paths share. cfg holds the
// generation settings with the provider default model filled in.
type generationStack struct {
	cfg      config.GenerationConfig
	provider providers.Provider
	builder  *prompts.Builder
	resolver *images.Resolver
	composer *composition.Service
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func newGenerationStack(cfg config.Config, metrics *telemetry.Metrics, logger *slog.Logger) (*generationStack, error) {
	generation := cfg.Generation
	provider, err := newProvider(&generation)
	if err != nil {
		return nil, err
	}
	builder, err := prompts.NewBuilder()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	resolver := images.NewResolver(cfg.Images, metrics, logger)
	logger.Info("Generation provider ready", "provider", generation.Provider, "model", generation.Model)
	return &generationStack{
		cfg:      generation,
		provider: provider,
		builder:  builder,
		resolver: resolver,
		composer: composition.NewService(provider, resolver, builder, generation, metrics, logger),
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// panelFactory builds advisory panels sharing the stack's provider and model
func (g *generationStack) panelFactory() func(advisory.Kind) *advisory.Panel {
	return func(kind advisory.Kind) *advisory.Panel {
		return advisory.NewPanel(kind, g.provider, g.builder, g.cfg, g.metrics, g.logger)
	}
}
