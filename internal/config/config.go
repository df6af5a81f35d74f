package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"` // json, text
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

type GenerationConfig struct {
	Provider    string  `yaml:"provider"` // gemini, openai, ollama, mock
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMS   int     `yaml:"timeout_ms"`
}

type ImagesConfig struct {
	FetchTimeoutMS   int     `yaml:"fetch_timeout_ms"`
	MaxBytes         int64   `yaml:"max_bytes"`
	CacheTTLSeconds  int     `yaml:"cache_ttl_seconds"`
	RatePerSecond    float64 `yaml:"rate_per_second"`
	Burst            int     `yaml:"burst"`
	DefaultMediaType string  `yaml:"default_media_type"`
}

type VoiceConfig struct {
	Lang string `yaml:"lang"`
	Name string `yaml:"name"`
}

type NATSConfig struct {
	Servers        []string `yaml:"servers"`
	SubjectPrefix  string   `yaml:"subject_prefix"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
	RequestTimeout int      `yaml:"request_timeout_ms"`
}

type NarrationConfig struct {
	Mode            string        `yaml:"mode"` // mock, exec, nats
	Command         string        `yaml:"command"`
	Voices          []VoiceConfig `yaml:"voices"`
	DefaultLanguage string        `yaml:"default_language"`
	Rate            float64       `yaml:"rate"`
	NATS            NATSConfig    `yaml:"nats"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type SlotsConfig struct {
	Count int `yaml:"count"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
}

type Config struct {
	ServiceName string           `yaml:"service_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Generation  GenerationConfig `yaml:"generation"`
	Images      ImagesConfig     `yaml:"images"`
	Narration   NarrationConfig  `yaml:"narration"`
	Catalog     CatalogConfig    `yaml:"catalog"`
	Slots       SlotsConfig      `yaml:"slots"`
	Store       StoreConfig      `yaml:"store"`
}

func Default() Config {
	return Config{
		ServiceName: "talkmate",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8888,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			LogFormat:      "text",
			MetricsEnabled: true,
		},
		Generation: GenerationConfig{
			Provider:    "gemini",
			Temperature: 0.4,
			TimeoutMS:   60000,
		},
		Images: ImagesConfig{
			FetchTimeoutMS:   30000,
			MaxBytes:         10 * 1024 * 1024,
			CacheTTLSeconds:  3600,
			RatePerSecond:    10,
			Burst:            4,
			DefaultMediaType: "image/jpeg",
		},
		Narration: NarrationConfig{
			Mode:            "mock",
			DefaultLanguage: "en-US",
			Rate:            0.9,
			NATS: NATSConfig{
				Servers:        []string{"nats://localhost:4222"},
				SubjectPrefix:  "talkmate.narration",
				ConnectTimeout: 2000,
				RequestTimeout: 2000,
			},
		},
		Slots: SlotsConfig{
			Count: 12,
		},
		Store: StoreConfig{
			Path:          "./data/talkmate.db",
			RetentionDays: 30,
			MaxSessions:   1000,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// TALKMATE_* environment overrides. A missing file is only an error when
// the path was given explicitly.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file: %w", err)
			}
		case os.IsNotExist(err) && !explicit:
		case os.IsNotExist(err):
			return cfg, fmt.Errorf("config file not found: %w", err)
		default:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "TALKMATE_SERVICE_NAME")
	overrideString(&cfg.Environment, "TALKMATE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "TALKMATE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "TALKMATE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "TALKMATE_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "TALKMATE_LOG_FORMAT")
	overrideBool(&cfg.Telemetry.MetricsEnabled, "TALKMATE_METRICS_ENABLED")
	overrideString(&cfg.Generation.Provider, "TALKMATE_PROVIDER")
	overrideString(&cfg.Generation.Model, "TALKMATE_MODEL")
	overrideFloat(&cfg.Generation.Temperature, "TALKMATE_TEMPERATURE")
	overrideInt(&cfg.Generation.TimeoutMS, "TALKMATE_GENERATION_TIMEOUT_MS")
	overrideInt(&cfg.Images.FetchTimeoutMS, "TALKMATE_IMAGES_FETCH_TIMEOUT_MS")
	overrideInt64(&cfg.Images.MaxBytes, "TALKMATE_IMAGES_MAX_BYTES")
	overrideInt(&cfg.Images.CacheTTLSeconds, "TALKMATE_IMAGES_CACHE_TTL_SECONDS")
	overrideFloat(&cfg.Images.RatePerSecond, "TALKMATE_IMAGES_RATE_PER_SECOND")
	overrideInt(&cfg.Images.Burst, "TALKMATE_IMAGES_BURST")
	overrideString(&cfg.Narration.Mode, "TALKMATE_NARRATION_MODE")
	overrideString(&cfg.Narration.Command, "TALKMATE_NARRATION_COMMAND")
	overrideString(&cfg.Narration.DefaultLanguage, "TALKMATE_NARRATION_DEFAULT_LANGUAGE")
	overrideFloat(&cfg.Narration.Rate, "TALKMATE_NARRATION_RATE")
	overrideStringSlice(&cfg.Narration.NATS.Servers, "TALKMATE_NATS_SERVERS")
	overrideString(&cfg.Narration.NATS.SubjectPrefix, "TALKMATE_NATS_SUBJECT_PREFIX")
	overrideString(&cfg.Catalog.Path, "TALKMATE_CATALOG_PATH")
	overrideInt(&cfg.Slots.Count, "TALKMATE_SLOTS_COUNT")
	overrideString(&cfg.Store.Path, "TALKMATE_STORE_PATH")
	overrideInt(&cfg.Store.RetentionDays, "TALKMATE_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxSessions, "TALKMATE_STORE_MAX_SESSIONS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Telemetry.LogFormat {
	case "json", "text":
	default:
		return errors.New("telemetry.log_format must be one of json|text")
	}
	switch cfg.Generation.Provider {
	case "gemini", "openai", "ollama", "mock":
	default:
		return errors.New("generation.provider must be one of gemini|openai|ollama|mock")
	}
	if cfg.Generation.TimeoutMS <= 0 {
		return errors.New("generation.timeout_ms must be positive")
	}
	if cfg.Images.FetchTimeoutMS <= 0 {
		return errors.New("images.fetch_timeout_ms must be positive")
	}
	if cfg.Images.MaxBytes <= 0 {
		return errors.New("images.max_bytes must be positive")
	}
	if cfg.Images.RatePerSecond <= 0 || cfg.Images.Burst <= 0 {
		return errors.New("images.rate_per_second and images.burst must be positive")
	}
	if !strings.HasPrefix(cfg.Images.DefaultMediaType, "image/") {
		return errors.New("images.default_media_type must be an image media type")
	}
	switch cfg.Narration.Mode {
	case "mock", "exec", "nats":
	default:
		return errors.New("narration.mode must be one of mock|exec|nats")
	}
	if cfg.Narration.Mode == "exec" && cfg.Narration.Command == "" {
		return errors.New("narration.command must be set when mode=exec")
	}
	if cfg.Narration.Mode == "nats" && len(cfg.Narration.NATS.Servers) == 0 {
		return errors.New("narration.nats.servers must not be empty when mode=nats")
	}
	if cfg.Narration.Rate <= 0 {
		return errors.New("narration.rate must be positive")
	}
	if cfg.Slots.Count <= 0 {
		return errors.New("slots.count must be >= 1")
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	return nil
}
