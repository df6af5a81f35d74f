package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/talkmate-aac/talkmate/internal/advisory"
	"github.com/talkmate-aac/talkmate/internal/catalog"
	"github.com/talkmate-aac/talkmate/internal/config"
	"github.com/talkmate-aac/talkmate/internal/models"
	"github.com/talkmate-aac/talkmate/internal/narration"
	"github.com/talkmate-aac/talkmate/internal/providers"
)

// Minimal PNG header, enough for content sniffing
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewProviderDefaultsModel(t *testing.T) {
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("GEMINI_MODEL", "gemini-test")

	tests := []struct {
		provider  string
		model     string
		wantModel string
		wantErr   bool
	}{
		{provider: "openai", wantModel: "gpt-4o"},
		{provider: "gemini", wantModel: "gemini-test"},
		{provider: "ollama", model: "llava", wantModel: "llava"},
		{provider: "mock", wantModel: ""},
		{provider: "bedrock", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.GenerationConfig{Provider: tt.provider, Model: tt.model}
			provider, err := newProvider(&cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unsupported provider")
				}
				return
			}
			if err != nil {
				t.Fatalf("newProvider: %v", err)
			}
			if provider == nil {
				t.Fatal("expected a provider")
			}
			if cfg.Model != tt.wantModel {
				t.Errorf("model = %q, want %q", cfg.Model, tt.wantModel)
			}
		})
	}

	cfg := config.GenerationConfig{Provider: "mock"}
	provider, _ := newProvider(&cfg)
	if _, ok := provider.(*providers.Mock); !ok {
		t.Errorf("mock provider has type %T", provider)
	}
}

func TestNewPlatform(t *testing.T) {
	logger := newLogger(config.Default())

	cfg := config.NarrationConfig{
		Mode:   "mock",
		Voices: []config.VoiceConfig{{Lang: "en-US", Name: "Alex"}},
	}
	platform, closer, err := newPlatform(cfg, logger)
	if err != nil {
		t.Fatalf("newPlatform(mock): %v", err)
	}
	defer closer()
	voices, err := platform.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 1 || voices[0] != (narration.Voice{Lang: "en-US", Name: "Alex"}) {
		t.Errorf("voices = %v", voices)
	}

	if _, _, err := newPlatform(config.NarrationConfig{Mode: "exec", Command: ""}, logger); err == nil {
		t.Error("expected error for empty exec command")
	}
	if _, _, err := newPlatform(config.NarrationConfig{Mode: "browser"}, logger); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestPictureFromArg(t *testing.T) {
	pictures := catalog.New(catalog.Default())
	dir := t.TempDir()

	png := filepath.Join(dir, "park.day.png")
	if err := os.WriteFile(png, pngBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	entry, err := pictureFromArg(pictures, "eat")
	if err != nil || entry.ID != "eat" {
		t.Errorf("catalog id: entry=%v err=%v", entry, err)
	}

	entry, err = pictureFromArg(pictures, "https://example.com/dog.png")
	if err != nil || entry.ImageSource != "https://example.com/dog.png" {
		t.Errorf("url: entry=%v err=%v", entry, err)
	}

	entry, err = pictureFromArg(pictures, png)
	if err != nil {
		t.Fatalf("local file: %v", err)
	}
	if entry.Description != "park" {
		t.Errorf("description = %q, want park", entry.Description)
	}
	if !strings.HasPrefix(entry.ImageSource, "data:image/png;base64,") {
		t.Errorf("image source = %q", entry.ImageSource)
	}

	if _, err := pictureFromArg(pictures, text); err == nil || !strings.Contains(err.Error(), catalog.InvalidFileMessage) {
		t.Errorf("text file: err = %v", err)
	}
	if _, err := pictureFromArg(pictures, filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestComposeCommandWithMockProvider(t *testing.T) {
	t.Setenv("TALKMATE_PROVIDER", "mock")
	t.Setenv("TALKMATE_NARRATION_MODE", "mock")

	dir := t.TempDir()
	first := filepath.Join(dir, "eat.png")
	second := filepath.Join(dir, "apple.png")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, pngBytes, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"compose", "--config", "", first, second})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("compose: %v (output %q)", err, out.String())
	}
	if !strings.Contains(out.String(), "2 image(s)") {
		t.Errorf("output = %q, want a sentence composed from both images", out.String())
	}
}

func TestAdviseCommandRejectsBlank(t *testing.T) {
	t.Setenv("TALKMATE_PROVIDER", "mock")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"advise", "--config", "", "insight", "   "})

	err := root.ExecuteContext(context.Background())
	if err == nil || err.Error() != "Please describe your child's actions." {
		t.Errorf("err = %v", err)
	}
}

func TestGenerationStackSharesDefaultModel(t *testing.T) {
	var mu sync.Mutex
	var sentModels []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		sentModels = append(sentModels, body.Model)
		mu.Unlock()

		content := `{"generatedSentence":"I want to eat.","analysis":"ok","interpretation":"ok"}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}))
	t.Cleanup(server.Close)

	t.Setenv("OPENAI_BASE_URL", server.URL)
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "")

	cfg := config.Default()
	cfg.Generation.Provider = "openai"
	stack, err := newGenerationStack(cfg, nil, newLogger(cfg))
	if err != nil {
		t.Fatalf("newGenerationStack: %v", err)
	}

	picture := models.PictureEntry{ID: "eat", Description: "eat", ImageSource: models.ImagePayload{MediaType: "image/png", Data: pngBytes}.DataURI()}
	if result := stack.composer.Compose(context.Background(), []models.PictureEntry{picture}); !result.OK() {
		t.Fatalf("compose failed: %+v", result.Error)
	}

	newPanel := stack.panelFactory()
	for _, kind := range []advisory.Kind{advisory.Behavior, advisory.Insight} {
		result, err := newPanel(kind).Submit(context.Background(), "He points at the fridge")
		if err != nil || !result.OK() {
			t.Fatalf("%s panel: result=%+v err=%v", kind.Mode, result, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"gpt-4o", "gpt-4o", "gpt-4o"}, sentModels); diff != "" {
		t.Errorf("models sent mismatch (-want +got):\n%s", diff)
	}
}
