package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/talkmate-aac/talkmate/internal/models"
	"github.com/talkmate-aac/talkmate/internal/providers"
)

func TestGenerateText(t *testing.T) {
	var captured struct {
		Model  string   `json:"model"`
		Prompt string   `json:"prompt"`
		Images []string `json:"images"`
		Stream bool     `json:"stream"`
		Format string   `json:"format"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"{\"analysis\":\"The child is exploring cause and effect.\"}"}`))
	}))
	defer server.Close()

	provider := &Ollama{URL: server.URL, HTTPClient: server.Client()}
	out, err := provider.GenerateText(context.Background(), providers.Config{
		Model:       "llava",
		Prompt:      "analyze",
		Images:      []models.ImagePayload{{MediaType: "image/png", Data: []byte("eat")}},
		OutputField: "analysis",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"analysis":"The child is exploring cause and effect."}` {
		t.Errorf("Unexpected output %q", out)
	}
	if diff := cmp.Diff([]string{"ZWF0"}, captured.Images); diff != "" {
		t.Errorf("unexpected images (-want +got):\n%s", diff)
	}
	if captured.Stream {
		t.Error("Expected stream=false")
	}
	if captured.Format != "json" {
		t.Errorf("Expected json format, got %q", captured.Format)
	}
}

func TestGenerateTextNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider := &Ollama{URL: server.URL, HTTPClient: server.Client()}
	if _, err := provider.GenerateText(context.Background(), providers.Config{Model: "missing"}); err == nil {
		t.Fatal("Expected error for non-200 status")
	}
}

func TestNewUsesEnv(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://ollama.internal:11434")
	if got := New().URL; got != "http://ollama.internal:11434" {
		t.Errorf("Expected env URL, got %s", got)
	}
}
