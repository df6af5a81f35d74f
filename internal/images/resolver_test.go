package images

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/talkmate-aac/talkmate/internal/config"
	"github.com/talkmate-aac/talkmate/internal/models"
	"github.com/talkmate-aac/talkmate/internal/outcome"
)

func newTestResolver(cacheTTL int) *Resolver {
	cfg := config.Default().Images
	cfg.CacheTTLSeconds = cacheTTL
	cfg.RatePerSecond = 1000
	cfg.Burst = 100
	cfg.MaxBytes = 64
	return NewResolver(cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func imageServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch r.URL.Path {
		case "/eat.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("eat-bytes"))
		case "/apple.webp":
			w.Header().Set("Content-Type", "image/webp; charset=binary")
			_, _ = w.Write([]byte("apple-bytes"))
		case "/untyped":
			w.Header()["Content-Type"] = nil
			_, _ = w.Write([]byte("raw"))
		case "/huge":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(make([]byte, 128))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestResolveEmbeddedPassThrough(t *testing.T) {
	r := newTestResolver(0)
	entry := models.PictureEntry{ID: "up", ImageSource: "data:image/gif;base64,R0lG"}

	payload, err := r.Resolve(context.Background(), entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.MediaType != "image/gif" || string(payload.Data) != "GIF" {
		t.Errorf("Unexpected payload %+v", payload)
	}
	if payload.DataURI() != entry.ImageSource {
		t.Errorf("Expected data URI round trip, got %s", payload.DataURI())
	}
}

func TestResolveRemote(t *testing.T) {
	server := imageServer(t, nil)
	r := newTestResolver(0)

	tests := []struct {
		name      string
		path      string
		mediaType string
		data      string
	}{
		{"declared type", "/eat.png", "image/png", "eat-bytes"},
		{"type parameters are dropped", "/apple.webp", "image/webp", "apple-bytes"},
		{"missing type defaults", "/untyped", "image/jpeg", "raw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := r.Resolve(context.Background(), models.PictureEntry{ID: tt.name, ImageSource: server.URL + tt.path})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if payload.MediaType != tt.mediaType {
				t.Errorf("Expected media type %s, got %s", tt.mediaType, payload.MediaType)
			}
			if string(payload.Data) != tt.data {
				t.Errorf("Expected data %q, got %q", tt.data, payload.Data)
			}
		})
	}
}

func TestResolveFailures(t *testing.T) {
	server := imageServer(t, nil)
	r := newTestResolver(0)

	tests := []struct {
		name   string
		source string
	}{
		{"non-success status", server.URL + "/missing.png"},
		{"body too large", server.URL + "/huge"},
		{"unreachable host", "http://127.0.0.1:1/nothing.png"},
		{"malformed data uri", "data:image/png,notbase64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), models.PictureEntry{ID: "x", ImageSource: tt.source})
			var fetchErr *outcome.FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("Expected FetchError, got %v", err)
			}
		})
	}
}

func TestResolveAllKeepsOrder(t *testing.T) {
	server := imageServer(t, nil)
	r := newTestResolver(0)

	entries := []models.PictureEntry{
		{ID: "apple", ImageSource: server.URL + "/apple.webp"},
		{ID: "eat", ImageSource: server.URL + "/eat.png"},
		{ID: "up", ImageSource: "data:image/gif;base64,R0lG"},
	}
	payloads, err := r.ResolveAll(context.Background(), entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"apple-bytes", "eat-bytes", "GIF"}
	for i, p := range payloads {
		if string(p.Data) != want[i] {
			t.Errorf("payload %d: expected %q, got %q", i, want[i], p.Data)
		}
	}
}

func TestResolveAllFailsWhole(t *testing.T) {
	server := imageServer(t, nil)
	r := newTestResolver(0)

	entries := []models.PictureEntry{
		{ID: "eat", ImageSource: server.URL + "/eat.png"},
		{ID: "gone", ImageSource: server.URL + "/gone.png"},
	}
	payloads, err := r.ResolveAll(context.Background(), entries)
	if err == nil {
		t.Fatal("Expected error when one fetch fails")
	}
	if payloads != nil {
		t.Errorf("Expected no partial payloads, got %d", len(payloads))
	}
}

func TestResolveUsesCache(t *testing.T) {
	var hits atomic.Int32
	server := imageServer(t, &hits)
	r := newTestResolver(60)

	entry := models.PictureEntry{ID: "eat", ImageSource: server.URL + "/eat.png"}
	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("Expected 1 upstream fetch, got %d", got)
	}
}
