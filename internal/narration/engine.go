// Package narration speaks generated sentences through a pluggable speech
// platform, one utterance at a time.
package narration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/talkmate-aac/talkmate/internal/config"
	"github.com/talkmate-aac/talkmate/internal/telemetry"
)

const refreshTimeout = 5 * time.Second

// active is the utterance currently audible. A zero value means idle.
type active struct {
	id     string
	cancel context.CancelFunc
}

type Engine struct {
	platform Platform
	rate     float64
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	speakMu sync.Mutex // serializes cancel-then-start

	mu          sync.Mutex
	voices      []Voice
	current     active
	lastID      string // last started utterance not yet cancelled
	unsubscribe func()
	wg          sync.WaitGroup
}

func NewEngine(platform Platform, cfg config.NarrationConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		platform: platform,
		rate:     cfg.Rate,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "narration")),
	}
}

// Start subscribes to voice list changes and loads the current list once.
// An empty initial list is fine; later notifications fill it in.
func (e *Engine) Start(ctx context.Context) error {
	unsubscribe, err := e.platform.Subscribe(func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		e.Refresh(ctx)
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.unsubscribe = unsubscribe
	e.mu.Unlock()

	e.Refresh(ctx)
	return nil
}

// Refresh replaces the voice catalog with the platform's current list
func (e *Engine) Refresh(ctx context.Context) {
	voices, err := e.platform.Voices(ctx)
	if err != nil {
		e.logger.Warn("Failed to load voices", "error", err)
		return
	}

	e.mu.Lock()
	e.voices = voices
	e.mu.Unlock()
	e.logger.Debug("Voice catalog updated", "voices", len(voices))
}

// Voices returns the full catalog snapshot
func (e *Engine) Voices() []Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Voice{}, e.voices...)
}

// ListLanguages returns the first voice of every language, in catalog order
func (e *Engine) ListLanguages() []Voice {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]bool, len(e.voices))
	out := []Voice{}
	for _, v := range e.voices {
		if seen[v.Lang] {
			continue
		}
		seen[v.Lang] = true
		out = append(out, v)
	}
	return out
}

// SelectVoiceFor returns the first voice whose language equals tag exactly
func (e *Engine) SelectVoiceFor(tag string) (Voice, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, v := range e.voices {
		if v.Lang == tag {
			return v, true
		}
	}
	return Voice{}, false
}

// Speak cuts off anything playing and starts saying text in language tag.
// It returns the new utterance id, or "" when text is empty. Synthesis
// failures are logged only.
func (e *Engine) Speak(ctx context.Context, text, tag string) string {
	if text == "" {
		return ""
	}

	e.speakMu.Lock()
	defer e.speakMu.Unlock()

	e.stopCurrent(ctx)

	u := Utterance{ID: uuid.NewString(), Text: text, Lang: tag, Rate: e.rate}
	if voice, ok := e.SelectVoiceFor(tag); ok {
		u.Voice = voice.Name
	}

	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.mu.Lock()
	e.current = active{id: u.ID, cancel: cancel}
	e.lastID = u.ID
	e.mu.Unlock()

	e.metrics.RecordUtterance(ctx, tag)
	e.logger.Info("Speaking", "id", u.ID, "lang", tag, "voice", u.Voice)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		if err := e.platform.Speak(playCtx, u); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("Speech synthesis failed", "id", u.ID, "error", err)
		}
		e.mu.Lock()
		if e.current.id == u.ID {
			e.current = active{}
		}
		e.mu.Unlock()
	}()
	return u.ID
}

// Stop cancels the active utterance, if any
func (e *Engine) Stop(ctx context.Context) {
	e.speakMu.Lock()
	defer e.speakMu.Unlock()
	e.stopCurrent(ctx)
}

// stopCurrent cancels the last started utterance on the platform even when
// its Speak call already returned, since platforms such as NATS hand
// playback off to a device and return before it ends.
func (e *Engine) stopCurrent(ctx context.Context) {
	e.mu.Lock()
	prev := e.current
	lastID := e.lastID
	e.current = active{}
	e.lastID = ""
	e.mu.Unlock()

	if prev.cancel != nil {
		prev.cancel()
	}
	if lastID == "" {
		return
	}
	if err := e.platform.Cancel(ctx, lastID); err != nil {
		e.logger.Warn("Failed to cancel utterance", "id", lastID, "error", err)
	}
}

// Speaking returns the id of the audible utterance
func (e *Engine) Speaking() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.id, e.current.id != ""
}

// Healthy reports whether the platform is reachable. Platforms without a
// connection are always healthy.
func (e *Engine) Healthy() bool {
	if checker, ok := e.platform.(interface{ Healthy() bool }); ok {
		return checker.Healthy()
	}
	return true
}

// Close stops playback, drops the subscription and waits for background work
func (e *Engine) Close() {
	e.Stop(context.Background())

	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	e.wg.Wait()
}
