// Package session owns the state of one board: the picture selection, the
// last generated sentence, the narration language and the advisory panels.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talkmate-aac/talkmate/internal/advisory"
	"github.com/talkmate-aac/talkmate/internal/models"
	"github.com/talkmate-aac/talkmate/internal/outcome"
	"github.com/talkmate-aac/talkmate/internal/selection"
)

// History event types
const (
	EventComposed = "composed"
	EventSpoken   = "spoken"
	EventBehavior = "behavior"
	EventInsight  = "insight"
)

type Composer interface {
	Compose(ctx context.Context, entries []models.PictureEntry) outcome.Result
}

type Narrator interface {
	Speak(ctx context.Context, text, tag string) string
}

// Recorder persists session history. Failures are logged by the controller.
type Recorder interface {
	Record(ctx context.Context, sessionID, eventType string, payload any) error
}

// Deps are the collaborators shared by every session
type Deps struct {
	Composer Composer
	Narrator Narrator
	Recorder Recorder
	// NewPanel builds a fresh advisory panel for each session
	NewPanel func(advisory.Kind) *advisory.Panel
	Logger   *slog.Logger
}

// Controller is the only mutator of its session's selection
type Controller struct {
	id        string
	createdAt time.Time
	composer  Composer
	narrator  Narrator
	recorder  Recorder
	behavior  *advisory.Panel
	insight   *advisory.Panel
	logger    *slog.Logger

	mu        sync.Mutex
	selection *selection.Sequence
	sentence  string
	composing bool
	language  string
}

func New(id, language string, deps Deps, now time.Time) *Controller {
	return &Controller{
		id:        id,
		createdAt: now,
		composer:  deps.Composer,
		narrator:  deps.Narrator,
		recorder:  deps.Recorder,
		behavior:  deps.NewPanel(advisory.Behavior),
		insight:   deps.NewPanel(advisory.Insight),
		logger:    deps.Logger.With(slog.String("session_id", id)),
		selection: selection.New(),
		language:  language,
	}
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) CreatedAt() time.Time {
	return c.createdAt
}

// Select appends entry to the selection
func (c *Controller) Select(entry models.PictureEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Append(entry)
}

// Deselect removes the most recent pick of entry
func (c *Controller) Deselect(entry models.PictureEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.RemoveLastOccurrence(entry)
}

// Clear empties the selection
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Clear()
}

// Selection returns a snapshot of the current selection
func (c *Controller) Selection() []models.PictureEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Snapshot()
}

// Compose turns the current selection into a sentence. The previous sentence
// is cleared first. The selection is cleared only on success, so a failed
// attempt can be retried as is. Returns outcome.ErrBusy while a composition
// is already in flight.
func (c *Controller) Compose(ctx context.Context) (outcome.Result, error) {
	c.mu.Lock()
	if c.composing {
		c.mu.Unlock()
		return outcome.Result{}, outcome.ErrBusy
	}
	snapshot := c.selection.Snapshot()
	c.sentence = ""
	if len(snapshot) > 0 {
		c.composing = true
	}
	c.mu.Unlock()

	result := c.composer.Compose(ctx, snapshot)

	c.mu.Lock()
	c.composing = false
	if result.OK() {
		c.sentence = result.Value
		c.selection.Clear()
	}
	c.mu.Unlock()

	if result.OK() {
		ids := make([]string, len(snapshot))
		for i, e := range snapshot {
			ids[i] = e.ID
		}
		c.record(ctx, EventComposed, map[string]any{"pictures": ids, "sentence": result.Value})
	}
	return result, nil
}

// Speak narrates the current sentence. A non-empty tag also becomes the
// session language. Returns the utterance id, or "" when there is nothing to say.
func (c *Controller) Speak(ctx context.Context, tag string) string {
	c.mu.Lock()
	if tag != "" {
		c.language = tag
	}
	text, lang := c.sentence, c.language
	c.mu.Unlock()

	id := c.narrator.Speak(ctx, text, lang)
	if id != "" {
		c.record(ctx, EventSpoken, map[string]string{"utterance": id, "lang": lang})
	}
	return id
}

// SetLanguage changes the narration language
func (c *Controller) SetLanguage(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = tag
}

// Advise submits description to the behavior or insight panel
func (c *Controller) Advise(ctx context.Context, kind advisory.Kind, description string) (outcome.Result, error) {
	panel, eventType := c.behavior, EventBehavior
	if kind.Mode == advisory.Insight.Mode {
		panel, eventType = c.insight, EventInsight
	}

	result, err := panel.Submit(ctx, description)
	if err != nil {
		return result, err
	}
	if result.OK() {
		c.record(ctx, eventType, map[string]string{"description": description, "result": result.Value})
	}
	return result, nil
}

// View returns a read snapshot of the whole session
func (c *Controller) View() models.SessionView {
	c.mu.Lock()
	view := models.SessionView{
		ID:        c.id,
		Selection: c.selection.Snapshot(),
		Sentence:  c.sentence,
		Composing: c.composing,
		Language:  c.language,
		CreatedAt: c.createdAt,
	}
	c.mu.Unlock()

	view.Behavior = c.behavior.View()
	view.Insight = c.insight.View()
	return view
}

func (c *Controller) record(ctx context.Context, eventType string, payload any) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(context.WithoutCancel(ctx), c.id, eventType, payload); err != nil {
		c.logger.Warn("Failed to record history", "event", eventType, "error", err)
	}
}
