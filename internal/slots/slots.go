// Package slots keeps the fixed row of caregiver-chosen custom pictures that
// survives restarts.
package slots

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talkmate-aac/talkmate/internal/models"
)

// Key is the storage key of the slot array
const Key = "customImages"

// KV is the durable key/value storage the slots persist into
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// Slots is a fixed-size array of optional picture entries
type Slots struct {
	kv     KV
	logger *slog.Logger

	mu      sync.Mutex
	entries []*models.PictureEntry
}

// Load reads the persisted slots. A missing, unreadable or wrongly sized
// value resets every slot to empty instead of failing.
func Load(ctx context.Context, kv KV, count int, logger *slog.Logger) *Slots {
	s := &Slots{
		kv:      kv,
		logger:  logger.With(slog.String("component", "slots")),
		entries: make([]*models.PictureEntry, count),
	}

	raw, ok, err := kv.Get(ctx, Key)
	switch {
	case err != nil:
		s.logger.Warn("Failed to read custom images, starting empty", "error", err)
		return s
	case !ok:
		return s
	}

	var stored []*models.PictureEntry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn("Stored custom images are corrupt, resetting", "error", err)
		return s
	}
	if len(stored) != count {
		s.logger.Warn("Stored custom images have the wrong size, resetting", "stored", len(stored), "count", count)
		return s
	}
	s.entries = stored
	return s
}

// All returns a copy of every slot; nil means empty
func (s *Slots) All() []*models.PictureEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.PictureEntry, len(s.entries))
	for i, e := range s.entries {
		if e != nil {
			entry := *e
			out[i] = &entry
		}
	}
	return out
}

// Filled returns the non-empty slots in slot order
func (s *Slots) Filled() []models.PictureEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PictureEntry
	for _, e := range s.entries {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

func (s *Slots) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Set stores entry in slot index and persists the array
func (s *Slots) Set(ctx context.Context, index int, entry models.PictureEntry) error {
	return s.update(ctx, index, &entry)
}

// Clear empties slot index and persists the array
func (s *Slots) Clear(ctx context.Context, index int) error {
	return s.update(ctx, index, nil)
}

func (s *Slots) update(ctx context.Context, index int, entry *models.PictureEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.entries) {
		return fmt.Errorf("slot %d out of range [0, %d)", index, len(s.entries))
	}

	next := make([]*models.PictureEntry, len(s.entries))
	copy(next, s.entries)
	next[index] = entry

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	if err := s.kv.Put(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("persist slots: %w", err)
	}
	s.entries = next
	return nil
}
