package narration

import (
	"context"
	"sync"
	"time"
)

// Voice is one synthesizer voice offered by a platform
type Voice struct {
	Lang string `json:"lang"`
	Name string `json:"name"`
}

// Utterance is one synthesis request
type Utterance struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Lang  string  `json:"lang"`
	Voice string  `json:"voice,omitempty"`
	Rate  float64 `json:"rate"`
}

// Platform is the speech synthesis boundary.
//
// Speak may block until the utterance finishes; the engine runs it in the
// background and cancels ctx to pre-empt it. Cancel stops an utterance the
// platform plays outside the caller's process.
type Platform interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, u Utterance) error
	Cancel(ctx context.Context, id string) error
	// Subscribe registers onChange for voice list changes. The returned
	// function removes the subscription.
	Subscribe(onChange func()) (func(), error)
}

// Mock is an in-process platform that records what it was asked to say
type Mock struct {
	// Duration simulates how long each utterance plays
	Duration time.Duration

	mu          sync.Mutex
	voices      []Voice
	spoken      []Utterance
	cancelled   []string
	interrupted []string
	listeners   map[int]func()
	nextID      int
}

// NewMock returns a mock platform offering voices
func NewMock(voices []Voice) *Mock {
	return &Mock{voices: voices, listeners: make(map[int]func())}
}

func (m *Mock) Voices(_ context.Context) ([]Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Voice(nil), m.voices...), nil
}

func (m *Mock) Speak(ctx context.Context, u Utterance) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, u)
	m.mu.Unlock()

	if m.Duration <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		m.mu.Lock()
		m.interrupted = append(m.interrupted, u.ID)
		m.mu.Unlock()
		return ctx.Err()
	case <-time.After(m.Duration):
		return nil
	}
}

func (m *Mock) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *Mock) Subscribe(onChange func()) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listeners == nil {
		m.listeners = make(map[int]func())
	}
	id := m.nextID
	m.nextID++
	m.listeners[id] = onChange
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}, nil
}

// SetVoices replaces the voice list and notifies subscribers
func (m *Mock) SetVoices(voices []Voice) {
	m.mu.Lock()
	m.voices = voices
	listeners := make([]func(), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Spoken returns the utterances requested so far
func (m *Mock) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Utterance(nil), m.spoken...)
}

// Cancelled returns the ids passed to Cancel
func (m *Mock) Cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

// Interrupted returns the ids whose playback was cut short
func (m *Mock) Interrupted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.interrupted...)
}
