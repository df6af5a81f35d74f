package narration

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/talkmate-aac/talkmate/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEngine(t *testing.T, platform Platform) *Engine {
	t.Helper()
	e := NewEngine(platform, config.Default().Narration, nil, newLogger())
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestListLanguagesDeduplicates(t *testing.T) {
	mock := NewMock([]Voice{
		{Lang: "en-US", Name: "A"},
		{Lang: "en-US", Name: "B"},
		{Lang: "fr-FR", Name: "C"},
	})
	e := newTestEngine(t, mock)

	want := []Voice{{Lang: "en-US", Name: "A"}, {Lang: "fr-FR", Name: "C"}}
	if diff := cmp.Diff(want, e.ListLanguages()); diff != "" {
		t.Errorf("languages mismatch (-want +got):\n%s", diff)
	}
	if n := len(e.Voices()); n != 3 {
		t.Errorf("Expected full catalog of 3, got %d", n)
	}
}

func TestQueryBeforeVoicesExist(t *testing.T) {
	mock := NewMock(nil)
	e := NewEngine(mock, config.Default().Narration, nil, newLogger())
	defer e.Close()

	if got := e.ListLanguages(); got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil list before start, got %#v", got)
	}
	if _, ok := e.SelectVoiceFor("en-US"); ok {
		t.Error("Expected no voice before start")
	}
}

func TestVoicesChangedReplacesCatalog(t *testing.T) {
	mock := NewMock(nil)
	e := newTestEngine(t, mock)

	if n := len(e.ListLanguages()); n != 0 {
		t.Fatalf("Expected no languages initially, got %d", n)
	}

	mock.SetVoices([]Voice{{Lang: "es-ES", Name: "Lucia"}})
	if v, ok := e.SelectVoiceFor("es-ES"); !ok || v.Name != "Lucia" {
		t.Errorf("Expected Lucia after change, got %+v %v", v, ok)
	}

	mock.SetVoices([]Voice{{Lang: "de-DE", Name: "Hans"}})
	if _, ok := e.SelectVoiceFor("es-ES"); ok {
		t.Error("Expected old catalog to be replaced")
	}
}

func TestSelectVoiceFor(t *testing.T) {
	mock := NewMock([]Voice{
		{Lang: "en-GB", Name: "Daniel"},
		{Lang: "en-US", Name: "Samantha"},
		{Lang: "en-US", Name: "Alex"},
	})
	e := newTestEngine(t, mock)

	tests := []struct {
		tag    string
		want   string
		wantOK bool
	}{
		{"en-US", "Samantha", true},
		{"en-GB", "Daniel", true},
		{"en", "", false},
		{"en-us", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			v, ok := e.SelectVoiceFor(tt.tag)
			if ok != tt.wantOK || v.Name != tt.want {
				t.Errorf("SelectVoiceFor(%q) = %+v, %v", tt.tag, v, ok)
			}
		})
	}
}

func TestSpeakEmptyIsNoop(t *testing.T) {
	mock := NewMock([]Voice{{Lang: "en-US", Name: "A"}})
	e := newTestEngine(t, mock)

	if id := e.Speak(context.Background(), "", "en-US"); id != "" {
		t.Errorf("Expected no utterance, got %s", id)
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(mock.Spoken()); n != 0 {
		t.Errorf("Expected nothing spoken, got %d", n)
	}
}

func TestSpeakResolvesVoice(t *testing.T) {
	mock := NewMock([]Voice{{Lang: "fr-FR", Name: "Amelie"}})
	e := newTestEngine(t, mock)

	e.Speak(context.Background(), "Bonjour", "fr-FR")
	e.Speak(context.Background(), "Hallo", "de-DE")
	waitFor(t, "two utterances", func() bool { return len(mock.Spoken()) == 2 })

	spoken := mock.Spoken()
	slices.SortFunc(spoken, func(a, b Utterance) int {
		if a.Text < b.Text {
			return -1
		}
		return 1
	})
	opts := cmp.Options{cmp.FilterPath(func(p cmp.Path) bool { return p.Last().String() == ".ID" }, cmp.Ignore())}
	want := []Utterance{
		{Text: "Bonjour", Lang: "fr-FR", Voice: "Amelie", Rate: 0.9},
		{Text: "Hallo", Lang: "de-DE", Rate: 0.9},
	}
	if diff := cmp.Diff(want, spoken, opts); diff != "" {
		t.Errorf("utterances mismatch (-want +got):\n%s", diff)
	}
}

func TestSpeakPreemptsActiveUtterance(t *testing.T) {
	mock := NewMock([]Voice{{Lang: "en-US", Name: "A"}})
	mock.Duration = time.Hour
	e := newTestEngine(t, mock)

	first := e.Speak(context.Background(), "I want to eat.", "en-US")
	waitFor(t, "first utterance", func() bool { return len(mock.Spoken()) == 1 })
	if id, ok := e.Speaking(); !ok || id != first {
		t.Fatalf("Expected %s speaking, got %s", first, id)
	}

	second := e.Speak(context.Background(), "I want to play.", "en-US")
	if id, _ := e.Speaking(); id != second {
		t.Errorf("Expected %s speaking, got %s", second, id)
	}
	if diff := cmp.Diff([]string{first}, mock.Cancelled()); diff != "" {
		t.Errorf("cancelled mismatch (-want +got):\n%s", diff)
	}
	waitFor(t, "first interrupted", func() bool { return slices.Contains(mock.Interrupted(), first) })
	if slices.Contains(mock.Interrupted(), second) {
		t.Error("Expected second utterance to keep playing")
	}
}

func TestSpeakingClearsWhenFinished(t *testing.T) {
	mock := NewMock(nil)
	mock.Duration = 10 * time.Millisecond
	e := newTestEngine(t, mock)

	e.Speak(context.Background(), "Done soon", "en-US")
	waitFor(t, "idle", func() bool {
		_, speaking := e.Speaking()
		return !speaking
	})
	if n := len(mock.Cancelled()); n != 0 {
		t.Errorf("Expected no cancels before the next request, got %d", n)
	}
}

func TestSpeakCancelsFinishedHandOff(t *testing.T) {
	mock := NewMock(nil)
	e := newTestEngine(t, mock)

	first := e.Speak(context.Background(), "Handed to the device", "en-US")
	waitFor(t, "hand-off returned", func() bool {
		_, speaking := e.Speaking()
		return !speaking
	})

	e.Speak(context.Background(), "Next", "en-US")
	if diff := cmp.Diff([]string{first}, mock.Cancelled()); diff != "" {
		t.Errorf("cancelled mismatch (-want +got):\n%s", diff)
	}

	e.Stop(context.Background())
	e.Stop(context.Background())
	if n := len(mock.Cancelled()); n != 2 {
		t.Errorf("Expected one cancel per started utterance, got %d", n)
	}
}

func TestSpeakOutlivesRequestContext(t *testing.T) {
	mock := NewMock(nil)
	mock.Duration = time.Hour
	e := newTestEngine(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	id := e.Speak(ctx, "Keep talking", "en-US")
	cancel()

	waitFor(t, "utterance started", func() bool { return len(mock.Spoken()) == 1 })
	time.Sleep(20 * time.Millisecond)
	if current, ok := e.Speaking(); !ok || current != id {
		t.Error("Expected utterance to survive request cancellation")
	}
}

func TestHealthyWithoutConnection(t *testing.T) {
	e := newTestEngine(t, NewMock(nil))
	if !e.Healthy() {
		t.Error("Expected mock platform to report healthy")
	}
}
