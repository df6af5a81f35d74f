package narration

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestExecArgs(t *testing.T) {
	e, err := NewExec(`espeak-ng -v {voice} -s {rate} "{text}"`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		u    Utterance
		want []string
	}{
		{
			name: "matched voice",
			u:    Utterance{Text: "I want to eat.", Lang: "en-US", Voice: "en-us+f3", Rate: 0.9},
			want: []string{"espeak-ng", "-v", "en-us+f3", "-s", "0.9", "I want to eat."},
		},
		{
			name: "falls back to language",
			u:    Utterance{Text: "Bonjour", Lang: "fr-FR", Rate: 1},
			want: []string{"espeak-ng", "-v", "fr-FR", "-s", "1", "Bonjour"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, e.Args(tt.u)); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewExecRejectsEmpty(t *testing.T) {
	if _, err := NewExec("   ", nil); err == nil {
		t.Fatal("Expected error for empty command")
	}
}

func TestExecVoicesAreStatic(t *testing.T) {
	voices := []Voice{{Lang: "en-US", Name: "en-us"}}
	e, err := NewExec("true", voices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := e.Voices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(voices, got); diff != "" {
		t.Errorf("voices mismatch (-want +got):\n%s", diff)
	}
}

func TestExecSpeak(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	ok, _ := NewExec(`sh -c 'test -n "$0"' {text}`, nil)
	if err := ok.Speak(context.Background(), Utterance{Text: "hello"}); err != nil {
		t.Errorf("Expected success, got %v", err)
	}

	failing, _ := NewExec(`sh -c 'echo nope >&2; exit 3'`, nil)
	if err := failing.Speak(context.Background(), Utterance{Text: "hello"}); err == nil {
		t.Error("Expected failure from non-zero exit")
	}
}

func TestExecSpeakCancelled(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	e, _ := NewExec("sleep 5", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := e.Speak(ctx, Utterance{Text: "long"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Expected process to be killed on cancel")
	}
}
