package narration

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Exec speaks by running a local synthesizer command such as espeak-ng.
// Arguments may contain {text}, {lang}, {voice} and {rate}; {voice} falls
// back to the language tag when no voice matched.
type Exec struct {
	cmd    []string
	voices []Voice
}

// NewExec parses command and serves voices as the fixed catalog
func NewExec(command string, voices []Voice) (*Exec, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse narration command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("narration command empty")
	}
	return &Exec{cmd: args, voices: voices}, nil
}

func (e *Exec) Voices(_ context.Context) ([]Voice, error) {
	return append([]Voice(nil), e.voices...), nil
}

// Speak runs the command and waits for it. Cancelling ctx kills the process.
func (e *Exec) Speak(ctx context.Context, u Utterance) error {
	args := e.Args(u)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("narration command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Cancel is a no-op; the process dies with its context
func (e *Exec) Cancel(_ context.Context, _ string) error {
	return nil
}

// Subscribe never fires since the voice list is static
func (e *Exec) Subscribe(_ func()) (func(), error) {
	return func() {}, nil
}

// Args expands the placeholders of the configured command for u
func (e *Exec) Args(u Utterance) []string {
	voice := u.Voice
	if voice == "" {
		voice = u.Lang
	}
	r := strings.NewReplacer(
		"{text}", u.Text,
		"{lang}", u.Lang,
		"{voice}", voice,
		"{rate}", strconv.FormatFloat(u.Rate, 'f', -1, 64),
	)
	out := make([]string, len(e.cmd))
	for i, arg := range e.cmd {
		out[i] = r.Replace(arg)
	}
	return out
}
