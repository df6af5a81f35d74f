package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Mock is an offline provider that answers with a deterministic echo
type Mock struct {
	Delay time.Duration
}

// NewMock returns a new mock provider
func NewMock() *Mock {
	return &Mock{Delay: 20 * time.Millisecond}
}

// GenerateText returns a canned response shaped like the requested output
func (m *Mock) GenerateText(ctx context.Context, config Config) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.Delay):
	}

	content := fmt.Sprintf("[mock completion for %d image(s): %s]", len(config.Images), firstLine(config.Prompt))
	if config.OutputField == "" {
		return content, nil
	}
	out, err := json.Marshal(map[string]string{config.OutputField: content})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}
