package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// PictureEntry represents a selectable picture on the board
type PictureEntry struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	ImageSource string `json:"imageUrl" yaml:"image_url"` // remote URL or data URI
	ImageHint   string `json:"imageHint" yaml:"image_hint"`
}

// Embedded reports whether the image source is already a self-contained data URI
func (p PictureEntry) Embedded() bool {
	return strings.HasPrefix(p.ImageSource, "data:")
}

// ImagePayload is an image resolved into bytes plus a declared media type
type ImagePayload struct {
	MediaType string
	Data      []byte
}

// Base64 returns the payload data encoded with standard base64
func (p ImagePayload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// DataURI renders the payload as data:<mime>;base64,<data>
func (p ImagePayload) DataURI() string {
	return "data:" + p.MediaType + ";base64," + p.Base64()
}

// ParseDataURI decodes a base64 data URI into a payload
func ParseDataURI(uri string) (ImagePayload, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return ImagePayload{}, fmt.Errorf("not a data URI")
	}
	header, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return ImagePayload{}, fmt.Errorf("data URI has no payload")
	}
	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return ImagePayload{}, fmt.Errorf("data URI is not base64 encoded")
	}
	if mediaType == "" {
		return ImagePayload{}, fmt.Errorf("data URI has no media type")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ImagePayload{}, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return ImagePayload{MediaType: mediaType, Data: data}, nil
}

// SessionView is the read snapshot of a board session exposed to the API
type SessionView struct {
	ID        string         `json:"id"`
	Selection []PictureEntry `json:"selection"`
	Sentence  string         `json:"sentence"`
	Composing bool           `json:"composing"`
	Language  string         `json:"language"`
	Behavior  PanelView      `json:"behavior"`
	Insight   PanelView      `json:"insight"`
	CreatedAt time.Time      `json:"created_at"`
}

// PanelView is the read snapshot of an advisory panel
type PanelView struct {
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	Submitting bool   `json:"submitting"`
}
