// Package catalog holds the pictures a board can select from: a static set
// loaded at startup plus images uploaded while the process runs.
package catalog

import (
	"fmt"
	"os"
	"sync"

	"github.com/talkmate-aac/talkmate/internal/models"
	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog layout
type File struct {
	Pictures []models.PictureEntry `yaml:"pictures"`
}

var defaultPictures = []models.PictureEntry{
	{ID: "eat", Description: "eat", ImageSource: "https://placehold.co/400x400/png?text=eat", ImageHint: "person eating"},
	{ID: "drink", Description: "drink", ImageSource: "https://placehold.co/400x400/png?text=drink", ImageHint: "glass of water"},
	{ID: "play", Description: "play", ImageSource: "https://placehold.co/400x400/png?text=play", ImageHint: "child playing"},
	{ID: "sleep", Description: "sleep", ImageSource: "https://placehold.co/400x400/png?text=sleep", ImageHint: "person sleeping"},
	{ID: "apple", Description: "apple", ImageSource: "https://placehold.co/400x400/png?text=apple", ImageHint: "red apple"},
	{ID: "ball", Description: "ball", ImageSource: "https://placehold.co/400x400/png?text=ball", ImageHint: "toy ball"},
	{ID: "happy", Description: "happy", ImageSource: "https://placehold.co/400x400/png?text=happy", ImageHint: "smiling face"},
	{ID: "sad", Description: "sad", ImageSource: "https://placehold.co/400x400/png?text=sad", ImageHint: "sad face"},
	{ID: "mom", Description: "mom", ImageSource: "https://placehold.co/400x400/png?text=mom", ImageHint: "mother"},
	{ID: "outside", Description: "outside", ImageSource: "https://placehold.co/400x400/png?text=outside", ImageHint: "park"},
	{ID: "bathroom", Description: "bathroom", ImageSource: "https://placehold.co/400x400/png?text=bathroom", ImageHint: "toilet"},
	{ID: "help", Description: "help", ImageSource: "https://placehold.co/400x400/png?text=help", ImageHint: "raised hand"},
}

// Default returns a copy of the built-in picture set
func Default() []models.PictureEntry {
	return append([]models.PictureEntry(nil), defaultPictures...)
}

// Load reads a YAML catalog file. An empty path yields the built-in set.
func Load(path string) ([]models.PictureEntry, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	seen := make(map[string]bool, len(file.Pictures))
	for i, p := range file.Pictures {
		if p.ID == "" || p.ImageSource == "" {
			return nil, fmt.Errorf("catalog entry %d needs id and image_url", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate catalog id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return file.Pictures, nil
}

type Catalog struct {
	mu       sync.RWMutex
	static   []models.PictureEntry
	uploaded []models.PictureEntry
	byID     map[string]models.PictureEntry
}

func New(entries []models.PictureEntry) *Catalog {
	c := &Catalog{
		static: append([]models.PictureEntry(nil), entries...),
		byID:   make(map[string]models.PictureEntry, len(entries)),
	}
	for _, e := range entries {
		c.byID[e.ID] = e
	}
	return c
}

// All returns static entries followed by uploads in upload order
func (c *Catalog) All() []models.PictureEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.PictureEntry, 0, len(c.static)+len(c.uploaded))
	out = append(out, c.static...)
	return append(out, c.uploaded...)
}

func (c *Catalog) Get(id string) (models.PictureEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[id]
	return e, ok
}

// Add registers an uploaded entry so it can be selected by id
func (c *Catalog) Add(entry models.PictureEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byID[entry.ID]; exists {
		return
	}
	c.uploaded = append(c.uploaded, entry)
	c.byID[entry.ID] = entry
}
