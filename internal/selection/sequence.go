// Package selection holds the ordered picture selection of a board session.
package selection

import (
	"slices"

	"github.com/talkmate-aac/talkmate/internal/models"
)

// Sequence is the ordered, duplicate-permitting list of chosen pictures.
// Entries are compared by ID. A Sequence is owned by one session controller
// and is not safe for concurrent use on its own.
type Sequence struct {
	entries []models.PictureEntry
}

// New returns an empty sequence
func New() *Sequence {
	return &Sequence{}
}

// Append adds entry to the end of the sequence
func (s *Sequence) Append(entry models.PictureEntry) {
	s.entries = append(s.entries, entry)
}

// RemoveLastOccurrence deletes the highest-index entry whose ID matches
// entry.ID. It reports whether an entry was removed.
func (s *Sequence) RemoveLastOccurrence(entry models.PictureEntry) bool {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ID == entry.ID {
			s.entries = slices.Delete(s.entries, i, i+1)
			return true
		}
	}
	return false
}

// Clear empties the sequence
func (s *Sequence) Clear() {
	s.entries = nil
}

// Snapshot returns a copy of the current selection in order
func (s *Sequence) Snapshot() []models.PictureEntry {
	out := make([]models.PictureEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Sequence) Len() int {
	return len(s.entries)
}

// Empty reports whether composition should be disabled
func (s *Sequence) Empty() bool {
	return len(s.entries) == 0
}
