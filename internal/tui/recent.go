package tui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const maxRecent = 10

// RecentEntry is a dataset written or opened by a previous run.
type RecentEntry struct {
	Path    string    `json:"path"`
	Term    string    `json:"term,omitempty"`
	Records int       `json:"records"`
	SavedAt time.Time `json:"saved_at"`
}

// RecentStore keeps the most recent datasets, newest first, in a JSON file.
type RecentStore struct {
	Path string
}

// DefaultRecentStore lives in the user config dir.
func DefaultRecentStore() RecentStore {
	cfg, err := os.UserConfigDir()
	if err != nil {
		cfg = "."
	}
	return RecentStore{Path: filepath.Join(cfg, "mapharvest", "recent.json")}
}

func (s RecentStore) Load() ([]RecentEntry, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []RecentEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.Path, err)
	}
	return entries, nil
}

// Add records e at the top of the list, replacing an older entry for the
// same file.
func (s RecentStore) Add(e RecentEntry) error {
	abs, err := filepath.Abs(e.Path)
	if err == nil {
		e.Path = abs
	}
	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now()
	}

	// An unreadable list is replaced rather than blocking the run.
	entries, _ := s.Load()

	filtered := make([]RecentEntry, 0, len(entries)+1)
	filtered = append(filtered, e)
	for _, old := range entries {
		if old.Path != e.Path {
			filtered = append(filtered, old)
		}
	}
	if len(filtered) > maxRecent {
		filtered = filtered[:maxRecent]
	}

	data, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0644)
}
