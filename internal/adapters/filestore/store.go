// Package filestore persists the last resolved location as a small JSON file, for
// clients without cookies.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

const fileName = "last_location.json"

type Store struct{ path string }

func New(path string) *Store { return &Store{path: path} }

// DefaultPath is <user config dir>/laundrylocator/last_location.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "laundrylocator", fileName), nil
}

func (s *Store) Path() string { return s.path }

// Load reports false when nothing has been saved yet. A file holding a bare JSON string
// is read as a display-only entry.
func (s *Store) Load(context.Context) (domain.SavedLocation, bool, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.SavedLocation{}, false, nil
	}
	if err != nil {
		return domain.SavedLocation{}, false, fmt.Errorf("filestore: read: %w", err)
	}

	var loc domain.SavedLocation
	if err := json.Unmarshal(b, &loc); err != nil {
		var display string
		if json.Unmarshal(b, &display) != nil {
			return domain.SavedLocation{}, false, fmt.Errorf("filestore: decode: %w", err)
		}
		loc = domain.SavedLocation{Display: display}
	}
	if loc.Display == "" {
		return domain.SavedLocation{}, false, nil
	}
	return loc, true, nil
}

// Save replaces the file atomically.
func (s *Store) Save(_ context.Context, loc domain.SavedLocation) error {
	b, err := json.MarshalIndent(loc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("filestore: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), fileName+".*")
	if err != nil {
		return fmt.Errorf("filestore: temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
