package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rickgao/geohash/internal/config"
	"github.com/rickgao/geohash/internal/mode"
	"github.com/rickgao/geohash/internal/model"
)

// loadState reads the session state file. A missing file (or no path) falls
// back to the state section of the config; with no target there either the
// session starts from the first location fix.
func loadState(path string, fallback config.StateConfig) (mode.SavedState, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var s mode.SavedState
			if err := yaml.Unmarshal(data, &s); err != nil {
				return mode.SavedState{}, fmt.Errorf("parse state %s: %w", path, err)
			}
			if s.Kind, err = mode.ParseKind(string(s.Kind)); err != nil {
				return mode.SavedState{}, fmt.Errorf("parse state %s: %w", path, err)
			}
			// A new run always starts on today.
			s.Date = model.Date{}
			s.InitialStart = !s.HasTarget()
			return s, nil
		case !errors.Is(err, fs.ErrNotExist):
			return mode.SavedState{}, fmt.Errorf("read state: %w", err)
		}
	}

	kind, err := mode.ParseKind(fallback.LastMode)
	if err != nil {
		return mode.SavedState{}, err
	}
	g, err := fallback.Graticule()
	if err != nil {
		return mode.SavedState{}, err
	}
	s := mode.SavedState{Kind: kind, Graticule: g, Globalhash: fallback.Globalhash}
	if s.Globalhash {
		s.Graticule = nil
	}
	s.InitialStart = !s.HasTarget()
	return s, nil
}

func saveState(path string, s mode.SavedState) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
