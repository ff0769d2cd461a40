package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ernie/valheim-tracker/internal/domain"
)

// Load reads the state file, back-filling any top-level key missing from an
// older file. A missing file starts empty; an unparseable file is reset to
// empty state rather than failing, so a corrupt checkpoint never blocks the
// watcher (the corruption is logged and the next save rewrites the file).
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.state = domain.NewState()
			return nil
		}
		return fmt.Errorf("reading state file: %w", err)
	}

	st := domain.NewState()
	if err := json.Unmarshal(data, st); err != nil {
		log.Printf("State file %s is unparseable, resetting to empty state: %v", s.path, err)
		s.state = domain.NewState()
		return nil
	}
	st.Normalize()
	s.state = st
	return nil
}

// Save writes the whole state as indented JSON. The write goes to a temp
// file in the same directory followed by a rename, so an interrupted save
// never leaves a partially-written state file behind.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.state, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
