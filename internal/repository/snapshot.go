package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type snapshotFile struct {
	path string
}

// load returns nil state when the file does not exist yet.
func (f *snapshotFile) load() (*state, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", f.path, err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	st := newState()
	if err := json.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	// maps missing from older files decode as nil
	if st.Menu == nil {
		st.Menu = newState().Menu
	}
	if st.Members == nil {
		st.Members = newState().Members
	}
	if st.Orders == nil {
		st.Orders = newState().Orders
	}
	if st.History == nil {
		st.History = newState().History
	}
	if st.Workers == nil {
		st.Workers = newState().Workers
	}
	return st, nil
}

// save writes to a temp file and renames it over the snapshot.
func (f *snapshotFile) save(st *state) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
