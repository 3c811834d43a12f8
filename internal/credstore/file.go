package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend keeps values as a JSON object in a single file.
// Writes go to a temp file renamed over the old one, so readers never see a partial file
type FileBackend struct {
	path string
	mu   sync.Mutex
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, err := b.load()
	if err != nil {
		return "", false, err
	}

	v, ok := values[key]
	return v, ok, nil
}

func (b *FileBackend) SetMany(_ context.Context, values map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.load()
	if err != nil {
		return err
	}
	maps.Copy(current, values)

	return b.save(current)
}

func (b *FileBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.load()
	if err != nil {
		return err
	}

	changed := false
	for _, k := range keys {
		if _, ok := current[k]; ok {
			delete(current, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}

	if len(current) == 0 {
		err := os.Remove(b.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("credstore: remove %s: %w", b.path, err)
		}
		return nil
	}

	return b.save(current)
}

func (b *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: read %s: %w", b.path, err)
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("credstore: decode %s: %w", b.path, err)
	}
	return values, nil
}

func (b *FileBackend) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("credstore: encode: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("credstore: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("credstore: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("credstore: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("credstore: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credstore: close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("credstore: replace %s: %w", b.path, err)
	}
	return nil
}
