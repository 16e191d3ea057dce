// SPDX-License-Identifier: MIT

// Package settings persists numeric client settings, such as per-channel
// volumes, in a small YAML file grouped by namespace.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	applog "soundhub/internal/log"
)

// FileStore is a namespaced settings store backed by a YAML file. With an
// empty path it only keeps values in memory.
type FileStore struct {
	path string

	mu       sync.RWMutex
	values   map[string]map[string]float64
	defaults map[string]map[string]float64
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		values:   make(map[string]map[string]float64),
		defaults: make(map[string]map[string]float64),
	}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		applog.Debugf("Settings: %s not found, starting empty", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]map[string]float64)
	}
	return s, nil
}

// Register declares the default returned for a setting that has no stored value.
func (s *FileStore) Register(namespace, key string, def float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.defaults[namespace] == nil {
		s.defaults[namespace] = make(map[string]float64)
	}
	s.defaults[namespace][key] = def
}

// Get returns the stored value, else the registered default, else 0.
func (s *FileStore) Get(namespace, key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[namespace][key]; ok {
		return v
	}
	return s.defaults[namespace][key]
}

// Set stores a value and persists the store.
func (s *FileStore) Set(namespace, key string, value float64) error {
	s.mu.Lock()
	if s.values[namespace] == nil {
		s.values[namespace] = make(map[string]float64)
	}
	s.values[namespace][key] = value
	data, err := yaml.Marshal(s.values)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.save(data)
}

// save writes data next to the target and renames it into place.
func (s *FileStore) save(data []byte) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
