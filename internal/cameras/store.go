package cameras

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// file is the on-disk cameras document for TOML marshaling.
type file struct {
	Version int                   `toml:"version"`
	Cameras map[string]CameraSpec `toml:"cameras"`
}

// Store persists camera specs in a TOML file.
type Store struct {
	path string
	file *file
}

// NewStore creates a TOML-backed store.
func NewStore(path string) *Store {
	if path == "" {
		path = "cameras.toml"
	}
	return &Store{
		path: path,
		file: &file{
			Version: 1,
			Cameras: make(map[string]CameraSpec),
		},
	}
}

// Load reads the cameras file. A missing file loads as an empty set so a
// fresh node starts without ceremony.
func (s *Store) Load() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read cameras config: %w", err)
	}

	if unmarshalErr := toml.Unmarshal(data, s.file); unmarshalErr != nil {
		return fmt.Errorf("failed to parse cameras config: %w", unmarshalErr)
	}

	if s.file.Cameras == nil {
		s.file.Cameras = make(map[string]CameraSpec)
	}
	if s.file.Version == 0 {
		s.file.Version = 1
	}

	// The table key is authoritative for the id; the name defaults to it.
	for id, spec := range s.file.Cameras {
		spec.ID = id
		if spec.Name == "" {
			spec.Name = id
		}
		s.file.Cameras[id] = spec
	}

	return nil
}

// Save writes the cameras file, creating the directory if needed.
func (s *Store) Save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(s.file)
	if err != nil {
		return fmt.Errorf("failed to marshal cameras config: %w", err)
	}

	if writeErr := os.WriteFile(s.path, data, 0o644); writeErr != nil {
		return fmt.Errorf("failed to write cameras config: %w", writeErr)
	}

	return nil
}

// Add inserts a new camera and saves.
func (s *Store) Add(spec CameraSpec) error {
	if _, exists := s.file.Cameras[spec.ID]; exists {
		return fmt.Errorf("camera %s: %w", spec.ID, ErrCameraExists)
	}
	s.file.Cameras[spec.ID] = spec
	return s.Save()
}

// Remove deletes a camera and saves.
func (s *Store) Remove(id string) error {
	if _, exists := s.file.Cameras[id]; !exists {
		return fmt.Errorf("camera %s: %w", id, ErrCameraNotFound)
	}
	delete(s.file.Cameras, id)
	return s.Save()
}

// Get retrieves a camera spec by id.
func (s *Store) Get(id string) (CameraSpec, bool) {
	spec, exists := s.file.Cameras[id]
	return spec, exists
}

// All returns a copy of the spec set.
func (s *Store) All() map[string]CameraSpec {
	return maps.Clone(s.file.Cameras)
}

// LoadSpecs loads and validates the cameras file, returning the spec set
// ready for Service.Apply. This is the loader the hot-reload watcher uses.
func LoadSpecs(path string) (map[string]CameraSpec, error) {
	store := NewStore(path)
	if err := store.Load(); err != nil {
		return nil, err
	}

	specs := store.All()

	// Validate in stable order so the first error is deterministic.
	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := specs[id].Validate(); err != nil {
			return nil, err
		}
	}

	return specs, nil
}
