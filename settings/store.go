package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"
)

// Store reads and writes the settings document.
type Store interface {
	// Load returns nil, nil when nothing has been persisted yet.
	Load(ctx context.Context) (*Settings, error)

	// Apply merges p into the persisted document field by field and
	// returns the result.
	Apply(ctx context.Context, p Patch) (*Settings, error)
}

// FileStore keeps settings in a JSON file. Unknown top-level and gateway
// fields written by other tools are preserved across writes.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the settings file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var out Settings
	if err := json.Unmarshal(jsonc.ToJSON(data), &out); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	return &out, nil
}

func (s *FileStore) Apply(ctx context.Context, p Patch) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := map[string]any{}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", s.path, err)
		}
	}

	if p.Gateway != nil {
		gw, _ := doc["gateway"].(map[string]any)
		if gw == nil {
			gw = map[string]any{}
		}
		if p.Gateway.URL != nil {
			gw["url"] = *p.Gateway.URL
		}
		if p.Gateway.Token != nil {
			gw["token"] = *p.Gateway.Token
		}
		doc["gateway"] = gw
	}

	if err := writeJSON(s.path, doc); err != nil {
		return nil, err
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var settings Settings
	if err := json.Unmarshal(out, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}
