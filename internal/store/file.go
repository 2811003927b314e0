package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/erazemk/izgubljeno/internal/model"
)

// Keys of the JSON document written by File.
const (
	ItemsKey  = "lostfound_items"
	ClaimsKey = "lostfound_claims"
)

// File persists items and claims as a single JSON document on disk, one
// entry per key. Writes go to a temporary file that is renamed into place.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a File store at path. The file is created on first save.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &File{path: path}, nil
}

// LoadAll returns the stored items.
func (f *File) LoadAll(_ context.Context) ([]model.Item, error) {
	var items []model.Item
	if err := f.load(ItemsKey, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveAll replaces the stored items.
func (f *File) SaveAll(_ context.Context, items []model.Item) error {
	return f.save(map[string]any{ItemsKey: items})
}

// LoadClaims returns the stored claims.
func (f *File) LoadClaims(_ context.Context) ([]model.Claim, error) {
	var claims []model.Claim
	if err := f.load(ClaimsKey, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// SaveClaims replaces the stored claims.
func (f *File) SaveClaims(_ context.Context, claims []model.Claim) error {
	return f.save(map[string]any{ClaimsKey: claims})
}

// Save replaces items and claims with a single document write.
func (f *File) Save(_ context.Context, items []model.Item, claims []model.Claim) error {
	return f.save(map[string]any{ItemsKey: items, ClaimsKey: claims})
}

func (f *File) load(key string, target any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readDoc()
	if err != nil {
		return err
	}
	raw, ok := doc[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// save sets every key in values and rewrites the document once.
func (f *File) save(values map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readDoc()
	if err != nil {
		return err
	}
	for key, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		doc[key] = raw
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

func (f *File) readDoc() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.path, err)
	}
	return doc, nil
}
