package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileBackend reads secrets from a flat JSON object on disk, loaded once at
// construction. Meant for development and test fixtures, not production.
type FileBackend struct {
	path string
	data map[SecretKey]string
}

// NewFileBackend loads the secrets file at path.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("secrets file path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data := make(map[SecretKey]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &FileBackend{path: path, data: data}, nil
}

func (b *FileBackend) Name() string { return "file" }

func (b *FileBackend) Get(ctx context.Context, key SecretKey) (string, error) {
	val, ok := b.data[key]
	if !ok {
		return "", fmt.Errorf("secret %s not in %s", key, b.path)
	}
	return val, nil
}
