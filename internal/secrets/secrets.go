// Package secrets resolves credentials from a configured backend so they
// never have to live inline in talentsync.yaml.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// SecretKey names the credentials the binaries look up.
type SecretKey string

const (
	SecretLLMAPIKey       SecretKey = "llm_api_key"
	SecretRecordsPassword SecretKey = "records_password"
	SecretTemporalToken   SecretKey = "temporal_token"
)

// Backend is a read-only secret source. Writes go through the backend's own
// tooling (vault CLI, the environment, the file on disk), not through us.
type Backend interface {
	Get(ctx context.Context, key SecretKey) (string, error)
	Name() string
}

// Config selects the backend.
type Config struct {
	// Backend is "env", "file" or "vault". Empty means env.
	Backend string
	// EnvPrefix for environment lookups (default "TALENTSYNC_").
	EnvPrefix string
	// File is the JSON secrets file path, required for the file backend.
	File string
	// Vault configures the vault backend.
	Vault *VaultConfig
}

// Manager looks secrets up in the configured backend, falling back to the
// environment so a partially provisioned backend never blocks local runs.
// Resolved values are cached for the life of the process.
type Manager struct {
	primary  Backend
	fallback Backend

	mu    sync.RWMutex
	cache map[SecretKey]string
}

// NewManager builds a Manager for the configured backend. A nil config means
// environment variables only.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	var primary Backend
	switch cfg.Backend {
	case "", "env":
		primary = NewEnvBackend(cfg.EnvPrefix)
	case "file":
		fb, err := NewFileBackend(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("file secrets backend: %w", err)
		}
		primary = fb
	case "vault":
		vb, err := NewVaultBackend(cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("vault secrets backend: %w", err)
		}
		primary = vb
	default:
		return nil, fmt.Errorf("unknown secrets backend: %s", cfg.Backend)
	}

	return &Manager{
		primary:  primary,
		fallback: NewEnvBackend(cfg.EnvPrefix),
		cache:    make(map[SecretKey]string),
	}, nil
}

// Get resolves a secret through the primary backend, then the environment.
func (m *Manager) Get(ctx context.Context, key SecretKey) (string, error) {
	m.mu.RLock()
	if val, ok := m.cache[key]; ok {
		m.mu.RUnlock()
		return val, nil
	}
	m.mu.RUnlock()

	for _, b := range []Backend{m.primary, m.fallback} {
		val, err := b.Get(ctx, key)
		if err == nil && val != "" {
			m.mu.Lock()
			m.cache[key] = val
			m.mu.Unlock()
			return val, nil
		}
	}
	return "", fmt.Errorf("secret not found: %s", key)
}

// GetOrDefault resolves a secret or returns def when no backend has it.
func (m *Manager) GetOrDefault(ctx context.Context, key SecretKey, def string) string {
	val, err := m.Get(ctx, key)
	if err != nil {
		return def
	}
	return val
}

// ResolveValue dereferences config values that point at secrets instead of
// holding them inline. "file:/path" reads the trimmed file contents;
// "env:NAME" reads the named environment variable; anything else is returned
// as-is.
func ResolveValue(v string) (string, error) {
	switch {
	case strings.HasPrefix(v, "file:"):
		data, err := os.ReadFile(strings.TrimPrefix(v, "file:"))
		if err != nil {
			return "", fmt.Errorf("read secret file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case strings.HasPrefix(v, "env:"):
		return os.Getenv(strings.TrimPrefix(v, "env:")), nil
	default:
		return v, nil
	}
}

// EnvBackend reads secrets from environment variables, trying the prefixed
// upper-cased key first and the bare key second.
type EnvBackend struct {
	prefix string
}

func NewEnvBackend(prefix string) *EnvBackend {
	if prefix == "" {
		prefix = "TALENTSYNC_"
	}
	return &EnvBackend{prefix: prefix}
}

func (b *EnvBackend) Name() string { return "env" }

func (b *EnvBackend) Get(ctx context.Context, key SecretKey) (string, error) {
	name := strings.ToUpper(string(key))
	if val := os.Getenv(b.prefix + name); val != "" {
		return val, nil
	}
	if val := os.Getenv(name); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env var not set: %s%s", b.prefix, name)
}
