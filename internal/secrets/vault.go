package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// VaultConfig configures the HashiCorp Vault backend (KV v2).
type VaultConfig struct {
	// Address of the Vault server, e.g. "http://localhost:8200".
	Address string
	// Token used for authentication.
	Token string
	// Mount of the KV v2 secrets engine (default "secret").
	Mount string
	// Path under the mount holding the talentsync secrets (default
	// "talentsync"). All keys live in this one secret's data map.
	Path string
	// Timeout for Vault API requests (default 10s).
	Timeout time.Duration
}

// VaultBackend reads secrets out of one KV v2 path in Vault.
type VaultBackend struct {
	cfg    *VaultConfig
	client *http.Client
}

// NewVaultBackend validates the config and builds the backend. No request is
// made until the first Get.
func NewVaultBackend(cfg *VaultConfig) (*VaultBackend, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("vault address required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("vault token required")
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.Path == "" {
		cfg.Path = "talentsync"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &VaultBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (b *VaultBackend) Name() string { return "vault" }

func (b *VaultBackend) Get(ctx context.Context, key SecretKey) (string, error) {
	url := fmt.Sprintf("%s/v1/%s/data/%s",
		strings.TrimSuffix(b.cfg.Address, "/"), b.cfg.Mount, b.cfg.Path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Vault-Token", b.cfg.Token)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("vault path not found: %s/%s", b.cfg.Mount, b.cfg.Path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("vault status %d: %s", resp.StatusCode, body)
	}

	// KV v2 wraps the payload in data.data.
	var payload struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode vault response: %w", err)
	}

	val, ok := payload.Data.Data[string(key)]
	if !ok {
		return "", fmt.Errorf("key %s not in vault path %s", key, b.cfg.Path)
	}
	if s, ok := val.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", val), nil
}
