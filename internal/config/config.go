// Package config loads talentsync configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Records   RecordsConfig   `mapstructure:"records"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Match     MatchConfig     `mapstructure:"match"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Lock      LockConfig      `mapstructure:"lock"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

type LLMConfig struct {
	Provider          string  `mapstructure:"provider"`
	Model             string  `mapstructure:"model"`
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

type EmbeddingConfig struct {
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// RecordsConfig points at the authoritative candidate store (Neo4j).
type RecordsConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// VectorConfig points at the similarity index (Qdrant).
type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type MatchConfig struct {
	Workers      int           `mapstructure:"workers"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout"`
	DefaultLimit int           `mapstructure:"default_limit"`
}

type SyncConfig struct {
	Workers  int           `mapstructure:"workers"`
	Interval time.Duration `mapstructure:"interval"`
}

type LockConfig struct {
	// Dir is where lock states and history are persisted. Empty means
	// in-memory only.
	Dir string `mapstructure:"dir"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// SecretsConfig selects where credentials are resolved from when they are not
// inlined in the config. Backend is "env", "file" or "vault".
type SecretsConfig struct {
	Backend    string `mapstructure:"backend"`
	File       string `mapstructure:"file"`
	VaultAddr  string `mapstructure:"vault_addr"`
	VaultToken string `mapstructure:"vault_token"`
	VaultMount string `mapstructure:"vault_mount"`
	VaultPath  string `mapstructure:"vault_path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	OutputPath string `mapstructure:"output_path"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Provider != "" && c.LLM.Provider != "none" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured without an inline api_key; it will be resolved from the secrets backend", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}
	if c.Match.Workers <= 0 {
		warnings = append(warnings, fmt.Sprintf("match workers %d is not positive, the default will be used", c.Match.Workers))
	}
	if c.Sync.Workers <= 0 {
		warnings = append(warnings, fmt.Sprintf("sync workers %d is not positive, the default will be used", c.Sync.Workers))
	}
	if c.Embedding.Dimensions < 0 {
		warnings = append(warnings, fmt.Sprintf("embedding dimensions %d is negative", c.Embedding.Dimensions))
	}
	return warnings
}

func setDefaults(v *viper.Viper) {
	// Keys without a meaningful default still need registering so
	// AutomaticEnv can bind them during Unmarshal.
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("records.password", "")
	v.SetDefault("lock.dir", "")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("records.uri", "bolt://localhost:7687")
	v.SetDefault("records.username", "neo4j")
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.collection", "candidates")
	v.SetDefault("match.workers", 4)
	v.SetDefault("match.task_timeout", 30*time.Second)
	v.SetDefault("match.default_limit", 10)
	v.SetDefault("sync.workers", 8)
	v.SetDefault("sync.interval", time.Hour)
	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "talentsync-sync")
	v.SetDefault("secrets.backend", "env")
	v.SetDefault("secrets.file", "")
	v.SetDefault("secrets.vault_addr", "")
	v.SetDefault("secrets.vault_token", "")
	v.SetDefault("secrets.vault_mount", "secret")
	v.SetDefault("secrets.vault_path", "talentsync")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.output_path", "stdout")
}

// Load reads configuration from file and environment. path may be empty, in
// which case only defaults and TALENTSYNC_* environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TALENTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
