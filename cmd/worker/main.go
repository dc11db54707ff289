package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/talentsync/talentsync/internal/config"
	"github.com/talentsync/talentsync/internal/llm"
	"github.com/talentsync/talentsync/internal/llm/anthropic"
	"github.com/talentsync/talentsync/internal/llm/openai"
	"github.com/talentsync/talentsync/internal/pool"
	"github.com/talentsync/talentsync/internal/reconcile"
	"github.com/talentsync/talentsync/internal/record"
	neo4jstore "github.com/talentsync/talentsync/internal/record/neo4j"
	"github.com/talentsync/talentsync/internal/retry"
	"github.com/talentsync/talentsync/internal/secrets"
	temporalmod "github.com/talentsync/talentsync/internal/temporal"
	"github.com/talentsync/talentsync/internal/vector"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	scfg := &secrets.Config{Backend: cfg.Secrets.Backend, File: cfg.Secrets.File}
	if cfg.Secrets.Backend == "vault" {
		scfg.Vault = &secrets.VaultConfig{
			Address: cfg.Secrets.VaultAddr,
			Token:   cfg.Secrets.VaultToken,
			Mount:   cfg.Secrets.VaultMount,
			Path:    cfg.Secrets.VaultPath,
		}
	}
	sec, err := secrets.NewManager(scfg)
	if err != nil {
		log.Fatalf("secrets: %v", err)
	}

	// Build LLM provider via factory (embedding-only here; the worker never
	// generates explanations).
	factory := llm.NewFactory()
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})
	for _, p := range []struct{ name, url string }{
		{"groq", llm.KnownProviders["groq"]},
		{"ollama", llm.KnownProviders["ollama"]},
		{"together", llm.KnownProviders["together"]},
		{"deepseek", llm.KnownProviders["deepseek"]},
		{"custom", ""},
	} {
		p := p
		factory.Register(p.name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = p.url
			}
			return openai.New(c.APIKey, c.Model, base, c.EmbedModel), nil
		})
	}

	apiKey := sec.GetOrDefault(ctx, secrets.SecretLLMAPIKey, "")
	if cfg.LLM.APIKey != "" {
		apiKey, err = secrets.ResolveValue(cfg.LLM.APIKey)
		if err != nil {
			log.Fatalf("LLM api key: %v", err)
		}
	}

	provider, err := factory.Create(llm.ProviderConfig{
		Provider:   cfg.LLM.Provider,
		APIKey:     apiKey,
		Model:      cfg.LLM.Model,
		BaseURL:    cfg.LLM.BaseURL,
		EmbedModel: cfg.Embedding.Model,
	})
	if err != nil {
		log.Fatalf("creating LLM provider: %v", err)
	}
	if provider != nil {
		provider = llm.WithRateLimit(provider, llm.DefaultRateLimitConfig())
	}

	// Stores. In-memory fallbacks keep local runs self-contained.
	var records record.Store = record.NewMemoryStore()
	if cfg.Records.URI != "" {
		password := sec.GetOrDefault(ctx, secrets.SecretRecordsPassword, "")
		if cfg.Records.Password != "" {
			var perr error
			password, perr = secrets.ResolveValue(cfg.Records.Password)
			if perr != nil {
				log.Fatalf("records password: %v", perr)
			}
		}
		store, err := neo4jstore.New(ctx, cfg.Records.URI, cfg.Records.Username, password)
		if err != nil {
			log.Fatalf("record store: %v", err)
		}
		defer store.Close(ctx)
		records = store
	}

	var index vector.Index = vector.NewMemoryIndex()
	if cfg.Vector.Host != "" {
		idx, err := vector.NewQdrant(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
		if err != nil {
			log.Fatalf("vector index: %v", err)
		}
		defer idx.Close()
		index = idx
	}

	embedder := vector.NewEmbedder(provider, cfg.Embedding.Dimensions, retry.DefaultPolicy(), slog.Default())
	reconciler := reconcile.NewEngine(records, index, embedder, pool.New(cfg.Sync.Workers), slog.Default())

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Reconciler: reconciler,
	})

	opts := temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	}
	if token := sec.GetOrDefault(ctx, secrets.SecretTemporalToken, ""); token != "" {
		opts.Credentials = temporalclient.NewAPIKeyStaticCredentials(token)
	}
	c, err := temporalclient.Dial(opts)
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	fmt.Printf("Worker started on task queue: %s\n", cfg.Temporal.TaskQueue)

	if cfg.Sync.Interval > 0 {
		cron := fmt.Sprintf("@every %s", cfg.Sync.Interval)
		if _, err := temporalmod.ScheduleSync(ctx, c, cfg.Temporal.TaskQueue, cron, temporalmod.SyncInput{}); err != nil {
			log.Fatalf("scheduling sync: %v", err)
		}
		fmt.Printf("Reconciliation scheduled every %s\n", cfg.Sync.Interval)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	w.Stop()
	fmt.Println("Worker stopped")
}
