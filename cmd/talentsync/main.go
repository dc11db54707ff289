package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentsync/talentsync/internal/config"
	"github.com/talentsync/talentsync/internal/llm"
	"github.com/talentsync/talentsync/internal/llm/anthropic"
	"github.com/talentsync/talentsync/internal/llm/openai"
	"github.com/talentsync/talentsync/internal/lock"
	"github.com/talentsync/talentsync/internal/match"
	"github.com/talentsync/talentsync/internal/metrics"
	"github.com/talentsync/talentsync/internal/observability"
	"github.com/talentsync/talentsync/internal/pool"
	"github.com/talentsync/talentsync/internal/reconcile"
	"github.com/talentsync/talentsync/internal/record"
	neo4jstore "github.com/talentsync/talentsync/internal/record/neo4j"
	"github.com/talentsync/talentsync/internal/retry"
	"github.com/talentsync/talentsync/internal/secrets"
	"github.com/talentsync/talentsync/internal/server"
	"github.com/talentsync/talentsync/internal/vector"
)

func main() {
	var (
		configPath string
		queryText  string
		queryFile  string
		limit      int
		jsonOutput bool
	)

	rootCmd := &cobra.Command{
		Use:   "talentsync",
		Short: "Semantic candidate matching and review coordination",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")

	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Find candidates matching a job description",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(configPath, queryText, queryFile, limit, jsonOutput)
		},
	}
	matchCmd.Flags().StringVar(&queryText, "query", "", "Job description text")
	matchCmd.Flags().StringVar(&queryFile, "query-file", "", "File containing the job description")
	matchCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of matches (default from config)")
	matchCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one index reconciliation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(configPath, jsonOutput)
		},
	}
	syncCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the outcome as JSON")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the operational endpoints and periodic reconciliation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-14s %s\n", name, url)
			}
			fmt.Println("  custom         (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println("  none           (run without LLM — degraded explanations)")
			fmt.Println()
			fmt.Println("Configure in talentsync.yaml or via environment:")
			fmt.Println("  TALENTSYNC_LLM_PROVIDER=openai")
			fmt.Println("  TALENTSYNC_LLM_API_KEY=sk-...")
			fmt.Println("  TALENTSYNC_LLM_MODEL=gpt-4o-mini")
		},
	}

	rootCmd.AddCommand(matchCmd, syncCmd, serveCmd, providersCmd, lockCommand(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func lockCommand(configPath *string) *cobra.Command {
	var (
		sourceID  string
		holder    string
		status    string
		custom    string
		comment   string
		jsonOut   bool
		evalJSON  string
		byHolder  string
		histShown bool
	)

	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Claim, release and review candidate records",
	}

	claimCmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim a record for exclusive review",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newLockManager(*configPath)
			if err != nil {
				return err
			}
			var eval *lock.Evaluation
			if evalJSON != "" {
				eval = &lock.Evaluation{}
				if err := json.Unmarshal([]byte(evalJSON), eval); err != nil {
					return fmt.Errorf("parse evaluation: %w", err)
				}
			}
			state, err := mgr.Claim(cmd.Context(), sourceID, holder, eval)
			if err != nil {
				return err
			}
			return printState(state, jsonOut)
		},
	}
	claimCmd.Flags().StringVar(&sourceID, "id", "", "Record id")
	claimCmd.Flags().StringVar(&holder, "holder", "", "Claiming reviewer")
	claimCmd.Flags().StringVar(&evalJSON, "evaluation", "", "Evaluation payload as JSON")
	claimCmd.Flags().BoolVar(&jsonOut, "json", false, "Output state as JSON")
	_ = claimCmd.MarkFlagRequired("id")
	_ = claimCmd.MarkFlagRequired("holder")

	releaseCmd := &cobra.Command{
		Use:   "release",
		Short: "Release a held record",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newLockManager(*configPath)
			if err != nil {
				return err
			}
			state, err := mgr.Release(cmd.Context(), sourceID, holder)
			if err != nil {
				return err
			}
			return printState(state, jsonOut)
		},
	}
	releaseCmd.Flags().StringVar(&sourceID, "id", "", "Record id")
	releaseCmd.Flags().StringVar(&holder, "holder", "", "Releasing reviewer")
	releaseCmd.Flags().BoolVar(&jsonOut, "json", false, "Output state as JSON")
	_ = releaseCmd.MarkFlagRequired("id")
	_ = releaseCmd.MarkFlagRequired("holder")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show or change a record's review status",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newLockManager(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if status == "" {
				state, err := mgr.GetBySourceID(ctx, sourceID)
				if err != nil {
					return err
				}
				if histShown {
					history, err := mgr.History(ctx, sourceID)
					if err != nil {
						return err
					}
					return printJSON(map[string]any{"state": state, "history": history})
				}
				return printState(state, jsonOut)
			}
			state, err := mgr.UpdateStatus(ctx, sourceID, lock.Status(strings.ToUpper(status)), custom, holder, comment)
			if err != nil {
				return err
			}
			return printState(state, jsonOut)
		},
	}
	statusCmd.Flags().StringVar(&sourceID, "id", "", "Record id")
	statusCmd.Flags().StringVar(&status, "set", "", "New status (OPEN, LOCKED, SHORTLISTED, REJECTED, CUSTOM)")
	statusCmd.Flags().StringVar(&custom, "custom", "", "Custom status label (required with --set CUSTOM)")
	statusCmd.Flags().StringVar(&holder, "by", "", "Actor recorded in the audit history")
	statusCmd.Flags().StringVar(&comment, "comment", "", "Optional comment for the history entry")
	statusCmd.Flags().BoolVar(&histShown, "history", false, "Include the status history")
	statusCmd.Flags().BoolVar(&jsonOut, "json", false, "Output state as JSON")
	_ = statusCmd.MarkFlagRequired("id")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List held records",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newLockManager(*configPath)
			if err != nil {
				return err
			}
			var (
				states []lock.State
			)
			if byHolder != "" {
				states, err = mgr.ListByHolder(cmd.Context(), byHolder)
			} else {
				states, err = mgr.ListLocked(cmd.Context())
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(states)
			}
			for _, s := range states {
				fmt.Printf("%-36s  %-12s  %s\n", s.SourceID, s.Status, s.Holder)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&byHolder, "holder", "", "Only records held by this reviewer")
	listCmd.Flags().BoolVar(&jsonOut, "json", false, "Output states as JSON")

	lockCmd.AddCommand(claimCmd, releaseCmd, statusCmd, listCmd)
	return lockCmd
}

func runMatch(configPath, queryText, queryFile string, limit int, jsonOutput bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if queryText == "" && queryFile == "" {
		return fmt.Errorf("either --query or --query-file is required")
	}
	if queryFile != "" {
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return fmt.Errorf("read query file: %w", err)
		}
		queryText = string(data)
	}
	if limit <= 0 {
		limit = cfg.Match.DefaultLimit
	}

	ctx := context.Background()
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	report := metrics.NewMatchRun(len(queryText), limit)
	if app.Provider != nil {
		report.LLMMode = "llm:" + app.Provider.Name()
	} else {
		report.LLMMode = "degraded"
	}

	results, err := app.Matcher.FindMatches(ctx, queryText, limit)
	if err != nil {
		return err
	}
	report.Collect(results)
	report.Finish()
	observability.Metrics().RecordMatchRequest(report.Duration, report.Results, report.Degraded)

	if jsonOutput {
		return printJSON(map[string]any{"results": results, "run": report})
	}
	for i, r := range results {
		fmt.Printf("%2d. [%3d] %s\n", i+1, r.Score, r.Record.ID)
		if name := r.Record.Attributes["name"]; name != "" {
			fmt.Printf("    %s\n", name)
		}
		fmt.Printf("    %s\n\n", r.Explanation)
	}
	report.PrintSummary(os.Stdout)
	return nil
}

func runSync(configPath string, jsonOutput bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	outcome, err := app.Reconciler.Synchronize(ctx)
	if err != nil {
		return err
	}
	observability.Metrics().RecordSyncRun(outcome.Duration,
		outcome.MissingAdded, outcome.DuplicatesRemoved, outcome.OrphansRemoved, outcome.Skipped)

	report := metrics.NewSyncRun(outcome)
	if jsonOutput {
		return printJSON(outcome)
	}
	report.PrintSummary(os.Stdout)
	return nil
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "talentsync",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Environment:    cfg.Tracing.Environment,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	graceful := server.NewGracefulServer(&server.HealthConfig{
		Version: version,
		Sync:    app.Reconciler,
		Metrics: observability.Metrics().Handler(),
	}, nil)

	if app.RecordsPing != nil {
		graceful.Health.RegisterCheck("records", server.RecordStoreHealthChecker(app.RecordsPing))
	}
	if app.IndexPing != nil {
		graceful.Health.RegisterCheck("vector-index", server.VectorIndexHealthChecker(app.IndexPing))
	}
	if app.Provider != nil {
		graceful.Health.RegisterCheck("llm", server.LLMHealthChecker(app.Provider.Name(), nil))
	}

	graceful.RegisterHook("stores", 20, func(ctx context.Context) error {
		app.Close(ctx)
		return nil
	})
	graceful.RegisterHook("tracing", 30, func(ctx context.Context) error {
		return tp.Shutdown(ctx)
	})

	if err := graceful.Start(cfg.Server.Addr); err != nil {
		return err
	}
	slog.Info("operational server started", "addr", cfg.Server.Addr)

	if cfg.Sync.Interval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Sync.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-graceful.Shutdown.ShutdownCh():
					return
				case <-ticker.C:
					outcome, err := app.Reconciler.Synchronize(ctx)
					if err != nil {
						slog.Warn("scheduled reconciliation failed", "error", err)
						continue
					}
					observability.Metrics().RecordSyncRun(outcome.Duration,
						outcome.MissingAdded, outcome.DuplicatesRemoved, outcome.OrphansRemoved, outcome.Skipped)
				}
			}
		}()
	}

	graceful.Wait()
	return nil
}

var version = "dev"

// app bundles the wired service graph for one command invocation.
type app struct {
	Provider   llm.Provider
	Matcher    *match.Engine
	Reconciler *reconcile.Engine
	Records    record.Store
	Index      vector.Index

	RecordsPing func(ctx context.Context) error
	IndexPing   func(ctx context.Context) error

	closers []func(ctx context.Context)
}

func (a *app) Close(ctx context.Context) {
	for _, fn := range a.closers {
		fn(ctx)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	for _, warning := range cfg.Validate() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}
	setupLogger(cfg)
	if cfg.Audit.Enabled {
		if err := observability.InitGlobalAuditLogger(&observability.AuditConfig{
			Enabled:    true,
			OutputPath: cfg.Audit.OutputPath,
		}); err != nil {
			return nil, fmt.Errorf("audit log: %w", err)
		}
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// newSecretsManager builds the credential resolver from config.
func newSecretsManager(cfg *config.Config) (*secrets.Manager, error) {
	scfg := &secrets.Config{Backend: cfg.Secrets.Backend, File: cfg.Secrets.File}
	if cfg.Secrets.Backend == "vault" {
		scfg.Vault = &secrets.VaultConfig{
			Address: cfg.Secrets.VaultAddr,
			Token:   cfg.Secrets.VaultToken,
			Mount:   cfg.Secrets.VaultMount,
			Path:    cfg.Secrets.VaultPath,
		}
	}
	return secrets.NewManager(scfg)
}

// resolveSecret prefers the inline config value, which may itself be a
// file: or env: reference, and falls back to the secrets backend.
func resolveSecret(ctx context.Context, sec *secrets.Manager, inline string, key secrets.SecretKey) (string, error) {
	if inline != "" {
		return secrets.ResolveValue(inline)
	}
	return sec.GetOrDefault(ctx, key, ""), nil
}

// newProvider builds the LLM provider from config via the factory.
func newProvider(ctx context.Context, cfg *config.Config, sec *secrets.Manager) (llm.Provider, error) {
	factory := llm.NewFactory()
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})
	// All OpenAI-compatible providers
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

	apiKey, err := resolveSecret(ctx, sec, cfg.LLM.APIKey, secrets.SecretLLMAPIKey)
	if err != nil {
		return nil, fmt.Errorf("LLM api key: %w", err)
	}

	provider, err := factory.Create(llm.ProviderConfig{
		Provider:   cfg.LLM.Provider,
		APIKey:     apiKey,
		Model:      cfg.LLM.Model,
		BaseURL:    cfg.LLM.BaseURL,
		EmbedModel: cfg.Embedding.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if provider == nil {
		return nil, nil
	}

	limits := llm.DefaultRateLimitConfig()
	if cfg.LLM.RequestsPerMinute > 0 {
		limits.RequestsPerMinute = cfg.LLM.RequestsPerMinute
	}
	return llm.WithRateLimit(provider, limits), nil
}

// buildApp wires the service graph: provider, stores, pools and engines.
// Empty connection settings fall back to in-memory implementations so the
// binary works against local fixtures without running infrastructure.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	sec, err := newSecretsManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}

	provider, err := newProvider(ctx, cfg, sec)
	if err != nil {
		return nil, err
	}
	a.Provider = provider

	if cfg.Records.URI != "" {
		password, err := resolveSecret(ctx, sec, cfg.Records.Password, secrets.SecretRecordsPassword)
		if err != nil {
			return nil, fmt.Errorf("records password: %w", err)
		}
		store, err := neo4jstore.New(ctx, cfg.Records.URI, cfg.Records.Username, password)
		if err != nil {
			return nil, fmt.Errorf("record store: %w", err)
		}
		a.Records = store
		a.RecordsPing = store.Ping
		a.closers = append(a.closers, func(ctx context.Context) { store.Close(ctx) })
	} else {
		a.Records = record.NewMemoryStore()
	}

	if cfg.Vector.Host != "" {
		idx, err := vector.NewQdrant(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
		if err != nil {
			return nil, fmt.Errorf("vector index: %w", err)
		}
		a.Index = idx
		a.IndexPing = idx.Ping
		a.closers = append(a.closers, func(ctx context.Context) { idx.Close() })
	} else {
		a.Index = vector.NewMemoryIndex()
	}

	policy := retry.DefaultPolicy()
	embedder := vector.NewEmbedder(provider, cfg.Embedding.Dimensions, policy, slog.Default())

	matchPool := pool.New(cfg.Match.Workers)
	syncPool := pool.New(cfg.Sync.Workers)

	a.Matcher = match.NewEngine(a.Index, a.Records, embedder, provider, policy, matchPool,
		&match.Config{TaskTimeout: cfg.Match.TaskTimeout}, slog.Default())
	a.Reconciler = reconcile.NewEngine(a.Records, a.Index, embedder, syncPool, slog.Default())

	return a, nil
}

func newLockManager(configPath string) (*lock.Manager, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	var store lock.Store
	if cfg.Lock.Dir != "" {
		fs, err := lock.NewFileStore(cfg.Lock.Dir)
		if err != nil {
			return nil, fmt.Errorf("lock store: %w", err)
		}
		store = fs
	} else {
		store = lock.NewMemoryStore()
	}
	return lock.NewManager(store, observability.Audit(), slog.Default()), nil
}

func printState(state *lock.State, jsonOut bool) error {
	if jsonOut {
		return printJSON(state)
	}
	fmt.Printf("record:  %s\n", state.SourceID)
	fmt.Printf("status:  %s", state.Status)
	if state.CustomStatus != "" {
		fmt.Printf(" (%s)", state.CustomStatus)
	}
	fmt.Println()
	if state.Locked {
		fmt.Printf("holder:  %s\n", state.Holder)
		if state.ClaimedAt != nil {
			fmt.Printf("claimed: %s\n", state.ClaimedAt.Format(time.RFC3339))
		}
	}
	if state.Evaluation != nil {
		fmt.Printf("score:   %d\n", state.Evaluation.Score)
		if state.Evaluation.Summary != "" {
			fmt.Printf("summary: %s\n", state.Evaluation.Summary)
		}
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
