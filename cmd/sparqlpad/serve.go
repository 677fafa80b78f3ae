package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/sparqlpad/assistant"
	"github.com/c360studio/sparqlpad/config"
	"github.com/c360studio/sparqlpad/graph"
	"github.com/c360studio/sparqlpad/llm"
	"github.com/c360studio/sparqlpad/llm/providers"
	"github.com/c360studio/sparqlpad/server"
)

type serveOptions struct {
	host       string
	port       int
	format     string
	configPath string
	watch      bool
	logLevel   string
}

func runServe(args []string, opts serveOptions) error {
	logger := newLogger(opts.logLevel)
	slog.SetDefault(logger)

	// A .env file is optional; real environment variables win either way.
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded .env file")
	}

	cfg, err := config.NewLoader(logger, opts.configPath).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	paths, err := expandGlobs(args)
	if err != nil {
		return err
	}
	logger.Info("Loading RDF files", "count", len(paths))

	store := graph.NewStore(logger)
	if err := store.Load(paths, opts.format); err != nil {
		return fmt.Errorf("load RDF: %w", err)
	}

	snapshots := graph.NewSnapshotProvider(store, graph.DefaultEntryCap)
	snapshots.Compute()
	logger.Info("Graph loaded", "triples", store.Len(), "prefixes", len(store.Prefixes()))

	registry := prometheus.NewRegistry()
	engineStore := assistant.NewStore()
	metrics := server.NewMetrics(registry, func() float64 { return float64(engineStore.Len()) })

	completer, providerName, model := buildCompleter(cfg, metrics, logger)
	engine := assistant.NewEngine(engineStore, snapshots, completer,
		assistant.WithContextWindow(cfg.AI.HistoryWindow),
		assistant.WithMaxTokens(cfg.AI.MaxTokens),
		assistant.WithTemperature(cfg.AI.Temperature),
		assistant.WithLogger(logger),
	)

	srv := server.New(cfg, store, snapshots, engine, metrics, registry,
		server.WithLogger(logger),
		server.WithAIInfo(providerName, model),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.watch {
		watcher, werr := graph.NewWatcher(store, snapshots, paths, logger)
		if werr != nil {
			return fmt.Errorf("start file watcher: %w", werr)
		}
		watcher.Start(ctx)
		defer func() {
			if cerr := watcher.Stop(); cerr != nil {
				logger.Warn("Failed to stop file watcher", "error", cerr)
			}
		}()
		logger.Info("Watching source files for changes")
	}

	logger.Info("Starting sparqlpad",
		"version", Version,
		"addr", fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port),
		"ai_enabled", engine.Enabled())

	return srv.Start(ctx)
}

// buildCompleter assembles the completion client from config. A missing or
// disabled provider yields a nil completer; the assistant then runs in
// disabled mode and the rest of the tool works normally.
func buildCompleter(cfg *config.Config, metrics *server.Metrics, logger *slog.Logger) (llm.Completer, string, string) {
	name, apiKey, model, ok := cfg.AI.ResolvedProvider()
	if !ok {
		logger.Info("AI assistant disabled", "reason", "no provider configured")
		return nil, "", ""
	}

	provider, err := providers.New(name, apiKey, model)
	if err != nil {
		logger.Warn("AI assistant disabled", "error", err)
		return nil, "", ""
	}

	clientOpts := []llm.ClientOption{
		llm.WithTimeout(cfg.AI.Timeout),
		llm.WithLogger(logger),
	}
	if cfg.AI.BaseURL != "" {
		clientOpts = append(clientOpts, llm.WithBaseURL(cfg.AI.BaseURL))
	}
	client := llm.NewClient(provider, clientOpts...)

	logger.Info("AI assistant enabled", "provider", provider.Name(), "model", provider.Model())
	return server.InstrumentCompleter(client, metrics), provider.Name(), provider.Model()
}

// expandGlobs resolves each argument as a doublestar glob against the
// filesystem, passing plain paths through. Results are deduplicated and
// sorted for deterministic load order.
func expandGlobs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			if _, err := os.Stat(arg); err != nil {
				return nil, fmt.Errorf("cannot read %s: %w", arg, err)
			}
			if !seen[arg] {
				seen[arg] = true
				paths = append(paths, arg)
			}
			continue
		}

		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", arg)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
