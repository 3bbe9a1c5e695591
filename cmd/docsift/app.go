package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docsift/docsift/budget"
	"github.com/docsift/docsift/chunk"
	"github.com/docsift/docsift/config"
	"github.com/docsift/docsift/llm"
	"github.com/docsift/docsift/note"
	"github.com/docsift/docsift/schedule"
	"github.com/docsift/docsift/synthesis"
	"github.com/docsift/docsift/token"
)

// App wires the store, backend, and pipeline together for one query.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	store   note.Store
	closer  io.Closer
	metrics *http.Server
}

// loadConfig builds the effective configuration: layered files first,
// then command-line flags on top.
func loadConfig(opts *options, logger *slog.Logger) (*config.Config, error) {
	var cfg *config.Config
	if opts.configPath != "" {
		loaded, err := config.LoadFromFile(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		loaded, err := config.NewLoader(logger).Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags override file configuration
	if opts.backendKind != "" {
		cfg.Backend.Kind = opts.backendKind
	}
	if opts.model != "" {
		cfg.Backend.Model = opts.model
	}
	if opts.endpoint != "" {
		cfg.Backend.Endpoint = opts.endpoint
	}
	if opts.maxTokens != 0 {
		cfg.Backend.MaxTokens = opts.maxTokens
	}
	if opts.strategy != "" {
		cfg.Chunking.Strategy = opts.strategy
	}
	if opts.policy != "" {
		cfg.Chunking.Policy = opts.policy
	}
	if opts.batchSize != 0 {
		cfg.Batch.Size = opts.batchSize
	}
	if opts.batchDelay != 0 {
		cfg.Batch.Delay = opts.batchDelay
	}
	if opts.workers != 0 {
		cfg.Parallel.Workers = opts.workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewApp opens the document store and, when requested, the metrics
// endpoint.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}

	if cfg.Store.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := note.OpenPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open document store: %w", err)
		}
		app.store = store
		app.closer = store
	} else {
		logger.Warn("store.dsn not configured, using empty in-memory store")
		app.store = note.NewMemoryStore()
	}

	return app, nil
}

// Close releases the store connection and stops the metrics endpoint.
func (a *App) Close() {
	if a.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(shutdownCtx)
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			a.logger.Warn("Failed to close document store", "error", err)
		}
	}
}

// Run executes one query: search, optional listing, then answer.
func (a *App) Run(ctx context.Context, opts *options) error {
	if opts.metricsAddr != "" {
		a.serveMetrics(opts.metricsAddr)
	}

	docs, err := a.search(ctx, opts)
	if err != nil {
		return fmt.Errorf("search notes: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No matching notes found.")
		return nil
	}
	if opts.limit > 0 && len(docs) > opts.limit {
		a.logger.Info("Limiting notes", "matched", len(docs), "limit", opts.limit)
		docs = docs[:opts.limit]
	}

	if opts.list {
		return a.listNotes(docs)
	}

	backend, err := llm.NewBackend(llm.Kind(a.cfg.Backend.Kind), llm.BackendConfig{
		Model:    a.cfg.Backend.Model,
		Endpoint: a.cfg.Backend.Endpoint,
		APIKey:   os.Getenv(a.cfg.Backend.APIKeyEnv),
		Command:  a.cfg.Backend.Command,
		Timeout:  a.cfg.Backend.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}

	counter := token.ForBackend(a.cfg.Backend.Kind, a.cfg.Backend.Model)

	introspector, _ := backend.(llm.Introspector)
	b, err := budget.NewResolver(a.logger).Resolve(ctx,
		a.cfg.Backend.Kind, a.cfg.Backend.Model, a.cfg.Backend.MaxTokens, introspector)
	if err != nil {
		return fmt.Errorf("resolve context window: %w", err)
	}
	a.logger.Info("Resolved token budget",
		"context_window", b.ContextWindow,
		"max_input_tokens", b.MaxInputTokens,
		"backend", backend.Name())

	if opts.verbose {
		a.printTokenStats(docs, counter, b)
	}

	if !opts.yes {
		ok, err := confirm(os.Stdin, len(docs), backend.Name())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	engine, err := a.buildEngine(backend, counter, b)
	if err != nil {
		return err
	}

	answer, err := a.answer(ctx, engine, docs, opts)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(answer)
	return nil
}

func (a *App) search(ctx context.Context, opts *options) ([]note.Document, error) {
	switch {
	case opts.tag != "" && opts.keyword != "":
		return a.store.SearchByTagAndKeyword(ctx, opts.tag, opts.keyword)
	case opts.tag != "":
		return a.store.SearchByTag(ctx, opts.tag)
	default:
		return a.store.SearchByKeyword(ctx, opts.keyword)
	}
}

func (a *App) listNotes(docs []note.Document) error {
	fmt.Printf("Found %d matching notes:\n\n", len(docs))
	for i, doc := range docs {
		fmt.Printf("%3d. %s (modified %s)\n", i+1, doc.Title, doc.ModifiedAt.Format("2006-01-02"))
	}
	return nil
}

func (a *App) printTokenStats(docs []note.Document, counter token.Counter, b budget.Budget) {
	total := 0
	fmt.Printf("Token statistics (%s):\n", counter.Name())
	for i, doc := range docs {
		n := counter.Count(doc.Body)
		total += n
		fmt.Printf("%3d. %-40s %8d tokens\n", i+1, doc.Title, n)
	}
	fmt.Printf("\nTotal: %d tokens across %d notes (budget %d input tokens)\n\n",
		total, len(docs), b.MaxInputTokens)
}

func (a *App) buildEngine(backend llm.Backend, counter token.Counter, b budget.Budget) (*synthesis.Engine, error) {
	strategy, err := chunk.ParseStrategy(a.cfg.Chunking.Strategy)
	if err != nil {
		return nil, err
	}
	policy, err := synthesis.ParsePolicy(a.cfg.Chunking.Policy)
	if err != nil {
		return nil, err
	}

	planner := chunk.NewPlanner(counter,
		chunk.WithOverlapLines(a.cfg.Chunking.OverlapLines),
		chunk.WithLogger(a.logger))
	dispatcher := llm.NewDispatcher(backend,
		llm.WithLogger(a.logger),
		llm.WithCounter(counter))

	return synthesis.NewEngine(dispatcher, planner, b,
		synthesis.WithStrategy(strategy),
		synthesis.WithPolicy(policy),
		synthesis.WithPacing(a.cfg.Chunking.Pacing),
		synthesis.WithEngineLogger(a.logger)), nil
}

func (a *App) answer(ctx context.Context, engine *synthesis.Engine, docs []note.Document, opts *options) (string, error) {
	switch {
	case opts.batchSize > 0:
		batch, err := schedule.NewBatch(engine, a.cfg.Batch.Size,
			schedule.WithBatchDelay(a.cfg.Batch.Delay),
			schedule.WithBatchLogger(a.logger))
		if err != nil {
			return "", err
		}
		return batch.Run(ctx, docs, opts.question)
	case opts.parallel:
		parallel := schedule.NewParallel(engine, a.cfg.Parallel.Workers,
			schedule.WithParallelLogger(a.logger))
		return parallel.Run(ctx, docs, opts.question)
	default:
		return engine.Answer(ctx, docs, opts.question)
	}
}

func (a *App) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux}
	go func() {
		a.logger.Info("Serving metrics", "addr", addr)
		if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Warn("Metrics server stopped", "error", err)
		}
	}()
}

// confirm asks before dispatching a potentially expensive query.
func confirm(in io.Reader, count int, backendName string) (bool, error) {
	fmt.Printf("Process %d notes with %s? [y/N]: ", count, backendName)
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
