// Package main provides the docsift binary entry point.
// Docsift answers questions over note collections that exceed a
// model's context window by chunking, extracting, and synthesizing.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	// Register LLM backends via init()
	_ "github.com/docsift/docsift/llm/backends"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "docsift"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	logLevel   string

	tag      string
	keyword  string
	question string
	list     bool
	limit    int

	backendKind string
	model       string
	endpoint    string
	maxTokens   int

	strategy string
	policy   string

	batchSize  int
	batchDelay time.Duration
	parallel   bool
	workers    int

	yes         bool
	verbose     bool
	metricsAddr string
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "docsift",
		Short: "Answer questions over large note collections",
		Long: `Docsift searches a note store by tag and keyword, then answers a
question over the matching notes with an LLM backend.

Collections larger than the model's context window are chunked,
summarized per chunk, and synthesized into one final answer. Use
--batch or --parallel processing for very large collections.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.Flags().StringVarP(&opts.tag, "tag", "t", "", "Tag to search for")
	cmd.Flags().StringVarP(&opts.keyword, "keyword", "k", "", "Keyword to search for")
	cmd.Flags().StringVarP(&opts.question, "question", "q", "", "Question to answer over the matching notes")
	cmd.Flags().BoolVarP(&opts.list, "list", "l", false, "List matching notes without querying the model")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of notes to process (0 = no limit)")

	cmd.Flags().StringVar(&opts.backendKind, "backend", "", "Backend kind (openai, ollama, runner, local)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model name")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Backend API endpoint")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "Context window override (0 = introspect)")

	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Chunking strategy (auto, document, token, recursive)")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Token-limit remediation (rechunk, truncate)")

	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Process notes in batches of this size")
	cmd.Flags().DurationVar(&opts.batchDelay, "batch-delay", 0, "Pause between batches")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "Process notes concurrently")
	cmd.Flags().IntVar(&opts.workers, "max-workers", 0, "Worker count for parallel processing")

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip the confirmation prompt for large collections")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print token statistics")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func setupLogging(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func run(cmd *cobra.Command, opts *options) error {
	// Load .env before anything reads the environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	logger := setupLogging(opts.logLevel)

	if opts.tag == "" && opts.keyword == "" {
		return fmt.Errorf("at least one of --tag or --keyword is required")
	}
	if !opts.list && opts.question == "" {
		return fmt.Errorf("--question is required unless --list is set")
	}

	cfg, err := loadConfig(opts, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(cmd.Context(), opts)
}
