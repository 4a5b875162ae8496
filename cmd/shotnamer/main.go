// Package main provides the shotnamer entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/shotnamer/internal/caption"
	"github.com/thebtf/shotnamer/internal/config"
	"github.com/thebtf/shotnamer/internal/naming"
	"github.com/thebtf/shotnamer/internal/pipeline"
	"github.com/thebtf/shotnamer/internal/status"
	"github.com/thebtf/shotnamer/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) > 0 {
		if args[0] == "version" {
			fmt.Fprintln(stderr, Version)
			return ExitSuccess
		}
		fmt.Fprintf(stderr, "usage: shotnamer [version]\n")
		return ExitUsage
	}

	setupLogging(stderr, zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		if config.IsConfigError(err) {
			fmt.Fprintf(stderr, "shotnamer: %v\n", err)
		} else {
			log.Error().Err(err).Msg("Failed to load configuration")
		}
		return ExitFailure
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Info().Msg("Shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := serve(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("shotnamer stopped with an error")
		return ExitFailure
	}
	return ExitSuccess
}

// serve wires the components together and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config) error {
	stats := status.NewStats(status.DefaultHistorySize)

	provider := caption.NewOpenAI(caption.OpenAIConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.APIBase,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
	})

	p := pipeline.New(provider, pipeline.Config{
		Language: cfg.Language,
		Debounce: cfg.Debounce,
	}, stats)

	w, err := watcher.New(watcher.Config{
		Dir:       cfg.Dir,
		QueueSize: cfg.QueueSize,
	}, naming.NewClassifier(cfg.Prefix), p, stats)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	log.Info().
		Str("version", Version).
		Str("dir", w.Dir()).
		Str("language", cfg.Language).
		Str("model", cfg.Model).
		Msg("Starting shotnamer (Ctrl+C to stop)")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	if cfg.StatusAddr != "" {
		srv := status.NewServer(cfg.StatusAddr, Version, stats)
		g.Go(func() error {
			if err := srv.Run(gctx); err != nil {
				log.Error().Err(err).Str("addr", cfg.StatusAddr).Msg("Status server failed, continuing without it")
			}
			return nil
		})
	}
	return g.Wait()
}

// setupLogging writes human-readable logs to w, colored only on a terminal.
func setupLogging(w io.Writer, level zerolog.Level) {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: noColor})
}
