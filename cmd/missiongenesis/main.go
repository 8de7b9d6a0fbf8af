// Command missiongenesis presents the Mission Genesis pitch deck in the
// terminal, with the Dawn advisor panel and narrated replies.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/MrWong99/missiongenesis/internal/app"
	"github.com/MrWong99/missiongenesis/internal/config"
)

// shutdownTimeout bounds the graceful shutdown after the UI exits.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a YAML configuration file (optional; watched for changes)")
	logFile := flag.String("log-file", "", "write logs here instead of the configured server.log_file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("missiongenesis", app.Version)
		return 0
	}

	// The app is created after the watcher, so early reloads are dropped.
	var current atomic.Pointer[app.App]
	cfg, watcher, err := loadConfig(*configPath, func(old, new *config.Config) {
		if a := current.Load(); a != nil {
			a.ApplyConfig(old, new)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "missiongenesis: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "missiongenesis: %v\n", err)
		}
		return 1
	}
	if *logFile != "" {
		cfg.Server.LogFile = *logFile
	}
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.Level())
	logger, closeLog, err := newLogger(cfg.Server.LogFile, &level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "missiongenesis: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("missiongenesis starting",
		"config", *configPath,
		"version", app.Version,
		"log_level", cfg.Server.LogLevel,
		"listen_addr", cfg.Server.ListenAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if watcher != nil {
		go watcher.Run(ctx)
	}

	reg := config.NewRegistry()
	app.RegisterBuiltins(ctx, reg)

	providers, err := app.BuildProviders(cfg, reg, nil)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		fmt.Fprintf(os.Stderr, "missiongenesis: %v\n", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers, app.WithLevelVar(&level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		fmt.Fprintf(os.Stderr, "missiongenesis: %v\n", err)
		return 1
	}
	current.Store(application)

	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
		fmt.Fprintf(os.Stderr, "missiongenesis: %v\n", runErr)
		return 1
	}
	printSummary(os.Stdout, cfg, application)
	slog.Info("goodbye")
	return 0
}

// loadConfig returns the defaults when path is empty, otherwise the file's
// contents plus a watcher that reports later edits to onChange.
func loadConfig(path string, onChange func(old, new *config.Config)) (*config.Config, *config.Watcher, error) {
	if path == "" {
		cfg := config.Default()
		if err := config.Validate(cfg); err != nil {
			return nil, nil, err
		}
		return cfg, nil, nil
	}
	w, err := config.NewWatcher(path, config.OnChange(onChange))
	if err != nil {
		return nil, nil, err
	}
	return w.Current(), w, nil
}

// newLogger writes text logs to path because the terminal belongs to the UI.
func newLogger(path string, level *slog.LevelVar) (*slog.Logger, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}

// printSummary reports where the session ended once the terminal is back.
func printSummary(w io.Writer, cfg *config.Config, a *app.App) {
	nav := a.Navigator()
	fmt.Fprintf(w, "Mission Genesis: left on %s (%d/%d), %d chat entries.\n",
		nav.Current().Name, nav.Index()+1, nav.Count(), len(a.Assistant().Transcript()))
	fmt.Fprintf(w, "Providers: llm=%s tts=%s. Log: %s\n",
		cfg.Providers.LLM.Name, cfg.Providers.TTS.Name, cfg.Server.LogFile)
}
