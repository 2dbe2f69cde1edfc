package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"github.com/tgienger/taskies/internal/app"
	"github.com/tgienger/taskies/internal/config"
	"github.com/tgienger/taskies/internal/gateway"
	"github.com/tgienger/taskies/internal/logging"
	"github.com/tgienger/taskies/internal/ui"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// flagEnv maps each override flag to the variable it stands in for
var flagEnv = map[string]string{
	"url":           "TASKIES_URL",
	"anon-key":      "TASKIES_ANON_KEY",
	"cache-backend": "TASKIES_CACHE_BACKEND",
	"cache-path":    "TASKIES_CACHE_PATH",
	"log-file":      "TASKIES_LOG_FILE",
	"log-level":     "TASKIES_LOG_LEVEL",
	"timeout":       "TASKIES_TIMEOUT",
}

func main() {
	fs := flag.NewFlagSet("taskies", flag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "config file (JSON with comments)")
	envFile := fs.String("env-file", "", "dotenv file (default .env when present)")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")
	fs.String("url", "", "gateway base URL")
	fs.String("anon-key", "", "gateway anonymous key")
	fs.String("cache-backend", "", "local cache backend: sqlite or file")
	fs.String("cache-path", "", "cache database file or directory")
	fs.String("log-file", "", `log file, "-" for stderr`)
	fs.String("log-level", "", "log level")
	fs.String("timeout", "", "request timeout, e.g. 15s")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if *showVersion {
		fmt.Printf("taskies %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Flags win over every other source, so they are handed to Load as
	// environment overrides
	env := config.Environ(os.Environ())
	fs.Visit(func(f *flag.Flag) {
		if name, ok := flagEnv[f.Name]; ok {
			env[name] = f.Value.String()
		}
	})

	cfg, err := config.Load(config.LoadInput{
		ConfigPath: *configPath,
		EnvFile:    *envFile,
		Env:        env,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logging.Logger

	if err := run(cfg); err != nil {
		log.Errorf("Event ID: APP_FAILED, Description: %v", err)
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, app.WithLogger(logging.Logger))
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	// An unreachable gateway is not fatal. The cached user and data are shown
	// while the stored access token has not expired.
	if err := a.Start(ctx); err != nil && gateway.KindOf(err) != gateway.KindNetwork {
		logging.Logger.Warnf("Event ID: SESSION_RESTORE_FAILED, Description: %v", err)
	}

	p := tea.NewProgram(ui.NewApp(ctx, a), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
