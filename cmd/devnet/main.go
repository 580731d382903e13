package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/tomyedwab/starknet-devnet/devnet"
	"github.com/tomyedwab/starknet-devnet/processes"
	"github.com/tomyedwab/starknet-devnet/rpc"
	"github.com/tomyedwab/starknet-devnet/versions"
)

type Config struct {
	Command     string        `env:"DEVNET_COMMAND"`
	Version     string        `env:"DEVNET_VERSION"`
	Args        []string      `env:"DEVNET_ARGS" envSeparator:" "`
	MaxStartup  time.Duration `env:"DEVNET_MAX_STARTUP" envDefault:"5s"`
	HTTPTimeout time.Duration `env:"DEVNET_HTTP_TIMEOUT" envDefault:"30s"`
	VersionsDir string        `env:"DEVNET_VERSIONS_DIR"`
	ReleasesURL string        `env:"DEVNET_RELEASES_URL" envDefault:"https://api.github.com/repos/0xSpaceShard/starknet-devnet/releases"`
	LogLevel    string        `env:"DEVNET_LOG_LEVEL" envDefault:"info"`
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse config", "error", err)
		return 1
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	registry := processes.NewRegistry(logger)
	defer registry.Cleanup()
	defer registry.RecoverAndCleanup()

	supervisor, err := processes.NewSupervisor(processes.Config{
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to create supervisor", "error", err)
		return 1
	}

	spawnerConfig := devnet.SpawnerConfig{
		Supervisor:      supervisor,
		ProviderOptions: []rpc.ClientOption{rpc.WithTimeout(cfg.HTTPTimeout)},
		Logger:          logger,
	}
	if cfg.Version != "" {
		handler, err := versions.NewHandler(versions.Config{
			StorageDir:  cfg.VersionsDir,
			ReleasesURL: cfg.ReleasesURL,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("Failed to open version storage", "error", err)
			return 1
		}
		defer handler.Close()
		spawnerConfig.Versions = handler
	}
	spawner, err := devnet.NewSpawner(spawnerConfig)
	if err != nil {
		logger.Error("Failed to create spawner", "error", err)
		return 1
	}

	spawnConfig := devnet.Config{
		Args:       cfg.Args,
		Stdout:     os.Stderr,
		Stderr:     os.Stderr,
		MaxStartup: cfg.MaxStartup,
	}

	ctx := context.Background()
	var d *devnet.Devnet
	switch {
	case cfg.Version != "":
		d, err = spawner.SpawnVersion(ctx, cfg.Version, spawnConfig)
	case cfg.Command != "":
		d, err = spawner.SpawnCommand(ctx, cfg.Command, spawnConfig)
	default:
		d, err = spawner.SpawnInstalled(ctx, spawnConfig)
	}
	if err != nil {
		logger.Error("Failed to spawn Devnet", "error", err)
		return 1
	}

	accounts, err := d.Provider().GetPredeployedAccounts(ctx, false)
	if err != nil {
		logger.Warn("Failed to list predeployed accounts", "error", err)
	}
	logger.Info("Devnet is alive", "url", d.URL(), "pid", d.Process().PID, "accounts", len(accounts))

	// SIGINT, SIGTERM and SIGQUIT are handled by the registry, which kills the
	// Devnet and exits. Otherwise we stay up until the Devnet itself goes away.
	<-d.Process().Done()
	logger.Error("Devnet exited", "exitCode", d.Process().ExitCode())
	return 1
}
