package devnet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tomyedwab/starknet-devnet/processes"
	"github.com/tomyedwab/starknet-devnet/rpc"
	"github.com/tomyedwab/starknet-devnet/versions"
)

// Config configures a single spawned Devnet. See processes.SpawnConfig.
type Config = processes.SpawnConfig

// Devnet is a Devnet subprocess together with a Provider bound to its URL.
type Devnet struct {
	process  *processes.ManagedProcess
	provider *Provider
}

// URL returns the base URL the Devnet serves on
func (d *Devnet) URL() string {
	return d.process.URL
}

// Provider returns the client bound to this Devnet
func (d *Devnet) Provider() *Provider {
	return d.provider
}

// Process returns the supervised subprocess
func (d *Devnet) Process() *processes.ManagedProcess {
	return d.process
}

// Kill sends sig (SIGTERM if nil) to the Devnet and reports whether it was delivered.
// It does not wait for the process to exit; use Process().Done() for that.
// Unless started with KeepAlive, a Devnet is also killed when the host program
// receives SIGINT, SIGTERM or SIGQUIT, or when its registry is drained.
func (d *Devnet) Kill(sig os.Signal) bool {
	return d.process.Kill(sig)
}

// SpawnerConfig holds configuration options for the Spawner.
type SpawnerConfig struct {
	Supervisor      *processes.Supervisor // Optional, defaults to one using processes.DefaultRegistry
	Versions        *versions.Handler     // Optional, created on the first SpawnVersion call
	ProviderOptions []rpc.ClientOption    // Applied to the Provider of every spawned Devnet
	Logger          *slog.Logger          // Optional, defaults to slog.Default()
}

// Spawner starts Devnet subprocesses.
type Spawner struct {
	supervisor      *processes.Supervisor
	providerOptions []rpc.ClientOption
	logger          *slog.Logger

	versionsMu sync.Mutex
	versions   *versions.Handler
}

// NewSpawner creates a new Spawner instance.
func NewSpawner(config SpawnerConfig) (*Spawner, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	supervisor := config.Supervisor
	if supervisor == nil {
		var err error
		supervisor, err = processes.NewSupervisor(processes.Config{Logger: logger})
		if err != nil {
			return nil, err
		}
	}

	return &Spawner{
		supervisor:      supervisor,
		providerOptions: append([]rpc.ClientOption{rpc.WithLogger(logger)}, config.ProviderOptions...),
		logger:          logger.With("component", "Spawner"),
		versions:        config.Versions,
	}, nil
}

// SpawnInstalled runs DefaultCommand, which must be in PATH.
func (s *Spawner) SpawnInstalled(ctx context.Context, config Config) (*Devnet, error) {
	return s.SpawnCommand(ctx, DefaultCommand, config)
}

// SpawnCommand runs command, which may be a path or a name looked up in PATH, and waits
// until the Devnet answers its health endpoint.
func (s *Spawner) SpawnCommand(ctx context.Context, command string, config Config) (*Devnet, error) {
	process, err := s.supervisor.Spawn(ctx, command, config)
	if err != nil {
		return nil, err
	}
	return &Devnet{
		process:  process,
		provider: NewProvider(process.URL, s.providerOptions...),
	}, nil
}

// SpawnVersion runs the given released version, downloading it first if needed.
// "latest" selects LatestCompatibleVersion; any other value must be a release name
// such as "v0.5.1".
func (s *Spawner) SpawnVersion(ctx context.Context, version string, config Config) (*Devnet, error) {
	if version == latestVersionAlias {
		version = LatestCompatibleVersion
	}

	handler, err := s.versionHandler()
	if err != nil {
		return nil, err
	}
	command, err := handler.GetExecutable(ctx, version)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Spawning Devnet version", "version", version, "command", command)
	return s.SpawnCommand(ctx, command, config)
}

func (s *Spawner) versionHandler() (*versions.Handler, error) {
	s.versionsMu.Lock()
	defer s.versionsMu.Unlock()

	if s.versions == nil {
		handler, err := versions.NewHandler(versions.Config{Logger: s.logger})
		if err != nil {
			return nil, fmt.Errorf("failed to create version handler: %w", err)
		}
		s.versions = handler
	}
	return s.versions, nil
}

var (
	defaultSpawnerOnce sync.Once
	defaultSpawner     *Spawner
	defaultSpawnerErr  error
)

// DefaultSpawner returns the Spawner used by the package-level spawn functions.
// It is created on first use and tracks processes in processes.DefaultRegistry.
func DefaultSpawner() (*Spawner, error) {
	defaultSpawnerOnce.Do(func() {
		defaultSpawner, defaultSpawnerErr = NewSpawner(SpawnerConfig{})
	})
	return defaultSpawner, defaultSpawnerErr
}

// SpawnInstalled runs DefaultCommand using DefaultSpawner.
func SpawnInstalled(ctx context.Context, config Config) (*Devnet, error) {
	spawner, err := DefaultSpawner()
	if err != nil {
		return nil, err
	}
	return spawner.SpawnInstalled(ctx, config)
}

// SpawnCommand runs command using DefaultSpawner.
func SpawnCommand(ctx context.Context, command string, config Config) (*Devnet, error) {
	spawner, err := DefaultSpawner()
	if err != nil {
		return nil, err
	}
	return spawner.SpawnCommand(ctx, command, config)
}

// SpawnVersion runs a released version using DefaultSpawner.
func SpawnVersion(ctx context.Context, version string, config Config) (*Devnet, error) {
	spawner, err := DefaultSpawner()
	if err != nil {
		return nil, err
	}
	return spawner.SpawnVersion(ctx, version, config)
}
