package processes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	// DefaultMaxStartup is how long Spawn waits for a process to become alive.
	DefaultMaxStartup = 5 * time.Second
)

// SpawnConfig describes a single process launch. It is not modified by Spawn.
type SpawnConfig struct {
	// Args are the CLI arguments, passed through verbatim. --host and --port are
	// appended when missing.
	Args []string
	// Stdout and Stderr receive the process output. Nil inherits the host program's
	// streams; use io.Discard to drop the output.
	Stdout io.Writer
	Stderr io.Writer
	// MaxStartup bounds the wait for the process to become alive. Defaults to 5s.
	MaxStartup time.Duration
	// KeepAlive leaves the process running when the host program exits.
	KeepAlive bool
	// Env holds extra KEY=VALUE entries appended to the host environment.
	Env []string
	// Dir is the working directory, the host's current one if empty.
	Dir string
}

// Supervisor launches processes that serve HTTP and waits for them to become alive.
type Supervisor struct {
	portManager   *PortManager
	healthChecker HealthChecker
	registry      *Registry
	logger        *slog.Logger
	pollInterval  time.Duration
}

// Config holds configuration options for the Supervisor.
type Config struct {
	PortManager        *PortManager  // Optional, defaults to NewPortManager()
	HealthChecker      HealthChecker // Optional, defaults to HTTPHealthChecker
	Registry           *Registry     // Optional, defaults to DefaultRegistry
	Logger             *slog.Logger  // Optional, defaults to slog.Default()
	PollInterval       time.Duration // Optional, defaults to 100ms
	HealthCheckTimeout time.Duration // Optional, for default HTTPHealthChecker, defaults to 2s
}

// NewSupervisor creates a new Supervisor instance.
func NewSupervisor(config Config) (*Supervisor, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	portManager := config.PortManager
	if portManager == nil {
		pm, err := NewPortManager()
		if err != nil {
			return nil, fmt.Errorf("failed to create port manager: %w", err)
		}
		portManager = pm
	}

	healthChecker := config.HealthChecker
	if healthChecker == nil {
		healthChecker = NewHTTPHealthChecker(config.HealthCheckTimeout)
	}

	registry := config.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Supervisor{
		portManager:   portManager,
		healthChecker: healthChecker,
		registry:      registry,
		logger:        logger.With("component", "Supervisor"),
		pollInterval:  pollInterval,
	}, nil
}

// Registry returns the registry processes are tracked in.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Spawn launches command and waits until it answers its health endpoint.
//
// The process is registered for cleanup right after it starts (unless
// config.KeepAlive is set), so a failure while waiting still gets it killed when
// the host program exits. Waiting ends with whichever comes first: the process is
// alive, the process exited, MaxStartup elapsed, or ctx was cancelled. In every
// failure case a process that is still running is sent SIGTERM.
//
// ctx only bounds the startup. The process keeps running after Spawn returns.
func (s *Supervisor) Spawn(ctx context.Context, command string, config SpawnConfig) (*ManagedProcess, error) {
	args, url, allocatedPort, err := EnsureURL(ctx, config.Args, s.portManager)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(command, args...)
	cmd.Stdout = config.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = config.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if len(config.Env) > 0 {
		cmd.Env = append(os.Environ(), config.Env...)
	}
	cmd.Dir = config.Dir
	detach(cmd)

	s.logger.Info("Starting process", "command", command, "args", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		s.logger.Error("Failed to start process", "command", command, "error", err)
		if allocatedPort != "" {
			s.portManager.ReleasePort(allocatedPort)
		}
		return nil, NewSpawnError(command, err)
	}

	process := newManagedProcess(uuid.New().String(), cmd, url, allocatedPort)
	if !config.KeepAlive {
		// Registered before readiness so a failed startup is still cleaned up.
		s.registry.Register(process)
		s.registry.InstallCleanup()
	}
	go func() {
		process.wait()
		s.handleProcessExit(process)
	}()

	maxStartup := config.MaxStartup
	if maxStartup <= 0 {
		maxStartup = DefaultMaxStartup
	}

	if err := s.waitAlive(ctx, process, maxStartup); err != nil {
		s.logger.Error("Process failed to become alive", "id", process.ID, "pid", process.PID, "url", url, "error", err)
		process.Kill(syscall.SIGTERM)
		process.fail()
		return nil, err
	}

	process.setState(StateAlive)
	s.logger.Info("Process is alive", "id", process.ID, "pid", process.PID, "url", url)
	return process, nil
}

// waitAlive races readiness polling against process exit, the startup timer and ctx.
// The polling goroutine is stopped and joined before it returns.
func (s *Supervisor) waitAlive(ctx context.Context, process *ManagedProcess, maxStartup time.Duration) error {
	pollCtx, cancel := context.WithCancel(ctx)
	alive := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pollUntilAlive(pollCtx, process.URL, alive)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	timer := time.NewTimer(maxStartup)
	defer timer.Stop()

	select {
	case <-alive:
		return nil
	case <-process.Done():
		return NewEarlyExitError(process.ExitCode())
	case <-timer.C:
		return NewStartupTimeoutError()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) pollUntilAlive(ctx context.Context, url string, alive chan<- struct{}) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.healthChecker.IsAlive(ctx, url) {
			close(alive)
			return
		}
		s.logger.Debug("Process not alive yet", "url", url)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// handleProcessExit is called once a managed process has been reaped.
func (s *Supervisor) handleProcessExit(process *ManagedProcess) {
	s.logger.Info("Process exited", "id", process.ID, "pid", process.PID, "exitCode", process.ExitCode(), "state", process.State().String())
	if process.port != "" {
		s.portManager.ReleasePort(process.port)
	}
	s.registry.Unregister(process)
}
