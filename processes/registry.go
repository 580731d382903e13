package processes

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// cleanupSignals terminate the host program after the registry is drained.
var cleanupSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

// Registry tracks every process that must not outlive the host program.
//
// Processes are appended on spawn and only iterated when the registry is drained.
// Signal handlers are installed at most once per Registry, and only when
// InstallCleanup is called, never at import time.
type Registry struct {
	mu        sync.Mutex
	processes map[string]*ManagedProcess
	logger    *slog.Logger

	installOnce sync.Once
	installed   bool
	signals     chan os.Signal
	exit        func(code int)
}

// DefaultRegistry is the registry used by a Supervisor created without one.
var DefaultRegistry = NewRegistry(nil)

// NewRegistry creates an empty registry. A nil logger defaults to slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		processes: make(map[string]*ManagedProcess),
		logger:    logger.With("component", "Registry"),
		exit:      os.Exit,
	}
}

// Register adds a process to the registry.
func (r *Registry) Register(process *ManagedProcess) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processes[process.ID] = process
}

// Unregister removes a process from the registry.
func (r *Registry) Unregister(process *ManagedProcess) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processes, process.ID)
}

// Len returns the number of registered processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processes)
}

// Contains reports whether the process is registered.
func (r *Registry) Contains(process *ManagedProcess) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.processes[process.ID]
	return ok
}

// Drain sends sig (SIGTERM if nil) to every registered process that has not exited yet
// and returns how many were signalled. Draining twice is harmless.
func (r *Registry) Drain(sig os.Signal) int {
	r.mu.Lock()
	toKill := make([]*ManagedProcess, 0, len(r.processes))
	for _, process := range r.processes {
		toKill = append(toKill, process)
	}
	r.mu.Unlock()

	killed := 0
	for _, process := range toKill {
		if process.HasExited() {
			continue
		}
		if process.Kill(sig) {
			killed++
			r.logger.Info("Killed process during cleanup", "id", process.ID, "pid", process.PID)
		}
	}
	return killed
}

// Cleanup drains the registry with SIGTERM. Defer it in main for the normal exit path.
func (r *Registry) Cleanup() {
	r.Drain(syscall.SIGTERM)
}

// RecoverAndCleanup drains the registry if the calling goroutine is panicking and
// then continues the panic. Use it as `defer registry.RecoverAndCleanup()`.
func (r *Registry) RecoverAndCleanup() {
	if rec := recover(); rec != nil {
		r.logger.Error("Uncaught panic, cleaning up processes", "panic", rec)
		r.Cleanup()
		panic(rec)
	}
}

// InstallCleanup installs handlers for SIGINT, SIGTERM and SIGQUIT that drain the
// registry and exit with status 1. Calls after the first are no-ops.
func (r *Registry) InstallCleanup() {
	r.installOnce.Do(func() {
		r.signals = make(chan os.Signal, 1)
		signal.Notify(r.signals, cleanupSignals...)

		r.mu.Lock()
		r.installed = true
		r.mu.Unlock()

		go r.awaitSignal()
	})
}

func (r *Registry) awaitSignal() {
	sig := <-r.signals
	r.handleSignal(sig)
}

// CleanupInstalled reports whether InstallCleanup has run.
func (r *Registry) CleanupInstalled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installed
}

func (r *Registry) handleSignal(sig os.Signal) {
	r.logger.Info("Received signal, cleaning up processes", "signal", sig.String())
	r.Cleanup()
	// Exiting with a failure status keeps e.g. ctrl+c from being swallowed.
	r.exit(1)
}
