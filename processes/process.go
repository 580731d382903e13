package processes

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ProcessState represents the lifecycle state of a managed process.
type ProcessState int

const (
	// StateSpawning means the process was launched and is not yet known to be alive.
	StateSpawning ProcessState = iota
	// StateAlive means the process answered its health endpoint.
	StateAlive
	// StateKilled means a signal was delivered to the process on request.
	StateKilled
	// StateExited means the process exited on its own.
	StateExited
	// StateFailed means the process failed to become alive.
	StateFailed
)

// String returns a string representation of the ProcessState.
func (ps ProcessState) String() string {
	switch ps {
	case StateSpawning:
		return "Spawning"
	case StateAlive:
		return "Alive"
	case StateKilled:
		return "Killed"
	case StateExited:
		return "Exited"
	case StateFailed:
		return "Failed"
	default:
		return "InvalidState"
	}
}

// ManagedProcess represents a supervised subprocess serving HTTP at URL.
type ManagedProcess struct {
	ID      string    // Unique identifier of this process within the host program.
	Command string    // The command that was executed.
	Args    []string  // The effective arguments, including injected host and port.
	URL     string    // Base URL the process serves on.
	PID     int       // Process ID of the running subprocess.
	Started time.Time // Time when the process was started.

	cmd  *exec.Cmd
	port string // Port allocated by the supervisor, empty if the caller chose one.
	done chan struct{}

	mu       sync.Mutex // Protects the fields below.
	state    ProcessState
	exitCode int
	exitErr  error
}

func newManagedProcess(id string, cmd *exec.Cmd, url, port string) *ManagedProcess {
	return &ManagedProcess{
		ID:       id,
		Command:  cmd.Path,
		Args:     cmd.Args[1:],
		URL:      url,
		PID:      cmd.Process.Pid, // Assumes cmd.Process is not nil (i.e., process started)
		Started:  time.Now(),
		cmd:      cmd,
		port:     port,
		done:     make(chan struct{}),
		state:    StateSpawning,
		exitCode: -1,
	}
}

// State returns the current process state.
func (mp *ManagedProcess) State() ProcessState {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state
}

// Done returns a channel that is closed when the process exits.
func (mp *ManagedProcess) Done() <-chan struct{} {
	return mp.done
}

// HasExited reports whether the process has been reaped.
func (mp *ManagedProcess) HasExited() bool {
	select {
	case <-mp.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code, or -1 if the process has not exited
// or was terminated by a signal.
func (mp *ManagedProcess) ExitCode() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.exitCode
}

// ExitError returns the error reported by waiting on the process, if any.
func (mp *ManagedProcess) ExitError() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.exitErr
}

// Kill sends sig to the process, SIGTERM if sig is nil. It returns whether the OS
// accepted the signal and does not wait for the process to exit.
func (mp *ManagedProcess) Kill(sig os.Signal) bool {
	if sig == nil {
		sig = syscall.SIGTERM
	}
	if mp.HasExited() {
		return false
	}
	if err := mp.cmd.Process.Signal(sig); err != nil {
		return false
	}

	mp.mu.Lock()
	if mp.state != StateExited {
		mp.state = StateKilled
	}
	mp.mu.Unlock()
	return true
}

func (mp *ManagedProcess) setState(state ProcessState) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.state == StateKilled || mp.state == StateExited {
		return
	}
	mp.state = state
}

// fail marks a process that never became alive, unless it already exited on its own.
func (mp *ManagedProcess) fail() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.state != StateExited {
		mp.state = StateFailed
	}
}

// wait reaps the process. It must be called exactly once.
func (mp *ManagedProcess) wait() {
	err := mp.cmd.Wait()

	mp.mu.Lock()
	mp.exitErr = err
	mp.exitCode = mp.cmd.ProcessState.ExitCode()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		mp.exitCode = -1
	}
	if mp.state != StateKilled {
		mp.state = StateExited
	}
	mp.mu.Unlock()

	close(mp.done)
}
